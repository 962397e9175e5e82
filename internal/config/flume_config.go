package config

import (
	"net/url"
	"slices"
	"strings"

	"github.com/jrsteele09/go-flume-client/internal/errors"
)

const (
	clientIDVar     = "FLUME_CLIENT_ID"
	clientSecretVar = "FLUME_CLIENT_SECRET"
	usernameVar     = "FLUME_USERNAME"
	passwordVar     = "FLUME_PASSWORD"
	baseURLVar      = "FLUME_BASE_URL"

	// DefaultBaseURL is the production Flume API origin.
	DefaultBaseURL = "https://api.flumetech.com"
)

// FlumeConfig is everything the API client needs. Nothing else affects the
// client's behaviour.
type FlumeConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetUsername() string
	GetPassword() string
	GetBaseURL() string
}

// Flume holds API credentials and the API origin.
type Flume struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	Username     string `toml:"username"`
	Password     string `toml:"password"`
	BaseURL      string `toml:"base_url"`
}

var _ FlumeConfig = Flume{}

func (f Flume) GetClientID() string     { return f.ClientID }
func (f Flume) GetClientSecret() string { return f.ClientSecret }
func (f Flume) GetUsername() string     { return f.Username }
func (f Flume) GetPassword() string     { return f.Password }

// GetBaseURL returns the API origin, defaulting to production.
func (f Flume) GetBaseURL() string {
	if strings.TrimSpace(f.BaseURL) == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(strings.TrimSpace(f.BaseURL), "/")
}

func (f Flume) withEnv() Flume {
	return Flume{
		ClientID:     GetEnv(clientIDVar, f.ClientID),
		ClientSecret: GetEnv(clientSecretVar, f.ClientSecret),
		Username:     GetEnv(usernameVar, f.Username),
		Password:     GetEnv(passwordVar, f.Password),
		BaseURL:      GetEnv(baseURLVar, f.BaseURL),
	}
}

// ValidateFlume checks that all four credentials are present and that the
// base URL is absolute.
func ValidateFlume(c FlumeConfig) error {
	if c == nil {
		return errors.Wrapf(errors.ErrMissingCredentials, "no configuration")
	}
	var missing []string
	for name, v := range map[string]string{
		"client_id":     c.GetClientID(),
		"client_secret": c.GetClientSecret(),
		"username":      c.GetUsername(),
		"password":      c.GetPassword(),
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return errors.Wrapf(errors.ErrMissingCredentials, "%s", strings.Join(missing, ", "))
	}
	u, err := url.Parse(c.GetBaseURL())
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Wrapf(errors.ErrInvalidBaseURL, "%q", c.GetBaseURL())
	}
	return nil
}
