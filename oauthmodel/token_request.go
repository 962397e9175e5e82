package oauthmodel

import (
	"strings"

	"github.com/jrsteele09/go-flume-client/oauth2"
)

// TokenRequest is the JSON body POSTed to the Flume /oauth/token endpoint.
// Supports the password and refresh_token grant types.
type TokenRequest struct {
	// GrantType selects the exchange.
	// Required: Yes
	// Example: "password" or "refresh_token"
	GrantType oauth2.GrantType `json:"grant_type"`

	// ClientID identifies the API client issued by Flume.
	// Required: Yes (for all grant types)
	ClientID string `json:"client_id"`

	// ClientSecret is the secret credential for the API client.
	// Required: Yes
	// Security: Never log or expose this value
	ClientSecret string `json:"client_secret"`

	// Username is the Flume account login.
	// Required: Yes (only for password grant)
	Username string `json:"username,omitempty"`

	// Password is the Flume account password.
	// Required: Yes (only for password grant)
	// Security: Never log or expose this value
	Password string `json:"password,omitempty"`

	// RefreshToken is used to obtain new access tokens without re-authentication.
	// Required: Yes (only for refresh_token grant)
	RefreshToken string `json:"refresh_token,omitempty"`
}

// NewPasswordRequest builds a password grant request.
func NewPasswordRequest(clientID, clientSecret, username, password string) TokenRequest {
	return TokenRequest{
		GrantType:    oauth2.PasswordGrant,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Username:     username,
		Password:     password,
	}
}

// NewRefreshRequest builds a refresh_token grant request.
func NewRefreshRequest(clientID, clientSecret, refreshToken string) TokenRequest {
	return TokenRequest{
		GrantType:    oauth2.RefreshTokenGrant,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RefreshToken: refreshToken,
	}
}

// Validate checks that the fields required by the grant type are present.
func (r TokenRequest) Validate() error {
	if strings.TrimSpace(r.ClientID) == "" || strings.TrimSpace(r.ClientSecret) == "" {
		return ErrMissingClientCredentials
	}
	switch r.GrantType {
	case oauth2.PasswordGrant:
		if strings.TrimSpace(r.Username) == "" || r.Password == "" {
			return ErrMissingUserCredentials
		}
	case oauth2.RefreshTokenGrant:
		if strings.TrimSpace(r.RefreshToken) == "" {
			return ErrMissingRefreshToken
		}
	default:
		return ErrUnsupportedGrantType
	}
	return nil
}
