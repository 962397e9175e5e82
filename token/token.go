package token

import (
	"time"

	"github.com/jrsteele09/go-flume-client/internal/errors"
	"github.com/jrsteele09/go-flume-client/internal/utils"
	"github.com/jrsteele09/go-flume-client/oauth2"
	xoauth2 "golang.org/x/oauth2"
)

// Token is an immutable bearer credential issued by the Flume token endpoint.
// A session replaces its Token wholesale; fields are never updated in place.
type Token struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	Expiry       time.Time // zero when upstream gave no lifetime
	IssuedAt     time.Time // when the grant completed
	UserID       int64     // decoded from the access token's user_id claim
}

// FromResponse builds a Token from a grant response. The lifetime comes from
// expires_in, falling back to the JWT "exp" claim. The access token must be a
// JWT carrying a user_id claim.
func FromResponse(resp oauth2.TokenResponse, now time.Time) (*Token, error) {
	access := utils.Trimmed(resp.AccessToken)
	if access == "" {
		return nil, errors.Wrapf(errors.ErrInvalidToken, "missing access token")
	}

	claims, err := ParseClaims(access)
	if err != nil {
		return nil, err
	}

	tokenType := resp.TokenType
	if tokenType == "" {
		tokenType = oauth2.BearerTokenType
	}

	expiry := claims.Expiry
	if resp.ExpiresIn > 0 {
		expiry = now.Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	return &Token{
		AccessToken:  access,
		TokenType:    tokenType,
		RefreshToken: utils.Value(resp.RefreshToken),
		Expiry:       expiry,
		IssuedAt:     now,
		UserID:       claims.UserID,
	}, nil
}

// ExpiresWithin reports whether the token expires before now+margin. A token
// without a known expiry never reports true.
func (t *Token) ExpiresWithin(margin time.Duration, now time.Time) bool {
	if t == nil {
		return true
	}
	if t.Expiry.IsZero() {
		return false
	}
	return !now.Add(margin).Before(t.Expiry)
}

// NeedsRefresh is ExpiresWithin with margin capped at half the token's
// lifetime, so a short-lived token is still used for a while before it is
// replaced.
func (t *Token) NeedsRefresh(margin time.Duration, now time.Time) bool {
	if t != nil && !t.IssuedAt.IsZero() && t.Expiry.After(t.IssuedAt) {
		margin = min(margin, t.Expiry.Sub(t.IssuedAt)/2)
	}
	return t.ExpiresWithin(margin, now)
}

// CanRefresh reports whether a refresh_token grant is possible.
func (t *Token) CanRefresh() bool {
	return t != nil && t.RefreshToken != ""
}

// OAuth2 converts the token to the golang.org/x/oauth2 representation.
func (t *Token) OAuth2() *xoauth2.Token {
	if t == nil {
		return nil
	}
	return &xoauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
}

// SameAs reports whether both tokens carry the same access token.
func (t *Token) SameAs(other *Token) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.AccessToken == other.AccessToken
}
