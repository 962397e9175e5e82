package token

import (
	"strconv"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-flume-client/internal/errors"
)

// Claims are the parts of a Flume access token the client relies on.
type Claims struct {
	UserID int64
	Type   string
	Expiry time.Time
}

// ParseClaims decodes the access token payload without verifying its
// signature. Only the user id and the expiry are read.
func ParseClaims(rawToken string) (Claims, error) {
	parsed, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return Claims{}, errors.Wrapf(errors.ErrInvalidToken, "parse access token: %v", err)
	}

	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return Claims{}, errors.Wrapf(errors.ErrInvalidToken, "error extracting claims")
	}

	userID, ok := int64Claim(claims["user_id"])
	if !ok || userID == 0 {
		return Claims{}, errors.ErrMissingUserID
	}

	out := Claims{UserID: userID}
	out.Type, _ = claims["type"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.Expiry = exp.Time
	}
	return out, nil
}

func int64Claim(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case string:
		id, err := strconv.ParseInt(n, 10, 64)
		return id, err == nil
	}
	return 0, false
}
