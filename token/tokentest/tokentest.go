// Package tokentest mints Flume-shaped access tokens for tests.
package tokentest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const signingKey = "flume-test-key"

// Mint returns an HS256 JWT carrying user_id and, when exp is non-zero, exp.
func Mint(t testing.TB, userID int64, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"type":    "USER",
		"user_id": userID,
		"iat":     time.Now().Unix(),
	}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

// MintWithClaims signs arbitrary claims, for malformed-token cases.
func MintWithClaims(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
