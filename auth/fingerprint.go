package auth

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns a short one-way digest of the client id and username.
func Fingerprint(clientID, username string) string {
	sum := blake2b.Sum256([]byte(clientID + "\x00" + username))
	return hex.EncodeToString(sum[:6])
}
