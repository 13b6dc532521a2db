package media

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns the hex-encoded Blake2b-512 digest of b: a fixed
// 128-character lowercase string, used as the primary key for both the
// result store and the job descriptor.
func Fingerprint(b []byte) (string, error) {
	sum := blake2b.Sum512(b)
	return hex.EncodeToString(sum[:]), nil
}
