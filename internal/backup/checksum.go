package backup

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the hex-encoded SHA-256 digest of data. The checksum
// role is corruption and tamper detection, not authentication, but a real
// digest is used anyway: polynomial rolling hashes collide far too easily
// for a value operators rely on before wiping live data.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
