// Package md5 provides MD5 content fingerprinting.
package md5

import (
	"crypto/md5" //nolint:gosec // duplicate detection only, not integrity
	"encoding/hex"
)

// Hasher implements harvest.Hasher using MD5.
type Hasher struct{}

// New returns an MD5 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash fingerprints the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := md5.Sum(data) //nolint:gosec // duplicate detection only, not integrity
	return hex.EncodeToString(sum[:]), nil
}
