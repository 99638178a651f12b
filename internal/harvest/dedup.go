package harvest

import "sync"

// FingerprintSet tracks content digests seen during a run so identical
// payloads are written only once. Safe for concurrent use.
type FingerprintSet struct {
	seen sync.Map
}

// NewFingerprintSet returns an empty set.
func NewFingerprintSet() *FingerprintSet {
	return &FingerprintSet{}
}

// MarkIfNew stores the fingerprint if it has not been seen before and returns
// true. Once registered a fingerprint stays registered, even if the caller
// later fails to persist the payload.
func (s *FingerprintSet) MarkIfNew(fingerprint string) bool {
	if fingerprint == "" {
		return false
	}
	_, loaded := s.seen.LoadOrStore(fingerprint, struct{}{})
	return !loaded
}
