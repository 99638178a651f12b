// Package md5 includes tests for the MD5 fingerprint adapter.
package md5

import "testing"

// TestHasherHashDeterministic ensures repeated hashing yields the same digest.
func TestHasherHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	got, err := h.Hash([]byte("hello world"))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	want := "5eb63bbbe01eeed093cb22bb8f5acdc3"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	again, err := h.Hash([]byte("hello world"))
	if err != nil {
		t.Fatalf("Hash() repeat error = %v", err)
	}
	if again != got {
		t.Fatalf("expected deterministic hash, got %s vs %s", got, again)
	}
}

// TestHasherHashDistinguishesContent ensures different bytes produce different digests.
func TestHasherHashDistinguishesContent(t *testing.T) {
	t.Parallel()

	h := New()
	a, err := h.Hash([]byte("image-a"))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	b, err := h.Hash([]byte("image-b"))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct digests, both were %s", a)
	}
}
