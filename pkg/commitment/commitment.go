// Package commitment implements a hash commitment scheme with an explicit
// blinding factor: C = blake3(D || data), binding and hiding under the
// random-oracle model for blake3.
//
// Adapted from the teacher's internal/crypto/commitment/commitment.go: same
// Commit/Verify shape, but the blinding factor is now a
// github.com/cronokirby/saferith.Nat (spec.md §6: "BigInt blindings are
// length-prefixed big-endian") and the hash is blake3 rather than SHA-256,
// and verification uses a constant-time comparison.
package commitment

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"

	"github.com/cronokirby/saferith"
	"github.com/zeebo/blake3"
)

const blindingBytes = 32

// Commitment is the output of Commit: C is the public hash, D is the secret
// decommitment (blinding factor) to be revealed later.
type Commitment struct {
	C []byte
	D []byte
}

// Commit hashes data together with a freshly sampled blinding factor.
func Commit(data []byte) (Commitment, error) {
	raw := make([]byte, blindingBytes)
	if _, err := rand.Read(raw); err != nil {
		return Commitment{}, err
	}
	blind := new(saferith.Nat).SetBytes(raw)
	nb := blind.Bytes()
	d := make([]byte, 4, 4+len(nb))
	binary.BigEndian.PutUint32(d, uint32(len(nb)))
	d = append(d, nb...)

	return Commitment{C: hash(d, data), D: d}, nil
}

// Verify checks that C is the commitment to data under blinding factor d.
func Verify(c, d, data []byte) bool {
	if len(c) == 0 || len(d) == 0 {
		return false
	}
	want := hash(d, data)
	return subtle.ConstantTimeCompare(want, c) == 1
}

// CommitParts commits to the concatenation of parts; a convenience wrapper
// for committing to structured protocol messages without hand-rolled
// concatenation at every call site.
func CommitParts(parts ...[]byte) (Commitment, error) {
	return Commit(concat(parts))
}

// VerifyParts verifies a commitment produced by CommitParts.
func VerifyParts(c, d []byte, parts ...[]byte) bool {
	return Verify(c, d, concat(parts))
}

func concat(parts [][]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func hash(d, data []byte) []byte {
	h := blake3.New()
	_, _ = h.Write(d)
	_, _ = h.Write(data)
	return h.Sum(nil)
}
