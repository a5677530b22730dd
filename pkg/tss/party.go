// Package tss carries the protocol-agnostic plumbing shared by keygen and
// sign: party identities, message envelopes, message stores, and the error
// taxonomy. There is no push-sink type: each round's Proceed returns its
// outbound messages to the caller. It has no crypto in
// it — see internal/party, pkg/vss, pkg/commitment, pkg/group for that.
//
// Adapted from the teacher's pkg/tss/interfaces.go and pkg/tss/errors.go:
// PartyID there becomes ID here (a plain uint16, since parties in this
// protocol are always addressed by their 1-based index, never an opaque
// string identity), and the hand-rolled per-protocol message structs
// (KeyGenMessage, SignMessage) are replaced by one generic Msg[B].
package tss

import "sort"

// ID is a 1-based party index, 1 <= ID <= n.
type ID uint16

// Parameters is the immutable configuration a party runs a protocol under.
type Parameters struct {
	SelfID    ID
	Parties   []ID // for keygen: all n parties; for sign: the signing subset
	Threshold int  // t: reconstruction threshold, t+1 shares reconstruct
	SessionID []byte
}

// N is the number of parties in this run (|Parties|).
func (p Parameters) N() int { return len(p.Parties) }

// Validate checks the structural invariants spec.md §4.1 requires of every
// round's inputs: indices in range, no duplicates, a Lagrange-capable set.
func (p Parameters) Validate() error {
	if p.SelfID == 0 {
		return NewError(KindInvalidParameters, 0, "self id must be >= 1")
	}
	if p.Threshold < 0 {
		return NewError(KindInvalidParameters, 0, "threshold must be >= 0")
	}
	if len(p.Parties) < p.Threshold+1 {
		return NewError(KindInvalidParameters, 0, "fewer than t+1 parties")
	}
	seen := make(map[ID]bool, len(p.Parties))
	foundSelf := false
	for _, id := range p.Parties {
		if id == 0 {
			return NewError(KindInvalidParameters, 0, "party index must be >= 1")
		}
		if seen[id] {
			return NewError(KindInvalidParameters, 0, "duplicate party index in parties set")
		}
		seen[id] = true
		if id == p.SelfID {
			foundSelf = true
		}
	}
	if !foundSelf {
		return NewError(KindInvalidParameters, 0, "self id not present in parties set")
	}
	return nil
}

// OtherParties returns Parties minus SelfID, in ascending order.
func (p Parameters) OtherParties() []ID {
	out := make([]ID, 0, len(p.Parties)-1)
	for _, id := range p.Parties {
		if id != p.SelfID {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
