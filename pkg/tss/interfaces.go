// Message envelopes and the Round contract every keygen/sign round
// implements. Where the teacher hand-rolled a KeyGenMessage and a
// SignMessage struct per protocol, every protocol here shares one
// generic envelope and one state-machine contract.
package tss

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ErrInvalidMsg is returned by a Store when it is fed a message it should
// never accept: an unexpected sender, or a second message from one already
// recorded.
var ErrInvalidMsg = errors.New("invalid message received")

// Msg is the envelope every round sends and receives. Receiver nil means
// broadcast. B is the protocol-specific body type (e.g. a round's
// broadcast payload struct); bodies are cbor-encoded on the wire so a
// transport never needs to know B's shape.
type Msg[B any] struct {
	Sender   ID
	Receiver *ID // nil => broadcast
	Round    int
	Body     B
}

// IsBroadcast reports whether m has no single intended recipient.
func (m Msg[B]) IsBroadcast() bool { return m.Receiver == nil }

// Marshal cbor-encodes m's body for transport, using cbor's canonical
// encoding mode so equal bodies always encode to equal bytes.
func (m Msg[B]) Marshal() ([]byte, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	return em.Marshal(m.Body)
}

// UnmarshalBody decodes a cbor-encoded body into dst.
func UnmarshalBody[B any](data []byte, dst *B) error {
	return cbor.Unmarshal(data, dst)
}

// Round is the contract every Round0/Round1/.../Final type in
// internal/keygen and internal/sign implements. Proceed is not part of it:
// each round type has its own Proceed signature, and pkg/simulate calls
// the concrete round types directly.
type Round interface {
	// Number is this round's 0-based index within its protocol.
	Number() int
	// CanProceed reports whether every message this round needs has
	// arrived, i.e. whether Proceed can safely be called.
	CanProceed() bool
	// IsFinal reports whether this round produces the protocol's output
	// rather than a next round.
	IsFinal() bool
}

// Store accumulates incoming messages for a single round until every
// expected sender has been heard from.
type Store[B any] interface {
	// Add records a message from sender. Returns ErrInvalidMsg if sender
	// already has an entry (no overwrite-by-resend).
	Add(sender ID, body B) error
	// Full reports whether every expected sender (per the Parameters this
	// store was built from) has been recorded.
	Full() bool
	// Get returns the recorded body for sender, or false if absent.
	Get(sender ID) (B, bool)
}

// BroadcastMsgsStore collects one message per expected sender, keyed by
// sender ID — used for rounds where every party emits a broadcast body.
type BroadcastMsgsStore[B any] struct {
	expected map[ID]bool
	got      map[ID]B
}

// NewBroadcastMsgsStore builds a store expecting exactly one message from
// each of expected.
func NewBroadcastMsgsStore[B any](expected []ID) *BroadcastMsgsStore[B] {
	s := &BroadcastMsgsStore[B]{expected: make(map[ID]bool, len(expected)), got: make(map[ID]B, len(expected))}
	for _, id := range expected {
		s.expected[id] = true
	}
	return s
}

func (s *BroadcastMsgsStore[B]) Add(sender ID, body B) error {
	if !s.expected[sender] {
		return fmt.Errorf("%w: unexpected sender %d", ErrInvalidMsg, sender)
	}
	if _, ok := s.got[sender]; ok {
		return fmt.Errorf("%w: duplicate message from %d", ErrInvalidMsg, sender)
	}
	s.got[sender] = body
	return nil
}

func (s *BroadcastMsgsStore[B]) Full() bool { return len(s.got) == len(s.expected) }

func (s *BroadcastMsgsStore[B]) Get(sender ID) (B, bool) {
	b, ok := s.got[sender]
	return b, ok
}

// IntoVecIncludingMe returns the stored bodies in the given order, with
// self's slot filled from mine rather than from the store (a party never
// receives its own message over the wire).
func (s *BroadcastMsgsStore[B]) IntoVecIncludingMe(self ID, mine B, order []ID) []B {
	out := make([]B, 0, len(order))
	for _, id := range order {
		if id == self {
			out = append(out, mine)
			continue
		}
		if b, ok := s.got[id]; ok {
			out = append(out, b)
		}
	}
	return out
}

// P2PMsgsStore collects one message per expected sender where each body is
// addressed specifically to this party (not broadcast) — used for VSS
// share distribution in keygen Round1.
type P2PMsgsStore[B any] struct {
	*BroadcastMsgsStore[B]
}

// NewP2PMsgsStore builds a point-to-point store expecting one message from
// each of expected.
func NewP2PMsgsStore[B any](expected []ID) *P2PMsgsStore[B] {
	return &P2PMsgsStore[B]{BroadcastMsgsStore: NewBroadcastMsgsStore[B](expected)}
}
