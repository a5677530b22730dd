// Package keygen drives the distributed key generation state machine:
// Round0 -> Round1 -> Round2 -> Final(LocalKey) -> Gone. Every round is a
// distinct Go type consuming itself and returning the next — see
// DESIGN.md's "Deviations from teacher's shape" for why this replaces the
// teacher's single mutable state struct with a round-int counter.
package keygen

import (
	"io"

	"github.com/smallyu/go-schnorr-tss/internal/party"
	"github.com/smallyu/go-schnorr-tss/pkg/group"
	"github.com/smallyu/go-schnorr-tss/pkg/tss"
	"github.com/smallyu/go-schnorr-tss/pkg/vss"
)

// ShareMsg is the P2P body Round1 sends: one Feldman share plus the
// dealer's public commitment vector, so the recipient can validate the
// share on arrival.
type ShareMsg struct {
	Scheme vss.Scheme
	Share  group.Scalar
}

// LocalKey is keygen's sole persistable output: this party's aggregated
// secret share, the joint public key, and enough public material (every
// dealer's VSS scheme and public point) for sign to later verify against.
type LocalKey struct {
	Shared       party.SharedKeys
	VSSScheme    vss.Scheme
	VKVec        map[tss.ID]group.Point
	VSSSchemeVec map[tss.ID]vss.Scheme
	PartyI       tss.ID
	T            int
	N            int
}

// Round0 is keygen's entry state: just the validated run parameters.
type Round0 struct {
	params tss.Parameters
}

// NewRound0 validates params and returns the keygen machine's first state.
func NewRound0(params tss.Parameters) (*Round0, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Round0{params: params}, nil
}

func (r *Round0) Number() int      { return 0 }
func (r *Round0) CanProceed() bool { return true }
func (r *Round0) IsFinal() bool    { return false }
func (r *Round0) IsExpensive() bool { return true }

// Proceed samples this party's (u_i, y_i), commits to y_i, and returns
// Round1 plus the one broadcast message to send.
func (r *Round0) Proceed(rnd io.Reader) (*Round1, tss.Msg[party.BroadcastPhase1], error) {
	keys, err := party.Phase1Create(int(r.params.SelfID), rnd)
	if err != nil {
		return nil, tss.Msg[party.BroadcastPhase1]{}, err
	}
	broadcast, err := keys.Phase1Broadcast(rnd)
	if err != nil {
		return nil, tss.Msg[party.BroadcastPhase1]{}, err
	}

	next := &Round1{
		params: r.params,
		keys:   keys,
		store:  tss.NewBroadcastMsgsStore[party.BroadcastPhase1](r.params.Parties),
	}
	// Self's own broadcast never crosses the wire; record it directly so
	// the store is consistent with into_vec_including_me semantics.
	_ = next.store.Add(r.params.SelfID, broadcast)

	msg := tss.Msg[party.BroadcastPhase1]{Sender: r.params.SelfID, Round: 0, Body: broadcast}
	return next, msg, nil
}

// Round1 has broadcast its own commitment and waits for every peer's.
type Round1 struct {
	params tss.Parameters
	keys   party.Keys
	store  *tss.BroadcastMsgsStore[party.BroadcastPhase1]
}

func (r *Round1) Number() int       { return 1 }
func (r *Round1) CanProceed() bool  { return r.store.Full() }
func (r *Round1) IsFinal() bool     { return false }
func (r *Round1) IsExpensive() bool { return true }

// Add records a peer's Round0 broadcast.
func (r *Round1) Add(sender tss.ID, body party.BroadcastPhase1) error {
	return r.store.Add(sender, body)
}

// Proceed opens and checks every commitment, deals this party's Feldman
// VSS of u_i, and returns Round2 plus the n-1 P2P share messages.
func (r *Round1) Proceed(rnd io.Reader) (*Round2, []tss.Msg[ShareMsg], error) {
	if !r.store.Full() {
		return nil, nil, tss.NewError(tss.KindNotEnoughMessages, 1, "round1 store not full")
	}
	broadcasts := make(map[tss.ID]party.BroadcastPhase1, len(r.params.Parties))
	ys := make(map[tss.ID]group.Point, len(r.params.Parties))
	for _, id := range r.params.Parties {
		b, _ := r.store.Get(id)
		broadcasts[id] = b
		ys[id] = b.Yi
	}

	scheme, shares, err := r.keys.Phase1VerifyComPhase2Distribute(1, r.params.Threshold, broadcasts, r.params.Parties, rnd)
	if err != nil {
		return nil, nil, err
	}

	next := &Round2{
		params:    r.params,
		keys:      r.keys,
		ownScheme: scheme,
		ownShare:  shares[r.params.SelfID],
		ys:        ys,
		schemes:   tss.NewP2PMsgsStore[vss.Scheme](r.params.Parties),
		shares:    tss.NewP2PMsgsStore[group.Scalar](r.params.Parties),
	}
	_ = next.schemes.Add(r.params.SelfID, scheme)
	_ = next.shares.Add(r.params.SelfID, shares[r.params.SelfID])

	out := make([]tss.Msg[ShareMsg], 0, len(r.params.OtherParties()))
	for _, id := range r.params.OtherParties() {
		recv := id
		out = append(out, tss.Msg[ShareMsg]{
			Sender:   r.params.SelfID,
			Receiver: &recv,
			Round:    1,
			Body:     ShareMsg{Scheme: scheme, Share: shares[id]},
		})
	}
	return next, out, nil
}

// Round2 has dealt its shares and waits for every peer's VSS scheme and
// the share addressed to this party.
type Round2 struct {
	params    tss.Parameters
	keys      party.Keys
	ownScheme vss.Scheme
	ownShare  group.Scalar
	ys        map[tss.ID]group.Point
	schemes   *tss.P2PMsgsStore[vss.Scheme]
	shares    *tss.P2PMsgsStore[group.Scalar]
}

func (r *Round2) Number() int       { return 2 }
func (r *Round2) CanProceed() bool  { return r.schemes.Full() && r.shares.Full() }
func (r *Round2) IsFinal() bool     { return false }
func (r *Round2) IsExpensive() bool { return true }

// AddShare records the share and public VSS scheme a peer dealt to this
// party (both travel in the same P2P message, so a dealer's commitment
// vector reaches every recipient it shares with, not just those it
// broadcasts to).
func (r *Round2) AddShare(sender tss.ID, share ShareMsg) error {
	if err := r.schemes.Add(sender, share.Scheme); err != nil {
		return err
	}
	return r.shares.Add(sender, share.Share)
}

// Proceed validates every received share against its dealer's scheme,
// aggregates the shares into this party's long-term key, and produces the
// terminal Final state. Keygen emits no messages on this transition.
func (r *Round2) Proceed() (*Final, error) {
	if !r.CanProceed() {
		return nil, tss.NewError(tss.KindNotEnoughMessages, 2, "round2 store not full")
	}
	received := make(map[tss.ID]group.Scalar, len(r.params.Parties))
	schemes := make(map[tss.ID]vss.Scheme, len(r.params.Parties))
	for _, id := range r.params.Parties {
		s, _ := r.shares.Get(id)
		received[id] = s
		sc, _ := r.schemes.Get(id)
		schemes[id] = sc
	}

	shared, err := r.keys.Phase2VerifyVssConstructKeypair(2, r.ys, received, schemes, r.params.SelfID)
	if err != nil {
		return nil, err
	}

	return &Final{
		Result: LocalKey{
			Shared:       shared,
			VSSScheme:    r.ownScheme,
			VKVec:        r.ys,
			VSSSchemeVec: schemes,
			PartyI:       r.params.SelfID,
			T:            r.params.Threshold,
			N:            r.params.N(),
		},
	}, nil
}

// Final holds keygen's output until the driver consumes it.
type Final struct {
	Result LocalKey
}

func (f *Final) Number() int       { return 3 }
func (f *Final) CanProceed() bool  { return false }
func (f *Final) IsFinal() bool     { return true }
func (f *Final) IsExpensive() bool { return false }

// Consume releases the LocalKey and transitions to the Gone sink.
func (f *Final) Consume() (LocalKey, *Gone) {
	return f.Result, &Gone{}
}

// Gone is the sink state entered once Final has been consumed; any further
// call into the machine is a programming error.
type Gone struct{}

func (g *Gone) Number() int       { return -1 }
func (g *Gone) CanProceed() bool  { return false }
func (g *Gone) IsFinal() bool     { return true }
func (g *Gone) IsExpensive() bool { return false }
