// Package party implements the stateless-ish party-local cryptography that
// internal/keygen and internal/sign drive from their round bodies: key
// creation, commit/decommit, Feldman share distribution, local signature
// computation, and final signature assembly/verification.
//
// Grounded on the teacher's internal/crypto/zk/schnorr/schnorr.go
// (challenge/verify shape, generalized here from a single signer to the
// Lagrange-interpolated aggregate case) and the retrieved Rust party_i API.
package party

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/smallyu/go-schnorr-tss/pkg/commitment"
	"github.com/smallyu/go-schnorr-tss/pkg/group"
	"github.com/smallyu/go-schnorr-tss/pkg/tss"
	"github.com/smallyu/go-schnorr-tss/pkg/vss"
)

const challengeDomain = "schnorr-tss/challenge/v1"

// Keys is a single party's contribution to a keygen or sign dealing: a
// secret scalar and its public point. In keygen this is (u_i, y_i); in sign
// it is the ephemeral (r_i, R_i).
type Keys struct {
	Ui         group.Scalar
	Yi         group.Point
	PartyIndex int // the 1-based party ID; bound into the Phase1Broadcast commitment
}

// Phase1Create samples u_i uniformly and derives y_i = G*u_i.
func Phase1Create(index int, rnd io.Reader) (Keys, error) {
	u, err := group.RandScalar(rnd)
	if err != nil {
		return Keys{}, tss.WrapError(tss.KindInternalCurve, 0, "sampling u_i", err)
	}
	return Keys{Ui: u, Yi: group.ScalarBaseMult(u), PartyIndex: index}, nil
}

// BroadcastPhase1 is the single message keygen's Round0 and sign's Round0
// both emit: a commitment to Yi, opened in the same message (spec's
// preserved single-round commit+open layout).
type BroadcastPhase1 struct {
	Comm  []byte
	Decom []byte
	Yi    group.Point
	Index tss.ID
}

// Phase1Broadcast commits to k.Yi with a fresh blinding factor.
func (k Keys) Phase1Broadcast(rnd io.Reader) (BroadcastPhase1, error) {
	c, err := commitment.CommitParts(k.Yi.Bytes(), indexBytes(tss.ID(k.PartyIndex)))
	if err != nil {
		return BroadcastPhase1{}, tss.WrapError(tss.KindInternalCurve, 0, "committing to y_i", err)
	}
	return BroadcastPhase1{Comm: c.C, Decom: c.D, Yi: k.Yi, Index: tss.ID(k.PartyIndex)}, nil
}

// Phase1VerifyComPhase2Distribute opens and checks every peer's broadcast
// commitment, then deals a Feldman VSS of k.Ui at threshold across parties,
// returning the public scheme and one share per party in parties (the
// caller retains the share addressed to itself; it is never put on the
// wire to a peer).
func (k Keys) Phase1VerifyComPhase2Distribute(
	round int,
	threshold int,
	broadcasts map[tss.ID]BroadcastPhase1,
	parties []tss.ID,
	rnd io.Reader,
) (vss.Scheme, map[tss.ID]group.Scalar, error) {
	for _, id := range parties {
		b, ok := broadcasts[id]
		if !ok {
			return vss.Scheme{}, nil, tss.NewError(tss.KindInvalidParameters, round, fmt.Sprintf("missing broadcast from party %d", id))
		}
		if !commitment.VerifyParts(b.Comm, b.Decom, b.Yi.Bytes(), indexBytes(id)) {
			return vss.Scheme{}, nil, tss.NewError(tss.KindInvalidCommitment, round, fmt.Sprintf("commitment from party %d does not open", id))
		}
	}

	poly, err := vss.NewPolynomial(threshold, &k.Ui, rnd)
	if err != nil {
		return vss.Scheme{}, nil, tss.WrapError(tss.KindInternalCurve, round, "dealing vss polynomial", err)
	}

	shares := make(map[tss.ID]group.Scalar, len(parties))
	for _, id := range parties {
		shares[id] = poly.Evaluate(uint16(id))
	}
	return poly.SchemeOf(), shares, nil
}

// SharedKeys is the aggregated result of a keygen or sign dealing: the
// party's combined secret share and the joint public point.
type SharedKeys struct {
	Xi group.Scalar
	Y  group.Point
}

// Phase2VerifyVssConstructKeypair validates every received share (including
// the caller's own, retained share from Phase1VerifyComPhase2Distribute)
// against its dealer's public scheme at ownIndex, then aggregates into a
// SharedKeys.
func (k Keys) Phase2VerifyVssConstructKeypair(
	round int,
	ys map[tss.ID]group.Point,
	sharesReceived map[tss.ID]group.Scalar,
	schemes map[tss.ID]vss.Scheme,
	ownIndex tss.ID,
) (SharedKeys, error) {
	xi := group.ZeroScalar()
	for id, share := range sharesReceived {
		scheme, ok := schemes[id]
		if !ok {
			return SharedKeys{}, tss.NewError(tss.KindInvalidParameters, round, fmt.Sprintf("no vss scheme from dealer %d", id))
		}
		if !scheme.VerifyShare(uint16(ownIndex), share) {
			return SharedKeys{}, tss.NewError(tss.KindInvalidSS, round, fmt.Sprintf("share from dealer %d fails vss check", id))
		}
		xi = xi.Add(share)
	}

	Y := group.Infinity()
	for _, y := range ys {
		Y = Y.Add(y)
	}
	return SharedKeys{Xi: xi, Y: Y}, nil
}

// LocalSig is one party's contribution to the aggregated Schnorr signature.
type LocalSig struct {
	Gamma group.Scalar
	E     group.Scalar
}

// ComputeLocalSig derives the Schnorr challenge e = H(R || Y || m) from the
// ephemeral and long-term joint points, and this party's local signature
// share gamma_i = r_i + e*x_i.
func ComputeLocalSig(message []byte, eph, long SharedKeys) LocalSig {
	e := group.HashToScalar(challengeDomain, eph.Y.Bytes(), long.Y.Bytes(), message)
	gamma := eph.Xi.Add(e.Mul(long.Xi))
	return LocalSig{Gamma: gamma, E: e}
}

// scaleScheme returns a scheme whose commitment vector is s's, scaled by e.
func scaleScheme(s vss.Scheme, e group.Scalar) vss.Scheme {
	out := make([]group.Point, len(s.Commitments))
	for i, c := range s.Commitments {
		out[i] = c.ScalarMult(e)
	}
	return vss.Scheme{Commitments: out, Threshold: s.Threshold}
}

// CombineVssSum builds the synthetic scheme C_i = e*(sum of the original
// keygen dealers' long-term commitment vectors) + (sum of this signing
// round's ephemeral commitment vectors), whose public evaluation at party i
// is the C_i each signer broadcasts in sign's Round3/Round4. The two dealer
// sets are kept distinct: every keygen participant contributed to x_i, but
// only the current signer subset deals ephemeral shares. Reused by
// VerifyLocalSigs.
func CombineVssSum(e group.Scalar, vssLongAll map[tss.ID]vss.Scheme, longDealers []tss.ID, vssEphAll map[tss.ID]vss.Scheme, signers []tss.ID) vss.Scheme {
	var sum vss.Scheme
	for _, id := range longDealers {
		sum = sum.Add(scaleScheme(vssLongAll[id], e))
	}
	for _, id := range signers {
		sum = sum.Add(vssEphAll[id])
	}
	return sum
}

// VerifyLocalSigs checks every signer's LocalSig against the synthetic
// vssSum commitment (built from the public long-term VSS schemes of every
// original keygen dealer and the ephemeral VSS schemes of every current
// signer), returning that scheme. Sign's state machine does not call it:
// its Round3 builds the same sum with CombineVssSum and Round4 checks each
// signer's gamma against the broadcast C_j.
func VerifyLocalSigs(
	round int,
	gammas map[tss.ID]LocalSig,
	signers []tss.ID,
	vssLongAll map[tss.ID]vss.Scheme,
	longDealers []tss.ID,
	vssEphAll map[tss.ID]vss.Scheme,
) (vss.Scheme, error) {
	if len(gammas) == 0 {
		return vss.Scheme{}, tss.NewError(tss.KindInvalidParameters, round, "no local signatures to verify")
	}
	var e group.Scalar
	for _, sig := range gammas {
		e = sig.E
		break
	}
	vssSum := CombineVssSum(e, vssLongAll, longDealers, vssEphAll, signers)
	for _, id := range signers {
		sig, ok := gammas[id]
		if !ok {
			return vss.Scheme{}, tss.NewError(tss.KindInvalidParameters, round, fmt.Sprintf("missing local signature from signer %d", id))
		}
		if !vssSum.VerifyShare(uint16(id), sig.Gamma) {
			return vss.Scheme{}, tss.NewError(tss.KindInvalidSS, round, fmt.Sprintf("local signature from signer %d fails aggregate check", id))
		}
	}
	return vssSum, nil
}

// Signature is the final aggregated Schnorr signature.
type Signature struct {
	R     group.Point
	Sigma group.Scalar
}

// GenerateSignature Lagrange-interpolates sigma from the signing subset's
// local signature shares at x=0, pairing it with the already-known
// aggregated ephemeral point R.
func GenerateSignature(localSigs map[tss.ID]LocalSig, parties []tss.ID, R group.Point) Signature {
	gammas := make(map[uint16]group.Scalar, len(parties))
	for _, id := range parties {
		gammas[uint16(id)] = localSigs[id].Gamma
	}
	sigma, err := vss.Reconstruct(len(parties)-1, gammas)
	if err != nil {
		// Unreachable: gammas holds one entry per distinct id in parties,
		// which is exactly the threshold+1 = len(parties) shares required.
		panic(fmt.Sprintf("party: reconstruct with matched share count: %v", err))
	}
	return Signature{R: R, Sigma: sigma}
}

// Verify checks a Schnorr signature against joint public key Y and message
// m. It is a pure function of its inputs.
func Verify(Y group.Point, sig Signature, m []byte) bool {
	e := group.HashToScalar(challengeDomain, sig.R.Bytes(), Y.Bytes(), m)
	lhs := group.ScalarBaseMult(sig.Sigma)
	rhs := sig.R.Add(Y.ScalarMult(e))
	return lhs.Equal(rhs)
}

func indexBytes(id tss.ID) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(id))
	return b[:]
}
