// Package multisig implements the simpler, non-threshold n-of-n Schnorr
// multisig: every party contributes a long-term identity key and, per
// message, a fresh ephemeral key; the aggregated signature verifies against
// the summed public points rather than against any single reconstructed
// key. No VSS, no rounds gated on a share threshold — just broadcast,
// challenge, partial-sign, aggregate.
//
// Grounded on original_source/src/protocols/multisig/test.rs (KZen/ABMatrix
// multisig-schnorr): Keys.I/Keys.X mirror the Rust KeyPair pair, and the
// same partial_sign/verify pair is exercised twice in that test — once as a
// proof-of-possession binding I and X together at setup, once as the real
// per-message signature — which this package keeps as a single reusable
// Keys/PartialSign/Verify trio rather than two bespoke code paths.
package multisig

import (
	"io"

	"github.com/smallyu/go-schnorr-tss/pkg/group"
)

const challengeDomain = "schnorr-tss/multisig-challenge/v1"

// KeyPair is one Schnorr keypair: a secret scalar and its public point.
type KeyPair struct {
	Secret group.Scalar
	Public group.Point
}

// GenKeyPair samples a fresh keypair.
func GenKeyPair(rnd io.Reader) (KeyPair, error) {
	s, err := group.RandScalar(rnd)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Secret: s, Public: group.ScalarBaseMult(s)}, nil
}

// Keys bundles a party's long-term identity key I with whichever key X is
// currently in play: a second long-term key at setup time (to bind I and X
// together against rogue-key substitution) or a per-message ephemeral key
// at signing time.
type Keys struct {
	I KeyPair
	X KeyPair
}

// CreateKeys samples both I and X fresh. Used once per party at setup.
func CreateKeys(rnd io.Reader) (Keys, error) {
	i, err := GenKeyPair(rnd)
	if err != nil {
		return Keys{}, err
	}
	x, err := GenKeyPair(rnd)
	if err != nil {
		return Keys{}, err
	}
	return Keys{I: i, X: x}, nil
}

// Broadcast is the public material a party exposes before the challenge is
// computed: its identity point and whichever X point is live.
type Broadcast struct {
	I group.Point
	X group.Point
}

// Broadcast returns this party's public contribution.
func (k Keys) Broadcast() Broadcast {
	return Broadcast{I: k.I.Public, X: k.X.Public}
}

// CollectAndComputeChallenge sums every party's I and X points and derives
// the shared Schnorr challenge e = H(ΣI ‖ ΣX ‖ message). An empty message
// binds the setup-time proof of possession; a real message binds a
// signature.
func CollectAndComputeChallenge(broadcasts []Broadcast, message []byte) group.Scalar {
	sumI, sumX := aggregate(broadcasts)
	return group.HashToScalar(challengeDomain, sumI.Bytes(), sumX.Bytes(), message)
}

func aggregate(broadcasts []Broadcast) (group.Point, group.Point) {
	sumI, sumX := group.Infinity(), group.Infinity()
	for _, b := range broadcasts {
		sumI = sumI.Add(b.I)
		sumX = sumX.Add(b.X)
	}
	return sumI, sumX
}

// PartialSign computes this party's share of the aggregated signature:
// y_i = x_i + e*i_i.
func PartialSign(k Keys, e group.Scalar) group.Scalar {
	return k.X.Secret.Add(e.Mul(k.I.Secret))
}

// Verify checks an aggregated (or single-party) signature share against the
// aggregated identity and signing points: G*y == Xagg + e*Iagg.
func Verify(iAgg, xAgg group.Point, y group.Scalar, e group.Scalar) bool {
	lhs := group.ScalarBaseMult(y)
	rhs := xAgg.Add(iAgg.ScalarMult(e))
	return lhs.Equal(rhs)
}

// EphKey is a party's fresh, per-message nonce commitment for the actual
// signing round, distinct from the long-term X sampled by CreateKeys.
type EphKey struct {
	KeyPair KeyPair
}

// GenCommit samples a fresh ephemeral keypair for one signing round.
func GenCommit(rnd io.Reader) (EphKey, error) {
	kp, err := GenKeyPair(rnd)
	if err != nil {
		return EphKey{}, err
	}
	return EphKey{KeyPair: kp}, nil
}

// ComputeJointCommE aggregates every party's long-term identity point and
// this round's ephemeral points, and derives the signing challenge over the
// message: It = ΣI_i, Xt = Σeph_i, es = H(It ‖ Xt ‖ message).
func ComputeJointCommE(longPubs, ephPubs []group.Point, message []byte) (it, xt group.Point, es group.Scalar) {
	it, xt = group.Infinity(), group.Infinity()
	for _, p := range longPubs {
		it = it.Add(p)
	}
	for _, p := range ephPubs {
		xt = xt.Add(p)
	}
	es = group.HashToScalar(challengeDomain, it.Bytes(), xt.Bytes(), message)
	return it, xt, es
}

// AddSignatureParts sums every party's PartialSign output into the final
// aggregated signature scalar.
func AddSignatureParts(ys []group.Scalar) group.Scalar {
	sum := group.ZeroScalar()
	for _, y := range ys {
		sum = sum.Add(y)
	}
	return sum
}
