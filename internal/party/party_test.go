package party

import (
	"crypto/rand"
	"testing"

	"github.com/smallyu/go-schnorr-tss/pkg/group"
	"github.com/smallyu/go-schnorr-tss/pkg/tss"
	"github.com/smallyu/go-schnorr-tss/pkg/vss"
	"github.com/stretchr/testify/require"
)

// dealKeygen runs a full n-party, threshold-t keygen locally (no network)
// and returns each party's SharedKeys, the joint public key, and every
// dealer's public VSS scheme, for use as a fixture by other tests.
func dealKeygen(t *testing.T, n, threshold int) (map[tss.ID]SharedKeys, group.Point, map[tss.ID]vss.Scheme) {
	t.Helper()

	parties := make([]tss.ID, n)
	for i := range parties {
		parties[i] = tss.ID(i + 1)
	}

	keys := make(map[tss.ID]Keys, n)
	broadcasts := make(map[tss.ID]BroadcastPhase1, n)
	for _, id := range parties {
		k, err := Phase1Create(int(id), rand.Reader)
		require.NoError(t, err)
		keys[id] = k
		b, err := k.Phase1Broadcast(rand.Reader)
		require.NoError(t, err)
		broadcasts[id] = b
	}

	schemes := make(map[tss.ID]vss.Scheme, n)
	shares := make(map[tss.ID]map[tss.ID]group.Scalar, n) // dealer -> recipient -> share
	for _, dealer := range parties {
		scheme, dealt, err := keys[dealer].Phase1VerifyComPhase2Distribute(1, threshold, broadcasts, parties, rand.Reader)
		require.NoError(t, err)
		schemes[dealer] = scheme
		shares[dealer] = dealt
	}

	ys := make(map[tss.ID]group.Point, n)
	for _, id := range parties {
		ys[id] = broadcasts[id].Yi
	}

	out := make(map[tss.ID]SharedKeys, n)
	var Y group.Point
	for _, recipient := range parties {
		received := make(map[tss.ID]group.Scalar, n)
		for _, dealer := range parties {
			received[dealer] = shares[dealer][recipient]
		}
		sk, err := keys[recipient].Phase2VerifyVssConstructKeypair(2, ys, received, schemes, recipient)
		require.NoError(t, err)
		out[recipient] = sk
		Y = sk.Y
	}
	return out, Y, schemes
}

func TestKeygenAllPartiesAgreeOnJointKey(t *testing.T) {
	shared, Y, _ := dealKeygen(t, 5, 2)
	for id, sk := range shared {
		require.True(t, sk.Y.Equal(Y), "party %d disagrees on joint key", id)
	}
}

func TestPhase1VerifyComPhase2DistributeRejectsTamperedCommitment(t *testing.T) {
	n, threshold := 3, 1
	parties := []tss.ID{1, 2, 3}

	keys := make(map[tss.ID]Keys, n)
	broadcasts := make(map[tss.ID]BroadcastPhase1, n)
	for _, id := range parties {
		k, err := Phase1Create(int(id), rand.Reader)
		require.NoError(t, err)
		keys[id] = k
		b, err := k.Phase1Broadcast(rand.Reader)
		require.NoError(t, err)
		broadcasts[id] = b
	}

	// Party 2's broadcast y_i is swapped for a different point, keeping
	// comm/decom fixed — every honest recipient must reject it.
	tampered := broadcasts[2]
	other, err := Phase1Create(99, rand.Reader)
	require.NoError(t, err)
	tampered.Yi = other.Yi
	broadcasts[2] = tampered

	_, _, err = keys[1].Phase1VerifyComPhase2Distribute(1, threshold, broadcasts, parties, rand.Reader)
	require.Error(t, err)
	var tssErr *tss.Error
	require.ErrorAs(t, err, &tssErr)
	require.Equal(t, tss.KindInvalidCommitment, tssErr.Kind)
}

func TestPhase2VerifyVssConstructKeypairRejectsTamperedShare(t *testing.T) {
	n, threshold := 4, 1
	parties := make([]tss.ID, n)
	for i := range parties {
		parties[i] = tss.ID(i + 1)
	}

	keys := make(map[tss.ID]Keys, n)
	broadcasts := make(map[tss.ID]BroadcastPhase1, n)
	for _, id := range parties {
		k, err := Phase1Create(int(id), rand.Reader)
		require.NoError(t, err)
		keys[id] = k
		b, err := k.Phase1Broadcast(rand.Reader)
		require.NoError(t, err)
		broadcasts[id] = b
	}

	schemes := make(map[tss.ID]vss.Scheme, n)
	shares := make(map[tss.ID]map[tss.ID]group.Scalar, n)
	for _, dealer := range parties {
		scheme, dealt, err := keys[dealer].Phase1VerifyComPhase2Distribute(1, threshold, broadcasts, parties, rand.Reader)
		require.NoError(t, err)
		schemes[dealer] = scheme
		shares[dealer] = dealt
	}

	ys := make(map[tss.ID]group.Point, n)
	for _, id := range parties {
		ys[id] = broadcasts[id].Yi
	}

	// Dealer 2 sends party 3 a random scalar instead of its real share.
	bogus, err := group.RandScalar(rand.Reader)
	require.NoError(t, err)
	shares[2][3] = bogus

	received := make(map[tss.ID]group.Scalar, n)
	for _, dealer := range parties {
		received[dealer] = shares[dealer][3]
	}
	_, err = keys[3].Phase2VerifyVssConstructKeypair(2, ys, received, schemes, 3)
	require.Error(t, err)
	var tssErr *tss.Error
	require.ErrorAs(t, err, &tssErr)
	require.Equal(t, tss.KindInvalidSS, tssErr.Kind)

	// Party 4, unaffected, still constructs its key without error.
	received4 := make(map[tss.ID]group.Scalar, n)
	for _, dealer := range parties {
		received4[dealer] = shares[dealer][4]
	}
	_, err = keys[4].Phase2VerifyVssConstructKeypair(2, ys, received4, schemes, 4)
	require.NoError(t, err)
}

func TestSignRoundTripProducesVerifiableSignature(t *testing.T) {
	n, threshold := 5, 2
	signers := []tss.ID{1, 3, 4}
	shared, Y, vssLongAll := dealKeygen(t, n, threshold)

	// Deal a fresh ephemeral VSS over the signer subset, as sign's
	// Round0/Round1 do. The threshold passed is len(signers)-1, which for
	// this three-signer subset equals the keygen threshold t=2 that sign's
	// Round1 uses.
	ephKeys := make(map[tss.ID]Keys, len(signers))
	ephBroadcasts := make(map[tss.ID]BroadcastPhase1, len(signers))
	for _, id := range signers {
		k, err := Phase1Create(int(id), rand.Reader)
		require.NoError(t, err)
		ephKeys[id] = k
		b, err := k.Phase1Broadcast(rand.Reader)
		require.NoError(t, err)
		ephBroadcasts[id] = b
	}

	ephSchemes := make(map[tss.ID]vss.Scheme, len(signers))
	ephShares := make(map[tss.ID]map[tss.ID]group.Scalar, len(signers))
	for _, dealer := range signers {
		scheme, dealt, err := ephKeys[dealer].Phase1VerifyComPhase2Distribute(1, len(signers)-1, ephBroadcasts, signers, rand.Reader)
		require.NoError(t, err)
		ephSchemes[dealer] = scheme
		ephShares[dealer] = dealt
	}

	ephYs := make(map[tss.ID]group.Point, len(signers))
	for _, id := range signers {
		ephYs[id] = ephBroadcasts[id].Yi
	}

	ephSharedKeys := make(map[tss.ID]SharedKeys, len(signers))
	for _, id := range signers {
		received := make(map[tss.ID]group.Scalar, len(signers))
		for _, dealer := range signers {
			received[dealer] = ephShares[dealer][id]
		}
		sk, err := ephKeys[id].Phase2VerifyVssConstructKeypair(2, ephYs, received, ephSchemes, id)
		require.NoError(t, err)
		ephSharedKeys[id] = sk
	}

	message := []byte{0x4F, 0x4D, 0x45, 0x52}
	localSigs := make(map[tss.ID]LocalSig, len(signers))
	for _, id := range signers {
		localSigs[id] = ComputeLocalSig(message, ephSharedKeys[id], shared[id])
	}

	longDealers := make([]tss.ID, n)
	for i := range longDealers {
		longDealers[i] = tss.ID(i + 1)
	}
	vssSum, err := VerifyLocalSigs(3, localSigs, signers, vssLongAll, longDealers, ephSchemes)
	require.NoError(t, err)
	for _, id := range signers {
		require.True(t, vssSum.VerifyShare(uint16(id), localSigs[id].Gamma))
	}

	R := ephSharedKeys[signers[0]].Y
	sig := GenerateSignature(localSigs, signers, R)
	require.True(t, Verify(Y, sig, message))
}

func TestVerifyIsPure(t *testing.T) {
	n, threshold := 3, 1
	signers := []tss.ID{1, 2, 3}
	shared, Y, _ := dealKeygen(t, n, threshold)

	ephKeys := make(map[tss.ID]Keys, len(signers))
	ephBroadcasts := make(map[tss.ID]BroadcastPhase1, len(signers))
	for _, id := range signers {
		k, err := Phase1Create(int(id), rand.Reader)
		require.NoError(t, err)
		ephKeys[id] = k
		b, err := k.Phase1Broadcast(rand.Reader)
		require.NoError(t, err)
		ephBroadcasts[id] = b
	}
	ephSchemes := make(map[tss.ID]vss.Scheme, len(signers))
	ephShares := make(map[tss.ID]map[tss.ID]group.Scalar, len(signers))
	for _, dealer := range signers {
		scheme, dealt, err := ephKeys[dealer].Phase1VerifyComPhase2Distribute(1, len(signers)-1, ephBroadcasts, signers, rand.Reader)
		require.NoError(t, err)
		ephSchemes[dealer] = scheme
		ephShares[dealer] = dealt
	}
	ephYs := make(map[tss.ID]group.Point, len(signers))
	for _, id := range signers {
		ephYs[id] = ephBroadcasts[id].Yi
	}
	ephSharedKeys := make(map[tss.ID]SharedKeys, len(signers))
	for _, id := range signers {
		received := make(map[tss.ID]group.Scalar, len(signers))
		for _, dealer := range signers {
			received[dealer] = ephShares[dealer][id]
		}
		sk, err := ephKeys[id].Phase2VerifyVssConstructKeypair(2, ephYs, received, ephSchemes, id)
		require.NoError(t, err)
		ephSharedKeys[id] = sk
	}

	message := []byte("idempotent verification")
	localSigs := make(map[tss.ID]LocalSig, len(signers))
	for _, id := range signers {
		localSigs[id] = ComputeLocalSig(message, ephSharedKeys[id], shared[id])
	}
	R := ephSharedKeys[signers[0]].Y
	sig := GenerateSignature(localSigs, signers, R)

	first := Verify(Y, sig, message)
	for i := 0; i < 5; i++ {
		require.Equal(t, first, Verify(Y, sig, message))
	}
}
