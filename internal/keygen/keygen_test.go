package keygen

import (
	"crypto/rand"
	"testing"

	"github.com/smallyu/go-schnorr-tss/internal/party"
	"github.com/smallyu/go-schnorr-tss/pkg/group"
	"github.com/smallyu/go-schnorr-tss/pkg/tss"
	"github.com/stretchr/testify/require"
)

func partiesOf(n int) []tss.ID {
	out := make([]tss.ID, n)
	for i := range out {
		out[i] = tss.ID(i + 1)
	}
	return out
}

// runKeygen drives n Round0 machines to completion by hand-routing
// messages between them, the way the teacher's test/e2e route() helper
// does for its CGGMP rounds.
func runKeygen(t *testing.T, n, threshold int) map[tss.ID]LocalKey {
	t.Helper()
	ids := partiesOf(n)

	round0s := make(map[tss.ID]*Round0, n)
	for _, id := range ids {
		params := tss.Parameters{SelfID: id, Parties: ids, Threshold: threshold}
		r0, err := NewRound0(params)
		require.NoError(t, err)
		round0s[id] = r0
	}

	round1s := make(map[tss.ID]*Round1, n)
	broadcasts := make(map[tss.ID]tss.Msg[party.BroadcastPhase1], n)
	for _, id := range ids {
		r1, msg, err := round0s[id].Proceed(rand.Reader)
		require.NoError(t, err)
		round1s[id] = r1
		broadcasts[id] = msg
	}
	for _, recipient := range ids {
		for _, sender := range ids {
			if sender == recipient {
				continue
			}
			require.NoError(t, round1s[recipient].Add(sender, broadcasts[sender].Body))
		}
		require.True(t, round1s[recipient].CanProceed())
	}

	round2s := make(map[tss.ID]*Round2, n)
	shareMsgs := make(map[tss.ID][]tss.Msg[ShareMsg], n)
	for _, id := range ids {
		r2, outs, err := round1s[id].Proceed(rand.Reader)
		require.NoError(t, err)
		round2s[id] = r2
		shareMsgs[id] = outs
	}
	for _, sender := range ids {
		for _, msg := range shareMsgs[sender] {
			recipient := *msg.Receiver
			require.NoError(t, round2s[recipient].AddShare(sender, msg.Body))
		}
	}
	for _, id := range ids {
		require.True(t, round2s[id].CanProceed())
	}

	out := make(map[tss.ID]LocalKey, n)
	for _, id := range ids {
		final, err := round2s[id].Proceed()
		require.NoError(t, err)
		lk, _ := final.Consume()
		out[id] = lk
	}
	return out
}

func TestKeygenEndToEnd(t *testing.T) {
	keys := runKeygen(t, 5, 2)
	var Y group.Point
	for id, lk := range keys {
		if Y.IsInfinity() {
			Y = lk.Shared.Y
		}
		require.True(t, lk.Shared.Y.Equal(Y), "party %d disagrees on joint key", id)
		require.Equal(t, 5, lk.N)
		require.Equal(t, 2, lk.T)
	}
}

func TestThreeOfFiveKeygen(t *testing.T) {
	keys := runKeygen(t, 5, 2)
	require.Len(t, keys, 5)
	first := keys[1].Shared.Y
	for id, lk := range keys {
		require.True(t, lk.Shared.Y.Equal(first), "party %d public key mismatch", id)
	}
}

func TestRound1RejectsTamperedPoint(t *testing.T) {
	n, threshold := 5, 2
	ids := partiesOf(n)

	round0s := make(map[tss.ID]*Round0, n)
	for _, id := range ids {
		r0, err := NewRound0(tss.Parameters{SelfID: id, Parties: ids, Threshold: threshold})
		require.NoError(t, err)
		round0s[id] = r0
	}

	round1s := make(map[tss.ID]*Round1, n)
	broadcasts := make(map[tss.ID]tss.Msg[party.BroadcastPhase1], n)
	for _, id := range ids {
		r1, msg, err := round0s[id].Proceed(rand.Reader)
		require.NoError(t, err)
		round1s[id] = r1
		broadcasts[id] = msg
	}

	// Party 2 transmits a different y_2, keeping comm/decom fixed.
	tampered := broadcasts[2]
	otherKeys, err := party.Phase1Create(99, rand.Reader)
	require.NoError(t, err)
	tampered.Body.Yi = otherKeys.Yi
	broadcasts[2] = tampered

	for _, recipient := range ids {
		if recipient == 2 {
			continue
		}
		for _, sender := range ids {
			if sender == recipient {
				continue
			}
			require.NoError(t, round1s[recipient].Add(sender, broadcasts[sender].Body))
		}
	}

	for _, recipient := range ids {
		if recipient == 2 {
			continue
		}
		_, _, err := round1s[recipient].Proceed(rand.Reader)
		require.Error(t, err)
		var tssErr *tss.Error
		require.ErrorAs(t, err, &tssErr)
		require.Equal(t, tss.KindInvalidCommitment, tssErr.Kind)
	}
}

func TestRound2RejectsTamperedShare(t *testing.T) {
	n, threshold := 5, 2
	keys := runPartialKeygenToRound2(t, n, threshold)

	ids := partiesOf(n)
	round2s := make(map[tss.ID]*Round2, n)
	shareMsgs := make(map[tss.ID][]tss.Msg[ShareMsg], n)
	for _, id := range ids {
		r2, outs, err := keys.round1s[id].Proceed(rand.Reader)
		require.NoError(t, err)
		round2s[id] = r2
		shareMsgs[id] = outs
	}

	// Dealer 2 sends party 3 a random scalar instead of its real share.
	for _, msg := range shareMsgs[2] {
		if *msg.Receiver == 3 {
			bogus, err := group.RandScalar(rand.Reader)
			require.NoError(t, err)
			msg.Body.Share = bogus
		}
		require.NoError(t, round2s[*msg.Receiver].AddShare(2, msg.Body))
	}
	for _, sender := range ids {
		if sender == 2 {
			continue
		}
		for _, msg := range shareMsgs[sender] {
			require.NoError(t, round2s[*msg.Receiver].AddShare(sender, msg.Body))
		}
	}

	_, err := round2s[3].Proceed()
	require.Error(t, err)
	var tssErr *tss.Error
	require.ErrorAs(t, err, &tssErr)
	require.Equal(t, tss.KindInvalidSS, tssErr.Kind)

	_, err = round2s[4].Proceed()
	require.NoError(t, err)
}

type partialKeygen struct {
	round1s map[tss.ID]*Round1
}

func runPartialKeygenToRound2(t *testing.T, n, threshold int) partialKeygen {
	t.Helper()
	ids := partiesOf(n)

	round0s := make(map[tss.ID]*Round0, n)
	for _, id := range ids {
		r0, err := NewRound0(tss.Parameters{SelfID: id, Parties: ids, Threshold: threshold})
		require.NoError(t, err)
		round0s[id] = r0
	}
	round1s := make(map[tss.ID]*Round1, n)
	broadcasts := make(map[tss.ID]tss.Msg[party.BroadcastPhase1], n)
	for _, id := range ids {
		r1, msg, err := round0s[id].Proceed(rand.Reader)
		require.NoError(t, err)
		round1s[id] = r1
		broadcasts[id] = msg
	}
	for _, recipient := range ids {
		for _, sender := range ids {
			if sender == recipient {
				continue
			}
			require.NoError(t, round1s[recipient].Add(sender, broadcasts[sender].Body))
		}
	}
	return partialKeygen{round1s: round1s}
}
