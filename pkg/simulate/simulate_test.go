package simulate

import (
	"context"
	"testing"

	"github.com/smallyu/go-schnorr-tss/internal/party"
	"github.com/smallyu/go-schnorr-tss/pkg/tss"
	"github.com/stretchr/testify/require"
)

func TestRunKeygenThenRunSignEndToEnd(t *testing.T) {
	ctx := context.Background()
	keys, err := RunKeygen(ctx, 5, 2)
	require.NoError(t, err)
	require.Len(t, keys, 5)

	Y := keys[1].Shared.Y
	for id, lk := range keys {
		require.True(t, lk.Shared.Y.Equal(Y), "party %d disagrees on joint key", id)
	}

	signers := []tss.ID{1, 3, 4}
	message := []byte("driven by pkg/simulate")
	sigs, err := RunSign(ctx, keys, signers, message)
	require.NoError(t, err)
	require.Len(t, sigs, len(signers))

	for id, sig := range sigs {
		require.True(t, party.Verify(Y, sig, message), "signer %d produced an unverifiable signature", id)
	}
}
