// Command schnorr-tss is a local demo/benchmark driver for the threshold
// Schnorr protocol: it runs keygen and sign entirely in-process via
// pkg/simulate, and writes/reads party
// key shares as cbor files so a keygen run and a later sign run can be
// separate CLI invocations.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"

	"github.com/smallyu/go-schnorr-tss/internal/keygen"
	"github.com/smallyu/go-schnorr-tss/internal/multisig"
	"github.com/smallyu/go-schnorr-tss/internal/party"
	"github.com/smallyu/go-schnorr-tss/pkg/group"
	"github.com/smallyu/go-schnorr-tss/pkg/simulate"
	"github.com/smallyu/go-schnorr-tss/pkg/tss"
)

var (
	parties   int
	threshold int
	outDir    string

	rootCmd = &cobra.Command{
		Use:   "schnorr-tss",
		Short: "Local driver for the threshold Schnorr DKG/DSign protocol",
		Long: `schnorr-tss runs threshold Schnorr key generation and signing
locally, as a single process simulating every party. It is a demo and
benchmark harness, not a networked signer.`,
	}

	keygenCmd = &cobra.Command{
		Use:   "keygen",
		Short: "Run distributed key generation and write one key-share file per party",
		RunE:  runKeygen,
	}

	signCmd = &cobra.Command{
		Use:   "sign [message]",
		Short: "Sign a message with a subset of parties from a prior keygen run",
		Args:  cobra.ExactArgs(1),
		RunE:  runSign,
	}

	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Run keygen immediately followed by a sign, printing timings and the result",
		RunE:  runSimulate,
	}

	multisigCmd = &cobra.Command{
		Use:   "multisig [message]",
		Short: "Run the n-of-n Schnorr multisig demo (no threshold, no keygen file)",
		Args:  cobra.ExactArgs(1),
		RunE:  runMultisig,
	}

	signers []int
)

func init() {
	keygenCmd.Flags().IntVarP(&parties, "parties", "n", 3, "total number of parties")
	keygenCmd.Flags().IntVarP(&threshold, "threshold", "t", 1, "threshold t (t+1 signers required)")
	keygenCmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory to write party-<id>.cbor key shares into")

	signCmd.Flags().StringVarP(&outDir, "keys", "k", ".", "directory containing party-<id>.cbor key shares")
	signCmd.Flags().IntSliceVarP(&signers, "signers", "s", nil, "party IDs that will sign (required, at least t+1)")
	_ = signCmd.MarkFlagRequired("signers")

	simulateCmd.Flags().IntVarP(&parties, "parties", "n", 5, "total number of parties")
	simulateCmd.Flags().IntVarP(&threshold, "threshold", "t", 2, "threshold t (t+1 signers required)")

	multisigCmd.Flags().IntVarP(&parties, "parties", "n", 3, "number of co-signers")

	rootCmd.AddCommand(keygenCmd, signCmd, simulateCmd, multisigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "schnorr-tss: %v\n", err)
		os.Exit(1)
	}
}

func runKeygen(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	fmt.Printf("running %d-party keygen (threshold=%d, needs %d signers)...\n", parties, threshold, threshold+1)

	keys, err := simulate.RunKeygen(ctx, parties, threshold)
	if err != nil {
		return fmt.Errorf("keygen: %w", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	for id, lk := range keys {
		path := keyFilePath(outDir, id)
		data, err := cbor.Marshal(lk)
		if err != nil {
			return fmt.Errorf("encoding party %d key share: %w", id, err)
		}
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}

	Y := keys[tss.ID(1)].Shared.Y
	fmt.Printf("joint public key: %s\n", hex.EncodeToString(Y.Bytes()))
	fmt.Printf("wrote %d key-share files to %s\n", len(keys), outDir)
	return nil
}

func runSign(cmd *cobra.Command, args []string) error {
	message := []byte(args[0])
	if len(signers) == 0 {
		return fmt.Errorf("at least one --signers ID is required")
	}

	signerIDs := make([]tss.ID, len(signers))
	keys := make(map[tss.ID]keygen.LocalKey, len(signers))
	for i, s := range signers {
		id := tss.ID(s)
		signerIDs[i] = id
		path := keyFilePath(outDir, id)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		var lk keygen.LocalKey
		if err := cbor.Unmarshal(data, &lk); err != nil {
			return fmt.Errorf("decoding %s: %w", path, err)
		}
		keys[id] = lk
	}

	ctx := context.Background()
	fmt.Printf("signing %q with signers %v...\n", message, signerIDs)
	sigs, err := simulate.RunSign(ctx, keys, signerIDs, message)
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}

	Y := keys[signerIDs[0]].Shared.Y
	for id, sig := range sigs {
		ok := party.Verify(Y, sig, message)
		fmt.Printf("  signer %d: R=%s sigma=%s valid=%v\n", id, hex.EncodeToString(sig.R.Bytes()), hex.EncodeToString(sig.Sigma.Bytes()), ok)
		if !ok {
			return fmt.Errorf("signer %d produced an invalid signature", id)
		}
	}
	return nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	fmt.Printf("=== simulate: %d-party keygen (t=%d) then sign ===\n", parties, threshold)

	keys, err := simulate.RunKeygen(ctx, parties, threshold)
	if err != nil {
		return fmt.Errorf("keygen: %w", err)
	}
	Y := keys[tss.ID(1)].Shared.Y
	fmt.Printf("joint public key: %s\n", hex.EncodeToString(Y.Bytes()))

	signerIDs := make([]tss.ID, threshold+1)
	for i := range signerIDs {
		signerIDs[i] = tss.ID(i + 1)
	}
	message := []byte("schnorr-tss simulate")
	sigs, err := simulate.RunSign(ctx, keys, signerIDs, message)
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}
	for id, sig := range sigs {
		if !party.Verify(Y, sig, message) {
			return fmt.Errorf("signer %d produced an invalid signature", id)
		}
	}
	fmt.Printf("%d signers produced a verified signature over %q\n", len(sigs), message)
	return nil
}

func runMultisig(cmd *cobra.Command, args []string) error {
	if parties < 1 {
		return fmt.Errorf("--parties must be at least 1")
	}
	message := []byte(args[0])

	keys := make([]multisig.Keys, parties)
	eph := make([]multisig.EphKey, parties)
	longPubs := make([]group.Point, parties)
	ephPubs := make([]group.Point, parties)
	for i := range keys {
		k, err := multisig.CreateKeys(rand.Reader)
		if err != nil {
			return fmt.Errorf("party %d identity key gen: %w", i, err)
		}
		e, err := multisig.GenCommit(rand.Reader)
		if err != nil {
			return fmt.Errorf("party %d ephemeral key gen: %w", i, err)
		}
		keys[i], eph[i] = k, e
		longPubs[i], ephPubs[i] = k.I.Public, e.KeyPair.Public
	}

	it, xt, e := multisig.ComputeJointCommE(longPubs, ephPubs, message)
	ys := make([]group.Scalar, parties)
	for i := range keys {
		ys[i] = multisig.PartialSign(multisig.Keys{I: keys[i].I, X: eph[i].KeyPair}, e)
	}
	y := multisig.AddSignatureParts(ys)

	if !multisig.Verify(it, xt, y, e) {
		return fmt.Errorf("aggregated multisig signature failed to verify")
	}
	fmt.Printf("%d-of-%d multisig signature over %q verified\n", parties, parties, message)

	tree := multisig.CreateTree(longPubs)
	root := tree.Root()
	for i, pub := range longPubs {
		proof, err := tree.GenProofForPoint(pub)
		if err != nil {
			return fmt.Errorf("party %d participation proof: %w", i, err)
		}
		if !multisig.ValidateProof(proof, root) {
			return fmt.Errorf("party %d participation proof failed to validate", i)
		}
	}
	fmt.Printf("participation proofs for all %d co-signers validated against root %s\n", parties, hex.EncodeToString(root[:]))
	return nil
}

func keyFilePath(dir string, id tss.ID) string {
	return fmt.Sprintf("%s/party-%d.cbor", dir, id)
}
