// Package simulate is an in-process multi-party driver: it owns no
// network, just a set of per-party round machines and the routing between
// them, so the CLI and tests can run a full local keygen or sign without
// duplicating message-fan-out logic.
//
// Grounded on the teacher's test/e2e/e2e_test.go route() helper (gather
// every party's outbound messages, then deliver each to its destinations)
// and luxfi-threshold/pkg/protocol/handler.go's broadcast/P2P queue shape.
// Unlike the teacher's route(), which dispatches sequentially in a
// for-range loop inside a test, each party's per-round Proceed here runs
// concurrently via errgroup.Group — the parties are independent compute,
// so there is no reason to serialize them within a round. Every goroutine
// reports its result back over a channel rather than writing into a shared
// map directly (concurrent map writes on distinct keys still race), and the
// maps are populated afterwards in a single-threaded pass over that channel.
package simulate

import (
	"context"
	"crypto/rand"

	"golang.org/x/sync/errgroup"

	"github.com/smallyu/go-schnorr-tss/internal/keygen"
	"github.com/smallyu/go-schnorr-tss/internal/party"
	"github.com/smallyu/go-schnorr-tss/internal/sign"
	"github.com/smallyu/go-schnorr-tss/pkg/group"
	"github.com/smallyu/go-schnorr-tss/pkg/tss"
)

func idRange(n int) []tss.ID {
	out := make([]tss.ID, n)
	for i := range out {
		out[i] = tss.ID(i + 1)
	}
	return out
}

type keygenRound1Result struct {
	round *keygen.Round1
	msg   tss.Msg[party.BroadcastPhase1]
}

type keygenRound2Result struct {
	round *keygen.Round2
	outs  []tss.Msg[keygen.ShareMsg]
}

// RunKeygen drives n parties through keygen Round0->Round2 concurrently per
// round, returning every party's LocalKey.
func RunKeygen(ctx context.Context, n, threshold int) (map[tss.ID]keygen.LocalKey, error) {
	ids := idRange(n)

	round0s := make(map[tss.ID]*keygen.Round0, n)
	for _, id := range ids {
		r0, err := keygen.NewRound0(tss.Parameters{SelfID: id, Parties: ids, Threshold: threshold})
		if err != nil {
			return nil, err
		}
		round0s[id] = r0
	}

	r1Results, err := collectConcurrently(ctx, ids, func(id tss.ID) (keygenRound1Result, error) {
		r1, msg, err := round0s[id].Proceed(rand.Reader)
		if err != nil {
			return keygenRound1Result{}, err
		}
		return keygenRound1Result{round: r1, msg: msg}, nil
	})
	if err != nil {
		return nil, err
	}
	round1s := make(map[tss.ID]*keygen.Round1, n)
	broadcasts := make(map[tss.ID]tss.Msg[party.BroadcastPhase1], n)
	for id, res := range r1Results {
		round1s[id] = res.round
		broadcasts[id] = res.msg
	}
	if err := deliverBroadcasts(ids, broadcasts, func(recipient, sender tss.ID) error {
		return round1s[recipient].Add(sender, broadcasts[sender].Body)
	}); err != nil {
		return nil, err
	}

	r2Results, err := collectConcurrently(ctx, ids, func(id tss.ID) (keygenRound2Result, error) {
		r2, outs, err := round1s[id].Proceed(rand.Reader)
		if err != nil {
			return keygenRound2Result{}, err
		}
		return keygenRound2Result{round: r2, outs: outs}, nil
	})
	if err != nil {
		return nil, err
	}
	round2s := make(map[tss.ID]*keygen.Round2, n)
	shareMsgs := make(map[tss.ID][]tss.Msg[keygen.ShareMsg], n)
	for id, res := range r2Results {
		round2s[id] = res.round
		shareMsgs[id] = res.outs
	}
	for _, sender := range ids {
		for _, msg := range shareMsgs[sender] {
			if err := round2s[*msg.Receiver].AddShare(sender, msg.Body); err != nil {
				return nil, err
			}
		}
	}

	return collectConcurrently(ctx, ids, func(id tss.ID) (keygen.LocalKey, error) {
		final, err := round2s[id].Proceed()
		if err != nil {
			return keygen.LocalKey{}, err
		}
		lk, _ := final.Consume()
		return lk, nil
	})
}

type signRound1Result struct {
	round *sign.Round1
	msg   tss.Msg[party.BroadcastPhase1]
}

type signRound2Result struct {
	round *sign.Round2
	outs  []tss.Msg[sign.ShareMsg]
}

type signRound3Result struct {
	round *sign.Round3
	msg   tss.Msg[party.LocalSig]
}

type signRound4Result struct {
	round *sign.Round4
	msg   tss.Msg[group.Point]
}

type signRound5Result struct {
	round *sign.Round5
	msg   tss.Msg[bool]
}

// RunSign drives the given signer subset through sign Round0->Round5
// concurrently per round, returning every signer's finished Signature.
func RunSign(ctx context.Context, keys map[tss.ID]keygen.LocalKey, signers []tss.ID, message []byte) (map[tss.ID]party.Signature, error) {
	round0s := make(map[tss.ID]*sign.Round0, len(signers))
	for _, id := range signers {
		r0, err := sign.NewRound0(keys[id], signers, message)
		if err != nil {
			return nil, err
		}
		round0s[id] = r0
	}

	r1Results, err := collectConcurrently(ctx, signers, func(id tss.ID) (signRound1Result, error) {
		r1, msg, err := round0s[id].Proceed(rand.Reader)
		if err != nil {
			return signRound1Result{}, err
		}
		return signRound1Result{round: r1, msg: msg}, nil
	})
	if err != nil {
		return nil, err
	}
	round1s := make(map[tss.ID]*sign.Round1, len(signers))
	broadcasts := make(map[tss.ID]tss.Msg[party.BroadcastPhase1], len(signers))
	for id, res := range r1Results {
		round1s[id] = res.round
		broadcasts[id] = res.msg
	}
	if err := deliverBroadcasts(signers, broadcasts, func(recipient, sender tss.ID) error {
		return round1s[recipient].Add(sender, broadcasts[sender].Body)
	}); err != nil {
		return nil, err
	}

	r2Results, err := collectConcurrently(ctx, signers, func(id tss.ID) (signRound2Result, error) {
		r2, outs, err := round1s[id].Proceed(rand.Reader)
		if err != nil {
			return signRound2Result{}, err
		}
		return signRound2Result{round: r2, outs: outs}, nil
	})
	if err != nil {
		return nil, err
	}
	round2s := make(map[tss.ID]*sign.Round2, len(signers))
	shareMsgs := make(map[tss.ID][]tss.Msg[sign.ShareMsg], len(signers))
	for id, res := range r2Results {
		round2s[id] = res.round
		shareMsgs[id] = res.outs
	}
	for _, sender := range signers {
		for _, msg := range shareMsgs[sender] {
			if err := round2s[*msg.Receiver].AddShare(sender, msg.Body); err != nil {
				return nil, err
			}
		}
	}

	r3Results, err := collectConcurrently(ctx, signers, func(id tss.ID) (signRound3Result, error) {
		r3, msg, err := round2s[id].Proceed()
		if err != nil {
			return signRound3Result{}, err
		}
		return signRound3Result{round: r3, msg: msg}, nil
	})
	if err != nil {
		return nil, err
	}
	round3s := make(map[tss.ID]*sign.Round3, len(signers))
	localSigMsgs := make(map[tss.ID]tss.Msg[party.LocalSig], len(signers))
	for id, res := range r3Results {
		round3s[id] = res.round
		localSigMsgs[id] = res.msg
	}
	if err := deliverBroadcasts(signers, localSigMsgs, func(recipient, sender tss.ID) error {
		return round3s[recipient].Add(sender, localSigMsgs[sender].Body)
	}); err != nil {
		return nil, err
	}

	r4Results, err := collectConcurrently(ctx, signers, func(id tss.ID) (signRound4Result, error) {
		r4, msg, err := round3s[id].Proceed()
		if err != nil {
			return signRound4Result{}, err
		}
		return signRound4Result{round: r4, msg: msg}, nil
	})
	if err != nil {
		return nil, err
	}
	round4s := make(map[tss.ID]*sign.Round4, len(signers))
	ciMsgs := make(map[tss.ID]tss.Msg[group.Point], len(signers))
	for id, res := range r4Results {
		round4s[id] = res.round
		ciMsgs[id] = res.msg
	}
	if err := deliverBroadcasts(signers, ciMsgs, func(recipient, sender tss.ID) error {
		return round4s[recipient].Add(sender, ciMsgs[sender].Body)
	}); err != nil {
		return nil, err
	}

	r5Results, err := collectConcurrently(ctx, signers, func(id tss.ID) (signRound5Result, error) {
		r5, msg, err := round4s[id].Proceed()
		if err != nil {
			return signRound5Result{}, err
		}
		return signRound5Result{round: r5, msg: msg}, nil
	})
	if err != nil {
		return nil, err
	}
	round5s := make(map[tss.ID]*sign.Round5, len(signers))
	verdictMsgs := make(map[tss.ID]tss.Msg[bool], len(signers))
	for id, res := range r5Results {
		round5s[id] = res.round
		verdictMsgs[id] = res.msg
	}
	if err := deliverBroadcasts(signers, verdictMsgs, func(recipient, sender tss.ID) error {
		return round5s[recipient].Add(sender, verdictMsgs[sender].Body)
	}); err != nil {
		return nil, err
	}

	return collectConcurrently(ctx, signers, func(id tss.ID) (party.Signature, error) {
		final, err := round5s[id].Proceed()
		if err != nil {
			return party.Signature{}, err
		}
		sig, _ := final.Consume()
		return sig, nil
	})
}

// collectConcurrently runs fn for every id concurrently and returns a map of
// results keyed by id. Each goroutine reports its result over a channel
// rather than writing into a shared map, since concurrent writes to a map
// race even on distinct keys; the map itself is built by a single-threaded
// pass over the channel after every goroutine has finished. The first error
// encountered aborts the whole collection.
func collectConcurrently[T any](ctx context.Context, ids []tss.ID, fn func(tss.ID) (T, error)) (map[tss.ID]T, error) {
	type keyed struct {
		id  tss.ID
		val T
	}
	results := make(chan keyed, len(ids))
	g, _ := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			v, err := fn(id)
			if err != nil {
				return err
			}
			results <- keyed{id: id, val: v}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(results)
	out := make(map[tss.ID]T, len(ids))
	for r := range results {
		out[r.id] = r.val
	}
	return out, nil
}

// deliverBroadcasts feeds every sender's message body to every other
// recipient via add, stopping at the first error.
func deliverBroadcasts[B any](ids []tss.ID, broadcasts map[tss.ID]tss.Msg[B], add func(recipient, sender tss.ID) error) error {
	for _, recipient := range ids {
		for _, sender := range ids {
			if sender == recipient {
				continue
			}
			if err := add(recipient, sender); err != nil {
				return err
			}
		}
	}
	return nil
}
