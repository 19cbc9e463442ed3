// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package variants

import (
	"context"
	"strings"
	"testing"
	"time"

	candidatevalidation "github.com/ChainSafe/malus/dot/parachain/candidate-validation"
	"github.com/ChainSafe/malus/dot/parachain/malus"
	"github.com/ChainSafe/malus/dot/parachain/messages"
	"github.com/ChainSafe/malus/dot/parachain/overseer"
	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
	"github.com/ChainSafe/malus/dot/parachain/util"
	"github.com/ChainSafe/malus/lib/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validationResult = parachaintypes.OverseerFuncRes[parachaintypes.ValidationResult]

func newTestMetrics(t *testing.T) (*malus.Metrics, *prometheus.Registry) {
	t.Helper()

	registry := prometheus.NewRegistry()
	metrics, err := malus.NewMetrics(registry)
	require.NoError(t, err)
	return metrics, registry
}

func newTestCandidate(t *testing.T, blockData string) (parachaintypes.CandidateReceipt, parachaintypes.PoV) {
	t.Helper()

	receipt, pov, err := util.NewCandidate(7, common.Hash{0x01}, []byte(blockData))
	require.NoError(t, err)
	return receipt, pov
}

func receiveResult(t *testing.T, ch chan validationResult) validationResult {
	t.Helper()

	select {
	case res := <-ch:
		return res
	case <-time.After(time.Second):
		require.FailNow(t, "timed out waiting for validation result")
	}
	return validationResult{}
}

func TestBackGarbageCandidate(t *testing.T) {
	t.Parallel()

	receipt, _ := newTestCandidate(t, "block")
	garbage := parachaintypes.PoV{BlockData: []byte("garbage")}
	interceptor := NewBackGarbageCandidate(nil)

	exhaustive := messages.NewValidateFromExhaustive(receipt, garbage)
	_, ok := interceptor.InterceptIncoming(nil,
		parachaintypes.NewCommunication[messages.CandidateValidationMessage](exhaustive))
	assert.False(t, ok)
	assert.Equal(t, validationResult{Data: parachaintypes.NewValidResult()}, receiveResult(t, exhaustive.Ch))

	chainState := messages.NewValidateFromChainState(receipt)
	_, ok = interceptor.InterceptIncoming(nil,
		parachaintypes.NewCommunication[messages.CandidateValidationMessage](chainState))
	assert.False(t, ok)
	assert.True(t, receiveResult(t, chainState.Ch).Data.IsValid())

	signal := parachaintypes.NewSignal[messages.CandidateValidationMessage](parachaintypes.ConcludeSignal{})
	kept, ok := interceptor.InterceptIncoming(nil, signal)
	assert.True(t, ok)
	assert.Equal(t, signal, kept)

	assert.Equal(t, int64(2), interceptor.Swallowed())
	assert.False(t, interceptor.NeedInterceptOutgoing(messages.QueryAvailableData{}))
}

func TestDisputeValidCandidates(t *testing.T) {
	t.Parallel()

	receipt, pov := newTestCandidate(t, "block")

	testCases := map[string]struct {
		percentage uint8
		swallowed  bool
	}{
		"never":  {percentage: 0},
		"always": {percentage: 100, swallowed: true},
	}

	for name, testCase := range testCases {
		testCase := testCase
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			metrics, _ := newTestMetrics(t)
			interceptor := NewDisputeValidCandidates(testCase.percentage, parachaintypes.BadReturn, 1, metrics)

			exhaustive := messages.NewValidateFromExhaustive(receipt, pov)
			_, ok := interceptor.InterceptIncoming(nil,
				parachaintypes.NewCommunication[messages.CandidateValidationMessage](exhaustive))
			assert.Equal(t, !testCase.swallowed, ok)

			if testCase.swallowed {
				assert.Equal(t, validationResult{Data: parachaintypes.NewInvalidResult(parachaintypes.BadReturn)},
					receiveResult(t, exhaustive.Ch))
			} else {
				assert.Empty(t, exhaustive.Ch)
			}

			// validation for disputes is left alone
			chainState := messages.NewValidateFromChainState(receipt)
			_, ok = interceptor.InterceptIncoming(nil,
				parachaintypes.NewCommunication[messages.CandidateValidationMessage](chainState))
			assert.True(t, ok)
			assert.Empty(t, chainState.Ch)

			stats := interceptor.Stats()
			dropped := int64(0)
			if testCase.swallowed {
				dropped = 1
			}
			assert.Equal(t, dropped, stats.IncomingDropped)
			assert.Equal(t, 2-dropped, stats.IncomingPassed)
		})
	}
}

func Test_sampler(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		percentage uint8
		min, max   int
	}{
		"never":  {percentage: 0, min: 0, max: 0},
		"half":   {percentage: 50, min: 250, max: 750},
		"always": {percentage: 100, min: 1000, max: 1000},
	}

	for name, testCase := range testCases {
		testCase := testCase
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s := sampler{seed: 42, percentage: testCase.percentage}
			const samples = 1000
			sampled := 0
			for i := 0; i < samples; i++ {
				candidateHash := common.MustBlake2bHash([]byte{byte(i), byte(i >> 8)})
				picked := s.sample(candidateHash)
				assert.Equal(t, picked, s.sample(candidateHash))
				if picked {
					sampled++
				}
			}
			assert.GreaterOrEqual(t, sampled, testCase.min)
			assert.LessOrEqual(t, sampled, testCase.max)
		})
	}
}

func TestSuggestGarbageCandidate(t *testing.T) {
	t.Parallel()

	receipt, pov := newTestCandidate(t, "honest block")
	interceptor := NewSuggestGarbageCandidate(nil)

	second := messages.Second{RelayParent: common.Hash{0x01}, CandidateReceipt: receipt, PoV: pov}
	kept, ok := interceptor.InterceptIncoming(nil,
		parachaintypes.NewCommunication[messages.CandidateBackingMessage](second))
	require.True(t, ok)

	garbage, ok := kept.Message.(messages.Second)
	require.True(t, ok)
	assert.NotEqual(t, pov, garbage.PoV)
	assert.Equal(t, garbage.PoV.Hash(), garbage.CandidateReceipt.Descriptor.PovHash)
	assert.Equal(t, receipt.Descriptor.ParaHead, garbage.CandidateReceipt.Descriptor.ParaHead)
	assert.NotEqual(t, receipt.Hash(), garbage.CandidateReceipt.Hash())

	getBacked := messages.NewGetBackedCandidates()
	kept, ok = interceptor.InterceptIncoming(nil,
		parachaintypes.NewCommunication[messages.CandidateBackingMessage](getBacked))
	require.True(t, ok)
	assert.Equal(t, getBacked, kept.Message)

	// an honest validator finds the garbage invalid
	mctx := overseer.NewMockableContext[messages.CandidateValidationMessage, messages.CandidateValidationOutgoing](t)
	candidateValidation, err := candidatevalidation.NewCandidateValidation(0)
	require.NoError(t, err)
	mctx.Start(candidateValidation)
	validate := messages.NewValidateFromExhaustive(garbage.CandidateReceipt, garbage.PoV)
	mctx.ReceiveMessage(validate)
	assert.Equal(t, validationResult{Data: parachaintypes.NewInvalidResult(parachaintypes.ParaHeadHashMismatch)},
		receiveResult(t, validate.Ch))
	require.NoError(t, mctx.Stop())
}

func TestDropOutgoing(t *testing.T) {
	t.Parallel()

	metrics, registry := newTestMetrics(t)
	interceptor := NewDropOutgoing[messages.CandidateBackingMessage](
		string(parachaintypes.CandidateBacking), IsLocalStatement, metrics)

	inner := overseer.NewMockableSender[messages.CandidateBackingOutgoing](t)
	sender := malus.NewInterceptedSender[messages.CandidateBackingOutgoing](
		inner, interceptor, malus.Identity[messages.CandidateBackingOutgoing]())

	store := messages.StoreAvailableData{CandidateHash: parachaintypes.CandidateHash{Value: common.Hash{1}}}
	require.NoError(t, sender.SendMessage(context.Background(), messages.IssueLocalStatement{Valid: false}))
	require.NoError(t, sender.SendMessage(context.Background(), store))
	require.NoError(t, sender.TrySendMessage(messages.IssueLocalStatement{Valid: true}))

	assert.Equal(t, []messages.CandidateBackingOutgoing{store}, inner.Sent())
	assert.Equal(t, malus.Stats{OutgoingPassed: 1, OutgoingDropped: 2}, interceptor.Stats())

	const expected = `
# HELP malus_interceptor_messages_total number of intercepted messages per subsystem, direction and decision
# TYPE malus_interceptor_messages_total counter
malus_interceptor_messages_total{decision="dropped",direction="outgoing",subsystem="CandidateBacking"} 2
malus_interceptor_messages_total{decision="passed",direction="outgoing",subsystem="CandidateBacking"} 1
`
	err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "malus_interceptor_messages_total")
	assert.NoError(t, err)
}

func TestNew(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		cfg        Config
		validation bool
		backing    bool
		errIs      error
	}{
		"default_is_honest":       {cfg: Config{}},
		"honest":                  {cfg: Config{Name: Honest}},
		"back_garbage":            {cfg: Config{Name: BackGarbage}, validation: true},
		"suggest_garbage":         {cfg: Config{Name: SuggestGarbage}, validation: true, backing: true},
		"dispute_ancestor":        {cfg: Config{Name: DisputeAncestor, Percentage: 100}, validation: true},
		"drop_dispute_statements": {cfg: Config{Name: DropDisputeStatements}, backing: true},
		"dispute_ancestor_reason": {
			cfg:        Config{Name: DisputeAncestor, FakeValidationError: "bad_parent"},
			validation: true,
		},
		"unknown_reason": {
			cfg:   Config{Name: DisputeAncestor, FakeValidationError: "unknown"},
			errIs: ErrUnknownValidationError,
		},
		"percentage_too_large": {
			cfg:   Config{Name: DisputeAncestor, Percentage: 101},
			errIs: ErrInvalidPercentage,
		},
		"unknown_variant": {cfg: Config{Name: "evil"}, errIs: ErrUnknownVariant},
	}

	for name, testCase := range testCases {
		testCase := testCase
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			variant, err := New(testCase.cfg)
			assert.ErrorIs(t, err, testCase.errIs)
			if testCase.errIs != nil {
				return
			}

			if testCase.cfg.Name == "" {
				assert.Equal(t, Honest, variant.Name)
			}
			assert.Equal(t, testCase.validation, variant.CandidateValidation != nil)
			assert.Equal(t, testCase.backing, variant.CandidateBacking != nil)
			assert.Nil(t, variant.DisputeCoordinator)
		})
	}
}
