// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	"errors"
	"testing"
	"time"

	"github.com/ChainSafe/malus/dot/parachain/messages"
	"github.com/ChainSafe/malus/dot/parachain/overseer"
	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
	"github.com/ChainSafe/malus/dot/parachain/util"
	"github.com/ChainSafe/malus/lib/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRelayParent = common.Hash{0xaa}

type backingContext = overseer.MockableContext[messages.CandidateBackingMessage, messages.CandidateBackingOutgoing]

func newTestBacking(t *testing.T, actions ...func(messages.CandidateBackingOutgoing) bool) *backingContext {
	t.Helper()

	mctx := overseer.NewMockableContext[messages.CandidateBackingMessage, messages.CandidateBackingOutgoing](t)
	mctx.ExpectActions(actions...)
	mctx.Start(New(time.Second))
	mctx.ReceiveSignal(parachaintypes.ActiveLeavesUpdateSignal{
		Activated: &parachaintypes.ActivatedLeaf{Hash: testRelayParent, Number: 25},
	})
	t.Cleanup(func() {
		require.NoError(t, mctx.Stop())
	})
	return mctx
}

func newSecond(t *testing.T, blockData string) messages.Second {
	t.Helper()

	receipt, pov, err := util.NewCandidate(1, testRelayParent, []byte(blockData))
	require.NoError(t, err)
	return messages.Second{RelayParent: testRelayParent, CandidateReceipt: receipt, PoV: pov}
}

func getBackedCandidates(t *testing.T, mctx *backingContext) messages.BackedCandidates {
	t.Helper()

	msg := messages.NewGetBackedCandidates()
	mctx.ReceiveMessage(msg)
	select {
	case res := <-msg.Ch:
		return res
	case <-time.After(time.Second):
		require.FailNow(t, "timed out getting backed candidates")
	}
	return messages.BackedCandidates{}
}

func storeAction(err error) func(messages.CandidateBackingOutgoing) bool {
	return func(msg messages.CandidateBackingOutgoing) bool {
		store, ok := msg.(messages.StoreAvailableData)
		if !ok {
			return false
		}
		store.Sender <- err
		return true
	}
}

func validateAction(result parachaintypes.ValidationResult) func(messages.CandidateBackingOutgoing) bool {
	return func(msg messages.CandidateBackingOutgoing) bool {
		validate, ok := msg.(messages.ValidateFromExhaustive)
		if !ok {
			return false
		}
		validate.Respond(parachaintypes.OverseerFuncRes[parachaintypes.ValidationResult]{Data: result})
		return true
	}
}

func TestCandidateBacking_secondValidCandidate(t *testing.T) {
	t.Parallel()

	second := newSecond(t, "valid")
	mctx := newTestBacking(t,
		func(msg messages.CandidateBackingOutgoing) bool {
			store, ok := msg.(messages.StoreAvailableData)
			if !ok || store.CandidateHash != second.CandidateReceipt.Hash() ||
				store.AvailableData.RelayParent != testRelayParent {
				return false
			}
			store.Sender <- nil
			return true
		},
		validateAction(parachaintypes.NewValidResult()),
	)

	mctx.ReceiveMessage(second)

	require.Eventually(t, func() bool {
		return len(getBackedCandidates(t, mctx).Backed) == 1
	}, time.Second, 10*time.Millisecond)

	backed := getBackedCandidates(t, mctx)
	assert.Equal(t, []messages.BackedCandidate{{
		RelayParent:      testRelayParent,
		CandidateReceipt: second.CandidateReceipt,
	}}, backed.Backed)
	assert.Empty(t, backed.Rejected)
	assert.Equal(t, []string{"validate-and-make-available"}, mctx.Spawned())
}

func TestCandidateBacking_secondInvalidCandidate(t *testing.T) {
	t.Parallel()

	second := newSecond(t, "invalid")
	statements := make(chan messages.IssueLocalStatement, 1)
	mctx := newTestBacking(t,
		storeAction(nil),
		validateAction(parachaintypes.NewInvalidResult(parachaintypes.ParaHeadHashMismatch)),
		func(msg messages.CandidateBackingOutgoing) bool {
			statement, ok := msg.(messages.IssueLocalStatement)
			if !ok {
				return false
			}
			statements <- statement
			return true
		},
	)

	mctx.ReceiveMessage(second)

	select {
	case statement := <-statements:
		assert.Equal(t, messages.IssueLocalStatement{
			Session:          2,
			CandidateHash:    second.CandidateReceipt.Hash(),
			CandidateReceipt: second.CandidateReceipt,
			Valid:            false,
		}, statement)
	case <-time.After(time.Second):
		require.FailNow(t, "timed out waiting for the invalid statement")
	}

	backed := getBackedCandidates(t, mctx)
	assert.Empty(t, backed.Backed)
	assert.Equal(t, []parachaintypes.CandidateHash{second.CandidateReceipt.Hash()}, backed.Rejected)
}

func TestCandidateBacking_storeFailure(t *testing.T) {
	t.Parallel()

	second := newSecond(t, "unstorable")
	mctx := newTestBacking(t,
		storeAction(errors.New("disk full")),
		storeAction(nil),
		validateAction(parachaintypes.NewValidResult()),
	)

	mctx.ReceiveMessage(second)
	require.Eventually(t, func() bool {
		return len(mctx.MockSender().Sent()) == 1 && len(mctx.Spawned()) == 1
	}, time.Second, 10*time.Millisecond)

	// the candidate is forgotten after the failure and can be seconded again
	require.Eventually(t, func() bool {
		mctx.ReceiveMessage(second)
		return len(getBackedCandidates(t, mctx).Backed) == 1
	}, time.Second, 20*time.Millisecond)
}

func TestCandidateBacking_unknownRelayParent(t *testing.T) {
	t.Parallel()

	mctx := newTestBacking(t)

	second := newSecond(t, "unknown")
	second.RelayParent = common.Hash{0xbb}
	mctx.ReceiveMessage(second)

	backed := getBackedCandidates(t, mctx)
	assert.Empty(t, backed.Backed)
	assert.Empty(t, mctx.MockSender().Sent())
	assert.Empty(t, mctx.Spawned())
}

func TestCandidateBacking_ProcessActiveLeavesUpdateSignal(t *testing.T) {
	t.Parallel()

	leafA := common.Hash{0x0a}
	leafB := common.Hash{0x0b}
	validatedHash := parachaintypes.CandidateHash{Value: common.Hash{1}}
	pendingHash := parachaintypes.CandidateHash{Value: common.Hash{2}}

	cb := New(0)
	assert.Equal(t, DefaultValidationTimeout, cb.validationTimeout)

	cb.ProcessActiveLeavesUpdateSignal(parachaintypes.ActiveLeavesUpdateSignal{
		Activated: &parachaintypes.ActivatedLeaf{Hash: leafA, Number: 9},
	})
	require.Contains(t, cb.perRelayParent, leafA)
	assert.Equal(t, parachaintypes.SessionIndex(0), cb.perRelayParent[leafA].session)

	cb.perCandidate[validatedHash] = &perCandidateState{relayParent: leafA, validated: true}
	cb.perCandidate[pendingHash] = &perCandidateState{relayParent: leafA}

	cb.ProcessActiveLeavesUpdateSignal(parachaintypes.ActiveLeavesUpdateSignal{
		Activated:   &parachaintypes.ActivatedLeaf{Hash: leafB, Number: 10},
		Deactivated: []common.Hash{leafA},
	})
	assert.NotContains(t, cb.perRelayParent, leafA)
	require.Contains(t, cb.perRelayParent, leafB)
	assert.Equal(t, parachaintypes.SessionIndex(1), cb.perRelayParent[leafB].session)

	assert.NotContains(t, cb.perCandidate, validatedHash)
	assert.Contains(t, cb.perCandidate, pendingHash)
}
