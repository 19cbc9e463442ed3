// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package dispute

import (
	"testing"

	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
	"github.com/ChainSafe/malus/lib/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequest(b byte, blockNumber *uint32) (candidateComparator, *participationRequest) {
	candidateHash := parachaintypes.CandidateHash{Value: common.Hash{b}}
	return candidateComparator{relayParentBlockNumber: blockNumber, candidateHash: candidateHash},
		&participationRequest{candidateHash: candidateHash}
}

func uint32Ptr(n uint32) *uint32 { return &n }

func Test_participationItem_Less(t *testing.T) {
	t.Parallel()

	item := func(b byte, blockNumber *uint32) *participationItem {
		comparator, request := newTestRequest(b, blockNumber)
		return &participationItem{comparator: comparator, request: request}
	}

	testCases := map[string]struct {
		a, b     *participationItem
		expected bool
	}{
		"both_unknown_by_hash":    {a: item(1, nil), b: item(2, nil), expected: true},
		"both_unknown_by_hash_gt": {a: item(2, nil), b: item(1, nil), expected: false},
		"known_before_unknown":    {a: item(9, uint32Ptr(5)), b: item(1, nil), expected: true},
		"unknown_after_known":     {a: item(1, nil), b: item(9, uint32Ptr(5)), expected: false},
		"older_block_first":       {a: item(9, uint32Ptr(1)), b: item(1, uint32Ptr(2)), expected: true},
		"same_block_by_hash":      {a: item(1, uint32Ptr(2)), b: item(2, uint32Ptr(2)), expected: true},
		"same_block_same_hash":    {a: item(1, uint32Ptr(2)), b: item(1, uint32Ptr(2)), expected: false},
	}

	for name, testCase := range testCases {
		testCase := testCase
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, testCase.expected, testCase.a.Less(testCase.b))
		})
	}
}

func Test_queueHandler(t *testing.T) {
	t.Parallel()

	q := newQueue()
	require.Nil(t, q.dequeue())

	for _, b := range []byte{3, 1, 2} {
		comparator, request := newTestRequest(b, uint32Ptr(uint32(b)))
		require.NoError(t, q.queue(comparator, request, participationPriorityBestEffort))
	}
	assert.Equal(t, 3, q.len(participationPriorityBestEffort))

	// bumping a best effort request moves it to the priority queue
	comparator, request := newTestRequest(3, uint32Ptr(3))
	require.NoError(t, q.queue(comparator, request, participationPriorityHigh))
	assert.Equal(t, 2, q.len(participationPriorityBestEffort))
	assert.Equal(t, 1, q.len(participationPriorityHigh))

	// queuing with best effort does not demote a priority request
	require.NoError(t, q.queue(comparator, request, participationPriorityBestEffort))
	assert.Equal(t, 2, q.len(participationPriorityBestEffort))

	var order []byte
	for item := q.dequeue(); item != nil; item = q.dequeue() {
		order = append(order, item.request.candidateHash.Value[0])
	}
	assert.Equal(t, []byte{3, 1, 2}, order)
}

func Test_queueHandler_full(t *testing.T) {
	t.Parallel()

	q := newQueue()
	q.bestEffortMaxSize = 1
	q.priorityMaxSize = 1

	comparator, request := newTestRequest(1, nil)
	require.NoError(t, q.queue(comparator, request, participationPriorityBestEffort))
	comparator, request = newTestRequest(2, nil)
	assert.ErrorIs(t, q.queue(comparator, request, participationPriorityBestEffort), errBestEffortQueueFull)

	require.NoError(t, q.queue(comparator, request, participationPriorityHigh))
	comparator, request = newTestRequest(3, nil)
	assert.ErrorIs(t, q.queue(comparator, request, participationPriorityHigh), errPriorityQueueFull)
}
