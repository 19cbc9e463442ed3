// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package node

import (
	"context"
	"testing"
	"time"

	"github.com/ChainSafe/malus/dot/parachain/malus/variants"
	"github.com/ChainSafe/malus/dot/parachain/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNode(t *testing.T, variantCfg variants.Config) *Node {
	t.Helper()

	variant, err := variants.New(variantCfg)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Candidates = 3
	cfg.Interval = time.Millisecond
	cfg.Timeout = 5 * time.Second
	cfg.ParticipationTimeout = time.Second

	node, err := NewNode(cfg, variant)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, node.Stop())
	})
	return node
}

func TestNode_Run(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		variantCfg    variants.Config
		backed        int
		rejected      int
		stored        int
		concludedFor  int
		concludedAgst int
	}{
		"honest": {
			variantCfg: variants.Config{Name: variants.Honest},
			backed:     3,
			stored:     3,
		},
		"back_garbage_candidate": {
			variantCfg: variants.Config{Name: variants.BackGarbage},
			backed:     3,
			stored:     3,
		},
		"suggest_garbage_candidate": {
			variantCfg: variants.Config{Name: variants.SuggestGarbage},
			backed:     3,
			stored:     3,
		},
		"dispute_ancestor": {
			variantCfg: variants.Config{
				Name:       variants.DisputeAncestor,
				Percentage: 100,
			},
			rejected:     3,
			stored:       3,
			concludedFor: 3,
		},
		"dispute_ancestor_never": {
			variantCfg: variants.Config{
				Name:       variants.DisputeAncestor,
				Percentage: 0,
			},
			backed: 3,
			stored: 3,
		},
		"drop_dispute_statements": {
			variantCfg: variants.Config{Name: variants.DropDisputeStatements},
			backed:     3,
			stored:     3,
		},
	}

	for name, testCase := range testCases {
		testCase := testCase
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			node := newTestNode(t, testCase.variantCfg)
			require.NoError(t, node.Start())

			summary, err := node.Run(context.Background())
			require.NoError(t, err)

			assert.Equal(t, node.RunID().String(), summary.RunID)
			assert.Equal(t, 3, summary.Candidates)
			assert.Equal(t, testCase.backed, summary.Backed)
			assert.Equal(t, testCase.rejected, summary.Rejected)
			assert.Equal(t, testCase.stored, summary.Stored)
			assert.Len(t, summary.Disputes, testCase.concludedFor+testCase.concludedAgst)
			assert.Equal(t, testCase.concludedFor, summary.Concluded(messages.DisputeStatusConcludedFor))
			assert.Equal(t, testCase.concludedAgst, summary.Concluded(messages.DisputeStatusConcludedAgainst))
			assert.Zero(t, summary.Concluded(messages.DisputeStatusActive))
		})
	}
}

func TestNode_RunNotStarted(t *testing.T) {
	t.Parallel()

	node := newTestNode(t, variants.Config{Name: variants.Honest})

	_, err := node.Run(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestSummary_String(t *testing.T) {
	t.Parallel()

	summary := Summary{
		RunID:      "run",
		Variant:    variants.DisputeAncestor,
		Candidates: 2,
		Rejected:   2,
		Stored:     2,
		Disputes: []messages.Dispute{
			{Status: messages.DisputeStatusConcludedFor},
			{Status: messages.DisputeStatusActive},
		},
	}

	expected := "run run with variant dispute-ancestor\n" +
		"candidates: 2, backed: 0, rejected: 2, stored: 2\n" +
		"disputes: 2, concluded for: 1, concluded against: 0, active: 1"
	assert.Equal(t, expected, summary.String())
}
