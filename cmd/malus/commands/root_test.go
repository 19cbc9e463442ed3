// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package commands

import (
	"bytes"
	"testing"

	"github.com/ChainSafe/malus/dot/parachain/malus/variants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCommand(t *testing.T) {
	t.Parallel()

	cmd, err := NewRootCommand()
	require.NoError(t, err)

	for _, name := range variants.Names {
		subCmd, _, err := cmd.Find([]string{string(name)})
		require.NoError(t, err)
		assert.Equal(t, string(name), subCmd.Name())
	}

	disputeAncestor, _, err := cmd.Find([]string{string(variants.DisputeAncestor)})
	require.NoError(t, err)
	assert.NotNil(t, disputeAncestor.Flag("percentage"))
	assert.NotNil(t, disputeAncestor.Flag("fake-validation-error"))

	honest, _, err := cmd.Find([]string{string(variants.Honest)})
	require.NoError(t, err)
	assert.Nil(t, honest.Flag("percentage"))
}

func TestExecVariant(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		args     []string
		contains []string
		errMatch string
	}{
		"honest": {
			args:     []string{"honest", "--candidates", "2", "--interval", "1ms"},
			contains: []string{"with variant honest", "candidates: 2, backed: 2, rejected: 0, stored: 2"},
		},
		"dispute_ancestor": {
			args: []string{"dispute-ancestor", "--candidates", "2", "--interval", "1ms",
				"--percentage", "100", "--fake-validation-error", "pov_hash_mismatch"},
			contains: []string{
				"candidates: 2, backed: 0, rejected: 2, stored: 2",
				"disputes: 2, concluded for: 2, concluded against: 0, active: 0",
			},
		},
		"unknown_fake_validation_error": {
			args:     []string{"dispute-ancestor", "--fake-validation-error", "boom"},
			errMatch: `unknown validation error: "boom"`,
		},
		"invalid_log_level": {
			args:     []string{"honest", "--log", "loud"},
			errMatch: "base config: level is not recognised: loud",
		},
	}

	for name, testCase := range testCases {
		testCase := testCase
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cmd, err := NewRootCommand()
			require.NoError(t, err)

			output := bytes.NewBuffer(nil)
			cmd.SetOut(output)
			cmd.SetErr(bytes.NewBuffer(nil))
			cmd.SetArgs(testCase.args)

			err = cmd.Execute()
			if testCase.errMatch != "" {
				assert.ErrorContains(t, err, testCase.errMatch)
				return
			}
			require.NoError(t, err)
			for _, expected := range testCase.contains {
				assert.Contains(t, output.String(), expected)
			}
		})
	}
}
