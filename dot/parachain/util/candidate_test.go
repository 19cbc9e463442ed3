// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package util

import (
	"testing"

	"github.com/ChainSafe/malus/lib/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCandidate(t *testing.T) {
	t.Parallel()

	blockData := []byte("block data")
	receipt, pov, err := NewCandidate(1000, common.Hash{1}, blockData)
	require.NoError(t, err)

	assert.Equal(t, pov.Hash(), receipt.Descriptor.PovHash)
	assert.Equal(t, common.MustBlake2bHash(blockData), receipt.Descriptor.ParaHead)

	decompressed, err := DecompressPoV(pov.BlockData, MaxPoVSize)
	require.NoError(t, err)
	assert.Equal(t, blockData, decompressed)

	garbage, _, err := NewCandidate(1000, common.Hash{1}, []byte("garbage"))
	require.NoError(t, err)
	_, garbagePoV, err := NewCandidate(1000, common.Hash{1}, []byte("garbage"))
	require.NoError(t, err)

	replaced := ReplacePoV(receipt, garbagePoV)
	assert.Equal(t, garbage.Descriptor.PovHash, replaced.Descriptor.PovHash)
	assert.Equal(t, receipt.Descriptor.ParaHead, replaced.Descriptor.ParaHead)
	assert.NotEqual(t, receipt.Hash(), replaced.Hash())
}
