// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package util

import (
	"fmt"

	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
	"github.com/ChainSafe/malus/lib/common"
)

// NewCandidate builds a candidate for the block data given, with a PoV
// holding the compressed block data and a descriptor matching it.
func NewCandidate(paraID parachaintypes.ParaID, relayParent common.Hash, blockData []byte) (
	parachaintypes.CandidateReceipt, parachaintypes.PoV, error) {
	compressed, err := CompressPoV(blockData)
	if err != nil {
		return parachaintypes.CandidateReceipt{}, parachaintypes.PoV{}, fmt.Errorf("compressing PoV: %w", err)
	}
	pov := parachaintypes.PoV{BlockData: compressed}

	paraHead, err := common.Blake2bHash(blockData)
	if err != nil {
		return parachaintypes.CandidateReceipt{}, parachaintypes.PoV{}, fmt.Errorf("hashing para head: %w", err)
	}

	receipt := parachaintypes.CandidateReceipt{
		Descriptor: parachaintypes.CandidateDescriptor{
			ParaID:      paraID,
			RelayParent: relayParent,
			PovHash:     pov.Hash(),
			ParaHead:    paraHead,
		},
	}
	return receipt, pov, nil
}

// ReplacePoV returns the receipt with its PoV hash updated to match pov.
// The para head is kept, so the candidate no longer validates.
func ReplacePoV(receipt parachaintypes.CandidateReceipt, pov parachaintypes.PoV) parachaintypes.CandidateReceipt {
	receipt.Descriptor.PovHash = pov.Hash()
	return receipt
}
