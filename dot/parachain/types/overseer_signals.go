// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import (
	"errors"

	"github.com/ChainSafe/malus/lib/common"
)

// ErrUnknownOverseerMessage is logged by subsystems receiving a message
// type they do not handle.
var ErrUnknownOverseerMessage = errors.New("unknown overseer message type")

// OverseerSignal is a lifecycle signal broadcast by the overseer to every subsystem.
// It is one of ActiveLeavesUpdateSignal, BlockFinalizedSignal or ConcludeSignal.
type OverseerSignal interface {
	isOverseerSignal()
}

// ActivatedLeaf is a parachain head which we care to work on.
type ActivatedLeaf struct {
	Hash   common.Hash
	Number uint32
}

// ActiveLeavesUpdateSignal changes in the set of active leaves:  the parachain heads which we care to work on.
//
// note: activated field indicates deltas, not complete sets.
type ActiveLeavesUpdateSignal struct {
	Activated *ActivatedLeaf
	// Relay chain block hashes no longer of interest.
	Deactivated []common.Hash
}

// BlockFinalizedSignal is used to inform subsystems of a finalized block.
type BlockFinalizedSignal struct {
	Hash        common.Hash
	BlockNumber uint32
}

// ConcludeSignal asks subsystems to conclude and shut down.
type ConcludeSignal struct{}

func (ActiveLeavesUpdateSignal) isOverseerSignal() {}
func (BlockFinalizedSignal) isOverseerSignal()     {}
func (ConcludeSignal) isOverseerSignal()           {}
