// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package messages

import (
	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
	"github.com/ChainSafe/malus/lib/common"
)

// CandidateBackingMessage is a message handled by the candidate backing subsystem.
type CandidateBackingMessage interface {
	isCandidateBackingMessage()
}

// Second is a message received from the collator side asking to second a candidate.
type Second struct {
	RelayParent      common.Hash
	CandidateReceipt parachaintypes.CandidateReceipt
	PoV              parachaintypes.PoV
}

// BackedCandidate is a candidate which got enough validity votes to be backed.
type BackedCandidate struct {
	RelayParent      common.Hash
	CandidateReceipt parachaintypes.CandidateReceipt
}

// BackedCandidates is the response to GetBackedCandidates.
type BackedCandidates struct {
	Backed []BackedCandidate
	// Rejected are the candidates found invalid when seconding.
	Rejected []parachaintypes.CandidateHash
}

// GetBackedCandidates requests the candidates backed and rejected so far.
type GetBackedCandidates struct {
	Ch chan BackedCandidates
}

// NewGetBackedCandidates returns a GetBackedCandidates with a buffered response channel.
func NewGetBackedCandidates() GetBackedCandidates {
	return GetBackedCandidates{Ch: make(chan BackedCandidates, 1)}
}

func (Second) isCandidateBackingMessage()              {}
func (GetBackedCandidates) isCandidateBackingMessage() {}
