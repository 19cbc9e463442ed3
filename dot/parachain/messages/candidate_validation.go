// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package messages

import (
	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
)

// CandidateValidationMessage is a message handled by the candidate validation subsystem.
type CandidateValidationMessage interface {
	isCandidateValidationMessage()
}

// ValidateFromExhaustive performs full validation of a candidate with provided parameters.
// It doesn't involve fetching anything from other subsystems.
type ValidateFromExhaustive struct {
	CandidateReceipt parachaintypes.CandidateReceipt
	PoV              parachaintypes.PoV
	Ch               chan parachaintypes.OverseerFuncRes[parachaintypes.ValidationResult]
}

// ValidateFromChainState performs validation of a candidate whose PoV is fetched
// from the availability store.
type ValidateFromChainState struct {
	CandidateReceipt parachaintypes.CandidateReceipt
	Ch               chan parachaintypes.OverseerFuncRes[parachaintypes.ValidationResult]
}

// NewValidateFromExhaustive returns a ValidateFromExhaustive with a buffered response channel.
func NewValidateFromExhaustive(receipt parachaintypes.CandidateReceipt,
	pov parachaintypes.PoV) ValidateFromExhaustive {
	return ValidateFromExhaustive{
		CandidateReceipt: receipt,
		PoV:              pov,
		Ch:               make(chan parachaintypes.OverseerFuncRes[parachaintypes.ValidationResult], 1),
	}
}

// NewValidateFromChainState returns a ValidateFromChainState with a buffered response channel.
func NewValidateFromChainState(receipt parachaintypes.CandidateReceipt) ValidateFromChainState {
	return ValidateFromChainState{
		CandidateReceipt: receipt,
		Ch:               make(chan parachaintypes.OverseerFuncRes[parachaintypes.ValidationResult], 1),
	}
}

// Respond sends the result on the response channel, if any, without blocking.
func (v ValidateFromExhaustive) Respond(res parachaintypes.OverseerFuncRes[parachaintypes.ValidationResult]) {
	respond(v.Ch, res)
}

// Respond sends the result on the response channel, if any, without blocking.
func (v ValidateFromChainState) Respond(res parachaintypes.OverseerFuncRes[parachaintypes.ValidationResult]) {
	respond(v.Ch, res)
}

func (ValidateFromExhaustive) isCandidateValidationMessage() {}
func (ValidateFromChainState) isCandidateValidationMessage() {}
