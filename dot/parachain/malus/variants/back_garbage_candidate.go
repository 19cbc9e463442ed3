// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package variants

import (
	"sync/atomic"

	"github.com/ChainSafe/malus/dot/parachain/malus"
	"github.com/ChainSafe/malus/dot/parachain/messages"
	"github.com/ChainSafe/malus/dot/parachain/overseer"
	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
)

// BackGarbageCandidate intercepts the candidate validation subsystem and answers
// every validation request as valid without validating anything.
type BackGarbageCandidate struct {
	malus.Passthrough[messages.CandidateValidationMessage, messages.CandidateValidationOutgoing]

	metrics   *malus.Metrics
	swallowed atomic.Int64
}

// NewBackGarbageCandidate returns a BackGarbageCandidate interceptor.
func NewBackGarbageCandidate(metrics *malus.Metrics) *BackGarbageCandidate {
	return &BackGarbageCandidate{metrics: metrics}
}

func (b *BackGarbageCandidate) InterceptIncoming(
	_ overseer.SubsystemSender[messages.CandidateValidationOutgoing],
	msg parachaintypes.FromOrchestra[messages.CandidateValidationMessage],
) (parachaintypes.FromOrchestra[messages.CandidateValidationMessage], bool) {
	valid := parachaintypes.OverseerFuncRes[parachaintypes.ValidationResult]{Data: parachaintypes.NewValidResult()}

	switch m := msg.Message.(type) {
	case messages.ValidateFromExhaustive:
		logger.Debugf("backing garbage candidate %s", m.CandidateReceipt.Hash())
		m.Respond(valid)
	case messages.ValidateFromChainState:
		logger.Debugf("approving garbage candidate %s", m.CandidateReceipt.Hash())
		m.Respond(valid)
	default:
		b.metrics.Observe(string(parachaintypes.CandidateValidation), malus.DirectionIncoming, malus.DecisionPassed)
		return msg, true
	}

	b.swallowed.Add(1)
	b.metrics.Observe(string(parachaintypes.CandidateValidation), malus.DirectionIncoming, malus.DecisionDropped)
	return msg, false
}

// Swallowed returns the number of validation requests answered.
func (b *BackGarbageCandidate) Swallowed() int64 {
	return b.swallowed.Load()
}
