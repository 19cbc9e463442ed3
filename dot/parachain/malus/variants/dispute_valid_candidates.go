// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package variants

import (
	"github.com/ChainSafe/malus/dot/parachain/malus"
	"github.com/ChainSafe/malus/dot/parachain/messages"
	"github.com/ChainSafe/malus/dot/parachain/overseer"
	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
	"github.com/ChainSafe/malus/lib/common"
	"github.com/OneOfOne/xxhash"
)

// DefaultFakeValidationError is the reason given for candidates found invalid on purpose.
const DefaultFakeValidationError = parachaintypes.InvalidOutputs

// sampler picks percentage% of the candidates. A candidate is always picked
// the same way for a given seed, whatever the order of the requests.
type sampler struct {
	seed       uint64
	percentage uint8
}

func (s sampler) sample(candidateHash common.Hash) bool {
	switch s.percentage {
	case 0:
		return false
	case 100:
		return true
	}
	return xxhash.Checksum64S(candidateHash[:], s.seed)%100 < uint64(s.percentage)
}

// NewDisputeValidCandidates intercepts the candidate validation subsystem and answers
// percentage% of the backing validation requests as invalid with reason, which raises
// disputes against valid candidates. Validation done for disputes is not intercepted.
func NewDisputeValidCandidates(percentage uint8, reason parachaintypes.ReasonForInvalidity, seed int64,
	metrics *malus.Metrics) *malus.FuncInterceptor[messages.CandidateValidationMessage,
	messages.CandidateValidationOutgoing] {
	s := sampler{
		seed:       uint64(seed),
		percentage: percentage,
	}

	return &malus.FuncInterceptor[messages.CandidateValidationMessage, messages.CandidateValidationOutgoing]{
		Name:    string(parachaintypes.CandidateValidation),
		Metrics: metrics,
		Incoming: func(_ overseer.SubsystemSender[messages.CandidateValidationOutgoing],
			msg parachaintypes.FromOrchestra[messages.CandidateValidationMessage],
		) (parachaintypes.FromOrchestra[messages.CandidateValidationMessage], bool) {
			validate, ok := msg.Message.(messages.ValidateFromExhaustive)
			if !ok || !s.sample(validate.CandidateReceipt.Hash().Value) {
				return msg, true
			}

			logger.Infof("disputing candidate %s: %s", validate.CandidateReceipt.Hash(), reason)
			validate.Respond(parachaintypes.OverseerFuncRes[parachaintypes.ValidationResult]{
				Data: parachaintypes.NewInvalidResult(reason),
			})
			return msg, false
		},
	}
}
