// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package variants

import (
	"fmt"

	"github.com/ChainSafe/malus/dot/parachain/malus"
	"github.com/ChainSafe/malus/dot/parachain/messages"
	"github.com/ChainSafe/malus/dot/parachain/overseer"
	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
	"github.com/ChainSafe/malus/dot/parachain/util"
	"github.com/google/uuid"
)

// garbagePoV returns a compressed PoV of random block data.
func garbagePoV() (parachaintypes.PoV, error) {
	id := uuid.New()
	compressed, err := util.CompressPoV(id[:])
	if err != nil {
		return parachaintypes.PoV{}, fmt.Errorf("compressing garbage: %w", err)
	}
	return parachaintypes.PoV{BlockData: compressed}, nil
}

// NewSuggestGarbageCandidate intercepts the candidate backing subsystem and replaces
// the PoV of every candidate to second with garbage. The descriptor is updated with
// the hash of the garbage PoV, so only a full validation finds the candidate invalid.
func NewSuggestGarbageCandidate(metrics *malus.Metrics) *malus.FuncInterceptor[messages.CandidateBackingMessage,
	messages.CandidateBackingOutgoing] {
	return &malus.FuncInterceptor[messages.CandidateBackingMessage, messages.CandidateBackingOutgoing]{
		Name:    string(parachaintypes.CandidateBacking),
		Metrics: metrics,
		Incoming: func(_ overseer.SubsystemSender[messages.CandidateBackingOutgoing],
			msg parachaintypes.FromOrchestra[messages.CandidateBackingMessage],
		) (parachaintypes.FromOrchestra[messages.CandidateBackingMessage], bool) {
			second, ok := msg.Message.(messages.Second)
			if !ok {
				return msg, true
			}

			pov, err := garbagePoV()
			if err != nil {
				logger.Errorf("suggesting garbage for candidate %s: %s", second.CandidateReceipt.Hash(), err)
				return msg, true
			}

			original := second.CandidateReceipt.Hash()
			second.PoV = pov
			second.CandidateReceipt = util.ReplacePoV(second.CandidateReceipt, pov)
			logger.Infof("suggesting garbage candidate %s instead of %s", second.CandidateReceipt.Hash(), original)
			return parachaintypes.NewCommunication[messages.CandidateBackingMessage](second), true
		},
	}
}
