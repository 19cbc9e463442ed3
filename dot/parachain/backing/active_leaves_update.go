// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
)

// BlocksPerSession is the number of relay chain blocks in a session.
const BlocksPerSession = 10

// ProcessActiveLeavesUpdateSignal starts tracking the activated leaf and
// forgets the deactivated ones.
func (cb *CandidateBacking) ProcessActiveLeavesUpdateSignal(update parachaintypes.ActiveLeavesUpdateSignal) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	for _, deactivated := range update.Deactivated {
		delete(cb.perRelayParent, deactivated)
	}

	cb.removeUnknownRelayParentsFromPerCandidate()

	activatedLeaf := update.Activated
	if activatedLeaf == nil {
		return
	}

	if _, ok := cb.perRelayParent[activatedLeaf.Hash]; ok {
		return
	}

	cb.perRelayParent[activatedLeaf.Hash] = &perRelayParentState{
		relayParent:        activatedLeaf.Hash,
		number:             activatedLeaf.Number,
		session:            parachaintypes.SessionIndex(activatedLeaf.Number / BlocksPerSession),
		awaitingValidation: make(map[parachaintypes.CandidateHash]bool),
		backed:             make(map[parachaintypes.CandidateHash]bool),
	}
}

// removeUnknownRelayParentsFromPerCandidate drops the state of validated
// candidates whose relay parent left the view.
func (cb *CandidateBacking) removeUnknownRelayParentsFromPerCandidate() {
	for candidateHash, pcState := range cb.perCandidate {
		if _, ok := cb.perRelayParent[pcState.relayParent]; !ok && pcState.validated {
			delete(cb.perCandidate, candidateHash)
		}
	}
}
