// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	"context"
	"fmt"

	"github.com/ChainSafe/malus/dot/parachain/messages"
	"github.com/ChainSafe/malus/dot/parachain/overseer"
	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
	"github.com/ChainSafe/malus/lib/common"
)

// validateAndMakeAvailable stores the available data of the candidate, validates it
// and records the outcome. An invalid candidate is reported to the dispute coordinator.
func (cb *CandidateBacking) validateAndMakeAvailable(ctx context.Context,
	sender overseer.SubsystemSender[messages.CandidateBackingOutgoing], session parachaintypes.SessionIndex,
	msg messages.Second) {
	ctx, cancel := context.WithTimeout(ctx, cb.validationTimeout)
	defer cancel()

	candidateHash := msg.CandidateReceipt.Hash()

	err := storeAvailableData(ctx, sender, candidateHash, msg)
	if err != nil {
		logger.Errorf("making candidate %s available: %s", candidateHash, err)
		cb.noteValidationFailure(candidateHash, msg.RelayParent)
		return
	}

	validate := messages.NewValidateFromExhaustive(msg.CandidateReceipt, msg.PoV)
	err = sender.SendMessage(ctx, validate)
	if err != nil {
		logger.Errorf("requesting validation of candidate %s: %s", candidateHash, err)
		cb.noteValidationFailure(candidateHash, msg.RelayParent)
		return
	}

	var res parachaintypes.OverseerFuncRes[parachaintypes.ValidationResult]
	select {
	case res = <-validate.Ch:
	case <-ctx.Done():
		logger.Errorf("validating candidate %s: %s", candidateHash, ctx.Err())
		cb.noteValidationFailure(candidateHash, msg.RelayParent)
		return
	}
	if res.Err != nil {
		logger.Errorf("validating candidate %s: %s", candidateHash, res.Err)
		cb.noteValidationFailure(candidateHash, msg.RelayParent)
		return
	}

	if res.Data.IsValid() {
		cb.noteBacked(candidateHash, msg)
		return
	}

	logger.Infof("candidate %s is %s, issuing an invalid statement", candidateHash, res.Data)
	// the statement is queued before the candidate is reported as rejected
	err = sender.SendMessage(ctx, messages.IssueLocalStatement{
		Session:          session,
		CandidateHash:    candidateHash,
		CandidateReceipt: msg.CandidateReceipt,
		Valid:            false,
	})
	if err != nil {
		logger.Errorf("issuing invalid statement for candidate %s: %s", candidateHash, err)
	}
	cb.noteRejected(candidateHash, msg.RelayParent)
}

func storeAvailableData(ctx context.Context, sender overseer.SubsystemSender[messages.CandidateBackingOutgoing],
	candidateHash parachaintypes.CandidateHash, msg messages.Second) error {
	store := messages.StoreAvailableData{
		CandidateHash: candidateHash,
		AvailableData: messages.AvailableData{
			PoV:         msg.PoV,
			RelayParent: msg.RelayParent,
		},
		Sender: make(chan error, 1),
	}
	err := sender.SendMessage(ctx, store)
	if err != nil {
		return fmt.Errorf("%w: %w", errStoringData, err)
	}

	select {
	case err = <-store.Sender:
		if err != nil {
			return fmt.Errorf("%w: %w", errStoringData, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", errStoringData, ctx.Err())
	}
}

func (cb *CandidateBacking) noteBacked(candidateHash parachaintypes.CandidateHash, msg messages.Second) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.doneValidating(candidateHash, msg.RelayParent)
	if rpState, ok := cb.perRelayParent[msg.RelayParent]; ok {
		rpState.backed[candidateHash] = true
	}
	cb.backed = append(cb.backed, messages.BackedCandidate{
		RelayParent:      msg.RelayParent,
		CandidateReceipt: msg.CandidateReceipt,
	})
	logger.Debugf("candidate %s backed", candidateHash)
}

func (cb *CandidateBacking) noteRejected(candidateHash parachaintypes.CandidateHash, relayParent common.Hash) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.doneValidating(candidateHash, relayParent)
	cb.rejected = append(cb.rejected, candidateHash)
}

// noteValidationFailure forgets the candidate so it can be seconded again.
func (cb *CandidateBacking) noteValidationFailure(candidateHash parachaintypes.CandidateHash, relayParent common.Hash) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.doneValidating(candidateHash, relayParent)
	delete(cb.perCandidate, candidateHash)
}

func (cb *CandidateBacking) doneValidating(candidateHash parachaintypes.CandidateHash, relayParent common.Hash) {
	if rpState, ok := cb.perRelayParent[relayParent]; ok {
		delete(rpState.awaitingValidation, candidateHash)
	}
	if pcState, ok := cb.perCandidate[candidateHash]; ok {
		pcState.validated = true
	}
}
