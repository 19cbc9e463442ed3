// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package candidatevalidation

import (
	"context"
	"errors"
	"fmt"

	"github.com/ChainSafe/malus/dot/parachain/messages"
	"github.com/ChainSafe/malus/dot/parachain/overseer"
	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
	"github.com/ChainSafe/malus/dot/parachain/util"
	"github.com/ChainSafe/malus/internal/log"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "parachain-candidate-validation"))

// ErrPoVUnavailable is returned when the PoV of a candidate cannot be fetched
// from the availability store.
var ErrPoVUnavailable = errors.New("PoV unavailable")

// Context is the context of the candidate validation subsystem.
type Context = overseer.SubsystemContext[messages.CandidateValidationMessage, messages.CandidateValidationOutgoing]

// CandidateValidation is a parachain subsystem that validates candidate parachain blocks
type CandidateValidation struct {
	worker *worker
}

// NewCandidateValidation creates a new CandidateValidation subsystem
func NewCandidateValidation(maxPoVSize uint32) (*CandidateValidation, error) {
	if maxPoVSize == 0 {
		maxPoVSize = util.MaxPoVSize
	}
	w, err := newWorker(maxPoVSize)
	if err != nil {
		return nil, err
	}
	return &CandidateValidation{
		worker: w,
	}, nil
}

// Start starts the CandidateValidation subsystem
func (cv *CandidateValidation) Start(sctx Context) overseer.SpawnedSubsystem {
	return overseer.SpawnedSubsystem{
		Name: string(parachaintypes.CandidateValidation),
		Future: func(ctx context.Context) error {
			return cv.run(ctx, sctx)
		},
	}
}

func (cv *CandidateValidation) run(ctx context.Context, sctx Context) error {
	defer cv.worker.close()

	for {
		msg, err := sctx.Recv(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("receiving: %w", err)
		}

		if msg.IsSignal() {
			if _, ok := msg.Signal.(parachaintypes.ConcludeSignal); ok {
				return nil
			}
			// NOTE: this subsystem does not process leaf or finality signals
			continue
		}

		cv.processMessage(sctx, msg.Message)
	}
}

// processMessage processes messages sent to the CandidateValidation subsystem
func (cv *CandidateValidation) processMessage(sctx Context, msg messages.CandidateValidationMessage) {
	switch msg := msg.(type) {
	case messages.ValidateFromExhaustive:
		result := cv.worker.executeRequest(workerTask{
			candidateReceipt: msg.CandidateReceipt,
			pov:              msg.PoV,
		})
		msg.Respond(parachaintypes.OverseerFuncRes[parachaintypes.ValidationResult]{Data: result})

	case messages.ValidateFromChainState:
		err := sctx.Spawn("validate-from-chain-state", func(ctx context.Context) {
			cv.validateFromChainState(ctx, sctx.Sender(), msg)
		})
		if err != nil {
			logger.Errorf("spawning validation of candidate %s: %s", msg.CandidateReceipt.Hash(), err)
			msg.Respond(parachaintypes.OverseerFuncRes[parachaintypes.ValidationResult]{Err: err})
		}

	default:
		logger.Errorf("%s: %T", parachaintypes.ErrUnknownOverseerMessage, msg)
	}
}

// validateFromChainState fetches the PoV of the candidate from the availability
// store and validates the candidate with it.
func (cv *CandidateValidation) validateFromChainState(ctx context.Context,
	sender overseer.SubsystemSender[messages.CandidateValidationOutgoing], msg messages.ValidateFromChainState) {
	candidateHash := msg.CandidateReceipt.Hash()

	query := messages.QueryAvailableData{
		CandidateHash: candidateHash,
		Sender:        make(chan *messages.AvailableData, 1),
	}
	err := sender.SendMessage(ctx, query)
	if err != nil {
		msg.Respond(parachaintypes.OverseerFuncRes[parachaintypes.ValidationResult]{
			Err: fmt.Errorf("querying available data: %w", err),
		})
		return
	}

	var availableData *messages.AvailableData
	select {
	case availableData = <-query.Sender:
	case <-ctx.Done():
		msg.Respond(parachaintypes.OverseerFuncRes[parachaintypes.ValidationResult]{Err: ctx.Err()})
		return
	}

	if availableData == nil {
		logger.Debugf("no available data for candidate %s", candidateHash)
		msg.Respond(parachaintypes.OverseerFuncRes[parachaintypes.ValidationResult]{
			Err: fmt.Errorf("%w: candidate %s", ErrPoVUnavailable, candidateHash),
		})
		return
	}

	result := cv.worker.executeRequest(workerTask{
		candidateReceipt: msg.CandidateReceipt,
		pov:              availableData.PoV,
	})
	msg.Respond(parachaintypes.OverseerFuncRes[parachaintypes.ValidationResult]{Data: result})
}
