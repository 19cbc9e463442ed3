// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package dispute

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	candidatevalidation "github.com/ChainSafe/malus/dot/parachain/candidate-validation"
	"github.com/ChainSafe/malus/dot/parachain/messages"
	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
	"github.com/ChainSafe/malus/lib/common"
)

// MaxParallelParticipation is the number of disputes participated in at the same time.
const MaxParallelParticipation = 3

// DefaultParticipationTimeout bounds the validation done when participating in a dispute.
const DefaultParticipationTimeout = 5 * time.Second

// participationOutcome is the result of the validation done when participating.
type participationOutcome byte

const (
	participationOutcomeValid participationOutcome = iota
	participationOutcomeInvalid
	// the PoV could not be fetched
	participationOutcomeUnavailable
	participationOutcomeError
)

func (o participationOutcome) String() string {
	switch o {
	case participationOutcomeValid:
		return "valid"
	case participationOutcomeInvalid:
		return "invalid"
	case participationOutcomeUnavailable:
		return "unavailable"
	default:
		return "error"
	}
}

// participationStatement is the result of the participation in a dispute.
type participationStatement struct {
	session       parachaintypes.SessionIndex
	candidateHash parachaintypes.CandidateHash
	outcome       participationOutcome
}

type block struct {
	Number uint32
	Hash   common.Hash
}

// participationHandler keeps track of the disputes we need to participate in.
type participationHandler struct {
	sctx    Context
	timeout time.Duration
	// onOutcome is called by the participation tasks.
	onOutcome func(participationStatement)

	mutex                sync.Mutex
	runningParticipation map[parachaintypes.CandidateHash]struct{}
	recentBlock          *block

	queue *queueHandler
}

func newParticipation(sctx Context, timeout time.Duration,
	onOutcome func(participationStatement)) *participationHandler {
	return &participationHandler{
		sctx:                 sctx,
		timeout:              timeout,
		onOutcome:            onOutcome,
		runningParticipation: make(map[parachaintypes.CandidateHash]struct{}),
		queue:                newQueue(),
	}
}

// Queue a dispute for the node to participate in. Participation starts right away
// if a leaf is known and a worker is free.
func (p *participationHandler) Queue(comparator candidateComparator, request participationRequest,
	priority participationPriority) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if _, ok := p.runningParticipation[request.candidateHash]; ok {
		return nil
	}

	if p.recentBlock != nil && len(p.runningParticipation) < MaxParallelParticipation {
		p.forkParticipation(request)
		return nil
	}

	err := p.queue.queue(comparator, &request, priority)
	if err != nil {
		return fmt.Errorf("queue participation request: %w", err)
	}
	return nil
}

// Clear clears a participation request. This is called when we have the dispute result.
func (p *participationHandler) Clear(candidateHash parachaintypes.CandidateHash) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	delete(p.runningParticipation, candidateHash)
	p.dequeueUntilCapacity()
}

// ProcessActiveLeavesUpdate notes the most recent leaf, starting the queued
// participations when it is the first one.
func (p *participationHandler) ProcessActiveLeavesUpdate(update parachaintypes.ActiveLeavesUpdateSignal) {
	if update.Activated == nil {
		return
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.recentBlock != nil {
		if update.Activated.Number > p.recentBlock.Number {
			p.recentBlock.Number = update.Activated.Number
			p.recentBlock.Hash = update.Activated.Hash
		}
		return
	}

	p.recentBlock = &block{
		Number: update.Activated.Number,
		Hash:   update.Activated.Hash,
	}
	p.dequeueUntilCapacity()
}

func (p *participationHandler) running() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.runningParticipation)
}

// dequeueUntilCapacity must be called with the mutex held.
func (p *participationHandler) dequeueUntilCapacity() {
	for len(p.runningParticipation) < MaxParallelParticipation {
		item := p.queue.dequeue()
		if item == nil {
			return
		}
		p.forkParticipation(*item.request)
	}
}

// forkParticipation must be called with the mutex held.
func (p *participationHandler) forkParticipation(request participationRequest) {
	if _, ok := p.runningParticipation[request.candidateHash]; ok {
		return
	}
	p.runningParticipation[request.candidateHash] = struct{}{}

	err := p.sctx.Spawn("dispute-participation", func(ctx context.Context) {
		outcome := p.participate(ctx, request)
		logger.Debugf("participation in dispute for candidate %s: %s", request.candidateHash, outcome)

		p.Clear(request.candidateHash)
		p.onOutcome(participationStatement{
			session:       request.session,
			candidateHash: request.candidateHash,
			outcome:       outcome,
		})
	})
	if err != nil {
		logger.Errorf("spawning participation for candidate %s: %s", request.candidateHash, err)
		delete(p.runningParticipation, request.candidateHash)
	}
}

// participate validates the candidate with the PoV from the availability store.
func (p *participationHandler) participate(ctx context.Context, request participationRequest) participationOutcome {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	validate := messages.NewValidateFromChainState(request.candidateReceipt)
	err := p.sctx.Sender().SendMessage(ctx, validate)
	if err != nil {
		logger.Errorf("requesting validation of candidate %s: %s", request.candidateHash, err)
		return participationOutcomeError
	}

	select {
	case res := <-validate.Ch:
		return outcomeFromResult(res)
	case <-ctx.Done():
		logger.Errorf("validating candidate %s: %s", request.candidateHash, ctx.Err())
		return participationOutcomeError
	}
}

func outcomeFromResult(res parachaintypes.OverseerFuncRes[parachaintypes.ValidationResult]) participationOutcome {
	switch {
	case errors.Is(res.Err, candidatevalidation.ErrPoVUnavailable):
		return participationOutcomeUnavailable
	case res.Err != nil:
		logger.Debugf("validation failed: %s", res.Err)
		return participationOutcomeError
	case res.Data.IsValid():
		return participationOutcomeValid
	default:
		return participationOutcomeInvalid
	}
}
