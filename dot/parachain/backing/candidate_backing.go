// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ChainSafe/malus/dot/parachain/messages"
	"github.com/ChainSafe/malus/dot/parachain/overseer"
	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
	"github.com/ChainSafe/malus/internal/log"
	"github.com/ChainSafe/malus/lib/common"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "parachain-candidate-backing"))

var (
	errUnknownRelayParent = errors.New("relay parent is not an active leaf")
	errAlreadySeconded    = errors.New("candidate already seconded")
	errStoringData        = errors.New("storing available data")
)

// DefaultValidationTimeout is the time given to a candidate to be stored and validated.
const DefaultValidationTimeout = 2 * time.Second

// Context is the context of the candidate backing subsystem.
type Context = overseer.SubsystemContext[messages.CandidateBackingMessage, messages.CandidateBackingOutgoing]

// CandidateBacking represents the state of the subsystem responsible for managing candidate backing.
type CandidateBacking struct {
	validationTimeout time.Duration

	mutex sync.Mutex
	// State tracked for all relay-parents backing work is ongoing for.
	// Only active leaves are relay parents in this subsystem.
	perRelayParent map[common.Hash]*perRelayParentState
	// State tracked for all candidates seconded locally.
	perCandidate map[parachaintypes.CandidateHash]*perCandidateState

	backed   []messages.BackedCandidate
	rejected []parachaintypes.CandidateHash
}

// perCandidateState represents the state information for a candidate in the subsystem.
type perCandidateState struct {
	paraID      parachaintypes.ParaID
	relayParent common.Hash
	validated   bool
}

// perRelayParentState represents the state information for a relay-parent in the subsystem.
type perRelayParentState struct {
	// The hash of the relay parent on top of which this job is doing it's work.
	relayParent common.Hash
	number      uint32
	session     parachaintypes.SessionIndex
	// These candidates are undergoing validation in the background.
	awaitingValidation map[parachaintypes.CandidateHash]bool
	// The candidates that are backed, by hash.
	backed map[parachaintypes.CandidateHash]bool
}

// New creates the candidate backing subsystem. A zero validation timeout
// means DefaultValidationTimeout.
func New(validationTimeout time.Duration) *CandidateBacking {
	if validationTimeout == 0 {
		validationTimeout = DefaultValidationTimeout
	}
	return &CandidateBacking{
		validationTimeout: validationTimeout,
		perRelayParent:    make(map[common.Hash]*perRelayParentState),
		perCandidate:      make(map[parachaintypes.CandidateHash]*perCandidateState),
	}
}

// Start starts the candidate backing subsystem
func (cb *CandidateBacking) Start(sctx Context) overseer.SpawnedSubsystem {
	return overseer.SpawnedSubsystem{
		Name: string(parachaintypes.CandidateBacking),
		Future: func(ctx context.Context) error {
			return cb.run(ctx, sctx)
		},
	}
}

func (cb *CandidateBacking) run(ctx context.Context, sctx Context) error {
	for {
		msg, err := sctx.Recv(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("receiving: %w", err)
		}

		if msg.IsSignal() {
			switch signal := msg.Signal.(type) {
			case parachaintypes.ConcludeSignal:
				return nil
			case parachaintypes.ActiveLeavesUpdateSignal:
				cb.ProcessActiveLeavesUpdateSignal(signal)
			case parachaintypes.BlockFinalizedSignal:
				logger.Tracef("block finalized: %s", signal.Hash)
			}
			continue
		}

		err = cb.processMessage(sctx, msg.Message)
		if err != nil {
			logger.Errorf("processing message %T: %s", msg.Message, err)
		}
	}
}

func (cb *CandidateBacking) processMessage(sctx Context, msg messages.CandidateBackingMessage) error {
	switch msg := msg.(type) {
	case messages.Second:
		return cb.handleSecondMessage(sctx, msg)
	case messages.GetBackedCandidates:
		cb.handleGetBackedCandidatesMessage(msg)
		return nil
	default:
		return fmt.Errorf("%w: %T", parachaintypes.ErrUnknownOverseerMessage, msg)
	}
}

// handleSecondMessage kicks off the validation of a candidate to second.
func (cb *CandidateBacking) handleSecondMessage(sctx Context, msg messages.Second) error {
	candidateHash := msg.CandidateReceipt.Hash()

	cb.mutex.Lock()
	rpState, ok := cb.perRelayParent[msg.RelayParent]
	if !ok {
		cb.mutex.Unlock()
		return fmt.Errorf("%w: %s", errUnknownRelayParent, msg.RelayParent)
	}
	if _, ok := cb.perCandidate[candidateHash]; ok {
		cb.mutex.Unlock()
		return fmt.Errorf("%w: %s", errAlreadySeconded, candidateHash)
	}

	cb.perCandidate[candidateHash] = &perCandidateState{
		paraID:      msg.CandidateReceipt.Descriptor.ParaID,
		relayParent: msg.RelayParent,
	}
	rpState.awaitingValidation[candidateHash] = true
	session := rpState.session
	cb.mutex.Unlock()

	return sctx.Spawn("validate-and-make-available", func(ctx context.Context) {
		cb.validateAndMakeAvailable(ctx, sctx.Sender(), session, msg)
	})
}

func (cb *CandidateBacking) handleGetBackedCandidatesMessage(msg messages.GetBackedCandidates) {
	cb.mutex.Lock()
	res := messages.BackedCandidates{
		Backed:   append([]messages.BackedCandidate(nil), cb.backed...),
		Rejected: append([]parachaintypes.CandidateHash(nil), cb.rejected...),
	}
	cb.mutex.Unlock()

	msg.Ch <- res
}
