// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package dispute

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

var logger = log.NewFromGlobal(log.AddContext("pkg", "parachain-disputes"))

// Context is the context of the dispute coordinator subsystem.
type Context = overseer.SubsystemContext[messages.DisputeCoordinatorMessage, messages.DisputeCoordinatorOutgoing]

// DisputeCoordinator records disputes raised by invalid local statements and
// participates in them.
type DisputeCoordinator struct {
	participationTimeout time.Duration
	participation        *participationHandler

	mutex        sync.Mutex
	disputes     map[parachaintypes.CandidateHash]*messages.Dispute
	order        []parachaintypes.CandidateHash
	participated map[parachaintypes.CandidateHash]bool
	leaves       map[common.Hash]uint32
}

// NewDisputeCoordinator creates the dispute coordinator. A zero timeout means
// DefaultParticipationTimeout.
func NewDisputeCoordinator(participationTimeout time.Duration) *DisputeCoordinator {
	if participationTimeout == 0 {
		participationTimeout = DefaultParticipationTimeout
	}
	return &DisputeCoordinator{
		participationTimeout: participationTimeout,
		disputes:             make(map[parachaintypes.CandidateHash]*messages.Dispute),
		participated:         make(map[parachaintypes.CandidateHash]bool),
		leaves:               make(map[common.Hash]uint32),
	}
}

// Start starts the dispute coordinator
func (d *DisputeCoordinator) Start(sctx Context) overseer.SpawnedSubsystem {
	d.participation = newParticipation(sctx, d.participationTimeout, d.onParticipationOutcome)

	return overseer.SpawnedSubsystem{
		Name: string(parachaintypes.DisputeCoordinator),
		Future: func(ctx context.Context) error {
			return d.run(ctx, sctx)
		},
	}
}

func (d *DisputeCoordinator) run(ctx context.Context, sctx Context) error {
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
				d.processActiveLeavesUpdate(signal)
			}
			continue
		}

		switch msg := msg.Message.(type) {
		case messages.IssueLocalStatement:
			d.handleIssueLocalStatement(msg)
		case messages.ActiveDisputes:
			msg.Sender <- d.Disputes()
		default:
			logger.Errorf("%s: %T", parachaintypes.ErrUnknownOverseerMessage, msg)
		}
	}
}

func (d *DisputeCoordinator) processActiveLeavesUpdate(update parachaintypes.ActiveLeavesUpdateSignal) {
	d.mutex.Lock()
	for _, deactivated := range update.Deactivated {
		delete(d.leaves, deactivated)
	}
	if update.Activated != nil {
		d.leaves[update.Activated.Hash] = update.Activated.Number
	}
	d.mutex.Unlock()

	d.participation.ProcessActiveLeavesUpdate(update)
}

// handleIssueLocalStatement imports a statement of the local node. An invalid
// statement raises a dispute we participate in.
func (d *DisputeCoordinator) handleIssueLocalStatement(msg messages.IssueLocalStatement) {
	d.mutex.Lock()
	dispute, ok := d.disputes[msg.CandidateHash]
	if msg.Valid {
		if ok {
			dispute.ValidVotes++
		} else {
			logger.Debugf("valid statement for undisputed candidate %s", msg.CandidateHash)
		}
		d.mutex.Unlock()
		return
	}

	if !ok {
		dispute = &messages.Dispute{
			Session:       msg.Session,
			CandidateHash: msg.CandidateHash,
			Status:        messages.DisputeStatusActive,
		}
		d.disputes[msg.CandidateHash] = dispute
		d.order = append(d.order, msg.CandidateHash)
		logger.Infof("dispute raised for candidate %s in session %d", msg.CandidateHash, msg.Session)
	}
	dispute.InvalidVotes++

	if d.participated[msg.CandidateHash] {
		d.mutex.Unlock()
		return
	}

	comparator := candidateComparator{candidateHash: msg.CandidateHash}
	priority := participationPriorityBestEffort
	if number, ok := d.leaves[msg.CandidateReceipt.Descriptor.RelayParent]; ok {
		comparator.relayParentBlockNumber = &number
		priority = participationPriorityHigh
	}
	d.mutex.Unlock()

	err := d.participation.Queue(comparator, participationRequest{
		candidateHash:    msg.CandidateHash,
		candidateReceipt: msg.CandidateReceipt,
		session:          msg.Session,
	}, priority)
	if err != nil {
		logger.Errorf("queuing participation for candidate %s: %s", msg.CandidateHash, err)
	}
}

// onParticipationOutcome concludes the dispute with the outcome of our own validation.
func (d *DisputeCoordinator) onParticipationOutcome(statement participationStatement) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	dispute, ok := d.disputes[statement.candidateHash]
	if !ok {
		logger.Errorf("participation outcome for unknown dispute %s", statement.candidateHash)
		return
	}

	switch statement.outcome {
	case participationOutcomeValid:
		dispute.ValidVotes++
		dispute.Status = messages.DisputeStatusConcludedFor
	case participationOutcomeInvalid:
		dispute.InvalidVotes++
		dispute.Status = messages.DisputeStatusConcludedAgainst
	default:
		logger.Warnf("could not participate in dispute for candidate %s: %s",
			statement.candidateHash, statement.outcome)
		return
	}

	d.participated[statement.candidateHash] = true
	logger.Infof("dispute for candidate %s %s", statement.candidateHash, dispute.Status)
}

// Disputes returns the disputes known to the coordinator in the order they were raised.
func (d *DisputeCoordinator) Disputes() []messages.Dispute {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	disputes := make([]messages.Dispute, 0, len(d.order))
	for _, candidateHash := range d.order {
		disputes = append(disputes, *d.disputes[candidateHash])
	}
	return disputes
}
