// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package node assembles the parachain subsystems behind an overseer and
// drives candidates through them.
package node

import (
	"errors"
	"fmt"
	"sync"
	"time"

	availabilitystore "github.com/ChainSafe/malus/dot/parachain/availability-store"
	"github.com/ChainSafe/malus/dot/parachain/backing"
	candidatevalidation "github.com/ChainSafe/malus/dot/parachain/candidate-validation"
	"github.com/ChainSafe/malus/dot/parachain/dispute"
	"github.com/ChainSafe/malus/dot/parachain/malus"
	"github.com/ChainSafe/malus/dot/parachain/malus/variants"
	"github.com/ChainSafe/malus/dot/parachain/messages"
	"github.com/ChainSafe/malus/dot/parachain/overseer"
	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
	"github.com/ChainSafe/malus/dot/parachain/util"
	"github.com/ChainSafe/malus/internal/database"
	"github.com/ChainSafe/malus/internal/log"
	"github.com/google/uuid"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "parachain-node"))

var (
	// ErrIncomplete is returned when the run times out before every candidate
	// is processed and every dispute concluded.
	ErrIncomplete = errors.New("run incomplete")
	ErrNotStarted = errors.New("node not started")
)

// Config configures a node.
type Config struct {
	// ParaID is the parachain the candidates are built for.
	ParaID uint32
	// Candidates is the number of candidates seconded by Run.
	Candidates int
	// Interval is the time between two candidates.
	Interval time.Duration
	// Timeout bounds the wait for the candidates to be processed.
	Timeout time.Duration
	// DatabasePath is the directory of the availability store, in memory if empty.
	DatabasePath         string
	MaxPoVSize           uint32
	ValidationTimeout    time.Duration
	ParticipationTimeout time.Duration
	Overseer             overseer.Config
}

// DefaultConfig returns the default node configuration.
func DefaultConfig() Config {
	return Config{
		ParaID:               2000,
		Candidates:           5,
		Interval:             50 * time.Millisecond,
		Timeout:              10 * time.Second,
		MaxPoVSize:           util.MaxPoVSize,
		ValidationTimeout:    backing.DefaultValidationTimeout,
		ParticipationTimeout: dispute.DefaultParticipationTimeout,
		Overseer:             overseer.DefaultConfig(),
	}
}

// Node is a validator node running the parachain subsystems, some of them
// intercepted by a variant.
type Node struct {
	cfg     Config
	variant variants.Variant
	runID   uuid.UUID

	overseer          *overseer.Overseer
	availabilityStore *availabilitystore.AvailabilityStoreSubsystem
	disputes          *dispute.DisputeCoordinator

	mutex    sync.Mutex
	started  bool
	stopOnce sync.Once
	stopErr  error
}

// NewNode creates a node and registers its subsystems, wrapping the ones the
// variant intercepts.
func NewNode(cfg Config, variant variants.Variant) (*Node, error) {
	db, err := database.NewPebble(cfg.DatabasePath, cfg.DatabasePath == "")
	if err != nil {
		return nil, fmt.Errorf("opening availability store database: %w", err)
	}

	n := &Node{
		cfg:               cfg,
		variant:           variant,
		runID:             uuid.New(),
		overseer:          overseer.NewOverseer(cfg.Overseer, nil),
		availabilityStore: availabilitystore.NewAvailabilityStoreSubsystem(db),
		disputes:          dispute.NewDisputeCoordinator(cfg.ParticipationTimeout),
	}

	err = n.register()
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return n, nil
}

func (n *Node) register() error {
	candidateValidation, err := candidatevalidation.NewCandidateValidation(n.cfg.MaxPoVSize)
	if err != nil {
		return fmt.Errorf("creating candidate validation: %w", err)
	}

	var validation overseer.Subsystem[messages.CandidateValidationMessage,
		messages.CandidateValidationOutgoing] = candidateValidation
	if n.variant.CandidateValidation != nil {
		validation = malus.NewInterceptedSubsystem(validation, n.variant.CandidateValidation)
	}

	var candidateBacking overseer.Subsystem[messages.CandidateBackingMessage,
		messages.CandidateBackingOutgoing] = backing.New(n.cfg.ValidationTimeout)
	if n.variant.CandidateBacking != nil {
		candidateBacking = malus.NewInterceptedSubsystem(candidateBacking, n.variant.CandidateBacking)
	}

	var disputeCoordinator overseer.Subsystem[messages.DisputeCoordinatorMessage,
		messages.DisputeCoordinatorOutgoing] = n.disputes
	if n.variant.DisputeCoordinator != nil {
		disputeCoordinator = malus.NewInterceptedSubsystem(disputeCoordinator, n.variant.DisputeCoordinator)
	}

	err = overseer.RegisterSubsystem(n.overseer, parachaintypes.CandidateValidation, validation)
	if err != nil {
		return fmt.Errorf("registering candidate validation: %w", err)
	}
	err = overseer.RegisterSubsystem(n.overseer, parachaintypes.CandidateBacking, candidateBacking)
	if err != nil {
		return fmt.Errorf("registering candidate backing: %w", err)
	}
	err = overseer.RegisterSubsystem[messages.AvailabilityStoreMessage, messages.AvailabilityStoreOutgoing](
		n.overseer, parachaintypes.AvailabilityStore, n.availabilityStore)
	if err != nil {
		return fmt.Errorf("registering availability store: %w", err)
	}
	err = overseer.RegisterSubsystem(n.overseer, parachaintypes.DisputeCoordinator, disputeCoordinator)
	if err != nil {
		return fmt.Errorf("registering dispute coordinator: %w", err)
	}
	return nil
}

// Start starts the subsystems.
func (n *Node) Start() error {
	err := n.overseer.Start()
	if err != nil {
		return fmt.Errorf("starting overseer: %w", err)
	}
	n.mutex.Lock()
	n.started = true
	n.mutex.Unlock()
	logger.Infof("node started with variant %s, run %s", n.variant.Name, n.runID)
	return nil
}

// Stop stops the subsystems and closes the availability store.
func (n *Node) Stop() error {
	n.stopOnce.Do(func() {
		err := n.overseer.Stop()
		n.stopErr = errors.Join(err, n.availabilityStore.Close())
	})
	return n.stopErr
}

func (n *Node) isStarted() bool {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return n.started
}

// RunID identifies the run of the node.
func (n *Node) RunID() uuid.UUID {
	return n.runID
}
