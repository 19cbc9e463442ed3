// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package variants holds the malicious behaviours a node can be started with.
// A variant is a set of interceptors, one per subsystem it targets.
package variants

import (
	"errors"
	"fmt"

	"github.com/ChainSafe/malus/dot/parachain/malus"
	"github.com/ChainSafe/malus/dot/parachain/messages"
	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
	"github.com/ChainSafe/malus/internal/log"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "parachain-malus-variants"))

var (
	// ErrUnknownVariant is returned for a variant name not in Names.
	ErrUnknownVariant = errors.New("unknown variant")
	// ErrUnknownValidationError is returned for a fake validation error that is not
	// a reason for invalidity.
	ErrUnknownValidationError = errors.New("unknown validation error")
	// ErrInvalidPercentage is returned for a percentage greater than 100.
	ErrInvalidPercentage = errors.New("percentage must be at most 100")
)

// Name is the name of a variant.
type Name string

const (
	Honest                Name = "honest"
	BackGarbage           Name = "back-garbage-candidate"
	SuggestGarbage        Name = "suggest-garbage-candidate"
	DisputeAncestor       Name = "dispute-ancestor"
	DropDisputeStatements Name = "drop-dispute-statements"
)

// Names lists the known variants.
var Names = []Name{Honest, BackGarbage, SuggestGarbage, DisputeAncestor, DropDisputeStatements}

// Config configures a variant.
type Config struct {
	Name Name
	// Percentage of the candidates disputed by DisputeAncestor.
	Percentage uint8
	// FakeValidationError is the reason given by DisputeAncestor, in snake case.
	// Empty means DefaultFakeValidationError.
	FakeValidationError string
	Seed                int64
	Metrics             *malus.Metrics
}

// Variant holds the interceptors of a variant. A nil interceptor leaves its
// subsystem untouched.
type Variant struct {
	Name Name

	CandidateValidation malus.MessageInterceptor[messages.CandidateValidationMessage,
		messages.CandidateValidationOutgoing]
	CandidateBacking malus.MessageInterceptor[messages.CandidateBackingMessage,
		messages.CandidateBackingOutgoing]
	DisputeCoordinator malus.MessageInterceptor[messages.DisputeCoordinatorMessage,
		messages.DisputeCoordinatorOutgoing]
}

// New returns the variant configured.
func New(cfg Config) (Variant, error) {
	variant := Variant{Name: cfg.Name}

	switch cfg.Name {
	case Honest, "":
		variant.Name = Honest
	case BackGarbage:
		variant.CandidateValidation = NewBackGarbageCandidate(cfg.Metrics)
	case SuggestGarbage:
		variant.CandidateBacking = NewSuggestGarbageCandidate(cfg.Metrics)
		variant.CandidateValidation = NewBackGarbageCandidate(cfg.Metrics)
	case DisputeAncestor:
		if cfg.Percentage > 100 {
			return Variant{}, fmt.Errorf("%w: %d", ErrInvalidPercentage, cfg.Percentage)
		}
		reason := DefaultFakeValidationError
		if cfg.FakeValidationError != "" {
			var ok bool
			reason, ok = parachaintypes.ParseReasonForInvalidity(cfg.FakeValidationError)
			if !ok {
				return Variant{}, fmt.Errorf("%w: %q", ErrUnknownValidationError, cfg.FakeValidationError)
			}
		}
		variant.CandidateValidation = NewDisputeValidCandidates(cfg.Percentage, reason, cfg.Seed, cfg.Metrics)
	case DropDisputeStatements:
		variant.CandidateBacking = NewDropOutgoing[messages.CandidateBackingMessage](
			string(parachaintypes.CandidateBacking), IsLocalStatement, cfg.Metrics)
	default:
		return Variant{}, fmt.Errorf("%w: %s", ErrUnknownVariant, cfg.Name)
	}

	logger.Debugf("variant %s configured", variant.Name)
	return variant, nil
}
