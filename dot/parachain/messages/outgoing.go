// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package messages

// CandidateValidationOutgoing is a message the candidate validation subsystem may send.
type CandidateValidationOutgoing interface {
	isCandidateValidationOutgoing()
}

// CandidateBackingOutgoing is a message the candidate backing subsystem may send.
type CandidateBackingOutgoing interface {
	isCandidateBackingOutgoing()
}

// AvailabilityStoreOutgoing is a message the availability store may send.
// The availability store does not send messages to other subsystems.
type AvailabilityStoreOutgoing interface {
	isAvailabilityStoreOutgoing()
}

// DisputeCoordinatorOutgoing is a message the dispute coordinator may send.
type DisputeCoordinatorOutgoing interface {
	isDisputeCoordinatorOutgoing()
}

func (QueryAvailableData) isCandidateValidationOutgoing()    {}
func (QueryDataAvailability) isCandidateValidationOutgoing() {}

func (ValidateFromExhaustive) isCandidateBackingOutgoing() {}
func (StoreAvailableData) isCandidateBackingOutgoing()     {}
func (IssueLocalStatement) isCandidateBackingOutgoing()    {}

func (ValidateFromChainState) isDisputeCoordinatorOutgoing() {}

func respond[T any](ch chan T, v T) {
	if ch == nil {
		return
	}
	select {
	case ch <- v:
	default:
	}
}
