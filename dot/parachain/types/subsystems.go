// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

// SubSystemName is the name of a subsystem registered with the overseer.
type SubSystemName string

const (
	CandidateBacking    SubSystemName = "CandidateBacking"
	CandidateValidation SubSystemName = "CandidateValidation"
	AvailabilityStore   SubSystemName = "AvailabilityStore"
	DisputeCoordinator  SubSystemName = "DisputeCoordinator"
)

// OverseerFuncRes is the result of a request carried by an overseer message,
// sent back on the response channel of the message.
type OverseerFuncRes[T any] struct {
	Err  error
	Data T
}
