// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package messages

import (
	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
)

// DisputeCoordinatorMessage is a message handled by the dispute coordinator subsystem.
type DisputeCoordinatorMessage interface {
	isDisputeCoordinatorMessage()
}

// IssueLocalStatement is a local statement about the validity of a candidate.
// An invalid statement raises a dispute.
type IssueLocalStatement struct {
	Session          parachaintypes.SessionIndex
	CandidateHash    parachaintypes.CandidateHash
	CandidateReceipt parachaintypes.CandidateReceipt
	Valid            bool
}

// DisputeStatus is the state of a dispute as seen by the coordinator.
type DisputeStatus byte

const (
	// DisputeStatusActive the dispute is ongoing.
	DisputeStatusActive DisputeStatus = iota
	// DisputeStatusConcludedFor the candidate was found valid.
	DisputeStatusConcludedFor
	// DisputeStatusConcludedAgainst the candidate was found invalid.
	DisputeStatusConcludedAgainst
)

func (s DisputeStatus) String() string {
	switch s {
	case DisputeStatusActive:
		return "active"
	case DisputeStatusConcludedFor:
		return "concluded for"
	case DisputeStatusConcludedAgainst:
		return "concluded against"
	default:
		return "unknown"
	}
}

// Dispute is a dispute known to the coordinator.
type Dispute struct {
	Session       parachaintypes.SessionIndex
	CandidateHash parachaintypes.CandidateHash
	Status        DisputeStatus
	ValidVotes    uint32
	InvalidVotes  uint32
}

// ActiveDisputes requests all disputes known to the coordinator.
type ActiveDisputes struct {
	Sender chan []Dispute
}

// NewActiveDisputes returns an ActiveDisputes with a buffered response channel.
func NewActiveDisputes() ActiveDisputes {
	return ActiveDisputes{Sender: make(chan []Dispute, 1)}
}

func (IssueLocalStatement) isDisputeCoordinatorMessage() {}
func (ActiveDisputes) isDisputeCoordinatorMessage()      {}
