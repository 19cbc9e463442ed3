// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package messages

import (
	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
	"github.com/ChainSafe/malus/lib/common"
)

// AvailabilityStoreMessage is a message handled by the availability store subsystem.
type AvailabilityStoreMessage interface {
	isAvailabilityStoreMessage()
}

// AvailableData is the data stored for a backed candidate.
type AvailableData struct {
	PoV         parachaintypes.PoV
	RelayParent common.Hash
}

// StoreAvailableData stores the AvailableData of a candidate.
type StoreAvailableData struct {
	CandidateHash parachaintypes.CandidateHash
	AvailableData AvailableData
	Sender        chan error
}

// QueryAvailableData queries the AvailableData of a candidate.
// The response is nil if nothing is stored for the candidate.
type QueryAvailableData struct {
	CandidateHash parachaintypes.CandidateHash
	Sender        chan *AvailableData
}

// QueryDataAvailability query wether a `AvailableData` exists within the AV store
//
// This is useful in cases when existence
// matters, but we don't want to necessarily pass around multiple
// megabytes of data to get a single bit of information.
type QueryDataAvailability struct {
	CandidateHash parachaintypes.CandidateHash
	Sender        chan bool
}

func (StoreAvailableData) isAvailabilityStoreMessage()    {}
func (QueryAvailableData) isAvailabilityStoreMessage()    {}
func (QueryDataAvailability) isAvailabilityStoreMessage() {}
