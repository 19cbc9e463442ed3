// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package dispute

import (
	"bytes"
	"errors"
	"sync"

	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
	"github.com/google/btree"
)

// candidateComparator orders the disputes for participation. Candidates with a known
// relay parent block number come first, oldest first, then by candidate hash.
type candidateComparator struct {
	relayParentBlockNumber *uint32
	candidateHash          parachaintypes.CandidateHash
}

// participationRequest a dispute participation request
type participationRequest struct {
	candidateHash    parachaintypes.CandidateHash
	candidateReceipt parachaintypes.CandidateReceipt
	session          parachaintypes.SessionIndex
}

// participationItem implements btree.Item
type participationItem struct {
	comparator candidateComparator
	request    *participationRequest
}

// Less uses the candidateComparator to determine the order
func (q *participationItem) Less(than btree.Item) bool {
	other := than.(*participationItem)
	ours, theirs := q.comparator, other.comparator

	switch {
	case ours.relayParentBlockNumber == nil && theirs.relayParentBlockNumber == nil:
	case theirs.relayParentBlockNumber == nil:
		return true
	case ours.relayParentBlockNumber == nil:
		return false
	case *ours.relayParentBlockNumber != *theirs.relayParentBlockNumber:
		return *ours.relayParentBlockNumber < *theirs.relayParentBlockNumber
	}
	return bytes.Compare(ours.candidateHash.Value[:], theirs.candidateHash.Value[:]) < 0
}

// participationPriority the priority of a participation request
type participationPriority int

const (
	participationPriorityBestEffort participationPriority = iota
	participationPriorityHigh
)

var (
	errBestEffortQueueFull = errors.New("best effort queue is full")
	errPriorityQueueFull   = errors.New("priority queue is full")
)

const (
	bestEffortQueueSize = 100
	priorityQueueSize   = 20000

	btreeDegree = 32
)

// queueHandler holds two btrees of participation items, one per priority.
type queueHandler struct {
	mutex      sync.Mutex
	bestEffort *btree.BTree
	priority   *btree.BTree

	bestEffortMaxSize int
	priorityMaxSize   int
}

func newQueue() *queueHandler {
	return &queueHandler{
		bestEffort:        btree.New(btreeDegree),
		priority:          btree.New(btreeDegree),
		bestEffortMaxSize: bestEffortQueueSize,
		priorityMaxSize:   priorityQueueSize,
	}
}

// queue adds a participation request. A request already queued with best effort
// priority is moved to the priority queue when queued with high priority.
func (q *queueHandler) queue(comparator candidateComparator, request *participationRequest,
	priority participationPriority) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	item := &participationItem{comparator: comparator, request: request}
	if priority == participationPriorityHigh {
		if q.priority.Len() >= q.priorityMaxSize {
			return errPriorityQueueFull
		}
		q.bestEffort.Delete(item)
		q.priority.ReplaceOrInsert(item)
		return nil
	}

	if q.priority.Has(item) {
		return nil
	}
	if q.bestEffort.Len() >= q.bestEffortMaxSize {
		return errBestEffortQueueFull
	}
	q.bestEffort.ReplaceOrInsert(item)
	return nil
}

// dequeue gets the next best request for dispute participation if any.
func (q *queueHandler) dequeue() *participationItem {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if item := q.priority.DeleteMin(); item != nil {
		return item.(*participationItem)
	}
	if item := q.bestEffort.DeleteMin(); item != nil {
		return item.(*participationItem)
	}
	return nil
}

func (q *queueHandler) len(priority participationPriority) int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if priority == participationPriorityHigh {
		return q.priority.Len()
	}
	return q.bestEffort.Len()
}
