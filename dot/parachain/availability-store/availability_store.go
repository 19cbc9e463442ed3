// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package availabilitystore

import (
	"context"
	"errors"
	"fmt"

	"github.com/ChainSafe/malus/dot/parachain/messages"
	"github.com/ChainSafe/malus/dot/parachain/overseer"
	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
	"github.com/ChainSafe/malus/internal/database"
	"github.com/ChainSafe/malus/internal/log"
	"github.com/ChainSafe/malus/lib/common"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "parachain-availability-store"))

const availableDataPrefix = "available"

var errInvalidAvailableData = errors.New("invalid available data encoding")

// Context is the context of the availability store subsystem.
type Context = overseer.SubsystemContext[messages.AvailabilityStoreMessage, messages.AvailabilityStoreOutgoing]

// availabilityStore holds the tables of the availability store
type availabilityStore struct {
	available database.Table
}

func newAvailabilityStore(db database.Database) *availabilityStore {
	return &availabilityStore{
		available: database.NewTable(db, availableDataPrefix),
	}
}

// loadAvailableData loads available data from the availability store,
// returning nil if nothing is stored for the candidate.
func (as *availabilityStore) loadAvailableData(candidate parachaintypes.CandidateHash) (
	*messages.AvailableData, error) {
	resultBytes, err := as.available.Get(candidate.Value[:])
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting candidate %s from available table: %w", candidate, err)
	}

	result, err := decodeAvailableData(resultBytes)
	if err != nil {
		return nil, fmt.Errorf("decoding available data of candidate %s: %w", candidate, err)
	}
	return &result, nil
}

func (as *availabilityStore) hasAvailableData(candidate parachaintypes.CandidateHash) (bool, error) {
	return as.available.Has(candidate.Value[:])
}

func (as *availabilityStore) storeAvailableData(candidate parachaintypes.CandidateHash,
	data messages.AvailableData) error {
	batch := as.available.NewBatch()
	err := batch.Put(candidate.Value[:], encodeAvailableData(data))
	if err != nil {
		return fmt.Errorf("writing available data: %w", err)
	}

	err = batch.Flush()
	if err != nil {
		batch.Reset()
		return fmt.Errorf("flushing available data: %w", err)
	}
	return nil
}

// candidates returns the hashes of the candidates with stored data.
func (as *availabilityStore) candidates() []parachaintypes.CandidateHash {
	it := as.available.NewIterator()
	defer it.Release()

	var hashes []parachaintypes.CandidateHash
	for ok := it.First(); ok; ok = it.Next() {
		hashes = append(hashes, parachaintypes.CandidateHash{Value: common.NewHash(it.Key())})
	}
	return hashes
}

// encodeAvailableData lays the relay parent out before the PoV block data.
func encodeAvailableData(data messages.AvailableData) []byte {
	encoded := make([]byte, 0, common.HashLength+len(data.PoV.BlockData))
	encoded = append(encoded, data.RelayParent[:]...)
	return append(encoded, data.PoV.BlockData...)
}

func decodeAvailableData(encoded []byte) (messages.AvailableData, error) {
	if len(encoded) < common.HashLength {
		return messages.AvailableData{}, fmt.Errorf("%w: %d bytes", errInvalidAvailableData, len(encoded))
	}

	blockData := make([]byte, len(encoded)-common.HashLength)
	copy(blockData, encoded[common.HashLength:])
	return messages.AvailableData{
		RelayParent: common.NewHash(encoded[:common.HashLength]),
		PoV:         parachaintypes.PoV{BlockData: blockData},
	}, nil
}

// AvailabilityStoreSubsystem is the subsystem storing the available data of candidates
type AvailabilityStoreSubsystem struct {
	db                database.Database
	availabilityStore *availabilityStore
}

// NewAvailabilityStoreSubsystem creates the subsystem on top of the database given.
func NewAvailabilityStoreSubsystem(db database.Database) *AvailabilityStoreSubsystem {
	return &AvailabilityStoreSubsystem{
		db:                db,
		availabilityStore: newAvailabilityStore(db),
	}
}

// Start starts the availability store subsystem
func (av *AvailabilityStoreSubsystem) Start(sctx Context) overseer.SpawnedSubsystem {
	return overseer.SpawnedSubsystem{
		Name: string(parachaintypes.AvailabilityStore),
		Future: func(ctx context.Context) error {
			return av.run(ctx, sctx)
		},
	}
}

// StoredCandidates returns the hashes of the candidates with available data.
func (av *AvailabilityStoreSubsystem) StoredCandidates() []parachaintypes.CandidateHash {
	return av.availabilityStore.candidates()
}

// Close closes the underlying database.
func (av *AvailabilityStoreSubsystem) Close() error {
	return av.db.Close()
}

func (av *AvailabilityStoreSubsystem) run(ctx context.Context, sctx Context) error {
	for {
		msg, err := sctx.Recv(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("receiving: %w", err)
		}

		if msg.IsSignal() {
			if _, ok := msg.Signal.(parachaintypes.ConcludeSignal); ok {
				return nil
			}
			continue
		}

		logger.Tracef("received message %T", msg.Message)
		switch msg := msg.Message.(type) {
		case messages.StoreAvailableData:
			err = av.handleStoreAvailableData(msg)
		case messages.QueryAvailableData:
			err = av.handleQueryAvailableData(msg)
		case messages.QueryDataAvailability:
			err = av.handleQueryDataAvailability(msg)
		default:
			err = fmt.Errorf("%w: %T", parachaintypes.ErrUnknownOverseerMessage, msg)
		}
		if err != nil {
			logger.Errorf("failed to handle message: %s", err)
		}
	}
}

func (av *AvailabilityStoreSubsystem) handleStoreAvailableData(msg messages.StoreAvailableData) error {
	err := av.availabilityStore.storeAvailableData(msg.CandidateHash, msg.AvailableData)
	if msg.Sender != nil {
		msg.Sender <- err
	}
	if err != nil {
		return fmt.Errorf("store available data: %w", err)
	}
	logger.Debugf("stored available data of candidate %s", msg.CandidateHash)
	return nil
}

func (av *AvailabilityStoreSubsystem) handleQueryAvailableData(msg messages.QueryAvailableData) error {
	result, err := av.availabilityStore.loadAvailableData(msg.CandidateHash)
	msg.Sender <- result
	if err != nil {
		return fmt.Errorf("load available data: %w", err)
	}
	return nil
}

func (av *AvailabilityStoreSubsystem) handleQueryDataAvailability(msg messages.QueryDataAvailability) error {
	exists, err := av.availabilityStore.hasAvailableData(msg.CandidateHash)
	msg.Sender <- exists
	if err != nil {
		return fmt.Errorf("query data availability: %w", err)
	}
	return nil
}
