// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package candidatevalidation

import (
	"fmt"

	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
	"github.com/ChainSafe/malus/dot/parachain/util"
	"github.com/ChainSafe/malus/lib/common"
	"github.com/dgraph-io/ristretto"
)

// processedCacheSize is the number of validation results kept by a worker.
const processedCacheSize = 10_000

// worker is the thing that can execute a validation request
type worker struct {
	maxPoVSize uint32
	// processed caches the results of candidates whose PoV matched their
	// descriptor, keyed by candidate hash.
	processed *ristretto.Cache
}

type workerTask struct {
	candidateReceipt parachaintypes.CandidateReceipt
	pov              parachaintypes.PoV
}

func newWorker(maxPoVSize uint32) (*worker, error) {
	processed, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        10 * processedCacheSize,
		MaxCost:            processedCacheSize,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating processed cache: %w", err)
	}

	return &worker{
		maxPoVSize: maxPoVSize,
		processed:  processed,
	}, nil
}

func (w *worker) close() {
	w.processed.Close()
}

func (w *worker) executeRequest(task workerTask) parachaintypes.ValidationResult {
	// the candidate hash covers the PoV hash, so only results obtained with
	// the PoV of the descriptor are cached
	result, ok := w.checkPoV(task)
	if !ok {
		return result
	}

	candidateHash := task.candidateReceipt.Hash()
	key := candidateHash.Value.ToBytes()
	processed, ok := w.processed.Get(key)
	if ok {
		logger.Debugf("candidate %s already processed", candidateHash)
		return processed.(parachaintypes.ValidationResult)
	}

	result = w.validate(task)
	w.processed.Set(key, result, 1)
	return result
}

// checkPoV returns an invalid result and false if the PoV is too large or
// does not match the descriptor.
func (w *worker) checkPoV(task workerTask) (parachaintypes.ValidationResult, bool) {
	if uint64(len(task.pov.BlockData)) > uint64(w.maxPoVSize) {
		return parachaintypes.NewInvalidResult(parachaintypes.ParamsTooLarge), false
	}

	if task.pov.Hash() != task.candidateReceipt.Descriptor.PovHash {
		return parachaintypes.NewInvalidResult(parachaintypes.PoVHashMismatch), false
	}
	return parachaintypes.ValidationResult{}, true
}

func (w *worker) validate(task workerTask) parachaintypes.ValidationResult {
	descriptor := task.candidateReceipt.Descriptor

	blockData, err := util.DecompressPoV(task.pov.BlockData, uint64(w.maxPoVSize))
	if err != nil {
		logger.Debugf("decompressing PoV of candidate %s: %s", task.candidateReceipt.Hash(), err)
		return parachaintypes.NewInvalidResult(parachaintypes.PoVDecompressionFailure)
	}

	headDataHash, err := common.Blake2bHash(blockData)
	if err != nil {
		logger.Errorf("hashing head data: %s", err)
		return parachaintypes.NewInvalidResult(parachaintypes.ExecutionError)
	}

	if headDataHash != descriptor.ParaHead {
		return parachaintypes.NewInvalidResult(parachaintypes.ParaHeadHashMismatch)
	}

	return parachaintypes.NewValidResult()
}
