// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package database

import (
	"errors"
	"fmt"
	"os"

	"github.com/ChainSafe/malus/internal/log"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

var logger = log.NewFromGlobal(log.AddContext("internal", "database"))
var _ Database = (*pebbleDB)(nil)

var ErrNotFound = pebble.ErrNotFound

type pebbleDB struct {
	path string
	db   *pebble.DB
}

// NewPebble opens a pebble database at path, or in memory when inMemory is true.
func NewPebble(path string, inMemory bool) (Database, error) {
	opts := &pebble.Options{}
	if inMemory {
		opts.FS = vfs.NewMem()
	} else if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("opening pebble db: %w", err)
	}

	logger.Debugf("opened pebble database at %q (in memory: %t)", path, inMemory)
	return &pebbleDB{path: path, db: db}, nil
}

func (p *pebbleDB) Path() string {
	return p.path
}

func (p *pebbleDB) Put(key, value []byte) error {
	err := p.db.Set(key, value, pebble.Sync)
	if err != nil {
		return fmt.Errorf("writing 0x%x to database: %w", key, err)
	}
	return nil
}

func (p *pebbleDB) Get(key []byte) (value []byte, err error) {
	value, closer, err := p.db.Get(key)
	if err != nil {
		return nil, fmt.Errorf("getting 0x%x from database: %w", key, err)
	}
	defer closer.Close()

	valueCpy := make([]byte, len(value))
	copy(valueCpy, value)
	return valueCpy, nil
}

func (p *pebbleDB) Has(key []byte) (exists bool, err error) {
	_, closer, err := p.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("getting 0x%x from database: %w", key, err)
	}

	if err := closer.Close(); err != nil {
		return false, fmt.Errorf("closing after get: %w", err)
	}
	return true, nil
}

func (p *pebbleDB) Del(key []byte) error {
	err := p.db.Delete(key, pebble.Sync)
	if err != nil {
		return fmt.Errorf("deleting 0x%x from database: %w", key, err)
	}
	return nil
}

func (p *pebbleDB) Close() error {
	return p.db.Close()
}

func (p *pebbleDB) Flush() error {
	err := p.db.Flush()
	if err != nil {
		return fmt.Errorf("flushing database: %w", err)
	}
	return nil
}

func (p *pebbleDB) NewBatch() Batch {
	return &pebbleBatch{
		batch: p.db.NewBatch(),
	}
}

func (p *pebbleDB) NewPrefixIterator(prefix []byte) Iterator {
	opts := &pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	}
	iter, err := p.db.NewIter(opts)
	if err != nil {
		logger.Errorf("creating iterator for prefix 0x%x: %s", prefix, err)
		return emptyIterator{}
	}
	return &pebbleIterator{iter}
}

// upperBound returns the smallest key greater than every key starting with prefix,
// or nil if there is none.
func upperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)

	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
