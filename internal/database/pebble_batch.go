// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package database

import (
	"fmt"

	"github.com/cockroachdb/pebble"
)

var _ Batch = (*pebbleBatch)(nil)

type pebbleBatch struct {
	batch *pebble.Batch
}

func (pb *pebbleBatch) Put(key, value []byte) error {
	err := pb.batch.Set(key, value, nil)
	if err != nil {
		return fmt.Errorf("setting to batch writer: %w", err)
	}
	return nil
}

func (pb *pebbleBatch) Del(key []byte) error {
	err := pb.batch.Delete(key, nil)
	if err != nil {
		return fmt.Errorf("setting to batch delete: %w", err)
	}
	return nil
}

func (pb *pebbleBatch) Flush() error {
	err := pb.batch.Commit(pebble.Sync)
	if err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	return nil
}

func (pb *pebbleBatch) Count() int {
	return int(pb.batch.Count())
}

func (pb *pebbleBatch) Reset() {
	pb.batch.Reset()
}

type tableBatch struct {
	batch  Batch
	prefix []byte
}

var _ Batch = (*tableBatch)(nil)

func (tb *tableBatch) Put(key, value []byte) error {
	return tb.batch.Put(prefixed(tb.prefix, key), value)
}

func (tb *tableBatch) Del(key []byte) error {
	return tb.batch.Del(prefixed(tb.prefix, key))
}

func (tb *tableBatch) Flush() error {
	return tb.batch.Flush()
}

func (tb *tableBatch) Count() int {
	return tb.batch.Count()
}

func (tb *tableBatch) Reset() {
	tb.batch.Reset()
}
