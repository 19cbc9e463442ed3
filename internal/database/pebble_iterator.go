// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package database

import "github.com/cockroachdb/pebble"

var _ Iterator = (*pebbleIterator)(nil)

type pebbleIterator struct {
	*pebble.Iterator
}

func (pi *pebbleIterator) Release() {
	err := pi.Close()
	if err != nil {
		logger.Criticalf("while closing iterator: %s", err)
	}
}

// tableIterator strips the table prefix from the keys.
type tableIterator struct {
	Iterator
	prefixLen int
}

func (ti *tableIterator) Key() []byte {
	key := ti.Iterator.Key()
	if len(key) < ti.prefixLen {
		return nil
	}
	return key[ti.prefixLen:]
}

type emptyIterator struct{}

func (emptyIterator) Valid() bool   { return false }
func (emptyIterator) Next() bool    { return false }
func (emptyIterator) Key() []byte   { return nil }
func (emptyIterator) Value() []byte { return nil }
func (emptyIterator) First() bool   { return false }
func (emptyIterator) Release()      {}
