// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package database

import (
	"io"
)

type Reader interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
}

type Writer interface {
	Put(key, value []byte) error
	Del(key []byte) error
	Flush() error
}

// Iterator iterates over key/value pairs in ascending key order.
// Must be released after use.
type Iterator interface {
	Valid() bool
	Next() bool
	Key() []byte
	Value() []byte
	First() bool
	Release()
}

// Batch is a write-only operation. Writes are applied on Flush.
type Batch interface {
	Writer

	Count() int
	Reset()
}

// Database wraps all database operations. All methods are safe for concurrent use.
type Database interface {
	Reader
	Writer
	io.Closer

	Path() string
	NewBatch() Batch
	NewPrefixIterator(prefix []byte) Iterator
}

// Table is a view of the database where every key is prefixed.
type Table interface {
	Reader
	Writer
	NewBatch() Batch
	NewIterator() Iterator
}
