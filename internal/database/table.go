// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package database

type table struct {
	db     Database
	prefix []byte
}

var _ Table = (*table)(nil)

// NewTable returns the table of db with the prefix given.
func NewTable(db Database, prefix string) Table {
	return &table{
		db:     db,
		prefix: []byte(prefix),
	}
}

func prefixed(prefix, key []byte) []byte {
	tableItemKey := make([]byte, 0, len(prefix)+len(key))
	tableItemKey = append(tableItemKey, prefix...)
	return append(tableItemKey, key...)
}

func (t *table) Get(key []byte) ([]byte, error) {
	return t.db.Get(prefixed(t.prefix, key))
}

func (t *table) Has(key []byte) (bool, error) {
	return t.db.Has(prefixed(t.prefix, key))
}

func (t *table) Put(key, value []byte) error {
	return t.db.Put(prefixed(t.prefix, key), value)
}

func (t *table) Del(key []byte) error {
	return t.db.Del(prefixed(t.prefix, key))
}

func (t *table) Flush() error {
	return t.db.Flush()
}

func (t *table) NewBatch() Batch {
	return &tableBatch{
		batch:  t.db.NewBatch(),
		prefix: t.prefix,
	}
}

// NewIterator iterates over the table entries, with the table prefix stripped from the keys.
func (t *table) NewIterator() Iterator {
	return &tableIterator{
		Iterator:  t.db.NewPrefixIterator(t.prefix),
		prefixLen: len(t.prefix),
	}
}
