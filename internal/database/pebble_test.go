// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package database

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKeys = []string{"camel", "walrus", "296204", "\x00123\x00"}

func testNewPebble(t *testing.T, inMemory bool) Database {
	t.Helper()

	db, err := NewPebble(t.TempDir(), inMemory)
	require.NoError(t, err)

	t.Cleanup(func() {
		err := db.Close()
		require.NoError(t, err)
	})

	return db
}

func TestPebble_PutGetHasDel(t *testing.T) {
	t.Parallel()

	db := testNewPebble(t, false)

	for _, key := range testKeys {
		err := db.Put([]byte(key), []byte(key))
		require.NoError(t, err)

		data, err := db.Get([]byte(key))
		require.NoError(t, err)
		assert.Equal(t, []byte(key), data)

		exists, err := db.Has([]byte(key))
		require.NoError(t, err)
		assert.True(t, exists)

		err = db.Put([]byte(key), []byte("?"))
		require.NoError(t, err)
		data, err = db.Get([]byte(key))
		require.NoError(t, err)
		assert.Equal(t, []byte("?"), data)

		err = db.Del([]byte(key))
		require.NoError(t, err)

		_, err = db.Get([]byte(key))
		assert.ErrorIs(t, err, ErrNotFound)

		exists, err = db.Has([]byte(key))
		require.NoError(t, err)
		assert.False(t, exists)
	}

	fi, err := os.Stat(db.Path())
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}

func TestPebble_Batch(t *testing.T) {
	t.Parallel()

	db := testNewPebble(t, true)
	key := []byte("camel")
	value := []byte("camel-value")

	batch := db.NewBatch()
	err := batch.Put(key, value)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Count())

	_, err = db.Get(key)
	require.ErrorIs(t, err, ErrNotFound)

	err = batch.Flush()
	require.NoError(t, err)

	retrievedValue, err := db.Get(key)
	require.NoError(t, err)
	assert.Equal(t, value, retrievedValue)

	deleteBatch := db.NewBatch()
	err = deleteBatch.Del(key)
	require.NoError(t, err)
	deleteBatch.Reset()
	assert.Equal(t, 0, deleteBatch.Count())

	err = deleteBatch.Del(key)
	require.NoError(t, err)
	err = deleteBatch.Flush()
	require.NoError(t, err)

	_, err = db.Get(key)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTable(t *testing.T) {
	t.Parallel()

	db := testNewPebble(t, true)
	camels := NewTable(db, "camel-")
	walruses := NewTable(db, "walrus-")

	batch := camels.NewBatch()
	for i := 0; i < 5; i++ {
		err := batch.Put([]byte(fmt.Sprint(i)), []byte(fmt.Sprintf("camel-value-%d", i)))
		require.NoError(t, err)
	}
	require.NoError(t, batch.Flush())

	err := walruses.Put([]byte("0"), []byte("walrus-value-0"))
	require.NoError(t, err)

	value, err := db.Get([]byte("camel-3"))
	require.NoError(t, err)
	assert.Equal(t, []byte("camel-value-3"), value)

	value, err = walruses.Get([]byte("0"))
	require.NoError(t, err)
	assert.Equal(t, []byte("walrus-value-0"), value)

	exists, err := walruses.Has([]byte("1"))
	require.NoError(t, err)
	assert.False(t, exists)

	it := camels.NewIterator()
	defer it.Release()

	var keys []string
	for ok := it.First(); ok; ok = it.Next() {
		require.True(t, it.Valid())
		keys = append(keys, string(it.Key()))
		assert.Equal(t, fmt.Sprintf("camel-value-%s", it.Key()), string(it.Value()))
	}
	assert.Equal(t, []string{"0", "1", "2", "3", "4"}, keys)
}

func Test_upperBound(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		prefix   []byte
		expected []byte
	}{
		"empty":    {},
		"simple":   {prefix: []byte{1, 2}, expected: []byte{1, 3}},
		"overflow": {prefix: []byte{1, 0xff}, expected: []byte{2}},
		"all_ones": {prefix: []byte{0xff, 0xff}},
	}

	for name, testCase := range testCases {
		testCase := testCase
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, testCase.expected, upperBound(testCase.prefix))
		})
	}
}
