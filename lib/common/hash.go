// Copyright 2021 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package common

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// HashLength is the expected length of the common.Hash type
	HashLength = 32
)

// EmptyHash is the zero value hash.
var EmptyHash = Hash{}

// ErrInvalidHashLength is returned when decoding a hex string that does not
// hold exactly HashLength bytes.
var ErrInvalidHashLength = errors.New("invalid hash length")

// Hash used to store a blake2b hash
type Hash [32]byte

// NewHash casts a byte array to a Hash
// if the input is longer than 32 bytes, it takes the first 32 bytes
func NewHash(in []byte) (res Hash) {
	copy(res[:], in)
	return res
}

// ToBytes turns a hash to a byte array
func (h Hash) ToBytes() []byte {
	b := [32]byte(h)
	return b[:]
}

// IsEmpty returns true if the hash is empty, false otherwise.
func (h Hash) IsEmpty() bool {
	return h == EmptyHash
}

// String returns the hex string for the hash
func (h Hash) String() string {
	return fmt.Sprintf("0x%x", h[:])
}

// Short returns the first 4 bytes and the last 4 bytes of the hex string for the hash
func (h Hash) Short() string {
	const nBytes = 4
	return fmt.Sprintf("0x%x...%x", h[:nBytes], h[len(h)-nBytes:])
}

// HexToHash turns a 0x prefixed hex string into type Hash
func HexToHash(in string) (Hash, error) {
	in = strings.TrimPrefix(in, "0x")
	out, err := hex.DecodeString(in)
	if err != nil {
		return Hash{}, fmt.Errorf("decoding hex string: %w", err)
	}
	if len(out) != HashLength {
		return Hash{}, fmt.Errorf("%w: %d", ErrInvalidHashLength, len(out))
	}
	return NewHash(out), nil
}

// MustHexToHash turns a 0x prefixed hex string into type Hash
// it panics if it cannot turn the string into a Hash
func MustHexToHash(in string) Hash {
	hash, err := HexToHash(in)
	if err != nil {
		panic(err)
	}
	return hash
}
