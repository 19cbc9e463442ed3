// Copyright 2021 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package types

import (
	"encoding/binary"
	"fmt"

	"github.com/ChainSafe/malus/lib/common"
)

// Header is a relay chain block header
type Header struct {
	ParentHash     common.Hash `json:"parentHash"`
	Number         uint        `json:"number"`
	StateRoot      common.Hash `json:"stateRoot"`
	ExtrinsicsRoot common.Hash `json:"extrinsicsRoot"`
}

// NewHeader creates a new block header
func NewHeader(parentHash, stateRoot, extrinsicsRoot common.Hash, number uint) *Header {
	return &Header{
		ParentHash:     parentHash,
		Number:         number,
		StateRoot:      stateRoot,
		ExtrinsicsRoot: extrinsicsRoot,
	}
}

// Encode returns the fixed size encoding of the header used for hashing.
func (bh *Header) Encode() []byte {
	encoded := make([]byte, 0, 3*common.HashLength+8)
	encoded = append(encoded, bh.ParentHash.ToBytes()...)
	encoded = binary.LittleEndian.AppendUint64(encoded, uint64(bh.Number))
	encoded = append(encoded, bh.StateRoot.ToBytes()...)
	encoded = append(encoded, bh.ExtrinsicsRoot.ToBytes()...)
	return encoded
}

// Hash returns the blake2b hash of the block header.
func (bh *Header) Hash() common.Hash {
	return common.MustBlake2bHash(bh.Encode())
}

// String returns the formatted header as a string
func (bh Header) String() string {
	return fmt.Sprintf("ParentHash=%s Number=%d StateRoot=%s ExtrinsicsRoot=%s Hash=%s",
		bh.ParentHash, bh.Number, bh.StateRoot, bh.ExtrinsicsRoot, bh.Hash())
}
