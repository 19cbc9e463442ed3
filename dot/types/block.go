// Copyright 2021 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package types

// Block defines a relay chain block. The body is kept opaque.
type Block struct {
	Header Header
	Body   [][]byte
}

// NewBlock returns a new Block
func NewBlock(header Header, body [][]byte) Block {
	return Block{
		Header: header,
		Body:   body,
	}
}

// FinalisationInfo is sent when a block is finalised
type FinalisationInfo struct {
	Header Header
	Round  uint64
	SetID  uint64
}
