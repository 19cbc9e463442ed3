// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import (
	"encoding/binary"

	"github.com/ChainSafe/malus/lib/common"
)

// ParaID is the identifier of a parachain.
type ParaID uint32

// SessionIndex is the index of a session on the relay chain.
type SessionIndex uint32

// CandidateHash is the hash of a candidate receipt.
type CandidateHash struct {
	Value common.Hash
}

func (ch CandidateHash) String() string {
	return ch.Value.String()
}

// PoV is the proof of validity of a parachain block.
// BlockData is zstd compressed, see util.CompressPoV.
type PoV struct {
	BlockData []byte
}

// Hash returns the blake2b hash of the PoV block data.
func (pov PoV) Hash() common.Hash {
	return common.MustBlake2bHash(pov.BlockData)
}

// CandidateDescriptor is a unique descriptor of the candidate receipt.
type CandidateDescriptor struct {
	// The ID of the para this is a candidate for.
	ParaID ParaID
	// RelayParent is the hash of the relay-chain block this should be executed in
	// the context of.
	RelayParent common.Hash
	// PovHash is the hash of the PoV, see PoV.Hash.
	PovHash common.Hash
	// ParaHead is the hash of the para head generated by this candidate,
	// the blake2b hash of the decompressed block data.
	ParaHead common.Hash
	// ValidationCodeHash is the hash of the validation code of the para.
	ValidationCodeHash common.Hash
}

// CandidateReceipt is a receipt for a parachain candidate.
type CandidateReceipt struct {
	Descriptor      CandidateDescriptor
	CommitmentsHash common.Hash
}

// Encode returns the fixed size encoding of the receipt used for hashing.
func (cr CandidateReceipt) Encode() []byte {
	encoded := make([]byte, 0, 4+5*common.HashLength)
	encoded = binary.LittleEndian.AppendUint32(encoded, uint32(cr.Descriptor.ParaID))
	encoded = append(encoded, cr.Descriptor.RelayParent.ToBytes()...)
	encoded = append(encoded, cr.Descriptor.PovHash.ToBytes()...)
	encoded = append(encoded, cr.Descriptor.ParaHead.ToBytes()...)
	encoded = append(encoded, cr.Descriptor.ValidationCodeHash.ToBytes()...)
	encoded = append(encoded, cr.CommitmentsHash.ToBytes()...)
	return encoded
}

// Hash returns the candidate hash of the receipt.
func (cr CandidateReceipt) Hash() CandidateHash {
	return CandidateHash{Value: common.MustBlake2bHash(cr.Encode())}
}
