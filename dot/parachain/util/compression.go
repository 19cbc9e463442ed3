// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package util

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// MaxPoVSize is the default bomb limit used when decompressing a PoV.
const MaxPoVSize = 16 * 1024 * 1024

var (
	ErrBlobTooShort       = errors.New("blob is too short")
	ErrNotCompressed      = errors.New("blob is not zstd compressed")
	ErrDecompressionLimit = errors.New("decompressed size exceeds limit")
)

// An arbitrary prefix, that indicates a blob beginning with should be decompressed with
// Zstd compression.
//
// This differs from the WASM magic bytes, so real WASM blobs will not have this prefix.
var zstdPrefix = []byte{82, 188, 83, 118, 70, 219, 142, 5}

// CompressPoV compresses the raw block data of a PoV and prefixes it with the
// zstd marker.
func CompressPoV(blockData []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	defer encoder.Close()

	compressed := make([]byte, 0, len(zstdPrefix)+len(blockData)/2)
	compressed = append(compressed, zstdPrefix...)
	return encoder.EncodeAll(blockData, compressed), nil
}

// DecompressPoV reverses CompressPoV. The decompressed size may not go over bombLimit.
func DecompressPoV(blob []byte, bombLimit uint64) ([]byte, error) {
	if len(blob) < len(zstdPrefix) {
		return nil, ErrBlobTooShort
	}
	if !bytes.HasPrefix(blob, zstdPrefix) {
		return nil, ErrNotCompressed
	}

	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(bombLimit))
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer decoder.Close()

	decompressed, err := decoder.DecodeAll(blob[len(zstdPrefix):], nil)
	if err != nil {
		return nil, fmt.Errorf("decoding blob: %w", err)
	}
	if uint64(len(decompressed)) > bombLimit {
		return nil, fmt.Errorf("%w: %d > %d", ErrDecompressionLimit, len(decompressed), bombLimit)
	}
	return decompressed, nil
}
