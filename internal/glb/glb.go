// Package glb implements the binary glTF container envelope: a 12-byte
// file header followed by length-prefixed, type-tagged chunks, all
// fields little-endian.
package glb

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Container constants.
const (
	// Magic is "glTF" packed as a little-endian u32.
	Magic = 0x46546C67

	// Version is the only container version this codec accepts.
	Version = 2

	// ChunkJSON tags the structured metadata chunk ("JSON").
	ChunkJSON = 0x4E4F534A

	// ChunkBIN tags the binary payload chunk ("BIN\0").
	ChunkBIN = 0x004E4942

	// HeaderSize is the fixed size of the file header.
	HeaderSize = 12

	// ChunkHeaderSize is the fixed size of a chunk header.
	ChunkHeaderSize = 8
)

// Sentinel errors.
var (
	// ErrNotGLB is returned when the magic bytes do not match.
	ErrNotGLB = errors.New("glb: not a binary glTF container")

	// ErrVersion is returned when the container version is not 2.
	ErrVersion = errors.New("glb: unsupported container version")

	// ErrTruncated is returned when a chunk extends past the container.
	ErrTruncated = errors.New("glb: truncated container")
)

// Align4 rounds n up to the next multiple of 4. Zero maps to zero.
// Shared by the read and write paths so padding is computed one way.
func Align4(n int) int {
	return (n + 3) &^ 3
}

// ReadHeader validates the file header and returns the declared total
// container length. The declared length is not cross-checked against
// len(b); some producers round it generously.
func ReadHeader(b []byte) (total uint32, err error) {
	if len(b) < HeaderSize {
		return 0, ErrNotGLB
	}
	if binary.LittleEndian.Uint32(b[0:4]) != Magic {
		return 0, ErrNotGLB
	}
	if v := binary.LittleEndian.Uint32(b[4:8]); v != Version {
		return 0, fmt.Errorf("%w: %d", ErrVersion, v)
	}
	return binary.LittleEndian.Uint32(b[8:12]), nil
}

// ReadChunk reads the chunk starting at off and returns its stored
// length, type tag, and content bytes. The content slice aliases b.
func ReadChunk(b []byte, off int) (length, typ uint32, content []byte, err error) {
	if off < 0 || off+ChunkHeaderSize > len(b) {
		return 0, 0, nil, fmt.Errorf("%w: chunk header at offset %d", ErrTruncated, off)
	}
	length = binary.LittleEndian.Uint32(b[off:])
	typ = binary.LittleEndian.Uint32(b[off+4:])
	end := off + ChunkHeaderSize + int(length)
	if end > len(b) {
		return 0, 0, nil, fmt.Errorf("%w: chunk of %d bytes at offset %d", ErrTruncated, length, off)
	}
	return length, typ, b[off+ChunkHeaderSize : end], nil
}

// AppendHeader appends a file header declaring the given total length.
func AppendHeader(dst []byte, total uint32) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, Magic)
	dst = binary.LittleEndian.AppendUint32(dst, Version)
	return binary.LittleEndian.AppendUint32(dst, total)
}

// AppendChunkHeader appends a chunk header with the given stored
// length and type tag. The caller appends the (already padded) content.
func AppendChunkHeader(dst []byte, length, typ uint32) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, length)
	return binary.LittleEndian.AppendUint32(dst, typ)
}
