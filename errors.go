package gltfconv

import (
	"errors"

	"github.com/najadojo/gltfconv/internal/glb"
)

// Sentinel errors re-exported from internal/glb.
var (
	// ErrMalformedContainer is returned when the container's magic
	// bytes do not match or a chunk cannot be read.
	ErrMalformedContainer = glb.ErrNotGLB

	// ErrUnsupportedVersion is returned when the container version is
	// not 2.
	ErrUnsupportedVersion = glb.ErrVersion
)

// Sentinel errors specific to the transforms.
var (
	// ErrMalformedDocument is returned when the JSON metadata does not
	// parse or lacks a field the transform requires.
	ErrMalformedDocument = errors.New("gltfconv: malformed document")

	// ErrResourceNotFound is returned when a referenced external or
	// embedded resource cannot be resolved.
	ErrResourceNotFound = errors.New("gltfconv: referenced resource not found")

	// ErrIndexMapping is returned when a buffer view reference cannot
	// be mapped into the post-transform index space. It indicates an
	// inconsistent input document, never a partially written output.
	ErrIndexMapping = errors.New("gltfconv: buffer view reference cannot be remapped")
)
