package gltfconv

import (
	"encoding/base64"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	"github.com/najadojo/gltfconv/internal/jsontree"
	"github.com/najadojo/gltfconv/internal/mimetype"
)

const dataURIPrefix = "data:"

// decodeDataURI decodes an embedded data URI. A URI with no comma
// separator or an undecodable payload yields nil data rather than an
// error; callers treat that as "no data, clear the reference".
func decodeDataURI(uri string) (data []byte, mediaType string) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, dataURIPrefix), ",")
	if !ok {
		return nil, ""
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, ""
	}
	mediaType, _, _ = strings.Cut(meta, ";")
	return data, mediaType
}

// loadURI resolves a resource URI to raw bytes and a MIME type.
//
// Data URIs are decoded inline, with the MIME type taken from the
// URI's media-type field; malformed encodings yield (nil, "", nil).
// Anything else is a percent-encoded path read from fsys, with the
// MIME type guessed from the extension.
func loadURI(fsys fs.FS, uri string) (data []byte, mimeType string, err error) {
	if strings.HasPrefix(uri, dataURIPrefix) {
		data, mimeType = decodeDataURI(uri)
		return data, mimeType, nil
	}
	path := uri
	if unescaped, uerr := url.PathUnescape(uri); uerr == nil {
		path = unescaped
	}
	if fsys == nil {
		return nil, "", fmt.Errorf("%q: %w", path, fs.ErrNotExist)
	}
	data, err = fs.ReadFile(fsys, path)
	if err != nil {
		return nil, "", err
	}
	return data, mimetype.FromPath(path), nil
}

// resourceLoader resolves buffer descriptors to raw bytes. The
// container's own binary chunk is injected at index 0 before any
// descriptor-driven loads, so the implicit GLB buffer is just another
// entry in the resolution table. An explicit uri on the descriptor
// always wins over seeded bytes.
type resourceLoader struct {
	fsys   fs.FS
	seeded map[int][]byte
	cache  map[int][]byte
}

func newResourceLoader(fsys fs.FS) *resourceLoader {
	return &resourceLoader{
		fsys:   fsys,
		seeded: make(map[int][]byte),
		cache:  make(map[int][]byte),
	}
}

// seed records pre-resolved bytes for a uri-less buffer index.
func (l *resourceLoader) seed(index int, data []byte) {
	l.seeded[index] = data
}

// buffer returns the bytes backing buffers[index]. A descriptor with a
// uri is loaded through loadURI; one without a uri resolves only if it
// was seeded. A nil result with nil error means the descriptor carries
// no resolvable data.
func (l *resourceLoader) buffer(buffers []any, index int) ([]byte, error) {
	if index < 0 || index >= len(buffers) {
		return nil, fmt.Errorf("%w: buffer %d does not exist", ErrMalformedDocument, index)
	}
	desc, ok := jsontree.Obj(buffers[index])
	if !ok {
		return nil, fmt.Errorf("%w: buffers[%d] is not an object", ErrMalformedDocument, index)
	}
	uri, ok := jsontree.StrField(desc, "uri")
	if !ok {
		return l.seeded[index], nil
	}
	if data, ok := l.cache[index]; ok {
		return data, nil
	}
	data, _, err := loadURI(l.fsys, uri)
	if err != nil {
		return nil, fmt.Errorf("%w: buffer %d (%s): %v", ErrResourceNotFound, index, uri, err)
	}
	l.cache[index] = data
	return data, nil
}

// viewBytes slices the byte range described by a bufferView out of its
// backing buffer.
func (l *resourceLoader) viewBytes(buffers []any, view map[string]any, viewIndex int) ([]byte, error) {
	bufIndex, _ := jsontree.IntField(view, "buffer")
	length, ok := jsontree.IntField(view, "byteLength")
	if !ok {
		return nil, fmt.Errorf("%w: bufferViews[%d] has no byteLength", ErrMalformedDocument, viewIndex)
	}
	offset, _ := jsontree.IntField(view, "byteOffset")

	data, err := l.buffer(buffers, bufIndex)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("%w: bufferViews[%d] references buffer %d, which has no data",
			ErrResourceNotFound, viewIndex, bufIndex)
	}
	if offset < 0 || length < 0 || offset+length > len(data) {
		return nil, fmt.Errorf("%w: bufferViews[%d] range [%d, %d) exceeds buffer %d (%d bytes)",
			ErrMalformedDocument, viewIndex, offset, offset+length, bufIndex, len(data))
	}
	return data[offset : offset+length], nil
}
