// Package mimetype maps between the MIME types carried by glTF
// resource descriptors and sidecar file extensions.
//
// The stdlib mime package keys off the host's type tables, which would
// make sidecar names vary between machines; the codec needs one fixed
// answer per type, so the table is explicit.
package mimetype

import "strings"

// Fallbacks, one per direction.
const (
	// Default is the MIME type for unrecognized extensions.
	Default = "application/octet-stream"

	// DefaultExt is the extension for unrecognized MIME types.
	DefaultExt = ".bin"
)

// extensions lists the known extensions per MIME type. The first entry
// is the one chosen when naming a sidecar for that type.
var extensions = map[string][]string{
	"image/png":        {".png"},
	"image/jpeg":       {".jpg", ".jpeg"},
	"image/gif":        {".gif"},
	"image/webp":       {".webp"},
	"image/ktx2":       {".ktx2"},
	"image/bmp":        {".bmp"},
	"image/vnd-ms.dds": {".dds"},
	"audio/wav":        {".wav"},
	"text/plain":       {".glsl", ".vert", ".vs", ".frag", ".fs", ".txt"},
	Default:            {DefaultExt, ".glb"},
}

// byExt is the reverse index, built once at init.
var byExt = func() map[string]string {
	m := make(map[string]string, 16)
	for typ, exts := range extensions {
		for _, ext := range exts {
			m[ext] = typ
		}
	}
	return m
}()

// Ext returns the sidecar extension for a MIME type, including the
// leading dot. Unknown types map to DefaultExt.
func Ext(mimeType string) string {
	if exts, ok := extensions[mimeType]; ok {
		return exts[0]
	}
	return DefaultExt
}

// FromPath guesses the MIME type of a file from its extension. The
// match is case-insensitive; unknown extensions map to Default.
func FromPath(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return Default
	}
	if typ, ok := byExt[strings.ToLower(path[i:])]; ok {
		return typ
	}
	return Default
}
