package gltfconv

import (
	"context"
	"encoding/binary"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/najadojo/gltfconv/internal/glb"
	"github.com/najadojo/gltfconv/internal/jsontree"
)

// buildGLB assembles a container from raw JSON text and an optional
// binary chunk, padding both per the wire format.
func buildGLB(t *testing.T, doc string, bin []byte) []byte {
	t.Helper()
	jsonChunk := []byte(doc)
	for len(jsonChunk)%4 != 0 {
		jsonChunk = append(jsonChunk, ' ')
	}
	total := glb.HeaderSize + glb.ChunkHeaderSize + len(jsonChunk)
	if bin != nil {
		total += glb.ChunkHeaderSize + glb.Align4(len(bin))
	}
	out := glb.AppendHeader(nil, uint32(total))
	out = glb.AppendChunkHeader(out, uint32(len(jsonChunk)), glb.ChunkJSON)
	out = append(out, jsonChunk...)
	if bin != nil {
		out = glb.AppendChunkHeader(out, uint32(glb.Align4(len(bin))), glb.ChunkBIN)
		out = append(out, bin...)
		out = append(out, make([]byte, glb.Align4(len(bin))-len(bin))...)
	}
	return out
}

func decodeDoc(t *testing.T, data []byte) map[string]any {
	t.Helper()
	doc, err := jsontree.Decode(data)
	require.NoError(t, err)
	return doc
}

func intField(t *testing.T, o map[string]any, key string) int {
	t.Helper()
	n, ok := jsontree.IntField(o, key)
	require.True(t, ok, "missing integer field %q", key)
	return n
}

func objAt(t *testing.T, arr []any, i int) map[string]any {
	t.Helper()
	require.Less(t, i, len(arr))
	o, ok := jsontree.Obj(arr[i])
	require.True(t, ok)
	return o
}

func arrField(t *testing.T, o map[string]any, key string) []any {
	t.Helper()
	a, ok := jsontree.ArrField(o, key)
	require.True(t, ok, "missing array field %q", key)
	return a
}

func findSidecar(t *testing.T, d *Decomposition, name string) Sidecar {
	t.Helper()
	for _, sc := range d.Sidecars {
		if sc.Name == name {
			return sc
		}
	}
	t.Fatalf("no sidecar named %q (have %d sidecars)", name, len(d.Sidecars))
	return Sidecar{}
}

func TestDecomposeMinimal(t *testing.T) {
	bin := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	container := buildGLB(t, `{
		"asset": {"version": "2.0"},
		"buffers": [{"byteLength": 8}],
		"bufferViews": [{"buffer": 0, "byteOffset": 0, "byteLength": 8}],
		"accessors": [{"bufferView": 0, "componentType": 5126, "count": 2, "type": "VEC2"}]
	}`, bin)

	d, err := Decompose(context.Background(), container, "model")
	require.NoError(t, err)

	require.Len(t, d.Sidecars, 1)
	assert.Equal(t, "model_data.bin", d.Sidecars[0].Name)
	assert.Equal(t, bin, d.Sidecars[0].Data)

	doc := decodeDoc(t, d.Document)
	buffers := arrField(t, doc, "buffers")
	require.Len(t, buffers, 1)
	buf := objAt(t, buffers, 0)
	assert.Equal(t, "model_data.bin", buf["uri"])
	assert.Equal(t, 8, intField(t, buf, "byteLength"))

	views := arrField(t, doc, "bufferViews")
	require.Len(t, views, 1)
	view := objAt(t, views, 0)
	assert.Equal(t, 0, intField(t, view, "buffer"))
	assert.Equal(t, 0, intField(t, view, "byteOffset"))
	assert.Equal(t, 8, intField(t, view, "byteLength"))

	acc := objAt(t, arrField(t, doc, "accessors"), 0)
	assert.Equal(t, 0, intField(t, acc, "bufferView"))
}

func TestDecomposeGates(t *testing.T) {
	t.Run("bad magic", func(t *testing.T) {
		_, err := Decompose(context.Background(), []byte("this is not a container"), "model")
		assert.ErrorIs(t, err, ErrMalformedContainer)
	})

	t.Run("version 1", func(t *testing.T) {
		container := buildGLB(t, `{}`, nil)
		binary.LittleEndian.PutUint32(container[4:], 1)
		_, err := Decompose(context.Background(), container, "model")
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("version 3", func(t *testing.T) {
		container := buildGLB(t, `{}`, nil)
		binary.LittleEndian.PutUint32(container[4:], 3)
		_, err := Decompose(context.Background(), container, "model")
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("first chunk not JSON", func(t *testing.T) {
		out := glb.AppendHeader(nil, 20)
		out = glb.AppendChunkHeader(out, 4, glb.ChunkBIN)
		out = append(out, 0, 0, 0, 0)
		_, err := Decompose(context.Background(), out, "model")
		assert.ErrorIs(t, err, ErrMalformedContainer)
	})

	t.Run("unparseable metadata", func(t *testing.T) {
		container := buildGLB(t, `{"buffers": `, nil)
		_, err := Decompose(context.Background(), container, "model")
		assert.ErrorIs(t, err, ErrMalformedDocument)
	})
}

func TestDecomposeImageGrouping(t *testing.T) {
	// 13 bytes: two 4-byte generic views, then a 5-byte image at offset 8.
	bin := []byte{1, 2, 3, 4, 5, 6, 7, 8, 0x89, 'P', 'N', 'G', 0}
	container := buildGLB(t, `{
		"buffers": [{"byteLength": 13}],
		"bufferViews": [
			{"buffer": 0, "byteOffset": 0, "byteLength": 4},
			{"buffer": 0, "byteOffset": 4, "byteLength": 4},
			{"buffer": 0, "byteOffset": 8, "byteLength": 5}
		],
		"images": [
			{"bufferView": 2, "mimeType": "image/png", "name": "a"},
			{"bufferView": 2, "mimeType": "image/png", "name": "b"}
		],
		"accessors": [{"bufferView": 0}, {"bufferView": 1}]
	}`, bin)

	d, err := Decompose(context.Background(), container, "model")
	require.NoError(t, err)

	// One sidecar for the shared image view plus the data buffer.
	require.Len(t, d.Sidecars, 2)
	img := findSidecar(t, d, "model_img0.png")
	assert.Equal(t, bin[8:13], img.Data)

	doc := decodeDoc(t, d.Document)
	images := arrField(t, doc, "images")
	for i := range images {
		entry := objAt(t, images, i)
		assert.Equal(t, "model_img0.png", entry["uri"])
		assert.NotContains(t, entry, "bufferView")
		assert.NotContains(t, entry, "mimeType")
	}

	views := arrField(t, doc, "bufferViews")
	require.Len(t, views, 2)
	accessors := arrField(t, doc, "accessors")
	assert.Equal(t, 0, intField(t, objAt(t, accessors, 0), "bufferView"))
	assert.Equal(t, 1, intField(t, objAt(t, accessors, 1), "bufferView"))

	data := findSidecar(t, d, "model_data.bin")
	assert.Equal(t, bin[0:8], data.Data)
}

func TestDecomposeAlignment(t *testing.T) {
	bin := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	container := buildGLB(t, `{
		"buffers": [{"byteLength": 8}],
		"bufferViews": [
			{"buffer": 0, "byteOffset": 0, "byteLength": 5},
			{"buffer": 0, "byteOffset": 5, "byteLength": 3}
		]
	}`, bin)

	d, err := Decompose(context.Background(), container, "model")
	require.NoError(t, err)

	doc := decodeDoc(t, d.Document)
	views := arrField(t, doc, "bufferViews")
	require.Len(t, views, 2)

	v0 := objAt(t, views, 0)
	assert.Equal(t, 0, intField(t, v0, "byteOffset"))
	assert.Equal(t, 5, intField(t, v0, "byteLength"))

	// The second view starts on the next 4-byte boundary; its stored
	// length stays unpadded.
	v1 := objAt(t, views, 1)
	assert.Equal(t, 8, intField(t, v1, "byteOffset"))
	assert.Equal(t, 3, intField(t, v1, "byteLength"))

	data := findSidecar(t, d, "model_data.bin")
	require.Len(t, data.Data, 12)
	assert.Equal(t, bin[0:5], data.Data[0:5])
	assert.Equal(t, bin[5:8], data.Data[8:11])

	buf := objAt(t, arrField(t, doc, "buffers"), 0)
	assert.Equal(t, 12, intField(t, buf, "byteLength"))
}

func TestDecomposeShaders(t *testing.T) {
	bin := []byte("void main(){}___void frag(){}___plain shader___")
	container := buildGLB(t, `{
		"buffers": [{"byteLength": 47}],
		"bufferViews": [
			{"buffer": 0, "byteOffset": 0, "byteLength": 13},
			{"buffer": 0, "byteOffset": 16, "byteLength": 13},
			{"buffer": 0, "byteOffset": 32, "byteLength": 12}
		],
		"shaders": [
			{"bufferView": 0, "type": 35633},
			{"bufferView": 1, "type": 35632},
			{"bufferView": 2}
		]
	}`, bin)

	d, err := Decompose(context.Background(), container, "model")
	require.NoError(t, err)

	assert.Equal(t, []byte("void main(){}"), findSidecar(t, d, "model_shader0.vert").Data)
	assert.Equal(t, []byte("void frag(){}"), findSidecar(t, d, "model_shader1.frag").Data)
	assert.Equal(t, []byte("plain shader"), findSidecar(t, d, "model_shader2.glsl").Data)

	doc := decodeDoc(t, d.Document)
	shaders := arrField(t, doc, "shaders")
	assert.Equal(t, "model_shader0.vert", objAt(t, shaders, 0)["uri"])
	assert.Equal(t, "model_shader1.frag", objAt(t, shaders, 1)["uri"])
	assert.Equal(t, "model_shader2.glsl", objAt(t, shaders, 2)["uri"])
	assert.Empty(t, arrField(t, doc, "bufferViews"))
}

func TestDecomposeExtensionBuffers(t *testing.T) {
	bin := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0xCA, 0xFE}
	container := buildGLB(t, `{
		"buffers": [{"byteLength": 6}],
		"bufferViews": [
			{"buffer": 0, "byteOffset": 0, "byteLength": 4},
			{"buffer": 0, "byteOffset": 4, "byteLength": 2}
		],
		"extensions": {
			"EXT_custom_payload": {
				"name": "not an array",
				"payloads": [{"bufferView": 1, "mimeType": "application/octet-stream"}]
			}
		}
	}`, bin)

	d, err := Decompose(context.Background(), container, "model")
	require.NoError(t, err)

	sc := findSidecar(t, d, "model_EXT_custom_payload_payloads_1.bin")
	assert.Equal(t, bin[4:6], sc.Data)

	doc := decodeDoc(t, d.Document)
	exts, ok := jsontree.ObjField(doc, "extensions")
	require.True(t, ok)
	ext, ok := jsontree.ObjField(exts, "EXT_custom_payload")
	require.True(t, ok)
	payloads, ok := jsontree.ArrField(ext, "payloads")
	require.True(t, ok)
	entry := objAt(t, payloads, 0)
	assert.Equal(t, "model_EXT_custom_payload_payloads_1.bin", entry["uri"])
	assert.NotContains(t, entry, "bufferView")

	views := arrField(t, doc, "bufferViews")
	require.Len(t, views, 1)
	assert.Equal(t, 4, intField(t, objAt(t, views, 0), "byteLength"))
}

func TestDecomposeDracoRemap(t *testing.T) {
	bin := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	container := buildGLB(t, `{
		"buffers": [{"byteLength": 8}],
		"bufferViews": [
			{"buffer": 0, "byteOffset": 0, "byteLength": 4},
			{"buffer": 0, "byteOffset": 4, "byteLength": 4}
		],
		"images": [{"bufferView": 0, "mimeType": "image/png"}],
		"meshes": [{
			"primitives": [{
				"attributes": {"POSITION": 0},
				"extensions": {
					"KHR_draco_mesh_compression": {"bufferView": 1, "attributes": {"POSITION": 0}}
				}
			}]
		}]
	}`, bin)

	d, err := Decompose(context.Background(), container, "model")
	require.NoError(t, err)

	doc := decodeDoc(t, d.Document)
	mesh := objAt(t, arrField(t, doc, "meshes"), 0)
	prim := objAt(t, arrField(t, mesh, "primitives"), 0)
	exts, ok := jsontree.ObjField(prim, "extensions")
	require.True(t, ok)
	draco, ok := jsontree.ObjField(exts, "KHR_draco_mesh_compression")
	require.True(t, ok)
	assert.Equal(t, 0, intField(t, draco, "bufferView"))
}

func TestDecomposeSparseRemap(t *testing.T) {
	bin := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	container := buildGLB(t, `{
		"buffers": [{"byteLength": 12}],
		"bufferViews": [
			{"buffer": 0, "byteOffset": 0, "byteLength": 4},
			{"buffer": 0, "byteOffset": 4, "byteLength": 4},
			{"buffer": 0, "byteOffset": 8, "byteLength": 4}
		],
		"images": [{"bufferView": 0, "mimeType": "image/png"}],
		"accessors": [{
			"componentType": 5126,
			"count": 3,
			"type": "SCALAR",
			"sparse": {
				"count": 1,
				"indices": {"bufferView": 1, "componentType": 5123},
				"values": {"bufferView": 2}
			}
		}]
	}`, bin)

	d, err := Decompose(context.Background(), container, "model")
	require.NoError(t, err)

	doc := decodeDoc(t, d.Document)
	acc := objAt(t, arrField(t, doc, "accessors"), 0)
	sparse, ok := jsontree.ObjField(acc, "sparse")
	require.True(t, ok)
	indices, ok := jsontree.ObjField(sparse, "indices")
	require.True(t, ok)
	values, ok := jsontree.ObjField(sparse, "values")
	require.True(t, ok)
	assert.Equal(t, 0, intField(t, indices, "bufferView"))
	assert.Equal(t, 1, intField(t, values, "bufferView"))
}

func TestDecomposeIndexMappingError(t *testing.T) {
	bin := []byte{1, 2, 3, 4}
	// The accessor points at a view that classification hands to the
	// image; there is no valid index to rewrite it to.
	container := buildGLB(t, `{
		"buffers": [{"byteLength": 4}],
		"bufferViews": [{"buffer": 0, "byteOffset": 0, "byteLength": 4}],
		"images": [{"bufferView": 0, "mimeType": "image/png"}],
		"accessors": [{"bufferView": 0}]
	}`, bin)

	_, err := Decompose(context.Background(), container, "model")
	assert.ErrorIs(t, err, ErrIndexMapping)
}

func TestDecomposeExternalBuffer(t *testing.T) {
	fsys := fstest.MapFS{
		"external.bin": {Data: []byte{9, 9, 9, 9, 1, 2, 3, 4}},
	}
	container := buildGLB(t, `{
		"buffers": [{"uri": "external.bin", "byteLength": 8}],
		"bufferViews": [{"buffer": 0, "byteOffset": 4, "byteLength": 4}]
	}`, nil)

	d, err := Decompose(context.Background(), container, "model", WithFS(fsys))
	require.NoError(t, err)

	data := findSidecar(t, d, "model_data.bin")
	assert.Equal(t, []byte{1, 2, 3, 4}, data.Data)

	t.Run("missing without fs", func(t *testing.T) {
		_, err := Decompose(context.Background(), container, "model")
		assert.ErrorIs(t, err, ErrResourceNotFound)
	})
}
