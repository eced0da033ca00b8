package gltfconv

import (
	"bytes"
	"context"
	"fmt"

	"github.com/opencontainers/go-digest"

	"github.com/najadojo/gltfconv/internal/glb"
	"github.com/najadojo/gltfconv/internal/jsontree"
	"github.com/najadojo/gltfconv/internal/mimetype"
)

// Legacy shader type constants (GL_FRAGMENT_SHADER, GL_VERTEX_SHADER).
const (
	shaderTypeFragment = 35632
	shaderTypeVertex   = 35633
)

// Sidecar is one binary file produced by decomposition.
type Sidecar struct {
	// Name is the relative filename, also the uri recorded in the
	// document for the descriptors it backs.
	Name string

	// Data is the file content.
	Data []byte

	// Digest is the canonical sha256 digest of Data.
	Digest digest.Digest
}

// Decomposition is the in-memory result of decomposing a container.
type Decomposition struct {
	// Document is the rewritten metadata, pretty-printed.
	Document []byte

	// Sidecars holds the extracted binary resources in classification
	// order, with the consolidated data buffer last.
	Sidecars []Sidecar
}

// viewGroup is a set of resource descriptors backed by one bufferView,
// all redirected to the same sidecar.
type viewGroup struct {
	ext   string           // sidecar extension, including the dot
	name  string           // sidecar name component, e.g. "img0"
	descs []map[string]any // descriptors to redirect
}

// Decompose converts a binary container into its decomposed form: a
// pretty-printed JSON document plus sidecar files, named relative to
// baseName. Nothing is written to the filesystem; see DecomposeFile
// for the whole-file wrapper.
//
// External buffers referenced by the document (beyond the embedded
// binary chunk) resolve against the filesystem given via WithFS.
func Decompose(ctx context.Context, container []byte, baseName string, opts ...Option) (*Decomposition, error) {
	cfg := applyOptions(opts)
	log := cfg.log()

	if _, err := glb.ReadHeader(container); err != nil {
		return nil, fmt.Errorf("read container header: %w", err)
	}

	length, typ, jsonChunk, err := glb.ReadChunk(container, glb.HeaderSize)
	if err != nil {
		return nil, fmt.Errorf("read metadata chunk: %w", err)
	}
	if typ != glb.ChunkJSON {
		return nil, fmt.Errorf("%w: first chunk tag 0x%08x is not JSON", ErrMalformedContainer, typ)
	}

	var bin []byte
	if off := glb.HeaderSize + glb.ChunkHeaderSize + int(length); off < len(container) {
		_, typ, content, err := glb.ReadChunk(container, off)
		if err != nil {
			return nil, fmt.Errorf("read binary chunk: %w", err)
		}
		if typ == glb.ChunkBIN {
			bin = content
		}
	}

	doc, err := jsontree.Decode(jsonChunk)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	log.Info("decomposing container", "container_size", len(container), "binary_chunk_size", len(bin))

	loader := newResourceLoader(cfg.fsys)
	loader.seed(0, bin)

	buffers, _ := jsontree.ArrField(doc, "buffers")
	views, _ := jsontree.ArrField(doc, "bufferViews")

	groups := classifyViews(doc, len(views))

	d := &Decomposition{}

	// Resource groups become one sidecar each; their descriptors trade
	// the bufferView/mimeType pair for a uri.
	var generic []int
	for viewIndex := 0; viewIndex < len(views); viewIndex++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		group, ok := groups[viewIndex]
		if !ok {
			generic = append(generic, viewIndex)
			continue
		}
		view, ok := jsontree.Obj(views[viewIndex])
		if !ok {
			return nil, fmt.Errorf("%w: bufferViews[%d] is not an object", ErrMalformedDocument, viewIndex)
		}
		data, err := loader.viewBytes(buffers, view, viewIndex)
		if err != nil {
			return nil, err
		}
		sidecar := Sidecar{
			Name:   baseName + "_" + group.name + group.ext,
			Data:   data,
			Digest: digest.FromBytes(data),
		}
		d.Sidecars = append(d.Sidecars, sidecar)
		for _, desc := range group.descs {
			desc["uri"] = sidecar.Name
			delete(desc, "bufferView")
			delete(desc, "mimeType")
		}
		log.Debug("extracted resource", "sidecar", sidecar.Name, "size", len(data), "digest", sidecar.Digest)
	}

	// The remaining views are packed into one consolidated buffer,
	// reindexed densely in their original relative order.
	var data bytes.Buffer
	remap := make(map[int]int, len(generic))
	newViews := make([]any, 0, len(generic))
	for _, viewIndex := range generic {
		view, ok := jsontree.Obj(views[viewIndex])
		if !ok {
			return nil, fmt.Errorf("%w: bufferViews[%d] is not an object", ErrMalformedDocument, viewIndex)
		}
		chunk, err := loader.viewBytes(buffers, view, viewIndex)
		if err != nil {
			return nil, err
		}
		remap[viewIndex] = len(newViews)
		view["buffer"] = 0
		view["byteOffset"] = data.Len()
		view["byteLength"] = len(chunk)
		newViews = append(newViews, view)
		data.Write(chunk)
		for pad := len(chunk); pad < glb.Align4(len(chunk)); pad++ {
			data.WriteByte(0)
		}
	}
	doc["bufferViews"] = newViews

	if err := remapViewRefs(doc, remap); err != nil {
		return nil, err
	}

	dataName := baseName + "_data.bin"
	doc["buffers"] = []any{map[string]any{
		"uri":        dataName,
		"byteLength": data.Len(),
	}}
	dataSidecar := Sidecar{
		Name:   dataName,
		Data:   data.Bytes(),
		Digest: digest.FromBytes(data.Bytes()),
	}
	d.Sidecars = append(d.Sidecars, dataSidecar)

	d.Document, err = jsontree.Encode(doc, true)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	log.Info("decomposed container",
		"sidecars", len(d.Sidecars),
		"buffer_views", len(newViews),
		"data_size", data.Len(),
		"data_digest", dataSidecar.Digest)
	return d, nil
}

// classifyViews scans the resource descriptor arrays and assigns each
// referenced bufferView index to a sidecar group. Images are grouped:
// descriptors sharing a view share one sidecar. Views claimed by no
// descriptor are generic and land in the consolidated data buffer.
func classifyViews(doc map[string]any, viewCount int) map[int]viewGroup {
	groups := make(map[int]viewGroup)

	claim := func(viewIndex int, desc map[string]any, build func() viewGroup) {
		if viewIndex < 0 || viewIndex >= viewCount {
			return
		}
		group, ok := groups[viewIndex]
		if !ok {
			group = build()
		}
		group.descs = append(group.descs, desc)
		groups[viewIndex] = group
	}

	if images, ok := jsontree.ArrField(doc, "images"); ok {
		for i, v := range images {
			img, ok := jsontree.Obj(v)
			if !ok {
				continue
			}
			viewIndex, ok := jsontree.IntField(img, "bufferView")
			if !ok {
				continue
			}
			index := i
			claim(viewIndex, img, func() viewGroup {
				mimeType, _ := jsontree.StrField(img, "mimeType")
				return viewGroup{
					name: fmt.Sprintf("img%d", index),
					ext:  mimetype.Ext(mimeType),
				}
			})
		}
	}

	if shaders, ok := jsontree.ArrField(doc, "shaders"); ok {
		for i, v := range shaders {
			shader, ok := jsontree.Obj(v)
			if !ok {
				continue
			}
			viewIndex, ok := jsontree.IntField(shader, "bufferView")
			if !ok {
				continue
			}
			index := i
			claim(viewIndex, shader, func() viewGroup {
				ext := ".glsl"
				switch typ, _ := jsontree.IntField(shader, "type"); typ {
				case shaderTypeVertex:
					ext = ".vert"
				case shaderTypeFragment:
					ext = ".frag"
				}
				return viewGroup{name: fmt.Sprintf("shader%d", index), ext: ext}
			})
		}
	}

	forEachExtensionArray(doc, func(extName, propName string, entries []any) {
		for _, v := range entries {
			entry, ok := jsontree.Obj(v)
			if !ok {
				continue
			}
			viewIndex, ok := jsontree.IntField(entry, "bufferView")
			if !ok {
				continue
			}
			claim(viewIndex, entry, func() viewGroup {
				mimeType, _ := jsontree.StrField(entry, "mimeType")
				return viewGroup{
					name: fmt.Sprintf("%s_%s_%d", extName, propName, viewIndex),
					ext:  mimetype.Ext(mimeType),
				}
			})
		}
	})

	return groups
}

// remapViewRefs rewrites every non-descriptor bufferView reference from
// the old index space to the dense post-classification one. A site
// still pointing at a view that was claimed by a resource descriptor
// has no mapping; that is an inconsistency in the input, not something
// to paper over with a guessed index.
func remapViewRefs(doc map[string]any, remap map[int]int) error {
	return forEachViewRefSite(doc, func(site string, holder map[string]any) error {
		old, ok := jsontree.IntField(holder, "bufferView")
		if !ok {
			return nil
		}
		mapped, ok := remap[old]
		if !ok {
			return fmt.Errorf("%w: %s references buffer view %d", ErrIndexMapping, site, old)
		}
		holder["bufferView"] = mapped
		return nil
	})
}
