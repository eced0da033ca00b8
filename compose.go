package gltfconv

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/najadojo/gltfconv/internal/glb"
	"github.com/najadojo/gltfconv/internal/jsontree"
	"github.com/najadojo/gltfconv/internal/mimetype"
)

// Composition is the result of composing a decomposed document into a
// single binary container.
type Composition struct {
	// GLB is the complete container: header, JSON chunk, BIN chunk.
	GLB []byte

	// Digest is the canonical sha256 digest of GLB.
	Digest digest.Digest
}

// loadJob is one uri-carrying entry whose bytes must be materialized
// before layout. Jobs may load concurrently; layout is a sequential
// scan afterwards, so the container does not depend on load order.
type loadJob struct {
	label string
	uri   string
	desc  map[string]any
	data  []byte
	mime  string
}

// Compose converts a decomposed document into a binary container.
// Relative resource URIs resolve against fsys; a nil fsys resolves
// data URIs only. Nothing is written to the filesystem; see
// ComposeFile for the whole-file wrapper.
func Compose(ctx context.Context, document []byte, fsys fs.FS, opts ...Option) (*Composition, error) {
	cfg := applyOptions(opts)
	log := cfg.log()

	doc, err := jsontree.Decode(document)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	buffers, _ := jsontree.ArrField(doc, "buffers")
	views, viewsPresent := jsontree.ArrField(doc, "bufferViews")

	log.Info("composing container", "buffers", len(buffers), "buffer_views", len(views))

	// Collect every uri-carrying entry: existing buffers first, then
	// resource descriptors in classification order.
	bufJobs := make([]*loadJob, len(buffers))
	var jobs []*loadJob
	for i, v := range buffers {
		desc, ok := jsontree.Obj(v)
		if !ok {
			return nil, fmt.Errorf("%w: buffers[%d] is not an object", ErrMalformedDocument, i)
		}
		uri, ok := jsontree.StrField(desc, "uri")
		if !ok {
			continue
		}
		bufJobs[i] = &loadJob{label: fmt.Sprintf("buffers[%d]", i), uri: uri, desc: desc}
		jobs = append(jobs, bufJobs[i])
	}
	resJobs := collectResourceJobs(doc)
	jobs = append(jobs, resJobs...)

	if err := loadJobs(ctx, fsys, jobs, cfg.concurrency); err != nil {
		return nil, err
	}

	// Layout scan: merge existing buffers into one blob, shifting their
	// views, then append a fresh view per resolved resource.
	offset := 0
	type part struct {
		offset int
		data   []byte
	}
	var parts []part
	bufShift := make(map[int]int, len(buffers))
	for i, job := range bufJobs {
		if job == nil {
			continue
		}
		if job.data == nil {
			// Undecodable embedded data; the descriptor stays, the
			// dead reference goes.
			delete(job.desc, "uri")
			log.Warn("buffer has no resolvable data", "buffer", i, "uri", job.uri)
			continue
		}
		bufShift[i] = offset
		parts = append(parts, part{offset: offset, data: job.data})
		offset += glb.Align4(len(job.data))
	}

	for i, v := range views {
		view, ok := jsontree.Obj(v)
		if !ok {
			return nil, fmt.Errorf("%w: bufferViews[%d] is not an object", ErrMalformedDocument, i)
		}
		bufIndex, _ := jsontree.IntField(view, "buffer")
		if shift, ok := bufShift[bufIndex]; ok {
			byteOffset, _ := jsontree.IntField(view, "byteOffset")
			view["byteOffset"] = byteOffset + shift
		}
		view["buffer"] = 0
	}

	for _, job := range resJobs {
		if job.data == nil {
			delete(job.desc, "uri")
			log.Warn("resource has no resolvable data", "site", job.label, "uri", job.uri)
			continue
		}
		mimeType := job.mime
		if mimeType == "" {
			mimeType = mimetype.Default
		}
		views = append(views, map[string]any{
			"buffer":     0,
			"byteOffset": offset,
			"byteLength": len(job.data),
		})
		job.desc["bufferView"] = len(views) - 1
		job.desc["mimeType"] = mimeType
		delete(job.desc, "uri")
		parts = append(parts, part{offset: offset, data: job.data})
		offset += glb.Align4(len(job.data))
		log.Debug("packed resource", "site", job.label, "size", len(job.data), "offset", offset)
	}
	if viewsPresent || len(views) > 0 {
		doc["bufferViews"] = views
	}

	doc["buffers"] = []any{map[string]any{"byteLength": offset}}

	jsonChunk, err := jsontree.Encode(doc, false)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	for len(jsonChunk)%4 != 0 {
		jsonChunk = append(jsonChunk, ' ')
	}

	payload := make([]byte, offset)
	for _, p := range parts {
		copy(payload[p.offset:], p.data)
	}

	total := glb.HeaderSize +
		glb.ChunkHeaderSize + len(jsonChunk) +
		glb.ChunkHeaderSize + len(payload)

	out := make([]byte, 0, total)
	out = glb.AppendHeader(out, uint32(total))
	out = glb.AppendChunkHeader(out, uint32(len(jsonChunk)), glb.ChunkJSON)
	out = append(out, jsonChunk...)
	out = glb.AppendChunkHeader(out, uint32(len(payload)), glb.ChunkBIN)
	out = append(out, payload...)

	c := &Composition{GLB: out, Digest: digest.FromBytes(out)}
	log.Info("composed container", "size", total, "payload_size", len(payload), "digest", c.Digest)
	return c, nil
}

// collectResourceJobs gathers the uri-carrying resource descriptors in
// classification order: images, shaders, then extension arrays with
// names in sorted order.
func collectResourceJobs(doc map[string]any) []*loadJob {
	var jobs []*loadJob
	collect := func(label string, entries []any) {
		for i, v := range entries {
			entry, ok := jsontree.Obj(v)
			if !ok {
				continue
			}
			uri, ok := jsontree.StrField(entry, "uri")
			if !ok {
				continue
			}
			jobs = append(jobs, &loadJob{
				label: fmt.Sprintf("%s[%d]", label, i),
				uri:   uri,
				desc:  entry,
			})
		}
	}
	if images, ok := jsontree.ArrField(doc, "images"); ok {
		collect("images", images)
	}
	if shaders, ok := jsontree.ArrField(doc, "shaders"); ok {
		collect("shaders", shaders)
	}
	forEachExtensionArray(doc, func(extName, propName string, entries []any) {
		collect(fmt.Sprintf("extensions.%s.%s", extName, propName), entries)
	})
	return jobs
}

// loadJobs materializes job bytes, at most concurrency loads in
// flight. A missing external file is fatal; an undecodable data URI
// leaves the job with nil data for the caller to skip.
func loadJobs(ctx context.Context, fsys fs.FS, jobs []*loadJob, concurrency int) error {
	g, gctx := errgroup.WithContext(ctx)
	if concurrency < 1 {
		concurrency = 1
	}
	g.SetLimit(concurrency)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, mime, err := loadURI(fsys, job.uri)
			if err != nil {
				return fmt.Errorf("%w: %s (%s): %v", ErrResourceNotFound, job.label, job.uri, err)
			}
			job.data, job.mime = data, mime
			return nil
		})
	}
	return g.Wait()
}
