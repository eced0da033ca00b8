package gltfconv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DecomposeFile reads the binary container at src, decomposes it, and
// writes the JSON document to dst with sidecar files alongside it.
// Sidecar names derive from dst with its extension stripped.
//
// External buffer URIs resolve relative to src's directory unless
// WithFS overrides that. The document at dst is written last, via a
// temp file and rename, so a failed conversion never leaves a partial
// primary output in place.
func DecomposeFile(ctx context.Context, src, dst string, opts ...Option) error {
	container, err := os.ReadFile(src) //nolint:gosec // user-provided path is the point
	if err != nil {
		return fmt.Errorf("read input %s: %w", src, err)
	}

	base := strings.TrimSuffix(filepath.Base(dst), filepath.Ext(dst))
	opts = append([]Option{WithFS(os.DirFS(filepath.Dir(src)))}, opts...)

	d, err := Decompose(ctx, container, base, opts...)
	if err != nil {
		return err
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, sidecar := range d.Sidecars {
		if err := os.WriteFile(filepath.Join(dir, sidecar.Name), sidecar.Data, 0o644); err != nil { //nolint:gosec
			return fmt.Errorf("write sidecar %s: %w", sidecar.Name, err)
		}
	}
	if err := writeFileAtomic(dst, d.Document); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

// ComposeFile reads the JSON document at src, composes it together
// with its sidecar resources into a binary container, and writes the
// container to dst. Relative resource URIs resolve against src's
// directory. The container is written via a temp file and rename.
func ComposeFile(ctx context.Context, src, dst string, opts ...Option) error {
	document, err := os.ReadFile(src) //nolint:gosec // user-provided path is the point
	if err != nil {
		return fmt.Errorf("read input %s: %w", src, err)
	}

	c, err := Compose(ctx, document, os.DirFS(filepath.Dir(src)), opts...)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := writeFileAtomic(dst, c.GLB); err != nil {
		return fmt.Errorf("write container: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file then renames to target,
// ensuring atomic replacement of the target file.
func writeFileAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".gltfconv-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
