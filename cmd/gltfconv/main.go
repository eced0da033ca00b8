// Command gltfconv converts glTF assets between the self-contained
// binary container (.glb) and the decomposed JSON-plus-sidecars form.
//
// The direction is inferred from the input extension: a .glb input is
// unpacked to a .gltf document with sidecar files, anything else is
// packed into a .glb container.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/najadojo/gltfconv"
)

func main() {
	output := pflag.StringP("output", "o", "", "output path (default: input with the extension swapped)")
	verbose := pflag.BoolP("verbose", "v", false, "log per-resource detail to stderr")
	concurrency := pflag.Int("concurrency", 1, "max parallel resource loads when packing")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: gltfconv [flags] <input.glb|input.gltf>\n\nFlags:\n%s", pflag.CommandLine.FlagUsages())
	}
	pflag.Parse()

	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(2)
	}
	input := pflag.Arg(0)

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := []gltfconv.Option{
		gltfconv.WithLogger(logger),
		gltfconv.WithConcurrency(*concurrency),
	}

	ctx := context.Background()
	ext := filepath.Ext(input)
	var err error
	if strings.EqualFold(ext, ".glb") {
		dst := *output
		if dst == "" {
			dst = strings.TrimSuffix(input, ext) + ".gltf"
		}
		err = gltfconv.DecomposeFile(ctx, input, dst, opts...)
	} else {
		dst := *output
		if dst == "" {
			dst = strings.TrimSuffix(input, ext) + ".glb"
		}
		err = gltfconv.ComposeFile(ctx, input, dst, opts...)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "gltfconv: %v\n", err)
		os.Exit(1)
	}
}
