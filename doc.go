// Package gltfconv converts 3D scene assets between the two
// representations of the glTF 2.0 model: the self-contained binary
// container (GLB) and the decomposed form of a JSON document plus
// sidecar binary files.
//
// The two directions are inverse transforms over the same data model:
//
//   - [Decompose] parses a GLB container, extracts every embedded
//     resource (images, legacy shaders, extension payloads, generic
//     mesh data) into sidecar files, and rewrites the document to
//     reference them by relative filename.
//   - [Compose] loads every external or embedded resource a document
//     references, lays the bytes out contiguously with 4-byte
//     alignment, and emits a single GLB container.
//
// Buffer view indices are renumbered consistently across every
// reference site (accessors, sparse accessors, mesh-primitive
// compression extensions) as resources move between the embedded
// buffer and sidecar files.
//
// # Quick start
//
// Convert files in place:
//
//	err := gltfconv.DecomposeFile(ctx, "model.glb", "out/model.gltf")
//	...
//	err = gltfconv.ComposeFile(ctx, "out/model.gltf", "model.glb")
//
// Or keep everything in memory:
//
//	d, err := gltfconv.Decompose(ctx, container, "model")
//	if err != nil {
//	    return err
//	}
//	for _, sc := range d.Sidecars {
//	    // sc.Name, sc.Data, sc.Digest
//	}
//
// Conversions are pure functions of their inputs; a failure never
// leaves a partial primary output behind. Input documents may contain
// comments and trailing commas; output is always strict JSON.
package gltfconv
