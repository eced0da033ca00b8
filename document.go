package gltfconv

import (
	"fmt"

	"github.com/najadojo/gltfconv/internal/jsontree"
)

// forEachExtensionArray visits every array-valued property of every
// object under the document's top-level extensions object. Extension
// names are not known statically, so this is the discovery path for
// extension-carried resources. Names are visited in sorted order;
// sidecar naming and byte layout must not depend on map iteration.
func forEachExtensionArray(doc map[string]any, visit func(extName, propName string, entries []any)) {
	exts, ok := jsontree.ObjField(doc, "extensions")
	if !ok {
		return
	}
	for _, extName := range jsontree.SortedKeys(exts) {
		ext, ok := jsontree.Obj(exts[extName])
		if !ok {
			continue
		}
		for _, propName := range jsontree.SortedKeys(ext) {
			if entries, ok := jsontree.ArrField(ext, propName); ok {
				visit(extName, propName, entries)
			}
		}
	}
}

// forEachViewRefSite visits every object outside the resource
// descriptors that may hold a "bufferView" index: accessors, their
// sparse indices/values, and mesh-primitive compression extensions.
// These are the sites rewritten when the bufferViews array is
// renumbered.
func forEachViewRefSite(doc map[string]any, visit func(site string, holder map[string]any) error) error {
	if accessors, ok := jsontree.ArrField(doc, "accessors"); ok {
		for i, v := range accessors {
			acc, ok := jsontree.Obj(v)
			if !ok {
				continue
			}
			if err := visit(fmt.Sprintf("accessors[%d]", i), acc); err != nil {
				return err
			}
			sparse, ok := jsontree.ObjField(acc, "sparse")
			if !ok {
				continue
			}
			if indices, ok := jsontree.ObjField(sparse, "indices"); ok {
				if err := visit(fmt.Sprintf("accessors[%d].sparse.indices", i), indices); err != nil {
					return err
				}
			}
			if values, ok := jsontree.ObjField(sparse, "values"); ok {
				if err := visit(fmt.Sprintf("accessors[%d].sparse.values", i), values); err != nil {
					return err
				}
			}
		}
	}
	meshes, ok := jsontree.ArrField(doc, "meshes")
	if !ok {
		return nil
	}
	for mi, mv := range meshes {
		mesh, ok := jsontree.Obj(mv)
		if !ok {
			continue
		}
		prims, ok := jsontree.ArrField(mesh, "primitives")
		if !ok {
			continue
		}
		for pi, pv := range prims {
			prim, ok := jsontree.Obj(pv)
			if !ok {
				continue
			}
			exts, ok := jsontree.ObjField(prim, "extensions")
			if !ok {
				continue
			}
			for _, extName := range jsontree.SortedKeys(exts) {
				ext, ok := jsontree.Obj(exts[extName])
				if !ok {
					continue
				}
				site := fmt.Sprintf("meshes[%d].primitives[%d].extensions.%s", mi, pi, extName)
				if err := visit(site, ext); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
