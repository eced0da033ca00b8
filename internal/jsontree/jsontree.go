// Package jsontree holds a glTF document as a dynamic JSON tree and
// provides the typed accessors the codec needs.
//
// The document is open-ended (extension payloads have statically
// unknown shape), so the tree is decoded into map[string]any rather
// than typed structs. Numbers are kept as json.Number so integer
// indices and 64-bit byte offsets survive a decode/encode cycle.
package jsontree

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/tidwall/jsonc"
)

// Decode parses a JSON document into a dynamic tree. Comments and
// trailing commas are tolerated; they are stripped before decoding.
func Decode(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.UseNumber()
	var root map[string]any
	if err := dec.Decode(&root); err != nil {
		return nil, err
	}
	return root, nil
}

// Encode serializes the tree, compact or indented with two spaces.
func Encode(root map[string]any, indent bool) ([]byte, error) {
	if indent {
		return json.MarshalIndent(root, "", "  ")
	}
	return json.Marshal(root)
}

// Obj returns v as a JSON object.
func Obj(v any) (map[string]any, bool) {
	o, ok := v.(map[string]any)
	return o, ok
}

// ObjField returns the object stored under key.
func ObjField(o map[string]any, key string) (map[string]any, bool) {
	return Obj(o[key])
}

// ArrField returns the array stored under key.
func ArrField(o map[string]any, key string) ([]any, bool) {
	a, ok := o[key].([]any)
	return a, ok
}

// StrField returns the string stored under key.
func StrField(o map[string]any, key string) (string, bool) {
	s, ok := o[key].(string)
	return s, ok
}

// IntField returns the integer stored under key. Both json.Number
// (the Decode representation) and plain Go ints (values written by the
// transforms) are accepted.
func IntField(o map[string]any, key string) (int, bool) {
	switch n := o[key].(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// SortedKeys returns the keys of o in ascending order. Map iteration
// order is not deterministic, and sidecar names and byte offsets must
// not depend on it.
func SortedKeys(o map[string]any) []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
