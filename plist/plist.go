// Package plist provides the property-list document model used for
// repository indexes, package metadata and the installed-package database.
//
// Internalized documents are trees of four node kinds: Dict, Array, string
// and integer (uint64). The engine never relies on structural typing; all
// schema access goes through the typed accessors below, which validate the
// node kind at the boundary.
package plist

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
	hplist "howett.net/plist"
)

// ErrMismatch is the cause of every accessor failure on a node whose kind
// differs from the requested one.
var ErrMismatch = errors.New("property list: node kind mismatch")

// Dict is a string-keyed dictionary node.
type Dict map[string]interface{}

// Array is an ordered sequence node.
type Array []interface{}

// Internalize parses a serialized property list into its node tree.
func Internalize(data []byte) (interface{}, error) {
	var v interface{}
	if _, err := hplist.Unmarshal(data, &v); err != nil {
		return nil, errors.Wrap(err, "internalizing property list")
	}
	return normalize(v), nil
}

// InternalizeDict parses data and requires a dictionary root.
func InternalizeDict(data []byte) (Dict, error) {
	v, err := Internalize(data)
	if err != nil {
		return nil, err
	}
	d, ok := v.(Dict)
	if !ok {
		return nil, errors.Wrap(ErrMismatch, "document root is not a dictionary")
	}
	return d, nil
}

// InternalizeArray parses data and requires an array root.
func InternalizeArray(data []byte) (Array, error) {
	v, err := Internalize(data)
	if err != nil {
		return nil, err
	}
	a, ok := v.(Array)
	if !ok {
		return nil, errors.Wrap(ErrMismatch, "document root is not an array")
	}
	return a, nil
}

// InternalizeFrom reads and parses a whole stream.
func InternalizeFrom(r io.Reader) (interface{}, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, errors.Wrap(err, "reading property list")
	}
	return Internalize(buf.Bytes())
}

// Externalize serializes a node tree to the XML textual encoding.
// Round-trip equality with Internalize is guaranteed for trees built from
// the four supported node kinds.
func Externalize(v interface{}) ([]byte, error) {
	data, err := hplist.MarshalIndent(v, hplist.XMLFormat, "\t")
	if err != nil {
		return nil, errors.Wrap(err, "externalizing property list")
	}
	return data, nil
}

// normalize rewrites the decoder's generic types into Dict/Array nodes and
// folds signed integers into uint64.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		d := make(Dict, len(t))
		for k, e := range t {
			d[k] = normalize(e)
		}
		return d
	case []interface{}:
		a := make(Array, len(t))
		for i, e := range t {
			a[i] = normalize(e)
		}
		return a
	case int64:
		return uint64(t)
	case int:
		return uint64(t)
	default:
		return v
	}
}

// String returns the string node at key. A missing key yields the zero
// value; a node of another kind yields ErrMismatch.
func (d Dict) String(key string) (string, error) {
	v, ok := d[key]
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Wrapf(ErrMismatch, "key %q: want string", key)
	}
	return s, nil
}

// Uint64 returns the integer node at key.
func (d Dict) Uint64(key string) (uint64, error) {
	v, ok := d[key]
	if !ok {
		return 0, nil
	}
	n, ok := v.(uint64)
	if !ok {
		return 0, errors.Wrapf(ErrMismatch, "key %q: want integer", key)
	}
	return n, nil
}

// Array returns the array node at key.
func (d Dict) Array(key string) (Array, error) {
	v, ok := d[key]
	if !ok {
		return nil, nil
	}
	a, ok := v.(Array)
	if !ok {
		return nil, errors.Wrapf(ErrMismatch, "key %q: want array", key)
	}
	return a, nil
}

// Dict returns the dictionary node at key.
func (d Dict) Dict(key string) (Dict, error) {
	v, ok := d[key]
	if !ok {
		return nil, nil
	}
	sub, ok := v.(Dict)
	if !ok {
		return nil, errors.Wrapf(ErrMismatch, "key %q: want dictionary", key)
	}
	return sub, nil
}

// Strings returns the array node at key coerced to a string slice.
func (d Dict) Strings(key string) ([]string, error) {
	a, err := d.Array(key)
	if err != nil || a == nil {
		return nil, err
	}
	out := make([]string, len(a))
	for i, v := range a {
		s, ok := v.(string)
		if !ok {
			return nil, errors.Wrapf(ErrMismatch, "key %q: want array of strings", key)
		}
		out[i] = s
	}
	return out, nil
}

// Dicts returns the array node at key coerced to a slice of dictionaries.
func (d Dict) Dicts(key string) ([]Dict, error) {
	a, err := d.Array(key)
	if err != nil || a == nil {
		return nil, err
	}
	out := make([]Dict, len(a))
	for i, v := range a {
		sub, ok := v.(Dict)
		if !ok {
			return nil, errors.Wrapf(ErrMismatch, "key %q: want array of dictionaries", key)
		}
		out[i] = sub
	}
	return out, nil
}

// IsMismatch reports whether err originates from a node-kind mismatch.
func IsMismatch(err error) bool {
	return errors.Cause(err) == ErrMismatch
}
