// Package record implements the flat keyed view of a subject's triples.
package record

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cayleygraph/quad"

	"github.com/cayleygraph/plaza/js3"
	"github.com/cayleygraph/plaza/xsd"
)

// ID is the reserved key holding the identifier of the projected subject.
const ID = "_uri"

// Record maps property aliases (or raw identifiers) to values. A property
// with several values holds a []interface{}.
type Record map[string]interface{}

// New creates a record with only the identifier set.
func New(uri string) Record {
	return Record{ID: uri}
}

// URI returns the identifier of the record.
func (r Record) URI() string {
	s, _ := r[ID].(string)
	return s
}

// Clone returns a copy that shares no slices with r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		if list, ok := v.([]interface{}); ok {
			v = append([]interface{}(nil), list...)
		}
		out[k] = v
	}
	return out
}

// Add sets a property, promoting it to a sequence on the second value.
func (r Record) Add(key string, v interface{}) {
	switch cur := r[key].(type) {
	case nil:
		r[key] = v
	case []interface{}:
		r[key] = append(cur, v)
	default:
		r[key] = []interface{}{cur, v}
	}
}

// Values returns all values of a property.
func (r Record) Values(key string) []interface{} {
	switch v := r[key].(type) {
	case nil:
		return nil
	case []interface{}:
		return v
	default:
		return []interface{}{v}
	}
}

// Merge copies every property of src that is missing in r, leaving the
// properties already set untouched. It reports whether r was changed.
func (r Record) Merge(src Record) bool {
	changed := false
	for k, v := range src {
		if cur, ok := r[k]; ok && cur != nil {
			continue
		}
		if list, ok := v.([]interface{}); ok {
			v = append([]interface{}(nil), list...)
		}
		r[k] = v
		changed = true
	}
	return changed
}

// Keys returns the property keys of r without the identifier, sorted.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		if k != ID {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Resolver maps a property alias back to an identifier.
type Resolver interface {
	Preferred(alias string) (quad.IRI, bool)
}

// Predicate returns the identifier for a record key. Keys that look like
// identifiers are returned verbatim.
func Predicate(res Resolver, key string) quad.IRI {
	if strings.Contains(key, "://") {
		return quad.IRI(key)
	}
	if res != nil {
		if iri, ok := res.Preferred(key); ok {
			return iri
		}
	}
	return quad.IRI(key)
}

// ObjectValue converts a record value to a quad object. Strings that look
// like references become identifiers.
func ObjectValue(v interface{}) (quad.Value, error) {
	switch v := v.(type) {
	case string:
		if js3.IsReference(v) {
			return quad.IRI(v), nil
		}
		return quad.String(v), nil
	case quad.Value:
		return v, nil
	case time.Time, bool, int, int32, int64, uint, uint32, uint64, float32, float64:
		return xsd.Encode(v)
	}
	return nil, fmt.Errorf("unsupported value %T", v)
}

// ToQuads converts a record back to triples, in key order.
func ToQuads(res Resolver, r Record) ([]quad.Quad, error) {
	uri := r.URI()
	if uri == "" {
		return nil, fmt.Errorf("record has no %s", ID)
	}
	s := quad.IRI(uri)
	var out []quad.Quad
	for _, k := range r.Keys() {
		p := Predicate(res, k)
		for _, v := range r.Values(k) {
			o, err := ObjectValue(v)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %v", uri, k, err)
			}
			out = append(out, quad.Quad{Subject: s, Predicate: p, Object: o})
		}
	}
	return out, nil
}
