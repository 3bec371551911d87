package record

import (
	"fmt"

	"github.com/cayleygraph/quad"

	"github.com/cayleygraph/plaza/clog"
	"github.com/cayleygraph/plaza/xsd"
)

// Aliaser returns the first alias registered for a property identifier.
type Aliaser interface {
	Alias(iri quad.IRI) (string, bool)
}

func subjectOf(v quad.Value) (string, bool) {
	switch v := v.(type) {
	case quad.IRI:
		return string(v), true
	case quad.String:
		return string(v), true
	}
	return "", false
}

// Key returns the record key used for a predicate: its first alias, or the
// identifier itself when it has none.
func Key(a Aliaser, p quad.IRI) string {
	if a != nil {
		if alias, ok := a.Alias(p); ok {
			return alias
		}
	}
	return string(p)
}

// Value decodes a quad object. Identifiers are kept as plain strings,
// literals are decoded according to their datatype.
func Value(o quad.Value) (interface{}, error) {
	switch o := o.(type) {
	case quad.IRI:
		return string(o), nil
	case quad.BNode:
		return nil, fmt.Errorf("blank node %s is not supported", o)
	}
	return xsd.DecodeValue(o)
}

// Project groups triples by subject into records, one per distinct subject
// in order of first appearance. Triples with blank node subjects or objects
// are skipped. A literal with an unknown datatype fails the projection.
func Project(a Aliaser, quads []quad.Quad) ([]Record, error) {
	var (
		out   []Record
		index = make(map[string]int)
	)
	for _, q := range quads {
		s, ok := subjectOf(q.Subject)
		if !ok {
			clog.Debugf("skipping triple with subject %v", q.Subject)
			continue
		}
		p, ok := q.Predicate.(quad.IRI)
		if !ok {
			return nil, fmt.Errorf("%s: predicate %v is not an identifier", s, q.Predicate)
		}
		if _, ok := q.Object.(quad.BNode); ok {
			clog.Debugf("skipping blank node object of %s %s", s, p)
			continue
		}
		v, err := Value(q.Object)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", s, string(p), err)
		}
		i, ok := index[s]
		if !ok {
			i = len(out)
			index[s] = i
			out = append(out, New(s))
		}
		out[i].Add(Key(a, p), v)
	}
	return out, nil
}
