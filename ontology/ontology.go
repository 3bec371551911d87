// Package ontology keeps the class and property schema used to give short
// aliases to long identifiers.
//
// Aliases are derived from the local part of an identifier:
//
//	http://test.com/something      -> something
//	http://test.com/something/else/ -> else
//	http://test.com/something#more -> more
//
// An identifier has one alias per loaded schema that declares it, but an
// alias may be shared by several identifiers. Callers that need a single
// identifier for an alias must deal with the ambiguity explicitly.
package ontology

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cayleygraph/quad"
	"github.com/cayleygraph/quad/voc/rdf"
	"github.com/cayleygraph/quad/voc/rdfs"

	"github.com/cayleygraph/plaza/xsd"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrAmbiguousAlias = errors.New("ambiguous alias")
	ErrEmptySchema    = errors.New("empty schema")
)

// Well-known properties every registry starts with.
const (
	Type           = quad.IRI(rdf.NS + "type")
	RestResourceID = quad.IRI("http://plaza.org/vocabularies/restResourceId")
	Resource       = quad.IRI(rdfs.NS + "Resource")
)

// LocalName returns the fragment of an identifier, or its last non-empty
// path segment.
func LocalName(iri quad.IRI) string {
	s := string(iri)
	if i := strings.LastIndexByte(s, '#'); i >= 0 {
		return s[i+1:]
	}
	s = strings.TrimSuffix(s, "/")
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Property is a snapshot of a property definition.
//
// Domain and Range are multisets: every schema declaring the property adds
// its own entries.
type Property struct {
	Identifier quad.IRI
	Aliases    []string
	Domain     []quad.IRI
	Range      []quad.IRI
}

// RangeIsDatatype reports whether every declared range is a known literal
// datatype, as opposed to a reference to another entity.
func (p Property) RangeIsDatatype() bool {
	if len(p.Range) == 0 {
		return false
	}
	for _, r := range p.Range {
		if !xsd.IsKnown(r) {
			return false
		}
	}
	return true
}

type property struct {
	domain []quad.IRI
	rng    []quad.IRI
}

// Registry holds the state of all loaded schemas. It is safe for concurrent use.
type Registry struct {
	mu sync.RWMutex

	schemas []string

	classAlias map[quad.IRI]string
	classIRIs  map[string][]quad.IRI

	props     map[quad.IRI]*property
	propAlias map[quad.IRI][]string
	propIRIs  map[string][]quad.IRI
}

// New creates a registry with rdf:type and restResourceId preregistered.
func New() *Registry {
	r := &Registry{
		classAlias: make(map[quad.IRI]string),
		classIRIs:  make(map[string][]quad.IRI),
		props:      make(map[quad.IRI]*property),
		propAlias:  make(map[quad.IRI][]string),
		propIRIs:   make(map[string][]quad.IRI),
	}
	r.addProperty(Definition{Identifier: Type, Domain: []quad.IRI{Resource}, Range: []quad.IRI{Resource}}, "rdf_type")
	r.addProperty(Definition{Identifier: RestResourceID, Domain: []quad.IRI{Resource}, Range: []quad.IRI{Resource}}, "restResourceId")
	return r
}

func appendIRI(list []quad.IRI, iri quad.IRI) []quad.IRI {
	for _, v := range list {
		if v == iri {
			return list
		}
	}
	return append(list, iri)
}

func appendAlias(list []string, alias string) []string {
	for _, v := range list {
		if v == alias {
			return list
		}
	}
	return append(list, alias)
}

func (r *Registry) addClass(def Definition) {
	alias := def.alias()
	r.classAlias[def.Identifier] = alias
	r.classIRIs[alias] = appendIRI(r.classIRIs[alias], def.Identifier)
}

func (r *Registry) addProperty(def Definition, alias string) {
	if alias == "" {
		alias = def.alias()
	}
	p, ok := r.props[def.Identifier]
	if !ok {
		p = &property{}
		r.props[def.Identifier] = p
	}
	r.propAlias[def.Identifier] = appendAlias(r.propAlias[def.Identifier], alias)
	p.domain = append(p.domain, def.Domain...)
	p.rng = append(p.rng, def.Range...)
	r.propIRIs[alias] = appendIRI(r.propIRIs[alias], def.Identifier)
}

func (r *Registry) apply(source string, defs []Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas = append(r.schemas, source)
	for _, def := range defs {
		if def.Identifier == "" {
			continue
		}
		if def.Class {
			r.addClass(def)
		} else {
			r.addProperty(def, "")
		}
	}
}

// Add registers definitions under a source name without fetching anything.
func (r *Registry) Add(source string, defs ...Definition) {
	r.apply(source, defs)
}

// Schemas lists the sources loaded so far, in load order.
func (r *Registry) Schemas() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.schemas...)
}

// ResolveAlias returns all aliases registered for a property identifier.
func (r *Registry) ResolveAlias(iri quad.IRI) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.propAlias[iri]...)
}

// Alias returns the first alias registered for a property, if any.
func (r *Registry) Alias(iri quad.IRI) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if list := r.propAlias[iri]; len(list) != 0 {
		return list[0], true
	}
	return "", false
}

// ResolveIdentifier returns all property identifiers registered for an
// alias, in registration order.
func (r *Registry) ResolveIdentifier(alias string) []quad.IRI {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]quad.IRI(nil), r.propIRIs[alias]...)
}

// Identifier returns the only property identifier for an alias.
func (r *Registry) Identifier(alias string) (quad.IRI, error) {
	list := r.ResolveIdentifier(alias)
	switch len(list) {
	case 0:
		return "", fmt.Errorf("property %q: %w", alias, ErrNotFound)
	case 1:
		return list[0], nil
	}
	return "", fmt.Errorf("%w: %q matches %v", ErrAmbiguousAlias, alias, list)
}

// Preferred resolves an alias choosing the lexicographically smallest
// identifier when several match.
func (r *Registry) Preferred(alias string) (quad.IRI, bool) {
	list := r.ResolveIdentifier(alias)
	if len(list) == 0 {
		return "", false
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list[0], true
}

// PropertyDefinition returns the accumulated definition of a property.
func (r *Registry) PropertyDefinition(iri quad.IRI) (Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.props[iri]
	if !ok {
		return Property{}, fmt.Errorf("property %s: %w", string(iri), ErrNotFound)
	}
	return Property{
		Identifier: iri,
		Aliases:    append([]string(nil), r.propAlias[iri]...),
		Domain:     append([]quad.IRI(nil), p.domain...),
		Range:      append([]quad.IRI(nil), p.rng...),
	}, nil
}

// Properties returns all property identifiers, sorted.
func (r *Registry) Properties() []quad.IRI {
	r.mu.RLock()
	out := make([]quad.IRI, 0, len(r.props))
	for iri := range r.props {
		out = append(out, iri)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ClassAlias returns the alias of a class identifier.
func (r *Registry) ClassAlias(iri quad.IRI) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.classAlias[iri]
	return a, ok
}

// ClassIdentifiers returns all class identifiers registered for an alias.
func (r *Registry) ClassIdentifiers(alias string) []quad.IRI {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]quad.IRI(nil), r.classIRIs[alias]...)
}
