package ontology

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cayleygraph/quad"
	"github.com/cayleygraph/quad/voc/owl"
	"github.com/cayleygraph/quad/voc/rdf"
	"github.com/cayleygraph/quad/voc/rdfs"

	"github.com/cayleygraph/plaza/clog"
	"github.com/cayleygraph/plaza/client"
)

// Definition is a single schema entry: a class or a property definition.
type Definition struct {
	Identifier quad.IRI
	// Alias overrides the alias derived from the identifier.
	Alias  string
	Class  bool
	Domain []quad.IRI
	Range  []quad.IRI
}

func (d Definition) alias() string {
	if d.Alias != "" {
		return d.Alias
	}
	return LocalName(d.Identifier)
}

// iriList accepts either a single identifier or a list of them.
type iriList []quad.IRI

func (l *iriList) UnmarshalJSON(data []byte) error {
	var one *string
	if err := json.Unmarshal(data, &one); err == nil {
		if one != nil && *one != "" {
			*l = iriList{quad.IRI(*one)}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	for _, s := range many {
		*l = append(*l, quad.IRI(s))
	}
	return nil
}

type jsonDefinition struct {
	URI    string  `json:"uri"`
	Type   *string `json:"type"`
	Alias  string  `json:"alias"`
	Domain iriList `json:"domain"`
	Range  iriList `json:"range"`
}

// ParseDefinitions decodes a JSON schema document: a list of entries with
// "uri", optional "alias", "domain" and "range". Entries carrying a "type"
// declare classes, others declare properties.
func ParseDefinitions(data []byte) ([]Definition, error) {
	var list []jsonDefinition
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	out := make([]Definition, 0, len(list))
	for _, d := range list {
		if d.URI == "" {
			continue
		}
		out = append(out, Definition{
			Identifier: quad.IRI(d.URI),
			Alias:      d.Alias,
			Class:      d.Type != nil,
			Domain:     d.Domain,
			Range:      d.Range,
		})
	}
	return out, nil
}

func full(v quad.Value) (quad.IRI, bool) {
	iri, ok := v.(quad.IRI)
	if !ok {
		return "", false
	}
	return iri.Full(), true
}

var (
	iriType       = quad.IRI(rdf.NS + "type")
	iriProperty   = quad.IRI(rdf.NS + "Property")
	iriClass      = quad.IRI(rdfs.NS + "Class")
	iriDomain     = quad.IRI(rdfs.NS + "domain")
	iriRange      = quad.IRI(rdfs.NS + "range")
	iriOwlClass   = quad.IRI(owl.NS + "Class")
	iriOwlObject  = quad.IRI(owl.NS + "ObjectProperty")
	iriOwlData    = quad.IRI(owl.NS + "DatatypeProperty")
	iriOwlAnnot   = quad.IRI(owl.NS + "AnnotationProperty")
	iriRdfsDataty = quad.IRI(rdfs.NS + "Datatype")
)

// DefinitionsFromQuads extracts class and property definitions from an
// RDFS/OWL description. Only rdf:type, rdfs:domain and rdfs:range
// statements are considered.
func DefinitionsFromQuads(quads []quad.Quad) []Definition {
	var (
		order []quad.IRI
		defs  = make(map[quad.IRI]*Definition)
	)
	get := func(iri quad.IRI, class bool) *Definition {
		d, ok := defs[iri]
		if !ok {
			d = &Definition{Identifier: iri, Class: class}
			defs[iri] = d
			order = append(order, iri)
		}
		return d
	}
	for _, q := range quads {
		s, ok := full(q.Subject)
		if !ok {
			continue
		}
		p, ok := full(q.Predicate)
		if !ok {
			continue
		}
		o, ok := full(q.Object)
		if !ok {
			continue
		}
		switch p {
		case iriType:
			switch o {
			case iriClass, iriOwlClass, iriRdfsDataty:
				get(s, true)
			case iriProperty, iriOwlObject, iriOwlData, iriOwlAnnot:
				get(s, false)
			}
		case iriDomain:
			d := get(s, false)
			d.Domain = append(d.Domain, o)
		case iriRange:
			d := get(s, false)
			d.Range = append(d.Range, o)
		}
	}
	out := make([]Definition, 0, len(order))
	for _, iri := range order {
		out = append(out, *defs[iri])
	}
	return out
}

// LoadSchema fetches a schema document and registers its definitions.
// JSON documents are read with ParseDefinitions, RDF payloads (N-Quads,
// JSON-LD, ...) with DefinitionsFromQuads. The registry is left untouched
// if the fetch or decoding fails, or if the document is empty.
func (r *Registry) LoadSchema(ctx context.Context, f client.Fetcher, uri string) (string, error) {
	p, err := f.Fetch(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", fmt.Errorf("cannot load schema %s: %w", uri, err)
	}
	var defs []Definition
	if format := p.Format(); format.Name == "js3" {
		defs, err = ParseDefinitions(p.Data)
	} else {
		var quads []quad.Quad
		quads, err = p.Quads()
		defs = DefinitionsFromQuads(quads)
	}
	if err != nil {
		return "", fmt.Errorf("cannot decode schema %s: %v", uri, err)
	}
	if len(defs) == 0 {
		return "", fmt.Errorf("schema %s: %w", uri, ErrEmptySchema)
	}
	r.apply(uri, defs)
	clog.Infof("loaded schema %s (%d definitions)", uri, len(defs))
	return uri, nil
}
