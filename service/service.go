// Package service describes remote operations and how to invoke them.
//
// A service descriptor is a JSON document listing operations:
//
//	{"operations": [{
//		"method": "GET",
//		"addressTemplate": "http://ex.com/tasks/{id}",
//		"inputMessages": [{"modelReference": "http://ex.com/v#id", "urlReplacement": "id"}]
//	}]}
//
// Input values are looked up in the record passed to Consume by every alias
// of the model reference, then by the replacement name. Values whose name
// appears as a {name} placeholder are substituted into the address, others
// are sent as parameters.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/cayleygraph/quad"

	"github.com/cayleygraph/plaza/clog"
	"github.com/cayleygraph/plaza/client"
	"github.com/cayleygraph/plaza/js3"
	"github.com/cayleygraph/plaza/record"
	"github.com/cayleygraph/plaza/xsd"
)

var (
	ErrUnknownService   = errors.New("unknown service")
	ErrUnknownOperation = errors.New("unknown operation")
	ErrNoOperations     = errors.New("service declares no operations")
)

// MethodParam carries the real method of tunneled requests.
const MethodParam = "_method"

// InputMessage binds a property to an operation input.
type InputMessage struct {
	ModelReference string `json:"modelReference"`
	URLReplacement string `json:"urlReplacement,omitempty"`
}

// Placeholder returns the name of the template placeholder filled by the
// message. Typed literal markup ("id"^^<xsd:string>) is removed.
func (m InputMessage) Placeholder() string {
	if xsd.IsCompact(m.URLReplacement) {
		return string(xsd.ParseCompact(m.URLReplacement).Value)
	}
	return m.URLReplacement
}

// Operation is a single remote call of a service.
type Operation struct {
	Method          string         `json:"method"`
	AddressTemplate string         `json:"addressTemplate"`
	InputMessages   []InputMessage `json:"inputMessages"`
}

// Descriptor is the metadata document of a service.
type Descriptor struct {
	URI        string      `json:"uri,omitempty"`
	Operations []Operation `json:"operations"`
}

// Operation returns the operation for a method, compared case-insensitively.
func (d *Descriptor) Operation(method string) (*Operation, error) {
	for i := range d.Operations {
		if strings.EqualFold(d.Operations[i].Method, method) {
			return &d.Operations[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s %s", ErrUnknownOperation, strings.ToUpper(method), d.URI)
}

// Aliases resolves property identifiers to their aliases.
type Aliases interface {
	ResolveAlias(iri quad.IRI) []string
}

// InputMap maps the first alias of every input property (or its identifier
// when it has none) to the property identifier.
func (op *Operation) InputMap(a Aliases) map[string]quad.IRI {
	out := make(map[string]quad.IRI, len(op.InputMessages))
	for _, m := range op.InputMessages {
		iri := quad.IRI(m.ModelReference)
		if list := a.ResolveAlias(iri); len(list) != 0 {
			out[list[0]] = iri
		} else {
			out[m.ModelReference] = iri
		}
	}
	return out
}

// Replacements extracts the input values of the operation from data, keyed
// by placeholder name.
func (op *Operation) Replacements(a Aliases, data record.Record) map[string]interface{} {
	out := make(map[string]interface{})
	for _, m := range op.InputMessages {
		name := m.Placeholder()
		keys := a.ResolveAlias(quad.IRI(m.ModelReference))
		keys = append(keys, name, m.ModelReference)
		for _, k := range keys {
			if k == "" {
				continue
			}
			if v, ok := data[k]; ok && v != nil {
				if name == "" {
					name = k
				}
				out[name] = v
				break
			}
		}
	}
	return out
}

// Expand substitutes placeholders of a template. Replacements without a
// matching placeholder are returned as parameters.
func Expand(template string, repl map[string]interface{}) (string, url.Values) {
	names := make([]string, 0, len(repl))
	for name := range repl {
		names = append(names, name)
	}
	sort.Strings(names)
	params := make(url.Values)
	for _, name := range names {
		v := repl[name]
		ph := "{" + name + "}"
		if strings.Contains(template, ph) {
			template = strings.Replace(template, ph, url.PathEscape(first(v)), 1)
			continue
		}
		if list, ok := v.([]interface{}); ok {
			for _, e := range list {
				params.Add(name, xsd.FormatParam(e))
			}
		} else {
			params.Add(name, xsd.FormatParam(v))
		}
	}
	return template, params
}

func first(v interface{}) string {
	if list, ok := v.([]interface{}); ok {
		if len(list) == 0 {
			return ""
		}
		v = list[0]
	}
	return xsd.FormatParam(v)
}

// Request is a fully resolved remote call.
type Request struct {
	Method string
	URL    string
	Params url.Values
}

// Reply holds the triples returned by a call.
type Reply struct {
	Alias  string
	Method string
	Quads  []quad.Quad
}

// Registry keeps the service descriptors by alias and by identifier.
type Registry struct {
	aliases Aliases
	suffix  string

	mu      sync.RWMutex
	byURI   map[string]*Descriptor
	byAlias map[string]string
}

// New creates a service registry resolving input properties with a.
func New(a Aliases) *Registry {
	return &Registry{
		aliases: a,
		suffix:  js3.Ext,
		byURI:   make(map[string]*Descriptor),
		byAlias: make(map[string]string),
	}
}

// SetSuffix changes the extension appended to every expanded address.
func (r *Registry) SetSuffix(s string) {
	r.mu.Lock()
	r.suffix = s
	r.mu.Unlock()
}

// Fetch retrieves and validates a service descriptor without registering it.
func Fetch(ctx context.Context, f client.Fetcher, uri string) (Descriptor, error) {
	p, err := f.Fetch(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return Descriptor{}, fmt.Errorf("cannot retrieve service %s: %w", uri, err)
	}
	var d Descriptor
	if err := p.Decode(&d); err != nil {
		return Descriptor{}, err
	}
	if len(d.Operations) == 0 {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrNoOperations, uri)
	}
	if d.URI == "" {
		d.URI = uri
	}
	return d, nil
}

// Register fetches a service descriptor and makes it available under alias.
func (r *Registry) Register(ctx context.Context, f client.Fetcher, alias, uri string) error {
	d, err := Fetch(ctx, f, uri)
	if err != nil {
		return err
	}
	r.Add(alias, uri, d)
	clog.Infof("registered service %s as %s", uri, alias)
	return nil
}

// Add registers a descriptor directly.
func (r *Registry) Add(alias, uri string, d Descriptor) {
	if d.URI == "" {
		d.URI = uri
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byURI[uri] = &d
	r.byAlias[alias] = uri
}

// Remove drops an alias. The descriptor stays available by URI.
func (r *Registry) Remove(alias string) {
	r.mu.Lock()
	delete(r.byAlias, alias)
	r.mu.Unlock()
}

// ByAlias returns the descriptor registered under alias.
func (r *Registry) ByAlias(alias string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.byURI[r.byAlias[alias]]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownService, alias)
}

// ByURI returns the descriptor fetched from uri.
func (r *Registry) ByURI(uri string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.byURI[uri]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownService, uri)
}

// InputMap returns the inputs of the operation of a service.
func (r *Registry) InputMap(alias, method string) (map[string]quad.IRI, error) {
	d, err := r.ByAlias(alias)
	if err != nil {
		return nil, err
	}
	op, err := d.Operation(method)
	if err != nil {
		return nil, err
	}
	return op.InputMap(r.aliases), nil
}

func (r *Registry) withSuffix(addr string) string {
	r.mu.RLock()
	suffix := r.suffix
	r.mu.RUnlock()
	if i := strings.IndexByte(addr, '?'); i >= 0 {
		return addr[:i] + suffix + addr[i:]
	}
	return addr + suffix
}

// Prepare resolves the call of an operation with data. PUT is sent as POST
// and DELETE as GET, both with the real method in MethodParam.
func (r *Registry) Prepare(alias, method string, data record.Record) (Request, error) {
	d, err := r.ByAlias(alias)
	if err != nil {
		return Request{}, err
	}
	op, err := d.Operation(method)
	if err != nil {
		return Request{}, err
	}
	addr, params := Expand(op.AddressTemplate, op.Replacements(r.aliases, data))
	req := Request{Method: strings.ToUpper(op.Method), URL: r.withSuffix(addr), Params: params}
	switch req.Method {
	case http.MethodPut:
		req.Method = http.MethodPost
		params.Set(MethodParam, "put")
	case http.MethodDelete:
		req.Method = http.MethodGet
		params.Set(MethodParam, "delete")
	}
	return req, nil
}

// Consume invokes an operation and decodes the returned triples.
func (r *Registry) Consume(ctx context.Context, f client.Fetcher, alias, method string, data record.Record) (*Reply, error) {
	req, err := r.Prepare(alias, method, data)
	if err != nil {
		return nil, err
	}
	p, err := f.Fetch(ctx, req.Method, req.URL, req.Params)
	if err != nil {
		clog.Errorf("error consuming service %s %s: %v", strings.ToUpper(method), req.URL, err)
		return nil, err
	}
	var quads []quad.Quad
	if len(strings.TrimSpace(string(p.Data))) != 0 {
		if quads, err = p.Quads(); err != nil {
			return nil, err
		}
	}
	return &Reply{Alias: alias, Method: method, Quads: quads}, nil
}
