// Package plazahttp implements an in-memory remote store speaking the plaza
// protocol: a schema document, service descriptors and js3 data resources
// with method tunneling.
//
// Routes, for a collection named tasks:
//
//	GET  /health                          liveness, 204 No Content
//	GET  /schema                          class and property definitions
//	GET  /services/tasks/single           single resource service descriptor
//	GET  /services/tasks/collection       collection service descriptor
//	GET  /data/tasks.js3                  list, form values filter by field
//	POST /data/tasks.js3                  create from form values
//	GET  /data/tasks/{id}.js3             read, or delete with _method=delete
//	POST /data/tasks/{id}.js3             replace with _method=put
package plazahttp

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cayleygraph/quad"
	"github.com/cayleygraph/quad/voc/rdf"
	"github.com/julienschmidt/httprouter"

	"github.com/cayleygraph/plaza/clog"
	"github.com/cayleygraph/plaza/js3"
	"github.com/cayleygraph/plaza/service"
)

// DefaultVocabulary is the namespace of classes and properties of the store.
const DefaultVocabulary = "http://plaza.org/vocabularies/demo#"

var errNotFound = errors.New("not found")

// Field is a property of the entities of a collection. An empty datatype
// marks a reference to another entity.
type Field struct {
	Name     string
	Datatype quad.IRI
}

// Collection describes a set of entities of one class.
type Collection struct {
	Name   string
	Class  string
	Fields []Field
}

type item struct {
	id     string
	values url.Values
}

type collection struct {
	Collection
	next  int
	order []string
	items map[string]*item
}

func (c *collection) field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// setValues keeps only known fields.
func (c *collection) setValues(it *item, form url.Values) {
	it.values = make(url.Values)
	for _, f := range c.Fields {
		if vals, ok := form[f.Name]; ok && len(vals) != 0 {
			it.values[f.Name] = append([]string(nil), vals...)
		}
	}
}

// Request is a data request received by the server.
type Request struct {
	Method   string
	Path     string
	Override string
	Form     url.Values
}

// Server is an http.Handler serving collections from memory.
type Server struct {
	vocab   string
	handler http.Handler

	mu      sync.Mutex
	colls   map[string]*collection
	names   []string
	log     []Request
	failing bool
}

// New creates a server for the given collections.
func New(vocab string, colls ...Collection) *Server {
	if vocab == "" {
		vocab = DefaultVocabulary
	}
	s := &Server{vocab: vocab, colls: make(map[string]*collection)}
	for _, c := range colls {
		if c.Class == "" {
			c.Class = className(c.Name)
		}
		s.colls[c.Name] = &collection{Collection: c, items: make(map[string]*item)}
		s.names = append(s.names, c.Name)
	}
	sort.Strings(s.names)
	r := httprouter.New()
	r.GlobalOPTIONS = http.HandlerFunc(handlePreflight)
	s.registerOn(r)
	s.handler = LogRequests(CORS(r))
	return s
}

// className derives a class name from a plural collection name.
func className(name string) string {
	name = strings.TrimSuffix(name, "s")
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func (s *Server) registerOn(r *httprouter.Router) {
	r.HandlerFunc(http.MethodGet, "/health", handleHealth)
	r.GET("/schema", s.ServeSchema)
	r.GET("/services/:coll/:kind", s.ServeService)
	r.GET("/data/:coll", s.ServeCollection)
	r.POST("/data/:coll", s.ServeCollection)
	r.GET("/data/:coll/:id", s.ServeItem)
	r.POST("/data/:coll/:id", s.ServeItem)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// SetFailing makes every data request fail with an internal error.
func (s *Server) SetFailing(v bool) {
	s.mu.Lock()
	s.failing = v
	s.mu.Unlock()
}

// Requests returns the data requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.log...)
}

// Insert stores an entity and returns its id.
func (s *Server) Insert(coll string, values url.Values) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.colls[coll]
	if !ok {
		return "", fmt.Errorf("collection %q: %w", coll, errNotFound)
	}
	return c.insert(values).id, nil
}

// Values returns the stored fields of an entity.
func (s *Server) Values(coll, id string) (url.Values, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.colls[coll]
	if !ok {
		return nil, false
	}
	it, ok := c.items[id]
	if !ok {
		return nil, false
	}
	out := make(url.Values, len(it.values))
	for k, v := range it.values {
		out[k] = append([]string(nil), v...)
	}
	return out, true
}

func (c *collection) insert(values url.Values) *item {
	c.next++
	it := &item{id: strconv.Itoa(c.next)}
	c.setValues(it, values)
	c.items[it.id] = it
	c.order = append(c.order, it.id)
	return it
}

func (c *collection) remove(id string) {
	delete(c.items, id)
	out := c.order[:0:0]
	for _, v := range c.order {
		if v != id {
			out = append(out, v)
		}
	}
	c.order = out
}

func (c *collection) matches(it *item, filter url.Values) bool {
	for k, want := range filter {
		if _, ok := c.field(k); !ok {
			continue
		}
		have := it.values[k]
		for _, w := range want {
			found := false
			for _, h := range have {
				if h == w {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func (s *Server) property(name string) quad.IRI {
	return quad.IRI(s.vocab + name)
}

func (s *Server) quads(base string, c *collection, it *item) []quad.Quad {
	subj := quad.IRI(base + "/data/" + c.Name + "/" + it.id)
	out := []quad.Quad{
		{Subject: subj, Predicate: quad.IRI(rdf.NS + "type"), Object: s.property(c.Class)},
		{Subject: subj, Predicate: s.property("id"), Object: quad.String(it.id)},
	}
	for _, f := range c.Fields {
		for _, v := range it.values[f.Name] {
			var o quad.Value
			switch {
			case f.Datatype != "":
				o = quad.TypedString{Value: quad.String(v), Type: f.Datatype}
			case js3.IsReference(v):
				o = quad.IRI(v)
			default:
				o = quad.String(v)
			}
			out = append(out, quad.Quad{Subject: subj, Predicate: s.property(f.Name), Object: o})
		}
	}
	return out
}

// begin logs a data request and returns the collection it addresses.
func (s *Server) begin(w http.ResponseWriter, r *http.Request, name string) (*collection, bool) {
	if err := r.ParseForm(); err != nil {
		jsonResponse(w, http.StatusBadRequest, err)
		return nil, false
	}
	form := make(url.Values, len(r.Form))
	for k, v := range r.Form {
		if k != service.MethodParam {
			form[k] = v
		}
	}
	s.log = append(s.log, Request{
		Method:   r.Method,
		Path:     r.URL.Path,
		Override: r.Form.Get(service.MethodParam),
		Form:     form,
	})
	if s.failing {
		jsonResponse(w, http.StatusInternalServerError, "store is failing")
		return nil, false
	}
	c, ok := s.colls[name]
	if !ok {
		jsonResponse(w, http.StatusNotFound, fmt.Errorf("collection %q: %w", name, errNotFound))
		return nil, false
	}
	return c, true
}

func splitExt(name string) (string, string) {
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

func (s *Server) ServeCollection(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name, ext := splitExt(ps.ByName("coll"))
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.begin(w, r, name)
	if !ok {
		return
	}
	base := baseURL(r)
	switch r.Method {
	case http.MethodPost:
		it := c.insert(r.PostForm)
		clog.Infof("created %s/%s", c.Name, it.id)
		writeQuads(w, r, ext, s.quads(base, c, it))
	default:
		var out []quad.Quad
		for _, id := range c.order {
			if it := c.items[id]; c.matches(it, r.Form) {
				out = append(out, s.quads(base, c, it)...)
			}
		}
		writeQuads(w, r, ext, out)
	}
}

func (s *Server) ServeItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ext := splitExt(ps.ByName("id"))
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.begin(w, r, ps.ByName("coll"))
	if !ok {
		return
	}
	it, ok := c.items[id]
	if !ok {
		jsonResponse(w, http.StatusNotFound, fmt.Errorf("%s/%s: %w", c.Name, id, errNotFound))
		return
	}
	override := strings.ToLower(r.Form.Get(service.MethodParam))
	switch {
	case r.Method == http.MethodGet && override == "delete":
		c.remove(id)
		clog.Infof("deleted %s/%s", c.Name, id)
		writeQuads(w, r, ext, nil)
	case r.Method == http.MethodGet && override == "":
		writeQuads(w, r, ext, s.quads(baseURL(r), c, it))
	case r.Method == http.MethodPost && override == "put":
		c.setValues(it, r.PostForm)
		clog.Infof("updated %s/%s", c.Name, id)
		writeQuads(w, r, ext, s.quads(baseURL(r), c, it))
	default:
		jsonResponse(w, http.StatusMethodNotAllowed, fmt.Errorf("%s with %s=%q is not supported", r.Method, service.MethodParam, override))
	}
}

type definition struct {
	URI    string   `json:"uri"`
	Type   string   `json:"type,omitempty"`
	Domain []string `json:"domain,omitempty"`
	Range  []string `json:"range,omitempty"`
}

// schema lists classes first, then properties merged across collections.
func (s *Server) schema() []definition {
	var (
		classes []definition
		props   []definition
		index   = make(map[string]int)
	)
	addProp := func(name, domain, rng string) {
		uri := string(s.property(name))
		i, ok := index[uri]
		if !ok {
			i = len(props)
			index[uri] = i
			props = append(props, definition{URI: uri})
		}
		props[i].Domain = append(props[i].Domain, domain)
		props[i].Range = append(props[i].Range, rng)
	}
	for _, name := range s.names {
		c := s.colls[name]
		class := string(s.property(c.Class))
		classes = append(classes, definition{URI: class, Type: "http://www.w3.org/2000/01/rdf-schema#Class"})
		addProp("id", class, "http://www.w3.org/2001/XMLSchema#string")
		for _, f := range c.Fields {
			rng := string(f.Datatype)
			if rng == "" {
				rng = "http://www.w3.org/2000/01/rdf-schema#Resource"
			}
			addProp(f.Name, class, rng)
		}
	}
	return append(classes, props...)
}

// schemaQuads is the RDFS rendition of the schema.
func schemaQuads(defs []definition) []quad.Quad {
	const rdfs = "http://www.w3.org/2000/01/rdf-schema#"
	var out []quad.Quad
	for _, d := range defs {
		s := quad.IRI(d.URI)
		typ := quad.IRI(rdf.NS + "Property")
		if d.Type != "" {
			typ = quad.IRI(d.Type)
		}
		out = append(out, quad.Quad{Subject: s, Predicate: quad.IRI(rdf.NS + "type"), Object: typ})
		for _, v := range d.Domain {
			out = append(out, quad.Quad{Subject: s, Predicate: quad.IRI(rdfs + "domain"), Object: quad.IRI(v)})
		}
		for _, v := range d.Range {
			out = append(out, quad.Quad{Subject: s, Predicate: quad.IRI(rdfs + "range"), Object: quad.IRI(v)})
		}
	}
	return out
}

// ServeSchema writes the JSON schema, or an RDF rendition when a quad
// format is requested.
func (s *Server) ServeSchema(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.mu.Lock()
	defs := s.schema()
	s.mu.Unlock()
	if f := getFormat(r, ""); f.Name != defaultFormat {
		writeQuads(w, r, "", schemaQuads(defs))
		return
	}
	writeJSON(w, defs)
}

func (s *Server) descriptor(base string, c *collection, kind string) (service.Descriptor, error) {
	idMsg := service.InputMessage{ModelReference: string(s.property("id")), URLReplacement: "id"}
	var fields []service.InputMessage
	for _, f := range c.Fields {
		fields = append(fields, service.InputMessage{ModelReference: string(s.property(f.Name)), URLReplacement: f.Name})
	}
	switch kind {
	case "single":
		addr := base + "/data/" + c.Name + "/{id}"
		return service.Descriptor{Operations: []service.Operation{
			{Method: "GET", AddressTemplate: addr, InputMessages: []service.InputMessage{idMsg}},
			{Method: "PUT", AddressTemplate: addr, InputMessages: append([]service.InputMessage{idMsg}, fields...)},
			{Method: "DELETE", AddressTemplate: addr, InputMessages: []service.InputMessage{idMsg}},
		}}, nil
	case "collection":
		addr := base + "/data/" + c.Name
		return service.Descriptor{Operations: []service.Operation{
			{Method: "GET", AddressTemplate: addr, InputMessages: fields},
			{Method: "POST", AddressTemplate: addr, InputMessages: fields},
		}}, nil
	}
	return service.Descriptor{}, fmt.Errorf("service kind %q: %w", kind, errNotFound)
}

func (s *Server) ServeService(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.mu.Lock()
	c, ok := s.colls[ps.ByName("coll")]
	s.mu.Unlock()
	if !ok {
		jsonResponse(w, http.StatusNotFound, fmt.Errorf("collection %q: %w", ps.ByName("coll"), errNotFound))
		return
	}
	base := baseURL(r)
	d, err := s.descriptor(base, c, ps.ByName("kind"))
	if err != nil {
		jsonResponse(w, http.StatusNotFound, err)
		return
	}
	d.URI = base + r.URL.Path
	writeJSON(w, d)
}
