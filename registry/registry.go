// Package registry keeps the tracked entities of every space and notifies
// observers of their changes.
//
// All handlers are called synchronously, after the registry lock is
// released, so they may call back into the registry. Observer lists are
// copied before dispatch: a handler that subscribes or unsubscribes only
// affects the next event.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cayleygraph/plaza/clog"
	"github.com/cayleygraph/plaza/record"
)

var (
	ErrUnknownSpace    = errors.New("unknown space")
	ErrDuplicateSpace  = errors.New("space already registered")
	ErrDuplicateEntity = errors.New("entity already registered")
	ErrNotFound        = errors.New("entity not found")
)

// Event is the kind of a change notification.
type Event int

const (
	Created Event = iota
	Destroyed
	Updated
)

func (e Event) String() string {
	switch e {
	case Created:
		return "created"
	case Destroyed:
		return "destroyed"
	case Updated:
		return "updated"
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

// Handler receives an event for a target: the entity identifier for entity
// subscriptions, the space name for space subscriptions. The value is a
// copy the handler may keep.
type Handler func(target string, ev Event, value record.Record)

// Change is passed to the lifecycle callback of a space.
type Change struct {
	Event Event
	URI   string
	Value record.Record
	// Revision of the entity when the change happened. Passing it back to
	// MarkClean acknowledges exactly this change.
	Revision uint64
}

// Lifecycle is invoked for every update and destroy in a space, before any
// observer.
type Lifecycle func(Change)

// Endpoints names the services bound to a space.
type Endpoints struct {
	Single     string
	Collection string
}

// Space is a snapshot of a registered space.
type Space struct {
	Name      string
	Endpoints Endpoints
	Entities  []string
}

type subscription struct {
	token   interface{}
	handler Handler
}

type observers map[Event][]subscription

func (o observers) add(ev Event, token interface{}, h Handler) {
	o[ev] = append(o[ev], subscription{token: token, handler: h})
}

func (o observers) remove(ev Event, token interface{}) {
	list := o[ev]
	out := list[:0:0]
	for _, s := range list {
		if s.token != token {
			out = append(out, s)
		}
	}
	o[ev] = out
}

func (o observers) snapshot(ev Event) []subscription {
	return append([]subscription(nil), o[ev]...)
}

type space struct {
	name      string
	endpoints Endpoints
	lifecycle Lifecycle
	entities  []string
	observers observers
}

type entity struct {
	uri       string
	value     record.Record
	dirty     bool
	rev       uint64
	space     *space
	observers observers
}

// Registry owns all spaces and entities. It is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	spaces   map[string]*space
	entities map[string]*entity
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		spaces:   make(map[string]*space),
		entities: make(map[string]*entity),
	}
}

// Option configures a space on registration.
type Option func(*space)

// WithEndpoints binds service aliases to a space.
func WithEndpoints(e Endpoints) Option {
	return func(s *space) { s.endpoints = e }
}

// RegisterSpace creates a new space. The lifecycle callback may be nil.
func (r *Registry) RegisterSpace(name string, lc Lifecycle, opts ...Option) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.spaces[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSpace, name)
	}
	s := &space{name: name, lifecycle: lc, observers: make(observers)}
	for _, opt := range opts {
		opt(s)
	}
	r.spaces[name] = s
	clog.Debugf("registered space %s", name)
	return nil
}

func (s *space) snapshot() Space {
	return Space{
		Name:      s.name,
		Endpoints: s.endpoints,
		Entities:  append([]string(nil), s.entities...),
	}
}

// FindSpace returns a snapshot of a space.
func (r *Registry) FindSpace(name string) (Space, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.spaces[name]
	if !ok {
		return Space{}, fmt.Errorf("%w: %s", ErrUnknownSpace, name)
	}
	return s.snapshot(), nil
}

// Spaces lists registered space names, sorted.
func (r *Registry) Spaces() []string {
	r.mu.Lock()
	out := make([]string, 0, len(r.spaces))
	for name := range r.spaces {
		out = append(out, name)
	}
	r.mu.Unlock()
	sort.Strings(out)
	return out
}

// SpaceEntities returns copies of the records of a space, in admission order.
func (r *Registry) SpaceEntities(name string) ([]record.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.spaces[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSpace, name)
	}
	out := make([]record.Record, 0, len(s.entities))
	for _, uri := range s.entities {
		out = append(out, r.entities[uri].value.Clone())
	}
	return out, nil
}

// SpaceOf returns the name of the space owning an entity.
func (r *Registry) SpaceOf(uri string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entities[uri]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	return e.space.name, nil
}

// FindEntityByURI returns a copy of the record of an entity.
func (r *Registry) FindEntityByURI(uri string) (record.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entities[uri]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	return e.value.Clone(), nil
}

// IsDirty reports whether an entity has unacknowledged local changes.
func (r *Registry) IsDirty(uri string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entities[uri]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	return e.dirty, nil
}

func stamp(uri string, rec record.Record) record.Record {
	v := rec.Clone()
	if v == nil {
		v = make(record.Record)
	}
	v[record.ID] = uri
	return v
}

// insert must be called with r.mu held.
func (r *Registry) insert(uri string, rec record.Record, s *space) *entity {
	e := &entity{
		uri:       uri,
		value:     stamp(uri, rec),
		space:     s,
		observers: make(observers),
	}
	s.entities = append(s.entities, uri)
	r.entities[uri] = e
	mEntities.Inc()
	return e
}

// RegisterEntity admits a clean entity into a space and fires Created on
// the space observers.
func (r *Registry) RegisterEntity(uri string, rec record.Record, spaceName string) error {
	r.mu.Lock()
	s, ok := r.spaces[spaceName]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSpace, spaceName)
	}
	if _, ok := r.entities[uri]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateEntity, uri)
	}
	e := r.insert(uri, rec, s)
	subs := s.observers.snapshot(Created)
	value := e.value.Clone()
	r.mu.Unlock()

	dispatch(subs, spaceName, Created, value)
	return nil
}

type notification struct {
	lifecycle Lifecycle
	change    Change
	entity    []subscription
	space     []subscription
	spaceName string
}

// prepare must be called with r.mu held.
func prepare(e *entity, ev Event, push bool) notification {
	n := notification{
		change: Change{
			Event:    ev,
			URI:      e.uri,
			Value:    e.value.Clone(),
			Revision: e.rev,
		},
		entity:    e.observers.snapshot(ev),
		space:     e.space.observers.snapshot(ev),
		spaceName: e.space.name,
	}
	if push {
		n.lifecycle = e.space.lifecycle
	}
	return n
}

func (n notification) run() {
	if n.lifecycle != nil {
		n.lifecycle(n.change)
	}
	dispatch(n.entity, n.change.URI, n.change.Event, n.change.Value)
	dispatch(n.space, n.spaceName, n.change.Event, n.change.Value)
}

func dispatch(subs []subscription, target string, ev Event, value record.Record) {
	if len(subs) == 0 {
		return
	}
	mEvents.WithLabelValues(ev.String()).Add(float64(len(subs)))
	for _, s := range subs {
		s.handler(target, ev, value.Clone())
	}
}

// UpdateEntity replaces the record of an entity and marks it dirty. The
// space lifecycle callback is invoked first, then entity observers, then
// space observers. Unknown identifiers are ignored.
func (r *Registry) UpdateEntity(uri string, rec record.Record) {
	r.mu.Lock()
	e, ok := r.entities[uri]
	if !ok {
		r.mu.Unlock()
		return
	}
	e.value = stamp(uri, rec)
	e.dirty = true
	e.rev++
	n := prepare(e, Updated, true)
	r.mu.Unlock()

	mDirty.Inc()
	n.run()
}

// DestroyEntity notifies the lifecycle callback and observers of the
// destruction, then removes the entity. Unknown identifiers are ignored.
func (r *Registry) DestroyEntity(uri string) {
	r.mu.Lock()
	e, ok := r.entities[uri]
	if !ok {
		r.mu.Unlock()
		return
	}
	n := prepare(e, Destroyed, true)
	r.mu.Unlock()

	n.run()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entities[uri] != e {
		return
	}
	delete(r.entities, uri)
	list := e.space.entities
	out := list[:0:0]
	for _, v := range list {
		if v != uri {
			out = append(out, v)
		}
	}
	e.space.entities = out
	mEntities.Dec()
}

// ReconcileResult tells how an incoming record was applied.
type ReconcileResult int

const (
	// Inserted means the entity was unknown and got registered.
	Inserted ReconcileResult = iota
	// Overwritten means a clean entity was replaced by the incoming record.
	Overwritten
	// Merged means a dirty entity received the fields it was missing.
	Merged
)

func (r ReconcileResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Overwritten:
		return "overwritten"
	case Merged:
		return "merged"
	}
	return fmt.Sprintf("ReconcileResult(%d)", int(r))
}

// Reconcile applies a record loaded from the remote store.
//
// Unknown entities are registered in the given space. Clean entities are
// overwritten and stay clean, so nothing is pushed back upstream. Dirty
// entities keep every local field and only receive fields they lack; the
// merged record goes through the lifecycle callback like a local update.
// Observers of existing entities receive Updated in both cases.
func (r *Registry) Reconcile(spaceName string, rec record.Record) (ReconcileResult, error) {
	uri := rec.URI()
	if uri == "" {
		return 0, fmt.Errorf("record has no %s", record.ID)
	}
	r.mu.Lock()
	e, ok := r.entities[uri]
	if !ok {
		s, ok := r.spaces[spaceName]
		if !ok {
			r.mu.Unlock()
			return 0, fmt.Errorf("%w: %s", ErrUnknownSpace, spaceName)
		}
		e = r.insert(uri, rec, s)
		subs := s.observers.snapshot(Created)
		value := e.value.Clone()
		r.mu.Unlock()

		dispatch(subs, spaceName, Created, value)
		return Inserted, nil
	}
	res := Overwritten
	if e.dirty {
		res = Merged
		e.value.Merge(rec)
		e.rev++
	} else {
		e.value = stamp(uri, rec)
	}
	n := prepare(e, Updated, e.dirty)
	r.mu.Unlock()

	clog.Debugf("reconciled %s: %v", uri, res)
	n.run()
	return res, nil
}

// MarkClean acknowledges the change made at the given revision. The entity
// stays dirty if it was updated again since.
func (r *Registry) MarkClean(uri string, rev uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entities[uri]
	if !ok || e.rev != rev {
		return false
	}
	e.dirty = false
	return true
}

// SubscribeEntity adds an observer for an event on an entity. Tokens must be
// comparable; they identify the observer for UnsubscribeEntity.
func (r *Registry) SubscribeEntity(uri string, ev Event, token interface{}, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entities[uri]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	e.observers.add(ev, token, h)
	return nil
}

// UnsubscribeEntity removes all observers of an event registered with token.
func (r *Registry) UnsubscribeEntity(uri string, ev Event, token interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entities[uri]; ok {
		e.observers.remove(ev, token)
	}
}

// SubscribeSpace adds an observer for an event on a space.
func (r *Registry) SubscribeSpace(name string, ev Event, token interface{}, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.spaces[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSpace, name)
	}
	s.observers.add(ev, token, h)
	return nil
}

// UnsubscribeSpace removes all observers of an event registered with token.
func (r *Registry) UnsubscribeSpace(name string, ev Event, token interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.spaces[name]; ok {
		s.observers.remove(ev, token)
	}
}
