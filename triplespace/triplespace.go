// Package triplespace binds registry spaces to remote services and keeps
// them in sync.
//
// A connected space has up to two services: a single resource service
// (GET, PUT and DELETE of one entity) and a collection service (GET of a
// set of entities, POST of new ones). Local updates and destructions are
// pushed to the single resource service in the background; Flush waits for
// them.
package triplespace

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cayleygraph/plaza/client"
	"github.com/cayleygraph/plaza/clog"
	"github.com/cayleygraph/plaza/ontology"
	"github.com/cayleygraph/plaza/record"
	"github.com/cayleygraph/plaza/registry"
	"github.com/cayleygraph/plaza/service"
)

var (
	ErrNoEndpoints = errors.New("no endpoint")
	ErrEmptyReply  = errors.New("empty reply")
)

// Endpoints are the descriptor URIs of the services of a space.
type Endpoints struct {
	Single     string
	Collection string
}

// SingleName is the service alias of the single resource service of a space.
func SingleName(space string) string { return space + "-single" }

// CollectionName is the service alias of the collection service of a space.
func CollectionName(space string) string { return space + "-collection" }

// Store synchronizes spaces of a registry with remote services.
type Store struct {
	onto  *ontology.Registry
	reg   *registry.Registry
	svc   *service.Registry
	fetch client.Fetcher

	// mu orders wg.Add against wg.Wait in Flush.
	mu sync.Mutex
	wg sync.WaitGroup
}

// New creates a store. All arguments are required.
func New(onto *ontology.Registry, reg *registry.Registry, svc *service.Registry, f client.Fetcher) *Store {
	return &Store{onto: onto, reg: reg, svc: svc, fetch: f}
}

// Connect retrieves the service descriptors concurrently and registers the
// space. The space is not registered if any descriptor cannot be retrieved.
func (s *Store) Connect(ctx context.Context, name string, ep Endpoints) (string, error) {
	if ep.Single == "" && ep.Collection == "" {
		return "", fmt.Errorf("connect %s: %w", name, ErrNoEndpoints)
	}
	if _, err := s.reg.FindSpace(name); err == nil {
		return "", fmt.Errorf("connect: %w: %s", registry.ErrDuplicateSpace, name)
	}
	var (
		names        registry.Endpoints
		single, coll service.Descriptor
	)
	g, gctx := errgroup.WithContext(ctx)
	if ep.Single != "" {
		names.Single = SingleName(name)
		g.Go(func() (err error) {
			single, err = service.Fetch(gctx, s.fetch, ep.Single)
			return err
		})
	}
	if ep.Collection != "" {
		names.Collection = CollectionName(name)
		g.Go(func() (err error) {
			coll, err = service.Fetch(gctx, s.fetch, ep.Collection)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("connect %s: %w", name, err)
	}
	// services are registered only once every descriptor is known
	if names.Single != "" {
		s.svc.Add(names.Single, ep.Single, single)
	}
	if names.Collection != "" {
		s.svc.Add(names.Collection, ep.Collection, coll)
	}
	if err := s.reg.RegisterSpace(name, s.lifecycle(names.Single), registry.WithEndpoints(names)); err != nil {
		s.svc.Remove(names.Single)
		s.svc.Remove(names.Collection)
		return "", err
	}
	clog.Infof("connected space %s", name)
	return name, nil
}

func (s *Store) lifecycle(single string) registry.Lifecycle {
	return func(c registry.Change) {
		var method string
		switch c.Event {
		case registry.Updated:
			method = "put"
		case registry.Destroyed:
			method = "delete"
		default:
			return
		}
		if single == "" {
			clog.Warningf("not pushing %v of %s: space has no single resource service", c.Event, c.URI)
			return
		}
		s.mu.Lock()
		s.wg.Add(1)
		s.mu.Unlock()
		mPending.Inc()
		go func() {
			defer s.wg.Done()
			defer mPending.Dec()
			s.push(single, method, c)
		}()
	}
}

func (s *Store) push(alias, method string, c registry.Change) {
	_, err := s.svc.Consume(context.Background(), s.fetch, alias, method, c.Value)
	if err != nil {
		mUpstream.WithLabelValues(method, "error").Inc()
		clog.Errorf("cannot %s %s: %v", method, c.URI, err)
		return
	}
	mUpstream.WithLabelValues(method, "ok").Inc()
	if c.Event == registry.Updated && s.reg.MarkClean(c.URI, c.Revision) {
		clog.Debugf("%s is clean at revision %d", c.URI, c.Revision)
	}
}

// Flush waits for all upstream writes started so far. Writes scheduled by
// concurrent updates while Flush runs start once it returns.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wg.Wait()
}

func (s *Store) endpoint(space string, collection bool) (string, error) {
	sp, err := s.reg.FindSpace(space)
	if err != nil {
		return "", err
	}
	alias, kind := sp.Endpoints.Single, "single resource"
	if collection {
		alias, kind = sp.Endpoints.Collection, "collection"
	}
	if alias == "" {
		return "", fmt.Errorf("%w: space %s has no %s service", ErrNoEndpoints, space, kind)
	}
	return alias, nil
}

func (s *Store) load(ctx context.Context, space string, collection bool, filter record.Record) (Result, error) {
	alias, err := s.endpoint(space, collection)
	if err != nil {
		return Result{}, err
	}
	reply, err := s.svc.Consume(ctx, s.fetch, alias, "get", filter)
	if err != nil {
		return Result{}, err
	}
	recs, err := record.Project(s.onto, reply.Quads)
	if err != nil {
		return Result{}, fmt.Errorf("load %s: %w", space, err)
	}
	res := Result{URIs: make([]string, 0, len(recs))}
	for _, rec := range recs {
		out, err := s.reg.Reconcile(space, rec)
		if err != nil {
			return res, err
		}
		mReconciled.WithLabelValues(out.String()).Inc()
		res.URIs = append(res.URIs, rec.URI())
	}
	return res, nil
}

// LoadInstances fetches entities from the collection service of a space and
// reconciles them with the registry: unknown entities are registered, clean
// ones are overwritten and dirty ones only receive the fields they lack.
// Filter values fill address placeholders or are sent as parameters.
func (s *Store) LoadInstances(ctx context.Context, space string, filter record.Record) (Result, error) {
	return s.load(ctx, space, true, filter)
}

// LoadInstance is like LoadInstances using the single resource service.
func (s *Store) LoadInstance(ctx context.Context, space string, filter record.Record) (Result, error) {
	return s.load(ctx, space, false, filter)
}

// CreateEntity posts a record to the collection service of a space and
// registers the entity returned by the remote store.
func (s *Store) CreateEntity(ctx context.Context, space string, data record.Record) (Result, error) {
	alias, err := s.endpoint(space, true)
	if err != nil {
		return Result{}, err
	}
	reply, err := s.svc.Consume(ctx, s.fetch, alias, "post", data)
	if err != nil {
		return Result{}, err
	}
	recs, err := record.Project(s.onto, reply.Quads)
	if err != nil {
		return Result{}, fmt.Errorf("create in %s: %w", space, err)
	}
	if len(recs) == 0 {
		return Result{}, fmt.Errorf("create in %s: %w", space, ErrEmptyReply)
	}
	uri := recs[0].URI()
	if err := s.reg.RegisterEntity(uri, recs[0], space); err != nil {
		return Result{}, err
	}
	return Result{URIs: []string{uri}}, nil
}
