// Package plaza keeps a local, observable cache of remote triples.
//
// A Context owns one schema registry, one entity registry, one service
// registry and the store synchronizing them with the remote endpoints:
//
//	c := plaza.New(nil)
//	if err := c.LoadSchemas(ctx, "http://localhost:8081/schema"); err != nil {
//		return err
//	}
//	if _, err := c.Store.Connect(ctx, "tasks", triplespace.Endpoints{
//		Single:     "http://localhost:8081/services/tasks/single",
//		Collection: "http://localhost:8081/services/tasks/collection",
//	}); err != nil {
//		return err
//	}
//	res, err := c.Store.LoadInstances(ctx, "tasks", record.Record{"owner": "bob"})
package plaza

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/cayleygraph/plaza/client"
	"github.com/cayleygraph/plaza/internal/config"
	"github.com/cayleygraph/plaza/ontology"
	"github.com/cayleygraph/plaza/registry"
	"github.com/cayleygraph/plaza/service"
	"github.com/cayleygraph/plaza/triplespace"
)

// Context is the state of one plaza application.
type Context struct {
	Fetcher  client.Fetcher
	Ontology *ontology.Registry
	Registry *registry.Registry
	Services *service.Registry
	Store    *triplespace.Store
}

// New creates an empty context. A nil fetcher uses client.New().
func New(f client.Fetcher) *Context {
	if f == nil {
		f = client.New()
	}
	onto := ontology.New()
	reg := registry.New()
	svc := service.New(onto)
	return &Context{
		Fetcher:  f,
		Ontology: onto,
		Registry: reg,
		Services: svc,
		Store:    triplespace.New(onto, reg, svc, f),
	}
}

// Open creates a context from a config: it loads every schema source and
// connects every configured space.
func Open(ctx context.Context, cfg *config.Config) (*Context, error) {
	cli := client.New()
	cli.SetTimeout(cfg.Timeout)
	c := New(cli)
	c.Services.SetSuffix(cfg.Suffix)
	if err := c.LoadSchemas(ctx, cfg.Schemas...); err != nil {
		return nil, err
	}
	for _, s := range cfg.Spaces {
		_, err := c.Store.Connect(ctx, s.Name, triplespace.Endpoints{Single: s.Single, Collection: s.Collection})
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

// LoadSchemas fetches schema sources concurrently.
func (c *Context) LoadSchemas(ctx context.Context, uris ...string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, uri := range uris {
		uri := uri
		g.Go(func() error {
			_, err := c.Ontology.LoadSchema(gctx, c.Fetcher, uri)
			return err
		})
	}
	return g.Wait()
}

// Close waits for pending upstream writes.
func (c *Context) Close() error {
	c.Store.Flush()
	return nil
}
