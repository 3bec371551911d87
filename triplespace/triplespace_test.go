package triplespace

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cayleygraph/plaza/client"
	"github.com/cayleygraph/plaza/ontology"
	"github.com/cayleygraph/plaza/record"
	"github.com/cayleygraph/plaza/registry"
	plazahttp "github.com/cayleygraph/plaza/server/http"
	"github.com/cayleygraph/plaza/service"
	"github.com/cayleygraph/plaza/xsd"
)

type env struct {
	remote *plazahttp.Server
	url    string
	reg    *registry.Registry
	store  *Store
}

func newEnv(t testing.TB) *env {
	remote := plazahttp.New("", plazahttp.Collection{Name: "tasks", Fields: []plazahttp.Field{
		{Name: "title", Datatype: xsd.String},
		{Name: "owner", Datatype: xsd.String},
	}})
	srv := httptest.NewServer(remote)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	cli := client.New()
	onto := ontology.New()
	_, err := onto.LoadSchema(ctx, cli, srv.URL+"/schema")
	require.NoError(t, err)
	reg := registry.New()
	return &env{
		remote: remote,
		url:    srv.URL,
		reg:    reg,
		store:  New(onto, reg, service.New(onto), cli),
	}
}

func (e *env) endpoints() Endpoints {
	return Endpoints{
		Single:     e.url + "/services/tasks/single",
		Collection: e.url + "/services/tasks/collection",
	}
}

func (e *env) connect(t testing.TB) {
	name, err := e.store.Connect(context.Background(), "tasks", e.endpoints())
	require.NoError(t, err)
	require.Equal(t, "tasks", name)
}

func TestConnect(t *testing.T) {
	e := newEnv(t)
	e.connect(t)
	sp, err := e.reg.FindSpace("tasks")
	require.NoError(t, err)
	require.Equal(t, registry.Endpoints{Single: "tasks-single", Collection: "tasks-collection"}, sp.Endpoints)

	_, err = e.store.Connect(context.Background(), "tasks", e.endpoints())
	require.True(t, errors.Is(err, registry.ErrDuplicateSpace), "%v", err)

	_, err = e.store.Connect(context.Background(), "none", Endpoints{})
	require.True(t, errors.Is(err, ErrNoEndpoints))

	_, err = e.store.Connect(context.Background(), "broken", Endpoints{Single: e.url + "/services/nope/single"})
	require.True(t, errors.Is(err, client.ErrTransportFailure), "%v", err)
	_, err = e.reg.FindSpace("broken")
	require.True(t, errors.Is(err, registry.ErrUnknownSpace))
}

func TestLoadInstances(t *testing.T) {
	e := newEnv(t)
	e.connect(t)
	_, err := e.remote.Insert("tasks", url.Values{"title": {"a"}, "owner": {"bob"}})
	require.NoError(t, err)
	_, err = e.remote.Insert("tasks", url.Values{"title": {"b"}, "owner": {"alice"}})
	require.NoError(t, err)

	var created []string
	require.NoError(t, e.reg.SubscribeSpace("tasks", registry.Created, "t", func(_ string, _ registry.Event, v record.Record) {
		created = append(created, v.URI())
	}))

	ctx := context.Background()
	res, err := e.store.LoadInstances(ctx, "tasks", record.Record{"owner": "bob"})
	require.NoError(t, err)
	require.Equal(t, []string{e.url + "/data/tasks/1"}, res.URIs)

	res, err = e.store.LoadInstances(ctx, "tasks", nil)
	require.NoError(t, err)
	require.Equal(t, []string{e.url + "/data/tasks/1", e.url + "/data/tasks/2"}, res.URIs)
	require.Equal(t, res.URIs, created)

	recs, err := e.reg.SpaceEntities("tasks")
	require.NoError(t, err)
	require.Equal(t, "b", recs[1]["title"])

	// reloading clean entities does not write back
	_, err = e.store.LoadInstance(ctx, "tasks", record.Record{"id": "2"})
	require.NoError(t, err)
	e.store.Flush()
	for _, r := range e.remote.Requests() {
		require.Empty(t, r.Override)
	}
}

func TestUpdatePushesUpstream(t *testing.T) {
	e := newEnv(t)
	e.connect(t)
	ctx := context.Background()
	_, err := e.remote.Insert("tasks", url.Values{"title": {"a"}})
	require.NoError(t, err)
	res, err := e.store.LoadInstance(ctx, "tasks", record.Record{"id": "1"})
	require.NoError(t, err)
	uri := res.URIs[0]

	rec, err := e.reg.FindEntityByURI(uri)
	require.NoError(t, err)
	rec["title"] = "changed"
	e.reg.UpdateEntity(uri, rec)
	dirty, _ := e.reg.IsDirty(uri)
	require.True(t, dirty)

	e.store.Flush()
	dirty, _ = e.reg.IsDirty(uri)
	require.False(t, dirty)
	vals, _ := e.remote.Values("tasks", "1")
	require.Equal(t, []string{"changed"}, vals["title"])

	reqs := e.remote.Requests()
	last := reqs[len(reqs)-1]
	require.Equal(t, http.MethodPost, last.Method)
	require.Equal(t, "put", last.Override)
	require.Equal(t, "/data/tasks/1.js3", last.Path)

	e.reg.DestroyEntity(uri)
	e.store.Flush()
	_, ok := e.remote.Values("tasks", "1")
	require.False(t, ok)
	reqs = e.remote.Requests()
	last = reqs[len(reqs)-1]
	require.Equal(t, http.MethodGet, last.Method)
	require.Equal(t, "delete", last.Override)
}

func TestDirtyMerge(t *testing.T) {
	e := newEnv(t)
	e.connect(t)
	ctx := context.Background()
	_, err := e.remote.Insert("tasks", url.Values{"title": {"server"}})
	require.NoError(t, err)
	res, err := e.store.LoadInstances(ctx, "tasks", nil)
	require.NoError(t, err)
	uri := res.URIs[0]

	// a local edit that has not reached the remote store yet
	e.remote.SetFailing(true)
	e.reg.UpdateEntity(uri, record.Record{"id": "1", "title": "draft"})
	e.store.Flush()
	dirty, _ := e.reg.IsDirty(uri)
	require.True(t, dirty)

	e.remote.SetFailing(false)
	_, err = e.remote.Insert("tasks", url.Values{"title": {"other"}})
	require.NoError(t, err)
	vals := url.Values{"title": {"server"}, "owner": {"bob"}}
	require.NoError(t, e.put("1", vals))

	_, err = e.store.LoadInstances(ctx, "tasks", nil)
	require.NoError(t, err)
	got, err := e.reg.FindEntityByURI(uri)
	require.NoError(t, err)
	require.Equal(t, "draft", got["title"])
	require.Equal(t, "bob", got["owner"])

	// the merged record is pushed and acknowledged
	e.store.Flush()
	dirty, _ = e.reg.IsDirty(uri)
	require.False(t, dirty)
	stored, _ := e.remote.Values("tasks", "1")
	require.Equal(t, []string{"draft"}, stored["title"])
}

func (e *env) put(id string, vals url.Values) error {
	vals.Set(service.MethodParam, "put")
	_, err := client.New().Fetch(context.Background(), http.MethodPost, e.url+"/data/tasks/"+id+".js3", vals)
	return err
}

func TestCreateEntity(t *testing.T) {
	e := newEnv(t)
	e.connect(t)
	res, err := e.store.CreateEntity(context.Background(), "tasks", record.Record{"title": "new", "owner": "bob"})
	require.NoError(t, err)
	require.Equal(t, []string{e.url + "/data/tasks/1"}, res.URIs)
	got, err := e.reg.FindEntityByURI(res.URIs[0])
	require.NoError(t, err)
	require.Equal(t, "new", got["title"])
	dirty, _ := e.reg.IsDirty(res.URIs[0])
	require.False(t, dirty)
}

func TestTransportFailureLeavesRegistry(t *testing.T) {
	e := newEnv(t)
	e.connect(t)
	_, err := e.remote.Insert("tasks", url.Values{"title": {"a"}})
	require.NoError(t, err)
	e.remote.SetFailing(true)

	ctx := context.Background()
	_, err = e.store.LoadInstances(ctx, "tasks", nil)
	require.True(t, errors.Is(err, client.ErrTransportFailure), "%v", err)
	_, err = e.store.CreateEntity(ctx, "tasks", record.Record{"title": "x"})
	require.True(t, errors.Is(err, client.ErrTransportFailure), "%v", err)

	recs, err := e.reg.SpaceEntities("tasks")
	require.NoError(t, err)
	require.Empty(t, recs)

	_, err = e.store.LoadInstances(ctx, "missing", nil)
	require.True(t, errors.Is(err, registry.ErrUnknownSpace))
}

func TestSingleOnlySpace(t *testing.T) {
	e := newEnv(t)
	_, err := e.store.Connect(context.Background(), "one", Endpoints{Single: e.url + "/services/tasks/single"})
	require.NoError(t, err)
	_, err = e.store.LoadInstances(context.Background(), "one", nil)
	require.True(t, errors.Is(err, ErrNoEndpoints), "%v", err)
}

func TestFuture(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.remote.Insert("tasks", url.Values{"title": {"a"}})
	require.NoError(t, err)

	var (
		wg  sync.WaitGroup
		got Result
	)
	err = Sequence(ctx,
		func(ctx context.Context) error {
			_, err := e.store.Connect(ctx, "tasks", e.endpoints())
			return err
		},
		func(ctx context.Context) error {
			wg.Add(1)
			Go(func() (Result, error) {
				return e.store.LoadInstances(ctx, "tasks", nil)
			}).OnComplete(func(res Result, err error) {
				defer wg.Done()
				require.NoError(t, err)
				got = res
			})
			return nil
		},
	)
	require.NoError(t, err)
	wg.Wait()
	require.Len(t, got.URIs, 1)

	stop := errors.New("stop")
	calls := 0
	err = Sequence(ctx,
		func(context.Context) error { calls++; return stop },
		func(context.Context) error { calls++; return nil },
	)
	require.Equal(t, stop, err)
	require.Equal(t, 1, calls)

	f := Go(func() (Result, error) { return Result{URIs: []string{"x"}}, nil })
	res, err := f.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"x"}, res.URIs)
}

func TestConnectPartialFailure(t *testing.T) {
	e := newEnv(t)
	_, err := e.store.Connect(context.Background(), "half", Endpoints{
		Single:     e.url + "/services/tasks/single",
		Collection: e.url + "/services/nope/collection",
	})
	require.True(t, errors.Is(err, client.ErrTransportFailure), "%v", err)

	_, err = e.reg.FindSpace("half")
	require.True(t, errors.Is(err, registry.ErrUnknownSpace))
	_, err = e.store.svc.ByAlias(SingleName("half"))
	require.True(t, errors.Is(err, service.ErrUnknownService), "%v", err)

	// the name can be connected once the endpoints are right
	_, err = e.store.Connect(context.Background(), "half", Endpoints{
		Single:     e.url + "/services/tasks/single",
		Collection: e.url + "/services/tasks/collection",
	})
	require.NoError(t, err)
	_, err = e.store.svc.ByAlias(CollectionName("half"))
	require.NoError(t, err)
}

func TestFlushDuringUpdates(t *testing.T) {
	e := newEnv(t)
	e.connect(t)
	ctx := context.Background()
	_, err := e.remote.Insert("tasks", url.Values{"title": {"a"}})
	require.NoError(t, err)
	res, err := e.store.LoadInstance(ctx, "tasks", record.Record{"id": "1"})
	require.NoError(t, err)
	uri := res.URIs[0]

	const n = 20
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			e.reg.UpdateEntity(uri, record.Record{"id": "1", "title": "t"})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			e.store.Flush()
		}
	}()
	wg.Wait()
	e.store.Flush()

	puts := 0
	for _, r := range e.remote.Requests() {
		if r.Override == "put" {
			puts++
		}
	}
	require.Equal(t, n, puts)
	dirty, _ := e.reg.IsDirty(uri)
	require.False(t, dirty)
}
