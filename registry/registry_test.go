package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cayleygraph/plaza/record"
)

type call struct {
	Who    string
	Target string
	Event  Event
}

type recorder struct {
	calls   []call
	changes []Change
}

func (r *recorder) handler(who string) Handler {
	return func(target string, ev Event, _ record.Record) {
		r.calls = append(r.calls, call{Who: who, Target: target, Event: ev})
	}
}

func (r *recorder) lifecycle(c Change) {
	r.changes = append(r.changes, c)
	r.calls = append(r.calls, call{Who: "lifecycle", Target: c.URI, Event: c.Event})
}

func newSpace(t *testing.T) (*Registry, *recorder) {
	reg := New()
	rec := &recorder{}
	require.NoError(t, reg.RegisterSpace("tasks", rec.lifecycle))
	return reg, rec
}

func TestSpaceUniqueness(t *testing.T) {
	reg := New()
	require.NoError(t, reg.RegisterSpace("x", nil))
	err := reg.RegisterSpace("x", nil)
	require.True(t, errors.Is(err, ErrDuplicateSpace), "%v", err)
	require.Equal(t, []string{"x"}, reg.Spaces())

	_, err = reg.FindSpace("y")
	require.True(t, errors.Is(err, ErrUnknownSpace))
}

func TestRegisterEntity(t *testing.T) {
	reg, rec := newSpace(t)
	require.NoError(t, reg.SubscribeSpace("tasks", Created, "ui", rec.handler("space")))

	require.NoError(t, reg.RegisterEntity("u1", record.Record{"title": "a"}, "tasks"))
	require.Equal(t, []call{{Who: "space", Target: "tasks", Event: Created}}, rec.calls)
	require.Empty(t, rec.changes)

	got, err := reg.FindEntityByURI("u1")
	require.NoError(t, err)
	require.Equal(t, record.Record{record.ID: "u1", "title": "a"}, got)

	dirty, err := reg.IsDirty("u1")
	require.NoError(t, err)
	require.False(t, dirty)

	err = reg.RegisterEntity("u1", record.Record{}, "tasks")
	require.True(t, errors.Is(err, ErrDuplicateEntity), "%v", err)

	require.NoError(t, reg.RegisterSpace("other", nil))
	err = reg.RegisterEntity("u1", record.Record{}, "other")
	require.True(t, errors.Is(err, ErrDuplicateEntity), "%v", err)

	err = reg.RegisterEntity("u2", record.Record{}, "missing")
	require.True(t, errors.Is(err, ErrUnknownSpace), "%v", err)

	_, err = reg.FindEntityByURI("u2")
	require.True(t, errors.Is(err, ErrNotFound))

	sp, err := reg.FindSpace("tasks")
	require.NoError(t, err)
	require.Equal(t, []string{"u1"}, sp.Entities)
	name, err := reg.SpaceOf("u1")
	require.NoError(t, err)
	require.Equal(t, "tasks", name)
}

func TestUpdateOrdering(t *testing.T) {
	reg, rec := newSpace(t)
	require.NoError(t, reg.RegisterEntity("u1", record.Record{"title": "a"}, "tasks"))
	require.NoError(t, reg.SubscribeEntity("u1", Updated, "o1", rec.handler("o1")))
	require.NoError(t, reg.SubscribeEntity("u1", Updated, "o2", rec.handler("o2")))
	require.NoError(t, reg.SubscribeSpace("tasks", Updated, "s", rec.handler("space")))
	require.NoError(t, reg.SubscribeEntity("u1", Destroyed, "o1", rec.handler("o1")))

	reg.UpdateEntity("u1", record.Record{"title": "b"})
	require.Equal(t, []call{
		{Who: "lifecycle", Target: "u1", Event: Updated},
		{Who: "o1", Target: "u1", Event: Updated},
		{Who: "o2", Target: "u1", Event: Updated},
		{Who: "space", Target: "tasks", Event: Updated},
	}, rec.calls)
	require.Equal(t, record.Record{record.ID: "u1", "title": "b"}, rec.changes[0].Value)
	require.Equal(t, uint64(1), rec.changes[0].Revision)

	dirty, err := reg.IsDirty("u1")
	require.NoError(t, err)
	require.True(t, dirty)

	reg.UpdateEntity("missing", record.Record{})
	require.Len(t, rec.calls, 4)
}

func TestUnsubscribe(t *testing.T) {
	reg, rec := newSpace(t)
	require.NoError(t, reg.RegisterEntity("u1", nil, "tasks"))
	require.NoError(t, reg.SubscribeEntity("u1", Updated, "o1", rec.handler("o1")))
	require.NoError(t, reg.SubscribeEntity("u1", Updated, "o1", rec.handler("o1-again")))
	require.NoError(t, reg.SubscribeEntity("u1", Updated, "o2", rec.handler("o2")))
	reg.UnsubscribeEntity("u1", Updated, "o1")

	reg.UpdateEntity("u1", record.Record{})
	require.Equal(t, []call{
		{Who: "lifecycle", Target: "u1", Event: Updated},
		{Who: "o2", Target: "u1", Event: Updated},
	}, rec.calls)

	err := reg.SubscribeEntity("missing", Updated, "o1", rec.handler("o1"))
	require.True(t, errors.Is(err, ErrNotFound))
	err = reg.SubscribeSpace("missing", Updated, "o1", rec.handler("o1"))
	require.True(t, errors.Is(err, ErrUnknownSpace))
}

func TestReentrantSubscribe(t *testing.T) {
	reg, rec := newSpace(t)
	require.NoError(t, reg.RegisterEntity("u1", nil, "tasks"))
	require.NoError(t, reg.SubscribeEntity("u1", Updated, "o1", func(target string, ev Event, v record.Record) {
		rec.handler("o1")(target, ev, v)
		reg.UnsubscribeEntity("u1", Updated, "o1")
		require.NoError(t, reg.SubscribeEntity("u1", Updated, "late", rec.handler("late")))
	}))
	require.NoError(t, reg.SubscribeEntity("u1", Updated, "o2", rec.handler("o2")))

	reg.UpdateEntity("u1", record.Record{})
	reg.UpdateEntity("u1", record.Record{})
	require.Equal(t, []call{
		{Who: "lifecycle", Target: "u1", Event: Updated},
		{Who: "o1", Target: "u1", Event: Updated},
		{Who: "o2", Target: "u1", Event: Updated},
		{Who: "lifecycle", Target: "u1", Event: Updated},
		{Who: "o2", Target: "u1", Event: Updated},
		{Who: "late", Target: "u1", Event: Updated},
	}, rec.calls)
}

func TestDestroy(t *testing.T) {
	reg, rec := newSpace(t)
	require.NoError(t, reg.RegisterEntity("u1", record.Record{"title": "a"}, "tasks"))
	require.NoError(t, reg.RegisterEntity("u2", nil, "tasks"))
	var seen record.Record
	require.NoError(t, reg.SubscribeEntity("u1", Destroyed, "o1", func(target string, ev Event, v record.Record) {
		rec.handler("o1")(target, ev, v)
		cur, err := reg.FindEntityByURI(target)
		require.NoError(t, err)
		seen = cur
	}))
	require.NoError(t, reg.SubscribeSpace("tasks", Destroyed, "s", rec.handler("space")))

	reg.DestroyEntity("u1")
	require.Equal(t, []call{
		{Who: "lifecycle", Target: "u1", Event: Destroyed},
		{Who: "o1", Target: "u1", Event: Destroyed},
		{Who: "space", Target: "tasks", Event: Destroyed},
	}, rec.calls)
	require.Equal(t, record.Record{record.ID: "u1", "title": "a"}, seen)

	_, err := reg.FindEntityByURI("u1")
	require.True(t, errors.Is(err, ErrNotFound))
	recs, err := reg.SpaceEntities("tasks")
	require.NoError(t, err)
	require.Equal(t, []record.Record{{record.ID: "u2"}}, recs)

	// destroying again is a no-op
	reg.DestroyEntity("u1")
	require.Len(t, rec.calls, 3)
}

func TestReconcile(t *testing.T) {
	reg, rec := newSpace(t)
	require.NoError(t, reg.SubscribeSpace("tasks", Created, "s", rec.handler("created")))

	res, err := reg.Reconcile("tasks", record.Record{record.ID: "u1", "title": "server"})
	require.NoError(t, err)
	require.Equal(t, Inserted, res)
	require.NoError(t, reg.SubscribeEntity("u1", Updated, "o", rec.handler("o")))

	// clean entities are overwritten without pushing upstream
	res, err = reg.Reconcile("tasks", record.Record{record.ID: "u1", "title": "server2"})
	require.NoError(t, err)
	require.Equal(t, Overwritten, res)
	require.Empty(t, rec.changes)
	got, _ := reg.FindEntityByURI("u1")
	require.Equal(t, "server2", got["title"])
	dirty, _ := reg.IsDirty("u1")
	require.False(t, dirty)

	// dirty entities keep local fields
	reg.UpdateEntity("u1", record.Record{"title": "draft"})
	res, err = reg.Reconcile("tasks", record.Record{record.ID: "u1", "title": "server", "owner": "bob"})
	require.NoError(t, err)
	require.Equal(t, Merged, res)
	got, _ = reg.FindEntityByURI("u1")
	require.Equal(t, record.Record{record.ID: "u1", "title": "draft", "owner": "bob"}, got)
	require.Len(t, rec.changes, 2)
	require.Equal(t, got, rec.changes[1].Value)

	require.Equal(t, []call{
		{Who: "created", Target: "tasks", Event: Created},
		{Who: "o", Target: "u1", Event: Updated},
		{Who: "lifecycle", Target: "u1", Event: Updated},
		{Who: "o", Target: "u1", Event: Updated},
		{Who: "lifecycle", Target: "u1", Event: Updated},
		{Who: "o", Target: "u1", Event: Updated},
	}, rec.calls)

	_, err = reg.Reconcile("missing", record.Record{record.ID: "u9"})
	require.True(t, errors.Is(err, ErrUnknownSpace))
	_, err = reg.Reconcile("tasks", record.Record{})
	require.Error(t, err)
}

func TestMarkClean(t *testing.T) {
	reg, rec := newSpace(t)
	require.NoError(t, reg.RegisterEntity("u1", nil, "tasks"))
	reg.UpdateEntity("u1", record.Record{"v": 1})
	reg.UpdateEntity("u1", record.Record{"v": 2})

	require.False(t, reg.MarkClean("u1", rec.changes[0].Revision))
	dirty, _ := reg.IsDirty("u1")
	require.True(t, dirty)

	require.True(t, reg.MarkClean("u1", rec.changes[1].Revision))
	dirty, _ = reg.IsDirty("u1")
	require.False(t, dirty)

	require.False(t, reg.MarkClean("missing", 1))
}

func TestHandlersGetCopies(t *testing.T) {
	reg, _ := newSpace(t)
	require.NoError(t, reg.RegisterEntity("u1", record.Record{"title": "a"}, "tasks"))
	require.NoError(t, reg.SubscribeEntity("u1", Updated, "o", func(_ string, _ Event, v record.Record) {
		v["title"] = "mutated"
	}))
	reg.UpdateEntity("u1", record.Record{"title": "b"})
	got, _ := reg.FindEntityByURI("u1")
	require.Equal(t, "b", got["title"])
}
