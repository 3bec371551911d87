package record

import (
	"errors"
	"testing"
	"time"

	"github.com/cayleygraph/quad"
	"github.com/stretchr/testify/require"

	"github.com/cayleygraph/plaza/ontology"
	"github.com/cayleygraph/plaza/xsd"
)

const (
	s1 = quad.IRI("http://test.com/t/1")
	s2 = quad.IRI("http://test.com/t/2")
	p1 = quad.IRI("http://test.com/v#name")
	p2 = quad.IRI("http://test.com/v/other")
)

func newOntology() *ontology.Registry {
	o := ontology.New()
	o.Add("test", ontology.Definition{Identifier: p1})
	return o
}

func TestProjectGrouping(t *testing.T) {
	recs, err := Project(newOntology(), []quad.Quad{
		{Subject: s1, Predicate: p1, Object: quad.String("x")},
		{Subject: s1, Predicate: p2, Object: quad.String("y")},
		{Subject: s2, Predicate: p1, Object: quad.String("z")},
	})
	require.NoError(t, err)
	require.Equal(t, []Record{
		{ID: string(s1), "name": "x", string(p2): "y"},
		{ID: string(s2), "name": "z"},
	}, recs)
}

func TestProjectPromotion(t *testing.T) {
	o := newOntology()
	recs, err := Project(o, []quad.Quad{
		{Subject: s1, Predicate: p1, Object: quad.IRI("http://test.com/a")},
		{Subject: s2, Predicate: p1, Object: quad.IRI("http://test.com/c")},
		{Subject: s1, Predicate: p1, Object: quad.IRI("http://test.com/b")},
		{Subject: s1, Predicate: p1, Object: quad.String("d")},
	})
	require.NoError(t, err)
	require.Equal(t, []interface{}{"http://test.com/a", "http://test.com/b", "d"}, recs[0]["name"])
	require.Equal(t, "http://test.com/c", recs[1]["name"])
}

func TestProjectDecode(t *testing.T) {
	recs, err := Project(nil, []quad.Quad{
		{Subject: s1, Predicate: p1, Object: quad.String("42^^http://www.w3.org/2001/XMLSchema#int")},
		{Subject: s1, Predicate: p2, Object: quad.TypedString{Value: "true", Type: xsd.Bool}},
		{Subject: s2, Predicate: p1, Object: quad.TypedString{Value: "2011-03-04", Type: xsd.Date}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(42), recs[0][string(p1)])
	require.Equal(t, true, recs[0][string(p2)])
	require.Equal(t, time.Date(2011, 3, 4, 0, 0, 0, 0, time.UTC), recs[1][string(p1)])
}

func TestProjectNativeLiterals(t *testing.T) {
	recs, err := Project(nil, []quad.Quad{
		{Subject: s1, Predicate: p1, Object: quad.Int(5)},
		{Subject: s1, Predicate: p2, Object: quad.Bool(false)},
	})
	require.NoError(t, err)
	require.Equal(t, int64(5), recs[0][string(p1)])
	require.Equal(t, false, recs[0][string(p2)])
}

func TestProjectUnknownDatatype(t *testing.T) {
	_, err := Project(nil, []quad.Quad{
		{Subject: s1, Predicate: p1, Object: quad.TypedString{Value: "1", Type: "http://test.com/money"}},
	})
	require.True(t, errors.Is(err, xsd.ErrUnknownDatatype), "%v", err)
}

func TestProjectSkipsBlankNodes(t *testing.T) {
	recs, err := Project(nil, []quad.Quad{
		{Subject: quad.BNode("b1"), Predicate: p1, Object: quad.String("x")},
		{Subject: s1, Predicate: p1, Object: quad.BNode("b2")},
		{Subject: s1, Predicate: p2, Object: quad.String("y")},
	})
	require.NoError(t, err)
	require.Equal(t, []Record{{ID: string(s1), string(p2): "y"}}, recs)
}

func TestMerge(t *testing.T) {
	local := Record{ID: "u", "title": "draft"}
	changed := local.Merge(Record{ID: "u", "title": "server", "owner": "bob"})
	require.True(t, changed)
	require.Equal(t, Record{ID: "u", "title": "draft", "owner": "bob"}, local)
	require.False(t, local.Merge(Record{"title": "again"}))
}

func TestClone(t *testing.T) {
	r := Record{ID: "u", "tags": []interface{}{"a"}}
	c := r.Clone()
	c.Add("tags", "b")
	require.Equal(t, []interface{}{"a"}, r["tags"])
	require.Equal(t, []interface{}{"a", "b"}, c["tags"])
}

func TestToQuads(t *testing.T) {
	o := newOntology()
	r := Record{
		ID:         string(s1),
		"name":     []interface{}{"x", "http://test.com/a"},
		string(p2): int64(3),
	}
	quads, err := ToQuads(o, r)
	require.NoError(t, err)
	require.Equal(t, []quad.Quad{
		{Subject: s1, Predicate: p2, Object: quad.TypedString{Value: "3", Type: xsd.Long}},
		{Subject: s1, Predicate: p1, Object: quad.String("x")},
		{Subject: s1, Predicate: p1, Object: quad.IRI("http://test.com/a")},
	}, quads)

	back, err := Project(o, quads)
	require.NoError(t, err)
	require.Equal(t, []Record{r}, back)

	_, err = ToQuads(o, Record{"name": "x"})
	require.Error(t, err)
}
