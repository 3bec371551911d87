package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/cayleygraph/quad"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type seen struct {
	method string
	query  url.Values
	form   url.Values
	ctype  string
	id     string
}

func makeServer(t testing.TB, status int, ctype, body string) (*httptest.Server, *seen) {
	s := &seen{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.method = r.Method
		s.query = r.URL.Query()
		s.ctype = r.Header.Get("Content-Type")
		s.id = r.Header.Get(RequestIDHeader)
		if r.Method == http.MethodPost {
			data, _ := io.ReadAll(r.Body)
			s.form, _ = url.ParseQuery(string(data))
		}
		w.Header().Set("Content-Type", ctype)
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, s
}

func TestFetchGet(t *testing.T) {
	srv, s := makeServer(t, http.StatusOK, "application/json; charset=utf-8", `{"ok": true}`)
	cli := New()
	p, err := cli.Fetch(context.Background(), "get", srv.URL+"/doc?x=1", url.Values{"tag": {"a", "b"}})
	require.NoError(t, err)
	require.Equal(t, http.MethodGet, s.method)
	require.Equal(t, []string{"a", "b"}, s.query["tag"])
	require.Equal(t, "1", s.query.Get("x"))
	require.Equal(t, "application/json", p.MIME)
	_, err = uuid.Parse(s.id)
	require.NoError(t, err, "request id %q", s.id)

	var doc struct{ OK bool }
	require.NoError(t, p.Decode(&doc))
	require.True(t, doc.OK)
}

func TestFetchPostForm(t *testing.T) {
	srv, s := makeServer(t, http.StatusOK, "application/json", `[]`)
	cli := New()
	_, err := cli.Fetch(context.Background(), http.MethodPost, srv.URL, url.Values{"_method": {"put"}, "title": {"x"}})
	require.NoError(t, err)
	require.Equal(t, http.MethodPost, s.method)
	require.Equal(t, "application/x-www-form-urlencoded", s.ctype)
	require.Equal(t, "put", s.form.Get("_method"))
	require.Equal(t, "x", s.form.Get("title"))
}

func TestFetchStatusError(t *testing.T) {
	srv, _ := makeServer(t, http.StatusNotFound, "text/plain", "missing")
	_, err := New().Fetch(context.Background(), http.MethodGet, srv.URL, nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrTransportFailure))
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	require.Equal(t, http.StatusNotFound, terr.StatusCode)
}

func TestFetchNetworkError(t *testing.T) {
	srv, _ := makeServer(t, http.StatusOK, "application/json", `[]`)
	addr := srv.URL
	srv.Close()
	_, err := New().Fetch(context.Background(), http.MethodGet, addr, nil)
	require.True(t, errors.Is(err, ErrTransportFailure))
}

func TestPayloadQuads(t *testing.T) {
	p := &Payload{MIME: "application/json", Data: []byte(`[["http://ex.com/a", "http://ex.com/p", "x"]]`)}
	quads, err := p.Quads()
	require.NoError(t, err)
	require.Equal(t, []quad.Quad{{
		Subject:   quad.IRI("http://ex.com/a"),
		Predicate: quad.IRI("http://ex.com/p"),
		Object:    quad.String("x"),
	}}, quads)

	p = &Payload{MIME: "application/n-quads", Data: []byte("<http://ex.com/a> <http://ex.com/p> <http://ex.com/b> .\n")}
	quads, err = p.Quads()
	require.NoError(t, err)
	require.Len(t, quads, 1)
	require.Equal(t, quad.IRI("http://ex.com/b"), quads[0].Object)
}
