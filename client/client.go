// Package client implements the HTTP transport used to reach plaza endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cayleygraph/quad"
	_ "github.com/cayleygraph/quad/jsonld"
	_ "github.com/cayleygraph/quad/nquads"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cayleygraph/plaza/clog"
	"github.com/cayleygraph/plaza/js3"
)

// ErrTransportFailure matches every error returned by Fetch.
var ErrTransportFailure = errors.New("transport failure")

// RequestIDHeader carries a random identifier of every request, logged on
// both ends.
const RequestIDHeader = "X-Request-Id"

// Fetcher is the transport capability required by the schema, service and
// sync layers.
type Fetcher interface {
	Fetch(ctx context.Context, method, addr string, params url.Values) (*Payload, error)
}

// TransportError describes a failed remote call.
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s: request failed: %d %v", e.Method, e.URL, e.StatusCode, e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(err error) bool { return err == ErrTransportFailure }

// Payload is the body of a successful response.
type Payload struct {
	URL  string
	MIME string
	Data []byte
}

// Decode unmarshals a JSON document.
func (p *Payload) Decode(dst interface{}) error {
	if err := json.Unmarshal(p.Data, dst); err != nil {
		return fmt.Errorf("cannot decode %s: %v", p.URL, err)
	}
	return nil
}

// Format returns the quad format registered for the payload MIME type.
// JSON payloads (and unknown types) are read as js3.
func (p *Payload) Format() *quad.Format {
	switch p.MIME {
	case "", "application/json", "text/javascript", "application/javascript":
	default:
		if f := quad.FormatByMime(p.MIME); f != nil && f.Reader != nil {
			return f
		}
	}
	return quad.FormatByName("js3")
}

// Quads decodes the payload as a list of triples.
func (p *Payload) Quads() ([]quad.Quad, error) {
	f := p.Format()
	if f.Name == "js3" {
		quads, err := js3.Decode(bytes.NewReader(p.Data))
		if err != nil {
			return nil, fmt.Errorf("cannot decode %s: %v", p.URL, err)
		}
		return quads, nil
	}
	qr := f.Reader(bytes.NewReader(p.Data))
	defer qr.Close()
	var out []quad.Quad
	for {
		q, err := qr.ReadQuad()
		if err == io.EOF {
			return out, nil
		} else if err != nil {
			return nil, fmt.Errorf("cannot decode %s as %s: %v", p.URL, f.Name, err)
		}
		out = append(out, q)
	}
}

// New creates a client using http.DefaultClient.
func New() *Client {
	return &Client{cli: http.DefaultClient}
}

// Client is a Fetcher backed by net/http.
type Client struct {
	cli     *http.Client
	timeout time.Duration
}

func (c *Client) SetHTTPClient(cli *http.Client) {
	c.cli = cli
}

// SetTimeout bounds each request. Zero disables the limit.
func (c *Client) SetTimeout(dt time.Duration) {
	c.timeout = dt
}

// Fetch issues a request. GET and DELETE carry params in the query string,
// other methods send them as a form body. Repeated keys encode sequences.
func (c *Client) Fetch(ctx context.Context, method, addr string, params url.Values) (*Payload, error) {
	method = strings.ToUpper(method)
	if c.timeout > 0 {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	terr := func(err error) error {
		mRequestErrors.WithLabelValues(method).Inc()
		return &TransportError{Method: method, URL: addr, Err: err}
	}
	var body io.Reader
	if len(params) != 0 {
		if method == http.MethodGet || method == http.MethodDelete {
			sep := "?"
			if strings.Contains(addr, "?") {
				sep = "&"
			}
			addr += sep + params.Encode()
		} else {
			body = strings.NewReader(params.Encode())
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, addr, body)
	if err != nil {
		return nil, terr(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json, "+js3.ContentType+";q=0.9, */*;q=0.5")
	id := uuid.New().String()
	req.Header.Set(RequestIDHeader, id)

	clog.Debugf("%s %s [%s]", method, addr, id)
	timer := prometheus.NewTimer(mRequestSeconds.WithLabelValues(method))
	resp, err := c.cli.Do(req)
	timer.ObserveDuration()
	if err != nil {
		return nil, terr(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		mRequestErrors.WithLabelValues(method).Inc()
		return nil, &TransportError{Method: method, URL: addr, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	r, compressed, err := decompress(resp.Body)
	if err != nil {
		return nil, terr(err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, terr(err)
	}
	typ, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if compressed || typ == "" || typ == "application/octet-stream" || typ == "text/plain" {
		if m := mimeByName(addr); m != "" {
			typ = m
		}
	}
	return &Payload{URL: addr, MIME: typ, Data: data}, nil
}
