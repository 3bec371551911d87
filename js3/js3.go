// Package js3 implements the JSON triples format spoken by plaza endpoints.
//
// A document is a JSON array of [subject, predicate, object] arrays. The
// object is either a string or a {"value": ..., "datatype": ...} pair:
//
//	[["http://ex.com/t/1", "http://ex.com/v#title", "Fix bug"],
//	 ["http://ex.com/t/1", "http://ex.com/v#points", {"value": "3", "datatype": "http://www.w3.org/2001/XMLSchema#int"}],
//	 ["http://ex.com/t/1", "http://ex.com/v#owner", "http://ex.com/u/bob"]]
//
// Objects are normalized once while reading: http(s) strings become
// quad.IRI, structured or "value^^datatype" strings become
// quad.TypedString and all other strings stay quad.String.
package js3

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/cayleygraph/quad"

	"github.com/cayleygraph/plaza/xsd"
)

const (
	// ContentType is the MIME type of js3 documents.
	ContentType = "application/vnd.plaza.js3+json"
	// Ext is the extension plaza endpoints use for js3 resources.
	Ext = ".js3"
)

func init() {
	quad.RegisterFormat(quad.Format{
		Name:   "js3",
		Ext:    []string{Ext},
		Mime:   []string{ContentType},
		Writer: func(w io.Writer) quad.WriteCloser { return NewWriter(w) },
		Reader: func(r io.Reader) quad.ReadCloser { return NewReader(r) },
	})
}

// Literal is the structured form of a typed literal.
type Literal struct {
	Value    string `json:"value"`
	Datatype string `json:"datatype"`
}

// IsReference reports whether s looks like a dereferenceable identifier.
func IsReference(s string) bool {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Host != ""
}

// Object normalizes a raw JSON object position.
func Object(raw json.RawMessage) (quad.Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty object")
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return objectString(s), nil
	case '{':
		var lit Literal
		if err := json.Unmarshal(raw, &lit); err != nil {
			return nil, err
		}
		if lit.Datatype == "" {
			return quad.String(lit.Value), nil
		}
		return quad.TypedString{Value: quad.String(lit.Value), Type: quad.IRI(lit.Datatype)}, nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return xsd.Encode(b)
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("unsupported object: %s", raw)
		}
		if i, err := n.Int64(); err == nil {
			return xsd.Encode(i)
		}
		f, err := n.Float64()
		if err != nil {
			return nil, err
		}
		return xsd.Encode(f)
	}
}

func objectString(s string) quad.Value {
	if IsReference(s) {
		return quad.IRI(s)
	}
	if xsd.IsCompact(s) {
		return xsd.ParseCompact(s)
	}
	return quad.String(s)
}

func encodeObject(v quad.Value) (interface{}, error) {
	switch v := v.(type) {
	case quad.IRI:
		return string(v), nil
	case quad.String:
		return string(v), nil
	case quad.TypedString:
		return Literal{Value: string(v.Value), Datatype: string(v.Type)}, nil
	case quad.LangString:
		return string(v.Value), nil
	case nil:
		return nil, fmt.Errorf("nil object")
	}
	if s, ok := v.Native().(string); ok {
		return s, nil
	}
	lit, err := xsd.Encode(v.Native())
	if err != nil {
		return nil, err
	}
	return Literal{Value: string(lit.Value), Datatype: string(lit.Type)}, nil
}

func iriOf(v quad.Value) (string, error) {
	switch v := v.(type) {
	case quad.IRI:
		return string(v), nil
	case quad.String:
		return string(v), nil
	}
	return "", fmt.Errorf("expected identifier, got %T", v)
}
