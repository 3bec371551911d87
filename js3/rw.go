package js3

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cayleygraph/quad"
)

// Decode reads a whole js3 document.
func Decode(r io.Reader) ([]quad.Quad, error) {
	var rows [][]json.RawMessage
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, err
	}
	out := make([]quad.Quad, 0, len(rows))
	for i, row := range rows {
		if len(row) != 3 {
			return nil, fmt.Errorf("js3: triple %d has %d terms", i, len(row))
		}
		var s, p string
		if err := json.Unmarshal(row[0], &s); err != nil {
			return nil, fmt.Errorf("js3: subject of triple %d: %v", i, err)
		}
		if err := json.Unmarshal(row[1], &p); err != nil {
			return nil, fmt.Errorf("js3: predicate of triple %d: %v", i, err)
		}
		o, err := Object(row[2])
		if err != nil {
			return nil, fmt.Errorf("js3: object of triple %d: %v", i, err)
		}
		out = append(out, quad.Quad{Subject: quad.IRI(s), Predicate: quad.IRI(p), Object: o})
	}
	return out, nil
}

// Encode writes quads as a single js3 document. Labels are dropped.
func Encode(w io.Writer, quads []quad.Quad) error {
	rows := make([][3]interface{}, 0, len(quads))
	for _, q := range quads {
		s, err := iriOf(q.Subject)
		if err != nil {
			return err
		}
		p, err := iriOf(q.Predicate)
		if err != nil {
			return err
		}
		o, err := encodeObject(q.Object)
		if err != nil {
			return err
		}
		rows = append(rows, [3]interface{}{s, p, o})
	}
	return json.NewEncoder(w).Encode(rows)
}

// NewReader returns a quad reader over a js3 document.
func NewReader(r io.Reader) *Reader {
	quads, err := Decode(r)
	return &Reader{quads: quads, err: err}
}

type Reader struct {
	quads []quad.Quad
	n     int
	err   error
}

func (r *Reader) ReadQuad() (quad.Quad, error) {
	if r.err != nil {
		return quad.Quad{}, r.err
	}
	if r.n >= len(r.quads) {
		return quad.Quad{}, io.EOF
	}
	q := r.quads[r.n]
	r.n++
	return q, nil
}

func (r *Reader) Close() error { return nil }

// NewWriter returns a quad writer that buffers quads and emits the document on Close.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

type Writer struct {
	w      io.Writer
	buf    []quad.Quad
	closed bool
}

func (w *Writer) WriteQuad(q quad.Quad) error {
	if w.closed {
		return fmt.Errorf("closed")
	}
	w.buf = append(w.buf, q)
	return nil
}

func (w *Writer) WriteQuads(buf []quad.Quad) (int, error) {
	for i, q := range buf {
		if err := w.WriteQuad(q); err != nil {
			return i, err
		}
	}
	return len(buf), nil
}

func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return Encode(w.w, w.buf)
}
