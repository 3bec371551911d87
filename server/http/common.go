// Copyright 2017 The Cayley Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package plazahttp

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/cayleygraph/quad"

	"github.com/cayleygraph/plaza/clog"
	"github.com/cayleygraph/plaza/js3"
)

const (
	defaultFormat      = "js3"
	hdrContentType     = "Content-Type"
	hdrContentEncoding = "Content-Encoding"
	hdrAccept          = "Accept"
	hdrAcceptEncoding  = "Accept-Encoding"
	contentTypeJSON    = "application/json"
)

func jsonResponse(w http.ResponseWriter, code int, err interface{}) {
	w.Header().Set(hdrContentType, contentTypeJSON)
	w.WriteHeader(code)
	w.Write([]byte(`{"error": `))
	var s string
	switch err := err.(type) {
	case string:
		s = err
	case error:
		s = err.Error()
	default:
		s = fmt.Sprint(err)
	}
	data, _ := json.Marshal(s)
	w.Write(data)
	w.Write([]byte(`}`))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set(hdrContentType, contentTypeJSON)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		clog.Errorf("cannot write response: %v", err)
	}
}

// acceptedTypes returns the media types listed in a header, in order.
func acceptedTypes(h http.Header, name string) []string {
	var out []string
	for _, part := range strings.Split(h.Get(name), ",") {
		typ, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && typ != "" {
			out = append(out, typ)
		}
	}
	return out
}

// getFormat picks the response format from the resource extension, the
// format parameter or the Accept header, in that order.
func getFormat(r *http.Request, ext string) *quad.Format {
	if ext != "" {
		if f := quad.FormatByExt(ext); f != nil {
			return f
		}
	}
	if name := r.FormValue("format"); name != "" {
		if f := quad.FormatByName(name); f != nil {
			return f
		}
	}
	for _, typ := range acceptedTypes(r.Header, hdrAccept) {
		if typ == contentTypeJSON {
			break
		}
		if f := quad.FormatByMime(typ); f != nil && f.Writer != nil {
			return f
		}
	}
	return quad.FormatByName(defaultFormat)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func writerFrom(w http.ResponseWriter, r *http.Request) io.WriteCloser {
	for _, enc := range strings.Split(r.Header.Get(hdrAcceptEncoding), ",") {
		if strings.TrimSpace(enc) == "gzip" {
			w.Header().Set(hdrContentEncoding, "gzip")
			return gzip.NewWriter(w)
		}
	}
	return nopWriteCloser{Writer: w}
}

// writeQuads sends quads in the negotiated format. The "iri" parameter
// selects short or full identifiers.
func writeQuads(w http.ResponseWriter, r *http.Request, ext string, quads []quad.Quad) {
	format := getFormat(r, ext)
	if format == nil || format.Writer == nil {
		jsonResponse(w, http.StatusBadRequest, fmt.Errorf("format is not supported for writing data"))
		return
	}
	if format.Name == defaultFormat {
		w.Header().Set(hdrContentType, js3.ContentType)
	} else if len(format.Mime) != 0 {
		w.Header().Set(hdrContentType, format.Mime[0])
	}
	wr := writerFrom(w, r)
	defer wr.Close()
	qwc := format.Writer(wr)
	defer qwc.Close()
	var qw quad.Writer = qwc
	if irif := r.FormValue("iri"); irif != "" {
		opts := quad.IRIOptions{Format: quad.IRIDefault}
		switch irif {
		case "short":
			opts.Format = quad.IRIShort
		case "full":
			opts.Format = quad.IRIFull
		}
		qw = quad.IRIWriter(qw, opts)
	}
	if _, err := qw.WriteQuads(quads); err != nil {
		clog.Errorf("write quads error: %v", err)
	}
}
