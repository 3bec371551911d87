package client

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/cayleygraph/quad"
)

const (
	gzipMagic  = "\x1f\x8b"
	b2zipMagic = "BZh"
)

// decompress detects gzip or bzip2 compressed bodies and unwraps them.
// Other bodies are returned as is.
func decompress(r io.Reader) (io.Reader, bool, error) {
	br := bufio.NewReader(r)
	buf, err := br.Peek(3)
	if err != nil && err != io.EOF {
		return nil, false, err
	}
	switch {
	case bytes.HasPrefix(buf, []byte(gzipMagic)):
		zr, err := gzip.NewReader(br)
		return zr, true, err
	case bytes.HasPrefix(buf, []byte(b2zipMagic)):
		return bzip2.NewReader(br), true, nil
	default:
		return br, false, nil
	}
}

// mimeByName guesses the MIME type of a compressed or untyped document
// from its file name, e.g. schema.nq.gz.
func mimeByName(addr string) string {
	u, err := url.Parse(addr)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	for _, ext := range []string{".gz", ".bz2"} {
		name = strings.TrimSuffix(name, ext)
	}
	if f := quad.FormatByExt(path.Ext(name)); f != nil && len(f.Mime) != 0 {
		return f.Mime[0]
	}
	return ""
}
