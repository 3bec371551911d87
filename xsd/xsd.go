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

// Package xsd converts typed RDF literals to native Go values and back.
//
// Literals arrive either in structured form (quad.TypedString) or in the
// compact "value^^datatype" form. Both are normalized to quad.TypedString
// before decoding:
//
//	Decode(ParseCompact("42^^http://www.w3.org/2001/XMLSchema#int")) // int64(42)
package xsd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cayleygraph/quad"
	"github.com/cayleygraph/quad/voc/rdfs"
	xsdvoc "github.com/cayleygraph/quad/voc/xsd"
)

var (
	// ErrUnknownDatatype is returned when a literal is tagged with a datatype this package does not know.
	ErrUnknownDatatype = errors.New("unknown datatype")
	// ErrInvalidLiteral is returned when the lexical form does not match the datatype.
	ErrInvalidLiteral = errors.New("invalid literal")
)

// Kind groups datatypes by how their lexical form is decoded.
type Kind int

const (
	// Text datatypes are passed through as strings.
	Text = Kind(iota)
	Boolean
	Integer
	Floating
	// Temporal datatypes are decoded to time.Time.
	Temporal
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Boolean:
		return "boolean"
	case Integer:
		return "integer"
	case Floating:
		return "floating"
	case Temporal:
		return "temporal"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Datatype IRIs used when encoding native values.
const (
	String   = quad.IRI(xsdvoc.NS + "string")
	Bool     = quad.IRI(xsdvoc.NS + "boolean")
	Long     = quad.IRI(xsdvoc.NS + "long")
	Unsigned = quad.IRI(xsdvoc.NS + "unsignedLong")
	Double   = quad.IRI(xsdvoc.NS + "double")
	Date     = quad.IRI(xsdvoc.NS + "date")
	DateTime = quad.IRI(xsdvoc.NS + "dateTime")
)

type datatype struct {
	alias string
	kind  Kind
}

var datatypes = make(map[quad.IRI]datatype)

func register(ns string, kind Kind, aliases ...string) {
	for _, a := range aliases {
		datatypes[quad.IRI(ns+a)] = datatype{alias: a, kind: kind}
	}
}

func init() {
	datatypes[quad.IRI(rdfs.NS+"Datatype")] = datatype{alias: "datatype", kind: Text}
	register(xsdvoc.NS, Text,
		"string", "time", "gYearMonth", "gYear", "gMonthDay", "gDay", "gMonth",
		"hexBinary", "base64Binary", "anyURI", "normalizedString", "token",
		"language", "NMTOKEN", "Name", "NCName",
	)
	register(xsdvoc.NS, Boolean, "boolean")
	register(xsdvoc.NS, Floating, "decimal", "float", "double")
	register(xsdvoc.NS, Temporal, "date", "dateTime")
	register(xsdvoc.NS, Integer,
		"integer", "nonPositiveInteger", "negativeInteger", "long", "int",
		"short", "byte", "nonNegativeInteger", "unsignedLong", "unsignedInt",
		"unsignedShort", "unsignedByte", "positiveInteger",
	)
}

func lookup(iri quad.IRI) (datatype, bool) {
	dt, ok := datatypes[iri]
	if !ok {
		dt, ok = datatypes[iri.Full()]
	}
	return dt, ok
}

// IsKnown reports whether iri names a datatype known to this package.
// Short IRIs with a registered prefix (xsd:int) are accepted.
func IsKnown(iri quad.IRI) bool {
	_, ok := lookup(iri)
	return ok
}

// Alias returns the canonical alias of a datatype (e.g. "int" or "dateTime").
func Alias(iri quad.IRI) (string, bool) {
	dt, ok := lookup(iri)
	return dt.alias, ok
}

// KindOf returns the decoding kind of a known datatype.
func KindOf(iri quad.IRI) (Kind, bool) {
	dt, ok := lookup(iri)
	return dt.kind, ok
}

// ParseCompact splits a "value^^datatype" literal, stripping surrounding
// quotes from the value and angle brackets from the datatype.
// A string without a datatype part is treated as xsd:string.
func ParseCompact(s string) quad.TypedString {
	val, typ := s, ""
	if i := strings.LastIndex(s, "^^"); i >= 0 {
		val, typ = s[:i], s[i+2:]
	}
	if n := len(val); n >= 2 && val[0] == '"' && val[n-1] == '"' {
		val = val[1 : n-1]
	}
	if n := len(typ); n >= 2 && typ[0] == '<' && typ[n-1] == '>' {
		typ = typ[1 : n-1]
	}
	if typ == "" {
		typ = string(String)
	}
	return quad.TypedString{Value: quad.String(val), Type: quad.IRI(typ)}
}

// IsCompact reports whether s carries an explicit datatype in compact form.
func IsCompact(s string) bool {
	return strings.Contains(s, "^^")
}
