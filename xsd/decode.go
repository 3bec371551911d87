package xsd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cayleygraph/quad"
)

var temporalLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02Z07:00",
	"2006-01-02",
}

// Decode converts a typed literal to its native value:
//
//	text kinds     -> string
//	boolean        -> bool
//	integer kinds  -> int64 (uint64 for unsigned values that overflow int64)
//	floating kinds -> float64
//	date, dateTime -> time.Time
func Decode(lit quad.TypedString) (interface{}, error) {
	dt, ok := lookup(lit.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDatatype, string(lit.Type))
	}
	s := string(lit.Value)
	switch dt.kind {
	case Boolean:
		return parseBool(s, dt.alias)
	case Integer:
		return parseInt(s, dt.alias)
	case Floating:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, invalid(s, dt.alias, err)
		}
		return f, nil
	case Temporal:
		return parseTime(s, dt.alias)
	}
	return s, nil
}

// DecodeValue decodes any literal value found in a quad object position.
// Plain strings are expected in compact form; without a datatype they are
// returned as is. Native quad values (quad.Int, quad.Time, ...) produced by
// readers that convert typed literals are returned as Go values.
func DecodeValue(v quad.Value) (interface{}, error) {
	switch v := v.(type) {
	case quad.TypedString:
		return Decode(v)
	case quad.String:
		if IsCompact(string(v)) {
			return Decode(ParseCompact(string(v)))
		}
		return string(v), nil
	case quad.LangString:
		return string(v.Value), nil
	case quad.Int, quad.Float, quad.Bool:
		// already converted by a quad reader
		return v.Native(), nil
	case quad.Time:
		return time.Time(v), nil
	case nil:
		return nil, fmt.Errorf("%w: nil value", ErrInvalidLiteral)
	}
	return nil, fmt.Errorf("%w: %T is not a literal", ErrInvalidLiteral, v)
}

func invalid(s, alias string, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %q is not a valid %s: %v", ErrInvalidLiteral, s, alias, err)
	}
	return fmt.Errorf("%w: %q is not a valid %s", ErrInvalidLiteral, s, alias)
}

func parseBool(s, alias string) (bool, error) {
	switch strings.TrimSpace(s) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, invalid(s, alias, nil)
}

func parseInt(s, alias string) (interface{}, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "+")
	v, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return v, nil
	}
	if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
		if u, uerr := strconv.ParseUint(s, 10, 64); uerr == nil {
			return u, nil
		}
	}
	return nil, invalid(s, alias, err)
}

func parseTime(s, alias string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range temporalLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, invalid(s, alias, nil)
}
