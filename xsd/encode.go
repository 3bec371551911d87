package xsd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cayleygraph/quad"
)

// Encode converts a native value to a typed literal.
// time.Time values at midnight UTC are encoded as xsd:date.
func Encode(v interface{}) (quad.TypedString, error) {
	lit := func(s string, t quad.IRI) (quad.TypedString, error) {
		return quad.TypedString{Value: quad.String(s), Type: t}, nil
	}
	switch v := v.(type) {
	case string:
		return lit(v, String)
	case quad.TypedString:
		return v, nil
	case bool:
		return lit(strconv.FormatBool(v), Bool)
	case int:
		return lit(strconv.FormatInt(int64(v), 10), Long)
	case int32:
		return lit(strconv.FormatInt(int64(v), 10), Long)
	case int64:
		return lit(strconv.FormatInt(v, 10), Long)
	case uint:
		return lit(strconv.FormatUint(uint64(v), 10), Unsigned)
	case uint32:
		return lit(strconv.FormatUint(uint64(v), 10), Unsigned)
	case uint64:
		return lit(strconv.FormatUint(v, 10), Unsigned)
	case float32:
		return lit(strconv.FormatFloat(float64(v), 'g', -1, 32), Double)
	case float64:
		return lit(strconv.FormatFloat(v, 'g', -1, 64), Double)
	case time.Time:
		if isDate(v) {
			return lit(v.Format("2006-01-02"), Date)
		}
		return lit(v.Format(time.RFC3339Nano), DateTime)
	}
	return quad.TypedString{}, fmt.Errorf("%w: cannot encode %T", ErrInvalidLiteral, v)
}

// FormatParam renders a native value in the lexical form sent as a request
// parameter. Values that cannot be encoded are formatted with fmt.
func FormatParam(v interface{}) string {
	lit, err := Encode(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(lit.Value)
}

func isDate(t time.Time) bool {
	h, m, s := t.Clock()
	_, off := t.Zone()
	return h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0 && off == 0
}
