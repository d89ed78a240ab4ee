package api

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/samcharles93/devcopy/pkg/dtype"
)

// Values is a flat list of array elements. On the wire each element is a
// JSON bool, a number, one of the strings "nan", "inf" and "-inf", or a
// [real, imag] pair for complex values.
type Values []dtype.Scalar

func (v *Values) UnmarshalJSON(b []byte) error {
	if v == nil {
		return fmt.Errorf("values: nil receiver")
	}
	if len(b) == 0 || string(b) == "null" {
		*v = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var items []any
	if err := dec.Decode(&items); err != nil {
		return fmt.Errorf("values: %w", err)
	}
	out := make(Values, len(items))
	for i, item := range items {
		s, err := scalarFromJSON(item)
		if err != nil {
			return fmt.Errorf("values[%d]: %w", i, err)
		}
		out[i] = s
	}
	*v = out
	return nil
}

func (v Values) MarshalJSON() ([]byte, error) {
	items := make([]any, len(v))
	for i, s := range v {
		items[i] = scalarToJSON(s)
	}
	return json.Marshal(items)
}

func scalarFromJSON(item any) (dtype.Scalar, error) {
	switch x := item.(type) {
	case bool:
		return dtype.BoolScalar(x), nil
	case json.Number:
		return numberScalar(x)
	case string:
		f, err := specialFloat(x)
		if err != nil {
			return dtype.Scalar{}, err
		}
		return dtype.FloatScalar(f), nil
	case []any:
		if len(x) != 2 {
			return dtype.Scalar{}, fmt.Errorf("complex value needs [real, imag], got %d items", len(x))
		}
		re, err := scalarFromJSON(x[0])
		if err != nil {
			return dtype.Scalar{}, err
		}
		im, err := scalarFromJSON(x[1])
		if err != nil {
			return dtype.Scalar{}, err
		}
		return dtype.ComplexScalar(complex(re.Float64(), im.Float64())), nil
	default:
		return dtype.Scalar{}, fmt.Errorf("unsupported value %v", item)
	}
}

func numberScalar(n json.Number) (dtype.Scalar, error) {
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		return dtype.IntScalar(i), nil
	}
	if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
		return dtype.UintScalar(u), nil
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return dtype.Scalar{}, err
	}
	return dtype.FloatScalar(f), nil
}

func specialFloat(s string) (float64, error) {
	switch s {
	case "nan", "NaN":
		return math.NaN(), nil
	case "inf", "Infinity":
		return math.Inf(1), nil
	case "-inf", "-Infinity":
		return math.Inf(-1), nil
	}
	return 0, fmt.Errorf("unsupported value %q", s)
}

func scalarToJSON(s dtype.Scalar) any {
	switch s.Kind {
	case dtype.KindBool:
		return s.B
	case dtype.KindInt:
		return s.I
	case dtype.KindUint:
		return s.U
	case dtype.KindComplex:
		return []any{floatToJSON(real(s.C)), floatToJSON(imag(s.C))}
	default:
		return floatToJSON(s.F)
	}
}

func floatToJSON(f float64) any {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return f
}
