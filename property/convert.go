package property

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/c360/vizflow/errors"
)

// toFloat converts numeric, boolean and numeric string values.
func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		return x.Float64()
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", errors.ErrIncompatibleTypes, x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: cannot convert %T to a number", errors.ErrIncompatibleTypes, v)
	}
}

// toInt converts like toFloat and rounds to the nearest integer.
func toInt(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v is not finite", errors.ErrIncompatibleTypes, f)
	}
	return int(math.Round(f)), nil
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(x)
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a boolean", errors.ErrIncompatibleTypes, x)
		}
		return b, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return false, err
	}
	return f != 0, nil
}

func toString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case fmt.Stringer:
		return x.String(), nil
	case nil:
		return "", fmt.Errorf("%w: cannot convert nil to a string", errors.ErrIncompatibleTypes)
	default:
		return fmt.Sprint(x), nil
	}
}

// Convert converts v to the Go type of target's value. It is the conversion
// applied when a link copies a value between properties of different kinds.
func Convert(v any, target Property) (any, error) {
	switch target.Value().(type) {
	case int:
		return toInt(v)
	case float64:
		return toFloat(v)
	case bool:
		return toBool(v)
	case string:
		return toString(v)
	case map[string]any:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: cannot convert %T to a composite value", errors.ErrIncompatibleTypes, v)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unsupported target %T", errors.ErrIncompatibleTypes, target.Value())
	}
}

// CanConvert reports whether a link from src to dst can carry values.
func CanConvert(src, dst Property) bool {
	_, err := Convert(src.Value(), dst)
	return err == nil
}
