package query

import (
	"database/sql/driver"
	"encoding/json"
	"math"
	"reflect"
	"time"

	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
)

type undefinedValue struct{}

type nullValue struct{}

var (
	// Undefined marks a key as absent: it contributes no filter and no write.
	Undefined = undefinedValue{}
	// Null matches or writes SQL NULL. An untyped nil means the same.
	Null = nullValue{}
)

type valueState int

const (
	stateValue valueState = iota
	stateNull
	stateUndefined
)

// resolve classifies a caller value. Typed nil pointers are treated as
// undefined so optional struct fields can be passed straight through; pointers
// are dereferenced and driver.Valuer types unwrapped.
func resolve(v interface{}) (interface{}, valueState) {
	switch v.(type) {
	case nil, nullValue:
		return nil, stateNull
	case undefinedValue:
		return nil, stateUndefined
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, stateUndefined
		}
		rv = rv.Elem()
	}
	v = rv.Interface()

	if _, isTime := v.(time.Time); !isTime {
		if valuer, ok := v.(driver.Valuer); ok {
			dv, err := valuer.Value()
			if err != nil || dv == nil {
				return nil, stateNull
			}
			return dv, stateValue
		}
	}
	return v, stateValue
}

// Coerce converts v into the Go representation bound for a column of the
// given field: int64 for Int/BigInt, float64, string, bool or time.Time.
func Coerce(model string, f Field, v interface{}) (interface{}, error) {
	mismatch := func() error {
		return appErrors.Validation("invalid value for %s.%s: expected %s, got %T", model, f.Name, f.Type, v)
	}

	switch f.Type {
	case TypeInt, TypeBigInt:
		n, ok := toInt64(v)
		if !ok {
			return nil, mismatch()
		}
		if f.Type == TypeInt && (n > math.MaxInt32 || n < math.MinInt32) {
			return nil, appErrors.Validation("value %d overflows %s.%s (Int)", n, model, f.Name)
		}
		return n, nil
	case TypeFloat:
		n, ok := toFloat64(v)
		if !ok {
			return nil, mismatch()
		}
		return n, nil
	case TypeString:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		}
		return nil, mismatch()
	case TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, mismatch()
	case TypeDateTime:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return nil, appErrors.Validation("invalid value for %s.%s: %q is not an RFC 3339 timestamp", model, f.Name, t)
			}
			return parsed, nil
		}
		return nil, mismatch()
	}
	return nil, mismatch()
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case float32:
		return toInt64(float64(n))
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

// SameValue compares two values of a column after coercion.
func SameValue(model string, f Field, a, b interface{}) bool {
	av, aState := resolve(a)
	bv, bState := resolve(b)
	if aState != stateValue || bState != stateValue {
		return aState == bState && aState == stateNull
	}
	ac, err := Coerce(model, f, av)
	if err != nil {
		return false
	}
	bc, err := Coerce(model, f, bv)
	if err != nil {
		return false
	}
	if at, ok := ac.(time.Time); ok {
		bt, _ := bc.(time.Time)
		return at.Equal(bt)
	}
	return ac == bc
}
