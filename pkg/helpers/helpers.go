package helpers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

func CastResultToInteger(res [][]interface{}) (int64, error) {
	if len(res) != 1 || len(res[0]) != 1 {
		return 0, errors.Errorf("multiple results are returned from query, please make sure your query just expects one value - value: %v", res)
	}

	switch v := res[0][0].(type) {
	case nil:
		return 0, errors.Errorf("unexpected result from query, result is nil")
	case float64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return CastResultToInteger([][]interface{}{{string(v)}})
	case string:
		atoi, err := strconv.Atoi(v)
		if err == nil {
			return int64(atoi), nil
		}

		floatValue, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return int64(floatValue), nil
		}

		boolValue, err := strconv.ParseBool(v)
		if err == nil {
			if boolValue {
				return 1, nil
			}

			return 0, nil
		}

		return 0, errors.Errorf("unexpected result from query, cannot cast result string to integer: %v", res)
	}

	return 0, errors.Errorf("unexpected result from query during, cannot cast result to integer: %v", res)
}

// CastToString converts a single column value returned by a driver into a string. NULL becomes the empty string.
func CastToString(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int64, int32, int, float64, float32, bool:
		return fmt.Sprint(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}

	return "", errors.Errorf("cannot cast value of type %T to string", value)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	time.DateOnly,
}

// CastToTimestamp converts a single column value into a UTC time. NULL is returned as nil, the same way the
// warehouses treat a missing timestamp.
func CastToTimestamp(value interface{}) (*time.Time, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case time.Time:
		t := v.UTC()
		return &t, nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		t := v.UTC()
		return &t, nil
	case int64:
		t := time.Unix(v, 0).UTC()
		return &t, nil
	case []byte:
		return CastToTimestamp(string(v))
	case string:
		trimmed := strings.TrimSpace(v)
		for _, layout := range timestampLayouts {
			t, err := time.Parse(layout, trimmed)
			if err == nil {
				t = t.UTC()
				return &t, nil
			}
		}

		return nil, errors.Errorf("cannot parse '%s' as a timestamp", v)
	}

	return nil, errors.Errorf("cannot cast value of type %T to a timestamp", value)
}

func TrimToLength(s string, maxLength int) string {
	if len(s) > maxLength {
		return s[:maxLength] + "..."
	}

	return s
}
