// Package inline implements bulk inline editing of issues: resolving the
// working set, masking derived parent fields, validating submitted
// attributes and saving each issue independently.
package inline

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"inlineedit/internal/models"
)

var (
	// ErrNotFound reports an empty or unmatched working set.
	ErrNotFound = errors.New("no issues found")
	// ErrInvalidQuery reports a query that failed validation or execution.
	ErrInvalidQuery = models.ErrInvalidQuery
	// ErrInvalidArgument reports malformed request parameters.
	ErrInvalidArgument = errors.New("invalid argument")
)

// LockVersionKey carries the lock_version the client last saw.
const LockVersionKey = "lock_version"

// Attributes is the submitted attribute map of one issue. Scalar values are
// strings (or JSON scalars); custom_field_values maps field ids to a value or
// a list of values.
type Attributes map[string]any

// Keys returns the attribute names in lexical order.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for key := range a {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for key, value := range a {
		out[key] = value
	}
	return out
}

// scalarValue flattens one submitted value into its string form.
func scalarValue(v any) (string, error) {
	switch value := v.(type) {
	case nil:
		return "", nil
	case string:
		return value, nil
	case []string:
		if len(value) == 0 {
			return "", nil
		}
		return value[0], nil
	case []any:
		if len(value) == 0 {
			return "", nil
		}
		return scalarValue(value[0])
	case json.Number:
		return value.String(), nil
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(value), nil
	case int64:
		return strconv.FormatInt(value, 10), nil
	case bool:
		if value {
			return "1", nil
		}
		return "0", nil
	default:
		return "", fmt.Errorf("%w: unsupported value %T", ErrInvalidArgument, v)
	}
}

// listValue flattens a submitted value into a list of strings.
func listValue(v any) ([]string, error) {
	switch value := v.(type) {
	case []string:
		return append([]string(nil), value...), nil
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			s, err := scalarValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	default:
		s, err := scalarValue(v)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
}

// customFieldValues normalizes the custom_field_values attribute.
func customFieldValues(v any) (map[int64][]string, error) {
	out := map[int64][]string{}
	add := func(rawID string, value any) error {
		id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: custom field id %q", ErrInvalidArgument, rawID)
		}
		values, err := listValue(value)
		if err != nil {
			return err
		}
		out[id] = values
		return nil
	}

	switch value := v.(type) {
	case nil:
		return out, nil
	case map[int64][]string:
		for id, values := range value {
			out[id] = append([]string(nil), values...)
		}
	case map[string][]string:
		for id, values := range value {
			if err := add(id, values); err != nil {
				return nil, err
			}
		}
	case map[string]any:
		for id, values := range value {
			if err := add(id, values); err != nil {
				return nil, err
			}
		}
	case Attributes:
		for id, values := range value {
			if err := add(id, values); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("%w: custom_field_values must be a map", ErrInvalidArgument)
	}
	return out, nil
}
