package server

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"inlineedit/internal/inline"
	"inlineedit/internal/models"
)

// bracketKeys splits "issues[1][custom_field_values][2][]" into its base
// name and the bracketed segments ("1", "custom_field_values", "2", "").
func bracketKeys(key string) (string, []string, error) {
	base, rest, found := strings.Cut(key, "[")
	if !found {
		return key, nil, nil
	}
	rest = "[" + rest
	var parts []string
	for rest != "" {
		if rest[0] != '[' {
			return "", nil, fmt.Errorf("malformed parameter %q", key)
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return "", nil, fmt.Errorf("malformed parameter %q", key)
		}
		parts = append(parts, rest[1:end])
		rest = rest[end+1:]
	}
	return base, parts, nil
}

func parseIssueID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequestCode(fmt.Errorf("invalid issue id %q", raw), ErrCodeInvalidID)
	}
	return id, nil
}

// parseIssuesForm collects issues[<id>][<attr>] form fields. Repeated
// scalar fields keep their last value, so a checked checkbox wins over its
// hidden companion. Fields ending in [] keep every value.
func parseIssuesForm(form url.Values) (map[int64]inline.Attributes, error) {
	out := map[int64]inline.Attributes{}
	for key, values := range form {
		base, parts, err := bracketKeys(key)
		if err != nil {
			return nil, badRequestCode(err, ErrCodeInvalidForm)
		}
		if base != "issues" || len(values) == 0 {
			continue
		}
		if len(parts) < 2 || parts[1] == "" {
			return nil, badRequestCode(fmt.Errorf("malformed parameter %q", key), ErrCodeInvalidForm)
		}
		id, err := parseIssueID(parts[0])
		if err != nil {
			return nil, err
		}
		attrs, ok := out[id]
		if !ok {
			attrs = inline.Attributes{}
			out[id] = attrs
		}

		attr := parts[1]
		rest := parts[2:]
		if attr == models.FieldCustomValues {
			if len(rest) == 0 || rest[0] == "" {
				return nil, badRequestCode(fmt.Errorf("malformed parameter %q", key), ErrCodeInvalidForm)
			}
			custom, _ := attrs[attr].(map[string]any)
			if custom == nil {
				custom = map[string]any{}
				attrs[attr] = custom
			}
			custom[rest[0]] = formValue(values, rest[1:])
			continue
		}
		attrs[attr] = formValue(values, rest)
	}
	return out, nil
}

func formValue(values []string, rest []string) any {
	if len(rest) > 0 && rest[len(rest)-1] == "" {
		return append([]string(nil), values...)
	}
	return values[len(values)-1]
}

// parseIssuesJSON converts the string-keyed JSON payload.
func parseIssuesJSON(issues map[string]map[string]any) (map[int64]inline.Attributes, error) {
	out := make(map[int64]inline.Attributes, len(issues))
	for rawID, attrs := range issues {
		id, err := parseIssueID(rawID)
		if err != nil {
			return nil, err
		}
		out[id] = inline.Attributes(attrs)
		if out[id] == nil {
			out[id] = inline.Attributes{}
		}
	}
	return out, nil
}
