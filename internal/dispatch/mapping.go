package dispatch

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// The dispatch backend is inconsistent about field casing across deployments,
// so every logical field is read through an ordered list of accepted names.

// firstString returns the first present, non-empty value among the accepted
// keys, coerced to string.
func firstString(doc map[string]any, keys ...string) string {
	for _, key := range keys {
		if raw, ok := doc[key]; ok {
			if s := stringValue(raw); strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return ""
}

func stringValue(input any) string {
	switch v := input.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

func asMap(input any) (map[string]any, bool) {
	m, ok := input.(map[string]any)
	return m, ok
}

func asSlice(input any) ([]any, bool) {
	s, ok := input.([]any)
	return s, ok
}

// itemsFromListPayload accepts either a bare JSON array or an object that
// wraps the array under a data/result key.
func itemsFromListPayload(body []byte) ([]any, bool) {
	var root any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, false
	}
	if items, ok := asSlice(root); ok {
		return items, true
	}
	doc, ok := asMap(root)
	if !ok {
		return nil, false
	}
	for _, key := range []string{"data", "Data", "result", "Result"} {
		if items, ok := asSlice(doc[key]); ok {
			return items, true
		}
	}
	return nil, false
}
