// Package setutil handles comma-delimited id lists stored in a single column,
// such as a project's stand membership.
package setutil

import (
	"fmt"
	"strconv"
	"strings"
)

// Separator delimits tokens in a stored list.
const Separator = ","

// Split returns the trimmed, non-empty tokens of a stored list in order.
func Split(list string) []string {
	if list == "" {
		return nil
	}
	parts := strings.Split(list, Separator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Contains reports whether id appears in list as a whole token. A substring
// match is not enough: "15,23" does not contain 1 or 5.
func Contains(list string, id any) bool {
	want := Token(id)
	if want == "" {
		return false
	}
	for _, tok := range Split(list) {
		if tok == want {
			return true
		}
	}
	return false
}

// ParseIDs parses every token of list as an integer key.
func ParseIDs(list string) ([]int64, error) {
	tokens := Split(list)
	ids := make([]int64, 0, len(tokens))
	for _, tok := range tokens {
		id, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid list value: %s", tok)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Join canonicalizes values into a stored list. Duplicates are removed and
// first-occurrence order is kept.
func Join(values []string) (string, error) {
	seen := make(map[string]struct{}, len(values))
	ordered := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || strings.Contains(v, Separator) {
			return "", fmt.Errorf("invalid list value: %q", v)
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		ordered = append(ordered, v)
	}
	return strings.Join(ordered, Separator), nil
}

// JoinAny canonicalizes values provided as []string, []int64, or []any.
func JoinAny(input any) (string, error) {
	values, err := normalizeStringSlice(input)
	if err != nil {
		return "", err
	}
	return Join(values)
}

// Token renders a key the way it appears inside a stored list.
func Token(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func normalizeStringSlice(input any) ([]string, error) {
	switch v := input.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case []int64:
		out := make([]string, 0, len(v))
		for _, id := range v {
			out = append(out, Token(id))
		}
		return out, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			tok := Token(item)
			if tok == "" {
				return nil, fmt.Errorf("list values must be strings or integers")
			}
			out = append(out, tok)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("list values must be an array")
	}
}
