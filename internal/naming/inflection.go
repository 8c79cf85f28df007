package naming

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// Pluralize maps a singular table name to the registered plural, as used by
// ParseEntity for "client" -> "clients".
func (n *Namer) Pluralize(word string) string {
	return n.inflect(word, n.config.PluralOverrides, inflection.Plural)
}

// Singularize maps a table name to the singular form that prefixes its key
// and name columns.
func (n *Namer) Singularize(word string) string {
	return n.inflect(word, n.config.SingularOverrides, inflection.Singular)
}

// inflect rewrites only the last snake_case segment of word, so
// "flight_files" becomes "flight_file". An override may name either the
// whole word or that segment; keys are matched case-insensitively.
func (n *Namer) inflect(word string, overrides map[string]string, fallback func(string) string) string {
	lower := strings.ToLower(word)
	if v, ok := lookup(overrides, lower); ok {
		return v
	}
	head, last := "", lower
	if i := strings.LastIndexByte(lower, '_'); i >= 0 {
		head, last = lower[:i+1], lower[i+1:]
	}
	if last == "" {
		return lower
	}
	if v, ok := lookup(overrides, last); ok {
		return head + v
	}
	return head + fallback(last)
}

func lookup(overrides map[string]string, key string) (string, bool) {
	if v, ok := overrides[key]; ok {
		return v, true
	}
	for k, v := range overrides {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}
