package store

import (
	"strings"

	"github.com/gobwas/glob"
)

// fieldWords splits a field value into words on whitespace and the
// separators ',', ';', ':' (§4.3).
func fieldWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '\r', '\v', '\f', ',', ';', ':':
			return true
		}
		return false
	})
}

// isWildcard reports whether a query word uses wildcard syntax (contains
// *, ?, or +).
func isWildcard(qw string) bool {
	return strings.ContainsAny(qw, "*?+")
}

// wordMatches implements the entry-evaluation word rule (§4.3): qw matches
// fw by equality unless qw is a wildcard pattern, in which case only a
// trailing '*' is honored (prefix match); any other wildcard shape falls
// back to exact equality, per the spec's "intentionally minimal" rule.
func wordMatches(fw, qw string) bool {
	if !isWildcard(qw) {
		return fw == qw
	}
	if strings.HasSuffix(qw, "*") && strings.Count(qw, "*") == 1 && !strings.ContainsAny(qw, "?+") {
		g, err := glob.Compile(glob.QuoteMeta(strings.TrimSuffix(qw, "*")) + "*")
		if err != nil {
			return fw == qw
		}
		return g.Match(fw)
	}
	return fw == qw
}

// valueMatches implements the word rule: every (case-folded) query word
// must match some (case-folded) field word.
func valueMatches(fieldVal, queryVal string) bool {
	fieldVal = strings.ToLower(fieldVal)
	queryVal = strings.ToLower(queryVal)

	queryWords := strings.Fields(queryVal)
	if len(queryWords) == 0 {
		return true
	}
	fw := fieldWords(fieldVal)

	for _, qw := range queryWords {
		matched := false
		for _, w := range fw {
			if wordMatches(w, qw) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// matchSelection evaluates a single selection entry against a record.
func matchSelection(rec Record, sel Selection) bool {
	if sel.Field == "" {
		for _, v := range rec.Fields {
			if valueMatches(v, sel.Value) {
				return true
			}
		}
		return false
	}
	v, ok := rec.Fields[sel.Field]
	if !ok {
		return false
	}
	return valueMatches(v, sel.Value)
}

// matchRecord implements the full per-record evaluation order: the type
// gate, then the selection conjunction (§4.3).
func matchRecord(rec Record, selections []Selection, defaultType RecordType) bool {
	if defaultType != TypeNone {
		namesTypeField := false
		for _, sel := range selections {
			if sel.Field == "type" {
				namesTypeField = true
				break
			}
		}
		if !namesTypeField {
			if rec.Type == TypeNone {
				return false
			}
			if rec.Type != defaultType {
				return false
			}
		}
	}
	for _, sel := range selections {
		if !matchSelection(rec, sel) {
			return false
		}
	}
	return true
}
