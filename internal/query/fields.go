package query

import (
	"regexp"
	"strings"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// splitFields splits a comma-separated field list, ignoring commas inside
// parentheses and quoted strings. Entries are trimmed; empty ones dropped.
func splitFields(list string) []string {
	var out []string
	depth := 0
	var quote rune
	start := 0
	for i, r := range list {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case r == ',' && depth == 0:
			out = appendField(out, list[start:i])
			start = i + 1
		}
	}
	return appendField(out, list[start:])
}

func appendField(out []string, f string) []string {
	if f = strings.TrimSpace(f); f != "" {
		out = append(out, f)
	}
	return out
}

// expression returns the part of a field before " as ", lowercased.
func expression(field string) string {
	lower := strings.ToLower(field)
	if i := strings.Index(lower, " as "); i >= 0 {
		lower = lower[:i]
	}
	return strings.TrimSpace(lower)
}

// qualify prefixes a bare column with the table name. Qualified columns
// and computed expressions are returned unchanged.
func qualify(table, field string) string {
	expr := field
	if i := strings.Index(strings.ToLower(field), " as "); i >= 0 {
		expr = field[:i]
	}
	if identifier.MatchString(strings.TrimSpace(expr)) {
		return table + "." + field
	}
	return field
}

// unique removes duplicates, keeping first-seen order.
func unique(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
