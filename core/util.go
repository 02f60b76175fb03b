package core

import "strings"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanStrings cleans every element of ss and drops the empty ones.
func CleanStrings(ss []string, lower ...bool) []string {
	cleaned := make([]string, 0, len(ss))
	for _, s := range ss {
		if s = CleanString(s, lower...); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned
}
