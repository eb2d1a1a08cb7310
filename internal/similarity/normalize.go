package similarity

import (
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeName lower-cases and trims a name, replaces every run of
// non-alphanumeric characters with a single underscore and strips leading
// and trailing underscores. It is idempotent.
func NormalizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = nonAlphanumeric.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// Tokens splits a normalized name into its underscore separated parts
func Tokens(name string) []string {
	norm := NormalizeName(name)
	if norm == "" {
		return nil
	}
	return strings.Split(norm, "_")
}

// HasToken reports whether the normalized name contains token as a whole part
func HasToken(name, token string) bool {
	for _, t := range Tokens(name) {
		if t == token {
			return true
		}
	}
	return false
}
