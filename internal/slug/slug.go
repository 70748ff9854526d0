// Package slug derives Redmine project identifiers from source keys.
// Redmine identifiers must be lowercase, start with a letter or digit, and
// contain only [a-z0-9-].
package slug

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	identifierPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
	maxIdentifierLen  = 100
)

// Identifier normalizes a source key into a valid Redmine project
// identifier.
func Identifier(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("identifier cannot be empty")
	}

	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")

	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	s = strings.Trim(result.String(), "-")

	if len(s) == 0 || !((s[0] >= 'a' && s[0] <= 'z') || (s[0] >= '0' && s[0] <= '9')) {
		return "", fmt.Errorf("identifier must start with an alphanumeric character")
	}
	if len(s) > maxIdentifierLen {
		return "", fmt.Errorf("identifier exceeds maximum length of %d bytes", maxIdentifierLen)
	}
	if !identifierPattern.MatchString(s) {
		return "", fmt.Errorf("invalid identifier: %s", s)
	}

	return s, nil
}
