package rediskey

import (
	"fmt"
	"regexp"
	"strings"
)

type GlobWildcard string

const (
	WildcardAnyChar   GlobWildcard = "?"  // Matches exactly one character.
	WildcardAnyString GlobWildcard = "*"  // Matches zero or more characters.
	Delimiter                      = ":"  // Standard Redis delimiter.
	keyMaxLength                   = 1024 // Practical limit (avoid large keys).
)

var (
	keyRegex      = regexp.MustCompile(`^[a-zA-Z0-9:_\-.@\*\?]+$`)
	fragmentRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-.@]+$`)
)

type InvalidKeyError string

func (e InvalidKeyError) Error() string { return "invalid redis key: " + string(e) }

// ValidateFragment checks that f can be used as a single key segment. Glob
// characters and the delimiter are rejected.
func ValidateFragment(f string) error {
	if f == "" {
		return InvalidKeyError("key fragment must not be empty")
	}
	if strings.Contains(f, Delimiter) {
		return InvalidKeyError(fmt.Sprintf("key fragment '%s' must not contain delimiter '%s'", f, Delimiter))
	}
	if !fragmentRegex.MatchString(f) {
		return InvalidKeyError(fmt.Sprintf("key fragment '%s' contains invalid characters", f))
	}
	return nil
}

// Validate validates a complete Redis key or match pattern.
func Validate(key string) error {
	if key == "" {
		return InvalidKeyError("key must not be empty")
	}
	if len(key) > keyMaxLength {
		return InvalidKeyError(fmt.Sprintf("key '%.32s...' exceeds %d characters", key, keyMaxLength))
	}
	if !keyRegex.MatchString(key) {
		return InvalidKeyError(fmt.Sprintf("key '%s' contains invalid characters", key))
	}
	if strings.HasPrefix(key, Delimiter) || strings.HasSuffix(key, Delimiter) {
		return InvalidKeyError(fmt.Sprintf("key '%s' must not start or end with '%s'", key, Delimiter))
	}
	return nil
}

// Join joins key segments with the delimiter, skipping empty segments.
func Join(segments ...string) string {
	var b strings.Builder
	for _, s := range segments {
		if s == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(Delimiter)
		}
		b.WriteString(s)
	}
	return b.String()
}

// Split splits a Redis key into its segments.
func Split(key string) []string {
	return strings.Split(key, Delimiter)
}

// Pattern returns a glob pattern matching keys below base.
//
// Example:
//
//	Pattern("ns:users", WildcardAnyString) // "ns:users:*"
func Pattern(base string, wildcard GlobWildcard) string {
	return Join(base, string(wildcard))
}
