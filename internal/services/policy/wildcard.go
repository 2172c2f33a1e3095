package policy

import (
	"fmt"
	"regexp"
	"strings"
)

// compileWildcard turns a dotted/starred pattern into an anchored regexp:
// '.' is literal, '*' matches any run of characters. Works for both IP
// patterns (192.*.168.*) and hostname patterns (server*.example.*).
func compileWildcard(pattern string) (*regexp.Regexp, error) {
	escaped := strings.ReplaceAll(pattern, ".", `\.`)
	escaped = strings.ReplaceAll(escaped, "*", ".*")

	re, err := regexp.Compile("^" + escaped + "$")
	if err != nil {
		return nil, fmt.Errorf("%w: invalid host pattern %q: %v", ErrMalformedPolicy, pattern, err)
	}
	return re, nil
}

// MatchWildcard reports whether candidate matches pattern as a full string.
// There are no partial matches. An uncompilable pattern is a configuration
// error surfaced to the caller, never swallowed.
func MatchWildcard(pattern, candidate string) (bool, error) {
	re, err := compileWildcard(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(candidate), nil
}
