package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvRefs replaces every ${VAR} in s with the value of VAR.
//
// Semantics:
//   - Only the braced form is expanded; a bare $VAR is left as is.
//   - A reference to an unset variable is an error naming every missing one.
//   - `$$` emits a literal `$`.
func expandEnvRefs(s string) (string, error) {
	const dollar = "\x00HEALTHMONITOR_DOLLAR\x00"
	s = strings.ReplaceAll(s, "$$", dollar)

	missing := make(map[string]struct{})
	s = envRefPattern.ReplaceAllStringFunc(s, func(ref string) string {
		key := envRefPattern.FindStringSubmatch(ref)[1]
		v, ok := os.LookupEnv(key)
		if !ok {
			missing[key] = struct{}{}
			return ref
		}
		return v
	})
	if len(missing) > 0 {
		keys := make([]string, 0, len(missing))
		for k := range missing {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(keys, ", "))
	}

	return strings.ReplaceAll(s, dollar, "$"), nil
}
