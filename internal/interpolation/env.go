// Package interpolation expands ${VAR} and ${VAR:default} references in
// configuration values.
package interpolation

import (
	"errors"
	"fmt"
	"os"
	"regexp"
)

// ${NAME}, or ${NAME:default}; group 2 records whether the colon was present
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:)?([^}]*)\}`)

// ErrUndefinedVar is returned for a ${NAME} reference without a default whose
// variable is not set.
var ErrUndefinedVar = errors.New("environment variable not defined")

// ExpandEnvVars replaces every ${NAME} and ${NAME:default} in input. A set
// variable always wins, even when empty. ${NAME:} expands to the empty
// string when NAME is unset. Unresolvable references are left in place and
// reported together in the returned error.
func ExpandEnvVars(input string) (string, error) {
	if input == "" {
		return "", nil
	}

	var missing []error
	out := envRef.ReplaceAllStringFunc(input, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		name, hasDefault, def := m[1], m[2] == ":", m[3]

		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		if hasDefault {
			return def
		}
		missing = append(missing, fmt.Errorf("%w: %s", ErrUndefinedVar, name))
		return ref
	})
	return out, errors.Join(missing...)
}
