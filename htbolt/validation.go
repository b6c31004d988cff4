package htbolt

import (
	"fmt"
	"regexp"
)

// validRealmRegex matches valid realm names.
// Must start with an alphanumeric character and be 1-64 characters long.
var validRealmRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,63}$`)

func validateRealm(realm string) error {
	if realm == "" {
		return fmt.Errorf("%w: realm cannot be empty", ErrInvalidRealm)
	}
	if !validRealmRegex.MatchString(realm) {
		return fmt.Errorf("%w %q: must contain only alphanumeric characters, dots, hyphens, and underscores, start with alphanumeric, and be 1-64 characters", ErrInvalidRealm, realm)
	}
	return nil
}
