package htpasswd

import (
	"fmt"
	"strings"
)

// validateUsername reports whether username can be stored and read back
// unchanged. The colon and line breaks are field and record delimiters, and
// a leading '#' would turn the rendered line into a comment.
func validateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: username cannot be empty", ErrInvalidUsername)
	}
	if strings.ContainsAny(username, ":\n\r") {
		return fmt.Errorf("%w %q: must not contain ':' or line breaks", ErrInvalidUsername, username)
	}
	if username[0] == '#' {
		return fmt.Errorf("%w %q: must not start with '#'", ErrInvalidUsername, username)
	}
	return nil
}

// validateHashText reports whether text can be stored on a single line.
func validateHashText(text string) error {
	if text == "" {
		return fmt.Errorf("%w: hash cannot be empty", ErrInvalidHash)
	}
	if strings.ContainsAny(text, "\n\r") {
		return fmt.Errorf("%w: must not contain line breaks", ErrInvalidHash)
	}
	return nil
}
