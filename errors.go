package htpasswd

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidUsername   = errors.New("htpasswd: invalid username")
	ErrInvalidHash       = errors.New("htpasswd: invalid hash text")
	ErrInvalidCost       = errors.New("htpasswd: invalid bcrypt cost")
	ErrInvalidVariant    = errors.New("htpasswd: invalid bcrypt variant")
	ErrHashing           = errors.New("htpasswd: hashing failed")
	ErrMalformedLine     = errors.New("htpasswd: malformed line")
	ErrNotFound          = errors.New("htpasswd: file not found")
	ErrUnsupportedScheme = errors.New("htpasswd: hash scheme cannot be verified")
	ErrMismatch          = errors.New("htpasswd: password does not match")
	ErrNoUser            = errors.New("htpasswd: user not found")
)

// HashError reports a failure of the bcrypt primitive, such as a password
// longer than 72 bytes.
type HashError struct {
	Username string
	Err      error
}

func (e *HashError) Error() string {
	return fmt.Sprintf("htpasswd: hash password for %q: %v", e.Username, e.Err)
}

func (e *HashError) Unwrap() error { return e.Err }

func (e *HashError) Is(target error) bool { return target == ErrHashing }

// LineError reports a structural problem in htpasswd text.
// Line is 1-based and counts comment and blank lines.
type LineError struct {
	Line   int
	Reason string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("htpasswd: malformed line %d: %s", e.Line, e.Reason)
}

func (e *LineError) Is(target error) bool { return target == ErrMalformedLine }

// WriteError reports a failed WriteFile. Unless Renamed is set the file at
// Path was not modified.
type WriteError struct {
	Path    string
	Renamed bool
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("htpasswd: write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
