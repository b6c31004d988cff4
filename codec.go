package htpasswd

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// maxLineSize bounds a single line when parsing.
const maxLineSize = 1 << 20

// Encode writes s to w in htpasswd format: one "username:hash" line per
// entry in insertion order, each terminated by a newline.
func Encode(w io.Writer, s *Store) error {
	bw := bufio.NewWriter(w)
	for user, h := range s.All() {
		bw.WriteString(user)
		bw.WriteByte(':')
		bw.WriteString(h.text)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// Marshal returns s rendered in htpasswd format.
func Marshal(s *Store) []byte {
	size := 0
	for user, h := range s.All() {
		size += len(user) + len(h.text) + 2
	}
	var buf bytes.Buffer
	buf.Grow(size)
	// Writes to a bytes.Buffer cannot fail.
	_ = Encode(&buf, s)
	return buf.Bytes()
}

// Parse reads htpasswd text from r.
//
// Blank lines and lines starting with '#' are skipped. Every other line must
// hold a username and hash separated by the first ':'; the hash text is kept
// verbatim. When a username appears more than once the last hash wins and the
// entry keeps the position of the first occurrence.
//
// On error no store is returned.
func Parse(r io.Reader) (*Store, error) {
	s := New()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		// Skip empty lines and comments.
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		user, text, found := strings.Cut(line, ":")
		if !found {
			return nil, &LineError{Line: lineNo, Reason: "missing ':' separator"}
		}
		if user == "" {
			return nil, &LineError{Line: lineNo, Reason: "empty username"}
		}
		if text == "" {
			return nil, &LineError{Line: lineNo, Reason: "empty hash"}
		}
		h, err := ParseHash(text)
		if err != nil {
			return nil, &LineError{Line: lineNo, Reason: err.Error()}
		}
		if err := s.SetHash(user, h); err != nil {
			return nil, &LineError{Line: lineNo, Reason: err.Error()}
		}
	}
	if err := scanner.Err(); err != nil {
		if err == bufio.ErrTooLong {
			return nil, &LineError{Line: lineNo + 1, Reason: "line too long"}
		}
		return nil, err
	}
	return s, nil
}

// Unmarshal parses htpasswd text held in data.
func Unmarshal(data []byte) (*Store, error) {
	return Parse(bytes.NewReader(data))
}
