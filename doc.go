// Package htpasswd reads and writes htpasswd credential files.
//
// A Store holds username to hash entries in insertion order. Set hashes
// passwords with bcrypt; hashes read from existing files in other schemes
// (APR1, {SHA}, crypt and so on) are kept verbatim so rewriting a file never
// breaks entries this package did not create.
//
// # File Format
//
// Each entry is a single line:
//
//	username:hash
//
// Lines starting with '#' and blank lines are ignored when reading and are
// not written. Usernames must not be empty, contain ':' or line breaks, or
// start with '#'.
//
// # Persistence
//
// WriteFile replaces the target through a temporary file in the same
// directory followed by a rename, so a server reloading the file never reads
// a partial write. ReadFile loads a file back into a Store.
//
// A Store is owned by one caller at a time and is not safe for concurrent use.
package htpasswd
