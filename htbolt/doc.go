// Package htbolt archives named htpasswd credential sets in a bbolt database.
//
// Each set (a realm) keeps its entries in insertion order, so a realm that
// is loaded and exported renders the same htpasswd file it was saved from.
// Entries and realm metadata are encoded with CBOR.
//
// An Archive is safe for concurrent use; bbolt serializes writers.
package htbolt
