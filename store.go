package htpasswd

import (
	"fmt"
	"iter"
	"slices"
)

// Store is an ordered set of htpasswd entries keyed by username.
//
// Entries keep the position of their first insertion, so rendering an
// unchanged store always produces the same bytes. A Store is not safe for
// concurrent use; callers sharing one must serialize access.
//
// The zero value is an empty store using DefaultHashConfig.
type Store struct {
	cfg     HashConfig
	users   []string
	entries map[string]Hash
}

// New returns an empty store that hashes with DefaultHashConfig.
func New() *Store {
	return &Store{
		cfg:     DefaultHashConfig,
		entries: make(map[string]Hash),
	}
}

// NewWithConfig returns an empty store that hashes with cfg.
func NewWithConfig(cfg HashConfig) (*Store, error) {
	s := New()
	if err := s.SetHashConfig(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// HashConfig returns the configuration used by Set.
func (s *Store) HashConfig() HashConfig {
	cfg, _ := s.cfg.normalize()
	return cfg
}

// SetHashConfig changes the configuration used by subsequent calls to Set.
// Existing entries are not rehashed.
func (s *Store) SetHashConfig(cfg HashConfig) error {
	cfg, err := cfg.normalize()
	if err != nil {
		return err
	}
	s.cfg = cfg
	return nil
}

// Set hashes password with bcrypt and stores it for username, replacing any
// previous hash. A new username is appended; an existing one keeps its position.
func (s *Store) Set(username, password string) error {
	return s.SetWith(s.cfg, username, password)
}

// SetWith is like Set but hashes with cfg instead of the store configuration.
func (s *Store) SetWith(cfg HashConfig, username, password string) error {
	if err := validateUsername(username); err != nil {
		return err
	}
	cfg, err := cfg.normalize()
	if err != nil {
		return err
	}
	h, err := hashPassword(cfg, password)
	if err != nil {
		return &HashError{Username: username, Err: err}
	}
	s.put(username, h)
	return nil
}

// SetHash stores an already hashed value for username without rehashing,
// following the same ordering rules as Set.
func (s *Store) SetHash(username string, h Hash) error {
	if err := validateUsername(username); err != nil {
		return err
	}
	if err := validateHashText(h.text); err != nil {
		return err
	}
	s.put(username, h)
	return nil
}

func (s *Store) put(username string, h Hash) {
	if s.entries == nil {
		s.entries = make(map[string]Hash)
	}
	if _, ok := s.entries[username]; !ok {
		s.users = append(s.users, username)
	}
	s.entries[username] = h
}

// Remove deletes username. Removing an absent user is not an error.
func (s *Store) Remove(username string) {
	if _, ok := s.entries[username]; !ok {
		return
	}
	delete(s.entries, username)
	if i := slices.Index(s.users, username); i >= 0 {
		s.users = slices.Delete(s.users, i, i+1)
	}
}

// Get returns the hash stored for username.
func (s *Store) Get(username string) (Hash, bool) {
	if s == nil {
		return Hash{}, false
	}
	h, ok := s.entries[username]
	return h, ok
}

// Verify checks password against the hash stored for username.
func (s *Store) Verify(username, password string) error {
	h, ok := s.Get(username)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoUser, username)
	}
	return h.Verify(password)
}

// Len returns the number of entries.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.users)
}

// Users returns the usernames in insertion order.
func (s *Store) Users() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.users)
}

// All yields entries in insertion order. Each traversal works on a snapshot
// taken when it starts, so changes made to the store while iterating are
// not observed.
func (s *Store) All() iter.Seq2[string, Hash] {
	return func(yield func(string, Hash) bool) {
		if s == nil {
			return
		}
		users := slices.Clone(s.users)
		hashes := make([]Hash, len(users))
		for i, u := range users {
			hashes[i] = s.entries[u]
		}
		for i, u := range users {
			if !yield(u, hashes[i]) {
				return
			}
		}
	}
}

// Clone returns an independent copy of the store.
func (s *Store) Clone() *Store {
	c := New()
	if s == nil {
		return c
	}
	c.cfg = s.cfg
	c.users = slices.Clone(s.users)
	for u, h := range s.entries {
		c.entries[u] = h
	}
	return c
}
