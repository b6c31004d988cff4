package htbolt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/kardianos/htpasswd"
	"go.etcd.io/bbolt"
)

var (
	ErrInvalidRealm  = errors.New("htbolt: invalid realm")
	ErrRealmNotFound = errors.New("htbolt: realm not found")
)

var (
	bucketRealms  = []byte("realms")
	bucketEntries = []byte("entries")

	keyMeta = []byte("meta")
)

// DefaultTimeout is how long Open waits for the database file lock.
const DefaultTimeout = 1 * time.Second

// Config configures an Archive.
type Config struct {
	// Path is the database file. Its directory is created if missing.
	Path string

	// Timeout bounds the wait for the file lock held by another process.
	// If zero, DefaultTimeout is used.
	Timeout time.Duration
}

// record is one stored entry.
type record struct {
	User string `cbor:"1,keyasint"`
	Hash string `cbor:"2,keyasint"`
}

// realmMeta is stored next to the entries of each realm.
type realmMeta struct {
	Count     int       `cbor:"1,keyasint"`
	UpdatedAt time.Time `cbor:"2,keyasint"`
}

// RealmInfo describes a stored realm.
type RealmInfo struct {
	Name      string
	Count     int
	UpdatedAt time.Time
}

// Archive stores credential sets in a bbolt database.
type Archive struct {
	db *bbolt.DB
}

// Open opens or creates the archive at cfg.Path.
func Open(cfg Config) (*Archive, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("htbolt: path is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
		return nil, fmt.Errorf("htbolt: create directory: %w", err)
	}
	db, err := bbolt.Open(cfg.Path, 0600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("htbolt: open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRealms)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("htbolt: create buckets: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close releases the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Save replaces the realm with the entries of s, in order.
func (a *Archive) Save(realm string, s *htpasswd.Store) error {
	if err := validateRealm(realm); err != nil {
		return err
	}
	name := []byte(realm)

	err := a.db.Update(func(tx *bbolt.Tx) error {
		realms := tx.Bucket(bucketRealms)
		if realms.Bucket(name) != nil {
			if err := realms.DeleteBucket(name); err != nil {
				return err
			}
		}
		rb, err := realms.CreateBucket(name)
		if err != nil {
			return err
		}
		entries, err := rb.CreateBucket(bucketEntries)
		if err != nil {
			return err
		}

		count := 0
		for user, h := range s.All() {
			seq, err := entries.NextSequence()
			if err != nil {
				return err
			}
			data, err := cbor.Marshal(record{User: user, Hash: h.String()})
			if err != nil {
				return err
			}
			if err := entries.Put(seqKey(seq), data); err != nil {
				return err
			}
			count++
		}

		meta, err := cbor.Marshal(realmMeta{Count: count, UpdatedAt: timeNow()})
		if err != nil {
			return err
		}
		return rb.Put(keyMeta, meta)
	})
	if err != nil {
		return fmt.Errorf("htbolt: save realm %q: %w", realm, err)
	}
	return nil
}

// Load returns the entries of realm as a new store.
func (a *Archive) Load(realm string) (*htpasswd.Store, error) {
	if err := validateRealm(realm); err != nil {
		return nil, err
	}

	s := htpasswd.New()
	err := a.db.View(func(tx *bbolt.Tx) error {
		rb := tx.Bucket(bucketRealms).Bucket([]byte(realm))
		if rb == nil {
			return fmt.Errorf("%w: %q", ErrRealmNotFound, realm)
		}
		entries := rb.Bucket(bucketEntries)
		if entries == nil {
			return nil
		}
		// Keys are big-endian sequence numbers, so cursor order is insertion order.
		return entries.ForEach(func(k, v []byte) error {
			var rec record
			if err := cbor.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode entry %d: %w", binary.BigEndian.Uint64(k), err)
			}
			h, err := htpasswd.ParseHash(rec.Hash)
			if err != nil {
				return fmt.Errorf("entry %q: %w", rec.User, err)
			}
			return s.SetHash(rec.User, h)
		})
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Info returns the metadata of realm.
func (a *Archive) Info(realm string) (RealmInfo, error) {
	if err := validateRealm(realm); err != nil {
		return RealmInfo{}, err
	}

	info := RealmInfo{Name: realm}
	err := a.db.View(func(tx *bbolt.Tx) error {
		rb := tx.Bucket(bucketRealms).Bucket([]byte(realm))
		if rb == nil {
			return fmt.Errorf("%w: %q", ErrRealmNotFound, realm)
		}
		data := rb.Get(keyMeta)
		if data == nil {
			return nil
		}
		var meta realmMeta
		if err := cbor.Unmarshal(data, &meta); err != nil {
			return fmt.Errorf("decode realm metadata: %w", err)
		}
		info.Count = meta.Count
		info.UpdatedAt = meta.UpdatedAt
		return nil
	})
	return info, err
}

// Realms returns the stored realm names, sorted.
func (a *Archive) Realms() ([]string, error) {
	var names []string
	err := a.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRealms).ForEach(func(k, v []byte) error {
			// Nested buckets have a nil value.
			if v == nil {
				names = append(names, string(k))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes realm. Deleting an absent realm is not an error.
func (a *Archive) Delete(realm string) error {
	if err := validateRealm(realm); err != nil {
		return err
	}
	return a.db.Update(func(tx *bbolt.Tx) error {
		realms := tx.Bucket(bucketRealms)
		if realms.Bucket([]byte(realm)) == nil {
			return nil
		}
		return realms.DeleteBucket([]byte(realm))
	})
}

// Import reads the htpasswd file at path and saves it as realm.
func (a *Archive) Import(realm, path string) error {
	s, err := htpasswd.ReadFile(path)
	if err != nil {
		return err
	}
	return a.Save(realm, s)
}

// Export writes realm to path as an htpasswd file, replacing it atomically.
func (a *Archive) Export(realm, path string) error {
	s, err := a.Load(realm)
	if err != nil {
		return err
	}
	return htpasswd.WriteFile(path, s)
}

func seqKey(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}
