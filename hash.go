package htpasswd

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt cost bounds. DefaultCost is used when HashConfig.Cost is zero.
const (
	MinCost     = bcrypt.MinCost
	MaxCost     = bcrypt.MaxCost
	DefaultCost = bcrypt.DefaultCost
)

// Scheme identifies the hash format of a stored entry.
// Only SchemeBcrypt is ever produced; the rest are recognized by prefix
// when reading existing files and are kept verbatim.
type Scheme uint8

const (
	SchemeUnknown Scheme = iota
	SchemeBcrypt
	SchemeAPR1
	SchemeSHA1
	SchemeMD5Crypt
	SchemeSHA256Crypt
	SchemeSHA512Crypt
	SchemeCrypt
)

func (s Scheme) String() string {
	switch s {
	case SchemeBcrypt:
		return "bcrypt"
	case SchemeAPR1:
		return "apr1"
	case SchemeSHA1:
		return "sha1"
	case SchemeMD5Crypt:
		return "md5-crypt"
	case SchemeSHA256Crypt:
		return "sha256-crypt"
	case SchemeSHA512Crypt:
		return "sha512-crypt"
	case SchemeCrypt:
		return "crypt"
	default:
		return "unknown"
	}
}

// schemePrefixes is checked in order; the first match wins.
var schemePrefixes = []struct {
	prefix string
	scheme Scheme
}{
	{"$2a$", SchemeBcrypt},
	{"$2b$", SchemeBcrypt},
	{"$2y$", SchemeBcrypt},
	{"$apr1$", SchemeAPR1},
	{"{SHA}", SchemeSHA1},
	{"$1$", SchemeMD5Crypt},
	{"$5$", SchemeSHA256Crypt},
	{"$6$", SchemeSHA512Crypt},
}

// Hash is a stored password hash: either a bcrypt hash or a legacy hash
// carried over from an existing file. The zero value is not a valid Hash.
type Hash struct {
	scheme Scheme
	text   string
}

// ParseHash classifies text by its prefix. It never validates the hash
// cryptographically.
func ParseHash(text string) (Hash, error) {
	if err := validateHashText(text); err != nil {
		return Hash{}, err
	}
	return Hash{scheme: classify(text), text: text}, nil
}

func classify(text string) Scheme {
	for _, p := range schemePrefixes {
		if strings.HasPrefix(text, p.prefix) {
			return p.scheme
		}
	}
	if isDESCrypt(text) {
		return SchemeCrypt
	}
	return SchemeUnknown
}

// isDESCrypt matches traditional crypt(3) output: 2 salt characters and 11
// hash characters from the "./0-9A-Za-z" alphabet.
func isDESCrypt(text string) bool {
	if len(text) != 13 {
		return false
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '.' || c == '/':
		case c >= '0' && c <= '9':
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		default:
			return false
		}
	}
	return true
}

func (h Hash) Scheme() Scheme { return h.scheme }

// String returns the hash text exactly as it appears in the file.
func (h Hash) String() string { return h.text }

func (h Hash) IsBcrypt() bool { return h.scheme == SchemeBcrypt }

func (h Hash) IsLegacy() bool { return h.text != "" && h.scheme != SchemeBcrypt }

// Prefix returns the literal scheme prefix of the hash text, such as "$2y$",
// "$apr1$" or "{SHA}". Crypt and unrecognized hashes have no prefix.
func (h Hash) Prefix() string {
	for _, p := range schemePrefixes {
		if strings.HasPrefix(h.text, p.prefix) {
			return p.prefix
		}
	}
	return ""
}

// Cost returns the bcrypt cost embedded in the hash.
func (h Hash) Cost() (int, error) {
	if !h.IsBcrypt() {
		return 0, fmt.Errorf("%w: %s has no bcrypt cost", ErrUnsupportedScheme, h.scheme)
	}
	return bcrypt.Cost([]byte(h.text))
}

// Verify checks password against the hash. Bcrypt and {SHA} hashes can be
// verified; other legacy schemes return ErrUnsupportedScheme.
func (h Hash) Verify(password string) error {
	switch h.scheme {
	case SchemeBcrypt:
		err := bcrypt.CompareHashAndPassword([]byte(h.text), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatch
		}
		return err
	case SchemeSHA1:
		sum := sha1.Sum([]byte(password))
		want := "{SHA}" + base64.StdEncoding.EncodeToString(sum[:])
		if subtle.ConstantTimeCompare([]byte(want), []byte(h.text)) != 1 {
			return ErrMismatch
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedScheme, h.scheme)
	}
}

// Variant is the minor version letter written in the bcrypt prefix.
// All variants produce the same digest; they differ only in the label.
type Variant string

const (
	Variant2A Variant = "2a"
	Variant2B Variant = "2b"
	// Variant2Y matches the output of Apache "htpasswd -B".
	Variant2Y Variant = "2y"
)

// HashConfig controls how Set hashes passwords. Zero fields select
// DefaultCost and Variant2B.
type HashConfig struct {
	// Cost is the bcrypt work factor, MinCost through MaxCost.
	Cost int

	// Variant is the bcrypt prefix to write.
	Variant Variant
}

// DefaultHashConfig is used by New and by the parser.
var DefaultHashConfig = HashConfig{Cost: DefaultCost, Variant: Variant2B}

// normalize fills defaults and validates cfg.
func (cfg HashConfig) normalize() (HashConfig, error) {
	if cfg.Cost == 0 {
		cfg.Cost = DefaultCost
	}
	if cfg.Variant == "" {
		cfg.Variant = Variant2B
	}
	if cfg.Cost < MinCost || cfg.Cost > MaxCost {
		return cfg, fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidCost, cfg.Cost, MinCost, MaxCost)
	}
	switch cfg.Variant {
	case Variant2A, Variant2B, Variant2Y:
	default:
		return cfg, fmt.Errorf("%w: %q", ErrInvalidVariant, cfg.Variant)
	}
	return cfg, nil
}

// hashPassword creates a bcrypt hash of the password using cfg, which must
// already be normalized.
func hashPassword(cfg HashConfig, password string) (Hash, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), cfg.Cost)
	if err != nil {
		return Hash{}, err
	}
	// x/crypto always writes "$2a$".
	copy(b[1:3], string(cfg.Variant))
	return Hash{scheme: SchemeBcrypt, text: string(b)}, nil
}
