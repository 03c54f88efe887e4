package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithm = "argon2id"

	// MinLength is the minimum accepted password length in bytes.
	MinLength = 10

	minMemoryKiB uint32 = 8 * 1024
	minPasses    uint32 = 1
	minLanes     uint8  = 1
	minSaltBytes uint32 = 16
	minKeyBytes  uint32 = 16
)

var (
	// ErrTooShort is returned by Hash for passwords shorter than MinLength.
	ErrTooShort = fmt.Errorf("password must be at least %d bytes", MinLength)
	// ErrMalformedHash is returned when a stored hash cannot be parsed.
	ErrMalformedHash = errors.New("malformed password hash")
)

// Params are the Argon2id cost parameters.
type Params struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams follow the OWASP baseline for Argon2id.
func DefaultParams() Params {
	return Params{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Validate rejects parameters below the supported floor.
func (p Params) Validate() error {
	switch {
	case p.Memory < minMemoryKiB:
		return fmt.Errorf("password memory must be >= %d KiB", minMemoryKiB)
	case p.Time < minPasses:
		return errors.New("password time must be >= 1")
	case p.Parallelism < minLanes:
		return errors.New("password parallelism must be >= 1")
	case p.SaltLength < minSaltBytes:
		return fmt.Errorf("password salt length must be >= %d", minSaltBytes)
	case p.KeyLength < minKeyBytes:
		return fmt.Errorf("password key length must be >= %d", minKeyBytes)
	}
	return nil
}

// Hasher hashes and verifies passwords. It is safe for concurrent use.
type Hasher struct {
	params Params
}

// NewHasher validates params and returns a Hasher.
func NewHasher(params Params) (*Hasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Hasher{params: params}, nil
}

// Hash derives a PHC-encoded hash with a fresh random salt. Password bytes are
// used as given, without Unicode normalization.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < MinLength {
		return "", ErrTooShort
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithm,
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded. The comparison is constant
// time; a parse failure returns ErrMalformedHash.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	stored, err := decode(encoded)
	if err != nil {
		return false, err
	}

	key := argon2.IDKey([]byte(password), stored.salt, stored.params.Time, stored.params.Memory, stored.params.Parallelism, stored.params.KeyLength)
	return subtle.ConstantTimeCompare(key, stored.key) == 1, nil
}

// NeedsRehash reports whether encoded was produced with weaker or different
// parameters than the hasher's.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	stored, err := decode(encoded)
	if err != nil {
		return false, err
	}
	p := stored.params
	return h.params.Memory > p.Memory ||
		h.params.Time > p.Time ||
		h.params.Parallelism > p.Parallelism ||
		h.params.KeyLength != p.KeyLength, nil
}

type decoded struct {
	params Params
	salt   []byte
	key    []byte
}

func decode(encoded string) (*decoded, error) {
	// "", algorithm, version, params, salt, key
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithm {
		return nil, ErrMalformedHash
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") || version != argon2.Version {
		return nil, ErrMalformedHash
	}

	params, err := decodeParams(parts[3])
	if err != nil {
		return nil, err
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || uint32(len(salt)) < minSaltBytes {
		return nil, ErrMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return nil, ErrMalformedHash
	}

	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(key))
	return &decoded{params: params, salt: salt, key: key}, nil
}

func decodeParams(s string) (Params, error) {
	var p Params
	seen := 0
	for _, field := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(field, "=")
		if !ok {
			return p, ErrMalformedHash
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return p, ErrMalformedHash
		}
		switch name {
		case "m":
			if uint32(n) < minMemoryKiB {
				return p, ErrMalformedHash
			}
			p.Memory = uint32(n)
		case "t":
			if uint32(n) < minPasses {
				return p, ErrMalformedHash
			}
			p.Time = uint32(n)
		case "p":
			if n < uint64(minLanes) || n > 255 {
				return p, ErrMalformedHash
			}
			p.Parallelism = uint8(n)
		default:
			return p, ErrMalformedHash
		}
		seen++
	}
	if seen != 3 {
		return p, ErrMalformedHash
	}
	return p, nil
}
