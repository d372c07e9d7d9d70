// Package password provides Argon2id hashing with PHC-formatted output.
// Hashes are self-describing, so cost parameters can be raised without
// invalidating stored credentials.
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
	algorithmID = "argon2id"

	minMemoryKB    uint32 = 8 * 1024
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	minPasswordLen        = 8
)

// Config holds Argon2id cost parameters.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Hasher hashes and verifies passwords with a fixed cost profile.
type Hasher struct {
	config Config
}

// NewHasher validates cfg and returns a Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, errors.New("password: memory must be >= 8192 KB")
	case cfg.Time < 1:
		return nil, errors.New("password: time cost must be >= 1")
	case cfg.Parallelism < 1:
		return nil, errors.New("password: parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return nil, errors.New("password: salt length must be >= 16")
	case cfg.KeyLength < minKeyLength:
		return nil, errors.New("password: key length must be >= 16")
	}
	return &Hasher{config: cfg}, nil
}

// Hash derives a PHC-encoded Argon2id hash from the plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if len(plaintext) < minPasswordLen {
		return "", errors.New("password: must be at least 8 bytes")
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey(
		[]byte(plaintext),
		salt,
		h.config.Time,
		h.config.Memory,
		h.config.Parallelism,
		h.config.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.config.Memory,
		h.config.Time,
		h.config.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plaintext matches the stored PHC hash. The
// comparison is constant-time over the derived keys.
func (h *Hasher) Verify(plaintext, encoded string) (bool, error) {
	memory, timeCost, parallelism, salt, want, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	got := argon2.IDKey(
		[]byte(plaintext),
		salt,
		timeCost,
		memory,
		parallelism,
		uint32(len(want)),
	)

	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func parsePHC(encoded string) (memory, timeCost uint32, parallelism uint8, salt, key []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return 0, 0, 0, nil, nil, errors.New("password: invalid PHC hash")
	}

	version, convErr := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if !strings.HasPrefix(parts[2], "v=") || convErr != nil || version != argon2.Version {
		return 0, 0, 0, nil, nil, errors.New("password: unsupported argon2 version")
	}

	for _, pair := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return 0, 0, 0, nil, nil, errors.New("password: invalid PHC parameters")
		}
		switch kv[0] {
		case "m":
			v, e := strconv.ParseUint(kv[1], 10, 32)
			if e != nil || v == 0 {
				return 0, 0, 0, nil, nil, errors.New("password: invalid memory parameter")
			}
			memory = uint32(v)
		case "t":
			v, e := strconv.ParseUint(kv[1], 10, 32)
			if e != nil || v == 0 {
				return 0, 0, 0, nil, nil, errors.New("password: invalid time parameter")
			}
			timeCost = uint32(v)
		case "p":
			v, e := strconv.ParseUint(kv[1], 10, 8)
			if e != nil || v == 0 {
				return 0, 0, 0, nil, nil, errors.New("password: invalid parallelism parameter")
			}
			parallelism = uint8(v)
		default:
			return 0, 0, 0, nil, nil, errors.New("password: unknown PHC parameter")
		}
	}
	if memory == 0 || timeCost == 0 || parallelism == 0 {
		return 0, 0, 0, nil, nil, errors.New("password: missing PHC parameters")
	}

	salt, err = base64.StdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < int(minSaltLength) {
		return 0, 0, 0, nil, nil, errors.New("password: invalid salt")
	}
	key, err = base64.StdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return 0, 0, 0, nil, nil, errors.New("password: invalid key")
	}

	return memory, timeCost, parallelism, salt, key, nil
}
