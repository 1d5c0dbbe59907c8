package krypto

import (
	"crypto/subtle"
	"database/sql/driver"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrInvalidInput indicates input that can't be hashed or parsed.
var ErrInvalidInput = errors.New("invalid input")

const (
	argon2Variant = "argon2id"

	saltLen = 16
	hashLen = 32

	// Settings per the OWASP recommendation of March 2024:
	// 46 MiB memory, 1 iteration, 1 degree of parallelism.
	argonMemoryKiB   = 47104
	argonIterations  = 1
	argonParallelism = 1
)

// Argon2Hash is the parsed form of an argon2id hash in PHC string format:
//
//	$argon2id$v=19$m=47104,t=1,p=1$<base64 salt>$<base64 hash>
//
// The settings are stored alongside the hash, so hashes created with
// older settings keep matching after the defaults change.
type Argon2Hash struct {
	Variant     string
	Version     int
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	Salt        []byte
	Hash        []byte
}

// HashArgon2 hashes data using the argon2id algorithm with a fresh
// random salt. Hashing the same data twice yields different hashes.
func HashArgon2(data []byte) (Argon2Hash, error) {
	if len(data) == 0 {
		return Argon2Hash{}, fmt.Errorf("no data to hash: %w", ErrInvalidInput)
	}

	salt, err := randBytes(saltLen)
	if err != nil {
		return Argon2Hash{}, err
	}

	return hashWithSalt(data, salt), nil
}

// HashArgon2WithKey hashes data using the provided key as salt. As
// opposed to HashArgon2 the result is deterministic, making it suitable
// for blind indexes. Anyone without the key can't relate the hash back
// to the original data.
func HashArgon2WithKey(data []byte, key Key) (Argon2Hash, error) {
	if len(data) == 0 {
		return Argon2Hash{}, fmt.Errorf("no data to hash: %w", ErrInvalidInput)
	}

	return hashWithSalt(data, key.value), nil
}

func hashWithSalt(data, salt []byte) Argon2Hash {
	return Argon2Hash{
		Variant:     argon2Variant,
		Version:     argon2.Version,
		MemoryKiB:   argonMemoryKiB,
		Iterations:  argonIterations,
		Parallelism: argonParallelism,
		Salt:        salt,
		Hash:        argon2.IDKey(data, salt, argonIterations, argonMemoryKiB, argonParallelism, hashLen),
	}
}

// ParseArgon2Hash parses a hash in the PHC string format described on Argon2Hash.
func ParseArgon2Hash(raw string) (Argon2Hash, error) {
	parts := strings.Split(raw, "$")
	if len(parts) != 6 || parts[0] != "" {
		return Argon2Hash{}, fmt.Errorf("malformed hash: %w", ErrInvalidInput)
	}

	if parts[1] != argon2Variant {
		return Argon2Hash{}, fmt.Errorf("unsupported variant %q: %w", parts[1], ErrInvalidInput)
	}

	h := Argon2Hash{
		Variant: parts[1],
	}

	version, err := numericParam(parts[2], "v", 32)
	if err != nil {
		return Argon2Hash{}, err
	}

	h.Version = int(version)
	if h.Version != argon2.Version {
		return Argon2Hash{}, fmt.Errorf("unsupported version %d: %w", h.Version, ErrInvalidInput)
	}

	settings := strings.Split(parts[3], ",")
	if len(settings) != 3 {
		return Argon2Hash{}, fmt.Errorf("malformed settings: %w", ErrInvalidInput)
	}

	memory, err := numericParam(settings[0], "m", 32)
	if err != nil {
		return Argon2Hash{}, err
	}
	h.MemoryKiB = uint32(memory)

	// argon2.IDKey panics on zero iterations or zero parallelism, such
	// hashes must never make it past parsing.
	iterations, err := numericParam(settings[1], "t", 32)
	if err != nil {
		return Argon2Hash{}, err
	}
	if iterations < 1 {
		return Argon2Hash{}, fmt.Errorf("iterations below 1: %w", ErrInvalidInput)
	}
	h.Iterations = uint32(iterations)

	parallelism, err := numericParam(settings[2], "p", 8)
	if err != nil {
		return Argon2Hash{}, err
	}
	if parallelism < 1 {
		return Argon2Hash{}, fmt.Errorf("parallelism below 1: %w", ErrInvalidInput)
	}
	h.Parallelism = uint8(parallelism)

	h.Salt, err = base64.RawStdEncoding.Strict().DecodeString(parts[4])
	if err != nil {
		return Argon2Hash{}, fmt.Errorf("malformed salt: %w", ErrInvalidInput)
	}

	h.Hash, err = base64.RawStdEncoding.Strict().DecodeString(parts[5])
	if err != nil {
		return Argon2Hash{}, fmt.Errorf("malformed hash data: %w", ErrInvalidInput)
	}

	return h, nil
}

func numericParam(raw, name string, bitSize int) (uint64, error) {
	val, ok := strings.CutPrefix(raw, name+"=")
	if !ok {
		return 0, fmt.Errorf("missing parameter %q: %w", name, ErrInvalidInput)
	}

	num, err := strconv.ParseUint(val, 10, bitSize)
	if err != nil {
		return 0, fmt.Errorf("non-numeric parameter %q: %w", name, ErrInvalidInput)
	}

	return num, nil
}

// MatchBytes checks if data hashes to the same hash using the stored
// settings and salt. The comparison is done in constant time. Malformed
// hashes never match, MatchBytes does not error on them.
func (h Argon2Hash) MatchBytes(data []byte) bool {
	if h.Variant != argon2Variant || len(h.Salt) == 0 || len(h.Hash) == 0 {
		return false
	}

	// Guard against hand-built hashes with settings that would make
	// argon2.IDKey panic.
	if h.Iterations < 1 || h.Parallelism < 1 {
		return false
	}

	other := argon2.IDKey(data, h.Salt, h.Iterations, h.MemoryKiB, h.Parallelism, uint32(len(h.Hash)))

	return subtle.ConstantTimeCompare(h.Hash, other) == 1
}

// String returns the hash in PHC string format.
func (h Argon2Hash) String() string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		h.Variant,
		h.Version,
		h.MemoryKiB,
		h.Iterations,
		h.Parallelism,
		base64.RawStdEncoding.EncodeToString(h.Salt),
		base64.RawStdEncoding.EncodeToString(h.Hash),
	)
}

func (h Argon2Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Argon2Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseArgon2Hash(string(text))
	if err != nil {
		return err
	}

	*h = parsed

	return nil
}

// Scan implements sql.Scanner so hashes can be read from database columns.
func (h *Argon2Hash) Scan(src any) error {
	s, ok := src.(string)
	if !ok {
		return fmt.Errorf("can't scan %T into an Argon2Hash", src)
	}

	return h.UnmarshalText([]byte(s))
}

// Value implements driver.Valuer so hashes can be written to database columns.
func (h Argon2Hash) Value() (driver.Value, error) {
	return h.String(), nil
}
