// Package generator produces random passwords from a configurable
// character-set policy using crypto/rand.
package generator

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/vaultguard/vaultguard/internal/errors"
)

const (
	lowerCase = "abcdefghijklmnopqrstuvwxyz"
	upperCase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	numbers   = "0123456789"
	symbols   = "!@#$%^&*()_+-=[]{}|;:,.<>?"

	// Characters easily confused with each other on screen.
	ambiguous = "il1Lo0O"
)

// DefaultLength is the default password length.
const DefaultLength = 16

// Options selects the character classes for generation.
type Options struct {
	IncludeUppercase bool `json:"include_uppercase"`
	IncludeLowercase bool `json:"include_lowercase"`
	IncludeNumbers   bool `json:"include_numbers"`
	IncludeSymbols   bool `json:"include_symbols"`
	ExcludeAmbiguous bool `json:"exclude_ambiguous"`
}

// DefaultOptions enables every class and keeps ambiguous characters.
func DefaultOptions() Options {
	return Options{
		IncludeUppercase: true,
		IncludeLowercase: true,
		IncludeNumbers:   true,
		IncludeSymbols:   true,
		ExcludeAmbiguous: false,
	}
}

// Generate produces a password of exactly length characters sampled
// uniformly from the enabled classes. After sampling, each enabled class
// absent from the result is repaired by overwriting one random position
// with a random member of that class. Repairs pick positions independently
// and may collide; on short lengths the per-class guarantee is statistical,
// not hard.
func Generate(length int, opts Options) (string, error) {
	if length <= 0 {
		return "", &errors.ErrInvalidConfiguration{Reason: "length must be positive"}
	}

	classes := enabledClasses(opts)
	pool := strings.Join(classes, "")
	if opts.ExcludeAmbiguous {
		pool = stripAmbiguous(pool)
		for i, class := range classes {
			classes[i] = stripAmbiguous(class)
		}
	}
	if pool == "" {
		return "", &errors.ErrInvalidConfiguration{Reason: "no character classes enabled"}
	}

	out := make([]byte, length)
	for i := range out {
		idx, err := randomIndex(len(pool))
		if err != nil {
			return "", err
		}
		out[i] = pool[idx]
	}

	for _, class := range classes {
		if class == "" || strings.ContainsAny(string(out), class) {
			continue
		}
		pos, err := randomIndex(length)
		if err != nil {
			return "", err
		}
		idx, err := randomIndex(len(class))
		if err != nil {
			return "", err
		}
		out[pos] = class[idx]
	}

	return string(out), nil
}

func enabledClasses(opts Options) []string {
	var classes []string
	if opts.IncludeLowercase {
		classes = append(classes, lowerCase)
	}
	if opts.IncludeUppercase {
		classes = append(classes, upperCase)
	}
	if opts.IncludeNumbers {
		classes = append(classes, numbers)
	}
	if opts.IncludeSymbols {
		classes = append(classes, symbols)
	}
	return classes
}

func stripAmbiguous(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(ambiguous, r) {
			return -1
		}
		return r
	}, s)
}

func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to read random source: %w", err)
	}
	return int(v.Int64()), nil
}
