// Package slug produces unique URL-safe identifiers from human-readable text.
package slug

import (
	"context"
	"fmt"
	"strings"

	"realblog/internal/models"

	"github.com/google/uuid"
	gosimple "github.com/gosimple/slug"
)

const (
	// MaxLength bounds a base slug in runes, leaving room for a suffix.
	MaxLength = 200
	// DefaultMaxAttempts bounds the collision retries of a Generator.
	DefaultMaxAttempts = 8
	suffixLength       = 6
)

// ExistsFunc reports whether a slug is already taken within one entity's collection.
type ExistsFunc func(ctx context.Context, slug string) (bool, error)

// Make transliterates source to lowercase ASCII words joined by hyphens.
// The result may be empty when source holds no letters or digits.
func Make(source string) string {
	s := gosimple.Make(source)
	if r := []rune(s); len(r) > MaxLength {
		s = string(r[:MaxLength])
	}
	return strings.Trim(s, "-")
}

// Valid reports whether s is a well-formed slug.
func Valid(s string) bool {
	return gosimple.IsSlug(s)
}

// Generator picks a slug that no existing record uses.
type Generator struct {
	MaxAttempts int
	suffix      func() string
}

// NewGenerator returns a Generator with the default retry bound.
func NewGenerator() *Generator {
	return &Generator{MaxAttempts: DefaultMaxAttempts}
}

// Generate returns current unchanged when it is non-empty. Otherwise it tries
// the slug of source (or of fallback when source yields nothing), then the
// same base with a random suffix, until exists reports a free value.
func (g *Generator) Generate(ctx context.Context, current, source, fallback string, exists ExistsFunc) (string, error) {
	if current != "" {
		return current, nil
	}

	base := Make(source)
	if base == "" {
		base = Make(fallback)
	}
	if base == "" {
		base = "item"
	}

	attempts := g.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	candidate := base
	for i := 0; i < attempts; i++ {
		if i > 0 {
			candidate = base + "-" + g.nextSuffix()
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", models.NewConflictError(
		fmt.Sprintf("could not generate a unique slug for %q", source),
		fmt.Errorf("%d attempts exhausted", attempts),
	)
}

func (g *Generator) nextSuffix() string {
	if g.suffix != nil {
		return g.suffix()
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLength]
}
