package catalog

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugAttempts bounds how many candidates Generate probes before giving up.
const MaxSlugAttempts = 50

var (
	// ErrEmptySlugSource is returned when the name yields no slug characters.
	ErrEmptySlugSource = errors.New("cannot generate slug from empty name")
	// ErrSlugExhausted is returned when every candidate slug is taken.
	ErrSlugExhausted = errors.New("unable to generate unique slug")
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s, strips diacritics and joins the remaining
// alphanumeric runs with hyphens.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	return strings.Trim(nonSlugChars.ReplaceAllString(folded, "-"), "-")
}

// SlugChecker reports whether a slug is already used.
type SlugChecker interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// SlugGenerator produces slugs that are unique within one checker.
type SlugGenerator struct {
	checker SlugChecker
	lg      *zap.Logger
}

// NewSlugGenerator returns a SlugGenerator backed by checker.
func NewSlugGenerator(checker SlugChecker, lg *zap.Logger) *SlugGenerator {
	return &SlugGenerator{checker: checker, lg: lg}
}

// Generate derives a unique slug from name. Candidates are the base slug,
// then base-1, base-2 and so on. A candidate equal to current is accepted
// even when taken, so an entity keeps its own slug on update.
func (g *SlugGenerator) Generate(ctx context.Context, name, current string) (string, error) {
	base := Slugify(name)
	if base == "" {
		return "", ErrEmptySlugSource
	}

	candidate := base
	for attempt := 1; attempt <= MaxSlugAttempts; attempt++ {
		if candidate == current {
			return candidate, nil
		}
		taken, err := g.checker.SlugExists(ctx, candidate)
		if err != nil {
			return "", errors.Wrapf(err, "check slug %q", candidate)
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(attempt)
	}

	g.lg.Error("Slug candidates exhausted",
		zap.String("base", base),
		zap.Int("attempts", MaxSlugAttempts),
	)
	return "", errors.Wrapf(ErrSlugExhausted, "after %d attempts for %q", MaxSlugAttempts, base)
}
