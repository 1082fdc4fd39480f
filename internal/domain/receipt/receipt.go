// Package receipt issues and parses human-readable application tracking codes
// of the form {CODE}-{YYYYMMDD}-{NNNN}.
package receipt

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/garyjia/access-portal/internal/domain/entity"
)

// MaxSequence is the largest daily counter value that fits the 4-digit suffix
const MaxSequence = 9999

const dayLayout = "20060102"

// Pattern matches every well-formed receipt
var Pattern = regexp.MustCompile(`^[A-Z]{2}-\d{8}-\d{4}$`)

var (
	// ErrSequenceExhausted is returned when a (code, day) counter leaves 1..9999
	ErrSequenceExhausted = errors.New("receipt sequence exhausted for the day")

	// ErrInvalidReceipt is returned by Parse for malformed input
	ErrInvalidReceipt = errors.New("invalid receipt format")

	// ErrUnknownType is returned when no receipt code exists for a type
	ErrUnknownType = errors.New("unknown application type")
)

// Sequencer hands out the next value of a per-(prefix, day) counter.
// Implementations must be atomic with respect to concurrent callers.
type Sequencer interface {
	NextSequence(ctx context.Context, prefix, day string) (int64, error)
}

// Generator issues receipts from a store-backed counter
type Generator struct {
	seq      Sequencer
	location *time.Location
	now      func() time.Time
}

// Option configures a Generator
type Option func(*Generator)

// WithLocation sets the zone used to pick the calendar day
func WithLocation(loc *time.Location) Option {
	return func(g *Generator) {
		if loc != nil {
			g.location = loc
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGenerator creates a generator. Days default to UTC.
func NewGenerator(seq Sequencer, opts ...Option) *Generator {
	g := &Generator{
		seq:      seq,
		location: time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the next receipt for t on the current day
func (g *Generator) Generate(ctx context.Context, t entity.Type) (string, error) {
	code := t.Code()
	if code == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownType, t)
	}

	day := g.now().In(g.location).Format(dayLayout)
	n, err := g.seq.NextSequence(ctx, code, day)
	if err != nil {
		return "", err
	}
	return Format(code, day, n)
}

// Format renders a receipt from its parts
func Format(code, day string, n int64) (string, error) {
	if n < 1 || n > MaxSequence {
		return "", fmt.Errorf("%w: %s-%s reached %d", ErrSequenceExhausted, code, day, n)
	}
	return fmt.Sprintf("%s-%s-%04d", code, day, n), nil
}

// Parts is a decoded receipt
type Parts struct {
	Type     entity.Type
	Day      time.Time
	Sequence int
}

// Parse decodes a receipt. The date is interpreted in UTC.
func Parse(s string) (Parts, error) {
	if !Pattern.MatchString(s) {
		return Parts{}, fmt.Errorf("%w: %q", ErrInvalidReceipt, s)
	}

	t, ok := entity.TypeFromCode(s[:2])
	if !ok {
		return Parts{}, fmt.Errorf("%w: unknown code %q", ErrInvalidReceipt, s[:2])
	}

	day, err := time.Parse(dayLayout, s[3:11])
	if err != nil {
		return Parts{}, fmt.Errorf("%w: %v", ErrInvalidReceipt, err)
	}

	n, _ := strconv.Atoi(s[12:])
	if n < 1 {
		return Parts{}, fmt.Errorf("%w: zero sequence", ErrInvalidReceipt)
	}

	return Parts{Type: t, Day: day, Sequence: n}, nil
}
