// Package portfolio supplies the in-force exposures new risks are measured
// against.
package portfolio

import "context"

// DefaultExposures is the in-force book (sum insured, base currency) used
// when no portfolio database is configured.
var DefaultExposures = []float64{200e6, 150e6, 300e6}

// Book lists the sums insured of the risks already written.
type Book interface {
	Exposures(ctx context.Context) ([]float64, error)
	Close() error
}

// StaticBook is a fixed in-memory book.
type StaticBook struct {
	TSI []float64
}

// NewStaticBook returns a book over DefaultExposures.
func NewStaticBook() *StaticBook {
	return &StaticBook{TSI: append([]float64(nil), DefaultExposures...)}
}

func (b *StaticBook) Exposures(_ context.Context) ([]float64, error) {
	return append([]float64(nil), b.TSI...), nil
}

func (b *StaticBook) Close() error { return nil }
