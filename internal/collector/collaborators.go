// Package collector talks to the ingestion collaborators (mailbox retrieval,
// text extraction, field extraction) and finds the structured-fields
// artifacts they produce.
package collector

import (
	"context"
	"errors"
)

// ErrUnavailable marks a collaborator failure or timeout.
var ErrUnavailable = errors.New("collaborator unavailable")

// Mailbox retrieves new submissions and reports how many submission folders
// now exist.
type Mailbox interface {
	Check(ctx context.Context) (int, error)
	Name() string
}

// Extractor runs one batch of extraction work and reports whether anything
// was produced.
type Extractor interface {
	Run(ctx context.Context) (bool, error)
	Name() string
}
