// Package ingest runs the document ingestion cycle: fetch per-source
// documents, detect changes against the last sync, and rebuild the
// per-tenant lexical index wholesale.
package ingest

import (
	"context"
	"time"

	"github.com/ekap-project/knowledge-core/internal/domain"
)

// Fetcher is the contract each document source connector implements.
// A fetcher is bound to one (business area, source) pair.
type Fetcher interface {
	// Source returns the source name this fetcher serves.
	Source() string

	// FetchAll returns every document the source currently holds.
	FetchAll(ctx context.Context) ([]domain.Document, error)

	// FetchSince returns documents modified after the given time.
	FetchSince(ctx context.Context, since time.Time) ([]domain.Document, error)

	// DocumentIDs returns the ids of all documents currently in the source.
	DocumentIDs(ctx context.Context) ([]string, error)
}
