// Package keyword provides full-text (BM25) indexing and search over
// ingested documents, complementing the semantic vector index.
package keyword

import (
	"context"

	"github.com/hyperjump/manabi/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// TitleBoost multiplies the score contribution from matches in the
	// title field. Values > 1 make title matches rank higher. Use 1.0
	// for no boost.
	TitleBoost float64
}

// KeywordIndex defines keyword search operations. Documents are keyed
// by their engine-assigned id.
type KeywordIndex interface {
	Index(ctx context.Context, doc *models.Document) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	Delete(ctx context.Context, docID int64) error
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	DocID int64
	Score float64
}
