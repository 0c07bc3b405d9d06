package models

import "fmt"

// SearchQuery represents a search request with optional weighting.
type SearchQuery struct {
	Query          string  `json:"query"`
	Limit          int     `json:"limit,omitempty"`
	Offset         int     `json:"offset,omitempty"`
	KeywordWeight  float64 `json:"keyword_weight,omitempty"`
	SemanticWeight float64 `json:"semantic_weight,omitempty"`
	MinScore       float64 `json:"min_score,omitempty"`
	// ClusterID restricts results to members of one cluster; nil means
	// no restriction.
	ClusterID *int64 `json:"cluster_id,omitempty"`
	// AllowedDocIDs restricts semantic search to the given documents
	// (used by callers enforcing tenancy); nil means no restriction.
	AllowedDocIDs []int64 `json:"allowed_doc_ids,omitempty"`
}

// Validate ensures the query has valid fields and sets defaults.
// Returns an error for an empty query; normalizes limit, offset, and weights.
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.KeywordWeight <= 0 && q.SemanticWeight <= 0 {
		q.KeywordWeight = 0.5
		q.SemanticWeight = 0.5
	}
	return nil
}
