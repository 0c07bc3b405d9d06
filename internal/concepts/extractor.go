// Package concepts turns document text into topic labels used for
// cluster assignment. The production extractor is an external
// language-model call; a keyword-frequency fallback keeps ingestion
// working when no such service is configured.
package concepts

import (
	"context"

	"github.com/hyperjump/manabi/internal/models"
)

// Extraction is the full output of concept extraction for one document.
type Extraction struct {
	Concepts      []models.Concept
	SuggestedName string
	SkillLevel    models.SkillLevel
}

// Extractor produces concepts from document text. Output is treated as
// already validated; the engine does not revalidate confidences.
type Extractor interface {
	Extract(ctx context.Context, text, sourceType string) (*Extraction, error)
}
