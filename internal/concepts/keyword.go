package concepts

import (
	"context"
	"sort"
	"strings"

	"github.com/hyperjump/manabi/internal/models"
	"github.com/hyperjump/manabi/internal/semantic"
)

// DefaultConceptCount is how many concepts the keyword extractor emits.
const DefaultConceptCount = 8

// KeywordExtractor derives concepts from raw term frequency. It shares
// the index's tokenizer so concept names line up with searchable terms.
type KeywordExtractor struct {
	count int
}

// NewKeywordExtractor returns an extractor emitting at most count
// concepts per document. A non-positive count uses the default.
func NewKeywordExtractor(count int) *KeywordExtractor {
	if count <= 0 {
		count = DefaultConceptCount
	}
	return &KeywordExtractor{count: count}
}

// Extract picks the most frequent terms as concepts. Confidence is the
// term's frequency relative to the most frequent term, so the top
// concept always has confidence 1.0. The suggested cluster name joins
// the two strongest terms.
func (e *KeywordExtractor) Extract(_ context.Context, text, _ string) (*Extraction, error) {
	counts := make(map[string]int)
	first := make(map[string]int)
	for i, term := range semantic.Tokenize(text) {
		if _, seen := counts[term]; !seen {
			first[term] = i
		}
		counts[term]++
	}
	if len(counts) == 0 {
		return &Extraction{SkillLevel: models.SkillUnknown}, nil
	}

	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return first[terms[i]] < first[terms[j]]
	})
	if len(terms) > e.count {
		terms = terms[:e.count]
	}

	top := float64(counts[terms[0]])
	concepts := make([]models.Concept, len(terms))
	for i, term := range terms {
		concepts[i] = models.Concept{
			Name:       term,
			Category:   "keyword",
			Confidence: float64(counts[term]) / top,
		}
	}

	name := titleCase(terms[0])
	if len(terms) > 1 {
		name += " " + titleCase(terms[1])
	}
	return &Extraction{
		Concepts:      concepts,
		SuggestedName: name,
		SkillLevel:    models.SkillUnknown,
	}, nil
}

// titleCase uppercases the first rune of a single lowercase term.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
