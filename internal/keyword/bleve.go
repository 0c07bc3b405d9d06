// Package keyword provides the Bleve implementation of KeywordIndex.
package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/hyperjump/manabi/internal/models"
)

// bleveDoc is the shape actually stored in the index. Only title and
// content are searchable; everything else lives in SQLite.
type bleveDoc struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// BleveIndex implements KeywordIndex using Bleve. Index keys are the
// decimal form of the engine-assigned document id.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An existing
// index is opened and reused; if the mapping changes in code, remove
// the index directory to force a full re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so queries
	// match exact words; the English analyzer stems e.g. "Bayesian" ->
	// "bayesi" and "bayes" -> "bay", which breaks exact-term search.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	im.AddDocumentMapping("document", docMapping)
	im.DefaultType = "document"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index stores the document's searchable fields under its id.
func (b *BleveIndex) Index(_ context.Context, doc *models.Document) error {
	return b.index.Index(strconv.FormatInt(doc.ID, 10), bleveDoc{
		Title:   doc.Title,
		Content: doc.Content,
	})
}

// Search runs a match query and returns up to limit results. With
// opts.TitleBoost > 1, title and content are queried separately and
// merged additively so title matches rank higher.
func (b *BleveIndex) Search(_ context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	titleBoost := 1.0
	if opts != nil && opts.TitleBoost > 0 {
		titleBoost = opts.TitleBoost
	}
	if titleBoost <= 1.0 {
		return b.searchSingle(query, limit)
	}
	return b.searchWithTitleBoost(query, limit, titleBoost)
}

func (b *BleveIndex) searchSingle(query string, limit int) ([]*KeywordResult, error) {
	search := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	search.Size = limit
	results, err := b.index.Search(search)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*KeywordResult, 0, len(results.Hits))
	for _, hit := range results.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("non-numeric index key %q: %w", hit.ID, err)
		}
		out = append(out, &KeywordResult{DocID: id, Score: hit.Score})
	}
	return out, nil
}

// searchWithTitleBoost merges separate title and content queries with
// additive scoring: score = titleScore*titleBoost + contentScore. The
// same document can appear in both result sets, so each query requests
// more rows than the final limit.
func (b *BleveIndex) searchWithTitleBoost(query string, limit int, titleBoost float64) ([]*KeywordResult, error) {
	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}

	titleQuery := bleve.NewMatchQuery(query)
	titleQuery.SetField("title")
	titleReq := bleve.NewSearchRequest(titleQuery)
	titleReq.Size = reqSize

	contentQuery := bleve.NewMatchQuery(query)
	contentQuery.SetField("content")
	contentReq := bleve.NewSearchRequest(contentQuery)
	contentReq.Size = reqSize

	titleResults, err := b.index.Search(titleReq)
	if err != nil {
		return nil, fmt.Errorf("Bleve title search failed: %w", err)
	}
	contentResults, err := b.index.Search(contentReq)
	if err != nil {
		return nil, fmt.Errorf("Bleve content search failed: %w", err)
	}

	scores := make(map[string]float64)
	for _, hit := range titleResults.Hits {
		scores[hit.ID] += hit.Score * titleBoost
	}
	for _, hit := range contentResults.Hits {
		scores[hit.ID] += hit.Score
	}

	type scored struct {
		id    string
		score float64
	}
	merged := make([]scored, 0, len(scores))
	for id, score := range scores {
		merged = append(merged, scored{id: id, score: score})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].score != merged[j].score {
			return merged[i].score > merged[j].score
		}
		return merged[i].id < merged[j].id
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}

	out := make([]*KeywordResult, 0, len(merged))
	for _, s := range merged {
		id, err := strconv.ParseInt(s.id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("non-numeric index key %q: %w", s.id, err)
		}
		out = append(out, &KeywordResult{DocID: id, Score: s.score})
	}
	return out, nil
}

// Delete removes a document from the index.
func (b *BleveIndex) Delete(_ context.Context, docID int64) error {
	return b.index.Delete(strconv.FormatInt(docID, 10))
}

// DocCount returns the total number of documents in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
