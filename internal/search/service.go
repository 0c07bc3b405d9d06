// Package search runs hybrid (keyword + semantic) search over ingested
// documents and fuses the two score streams into one ranking.
package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hyperjump/manabi/internal/config"
	"github.com/hyperjump/manabi/internal/engine"
	"github.com/hyperjump/manabi/internal/keyword"
	"github.com/hyperjump/manabi/internal/models"
	"github.com/hyperjump/manabi/internal/semantic"
	"github.com/hyperjump/manabi/internal/storage"
)

// Service runs hybrid search.
type Service struct {
	storage      storage.Storage
	engine       *engine.Engine
	keywordIndex keyword.KeywordIndex
	config       *config.SearchConfig
}

// NewService creates a search service with the given dependencies.
func NewService(
	store storage.Storage,
	eng *engine.Engine,
	keywordIndex keyword.KeywordIndex,
	cfg *config.SearchConfig,
) *Service {
	return &Service{
		storage:      store,
		engine:       eng,
		keywordIndex: keywordIndex,
		config:       cfg,
	}
}

// Search runs both search backends in parallel, fuses their scores by
// the query's weights, and resolves the surviving ids to documents.
// A weight of zero disables that backend entirely.
func (s *Service) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := query.Validate(); err != nil {
		return nil, err
	}

	// A cluster filter narrows both backends to the cluster's members.
	// An unknown cluster matches nothing.
	if query.ClusterID != nil {
		c, ok := s.engine.GetCluster(*query.ClusterID)
		if !ok {
			return &models.SearchResponse{
				Results:   []*models.SearchResult{},
				QueryTime: time.Since(startTime).Milliseconds(),
				Query:     query.Query,
			}, nil
		}
		query.AllowedDocIDs = c.MemberDocIDs
	}

	var (
		keywordResults  []*keyword.KeywordResult
		semanticResults []semantic.Hit
		errChan         = make(chan error, 2)
		wg              sync.WaitGroup
	)

	if query.KeywordWeight > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := s.keywordIndex.Search(ctx, query.Query, s.config.TopKCandidates,
				&keyword.SearchOptions{TitleBoost: s.config.KeywordTitleBoost})
			if err != nil {
				errChan <- fmt.Errorf("keyword search failed: %w", err)
				return
			}
			keywordResults = results
		}()
	}

	if query.SemanticWeight > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := s.engine.Search(query.Query, s.config.TopKCandidates, query.AllowedDocIDs)
			if err != nil {
				errChan <- fmt.Errorf("semantic search failed: %w", err)
				return
			}
			semanticResults = results
		}()
	}

	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}

	// The keyword side does not know about allowed ids, so the filter is
	// applied to its results here.
	if query.AllowedDocIDs != nil {
		allowed := make(map[int64]struct{}, len(query.AllowedDocIDs))
		for _, id := range query.AllowedDocIDs {
			allowed[id] = struct{}{}
		}
		filtered := keywordResults[:0]
		for _, r := range keywordResults {
			if _, ok := allowed[r.DocID]; ok {
				filtered = append(filtered, r)
			}
		}
		keywordResults = filtered
	}

	keywordScores := NormalizeKeywordScores(keywordResults)
	semanticScores := SemanticScores(semanticResults)
	fused := Fuse(keywordScores, semanticScores, query.KeywordWeight, query.SemanticWeight)

	if query.MinScore > 0 {
		filtered := fused[:0]
		for _, r := range fused {
			if r.Score >= query.MinScore {
				filtered = append(filtered, r)
			}
		}
		fused = filtered
	}

	start := query.Offset
	end := query.Offset + query.Limit
	if start > len(fused) {
		start = len(fused)
	}
	if end > len(fused) {
		end = len(fused)
	}
	paged := fused[start:end]

	response := &models.SearchResponse{
		Results:   make([]*models.SearchResult, 0, len(paged)),
		Total:     len(fused),
		QueryTime: time.Since(startTime).Milliseconds(),
		Query:     query.Query,
	}
	for i, r := range paged {
		doc, err := s.storage.GetDocument(ctx, r.DocID)
		if err != nil {
			continue
		}
		response.Results = append(response.Results, &models.SearchResult{
			Document:      doc,
			Score:         r.Score,
			KeywordScore:  r.KeywordScore,
			SemanticScore: r.SemanticScore,
			Rank:          start + i + 1,
		})
	}
	return response, nil
}
