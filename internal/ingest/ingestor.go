// Package ingest runs the document ingestion pipeline: index the text,
// persist it under the engine-assigned id, extract concepts, assign a
// cluster, and make the document searchable.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/manabi/internal/cluster"
	"github.com/hyperjump/manabi/internal/concepts"
	"github.com/hyperjump/manabi/internal/engine"
	"github.com/hyperjump/manabi/internal/extract"
	"github.com/hyperjump/manabi/internal/keyword"
	"github.com/hyperjump/manabi/internal/models"
	"github.com/hyperjump/manabi/internal/semantic"
	"github.com/hyperjump/manabi/internal/storage"
)

// Ingestor coordinates the pipeline. The engine assigns document ids;
// storage persists them verbatim so the durable keys always match the
// in-memory index.
type Ingestor struct {
	storage      storage.Storage
	engine       *engine.Engine
	extractor    concepts.Extractor
	keywordIndex keyword.KeywordIndex
	files        *extract.Extractor
	logger       *zap.Logger
}

// NewIngestor creates an ingestor with the given dependencies.
func NewIngestor(
	store storage.Storage,
	eng *engine.Engine,
	extractor concepts.Extractor,
	keywordIndex keyword.KeywordIndex,
	logger *zap.Logger,
) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		storage:      store,
		engine:       eng,
		extractor:    extractor,
		keywordIndex: keywordIndex,
		files:        extract.NewExtractor(),
		logger:       logger,
	}
}

// Ingest runs the full pipeline for one document. Identical content
// (same hash) short-circuits to the already-stored document. Concept
// extraction is best-effort: if it fails, the document stays indexed
// and searchable but unclustered.
func (g *Ingestor) Ingest(ctx context.Context, input *models.DocumentInput) (*models.IngestResult, error) {
	content := strings.TrimSpace(input.Content)
	hash := contentHash(content)

	if existing, err := g.storage.GetDocumentByHash(ctx, hash); err == nil {
		g.logger.Debug("duplicate content, skipping ingest",
			zap.Int64("doc_id", existing.ID))
		return &models.IngestResult{
			DocID:        existing.ID,
			ClusterID:    existing.ClusterID,
			Deduplicated: true,
		}, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("dedupe lookup: %w", err)
	}

	docID, err := g.engine.AddDocument(content)
	if err != nil {
		return nil, fmt.Errorf("indexing document: %w", err)
	}

	doc := &models.Document{
		ID:          docID,
		SourceID:    input.SourceID,
		Title:       input.Title,
		Content:     content,
		SourceType:  input.SourceType,
		ContentHash: hash,
		ClusterID:   models.Unclustered,
	}
	if doc.SourceID == "" {
		doc.SourceID = uuid.New().String()
	}
	if doc.SourceType == "" {
		doc.SourceType = "text"
	}
	if doc.Title == "" {
		doc.Title = deriveTitle(content)
	}

	if err := g.storage.CreateDocument(ctx, doc); err != nil {
		// The index and the store must agree on which ids exist.
		g.engine.RemoveDocument(docID)
		return nil, fmt.Errorf("persisting document: %w", err)
	}

	result := &models.IngestResult{DocID: docID, ClusterID: models.Unclustered}

	extraction, err := g.extractor.Extract(ctx, content, doc.SourceType)
	if err != nil || len(extraction.Concepts) == 0 {
		if err != nil {
			g.logger.Warn("concept extraction failed, document left unclustered",
				zap.Int64("doc_id", docID), zap.Error(err))
		}
		g.indexKeyword(ctx, doc)
		return result, nil
	}

	if err := g.storage.SaveConcepts(ctx, docID, extraction.Concepts); err != nil {
		g.logger.Warn("failed to persist concepts",
			zap.Int64("doc_id", docID), zap.Error(err))
	}

	level := input.SkillLevel
	if level == "" {
		level = extraction.SkillLevel
	}
	assigned, err := g.engine.AssignCluster(docID, extraction.Concepts, extraction.SuggestedName, level)
	if err != nil {
		g.logger.Warn("cluster assignment failed, document left unclustered",
			zap.Int64("doc_id", docID), zap.Error(err))
		g.indexKeyword(ctx, doc)
		return result, nil
	}

	if err := g.persistAssignment(ctx, docID, assigned); err != nil {
		return nil, err
	}
	doc.ClusterID = assigned.ClusterID
	result.ClusterID = assigned.ClusterID
	result.ClusterCreated = assigned.Created

	g.indexKeyword(ctx, doc)
	g.logger.Info("document ingested",
		zap.Int64("doc_id", docID),
		zap.Int64("cluster_id", assigned.ClusterID),
		zap.Bool("cluster_created", assigned.Created))
	return result, nil
}

// persistAssignment mirrors the in-memory cluster state into storage.
func (g *Ingestor) persistAssignment(ctx context.Context, docID int64, assigned cluster.Result) error {
	c, ok := g.engine.GetCluster(assigned.ClusterID)
	if !ok {
		return fmt.Errorf("cluster %d missing after assignment", assigned.ClusterID)
	}
	if err := g.storage.SaveCluster(ctx, &c); err != nil {
		return fmt.Errorf("persisting cluster: %w", err)
	}
	if err := g.storage.AddClusterMember(ctx, assigned.ClusterID, docID); err != nil {
		return fmt.Errorf("persisting cluster membership: %w", err)
	}
	if err := g.storage.SetDocumentCluster(ctx, docID, assigned.ClusterID); err != nil {
		return fmt.Errorf("recording document cluster: %w", err)
	}
	return nil
}

// IngestFile extracts text from the file at path and ingests it.
func (g *Ingestor) IngestFile(ctx context.Context, path string) (*models.IngestResult, error) {
	text, sourceType, err := g.files.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", path, err)
	}
	return g.Ingest(ctx, &models.DocumentInput{
		Title:      filepath.Base(path),
		Content:    text,
		SourceType: sourceType,
	})
}

// Delete removes a document from the index, the keyword index, and
// storage. Returns false without error when the id is unknown.
func (g *Ingestor) Delete(ctx context.Context, docID int64) (bool, error) {
	removed := g.engine.RemoveDocument(docID)
	if err := g.storage.DeleteDocument(ctx, docID); err != nil {
		return removed, fmt.Errorf("deleting document: %w", err)
	}
	if err := g.keywordIndex.Delete(ctx, docID); err != nil {
		g.logger.Warn("failed to remove document from keyword index",
			zap.Int64("doc_id", docID), zap.Error(err))
	}
	return removed, nil
}

// Rehydrate rebuilds the in-memory engine from storage. The engine
// adopts the store's primary keys verbatim; the keyword index persists
// on disk and needs no replay.
func (g *Ingestor) Rehydrate(ctx context.Context) error {
	state, err := g.storage.LoadEngineState(ctx)
	if err != nil {
		return fmt.Errorf("loading engine state: %w", err)
	}
	entries := make([]semantic.Entry, 0, len(state.Documents))
	for _, doc := range state.Documents {
		entries = append(entries, semantic.Entry{ID: doc.ID, Text: doc.Content})
	}
	if err := g.engine.Rehydrate(entries, state.Clusters); err != nil {
		return fmt.Errorf("rehydrating engine: %w", err)
	}
	return nil
}

func (g *Ingestor) indexKeyword(ctx context.Context, doc *models.Document) {
	if err := g.keywordIndex.Index(ctx, doc); err != nil {
		g.logger.Warn("failed to index document for keyword search",
			zap.Int64("doc_id", doc.ID), zap.Error(err))
	}
}

// contentHash returns the hex sha256 of the document content.
func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// deriveTitle uses the first line of content, truncated, as a title.
func deriveTitle(content string) string {
	line := content
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if len(line) > 80 {
		line = line[:80]
	}
	return line
}
