package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/manabi/internal/concepts"
	"github.com/hyperjump/manabi/internal/engine"
	"github.com/hyperjump/manabi/internal/keyword"
	"github.com/hyperjump/manabi/internal/models"
	"github.com/hyperjump/manabi/internal/storage"
)

func newTestIngestor(t *testing.T, extractor concepts.Extractor) (*Ingestor, *storage.SQLiteStorage, *engine.Engine) {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	kwIndex, err := keyword.NewBleveIndex(filepath.Join(dir, "keyword.bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kwIndex.Close() })

	eng := engine.New()
	if extractor == nil {
		extractor = concepts.NewKeywordExtractor(0)
	}
	return NewIngestor(store, eng, extractor, kwIndex, nil), store, eng
}

type failingExtractor struct{}

func (failingExtractor) Extract(context.Context, string, string) (*concepts.Extraction, error) {
	return nil, errors.New("extraction service unavailable")
}

func TestIngest_FullPipeline(t *testing.T) {
	ing, store, eng := newTestIngestor(t, nil)
	ctx := context.Background()

	res, err := ing.Ingest(ctx, &models.DocumentInput{
		Title:   "Docker Notes",
		Content: "docker container deployment with docker compose",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Deduplicated {
		t.Error("first ingest should not be a duplicate")
	}
	if !res.ClusterCreated || res.ClusterID < 0 {
		t.Errorf("result: %+v, want a fresh cluster", res)
	}

	// Stored document carries the engine-assigned id and the cluster.
	doc, err := store.GetDocument(ctx, res.DocID)
	if err != nil {
		t.Fatal(err)
	}
	if doc.ClusterID != res.ClusterID || doc.SourceID == "" || doc.ContentHash == "" {
		t.Errorf("stored doc: %+v", doc)
	}

	// The cluster exists in memory and in storage with the member.
	c, ok := eng.GetCluster(res.ClusterID)
	if !ok || c.DocCount != 1 || c.MemberDocIDs[0] != res.DocID {
		t.Errorf("in-memory cluster: %+v", c)
	}
	stored, err := store.ListClusters(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].DocCount != 1 {
		t.Errorf("stored clusters: %+v", stored)
	}

	// Concepts were persisted.
	saved, err := store.GetConcepts(ctx, res.DocID)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved) == 0 {
		t.Error("no concepts persisted")
	}
}

func TestIngest_DuplicateContentShortCircuits(t *testing.T) {
	ing, _, eng := newTestIngestor(t, nil)
	ctx := context.Background()

	first, err := ing.Ingest(ctx, &models.DocumentInput{Content: "identical document content"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := ing.Ingest(ctx, &models.DocumentInput{Content: "identical document content"})
	if err != nil {
		t.Fatal(err)
	}
	if !second.Deduplicated || second.DocID != first.DocID {
		t.Errorf("second ingest: %+v, want dedupe to doc %d", second, first.DocID)
	}
	if eng.DocumentCount() != 1 {
		t.Errorf("DocumentCount=%d, want 1", eng.DocumentCount())
	}
}

func TestIngest_ExtractionFailureLeavesUnclustered(t *testing.T) {
	ing, store, eng := newTestIngestor(t, failingExtractor{})
	ctx := context.Background()

	res, err := ing.Ingest(ctx, &models.DocumentInput{Content: "document with no concepts"})
	if err != nil {
		t.Fatal(err)
	}
	if res.ClusterID != models.Unclustered || res.ClusterCreated {
		t.Errorf("result: %+v, want unclustered", res)
	}

	// The document is still indexed and stored.
	if eng.DocumentCount() != 1 {
		t.Errorf("DocumentCount=%d, want 1", eng.DocumentCount())
	}
	doc, err := store.GetDocument(ctx, res.DocID)
	if err != nil {
		t.Fatal(err)
	}
	if doc.ClusterID != models.Unclustered {
		t.Errorf("stored ClusterID=%d, want unclustered", doc.ClusterID)
	}
}

func TestIngest_SimilarDocumentsShareCluster(t *testing.T) {
	ing, _, _ := newTestIngestor(t, nil)
	ctx := context.Background()

	first, err := ing.Ingest(ctx, &models.DocumentInput{
		Content: "kubernetes deployment kubernetes cluster",
	})
	if err != nil {
		t.Fatal(err)
	}
	second, err := ing.Ingest(ctx, &models.DocumentInput{
		Content: "kubernetes cluster deployment walkthrough kubernetes",
	})
	if err != nil {
		t.Fatal(err)
	}
	if second.ClusterID != first.ClusterID {
		t.Errorf("clusters: %d vs %d, want shared", first.ClusterID, second.ClusterID)
	}
	if second.ClusterCreated {
		t.Error("second document should join, not create")
	}
}

func TestIngest_EmptyContentRejected(t *testing.T) {
	ing, store, _ := newTestIngestor(t, nil)
	ctx := context.Background()

	if _, err := ing.Ingest(ctx, &models.DocumentInput{Content: "   "}); err == nil {
		t.Fatal("empty content should be rejected")
	}
	n, err := store.CountDocuments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("CountDocuments=%d, want 0", n)
	}
}

func TestDelete_RemovesEverywhere(t *testing.T) {
	ing, store, eng := newTestIngestor(t, nil)
	ctx := context.Background()

	res, err := ing.Ingest(ctx, &models.DocumentInput{Content: "document to be deleted"})
	if err != nil {
		t.Fatal(err)
	}
	removed, err := ing.Delete(ctx, res.DocID)
	if err != nil {
		t.Fatal(err)
	}
	if !removed {
		t.Error("removed=false for existing document")
	}
	if eng.DocumentCount() != 0 {
		t.Errorf("DocumentCount=%d, want 0", eng.DocumentCount())
	}
	if _, err := store.GetDocument(ctx, res.DocID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}

	// Unknown id is a no-op, not an error.
	removed, err = ing.Delete(ctx, 999)
	if err != nil {
		t.Fatal(err)
	}
	if removed {
		t.Error("removed=true for unknown document")
	}
}

func TestRehydrate_RestoresIDsAndClusters(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	kwPath := filepath.Join(dir, "keyword.bleve")
	ctx := context.Background()

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	kwIndex, err := keyword.NewBleveIndex(kwPath)
	if err != nil {
		t.Fatal(err)
	}

	ing := NewIngestor(store, engine.New(), concepts.NewKeywordExtractor(0), kwIndex, nil)
	first, err := ing.Ingest(ctx, &models.DocumentInput{Content: "kubernetes deployment kubernetes"})
	if err != nil {
		t.Fatal(err)
	}
	if err := kwIndex.Close(); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	// Simulate process restart: fresh engine, same durable state.
	store2, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer store2.Close()
	kwIndex2, err := keyword.NewBleveIndex(kwPath)
	if err != nil {
		t.Fatal(err)
	}
	defer kwIndex2.Close()

	eng2 := engine.New()
	ing2 := NewIngestor(store2, eng2, concepts.NewKeywordExtractor(0), kwIndex2, nil)
	if err := ing2.Rehydrate(ctx); err != nil {
		t.Fatal(err)
	}

	// The rehydrated index answers under the durable id.
	hits, err := eng2.Search("kubernetes", 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].DocID != first.DocID {
		t.Errorf("hits=%v, want doc %d", hits, first.DocID)
	}
	if _, ok := eng2.GetCluster(first.ClusterID); !ok {
		t.Errorf("cluster %d missing after rehydration", first.ClusterID)
	}

	// A new ingest cannot collide with the stored id.
	next, err := ing2.Ingest(ctx, &models.DocumentInput{Content: "a different gardening document"})
	if err != nil {
		t.Fatal(err)
	}
	if next.DocID == first.DocID {
		t.Error("rehydrated engine reissued a stored id")
	}
}
