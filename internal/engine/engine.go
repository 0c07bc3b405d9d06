// Package engine composes the semantic index and the cluster assigner
// behind one facade. Callers never touch the components directly; all
// state flows through the operations here.
package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/manabi/internal/cluster"
	"github.com/hyperjump/manabi/internal/models"
	"github.com/hyperjump/manabi/internal/semantic"
)

// Engine owns one vector index and one cluster table per process. It has
// no internal threads; callers invoke it synchronously and each
// component serializes its own operations.
type Engine struct {
	index    *semantic.Index
	assigner *cluster.Assigner
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for operational events.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithAssignerOptions forwards tunables to the cluster assigner.
func WithAssignerOptions(opts ...cluster.Option) Option {
	return func(e *Engine) {
		e.assigner = cluster.NewAssigner(opts...)
	}
}

// New returns an empty engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		index:    semantic.NewIndex(),
		assigner: cluster.NewAssigner(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddDocument indexes text and returns its assigned document id.
func (e *Engine) AddDocument(text string) (int64, error) {
	id, err := e.index.Add(text)
	if err != nil {
		return 0, fmt.Errorf("adding document: %w", err)
	}
	e.logger.Debug("document indexed", zap.Int64("doc_id", id), zap.Int("corpus_size", e.index.Size()))
	return id, nil
}

// AddDocumentsBatch indexes all texts with a single model rebuild and
// returns their ids in input order. If any text is invalid, nothing is
// indexed.
func (e *Engine) AddDocumentsBatch(texts []string) ([]int64, error) {
	ids, err := e.index.AddBatch(texts)
	if err != nil {
		return nil, fmt.Errorf("adding document batch: %w", err)
	}
	e.logger.Debug("document batch indexed", zap.Int("count", len(ids)), zap.Int("corpus_size", e.index.Size()))
	return ids, nil
}

// RemoveDocument drops the document from the index and from its
// cluster's membership, so cluster listings never report ids that are no
// longer indexed. Unknown ids return false without error.
func (e *Engine) RemoveDocument(docID int64) bool {
	removed := e.index.Remove(docID)
	if !removed {
		return false
	}
	if clusterID, ok := e.assigner.RemoveMember(docID); ok {
		e.logger.Debug("document left cluster",
			zap.Int64("doc_id", docID),
			zap.Int64("cluster_id", clusterID))
	}
	e.logger.Debug("document removed", zap.Int64("doc_id", docID), zap.Int("corpus_size", e.index.Size()))
	return true
}

// Search returns the topK most similar documents to query, optionally
// restricted to allowedIDs. Pass nil to search the whole corpus.
func (e *Engine) Search(query string, topK int, allowedIDs []int64) ([]semantic.Hit, error) {
	hits, err := e.index.Search(query, topK, allowedIDs)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	return hits, nil
}

// AssignCluster routes the document to the best matching cluster, or
// creates a new cluster named suggestedName when nothing clears the
// similarity threshold.
func (e *Engine) AssignCluster(docID int64, concepts []models.Concept, suggestedName string, level models.SkillLevel) (cluster.Result, error) {
	res, err := e.assigner.Assign(docID, concepts, suggestedName, level)
	if err != nil {
		return cluster.Result{}, fmt.Errorf("assigning cluster: %w", err)
	}
	if res.Created {
		e.logger.Info("cluster created",
			zap.Int64("cluster_id", res.ClusterID),
			zap.String("name", suggestedName),
			zap.Int64("doc_id", docID))
	} else {
		e.logger.Debug("document joined cluster",
			zap.Int64("cluster_id", res.ClusterID),
			zap.Int64("doc_id", docID))
	}
	return res, nil
}

// GetCluster returns a copy of the cluster, or false if it is unknown.
func (e *Engine) GetCluster(clusterID int64) (models.Cluster, bool) {
	return e.assigner.Get(clusterID)
}

// ListClusters returns copies of all clusters sorted by id.
func (e *Engine) ListClusters() []models.Cluster {
	return e.assigner.List()
}

// DocumentCount returns the number of indexed documents.
func (e *Engine) DocumentCount() int {
	return e.index.Size()
}

// ClusterCount returns the number of clusters.
func (e *Engine) ClusterCount() int {
	return e.assigner.Size()
}

// Rehydrate replays durably-stored documents and clusters into a fresh
// engine at startup. Document ids come from the store's primary keys
// verbatim; the index never re-increments its own counter over stored
// rows, so in-memory and durable ids cannot drift apart.
func (e *Engine) Rehydrate(docs []semantic.Entry, clusters []models.Cluster) error {
	if err := e.index.AddWithIDs(docs); err != nil {
		return fmt.Errorf("rehydrating documents: %w", err)
	}
	e.assigner.Load(clusters)
	e.logger.Info("engine rehydrated",
		zap.Int("documents", len(docs)),
		zap.Int("clusters", len(clusters)))
	return nil
}
