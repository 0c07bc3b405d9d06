// Package storage defines the persistence layer for documents, their
// extracted concepts, and cluster membership.
package storage

import (
	"context"

	"github.com/hyperjump/manabi/internal/models"
)

// EngineState is everything needed to rebuild the in-memory engine at
// startup: every active document with its durable id and text, and
// every cluster with its membership.
type EngineState struct {
	Documents []*models.Document
	Clusters  []models.Cluster
}

// Storage defines document, concept, and cluster persistence.
//
// Document ids are assigned by the engine, not by the database; every
// insert carries an explicit id so the durable keys and the in-memory
// index can never drift apart.
type Storage interface {
	// Document operations
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id int64) (*models.Document, error)
	GetDocumentByHash(ctx context.Context, hash string) (*models.Document, error)
	DeleteDocument(ctx context.Context, id int64) error
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)
	SetDocumentCluster(ctx context.Context, docID, clusterID int64) error

	// Concept operations
	SaveConcepts(ctx context.Context, docID int64, concepts []models.Concept) error
	GetConcepts(ctx context.Context, docID int64) ([]models.Concept, error)

	// Cluster operations
	SaveCluster(ctx context.Context, c *models.Cluster) error
	AddClusterMember(ctx context.Context, clusterID, docID int64) error
	ListClusters(ctx context.Context) ([]models.Cluster, error)

	// Rehydration
	LoadEngineState(ctx context.Context) (*EngineState, error)

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountClusters(ctx context.Context) (int64, error)

	Close() error
}
