// Package models defines core data structures for documents, concepts, clusters, and search.
package models

import "time"

// Unclustered is the ClusterID sentinel for a document that has no
// cluster assignment, stored as NULL in the database.
const Unclustered int64 = -1

// Document represents an ingested piece of knowledge with metadata.
// ID is the durable identifier assigned by storage and adopted verbatim
// by the in-memory semantic index; the two must never diverge.
type Document struct {
	ID          int64     `json:"id" db:"id"`
	SourceID    string    `json:"source_id" db:"source_id"`
	Title       string    `json:"title" db:"title"`
	Content     string    `json:"content" db:"content"`
	SourceType  string    `json:"source_type" db:"source_type"`
	ContentHash string    `json:"-" db:"content_hash"`
	ClusterID   int64     `json:"cluster_id,omitempty" db:"cluster_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// DocumentInput is the input for ingesting a document.
type DocumentInput struct {
	SourceID   string     `json:"source_id,omitempty"`
	Title      string     `json:"title,omitempty"`
	Content    string     `json:"content"`
	SourceType string     `json:"source_type,omitempty"`
	SkillLevel SkillLevel `json:"skill_level,omitempty"`
}

// IngestResult reports where an ingested document ended up.
type IngestResult struct {
	DocID          int64 `json:"doc_id"`
	ClusterID      int64 `json:"cluster_id"`
	ClusterCreated bool  `json:"cluster_created"`
	Deduplicated   bool  `json:"deduplicated,omitempty"`
}
