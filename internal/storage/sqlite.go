// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/manabi/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = fmt.Errorf("not found")

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	// documents.id is NOT autoincrement; the engine assigns ids and every
	// insert supplies one explicitly.
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY,
		source_id TEXT NOT NULL,
		title TEXT,
		content TEXT NOT NULL,
		source_type TEXT NOT NULL,
		content_hash TEXT NOT NULL UNIQUE,
		cluster_id INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);
	CREATE INDEX IF NOT EXISTS idx_documents_cluster_id ON documents(cluster_id);

	CREATE TABLE IF NOT EXISTS concepts (
		doc_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		category TEXT,
		confidence REAL,
		FOREIGN KEY (doc_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_concepts_doc_id ON concepts(doc_id);

	CREATE TABLE IF NOT EXISTS clusters (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		primary_concepts TEXT NOT NULL,
		skill_level TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cluster_members (
		cluster_id INTEGER NOT NULL,
		doc_id INTEGER NOT NULL,
		PRIMARY KEY (cluster_id, doc_id),
		FOREIGN KEY (cluster_id) REFERENCES clusters(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_members_doc_id ON cluster_members(doc_id);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateDocument inserts a document under its engine-assigned id.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, source_id, title, content, source_type, content_hash, cluster_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.SourceID, doc.Title, doc.Content, doc.SourceType, doc.ContentHash, nullableID(doc.ClusterID), doc.CreatedAt, doc.UpdatedAt,
	)
	return err
}

// GetDocument returns a document by id.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	return s.scanDocument(s.db.QueryRowContext(ctx,
		`SELECT id, source_id, title, content, source_type, content_hash, cluster_id, created_at, updated_at
		 FROM documents WHERE id = ?`, id))
}

// GetDocumentByHash returns the document with the given content hash,
// used for ingest deduplication. Returns ErrNotFound if absent.
func (s *SQLiteStorage) GetDocumentByHash(ctx context.Context, hash string) (*models.Document, error) {
	return s.scanDocument(s.db.QueryRowContext(ctx,
		`SELECT id, source_id, title, content, source_type, content_hash, cluster_id, created_at, updated_at
		 FROM documents WHERE content_hash = ?`, hash))
}

func (s *SQLiteStorage) scanDocument(row *sql.Row) (*models.Document, error) {
	var doc models.Document
	var clusterID sql.NullInt64
	err := row.Scan(&doc.ID, &doc.SourceID, &doc.Title, &doc.Content, &doc.SourceType,
		&doc.ContentHash, &clusterID, &doc.CreatedAt, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if clusterID.Valid {
		doc.ClusterID = clusterID.Int64
	} else {
		doc.ClusterID = models.Unclustered
	}
	return &doc, nil
}

// DeleteDocument removes a document, its concepts, and its cluster
// membership rows.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cluster_members WHERE doc_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// ListDocuments returns documents newest-first with offset and limit.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, title, content, source_type, content_hash, cluster_id, created_at, updated_at
		 FROM documents ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func scanDocuments(rows *sql.Rows) ([]*models.Document, error) {
	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		var clusterID sql.NullInt64
		if err := rows.Scan(&doc.ID, &doc.SourceID, &doc.Title, &doc.Content, &doc.SourceType,
			&doc.ContentHash, &clusterID, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		if clusterID.Valid {
			doc.ClusterID = clusterID.Int64
		} else {
			doc.ClusterID = models.Unclustered
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// SetDocumentCluster records which cluster a document belongs to.
func (s *SQLiteStorage) SetDocumentCluster(ctx context.Context, docID, clusterID int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET cluster_id = ?, updated_at = ? WHERE id = ?`,
		clusterID, time.Now(), docID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document %d: %w", docID, ErrNotFound)
	}
	return nil
}

// SaveConcepts replaces the stored concepts for a document.
func (s *SQLiteStorage) SaveConcepts(ctx context.Context, docID int64, concepts []models.Concept) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM concepts WHERE doc_id = ?`, docID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO concepts (doc_id, name, category, confidence) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range concepts {
		if _, err := stmt.ExecContext(ctx, docID, c.Name, c.Category, c.Confidence); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetConcepts returns the stored concepts for a document.
func (s *SQLiteStorage) GetConcepts(ctx context.Context, docID int64) ([]models.Concept, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, category, confidence FROM concepts WHERE doc_id = ? ORDER BY rowid`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var concepts []models.Concept
	for rows.Next() {
		var c models.Concept
		if err := rows.Scan(&c.Name, &c.Category, &c.Confidence); err != nil {
			return nil, err
		}
		concepts = append(concepts, c)
	}
	return concepts, rows.Err()
}

// SaveCluster upserts a cluster's identity row. Membership is stored
// separately through AddClusterMember.
func (s *SQLiteStorage) SaveCluster(ctx context.Context, c *models.Cluster) error {
	conceptsJSON, err := json.Marshal(c.PrimaryConcepts)
	if err != nil {
		return fmt.Errorf("failed to marshal primary concepts: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO clusters (id, name, primary_concepts, skill_level) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name,
		   primary_concepts = excluded.primary_concepts,
		   skill_level = excluded.skill_level`,
		c.ID, c.Name, string(conceptsJSON), string(c.SkillLevel),
	)
	return err
}

// AddClusterMember records a document's membership. Re-inserting an
// existing member is a no-op, matching the in-memory table's policy.
func (s *SQLiteStorage) AddClusterMember(ctx context.Context, clusterID, docID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO cluster_members (cluster_id, doc_id) VALUES (?, ?)`,
		clusterID, docID,
	)
	return err
}

// ListClusters returns all clusters with their members, sorted by id.
func (s *SQLiteStorage) ListClusters(ctx context.Context) ([]models.Cluster, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, primary_concepts, skill_level FROM clusters ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clusters []models.Cluster
	byID := make(map[int64]int)
	for rows.Next() {
		var c models.Cluster
		var conceptsJSON, level string
		if err := rows.Scan(&c.ID, &c.Name, &conceptsJSON, &level); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(conceptsJSON), &c.PrimaryConcepts); err != nil {
			return nil, fmt.Errorf("cluster %d: failed to unmarshal primary concepts: %w", c.ID, err)
		}
		c.SkillLevel = models.ParseSkillLevel(level)
		byID[c.ID] = len(clusters)
		clusters = append(clusters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	memberRows, err := s.db.QueryContext(ctx,
		`SELECT cluster_id, doc_id FROM cluster_members ORDER BY cluster_id, doc_id`)
	if err != nil {
		return nil, err
	}
	defer memberRows.Close()

	for memberRows.Next() {
		var clusterID, docID int64
		if err := memberRows.Scan(&clusterID, &docID); err != nil {
			return nil, err
		}
		if i, ok := byID[clusterID]; ok {
			clusters[i].MemberDocIDs = append(clusters[i].MemberDocIDs, docID)
		}
	}
	if err := memberRows.Err(); err != nil {
		return nil, err
	}

	for i := range clusters {
		clusters[i].DocCount = len(clusters[i].MemberDocIDs)
	}
	return clusters, nil
}

// LoadEngineState reads every document and cluster for engine
// rehydration at startup.
func (s *SQLiteStorage) LoadEngineState(ctx context.Context) (*EngineState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, title, content, source_type, content_hash, cluster_id, created_at, updated_at
		 FROM documents ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, err
	}

	clusters, err := s.ListClusters(ctx)
	if err != nil {
		return nil, err
	}
	return &EngineState{Documents: docs, Clusters: clusters}, nil
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountClusters returns the total number of clusters.
func (s *SQLiteStorage) CountClusters(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clusters`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// nullableID maps the sentinel -1 (unclustered) to SQL NULL.
func nullableID(id int64) any {
	if id < 0 {
		return nil
	}
	return id
}
