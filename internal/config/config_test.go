package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "./data/db/documents.db"
inbox:
  directory: "./inbox"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "documents.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	wantInbox := filepath.Join(dir, "inbox")
	if cfg.Inbox.Directory != wantInbox {
		t.Errorf("inbox directory = %s, want %s", cfg.Inbox.Directory, wantInbox)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Engine.SimilarityThreshold != 0.5 {
		t.Errorf("default similarity_threshold: got %f", cfg.Engine.SimilarityThreshold)
	}
	if cfg.Engine.ClusterNameBonus != 0.2 {
		t.Errorf("default cluster_name_bonus: got %f", cfg.Engine.ClusterNameBonus)
	}
	if cfg.Engine.MaxPrimaryConcepts != 5 {
		t.Errorf("default max_primary_concepts: got %d", cfg.Engine.MaxPrimaryConcepts)
	}
	if cfg.Search.DefaultLimit != 10 {
		t.Errorf("default limit: got %d", cfg.Search.DefaultLimit)
	}
	if cfg.Search.KeywordWeight != 0.5 || cfg.Search.SemanticWeight != 0.5 {
		t.Errorf("default weights: got keyword=%f semantic=%f",
			cfg.Search.KeywordWeight, cfg.Search.SemanticWeight)
	}
	if cfg.Inbox.Extensions == nil {
		t.Error("inbox extensions should be set by default")
	}
	if len(cfg.Inbox.Extensions) != 6 || cfg.Inbox.Extensions[0] != ".txt" {
		t.Errorf("inbox extensions: got %v", cfg.Inbox.Extensions)
	}
	if cfg.Inbox.DebounceMS != 500 {
		t.Errorf("default debounce_ms: got %d", cfg.Inbox.DebounceMS)
	}
}

func TestApplyDefaults_KeepsExplicitWeights(t *testing.T) {
	cfg := &Config{Search: SearchConfig{KeywordWeight: 0.8}}
	ApplyDefaults(cfg)
	if cfg.Search.KeywordWeight != 0.8 || cfg.Search.SemanticWeight != 0 {
		t.Errorf("explicit weights should be kept: got keyword=%f semantic=%f",
			cfg.Search.KeywordWeight, cfg.Search.SemanticWeight)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}
