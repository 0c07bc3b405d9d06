package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/manabi/data/db/documents.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/manabi/data/indices/bleve"
	}
	if cfg.Engine.SimilarityThreshold == 0 {
		cfg.Engine.SimilarityThreshold = 0.5
	}
	if cfg.Engine.ClusterNameBonus == 0 {
		cfg.Engine.ClusterNameBonus = 0.2
	}
	if cfg.Engine.MaxPrimaryConcepts == 0 {
		cfg.Engine.MaxPrimaryConcepts = 5
	}
	if cfg.Engine.ConceptCount == 0 {
		cfg.Engine.ConceptCount = 8
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Search.TopKCandidates == 0 {
		cfg.Search.TopKCandidates = 100
	}
	if cfg.Search.KeywordTitleBoost == 0 {
		cfg.Search.KeywordTitleBoost = 3.0
	}
	if cfg.Search.KeywordWeight == 0 && cfg.Search.SemanticWeight == 0 {
		cfg.Search.KeywordWeight = 0.5
		cfg.Search.SemanticWeight = 0.5
	}
	if cfg.Inbox.Extensions == nil {
		cfg.Inbox.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx"}
	}
	if cfg.Inbox.DebounceMS == 0 {
		cfg.Inbox.DebounceMS = 500
	}
}
