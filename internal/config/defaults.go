package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/cropsage/data/db/cropsage.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/cropsage/data/indices/bleve"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/cropsage/data/indices/passages.vec"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/cropsage/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Retrieval.DefaultLimit == 0 {
		cfg.Retrieval.DefaultLimit = 8
	}
	if cfg.Retrieval.MaxLimit == 0 {
		cfg.Retrieval.MaxLimit = 50
	}
	if cfg.Retrieval.ContextTopK == 0 {
		cfg.Retrieval.ContextTopK = 5
	}
	if cfg.Retrieval.MMRLambda == 0 {
		cfg.Retrieval.MMRLambda = 0.6
	}
	if cfg.Synthesis.Model == "" {
		cfg.Synthesis.Model = "claude-sonnet-4-20250514"
	}
	if cfg.Synthesis.MaxTokens == 0 {
		cfg.Synthesis.MaxTokens = 2048
	}
	if cfg.Synthesis.Timeout == "" {
		cfg.Synthesis.Timeout = "30s"
	}
	if cfg.Compliance.MaxSingleRate == 0 {
		cfg.Compliance.MaxSingleRate = 10
	}
	if cfg.Compliance.MaxSeasonalDose == 0 {
		cfg.Compliance.MaxSeasonalDose = 25000
	}
	if cfg.Compliance.RuleVersion == "" {
		cfg.Compliance.RuleVersion = "2024.1"
	}
	if cfg.Ingest.MinChunkTokens == 0 {
		cfg.Ingest.MinChunkTokens = 180
	}
	if cfg.Ingest.MaxChunkTokens == 0 {
		cfg.Ingest.MaxChunkTokens = 520
	}
	if cfg.Ingest.OverlapTokens == 0 {
		cfg.Ingest.OverlapTokens = 60
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".txt", ".md", ".pdf", ".docx", ".odt", ".rtf", ".xlsx"}
	}
	if cfg.Worker.BatchSize == 0 {
		cfg.Worker.BatchSize = 4
	}
	if cfg.Worker.PollInterval == "" {
		cfg.Worker.PollInterval = "2s"
	}
	if cfg.Worker.MaxAttempts == 0 {
		cfg.Worker.MaxAttempts = 3
	}
}
