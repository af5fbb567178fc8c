// Package config provides configuration loading for the engine.
package config

import (
	"fmt"
)

// FileStoreType selects the blob store backend.
type FileStoreType string

const (
	FileStoreUnset      FileStoreType = ""
	FileStoreFilesystem FileStoreType = "filesystem"
	FileStoreS3         FileStoreType = "s3"
)

// VectorStoreType selects the vector store backend.
type VectorStoreType string

const (
	VectorStorePgvector      VectorStoreType = "pgvector"
	VectorStoreAzureAISearch VectorStoreType = "azure-ai-search"
	VectorStoreDevNull       VectorStoreType = "dev-null"
)

// S3Config holds object-store credentials and target bucket, used when
// FileStoreType is FileStoreS3.
type S3Config struct {
	EndpointURL     string `koanf:"file_store_s3_endpoint_url"`
	AccessKeyID     Secret `koanf:"file_store_s3_access_key_id"`
	SecretAccessKey Secret `koanf:"file_store_s3_secret_access_key"`
	RegionName      string `koanf:"file_store_s3_region_name"`
	BucketName      string `koanf:"file_store_s3_bucket_name"`
}

// Config is the engine's full configuration surface, flat by design to
// mirror the way its values arrive as environment variables.
type Config struct {
	FileStoreType           FileStoreType `koanf:"file_store_type"`
	FileStoreFilesystemPath string        `koanf:"file_store_filesystem_basepath"`
	S3                      S3Config      `koanf:",squash"`

	StoreType VectorStoreType `koanf:"store_type"`

	BatchSize         int `koanf:"batch_size"`
	FilesizeThreshold int `koanf:"filesize_threshold"`
	Workers           int `koanf:"workers"`
	MetricsPort       int `koanf:"metrics_port"`

	TmpFilesRoot string `koanf:"tmp_files_root"`

	PgvectorDSN   Secret `koanf:"pgvector_dsn"`
	PgvectorTable string `koanf:"pgvector_table"`

	AzureAISearchEndpoint string `koanf:"azure_ai_search_endpoint"`
	AzureAISearchAPIKey   Secret `koanf:"azure_ai_search_api_key"`
	AzureAISearchIndex    string `koanf:"azure_ai_search_index"`

	EmbeddingsBaseURL string `koanf:"embeddings_base_url"`
	EmbeddingsModel   string `koanf:"embeddings_model"`
	EmbeddingsAPIKey  Secret `koanf:"embeddings_api_key"`

	HTTPPort                int `koanf:"http_port"`
	ShutdownTimeoutSeconds  int `koanf:"shutdown_timeout_seconds"`

	LibreOfficeBinary string `koanf:"libreoffice_binary"`
	WkhtmltopdfBinary string `koanf:"wkhtmltopdf_binary"`

	Logging loggingSection `koanf:"logging"`
}

// loggingSection carries the subset of internal/logging.Config's koanf keys
// (level, format, fields) that cmd/reis-engine applies to the logger. Level
// stays a string here and is parsed into a zapcore.Level by the caller.
type loggingSection struct {
	Level  string            `koanf:"level"`
	Format string            `koanf:"format"`
	Fields map[string]string `koanf:"fields"`
}

const defaultFilesizeThreshold = 100_000 // 10^5 bytes

// NewDefaultConfig returns a Config with every documented default applied.
func NewDefaultConfig() *Config {
	return &Config{
		FileStoreType:     FileStoreUnset,
		StoreType:         VectorStoreDevNull,
		FilesizeThreshold: defaultFilesizeThreshold,
		Workers:           4,
		TmpFilesRoot:      "/tmp",
		PgvectorTable:     "chunks",
		EmbeddingsBaseURL: "http://localhost:8080",
		EmbeddingsModel:   "BAAI/bge-small-en-v1.5",
		HTTPPort:               9090,
		ShutdownTimeoutSeconds: 10,
		LibreOfficeBinary:      "soffice",
		WkhtmltopdfBinary:      "wkhtmltopdf",
		Logging: loggingSection{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for internally inconsistent values.
// It does not check reachability of external systems (network, disk).
func (c *Config) Validate() error {
	switch c.FileStoreType {
	case FileStoreUnset, FileStoreFilesystem, FileStoreS3:
	default:
		return fmt.Errorf("file_store_type must be one of unset, filesystem, s3, got %q", c.FileStoreType)
	}
	if c.FileStoreType == FileStoreFilesystem && c.FileStoreFilesystemPath == "" {
		return fmt.Errorf("file_store_filesystem_basepath is required when file_store_type=filesystem")
	}
	if c.FileStoreType == FileStoreS3 {
		if c.S3.BucketName == "" {
			return fmt.Errorf("file_store_s3_bucket_name is required when file_store_type=s3")
		}
		if c.S3.RegionName == "" {
			return fmt.Errorf("file_store_s3_region_name is required when file_store_type=s3")
		}
	}

	switch c.StoreType {
	case VectorStorePgvector, VectorStoreAzureAISearch, VectorStoreDevNull:
	default:
		return fmt.Errorf("store_type must be one of pgvector, azure-ai-search, dev-null, got %q", c.StoreType)
	}
	if c.StoreType == VectorStorePgvector && !c.PgvectorDSN.IsSet() {
		return fmt.Errorf("pgvector_dsn is required when store_type=pgvector")
	}
	if c.StoreType == VectorStoreAzureAISearch {
		if c.AzureAISearchEndpoint == "" {
			return fmt.Errorf("azure_ai_search_endpoint is required when store_type=azure-ai-search")
		}
		if c.AzureAISearchIndex == "" {
			return fmt.Errorf("azure_ai_search_index is required when store_type=azure-ai-search")
		}
	}

	if c.BatchSize < 0 {
		return fmt.Errorf("batch_size cannot be negative, got %d", c.BatchSize)
	}
	if c.FilesizeThreshold < 0 {
		return fmt.Errorf("filesize_threshold cannot be negative, got %d", c.FilesizeThreshold)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", c.Workers)
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("metrics_port out of range: %d", c.MetricsPort)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http_port out of range: %d", c.HTTPPort)
	}
	if c.ShutdownTimeoutSeconds < 0 {
		return fmt.Errorf("shutdown_timeout_seconds cannot be negative, got %d", c.ShutdownTimeoutSeconds)
	}
	if c.TmpFilesRoot == "" {
		return fmt.Errorf("tmp_files_root cannot be empty")
	}

	return nil
}

// BlobStoreEnabled reports whether a blob store variant is configured.
func (c *Config) BlobStoreEnabled() bool {
	return c.FileStoreType != FileStoreUnset
}

// MetricsEnabled reports whether /metrics is served, which is the case for
// any non-zero metrics_port. The endpoint is mounted on the HTTP listener
// (http_port); no separate listener is opened on metrics_port.
func (c *Config) MetricsEnabled() bool {
	return c.MetricsPort != 0
}
