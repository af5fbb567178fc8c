package config

import (
	"os"
	"testing"
)

func saveEnv() map[string]string {
	env := make(map[string]string)
	for _, e := range os.Environ() {
		if i := indexByte(e, '='); i >= 0 {
			env[e[:i]] = e[i+1:]
		}
	}
	return env
}

func restoreEnv(env map[string]string) {
	os.Clearenv()
	for k, v := range env {
		os.Setenv(k, v)
	}
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func TestNewDefaultConfig_AppliesDocumentedDefaults(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.FileStoreType != FileStoreUnset {
		t.Errorf("FileStoreType = %q, want unset", cfg.FileStoreType)
	}
	if cfg.StoreType != VectorStoreDevNull {
		t.Errorf("StoreType = %q, want dev-null", cfg.StoreType)
	}
	if cfg.FilesizeThreshold != defaultFilesizeThreshold {
		t.Errorf("FilesizeThreshold = %d, want %d", cfg.FilesizeThreshold, defaultFilesizeThreshold)
	}
	if cfg.HTTPPort != 9090 {
		t.Errorf("HTTPPort = %d, want 9090", cfg.HTTPPort)
	}
	if cfg.ShutdownTimeoutSeconds != 10 {
		t.Errorf("ShutdownTimeoutSeconds = %d, want 10", cfg.ShutdownTimeoutSeconds)
	}
	if cfg.LibreOfficeBinary != "soffice" {
		t.Errorf("LibreOfficeBinary = %q, want soffice", cfg.LibreOfficeBinary)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}
}

func TestLoadWithFile_AppliesEnvironmentOverrides(t *testing.T) {
	original := saveEnv()
	defer restoreEnv(original)

	os.Clearenv()
	os.Setenv("HTTP_PORT", "8080")
	os.Setenv("BATCH_SIZE", "50")
	os.Setenv("STORE_TYPE", "dev-null")

	cfg, err := LoadWithFile("")
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v", err)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("HTTPPort = %d, want 8080", cfg.HTTPPort)
	}
	if cfg.BatchSize != 50 {
		t.Errorf("BatchSize = %d, want 50", cfg.BatchSize)
	}
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		cfg := NewDefaultConfig()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "negative batch size",
			mutate: func(c *Config) {
				c.BatchSize = -1
			},
			wantErr: true,
		},
		{
			name: "http port out of range",
			mutate: func(c *Config) {
				c.HTTPPort = 70000
			},
			wantErr: true,
		},
		{
			name: "negative shutdown timeout",
			mutate: func(c *Config) {
				c.ShutdownTimeoutSeconds = -1
			},
			wantErr: true,
		},
		{
			name: "filesystem store without basepath",
			mutate: func(c *Config) {
				c.FileStoreType = FileStoreFilesystem
			},
			wantErr: true,
		},
		{
			name: "filesystem store with basepath",
			mutate: func(c *Config) {
				c.FileStoreType = FileStoreFilesystem
				c.FileStoreFilesystemPath = "/tmp/reis-engine"
			},
			wantErr: false,
		},
		{
			name: "s3 store missing bucket",
			mutate: func(c *Config) {
				c.FileStoreType = FileStoreS3
				c.S3.RegionName = "us-east-1"
			},
			wantErr: true,
		},
		{
			name: "pgvector store missing dsn",
			mutate: func(c *Config) {
				c.StoreType = VectorStorePgvector
			},
			wantErr: true,
		},
		{
			name: "azure search store missing endpoint",
			mutate: func(c *Config) {
				c.StoreType = VectorStoreAzureAISearch
				c.AzureAISearchIndex = "chunks"
			},
			wantErr: true,
		},
		{
			name: "unknown store type",
			mutate: func(c *Config) {
				c.StoreType = "unknown"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_BlobStoreEnabled(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.BlobStoreEnabled() {
		t.Error("BlobStoreEnabled() = true, want false when file_store_type is unset")
	}
	cfg.FileStoreType = FileStoreFilesystem
	if !cfg.BlobStoreEnabled() {
		t.Error("BlobStoreEnabled() = false, want true when file_store_type is filesystem")
	}
}

func TestConfig_MetricsEnabled(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.MetricsEnabled() {
		t.Error("MetricsEnabled() = true, want false when metrics_port is 0")
	}
	cfg.MetricsPort = 9100
	if !cfg.MetricsEnabled() {
		t.Error("MetricsEnabled() = false, want true when metrics_port is set")
	}
}
