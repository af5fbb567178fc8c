package config

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// setupTestHome creates a temporary home directory for testing.
// Returns the home dir path and a cleanup function.
func setupTestHome(t *testing.T) (string, func()) {
	t.Helper()

	tmpHome := t.TempDir()
	originalHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpHome)

	cleanup := func() {
		if originalHome != "" {
			os.Setenv("HOME", originalHome)
		} else {
			os.Unsetenv("HOME")
		}
	}

	return tmpHome, cleanup
}

func writeConfigFile(t *testing.T, home, content string, perm os.FileMode) string {
	t.Helper()
	configDir := filepath.Join(home, ".config", "reis-engine")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), perm); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

// TestLoadWithFile_ValidYAML tests loading configuration from a valid YAML file.
func TestLoadWithFile_ValidYAML(t *testing.T) {
	home, cleanup := setupTestHome(t)
	defer cleanup()

	configPath := writeConfigFile(t, home, "http_port: 9191\nstore_type: dev-null\n", 0600)

	cfg, err := LoadWithFile(configPath)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.HTTPPort != 9191 {
		t.Errorf("HTTPPort = %d, want 9191", cfg.HTTPPort)
	}
	if cfg.StoreType != VectorStoreDevNull {
		t.Errorf("StoreType = %q, want dev-null", cfg.StoreType)
	}
}

// TestLoadWithFile_EnvironmentOverride tests that environment variables override YAML.
func TestLoadWithFile_EnvironmentOverride(t *testing.T) {
	home, cleanup := setupTestHome(t)
	defer cleanup()

	configPath := writeConfigFile(t, home, "http_port: 9191\nstore_type: dev-null\n", 0600)

	os.Setenv("HTTP_PORT", "7777")
	os.Setenv("STORE_TYPE", "dev-null")
	defer os.Unsetenv("HTTP_PORT")
	defer os.Unsetenv("STORE_TYPE")

	cfg, err := LoadWithFile(configPath)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.HTTPPort != 7777 {
		t.Errorf("HTTPPort = %d, want 7777 (from env override)", cfg.HTTPPort)
	}
}

// TestLoadWithFile_MissingFile tests handling of a missing config file.
func TestLoadWithFile_MissingFile(t *testing.T) {
	home, cleanup := setupTestHome(t)
	defer cleanup()

	configPath := filepath.Join(home, ".config", "reis-engine", "config.yaml")

	cfg, err := LoadWithFile(configPath)
	if err != nil {
		t.Fatalf("LoadWithFile() should not error on missing file, got: %v", err)
	}
	if cfg == nil {
		t.Error("LoadWithFile() returned nil config for missing file")
	}
	if cfg.StoreType != VectorStoreDevNull {
		t.Errorf("StoreType = %q, want default dev-null", cfg.StoreType)
	}
}

// TestLoadWithFile_EmptyPath tests that an empty path loads defaults without
// touching the filesystem.
func TestLoadWithFile_EmptyPath(t *testing.T) {
	cfg, err := LoadWithFile("")
	if err != nil {
		t.Fatalf("LoadWithFile(\"\") error = %v, want nil", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		t.Errorf("HTTPPort = %d, want valid port (1-65535)", cfg.HTTPPort)
	}
}

// TestLoadWithFile_InvalidYAML tests handling of malformed YAML.
func TestLoadWithFile_InvalidYAML(t *testing.T) {
	home, cleanup := setupTestHome(t)
	defer cleanup()

	configPath := writeConfigFile(t, home, "http_port: [not valid\n", 0600)

	if _, err := LoadWithFile(configPath); err == nil {
		t.Error("LoadWithFile() should error on invalid YAML, got nil")
	}
}

// TestLoadWithFile_Validation tests that an invalid resulting config fails.
func TestLoadWithFile_Validation(t *testing.T) {
	home, cleanup := setupTestHome(t)
	defer cleanup()

	configPath := writeConfigFile(t, home, "http_port: 99999\n", 0600)

	if _, err := LoadWithFile(configPath); err == nil {
		t.Error("LoadWithFile() should error on invalid port, got nil")
	}
}

// TestLoadWithFile_PathTraversal tests path traversal attack prevention.
func TestLoadWithFile_PathTraversal(t *testing.T) {
	_, cleanup := setupTestHome(t)
	defer cleanup()

	_, err := LoadWithFile("../../../../etc/passwd")
	if err == nil {
		t.Error("expected error for path traversal, got nil")
	}
	if !strings.Contains(err.Error(), "must be in ~/.config/reis-engine/ or /etc/reis-engine/") {
		t.Errorf("expected path validation error, got: %v", err)
	}
}

// TestLoadWithFile_InsecurePermissions tests file permission enforcement.
func TestLoadWithFile_InsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}

	home, cleanup := setupTestHome(t)
	defer cleanup()

	configPath := writeConfigFile(t, home, "http_port: 9090\n", 0644)

	_, err := LoadWithFile(configPath)
	if err == nil {
		t.Error("expected error for insecure permissions, got nil")
	}
	if !strings.Contains(err.Error(), "insecure") {
		t.Errorf("expected 'insecure' error, got: %v", err)
	}
}

// TestLoadWithFile_SecurePermissions tests that 0600 permissions are accepted.
func TestLoadWithFile_SecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}

	home, cleanup := setupTestHome(t)
	defer cleanup()

	configPath := writeConfigFile(t, home, "http_port: 9090\n", 0600)

	cfg, err := LoadWithFile(configPath)
	if err != nil {
		t.Fatalf("LoadWithFile() should succeed with 0600 permissions, got error: %v", err)
	}
	if cfg.HTTPPort != 9090 {
		t.Errorf("HTTPPort = %d, want 9090", cfg.HTTPPort)
	}
}

// TestLoadWithFile_FileTooLarge tests file size limit enforcement.
func TestLoadWithFile_FileTooLarge(t *testing.T) {
	home, cleanup := setupTestHome(t)
	defer cleanup()

	largeContent := string(bytes.Repeat([]byte("# comment line\n"), 150000))
	configPath := writeConfigFile(t, home, largeContent, 0600)

	_, err := LoadWithFile(configPath)
	if err == nil {
		t.Error("expected error for large file, got nil")
	}
	if !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected 'too large' error, got: %v", err)
	}
}
