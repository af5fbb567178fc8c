// Package config provides configuration loading for the engine.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB
)

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (file_store_type, batch_size, TMP_FILES_ROOT, ...)
//  2. YAML config file
//  3. Hardcoded defaults
//
// The configPath parameter specifies the YAML file to load. If empty, no
// file is loaded and configuration comes entirely from environment and
// defaults. A configPath that passes path validation but names a file that
// does not exist is treated the same way.
//
// # Security Considerations
//
// File Permissions: a loaded configuration file must have 0600 or 0400
// permissions (not checked on Windows). Files with other permissions are
// rejected.
//
// Path Validation: only configuration files in allowed directories can be
// loaded: the user's config directory, or /etc/<app>/. Absolute paths
// outside these directories are rejected to prevent path traversal.
//
// File Size Limit: configuration files larger than 1MB are rejected.
//
// # Environment Variable Mapping
//
// Every configuration key is a flat, lowercase, underscore-separated name
// (e.g. file_store_type, batch_size). Environment variables are matched
// case-insensitively against these names directly, with no section
// splitting.
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if err := validateConfigPath(configPath); err != nil {
			return nil, fmt.Errorf("config path validation failed: %w", err)
		}
	}

	// A config file that does not exist yet is skipped: configuration then
	// comes from environment and defaults alone.
	if _, statErr := os.Stat(configPath); configPath != "" && !os.IsNotExist(statErr) {
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Every key is already flat (e.g. "file_store_s3_access_key_id"), so the
	// transformer only lowercases the variable name.
	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := NewDefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// TMP_FILES_ROOT is documented as an environment-only override; koanf's
	// lowercase transform already captures it as tmp_files_root, but read it
	// explicitly too so an empty env var never displaces the default.
	if root := os.Getenv("TMP_FILES_ROOT"); root != "" {
		cfg.TmpFilesRoot = root
	} else if cfg.TmpFilesRoot == "" {
		cfg.TmpFilesRoot = NewDefaultConfig().TmpFilesRoot
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfigPath checks if path is in allowed directories.
// This validation runs even if the file doesn't exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		// Allows validation of paths that don't exist yet.
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", "reis-engine"),
		"/etc/reis-engine",
	}

	allowed := false
	for _, dir := range allowedDirs {
		if resolvedPath == dir || strings.HasPrefix(resolvedPath, dir+string(filepath.Separator)) {
			allowed = true
			break
		}
	}

	if !allowed {
		return fmt.Errorf("config file must be in ~/.config/reis-engine/ or /etc/reis-engine/")
	}

	return nil
}

// validateConfigFileProperties checks file permissions and size.
// Takes FileInfo from an already-opened file descriptor to avoid TOCTOU race.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}

// EnsureConfigDir creates the engine's config directory if it doesn't exist.
func EnsureConfigDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(home, ".config", "reis-engine")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}

	return nil
}
