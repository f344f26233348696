// Package config loads and validates the Cedar Pulpit configuration file.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains data directory configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`  // Blob store and local state
	CacheDB  string `toml:"cache_db"`  // Server-side SQLite database
	BlobsMax int64  `toml:"blobs_max"` // Blob store byte bound (0 = unbounded)
}

// Providers contains content provider configuration.
type Providers struct {
	PrimaryURL         string `toml:"primary_url"`
	SecondaryURL       string `toml:"secondary_url"`
	DefaultTranslation string `toml:"default_translation"`
}

// Cache contains client chapter cache tuning.
type Cache struct {
	MaxSize    int `toml:"max_size"`
	MaxAgeDays int `toml:"max_age_days"`
}

// Server contains API server configuration.
type Server struct {
	Port           int      `toml:"port"`
	AuthEnabled    bool     `toml:"auth_enabled"`
	APIKey         string   `toml:"api_key"`
	JWTSecret      string   `toml:"jwt_secret"`
	TLSEnabled     bool     `toml:"tls_enabled"`
	TLSCertFile    string   `toml:"tls_cert_file"`
	TLSKeyFile     string   `toml:"tls_key_file"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Sync contains sermon sync client configuration.
type Sync struct {
	ServerURL      string `toml:"server_url"`
	APIKey         string `toml:"api_key"`
	ConflictPolicy string `toml:"conflict_policy"` // "local-first" or "cloud-first"
	PageSize       int    `toml:"page_size"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values for Cedar Pulpit.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Providers Providers `toml:"providers"`
	Cache     Cache     `toml:"cache"`
	Server    Server    `toml:"server"`
	Sync      Sync      `toml:"sync"`
	Logging   Logging   `toml:"logging"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: "~/.local/share/cedarpulpit",
			CacheDB: "~/.local/share/cedarpulpit/pulpit.db",
		},
		Providers: Providers{
			PrimaryURL:         "https://bible-api.com",
			SecondaryURL:       "https://api.scripture.example.com/v1",
			DefaultTranslation: "web",
		},
		Cache: Cache{
			MaxSize:    50,
			MaxAgeDays: 30,
		},
		Server: Server{
			Port: 8750,
		},
		Sync: Sync{
			ConflictPolicy: "local-first",
			PageSize:       50,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultConfigPath returns the absolute path to the default
// configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/cedarpulpit/config.toml")
}

// Load locates, parses, and validates a configuration file. The
// returned config has all path fields expanded. A missing file yields
// the defaults; exists reports whether a file was read.
func Load(path string) (cfg *Config, resolvedPath string, exists bool, err error) {
	c := Default()

	resolvedPath, exists, err = resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&c); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := c.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := c.Validate(); err != nil {
		return nil, "", false, err
	}

	return &c, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("pulpit.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.CacheDB, err = expandPath(c.Paths.CacheDB); err != nil {
		return err
	}
	c.Providers.DefaultTranslation = strings.ToLower(strings.TrimSpace(c.Providers.DefaultTranslation))
	c.Sync.ConflictPolicy = strings.ToLower(strings.TrimSpace(c.Sync.ConflictPolicy))
	return nil
}

// Validate checks cross-field constraints that TOML decoding cannot.
func (c *Config) Validate() error {
	if c.Cache.MaxSize < 1 {
		return fmt.Errorf("cache.max_size must be at least 1 (got %d)", c.Cache.MaxSize)
	}
	if c.Cache.MaxAgeDays < 1 {
		return fmt.Errorf("cache.max_age_days must be at least 1 (got %d)", c.Cache.MaxAgeDays)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535 (got %d)", c.Server.Port)
	}
	if c.Server.TLSEnabled && (c.Server.TLSCertFile == "" || c.Server.TLSKeyFile == "") {
		return fmt.Errorf("server.tls_cert_file and server.tls_key_file are required when TLS is enabled")
	}
	switch c.Sync.ConflictPolicy {
	case "", "local-first", "cloud-first":
	default:
		return fmt.Errorf("sync.conflict_policy must be local-first or cloud-first (got %q)", c.Sync.ConflictPolicy)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json (got %q)", c.Logging.Format)
	}
	return nil
}

// EnsureDirectories creates the directories the tool writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir}
	if db := filepath.Dir(c.Paths.CacheDB); db != "." {
		dirs = append(dirs, db)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
