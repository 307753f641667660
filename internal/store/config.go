package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Persistence backends selectable in config.
const (
	PersistenceSQLite = "sqlite"
	PersistenceMongo  = "mongo"
	PersistenceNone   = "none"
)

type Config struct {
	CurrentPage string `toml:"current_page,omitempty"`

	// DuplicateInheritsLock keeps the source's lock flag on duplicates.
	DuplicateInheritsLock bool `toml:"duplicate_inherits_lock,omitempty"`

	// DefaultRemovePolicy is one of cascade, promote, reject.
	DefaultRemovePolicy string `toml:"default_remove_policy,omitempty"`

	LogLevel string `toml:"log_level,omitempty"`

	Persistence   string `toml:"persistence,omitempty"`
	MongoURI      string `toml:"mongo_uri,omitempty"`
	MongoDatabase string `toml:"mongo_database,omitempty"`

	// ComponentsFile points at a components.toml; empty means the builtin palette.
	ComponentsFile string `toml:"components_file,omitempty"`
}

// Normalized returns cfg with defaults filled in.
func (cfg Config) Normalized() Config {
	if strings.TrimSpace(cfg.DefaultRemovePolicy) == "" {
		cfg.DefaultRemovePolicy = "reject"
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if strings.TrimSpace(cfg.Persistence) == "" {
		cfg.Persistence = PersistenceSQLite
	}
	if strings.TrimSpace(cfg.MongoDatabase) == "" {
		cfg.MongoDatabase = "pagetree"
	}
	return cfg
}

func (cfg Config) Validate() error {
	switch cfg.Persistence {
	case "", PersistenceSQLite, PersistenceNone:
	case PersistenceMongo:
		if strings.TrimSpace(cfg.MongoURI) == "" {
			return errors.New("config: persistence = \"mongo\" requires mongo_uri")
		}
	default:
		return fmt.Errorf("config: unknown persistence %q (want sqlite, mongo or none)", cfg.Persistence)
	}
	switch cfg.DefaultRemovePolicy {
	case "", "cascade", "promote", "reject":
	default:
		return fmt.Errorf("config: unknown default_remove_policy %q", cfg.DefaultRemovePolicy)
	}
	return nil
}

func ConfigDir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.pagetree).
	if v := strings.TrimSpace(os.Getenv("PAGETREE_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, dirName), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LoadConfig reads the config file. A missing file yields the zero Config.
func LoadConfig() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadConfigFile(path)
}

// LoadConfigFile is LoadConfig for an explicit path.
func LoadConfigFile(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}

func SaveConfig(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveConfigFile(path, cfg)
}

func SaveConfigFile(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return err
	}
	// CLI, TUI and web server may write config concurrently.
	return atomicWriteFile(dir, "config.toml.*.tmp", path, buf.Bytes(), 0o600)
}
