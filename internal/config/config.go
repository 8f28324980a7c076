package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the main configuration for sdb. One config guards exactly one
// database file; running several stores means several configs.
type Config struct {
	HostID     string           `toml:"host_id"`
	DBPath     string           `toml:"db_path"`
	LogDir     string           `toml:"log_dir"`
	Backup     BackupConfig     `toml:"backup"`
	Encryption EncryptionConfig `toml:"encryption"`
	Remote     RemoteConfig     `toml:"remote"`
}

// BackupConfig controls the snapshot subsystem.
type BackupConfig struct {
	RetentionDays      int  `toml:"retention_days"`
	MinIntervalSeconds int  `toml:"min_interval_seconds"`
	Encrypt            bool `toml:"encrypt"`
}

// EncryptionConfig holds paths to the age key pair used for snapshot
// encryption.
type EncryptionConfig struct {
	Type          string `toml:"type"` // "age" (default) or "test"
	RecipientPath string `toml:"recipient_path"`
	IdentityPath  string `toml:"identity_path"`
}

// RemoteConfig configures the remote store backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type RemoteConfig struct {
	Type   string `toml:"type"` // "drive", "s3", "memory", or "" for none
	FileID string `toml:"file_id"`

	// Drive-specific fields (only used when Type == "drive")
	CredentialsPath string `toml:"credentials_path,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// NewConfig creates a Config with the provided values and default backup
// policy and key paths.
func NewConfig(hostID, dbPath, baseDir string) *Config {
	return &Config{
		HostID: hostID,
		DBPath: dbPath,
		LogDir: filepath.Join(baseDir, "log"),
		Backup: BackupConfig{
			RetentionDays:      14,
			MinIntervalSeconds: 120,
		},
		Encryption: EncryptionConfig{
			RecipientPath: filepath.Join(baseDir, "keys", "sdb.pub"),
			IdentityPath:  filepath.Join(baseDir, "keys", "sdb.key"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
