package config_test

import (
	"bytes"
	"path/filepath"
	"reflect"
	"testing"

	"sdb-go/internal/config"
)

func TestNewConfig(t *testing.T) {
	cfg := config.NewConfig("host-1", "/data/roster.db", "/home/erik/.local/share/sdb")

	if cfg.HostID != "host-1" {
		t.Errorf("HostID = %s, want host-1", cfg.HostID)
	}
	if cfg.Backup.RetentionDays != 14 {
		t.Errorf("RetentionDays = %d, want 14", cfg.Backup.RetentionDays)
	}
	if cfg.Backup.MinIntervalSeconds != 120 {
		t.Errorf("MinIntervalSeconds = %d, want 120", cfg.Backup.MinIntervalSeconds)
	}
	if want := filepath.Join("/home/erik/.local/share/sdb", "keys", "sdb.pub"); cfg.Encryption.RecipientPath != want {
		t.Errorf("RecipientPath = %s, want %s", cfg.Encryption.RecipientPath, want)
	}
}

func TestManager_RoundTrip(t *testing.T) {
	cfg := config.NewConfig("host-1", "/data/roster.db", "/base")
	cfg.Backup.Encrypt = true
	cfg.Remote = config.RemoteConfig{
		Type:   "s3",
		FileID: "roster.db",

		S3Bucket: "sdb-backups",
		S3Prefix: "prod",
		S3Region: "eu-west-1",
	}

	m := &config.Manager{}
	var buf bytes.Buffer
	if err := m.Write(&buf, cfg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Errorf("round-trip mismatch:\ngot  %+v\nwant %+v", got, cfg)
	}
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads a written config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sdb.toml")
		cfg := config.NewConfig("host-1", "/data/roster.db", "/base")
		if err := config.Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := config.ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if !reflect.DeepEqual(got, cfg) {
			t.Errorf("read mismatch:\ngot  %+v\nwant %+v", got, cfg)
		}
	})

	t.Run("fails on a missing file", func(t *testing.T) {
		if _, err := config.ReadFromFile(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
			t.Error("ReadFromFile() error = nil, want error")
		}
	})
}

func TestInit(t *testing.T) {
	t.Run("creates missing parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "sdb.toml")
		if err := config.Init(path, config.NewConfig("h", "/d.db", "/b")); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
	})

	t.Run("refuses to overwrite an existing config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sdb.toml")
		cfg := config.NewConfig("h", "/d.db", "/b")
		if err := config.Init(path, cfg); err != nil {
			t.Fatal(err)
		}
		if err := config.Init(path, cfg); err == nil {
			t.Error("second Init() error = nil, want error")
		}
	})
}
