package encryption_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"sdb-go/internal/config"
	"sdb-go/internal/encryption"
)

func newConfiguredEncryptor(t *testing.T, passphrase string) *encryption.AgeEncryptor {
	t.Helper()
	dir := t.TempDir()
	e := encryption.NewAgeEncryptor(filepath.Join(dir, "sdb.pub"), filepath.Join(dir, "sdb.key"))
	if err := e.Setup(passphrase); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	return e
}

func TestAgeEncryptor(t *testing.T) {
	t.Run("setup makes the encryptor configured", func(t *testing.T) {
		dir := t.TempDir()
		e := encryption.NewAgeEncryptor(filepath.Join(dir, "sdb.pub"), filepath.Join(dir, "sdb.key"))

		if e.IsConfigured() {
			t.Error("IsConfigured() = true before Setup, want false")
		}
		if err := e.Setup("passphrase"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if !e.IsConfigured() {
			t.Error("IsConfigured() = false after Setup, want true")
		}
	})

	t.Run("encrypt then unlock and decrypt round-trips", func(t *testing.T) {
		e := newConfiguredEncryptor(t, "open sesame")
		plaintext := []byte("snapshot payload bytes")

		var ciphertext bytes.Buffer
		if err := e.Encrypt(bytes.NewReader(plaintext), &ciphertext); err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		if bytes.Contains(ciphertext.Bytes(), plaintext) {
			t.Error("ciphertext contains the plaintext")
		}

		dctx, err := e.Unlock("open sesame")
		if err != nil {
			t.Fatalf("Unlock() error = %v", err)
		}

		var decrypted bytes.Buffer
		if err := dctx.Decrypt(bytes.NewReader(ciphertext.Bytes()), &decrypted); err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}
		if !bytes.Equal(decrypted.Bytes(), plaintext) {
			t.Errorf("decrypted = %q, want %q", decrypted.Bytes(), plaintext)
		}
	})

	t.Run("unlock fails with the wrong passphrase", func(t *testing.T) {
		e := newConfiguredEncryptor(t, "right")
		if _, err := e.Unlock("wrong"); err == nil {
			t.Error("Unlock() error = nil, want error for wrong passphrase")
		}
	})

	t.Run("encrypt fails before setup", func(t *testing.T) {
		dir := t.TempDir()
		e := encryption.NewAgeEncryptor(filepath.Join(dir, "sdb.pub"), filepath.Join(dir, "sdb.key"))

		var buf bytes.Buffer
		if err := e.Encrypt(bytes.NewReader([]byte("data")), &buf); err == nil {
			t.Error("Encrypt() error = nil, want error without recipient key")
		}
	})
}

func TestTestEncryptor(t *testing.T) {
	e := encryption.NewTestEncryptor()

	var ciphertext bytes.Buffer
	if err := e.Encrypt(bytes.NewReader([]byte("payload")), &ciphertext); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	dctx, err := e.Unlock("")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	var decrypted bytes.Buffer
	if err := dctx.Decrypt(bytes.NewReader(ciphertext.Bytes()), &decrypted); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if decrypted.String() != "payload" {
		t.Errorf("decrypted = %q, want %q", decrypted.String(), "payload")
	}
}

func TestNewEncryptorFromConfig(t *testing.T) {
	t.Run("age", func(t *testing.T) {
		e, err := encryption.NewEncryptorFromConfig(config.EncryptionConfig{
			Type:          "age",
			RecipientPath: "/keys/sdb.pub",
			IdentityPath:  "/keys/sdb.key",
		})
		if err != nil {
			t.Fatalf("NewEncryptorFromConfig() error = %v", err)
		}
		if _, ok := e.(*encryption.AgeEncryptor); !ok {
			t.Errorf("encryptor type = %T, want *AgeEncryptor", e)
		}
	})

	t.Run("empty type defaults to age", func(t *testing.T) {
		e, err := encryption.NewEncryptorFromConfig(config.EncryptionConfig{
			RecipientPath: "/keys/sdb.pub",
			IdentityPath:  "/keys/sdb.key",
		})
		if err != nil {
			t.Fatalf("NewEncryptorFromConfig() error = %v", err)
		}
		if _, ok := e.(*encryption.AgeEncryptor); !ok {
			t.Errorf("encryptor type = %T, want *AgeEncryptor", e)
		}
	})

	t.Run("test", func(t *testing.T) {
		e, err := encryption.NewEncryptorFromConfig(config.EncryptionConfig{Type: "test"})
		if err != nil {
			t.Fatalf("NewEncryptorFromConfig() error = %v", err)
		}
		if _, ok := e.(*encryption.TestEncryptor); !ok {
			t.Errorf("encryptor type = %T, want *TestEncryptor", e)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := encryption.NewEncryptorFromConfig(config.EncryptionConfig{Type: "rot13"}); err == nil {
			t.Error("NewEncryptorFromConfig() error = nil, want error")
		}
	})
}
