package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sdb-go/internal/sdb"
)

// Restore copies a snapshot back to destPath, decrypting when the snapshot
// is age-encrypted. Unlike taking a snapshot this is not best effort: the
// caller asked for their data back, so failures propagate. The destination
// is written via temp file and rename and is never left partial.
func Restore(snapshotPath, destPath string, dctx sdb.DecryptionContext) error {
	encrypted := strings.HasSuffix(snapshotPath, encryptedExt)
	if encrypted && dctx == nil {
		return fmt.Errorf("snapshot is encrypted: %s", snapshotPath)
	}

	src, err := os.Open(snapshotPath)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer src.Close()

	destDir := filepath.Dir(destPath)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(destDir, ".tmp-restore-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if encrypted {
		err = dctx.Decrypt(src, tmpFile)
	} else {
		_, err = io.Copy(tmpFile, src)
	}
	if err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing restored database: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing restored database: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("placing restored database: %w", err)
	}
	return nil
}
