// Package backup makes consistent point-in-time copies of a single SQLite
// database file and prunes old ones. Snapshots are taken with VACUUM INTO,
// so a copy is structurally valid even while writers are active on the
// source. The whole subsystem is best effort: it protects the write path
// and must never fail it.
package backup

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"sdb-go/internal/sdb"
)

const (
	snapshotPrefix = "sdb"
	subdirName     = "backup"
	plainExt       = ".db"
	encryptedExt   = ".db.age"
)

// Policy controls retention and commit-rate throttling. Immutable per
// Manager.
type Policy struct {
	// RetentionDays is the age past which a snapshot becomes eligible for
	// deletion. Zero means every older snapshot is eligible immediately.
	RetentionDays int

	// MinInterval is the minimum spacing between commit-triggered
	// snapshots. Zero disables throttling.
	MinInterval time.Duration
}

// DefaultPolicy matches the shipped defaults: two weeks of snapshots,
// at most one automatic snapshot per two minutes.
func DefaultPolicy() Policy {
	return Policy{RetentionDays: 14, MinInterval: 120 * time.Second}
}

// Recorder persists snapshot bookkeeping. Implementations must tolerate
// being called for paths they have never seen. A nil Recorder disables
// bookkeeping entirely.
type Recorder interface {
	// RecordSnapshot notes a successful snapshot.
	RecordSnapshot(id, path string, size int64, encrypted bool, createdAt time.Time) error

	// ForgetPath removes bookkeeping for a rotated-away snapshot file.
	ForgetPath(path string) error
}

// Manager owns snapshots for one database path. Each guarded store gets its
// own Manager with its own throttle state; nothing here is process-global.
// Safe for concurrent use.
type Manager struct {
	dbPath string
	policy Policy
	enc    sdb.Encryptor // nil means plaintext snapshots
	rec    Recorder      // nil means no bookkeeping
	logger sdb.Logger
	clock  sdb.Clock
	idgen  sdb.IDGenerator

	mu      sync.Mutex
	lastRun time.Time
	sub     sdb.Subscription
}

var _ sdb.Snapshotter = (*Manager)(nil)

func NewManager(dbPath string, policy Policy, enc sdb.Encryptor, rec Recorder, logger sdb.Logger, clock sdb.Clock, idgen sdb.IDGenerator) *Manager {
	return &Manager{
		dbPath: dbPath,
		policy: policy,
		enc:    enc,
		rec:    rec,
		logger: logger,
		clock:  clock,
		idgen:  idgen,
	}
}

// DirFor returns the snapshot directory for a database path: a "backup"
// subdirectory next to the live file.
func DirFor(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), subdirName)
}

// Dir returns the snapshot directory for this manager's database.
func (m *Manager) Dir() string {
	return DirFor(m.dbPath)
}

// SnapshotNow forces a snapshot regardless of the throttle, then rotates.
// Returns the snapshot path, or "" if anything went wrong. A failure never
// leaves a partial file that could pass for a valid snapshot.
func (m *Manager) SnapshotNow() string {
	now := m.clock.Now()
	dest, err := m.snapshot(now)
	if err != nil {
		m.logger.Warn("snapshot failed", "db", m.dbPath, "error", err)
		return ""
	}

	m.rotate(now, dest)

	m.mu.Lock()
	m.lastRun = now
	m.mu.Unlock()

	m.record(dest)
	m.logger.Debug("snapshot created", "path", dest)
	return dest
}

// MaybeBackupOnCommit snapshots only when the policy's minimum interval has
// elapsed since the last successful snapshot. This is the commit hook: it
// fires on every write, and an unthrottled full-file copy per edit would be
// unaffordable.
func (m *Manager) MaybeBackupOnCommit() {
	m.mu.Lock()
	elapsed := m.clock.Now().Sub(m.lastRun)
	m.mu.Unlock()

	if elapsed < m.policy.MinInterval {
		return
	}
	m.SnapshotNow()
}

// AttachTo subscribes the commit hook to n, detaching any previous
// subscription first so rebinding after a store swap never double-fires.
func (m *Manager) AttachTo(n *sdb.CommitNotifier) {
	m.Detach()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sub = n.Subscribe(m.MaybeBackupOnCommit)
}

// Detach cancels the current commit subscription, if any. Idempotent.
func (m *Manager) Detach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sub.Cancel()
	m.sub = sdb.Subscription{}
}

// snapshot copies the live database into the backup directory and returns
// the destination path. The copy lands under a temporary name and is renamed
// into place only once complete.
func (m *Manager) snapshot(now time.Time) (string, error) {
	if _, err := os.Stat(m.dbPath); err != nil {
		return "", fmt.Errorf("source database: %w", err)
	}

	dir := m.Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}

	ts := now.Format("20060102_150405")
	ext := plainExt
	if m.encrypting() {
		ext = encryptedExt
	}
	dest := filepath.Join(dir, snapshotPrefix+"_"+ts+ext)

	// VACUUM INTO refuses to write over an existing file, so the copy
	// goes to a fresh hidden name first.
	tmp := filepath.Join(dir, ".vacuum-"+m.idgen.New()+plainExt)
	if err := m.copyDatabase(tmp); err != nil {
		os.Remove(tmp)
		return "", err
	}

	if !m.encrypting() {
		if err := os.Rename(tmp, dest); err != nil {
			os.Remove(tmp)
			return "", fmt.Errorf("placing snapshot: %w", err)
		}
		return dest, nil
	}

	err := m.encryptInto(tmp, dest)
	os.Remove(tmp)
	if err != nil {
		return "", err
	}
	return dest, nil
}

// copyDatabase writes a consistent copy of the live database to destPath
// using SQLite's VACUUM INTO.
func (m *Manager) copyDatabase(destPath string) error {
	db, err := sql.Open("sqlite3", m.dbPath)
	if err != nil {
		return fmt.Errorf("opening source database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("copying database: %w", err)
	}
	return nil
}

// encryptInto age-encrypts srcPath to destPath via a temp file and rename,
// so destPath only ever exists complete.
func (m *Manager) encryptInto(srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening snapshot for encryption: %w", err)
	}
	defer src.Close()

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if err := m.enc.Encrypt(src, tmpFile); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encrypting snapshot: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing encrypted snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("placing encrypted snapshot: %w", err)
	}
	return nil
}

func (m *Manager) encrypting() bool {
	return m.enc != nil
}

// rotate deletes snapshots older than the retention horizon, judged by file
// modification time against a cutoff based on now. The snapshot at keep is
// exempt: with zero retention the cutoff equals the moment the file was
// created, and the rotation that follows a snapshot must never eat that
// snapshot. Per-file failures are logged and skipped; one stubborn file must
// not keep the rest alive.
func (m *Manager) rotate(now time.Time, keep string) {
	cutoff := now.AddDate(0, 0, -m.policy.RetentionDays)

	entries, err := os.ReadDir(m.Dir())
	if err != nil {
		return
	}

	for _, e := range entries {
		if e.IsDir() || !isSnapshotName(e.Name()) {
			continue
		}
		path := filepath.Join(m.Dir(), e.Name())
		if path == keep {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(path); err != nil {
			m.logger.Warn("rotation could not delete snapshot", "path", path, "error", err)
			continue
		}
		m.forget(path)
		m.logger.Debug("snapshot rotated out", "path", path)
	}
}

func isSnapshotName(name string) bool {
	if !strings.HasPrefix(name, snapshotPrefix+"_") {
		return false
	}
	return strings.HasSuffix(name, plainExt) || strings.HasSuffix(name, encryptedExt)
}

func (m *Manager) record(path string) {
	if m.rec == nil {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	encrypted := strings.HasSuffix(path, encryptedExt)
	if err := m.rec.RecordSnapshot(m.idgen.New(), path, info.Size(), encrypted, m.clock.Now()); err != nil {
		m.logger.Warn("snapshot bookkeeping failed", "path", path, "error", err)
	}
}

func (m *Manager) forget(path string) {
	if m.rec == nil {
		return
	}
	if err := m.rec.ForgetPath(path); err != nil {
		m.logger.Warn("snapshot bookkeeping cleanup failed", "path", path, "error", err)
	}
}
