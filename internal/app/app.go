package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sdb-go/internal/backup"
	"sdb-go/internal/catalog"
	"sdb-go/internal/config"
	"sdb-go/internal/encryption"
	"sdb-go/internal/lockfile"
	"sdb-go/internal/remote"
	"sdb-go/internal/sdb"
)

// SDBApp is the application layer between the CLI and the sdb service.
// It constructs all dependencies from config, exposes high-level operations,
// and manages resource lifecycles on Close.
type SDBApp struct {
	cfg       *config.Config
	service   *sdb.Service
	snapshots *backup.Manager
	notifier  *sdb.CommitNotifier
	encryptor sdb.Encryptor
	cat       *catalog.Catalog
	logger    sdb.Logger
	logFile   *os.File
}

// NewSDBApp creates a fully wired SDBApp from the given config.
// operation identifies the CLI command being run (e.g. "Push", "BackupNow").
// The caller must call Close when done.
func NewSDBApp(ctx context.Context, cfg *config.Config, operation string) (*SDBApp, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db_path is not configured")
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	var enc sdb.Encryptor
	if cfg.Backup.Encrypt {
		enc, err = encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			logFile.Close()
			return nil, fmt.Errorf("creating encryptor: %w", err)
		}
		if !enc.IsConfigured() {
			logFile.Close()
			return nil, fmt.Errorf("snapshot encryption enabled but keys are missing: run `sdb config keygen` first")
		}
	}

	// The catalog is bookkeeping for a best-effort subsystem: failing to
	// open it degrades to uncataloged snapshots, never to a dead app.
	var cat *catalog.Catalog
	catDir := backup.DirFor(cfg.DBPath)
	if err := os.MkdirAll(catDir, 0755); err == nil {
		cat, err = catalog.Open(filepath.Join(catDir, catalog.FileName))
		if err != nil {
			logger.Warn("snapshot catalog unavailable", "error", err)
			cat = nil
		}
	}

	policy := backup.Policy{
		RetentionDays: cfg.Backup.RetentionDays,
		MinInterval:   time.Duration(cfg.Backup.MinIntervalSeconds) * time.Second,
	}

	var rec backup.Recorder
	if cat != nil {
		rec = cat
	}
	snapshots := backup.NewManager(cfg.DBPath, policy, enc, rec, logger, sdb.RealClock{}, sdb.UUIDGenerator{})

	notifier := sdb.NewCommitNotifier()
	snapshots.AttachTo(notifier)

	var syncer sdb.Synchronizer
	if cfg.Remote.Type != "" {
		store, err := remote.NewStoreFromConfig(ctx, cfg.Remote)
		if err != nil {
			if cat != nil {
				cat.Close()
			}
			logFile.Close()
			return nil, fmt.Errorf("creating remote store: %w", err)
		}
		syncer = remote.NewSyncer(store, cfg.Remote.FileID, cfg.DBPath, logger)
	}

	locker := lockfile.New(cfg.DBPath)
	service := sdb.NewService(locker, snapshots, syncer, logger)

	return &SDBApp{
		cfg:       cfg,
		service:   service,
		snapshots: snapshots,
		notifier:  notifier,
		encryptor: enc,
		cat:       cat,
		logger:    logger,
		logFile:   logFile,
	}, nil
}

// Service exposes the underlying coordination service for embedding
// applications that need edit admission and the commit hook directly.
func (a *SDBApp) Service() *sdb.Service {
	return a.service
}

// Notifier exposes the commit notifier the data layer must invoke after
// every committed write.
func (a *SDBApp) Notifier() *sdb.CommitNotifier {
	return a.notifier
}

// LockStatus reports whether the store's edit lock is held and by whom.
func (a *SDBApp) LockStatus() (bool, string) {
	return a.service.LockStatus()
}

// BackupNow forces an immediate snapshot, ignoring the rate limit.
// Returns the snapshot path, or an error when the snapshot failed.
func (a *SDBApp) BackupNow() (string, error) {
	path := a.service.Backup()
	if path == "" {
		return "", fmt.Errorf("snapshot failed; see log for details")
	}
	return path, nil
}

// ListSnapshots returns up to limit catalog entries, newest first.
func (a *SDBApp) ListSnapshots(limit int) ([]*catalog.Entry, error) {
	if a.cat == nil {
		return nil, fmt.Errorf("snapshot catalog unavailable")
	}
	return a.cat.List(limit)
}

// RestoreSnapshot copies a snapshot over the live database. An empty
// snapshotPath restores the most recent cataloged snapshot. passphrase is
// only consulted when the snapshot is encrypted.
func (a *SDBApp) RestoreSnapshot(snapshotPath, passphrase string) (string, error) {
	if snapshotPath == "" {
		if a.cat == nil {
			return "", fmt.Errorf("snapshot catalog unavailable: pass an explicit snapshot path")
		}
		latest, err := a.cat.Latest()
		if err != nil {
			return "", fmt.Errorf("finding latest snapshot: %w", err)
		}
		if latest == nil {
			return "", fmt.Errorf("no snapshots recorded")
		}
		snapshotPath = latest.Path
	}

	var dctx sdb.DecryptionContext
	if filepath.Ext(snapshotPath) == ".age" {
		if a.encryptor == nil {
			return "", fmt.Errorf("snapshot is encrypted but encryption is not configured")
		}
		var err error
		dctx, err = a.encryptor.Unlock(passphrase)
		if err != nil {
			return "", fmt.Errorf("unlocking identity: %w", err)
		}
	}

	if err := backup.Restore(snapshotPath, a.cfg.DBPath, dctx); err != nil {
		return "", err
	}
	return snapshotPath, nil
}

// Pull downloads the remote copy over the local database.
func (a *SDBApp) Pull(ctx context.Context) (*sdb.FileInfo, error) {
	return a.service.Pull(ctx)
}

// Push uploads the local database if the remote is unchanged.
func (a *SDBApp) Push(ctx context.Context) (*sdb.FileInfo, error) {
	return a.service.Push(ctx)
}

// Close detaches the commit hook and releases all resources.
func (a *SDBApp) Close() error {
	var firstErr error

	a.snapshots.Detach()

	if a.cat != nil {
		if err := a.cat.Close(); err != nil {
			firstErr = fmt.Errorf("closing catalog: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
