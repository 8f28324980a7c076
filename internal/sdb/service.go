package sdb

import (
	"context"
	"errors"
	"fmt"
)

// Snapshotter makes consistent point-in-time copies of the live store.
// All operations are best effort: a failed snapshot reports an empty path
// and never propagates an error into the write path it protects.
type Snapshotter interface {
	// SnapshotNow forces an immediate snapshot, ignoring the rate limit.
	// Returns the path of the new snapshot file, or "" on failure.
	SnapshotNow() string

	// MaybeBackupOnCommit snapshots only if enough time has passed since
	// the last successful snapshot.
	MaybeBackupOnCommit()

	// AttachTo subscribes MaybeBackupOnCommit to the notifier, first
	// detaching any previous subscription. Safe to call repeatedly.
	AttachTo(n *CommitNotifier)

	// Detach cancels the current subscription, if any.
	Detach()
}

// Synchronizer moves the store between the local path and the remote host
// under optimistic concurrency.
type Synchronizer interface {
	// Download replaces the local copy with the remote one and records the
	// observed revision.
	Download(ctx context.Context) (*FileInfo, error)

	// Upload pushes the local copy if the remote revision is unchanged.
	// Fails with ErrConflict otherwise, and with ErrBusy if another
	// in-process upload holds the writer gate past the wait bound.
	Upload(ctx context.Context) (*FileInfo, error)

	// Revision returns the revision observed by the last successful
	// network interaction, or "" before the first download.
	Revision() string
}

// Service coordinates edit admission, backups, and remote synchronization
// for one shared store. One Service per database path; no process-wide state.
type Service struct {
	locker    EditLocker
	snapshots Snapshotter
	syncer    Synchronizer // nil when no remote is configured
	logger    Logger
}

func NewService(locker EditLocker, snapshots Snapshotter, syncer Synchronizer, logger Logger) *Service {
	return &Service{
		locker:    locker,
		snapshots: snapshots,
		syncer:    syncer,
		logger:    logger,
	}
}

// BeginEdit attempts to admit this process as the single writer.
// On contention it returns false and the holder description (possibly ""
// when the sidecar record is unreadable).
func (s *Service) BeginEdit() (bool, string) {
	if s.locker.Acquire() {
		s.logger.Info("edit lock acquired")
		return true, ""
	}
	holder := s.locker.Holder()
	s.logger.Info("edit lock contended", "holder", holder)
	return false, holder
}

// EndEdit releases the edit lock and takes a farewell snapshot so the last
// state of an editing session is always captured.
func (s *Service) EndEdit() {
	if path := s.snapshots.SnapshotNow(); path != "" {
		s.logger.Debug("session snapshot written", "path", path)
	}
	s.locker.Release()
	s.logger.Info("edit lock released")
}

// Backup forces an immediate snapshot. Returns the snapshot path, or ""
// when the snapshot could not be made.
func (s *Service) Backup() string {
	path := s.snapshots.SnapshotNow()
	if path == "" {
		s.logger.Warn("forced snapshot failed")
		return ""
	}
	s.logger.Info("snapshot written", "path", path)
	return path
}

// Pull downloads the authoritative remote copy over the local file.
// The local file is snapshotted first so unsynced local state survives as a
// backup even though the pull discards it from the working copy.
func (s *Service) Pull(ctx context.Context) (*FileInfo, error) {
	if s.syncer == nil {
		return nil, fmt.Errorf("no remote store configured")
	}

	if path := s.snapshots.SnapshotNow(); path != "" {
		s.logger.Debug("pre-pull snapshot written", "path", path)
	}

	info, err := s.syncer.Download(ctx)
	if err != nil {
		return nil, fmt.Errorf("downloading store: %w", err)
	}

	s.logger.Info("store pulled", "revision", info.Revision, "size", info.Size)
	return info, nil
}

// Push uploads the local copy if the remote is unchanged since the last
// download. ErrConflict and ErrBusy pass through for the caller to classify;
// everything else is a hard I/O failure.
func (s *Service) Push(ctx context.Context) (*FileInfo, error) {
	if s.syncer == nil {
		return nil, fmt.Errorf("no remote store configured")
	}

	if path := s.snapshots.SnapshotNow(); path != "" {
		s.logger.Debug("pre-push snapshot written", "path", path)
	}

	info, err := s.syncer.Upload(ctx)
	if err != nil {
		switch {
		case errors.Is(err, ErrConflict):
			s.logger.Warn("push refused: remote changed", "observed", s.syncer.Revision())
		case errors.Is(err, ErrBusy):
			s.logger.Warn("push refused: writer gate busy")
		default:
			s.logger.Error("push failed", "error", err)
		}
		return nil, err
	}

	s.logger.Info("store pushed", "revision", info.Revision)
	return info, nil
}

// LockStatus reports whether the store is currently locked and by whom.
func (s *Service) LockStatus() (locked bool, holder string) {
	locked = s.locker.IsLocked()
	if locked {
		holder = s.locker.Holder()
	}
	return locked, holder
}
