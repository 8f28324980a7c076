// Package remote synchronizes the local database file with a remote host
// under optimistic concurrency: downloads capture the host's revision token,
// and uploads go through only while that token still matches. Conflicts are
// detected and refused, never merged.
package remote

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sdb-go/internal/sdb"
)

// DefaultGateWait bounds how long an upload waits for the in-process writer
// gate before giving up with sdb.ErrBusy.
const DefaultGateWait = 30 * time.Second

// Syncer tracks one remote file against one local path. The revision token
// changes only on network interaction; local edits never touch it.
//
// Uploads within a process are serialized through a writer gate so two
// callers cannot both pass the revision check and both upload. The gate is
// per Syncer, not process-wide: independent stores do not contend.
type Syncer struct {
	store     sdb.RemoteStore
	fileID    string
	localPath string
	logger    sdb.Logger

	gate     chan struct{}
	gateWait time.Duration

	mu       sync.Mutex
	revision string
}

var _ sdb.Synchronizer = (*Syncer)(nil)

func NewSyncer(store sdb.RemoteStore, fileID, localPath string, logger sdb.Logger) *Syncer {
	return &Syncer{
		store:     store,
		fileID:    fileID,
		localPath: localPath,
		logger:    logger,
		gate:      make(chan struct{}, 1),
		gateWait:  DefaultGateWait,
	}
}

// Revision returns the revision token observed by the last successful
// network interaction, or "" before the first download.
func (s *Syncer) Revision() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

func (s *Syncer) setRevision(rev string) {
	s.mu.Lock()
	s.revision = rev
	s.mu.Unlock()
}

// Download fetches the authoritative remote copy over the local path and
// records the revision observed for it. The bytes land in a temp file and
// are renamed into place only once complete, so a failed download leaves
// any existing local file untouched. Failures are hard errors: the caller
// must not proceed on a stale or absent local file.
func (s *Syncer) Download(ctx context.Context) (*sdb.FileInfo, error) {
	dir := filepath.Dir(s.localPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating local directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-download-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	info, err := s.store.Fetch(ctx, s.fileID, tmpFile)
	if err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("fetching remote file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("closing downloaded file: %w", err)
	}
	if err := os.Rename(tmpPath, s.localPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("placing downloaded file: %w", err)
	}

	s.setRevision(info.Revision)
	s.logger.Debug("downloaded remote store", "file_id", s.fileID, "revision", info.Revision)
	return info, nil
}

// Upload pushes the local file back to the host if the remote revision still
// equals the one observed at download time. A changed revision yields
// sdb.ErrConflict and leaves the remote untouched; recovery requires a fresh
// Download. The new revision from the host's response is adopted, so a
// subsequent Upload with no intervening remote change succeeds too.
func (s *Syncer) Upload(ctx context.Context) (*sdb.FileInfo, error) {
	if err := s.enterGate(ctx); err != nil {
		return nil, err
	}
	defer s.leaveGate()

	observed := s.Revision()
	if observed == "" {
		return nil, fmt.Errorf("no revision observed: download before uploading")
	}

	current, err := s.store.Head(ctx, s.fileID)
	if err != nil {
		return nil, fmt.Errorf("checking remote revision: %w", err)
	}
	if current.Revision != observed {
		return nil, fmt.Errorf("remote at %s, local observed %s: %w",
			current.Revision, observed, sdb.ErrConflict)
	}

	f, err := os.Open(s.localPath)
	if err != nil {
		return nil, fmt.Errorf("opening local file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat local file: %w", err)
	}

	info, err := s.store.Update(ctx, s.fileID, f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("uploading local file: %w", err)
	}

	s.setRevision(info.Revision)
	s.logger.Debug("uploaded local store", "file_id", s.fileID, "revision", info.Revision)
	return info, nil
}

// enterGate claims the writer gate, waiting up to gateWait.
func (s *Syncer) enterGate(ctx context.Context) error {
	select {
	case s.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.gateWait):
		return sdb.ErrBusy
	}
}

func (s *Syncer) leaveGate() {
	<-s.gate
}
