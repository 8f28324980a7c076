package sdb_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"sdb-go/internal/sdb"
)

type stubLocker struct {
	acquireOK bool
	locked    bool
	holder    string
	released  int
}

func (l *stubLocker) Acquire() bool  { return l.acquireOK }
func (l *stubLocker) Release()       { l.released++ }
func (l *stubLocker) Holder() string { return l.holder }
func (l *stubLocker) IsLocked() bool { return l.locked }

type stubSnapshotter struct {
	path  string
	calls int
}

func (s *stubSnapshotter) SnapshotNow() string {
	s.calls++
	return s.path
}
func (s *stubSnapshotter) MaybeBackupOnCommit()         {}
func (s *stubSnapshotter) AttachTo(*sdb.CommitNotifier) {}
func (s *stubSnapshotter) Detach()                      {}

type stubSyncer struct {
	info     *sdb.FileInfo
	err      error
	revision string
}

func (s *stubSyncer) Download(context.Context) (*sdb.FileInfo, error) { return s.info, s.err }
func (s *stubSyncer) Upload(context.Context) (*sdb.FileInfo, error)   { return s.info, s.err }
func (s *stubSyncer) Revision() string                                { return s.revision }

func TestService_BeginEdit(t *testing.T) {
	t.Run("admits the writer when the lock is free", func(t *testing.T) {
		svc := sdb.NewService(&stubLocker{acquireOK: true}, &stubSnapshotter{}, nil, sdb.NewNopLogger())

		ok, holder := svc.BeginEdit()
		if !ok {
			t.Error("BeginEdit() ok = false, want true")
		}
		if holder != "" {
			t.Errorf("holder = %q, want \"\"", holder)
		}
	})

	t.Run("reports the holder on contention", func(t *testing.T) {
		locker := &stubLocker{acquireOK: false, holder: `office-pc\erik`}
		svc := sdb.NewService(locker, &stubSnapshotter{}, nil, sdb.NewNopLogger())

		ok, holder := svc.BeginEdit()
		if ok {
			t.Error("BeginEdit() ok = true, want false")
		}
		if holder != `office-pc\erik` {
			t.Errorf("holder = %q, want %q", holder, `office-pc\erik`)
		}
	})
}

func TestService_EndEdit(t *testing.T) {
	locker := &stubLocker{acquireOK: true}
	snaps := &stubSnapshotter{path: "/backups/sdb_x.db"}
	svc := sdb.NewService(locker, snaps, nil, sdb.NewNopLogger())

	svc.EndEdit()

	if snaps.calls != 1 {
		t.Errorf("farewell snapshot calls = %d, want 1", snaps.calls)
	}
	if locker.released != 1 {
		t.Errorf("releases = %d, want 1", locker.released)
	}
}

func TestService_Backup(t *testing.T) {
	t.Run("returns the snapshot path", func(t *testing.T) {
		svc := sdb.NewService(&stubLocker{}, &stubSnapshotter{path: "/backups/sdb_x.db"}, nil, sdb.NewNopLogger())
		if got := svc.Backup(); got != "/backups/sdb_x.db" {
			t.Errorf("Backup() = %q, want /backups/sdb_x.db", got)
		}
	})

	t.Run("reports failure as an empty path", func(t *testing.T) {
		svc := sdb.NewService(&stubLocker{}, &stubSnapshotter{}, nil, sdb.NewNopLogger())
		if got := svc.Backup(); got != "" {
			t.Errorf("Backup() = %q, want \"\"", got)
		}
	})
}

func TestService_Pull(t *testing.T) {
	t.Run("snapshots before downloading", func(t *testing.T) {
		snaps := &stubSnapshotter{path: "/backups/sdb_x.db"}
		syncer := &stubSyncer{info: &sdb.FileInfo{Revision: "rev-9", Size: 42}}
		svc := sdb.NewService(&stubLocker{}, snaps, syncer, sdb.NewNopLogger())

		info, err := svc.Pull(context.Background())
		if err != nil {
			t.Fatalf("Pull() error = %v", err)
		}
		if snaps.calls != 1 {
			t.Errorf("pre-pull snapshot calls = %d, want 1", snaps.calls)
		}
		if info.Revision != "rev-9" {
			t.Errorf("revision = %s, want rev-9", info.Revision)
		}
	})

	t.Run("fails without a configured remote", func(t *testing.T) {
		svc := sdb.NewService(&stubLocker{}, &stubSnapshotter{}, nil, sdb.NewNopLogger())
		if _, err := svc.Pull(context.Background()); err == nil {
			t.Error("Pull() error = nil, want error")
		}
	})

	t.Run("propagates download failures", func(t *testing.T) {
		syncer := &stubSyncer{err: fmt.Errorf("network down")}
		svc := sdb.NewService(&stubLocker{}, &stubSnapshotter{}, syncer, sdb.NewNopLogger())
		if _, err := svc.Pull(context.Background()); err == nil {
			t.Error("Pull() error = nil, want error")
		}
	})
}

func TestService_Push(t *testing.T) {
	t.Run("snapshots before uploading", func(t *testing.T) {
		snaps := &stubSnapshotter{path: "/backups/sdb_x.db"}
		syncer := &stubSyncer{info: &sdb.FileInfo{Revision: "rev-10"}}
		svc := sdb.NewService(&stubLocker{}, snaps, syncer, sdb.NewNopLogger())

		info, err := svc.Push(context.Background())
		if err != nil {
			t.Fatalf("Push() error = %v", err)
		}
		if snaps.calls != 1 {
			t.Errorf("pre-push snapshot calls = %d, want 1", snaps.calls)
		}
		if info.Revision != "rev-10" {
			t.Errorf("revision = %s, want rev-10", info.Revision)
		}
	})

	t.Run("passes conflicts through for the caller to classify", func(t *testing.T) {
		syncer := &stubSyncer{err: fmt.Errorf("remote at rev-2, local observed rev-1: %w", sdb.ErrConflict)}
		svc := sdb.NewService(&stubLocker{}, &stubSnapshotter{}, syncer, sdb.NewNopLogger())

		_, err := svc.Push(context.Background())
		if !errors.Is(err, sdb.ErrConflict) {
			t.Errorf("Push() error = %v, want ErrConflict", err)
		}
	})

	t.Run("passes gate timeouts through", func(t *testing.T) {
		syncer := &stubSyncer{err: sdb.ErrBusy}
		svc := sdb.NewService(&stubLocker{}, &stubSnapshotter{}, syncer, sdb.NewNopLogger())

		_, err := svc.Push(context.Background())
		if !errors.Is(err, sdb.ErrBusy) {
			t.Errorf("Push() error = %v, want ErrBusy", err)
		}
	})

	t.Run("fails without a configured remote", func(t *testing.T) {
		svc := sdb.NewService(&stubLocker{}, &stubSnapshotter{}, nil, sdb.NewNopLogger())
		if _, err := svc.Push(context.Background()); err == nil {
			t.Error("Push() error = nil, want error")
		}
	})
}

func TestService_LockStatus(t *testing.T) {
	t.Run("reports holder only while locked", func(t *testing.T) {
		locker := &stubLocker{locked: true, holder: `laptop\anna`}
		svc := sdb.NewService(locker, &stubSnapshotter{}, nil, sdb.NewNopLogger())

		locked, holder := svc.LockStatus()
		if !locked {
			t.Error("locked = false, want true")
		}
		if holder != `laptop\anna` {
			t.Errorf("holder = %q, want %q", holder, `laptop\anna`)
		}
	})

	t.Run("unlocked reports no holder", func(t *testing.T) {
		locker := &stubLocker{locked: false, holder: `laptop\anna`}
		svc := sdb.NewService(locker, &stubSnapshotter{}, nil, sdb.NewNopLogger())

		locked, holder := svc.LockStatus()
		if locked {
			t.Error("locked = true, want false")
		}
		if holder != "" {
			t.Errorf("holder = %q, want \"\"", holder)
		}
	})
}
