// Package lockfile implements the advisory edit lock for a shared database
// file: an exclusive flock on a sidecar file in the database's directory,
// with the holder's identity written into the sidecar for display.
//
// The flock itself is authoritative. The sidecar's content, and even its
// existence, is metadata only: a crashed holder leaves the file behind with
// no lock on it, and a probe must see that as unlocked.
package lockfile

import (
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"sdb-go/internal/sdb"
)

// SidecarName is the fixed name of the lock file, created next to the
// database it guards.
const SidecarName = "sdb.lock"

// Record is the holder identity serialized into the sidecar file.
type Record struct {
	Host       string `json:"host"`
	User       string `json:"user"`
	AcquiredAt int64  `json:"acquired_at"`
}

// Lock is an advisory exclusive lock guarding one database path.
// Not safe for concurrent use by multiple goroutines; each would-be writer
// should hold its own Lock.
type Lock struct {
	path string // sidecar path, "" when there is nothing to guard
	f    *os.File
}

var _ sdb.EditLocker = (*Lock)(nil)

// New creates a Lock for the database at dbPath. An empty dbPath, or one
// with no directory component, yields a no-op lock that always acquires.
func New(dbPath string) *Lock {
	return &Lock{path: sidecarPath(dbPath)}
}

func sidecarPath(dbPath string) string {
	if dbPath == "" {
		return ""
	}
	dir := filepath.Dir(dbPath)
	if dir == "" || dir == "." {
		return ""
	}
	return filepath.Join(dir, SidecarName)
}

// Acquire attempts a non-blocking exclusive flock on the sidecar file.
// On success the holder record is written through to stable storage and the
// file handle is retained until Release. Contention and I/O failures both
// return false; this never blocks and never panics.
func (l *Lock) Acquire() bool {
	if l.path == "" {
		return true // nothing to guard
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return false
	}

	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return false
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return false
	}

	if err := l.writeRecord(f); err != nil {
		// Holding a lock we could not label helps nobody; back out and
		// report contention.
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		return false
	}

	l.f = f
	return true
}

// writeRecord truncates the sidecar and writes the current holder identity.
func (l *Lock) writeRecord(f *os.File) error {
	rec := currentRecord()
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt(data, 0); err != nil {
		return err
	}
	return f.Sync()
}

func currentRecord() Record {
	host, err := os.Hostname()
	if err != nil {
		host = "?"
	}
	username := "?"
	if u, err := user.Current(); err == nil {
		username = u.Username
	} else if v := os.Getenv("USER"); v != "" {
		username = v
	}
	return Record{Host: host, User: username, AcquiredAt: time.Now().Unix()}
}

// Release drops the flock and closes the handle, then best-effort deletes
// the sidecar. The lock is gone at the OS level as soon as the handle
// closes, so a leftover sidecar file is cosmetic.
func (l *Lock) Release() {
	if l.path == "" || l.f == nil {
		return
	}
	unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	l.f.Close()
	l.f = nil
	os.Remove(l.path)
}

// Holder returns "host\user" for the holder recorded in the sidecar, or ""
// when the file is missing, unreadable, or malformed. Never fails.
func (l *Lock) Holder() string {
	if l.path == "" {
		return ""
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return ""
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return ""
	}
	if rec.Host == "" {
		rec.Host = "?"
	}
	if rec.User == "" {
		rec.User = "?"
	}
	return fmt.Sprintf(`%s\%s`, rec.Host, rec.User)
}

// IsLocked probes the flock state without taking ownership: it acquires and
// immediately drops the lock if free. The probe may create an empty sidecar
// file as a side effect, which is harmless. A stale sidecar left by a
// crashed holder reads as unlocked, because the flock died with the process.
func (l *Lock) IsLocked() bool {
	if l.path == "" {
		return false
	}
	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return false
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return true
	}
	unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return false
}
