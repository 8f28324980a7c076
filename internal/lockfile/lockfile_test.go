package lockfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "roster.db")
}

func TestLock_Acquire(t *testing.T) {
	t.Run("second handle is refused while first holds", func(t *testing.T) {
		dbPath := testDBPath(t)
		a := New(dbPath)
		b := New(dbPath)

		if !a.Acquire() {
			t.Fatal("first Acquire() = false, want true")
		}
		defer a.Release()

		if b.Acquire() {
			t.Error("second Acquire() = true, want false while first holds")
		}
	})

	t.Run("succeeds after holder releases", func(t *testing.T) {
		dbPath := testDBPath(t)
		a := New(dbPath)
		b := New(dbPath)

		if !a.Acquire() {
			t.Fatal("first Acquire() = false, want true")
		}
		a.Release()

		if !b.Acquire() {
			t.Error("Acquire() after release = false, want true")
		}
		b.Release()
	})

	t.Run("empty path is a no-op lock", func(t *testing.T) {
		l := New("")
		if !l.Acquire() {
			t.Error("Acquire() on empty path = false, want true")
		}
		l.Release()
		if l.IsLocked() {
			t.Error("IsLocked() on empty path = true, want false")
		}
	})

	t.Run("creates missing directory", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "nested", "dir", "roster.db")
		l := New(dbPath)
		if !l.Acquire() {
			t.Fatal("Acquire() = false, want true")
		}
		defer l.Release()

		if _, err := os.Stat(filepath.Join(filepath.Dir(dbPath), SidecarName)); err != nil {
			t.Errorf("sidecar not created: %v", err)
		}
	})

	t.Run("stale sidecar from a dead holder does not block", func(t *testing.T) {
		dbPath := testDBPath(t)
		sidecar := filepath.Join(filepath.Dir(dbPath), SidecarName)
		// Simulate a crashed process: record on disk, no flock held.
		if err := os.WriteFile(sidecar, []byte(`{"host":"gone","user":"ghost","acquired_at":1}`), 0644); err != nil {
			t.Fatal(err)
		}

		l := New(dbPath)
		if l.IsLocked() {
			t.Error("IsLocked() = true for stale sidecar, want false")
		}
		if !l.Acquire() {
			t.Error("Acquire() = false with stale sidecar, want true")
		}
		l.Release()
	})
}

func TestLock_Release(t *testing.T) {
	t.Run("removes the sidecar", func(t *testing.T) {
		dbPath := testDBPath(t)
		l := New(dbPath)
		if !l.Acquire() {
			t.Fatal("Acquire() = false, want true")
		}
		l.Release()

		sidecar := filepath.Join(filepath.Dir(dbPath), SidecarName)
		if _, err := os.Stat(sidecar); !os.IsNotExist(err) {
			t.Errorf("sidecar still present after Release: stat err = %v", err)
		}
	})

	t.Run("is safe when not holding", func(t *testing.T) {
		l := New(testDBPath(t))
		l.Release() // must not panic
		l.Release()
	})
}

func TestLock_Holder(t *testing.T) {
	t.Run("reports host and user while held", func(t *testing.T) {
		dbPath := testDBPath(t)
		l := New(dbPath)
		if !l.Acquire() {
			t.Fatal("Acquire() = false, want true")
		}
		defer l.Release()

		holder := l.Holder()
		if holder == "" {
			t.Fatal("Holder() = \"\", want host\\user")
		}
		if !strings.Contains(holder, `\`) {
			t.Errorf("Holder() = %q, want host and user separated by backslash", holder)
		}

		// The record on disk round-trips as JSON.
		data, err := os.ReadFile(filepath.Join(filepath.Dir(dbPath), SidecarName))
		if err != nil {
			t.Fatal(err)
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			t.Fatalf("sidecar content is not valid JSON: %v", err)
		}
		if rec.AcquiredAt == 0 {
			t.Error("record acquired_at = 0, want a unix timestamp")
		}
	})

	t.Run("empty when sidecar is missing", func(t *testing.T) {
		if got := New(testDBPath(t)).Holder(); got != "" {
			t.Errorf("Holder() = %q, want \"\"", got)
		}
	})

	t.Run("empty when sidecar is malformed", func(t *testing.T) {
		dbPath := testDBPath(t)
		sidecar := filepath.Join(filepath.Dir(dbPath), SidecarName)
		if err := os.WriteFile(sidecar, []byte("not json"), 0644); err != nil {
			t.Fatal(err)
		}
		if got := New(dbPath).Holder(); got != "" {
			t.Errorf("Holder() = %q, want \"\"", got)
		}
	})
}

func TestLock_IsLocked(t *testing.T) {
	t.Run("tracks acquisition state", func(t *testing.T) {
		dbPath := testDBPath(t)
		holder := New(dbPath)
		probe := New(dbPath)

		if probe.IsLocked() {
			t.Error("IsLocked() = true before any Acquire, want false")
		}
		if !holder.Acquire() {
			t.Fatal("Acquire() = false, want true")
		}
		if !probe.IsLocked() {
			t.Error("IsLocked() = false while held, want true")
		}
		holder.Release()
		if probe.IsLocked() {
			t.Error("IsLocked() = true after Release, want false")
		}
	})

	t.Run("does not mutate ownership", func(t *testing.T) {
		dbPath := testDBPath(t)
		probe := New(dbPath)
		probe.IsLocked()
		probe.IsLocked()

		l := New(dbPath)
		if !l.Acquire() {
			t.Error("Acquire() = false after probes, want true")
		}

		probe.IsLocked()
		l.Release()

		if !l.Acquire() {
			t.Error("re-Acquire() = false after probe during hold, want true")
		}
		l.Release()
	})
}
