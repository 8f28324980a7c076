package remote

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"sync"

	"sdb-go/internal/sdb"
)

// MemoryStore is an in-memory implementation of the remote host, useful for
// tests and for running the full stack without credentials. Revisions are
// "rev-1", "rev-2", ... bumped on every write. Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]*memoryFile
}

type memoryFile struct {
	name     string
	data     []byte
	revision int
}

var _ sdb.RemoteStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string]*memoryFile)}
}

// Seed creates or replaces a remote file, bumping its revision. Test setup,
// and the way an out-of-process writer is simulated.
func (m *MemoryStore) Seed(fileID, name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok {
		f = &memoryFile{name: name}
		m.files[fileID] = f
	}
	f.data = append([]byte(nil), data...)
	f.revision++
}

// Bytes returns a copy of the stored content, or nil if the file is absent.
func (m *MemoryStore) Bytes(fileID string) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[fileID]
	if !ok {
		return nil
	}
	return append([]byte(nil), f.data...)
}

func (m *MemoryStore) Head(ctx context.Context, fileID string) (*sdb.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[fileID]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", fileID)
	}
	return f.info(fileID), nil
}

func (m *MemoryStore) Fetch(ctx context.Context, fileID string, w io.Writer) (*sdb.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[fileID]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", fileID)
	}
	if _, err := io.Copy(w, bytes.NewReader(f.data)); err != nil {
		return nil, fmt.Errorf("writing content: %w", err)
	}
	return f.info(fileID), nil
}

func (m *MemoryStore) Update(ctx context.Context, fileID string, r io.Reader, size int64) (*sdb.FileInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", fileID)
	}
	f.data = data
	f.revision++
	return f.info(fileID), nil
}

func (f *memoryFile) info(fileID string) *sdb.FileInfo {
	sum := md5.Sum(f.data)
	return &sdb.FileInfo{
		ID:       fileID,
		Name:     f.name,
		Revision: "rev-" + strconv.Itoa(f.revision),
		MD5:      hex.EncodeToString(sum[:]),
		Size:     int64(len(f.data)),
	}
}
