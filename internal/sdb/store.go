package sdb

import (
	"context"
	"io"
)

// FileInfo describes the remote copy of the store at one point in time.
// Revision is the host-assigned token that changes on every remote write;
// it is opaque to this package and only ever compared for equality.
type FileInfo struct {
	ID       string
	Name     string
	Revision string
	MD5      string
	Size     int64
}

// RemoteStore is the minimal host protocol needed for synchronization:
// metadata with a revision token, a byte download, and a byte upload that
// yields the new revision. Authentication is the implementation's concern.
type RemoteStore interface {
	// Head returns current metadata for the remote file without
	// transferring its content.
	Head(ctx context.Context, fileID string) (*FileInfo, error)

	// Fetch streams the remote file's bytes to w and returns the metadata
	// observed for the copy that was transferred.
	Fetch(ctx context.Context, fileID string, w io.Writer) (*FileInfo, error)

	// Update replaces the remote file's bytes with size bytes read from r
	// and returns metadata carrying the new revision.
	Update(ctx context.Context, fileID string, r io.Reader, size int64) (*FileInfo, error)
}
