package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"sdb-go/internal/sdb"
)

// driveFields are the file metadata fields fetched from the Drive API.
// HeadRevisionId is the revision token: Drive assigns a new head revision on
// every content change, which is exactly the staleness signal the syncer
// compares.
const driveFields = "id,name,size,md5Checksum,headRevisionId"

// DriveStore implements sdb.RemoteStore against Google Drive v3.
// The file is stored as an opaque binary blob; sharing and folder placement
// are managed out of band by whoever owns the Drive file.
type DriveStore struct {
	service *drive.Service
}

var _ sdb.RemoteStore = (*DriveStore)(nil)

// NewDriveStore creates a DriveStore authenticated by a service account key
// file. The account must have write access to the target file.
func NewDriveStore(ctx context.Context, credentialsPath string) (*DriveStore, error) {
	svc, err := drive.NewService(ctx,
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(drive.DriveScope),
	)
	if err != nil {
		return nil, fmt.Errorf("creating drive client: %w", err)
	}
	return &DriveStore{service: svc}, nil
}

// NewDriveStoreFromService wraps an already-built Drive service. Used by
// tests and by callers with their own credential plumbing.
func NewDriveStoreFromService(svc *drive.Service) *DriveStore {
	return &DriveStore{service: svc}
}

func (d *DriveStore) Head(ctx context.Context, fileID string) (*sdb.FileInfo, error) {
	f, err := d.service.Files.Get(fileID).
		Fields(googleapi.Field(driveFields)).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("getting file metadata: %w", err)
	}
	return driveInfo(f), nil
}

func (d *DriveStore) Fetch(ctx context.Context, fileID string, w io.Writer) (*sdb.FileInfo, error) {
	// Metadata first: the revision reported must describe the bytes about
	// to be transferred, not some later state. A remote write landing
	// between the two calls can pair the older token with newer bytes;
	// that staleness is safe, since a stale token only makes the next
	// upload refuse and force a re-download.
	info, err := d.Head(ctx, fileID)
	if err != nil {
		return nil, err
	}

	resp, err := d.service.Files.Get(fileID).
		SupportsAllDrives(true).
		Context(ctx).
		Download()
	if err != nil {
		return nil, fmt.Errorf("downloading file content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading file content: unexpected status %s", resp.Status)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return nil, fmt.Errorf("reading file content: %w", err)
	}
	return info, nil
}

func (d *DriveStore) Update(ctx context.Context, fileID string, r io.Reader, size int64) (*sdb.FileInfo, error) {
	f, err := d.service.Files.Update(fileID, &drive.File{}).
		Media(r, googleapi.ContentType("application/octet-stream")).
		Fields(googleapi.Field(driveFields)).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("updating file content: %w", err)
	}
	return driveInfo(f), nil
}

func driveInfo(f *drive.File) *sdb.FileInfo {
	return &sdb.FileInfo{
		ID:       f.Id,
		Name:     f.Name,
		Revision: f.HeadRevisionId,
		MD5:      f.Md5Checksum,
		Size:     f.Size,
	}
}
