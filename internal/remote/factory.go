package remote

import (
	"context"
	"fmt"

	"sdb-go/internal/config"
	"sdb-go/internal/sdb"
)

// NewStoreFromConfig creates a RemoteStore implementation based on the
// remote config type.
func NewStoreFromConfig(ctx context.Context, cfg config.RemoteConfig) (sdb.RemoteStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "drive":
		if cfg.CredentialsPath == "" {
			return nil, fmt.Errorf("drive remote requires credentials_path to be set")
		}
		return NewDriveStore(ctx, cfg.CredentialsPath)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 remote requires s3_bucket to be set")
		}
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown remote type: %s", cfg.Type)
	}
}
