package main

import (
	"context"

	"github.com/AGES-Pro-Mata/frontend-sub002/internal/config"
	ferrors "github.com/AGES-Pro-Mata/frontend-sub002/internal/errors"
	"github.com/AGES-Pro-Mata/frontend-sub002/pkg/persist"
)

// openStorage returns the snapshot storage selected by cfg, or nil for the
// "none" backend.
func openStorage(ctx context.Context, cfg config.PersistConfig) (persist.Storage, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return persist.NewMemoryStorage(), nil
	case "sqlite":
		storage, err := persist.OpenSQLite(ctx, cfg.SQLite.Path, persist.WithSQLTableName(cfg.SQLite.Table))
		if err != nil {
			return nil, err
		}
		return storage, nil
	case "s3":
		client := persist.NewS3Client(persist.S3ClientOptions{
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			UsePathStyle:    cfg.S3.UsePathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		return persist.NewS3Storage(client, cfg.S3.Bucket, cfg.S3.Prefix), nil
	default:
		return nil, ferrors.New("C002").WithDetailf("unknown persist backend %q", cfg.Backend)
	}
}
