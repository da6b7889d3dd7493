// Package storage keeps attachment bytes on local disk or in an S3 bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/campus-bulletin-api/pkg/config"
)

// Store persists attachment content addressed by key.
type Store interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// New picks the configured driver.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", config.StorageDriverLocal:
		return NewLocalStorage(cfg.UploadDir, cfg.BaseURL)
	case config.StorageDriverS3:
		return NewS3Storage(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// AttachmentKey builds a collision free key that keeps the original extension.
func AttachmentKey(announcementID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("attachments/%s/%d-%s%s", announcementID, time.Now().UTC().Unix(), uuid.NewString(), ext)
}
