package storage

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-bulletin-api/pkg/jobs"
)

// AsyncDeleter saves synchronously and hands deletions to a retrying background queue.
type AsyncDeleter struct {
	store  Store
	queue  *jobs.Queue[string]
	logger *zap.Logger
}

// NewAsyncDeleter wraps store. Call Start before use and Stop on shutdown.
func NewAsyncDeleter(store Store, cfg jobs.Config) *AsyncDeleter {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	d := &AsyncDeleter{store: store, logger: cfg.Logger}
	d.queue = jobs.NewQueue[string]("attachment-purge", store.Delete, cfg)
	return d
}

// Start launches the purge workers.
func (d *AsyncDeleter) Start(ctx context.Context) { d.queue.Start(ctx) }

// Stop drains pending deletions.
func (d *AsyncDeleter) Stop() { d.queue.Stop() }

// Save writes through to the wrapped store.
func (d *AsyncDeleter) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	return d.store.Save(ctx, key, r, size, contentType)
}

// Delete schedules removal of key. When the queue is not running the delete happens inline.
func (d *AsyncDeleter) Delete(ctx context.Context, key string) error {
	if err := d.queue.Enqueue(ctx, key); err != nil {
		d.logger.Warn("purge queue unavailable, deleting inline", zap.String("key", key), zap.Error(err))
		return d.store.Delete(ctx, key)
	}
	return nil
}
