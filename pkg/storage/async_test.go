package storage

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-bulletin-api/pkg/jobs"
)

type flakyStore struct {
	mu       sync.Mutex
	failures int
	deleted  []string
}

func (s *flakyStore) Save(_ context.Context, key string, _ io.Reader, _ int64, _ string) (string, error) {
	return "/uploads/" + key, nil
}

func (s *flakyStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("bucket unavailable")
	}
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *flakyStore) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

func TestAsyncDeleterRetriesInBackground(t *testing.T) {
	inner := &flakyStore{failures: 2}
	d := NewAsyncDeleter(inner, jobs.Config{Workers: 1, MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	d.Start(context.Background())

	url, err := d.Save(context.Background(), "attachments/a/x.pdf", nil, 0, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/attachments/a/x.pdf", url)

	require.NoError(t, d.Delete(context.Background(), "attachments/a/x.pdf"))
	require.Eventually(t, func() bool { return len(inner.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)
	d.Stop()
}

func TestAsyncDeleterFallsBackInlineWhenStopped(t *testing.T) {
	inner := &flakyStore{}
	d := NewAsyncDeleter(inner, jobs.Config{})

	require.NoError(t, d.Delete(context.Background(), "attachments/a/y.png"))
	assert.Equal(t, []string{"attachments/a/y.png"}, inner.snapshot())
}
