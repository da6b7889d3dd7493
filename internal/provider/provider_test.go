package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiSummarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "Announcement: Library closes early")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"  Library closes at 5pm today.  "}]}}]}`))
	}))
	defer srv.Close()

	client := NewGeminiClient(srv.URL, "secret", "gemini-test", time.Second)
	summary, err := client.Summarize(context.Background(), "Library closes early")
	require.NoError(t, err)
	assert.Equal(t, "Library closes at 5pm today.", summary)
}

func TestGeminiSummarizeQuotaError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	_, err := NewGeminiClient(srv.URL, "k", "", time.Second).Summarize(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGeminiSummarizeEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	_, err := NewGeminiClient(srv.URL, "k", "", time.Second).Summarize(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyResult)
}

func TestUnsplashFollowsRedirect(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/1600x900") {
			assert.Equal(t, "exam+schedule", r.URL.RawQuery)
			http.Redirect(w, r, srv.URL+"/photo-123.jpg", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	url, err := NewUnsplashClient(srv.URL, time.Second).FindImage(context.Background(), "exam schedule")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/photo-123.jpg", url)
}

func TestUnsplashUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewUnsplashClient(srv.URL, time.Second).FindImage(context.Background(), "x")
	assert.Error(t, err)
}

func TestPexelsFindImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/search", r.URL.Path)
		assert.Equal(t, "pk", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "sports day", q.Get("query"))
		assert.Equal(t, "1", q.Get("per_page"))
		assert.Equal(t, "3", q.Get("page"))
		assert.Equal(t, "landscape", q.Get("orientation"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"photos": []map[string]interface{}{{"src": map[string]string{"large2x": "https://images.pexels.com/p.jpg"}}},
		})
	}))
	defer srv.Close()

	client := NewPexelsClient(srv.URL, "pk", time.Second)
	client.page = func() int { return 3 }
	url, err := client.FindImage(context.Background(), "sports day")
	require.NoError(t, err)
	assert.Equal(t, "https://images.pexels.com/p.jpg", url)
}

func TestPexelsNoPhotos(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"photos":[]}`))
	}))
	defer srv.Close()

	_, err := NewPexelsClient(srv.URL, "pk", time.Second).FindImage(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyResult)
}
