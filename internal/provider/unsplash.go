package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// UnsplashClient resolves a random photo through the source redirect endpoint.
type UnsplashClient struct {
	client *resty.Client
}

// NewUnsplashClient builds a client against baseURL.
func NewUnsplashClient(baseURL string, timeout time.Duration) *UnsplashClient {
	client := newRestyClient(strings.TrimRight(baseURL, "/"), timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	return &UnsplashClient{client: client}
}

// Name identifies the provider in logs and metrics.
func (u *UnsplashClient) Name() string { return "unsplash" }

// FindImage follows the redirect for query and returns the final image URL.
func (u *UnsplashClient) FindImage(ctx context.Context, query string) (string, error) {
	resp, err := u.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get("/1600x900/?" + url.QueryEscape(query))
	if err != nil {
		return "", fmt.Errorf("unsplash request: %w", err)
	}
	raw := resp.RawResponse
	defer raw.Body.Close() //nolint:errcheck

	if raw.StatusCode < 200 || raw.StatusCode >= 300 {
		return "", fmt.Errorf("unsplash status %d", raw.StatusCode)
	}
	if raw.Request == nil || raw.Request.URL == nil {
		return "", ErrEmptyResult
	}
	return raw.Request.URL.String(), nil
}
