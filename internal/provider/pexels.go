package provider

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// PexelsClient searches the Pexels photo catalogue.
type PexelsClient struct {
	client *resty.Client
	apiKey string
	page   func() int
}

type pexelsSearchResponse struct {
	Photos []struct {
		Src struct {
			Large2x string `json:"large2x"`
		} `json:"src"`
	} `json:"photos"`
}

// NewPexelsClient builds a client authenticated with apiKey.
func NewPexelsClient(baseURL, apiKey string, timeout time.Duration) *PexelsClient {
	return &PexelsClient{
		client: newRestyClient(strings.TrimRight(baseURL, "/"), timeout),
		apiKey: apiKey,
		page:   func() int { return rand.Intn(5) + 1 },
	}
}

// Name identifies the provider in logs and metrics.
func (p *PexelsClient) Name() string { return "pexels" }

// FindImage returns the large2x rendition of one landscape result for query.
func (p *PexelsClient) FindImage(ctx context.Context, query string) (string, error) {
	var out pexelsSearchResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Authorization", p.apiKey).
		SetQueryParams(map[string]string{
			"query":       query,
			"per_page":    "1",
			"page":        strconv.Itoa(p.page()),
			"orientation": "landscape",
		}).
		SetResult(&out).
		Get("/v1/search")
	if err != nil {
		return "", fmt.Errorf("pexels request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("pexels status %d", resp.StatusCode())
	}
	if len(out.Photos) == 0 || out.Photos[0].Src.Large2x == "" {
		return "", ErrEmptyResult
	}
	return out.Photos[0].Src.Large2x, nil
}
