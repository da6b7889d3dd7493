// Package provider holds the outbound HTTP clients used to derive summaries and cover images.
package provider

import (
	"errors"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrEmptyResult is returned when a provider answers successfully but without usable content.
var ErrEmptyResult = errors.New("provider returned no content")

func newRestyClient(baseURL string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", "campus-bulletin-api")
}
