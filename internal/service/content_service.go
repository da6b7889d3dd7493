package service

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// FallbackSummaryWords is the word budget of a truncated summary.
const FallbackSummaryWords = 60

// SummaryProvider produces an AI summary of an announcement body.
type SummaryProvider interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// ImageProvider resolves a cover image for a search query.
type ImageProvider interface {
	Name() string
	FindImage(ctx context.Context, query string) (string, error)
}

// ContentConfig tunes generation deadlines and the placeholder host.
type ContentConfig struct {
	Timeout        time.Duration
	PlaceholderURL string
}

// ContentService derives summaries and images. It never returns an error:
// every failure resolves to a deterministic fallback.
type ContentService struct {
	summarizer SummaryProvider
	images     []ImageProvider
	sanitizer  *bluemonday.Policy
	metrics    *MetricsService
	logger     *zap.Logger
	cfg        ContentConfig
	now        func() time.Time
}

// NewContentService wires providers. summarizer may be nil when no AI key is configured;
// images are tried in order.
func NewContentService(summarizer SummaryProvider, images []ImageProvider, metrics *MetricsService, logger *zap.Logger, cfg ContentConfig) *ContentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.PlaceholderURL == "" {
		cfg.PlaceholderURL = "https://picsum.photos"
	}
	cfg.PlaceholderURL = strings.TrimRight(cfg.PlaceholderURL, "/")
	return &ContentService{
		summarizer: summarizer,
		images:     images,
		sanitizer:  bluemonday.StrictPolicy(),
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// FallbackSummary truncates text to its first 60 words followed by "...".
// Texts of 60 words or fewer are returned trimmed and otherwise unchanged.
func FallbackSummary(text string) string {
	trimmed := strings.TrimSpace(text)
	words := strings.Fields(trimmed)
	if len(words) <= FallbackSummaryWords {
		return trimmed
	}
	return strings.Join(words[:FallbackSummaryWords], " ") + "..."
}

// GenerateSummary returns an AI summary of text, or the truncation fallback.
func (s *ContentService) GenerateSummary(ctx context.Context, text string) string {
	if s.summarizer == nil {
		s.metrics.RecordGeneration(GenerationKindSummary, GenerationSourceFallback)
		return FallbackSummary(text)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	raw, err := s.summarizer.Summarize(callCtx, text)
	if err != nil {
		s.logger.Warn("summary generation failed, using truncation", zap.Error(err))
		s.metrics.RecordGeneration(GenerationKindSummary, GenerationSourceFallback)
		return FallbackSummary(text)
	}

	summary := strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(raw)))
	if summary == "" || ContainsInjection(summary) {
		s.logger.Warn("summary generation returned unusable text, using truncation", zap.Int("length", len(raw)))
		s.metrics.RecordGeneration(GenerationKindSummary, GenerationSourceFallback)
		return FallbackSummary(text)
	}

	s.metrics.RecordGeneration(GenerationKindSummary, GenerationSourceAI)
	return summary
}

// GenerateImage returns a cover image URL for the announcement, trying each
// provider with its own deadline before settling on a placeholder.
func (s *ContentService) GenerateImage(ctx context.Context, title string, tags []string) string {
	query := ImageQuery(title, tags)

	for _, provider := range s.images {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		imageURL, err := provider.FindImage(callCtx, query)
		cancel()
		if err == nil && imageURL != "" {
			s.metrics.RecordGeneration(GenerationKindImage, provider.Name())
			return imageURL
		}
		s.logger.Warn("image provider unavailable", zap.String("provider", provider.Name()), zap.String("query", query), zap.Error(err))
	}

	s.metrics.RecordGeneration(GenerationKindImage, GenerationSourcePlaceholder)
	return s.placeholder(title)
}

// ImageQuery joins tags with spaces, or falls back to the title when no tag has content.
func ImageQuery(title string, tags []string) string {
	if query := strings.TrimSpace(strings.Join(tags, " ")); query != "" {
		return query
	}
	return strings.TrimSpace(title)
}

func (s *ContentService) placeholder(title string) string {
	seed := title + strconv.FormatInt(s.now().UnixMilli(), 10)
	return fmt.Sprintf("%s/seed/%s/1600/900", s.cfg.PlaceholderURL, url.PathEscape(seed))
}
