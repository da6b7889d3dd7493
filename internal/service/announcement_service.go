package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-bulletin-api/internal/dto"
	"github.com/noah-isme/campus-bulletin-api/internal/models"
	appErrors "github.com/noah-isme/campus-bulletin-api/pkg/errors"
	"github.com/noah-isme/campus-bulletin-api/pkg/storage"
)

// MaxFilesPerUpload bounds attachments accepted by a single request.
const MaxFilesPerUpload = 5

type announcementRepository interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	GetByID(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Update(ctx context.Context, announcement *models.Announcement) error
	Delete(ctx context.Context, id string) error
}

type contentGenerator interface {
	GenerateSummary(ctx context.Context, text string) string
	GenerateImage(ctx context.Context, title string, tags []string) string
}

// AnnouncementConfig bounds uploads.
type AnnouncementConfig struct {
	MaxAttachmentSize int64
}

// AnnouncementService owns the announcement lifecycle and derived content decisions.
type AnnouncementService struct {
	repo      announcementRepository
	content   contentGenerator
	store     storage.Store
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AnnouncementConfig
}

// NewAnnouncementService constructs the service.
func NewAnnouncementService(repo announcementRepository, content contentGenerator, store storage.Store, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg AnnouncementConfig) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttachmentSize <= 0 {
		cfg.MaxAttachmentSize = 10 * 1024 * 1024
	}
	RegisterAnnouncementValidators(validate)
	return &AnnouncementService{
		repo:      repo,
		content:   content,
		store:     store,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// RegisterAnnouncementValidators adds the category and audience tags. Empty values pass
// so that callers can fall back to defaults.
func RegisterAnnouncementValidators(v *validator.Validate) {
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return value == "" || models.AnnouncementCategory(value).Valid()
	})
	_ = v.RegisterValidation("audience", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return value == "" || models.AnnouncementAudience(value).Valid()
	})
}

type cachedPage struct {
	Items []models.Announcement `json:"items"`
	Total int                   `json:"total"`
}

// List returns one page of announcements with pagination metadata.
func (s *AnnouncementService) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, models.Pagination, error) {
	filter.Page, filter.PerPage = models.ClampPage(filter.Page, filter.PerPage)
	if filter.Category == models.CategoryAll {
		filter.Category = ""
	}

	key := ListKey(filter)
	var cached cachedPage
	if s.cache.Get(ctx, key, &cached) {
		return cached.Items, models.NewPagination(filter.Page, filter.PerPage, cached.Total), nil
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, appErrors.Internal(err, "failed to list announcements")
	}
	if items == nil {
		items = []models.Announcement{}
	}
	s.cache.Set(ctx, key, cachedPage{Items: items, Total: total})
	return items, models.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Get returns an announcement by id.
func (s *AnnouncementService) Get(ctx context.Context, id string) (*models.Announcement, error) {
	ann, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Internal(err, "failed to get announcement")
	}
	return ann, nil
}

// Create validates the payload, derives summary and image, stores attachments and persists.
func (s *AnnouncementService) Create(ctx context.Context, req dto.CreateAnnouncementRequest) (*models.Announcement, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.AuthorID = strings.TrimSpace(req.AuthorID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "title, description and authorId are required; title must be at most 200 characters")
	}

	manual := ""
	if req.Summary != nil {
		manual = strings.TrimSpace(*req.Summary)
	}
	if ContainsInjection(append([]string{req.Title, req.Description, manual, req.Category, req.Audience}, req.Tags...)...) ||
		recipientsContainInjection(req.Students) || recipientsContainInjection(req.Staff) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "input contains disallowed content")
	}
	if err := s.checkFiles(req.Files, false); err != nil {
		return nil, err
	}

	ann := &models.Announcement{
		ID:                  uuid.NewString(),
		Title:               req.Title,
		OriginalDescription: req.Description,
		Tags:                cleanTags(req.Tags),
		Category:            models.CategoryAll,
		Audience:            models.AudienceBoth,
		Students:            toRecipients(req.Students),
		Staff:               toRecipients(req.Staff),
		AuthorID:            req.AuthorID,
	}
	if req.Category != "" {
		ann.Category = models.AnnouncementCategory(req.Category)
	}
	if req.Audience != "" {
		ann.Audience = models.AnnouncementAudience(req.Audience)
	}

	if manual != "" {
		ann.Summary = manual
		s.metrics.RecordGeneration(GenerationKindSummary, GenerationSourceManual)
	} else {
		ann.Summary = s.content.GenerateSummary(ctx, ann.OriginalDescription)
	}
	ann.ImageURL = s.content.GenerateImage(ctx, ann.Title, ann.Tags)

	attachments, err := s.saveFiles(ctx, ann.ID, req.Files)
	if err != nil {
		return nil, err
	}
	ann.Attachments = attachments

	if err := s.repo.Create(ctx, ann); err != nil {
		s.discard(ctx, attachments)
		return nil, appErrors.Internal(err, "failed to create announcement")
	}
	s.cache.InvalidateLists(ctx)
	s.logger.Info("announcement created", zap.String("id", ann.ID), zap.String("author_id", ann.AuthorID), zap.Int("attachments", len(attachments)))
	return ann, nil
}

// Update applies a partial update. Summary and image are regenerated only when
// the inputs they derive from change; new files are appended.
func (s *AnnouncementService) Update(ctx context.Context, id string, req dto.UpdateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		if trimmed == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "title cannot be empty")
		}
		req.Title = &trimmed
	}
	if req.Description != nil {
		trimmed := strings.TrimSpace(*req.Description)
		if trimmed == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "description cannot be empty")
		}
		req.Description = &trimmed
	}
	if ContainsInjection(append([]string{deref(req.Title), deref(req.Description), deref(req.Summary), deref(req.Category), deref(req.Audience)}, req.Tags...)...) ||
		recipientsContainInjection(req.Students) || recipientsContainInjection(req.Staff) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "input contains disallowed content")
	}
	if err := s.checkFiles(req.Files, false); err != nil {
		return nil, err
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !Authorize(req.CallerID, existing.AuthorID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the author can edit this announcement")
	}

	var tags []string
	if req.Tags != nil {
		tags = cleanTags(req.Tags)
	}
	summaryAction := decideSummary(existing, req.Summary, req.Description)
	regenerateImage := (req.Tags != nil && !equalTags(tags, existing.Tags)) ||
		(req.Title != nil && *req.Title != existing.Title)

	if req.Title != nil {
		existing.Title = *req.Title
	}
	if req.Description != nil {
		existing.OriginalDescription = *req.Description
	}
	if req.Tags != nil {
		existing.Tags = tags
	}
	if req.Category != nil && *req.Category != "" {
		existing.Category = models.AnnouncementCategory(*req.Category)
	}
	if req.Audience != nil && *req.Audience != "" {
		existing.Audience = models.AnnouncementAudience(*req.Audience)
	}
	if req.Students != nil {
		existing.Students = toRecipients(req.Students)
	}
	if req.Staff != nil {
		existing.Staff = toRecipients(req.Staff)
	}

	switch summaryAction {
	case summaryManual:
		existing.Summary = strings.TrimSpace(*req.Summary)
		s.metrics.RecordGeneration(GenerationKindSummary, GenerationSourceManual)
	case summaryRegenerate:
		existing.Summary = s.content.GenerateSummary(ctx, existing.OriginalDescription)
	}
	if regenerateImage {
		existing.ImageURL = s.content.GenerateImage(ctx, existing.Title, existing.Tags)
	}

	added, err := s.saveFiles(ctx, existing.ID, req.Files)
	if err != nil {
		return nil, err
	}
	existing.Attachments = append(existing.Attachments, added...)

	if err := s.repo.Update(ctx, existing); err != nil {
		s.discard(ctx, added)
		return nil, appErrors.Internal(err, "failed to update announcement")
	}
	s.cache.InvalidateLists(ctx)
	s.logger.Info("announcement updated",
		zap.String("id", existing.ID),
		zap.String("summary", string(summaryAction)),
		zap.Bool("image_regenerated", regenerateImage),
		zap.Int("attachments_added", len(added)),
	)
	return existing, nil
}

// Delete removes an announcement owned by callerID together with its stored files.
func (s *AnnouncementService) Delete(ctx context.Context, id, callerID string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !Authorize(callerID, existing.AuthorID) {
		return appErrors.Clone(appErrors.ErrForbidden, "only the author can delete this announcement")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to delete announcement")
	}
	s.discard(ctx, existing.Attachments)
	s.cache.InvalidateLists(ctx)
	s.logger.Info("announcement deleted", zap.String("id", id))
	return nil
}

// RegenerateImage replaces the cover image with customURL or a freshly generated one.
func (s *AnnouncementService) RegenerateImage(ctx context.Context, id, customURL, callerID string) (*models.Announcement, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !Authorize(callerID, existing.AuthorID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the author can change the image")
	}

	if custom := strings.TrimSpace(customURL); custom != "" {
		if ContainsInjection(custom) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "input contains disallowed content")
		}
		existing.ImageURL = custom
		s.metrics.RecordGeneration(GenerationKindImage, GenerationSourceManual)
	} else {
		existing.ImageURL = s.content.GenerateImage(ctx, existing.Title, existing.Tags)
	}

	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, appErrors.Internal(err, "failed to update announcement image")
	}
	s.cache.InvalidateLists(ctx)
	return existing, nil
}

// UploadAttachments appends files to an announcement owned by callerID.
func (s *AnnouncementService) UploadAttachments(ctx context.Context, id string, files []dto.FileUpload, callerID string) (*dto.UploadResult, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkFiles(files, true); err != nil {
		return nil, err
	}
	if !Authorize(callerID, existing.AuthorID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the author can add attachments")
	}

	added, err := s.saveFiles(ctx, existing.ID, files)
	if err != nil {
		return nil, err
	}
	existing.Attachments = append(existing.Attachments, added...)

	if err := s.repo.Update(ctx, existing); err != nil {
		s.discard(ctx, added)
		return nil, appErrors.Internal(err, "failed to save attachments")
	}
	s.cache.InvalidateLists(ctx)
	return &dto.UploadResult{Attachments: added, Announcement: existing}, nil
}

// DeleteAttachment removes one attachment from an announcement owned by callerID.
func (s *AnnouncementService) DeleteAttachment(ctx context.Context, id, attachmentID, callerID string) (*models.Announcement, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	idx := existing.FindAttachment(attachmentID)
	if idx < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
	}
	if !Authorize(callerID, existing.AuthorID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the author can remove attachments")
	}

	removed := existing.Attachments[idx]
	remaining := make(models.AttachmentList, 0, len(existing.Attachments)-1)
	remaining = append(remaining, existing.Attachments[:idx]...)
	remaining = append(remaining, existing.Attachments[idx+1:]...)
	existing.Attachments = remaining

	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, appErrors.Internal(err, "failed to remove attachment")
	}
	s.discard(ctx, models.AttachmentList{removed})
	s.cache.InvalidateLists(ctx)
	return existing, nil
}

func (s *AnnouncementService) checkFiles(files []dto.FileUpload, required bool) error {
	if required && len(files) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "no files uploaded")
	}
	if len(files) > MaxFilesPerUpload {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d files can be uploaded at once", MaxFilesPerUpload))
	}
	for _, f := range files {
		if f.Size > s.cfg.MaxAttachmentSize {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s exceeds the %d MB attachment limit", f.FileName, s.cfg.MaxAttachmentSize/(1024*1024)))
		}
		if f.Open == nil {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s could not be read", f.FileName))
		}
	}
	return nil
}

func (s *AnnouncementService) saveFiles(ctx context.Context, announcementID string, files []dto.FileUpload) (models.AttachmentList, error) {
	saved := make(models.AttachmentList, 0, len(files))
	for _, f := range files {
		att, err := s.saveFile(ctx, announcementID, f)
		if err != nil {
			s.discard(ctx, saved)
			return nil, appErrors.Internal(err, "failed to store attachment")
		}
		saved = append(saved, att)
	}
	return saved, nil
}

func (s *AnnouncementService) saveFile(ctx context.Context, announcementID string, f dto.FileUpload) (models.Attachment, error) {
	if s.store == nil {
		return models.Attachment{}, errors.New("attachment storage not configured")
	}
	reader, err := f.Open()
	if err != nil {
		return models.Attachment{}, fmt.Errorf("open %s: %w", f.FileName, err)
	}
	defer reader.Close() //nolint:errcheck

	name := filepath.Base(f.FileName)
	contentType := f.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := storage.AttachmentKey(announcementID, name)
	fileURL, err := s.store.Save(ctx, key, reader, f.Size, contentType)
	if err != nil {
		return models.Attachment{}, err
	}
	return models.Attachment{
		ID:         uuid.NewString(),
		FileName:   name,
		FileURL:    fileURL,
		FileSize:   f.Size,
		FileType:   contentType,
		StorageKey: key,
		UploadedAt: time.Now().UTC(),
	}, nil
}

// discard removes stored objects one by one. Failures are logged and never returned.
func (s *AnnouncementService) discard(ctx context.Context, attachments models.AttachmentList) {
	if s.store == nil {
		return
	}
	for _, att := range attachments {
		if att.StorageKey == "" {
			continue
		}
		if err := s.store.Delete(ctx, att.StorageKey); err != nil {
			s.logger.Warn("failed to remove attachment file", zap.String("attachment_id", att.ID), zap.String("key", att.StorageKey), zap.Error(err))
		}
	}
}

type summaryDecision string

const (
	summaryKeep       summaryDecision = "keep"
	summaryManual     summaryDecision = "manual"
	summaryRegenerate summaryDecision = "regenerate"
)

// decideSummary evaluates, in order: a new non-empty manual summary wins; a changed
// description regenerates; an explicit empty manual summary regenerates; otherwise keep.
func decideSummary(existing *models.Announcement, manual, description *string) summaryDecision {
	if manual != nil {
		if trimmed := strings.TrimSpace(*manual); trimmed != "" && trimmed != existing.Summary {
			return summaryManual
		}
	}
	if description != nil && *description != existing.OriginalDescription {
		return summaryRegenerate
	}
	if manual != nil && strings.TrimSpace(*manual) == "" {
		return summaryRegenerate
	}
	return summaryKeep
}

func equalTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func toRecipients(in []dto.RecipientPayload) models.RecipientList {
	out := make(models.RecipientList, 0, len(in))
	for _, r := range in {
		rec := models.Recipient{
			Name:  strings.TrimSpace(r.Name),
			ID:    strings.TrimSpace(r.ID),
			Email: strings.TrimSpace(r.Email),
		}
		if rec.Name == "" && rec.ID == "" && rec.Email == "" {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func recipientsContainInjection(in []dto.RecipientPayload) bool {
	for _, r := range in {
		if ContainsInjection(r.Name, r.ID, r.Email) {
			return true
		}
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
