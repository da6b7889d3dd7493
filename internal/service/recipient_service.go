package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-bulletin-api/internal/dto"
	"github.com/noah-isme/campus-bulletin-api/internal/models"
	appErrors "github.com/noah-isme/campus-bulletin-api/pkg/errors"
	"github.com/noah-isme/campus-bulletin-api/pkg/export"
	"github.com/noah-isme/campus-bulletin-api/pkg/roster"
)

type announcementReader interface {
	Get(ctx context.Context, id string) (*models.Announcement, error)
}

// RecipientService imports recipient rosters and exports the recipients of an announcement.
type RecipientService struct {
	announcements announcementReader
	maxSize       int64
	logger        *zap.Logger
}

// NewRecipientService constructs the service. maxSize bounds uploaded rosters in bytes.
func NewRecipientService(announcements announcementReader, maxSize int64, logger *zap.Logger) *RecipientService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSize <= 0 {
		maxSize = 1024 * 1024
	}
	return &RecipientService{announcements: announcements, maxSize: maxSize, logger: logger}
}

// Import parses an uploaded CSV or XLSX roster.
func (s *RecipientService) Import(_ context.Context, file dto.FileUpload) (*dto.RosterImportResult, error) {
	if file.Open == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "roster file is required")
	}
	if file.Size > s.maxSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("roster exceeds the %d KB limit", s.maxSize/1024))
	}

	reader, err := file.Open()
	if err != nil {
		return nil, appErrors.Internal(err, "failed to read roster")
	}
	defer reader.Close() //nolint:errcheck

	result, err := roster.Parse(file.FileName, io.LimitReader(reader, s.maxSize))
	if err != nil {
		switch {
		case errors.Is(err, roster.ErrUnsupportedFormat), errors.Is(err, roster.ErrNoColumns), errors.Is(err, roster.ErrEmpty):
			return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "roster could not be parsed")
		}
	}

	recipients := make([]models.Recipient, 0, len(result.Entries))
	for _, e := range result.Entries {
		recipients = append(recipients, models.Recipient{Name: e.Name, ID: e.ID, Email: e.Email})
	}
	s.logger.Info("roster imported", zap.String("file", file.FileName), zap.Int("recipients", len(recipients)), zap.Int("skipped", result.Skipped))
	return &dto.RosterImportResult{Recipients: recipients, Skipped: result.Skipped}, nil
}

// Export renders the students and staff of an announcement owned by callerID.
func (s *RecipientService) Export(ctx context.Context, id, callerID, format string) (*dto.ExportFile, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	ann, err := s.announcements.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !Authorize(callerID, ann.AuthorID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the author can export recipients")
	}

	data := export.Dataset{
		Title:   "Recipients: " + ann.Title,
		Headers: []string{"Type", "Name", "ID", "Email"},
	}
	for _, r := range ann.Students {
		data.Rows = append(data.Rows, []string{"Student", r.Name, r.ID, r.Email})
	}
	for _, r := range ann.Staff {
		data.Rows = append(data.Rows, []string{"Staff", r.Name, r.ID, r.Email})
	}

	content, err := export.Render(f, data)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render recipients")
	}
	return &dto.ExportFile{
		FileName:    fmt.Sprintf("recipients-%s.%s", strings.ToLower(ann.ID), f),
		ContentType: f.ContentType(),
		Content:     content,
	}, nil
}
