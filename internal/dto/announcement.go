package dto

import (
	"io"

	"github.com/noah-isme/campus-bulletin-api/internal/models"
)

// FileUpload is one uploaded file handed from the HTTP layer to services.
type FileUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// RecipientPayload is a recipient as submitted by clients.
type RecipientPayload struct {
	Name  string `json:"name" validate:"max=200"`
	ID    string `json:"id" validate:"max=100"`
	Email string `json:"email" validate:"max=254"`
}

// CreateAnnouncementRequest is the create payload. Summary is optional; a nil
// or empty value asks for a generated one.
type CreateAnnouncementRequest struct {
	Title       string             `json:"title" validate:"required,max=200"`
	Description string             `json:"description" validate:"required"`
	Summary     *string            `json:"summary"`
	Tags        []string           `json:"tags" validate:"max=20,dive,max=50"`
	Category    string             `json:"category" validate:"category"`
	Audience    string             `json:"audience" validate:"audience"`
	Students    []RecipientPayload `json:"students" validate:"dive"`
	Staff       []RecipientPayload `json:"staff" validate:"dive"`
	AuthorID    string             `json:"authorId" validate:"required"`
	Files       []FileUpload       `json:"-" validate:"-"`
}

// UpdateAnnouncementRequest is a partial update. Nil fields are left untouched;
// Summary set to "" explicitly asks for a regenerated summary.
type UpdateAnnouncementRequest struct {
	Title       *string            `json:"title" validate:"omitempty,max=200"`
	Description *string            `json:"description"`
	Summary     *string            `json:"summary"`
	Tags        []string           `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	Category    *string            `json:"category" validate:"omitempty,category"`
	Audience    *string            `json:"audience" validate:"omitempty,audience"`
	Students    []RecipientPayload `json:"students" validate:"omitempty,dive"`
	Staff       []RecipientPayload `json:"staff" validate:"omitempty,dive"`
	CallerID    string             `json:"-" validate:"-"`
	Files       []FileUpload       `json:"-" validate:"-"`
}

// RegenerateImageRequest optionally pins a custom image URL.
type RegenerateImageRequest struct {
	CustomImageURL string `json:"customImageUrl" validate:"omitempty,max=2048"`
	AuthorID       string `json:"authorId"`
}

// OwnerRequest carries the caller identity for bodies that only need it.
type OwnerRequest struct {
	AuthorID string `json:"authorId"`
}

// UploadResult is returned after attachments are appended.
type UploadResult struct {
	Attachments  []models.Attachment  `json:"attachments"`
	Announcement *models.Announcement `json:"announcement"`
}

// AnnouncementResult wraps a single announcement for sub-resource endpoints.
type AnnouncementResult struct {
	Announcement *models.Announcement `json:"announcement"`
}

// RosterImportResult lists recipients resolved from an uploaded sheet.
type RosterImportResult struct {
	Recipients []models.Recipient `json:"recipients"`
	Skipped    int                `json:"skipped"`
}

// ListAnnouncementsQuery holds listing query parameters.
type ListAnnouncementsQuery struct {
	AuthorID string `form:"authorId"`
	Category string `form:"category"`
	Page     int    `form:"page"`
	Limit    int    `form:"limit"`
}

// ExportFile is a rendered download.
type ExportFile struct {
	FileName    string
	ContentType string
	Content     []byte
}
