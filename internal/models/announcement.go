package models

import (
	"time"

	"github.com/lib/pq"
)

// AnnouncementCategory groups announcements on the feed.
type AnnouncementCategory string

const (
	CategoryAll            AnnouncementCategory = "All"
	CategoryAcademic       AnnouncementCategory = "Academic"
	CategoryAdministrative AnnouncementCategory = "Administrative/Misc"
	CategoryCoCurricular   AnnouncementCategory = "Co-curricular/Sports/Cultural"
	CategoryPlacement      AnnouncementCategory = "Placement"
	CategoryBenefits       AnnouncementCategory = "Benefits"
)

// Categories lists every accepted category in display order.
var Categories = []AnnouncementCategory{
	CategoryAll,
	CategoryAcademic,
	CategoryAdministrative,
	CategoryCoCurricular,
	CategoryPlacement,
	CategoryBenefits,
}

// Valid reports whether c is a known category.
func (c AnnouncementCategory) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// AnnouncementAudience defines who an announcement is meant for.
type AnnouncementAudience string

const (
	AudienceFaculty  AnnouncementAudience = "Faculty"
	AudienceStudents AnnouncementAudience = "Students"
	AudienceBoth     AnnouncementAudience = "Both"
)

// Valid reports whether a is a known audience.
func (a AnnouncementAudience) Valid() bool {
	switch a {
	case AudienceFaculty, AudienceStudents, AudienceBoth:
		return true
	default:
		return false
	}
}

// Announcement represents a persisted announcement row.
type Announcement struct {
	ID                  string               `db:"id" json:"id"`
	Title               string               `db:"title" json:"title"`
	OriginalDescription string               `db:"original_description" json:"originalDescription"`
	Summary             string               `db:"summary" json:"summary"`
	ImageURL            string               `db:"image_url" json:"imageUrl"`
	Tags                pq.StringArray       `db:"tags" json:"tags"`
	Category            AnnouncementCategory `db:"category" json:"category"`
	Audience            AnnouncementAudience `db:"audience" json:"audience"`
	Students            RecipientList        `db:"students" json:"students"`
	Staff               RecipientList        `db:"staff" json:"staff"`
	Attachments         AttachmentList       `db:"attachments" json:"attachments"`
	AuthorID            string               `db:"author_id" json:"authorId"`
	CreatedAt           time.Time            `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time            `db:"updated_at" json:"updatedAt"`
}

// Normalize replaces nil collections with empty ones so rows never carry NULL arrays.
func (a *Announcement) Normalize() {
	if a.Tags == nil {
		a.Tags = pq.StringArray{}
	}
	if a.Students == nil {
		a.Students = RecipientList{}
	}
	if a.Staff == nil {
		a.Staff = RecipientList{}
	}
	if a.Attachments == nil {
		a.Attachments = AttachmentList{}
	}
}

// FindAttachment returns the index of the attachment with the given id, or -1.
func (a *Announcement) FindAttachment(id string) int {
	for i, att := range a.Attachments {
		if att.ID == id {
			return i
		}
	}
	return -1
}

// Recipient is an informational entry on an announcement's student or staff list.
type Recipient struct {
	Name  string `json:"name"`
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Attachment is a file owned by exactly one announcement.
type Attachment struct {
	ID         string    `json:"id"`
	FileName   string    `json:"fileName"`
	FileURL    string    `json:"fileUrl"`
	FileSize   int64     `json:"fileSize"`
	FileType   string    `json:"fileType"`
	StorageKey string    `json:"storageKey"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// AnnouncementFilter allows listing announcements.
type AnnouncementFilter struct {
	AuthorID string
	Category AnnouncementCategory
	Page     int
	PerPage  int
}
