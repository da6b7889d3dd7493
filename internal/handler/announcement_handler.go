package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-bulletin-api/internal/dto"
	"github.com/noah-isme/campus-bulletin-api/internal/models"
	appErrors "github.com/noah-isme/campus-bulletin-api/pkg/errors"
	"github.com/noah-isme/campus-bulletin-api/pkg/response"
)

type announcementService interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, req dto.CreateAnnouncementRequest) (*models.Announcement, error)
	Update(ctx context.Context, id string, req dto.UpdateAnnouncementRequest) (*models.Announcement, error)
	Delete(ctx context.Context, id, callerID string) error
	RegenerateImage(ctx context.Context, id, customURL, callerID string) (*models.Announcement, error)
	UploadAttachments(ctx context.Context, id string, files []dto.FileUpload, callerID string) (*dto.UploadResult, error)
	DeleteAttachment(ctx context.Context, id, attachmentID, callerID string) (*models.Announcement, error)
}

// AnnouncementHandler serves announcement endpoints.
type AnnouncementHandler struct {
	service announcementService
}

// NewAnnouncementHandler constructs the handler.
func NewAnnouncementHandler(svc announcementService) *AnnouncementHandler {
	return &AnnouncementHandler{service: svc}
}

type updateAnnouncementBody struct {
	dto.UpdateAnnouncementRequest
	AuthorID string `json:"authorId"`
}

func invalidPayload(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}

// List godoc
// @Summary List announcements
// @Tags Announcements
// @Produce json
// @Param authorId query string false "Author filter"
// @Param category query string false "Category filter, All disables it"
// @Param page query int false "Page number"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} response.PageEnvelope
// @Router /announcements [get]
func (h *AnnouncementHandler) List(c *gin.Context) {
	filter := models.AnnouncementFilter{
		AuthorID: strings.TrimSpace(c.Query("authorId")),
		Category: models.AnnouncementCategory(strings.TrimSpace(c.Query("category"))),
		Page:     queryInt(c, "page"),
		PerPage:  queryInt(c, "limit"),
	}
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, items, pagination)
}

// Get godoc
// @Summary Get announcement
// @Tags Announcements
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /announcements/{id} [get]
func (h *AnnouncementHandler) Get(c *gin.Context) {
	ann, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ann)
}

// Create godoc
// @Summary Create announcement
// @Description Accepts JSON or multipart/form-data with up to five files under "files".
// @Tags Announcements
// @Accept json,mpfd
// @Produce json
// @Param payload body dto.CreateAnnouncementRequest true "Announcement payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /announcements [post]
func (h *AnnouncementHandler) Create(c *gin.Context) {
	var req dto.CreateAnnouncementRequest
	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			response.Error(c, invalidPayload(err, "invalid multipart payload"))
			return
		}
		req.Title, _ = formValue(form, "title")
		req.Description, _ = formValue(form, "description")
		req.Summary = formPointer(form, "summary")
		req.Category, _ = formValue(form, "category")
		req.Audience, _ = formValue(form, "audience")
		req.AuthorID, _ = formValue(form, "authorId")
		if req.Tags, err = formTags(form); err != nil {
			response.Error(c, invalidPayload(err, "tags must be a JSON array"))
			return
		}
		if req.Students, err = formRecipients(form, "students"); err != nil {
			response.Error(c, invalidPayload(err, "students must be a JSON array"))
			return
		}
		if req.Staff, err = formRecipients(form, "staff"); err != nil {
			response.Error(c, invalidPayload(err, "staff must be a JSON array"))
			return
		}
		req.Files = formFiles(form, "files")
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid announcement payload"))
		return
	}
	req.AuthorID = callerID(c, req.AuthorID)

	ann, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ann)
}

// Update godoc
// @Summary Update announcement
// @Description Partial update; new files are appended to existing attachments.
// @Tags Announcements
// @Accept json,mpfd
// @Produce json
// @Param id path string true "Announcement ID"
// @Param payload body dto.UpdateAnnouncementRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /announcements/{id} [put]
func (h *AnnouncementHandler) Update(c *gin.Context) {
	var body updateAnnouncementBody
	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			response.Error(c, invalidPayload(err, "invalid multipart payload"))
			return
		}
		req := &body.UpdateAnnouncementRequest
		req.Title = formPointer(form, "title")
		req.Description = formPointer(form, "description")
		req.Summary = formPointer(form, "summary")
		req.Category = formPointer(form, "category")
		req.Audience = formPointer(form, "audience")
		body.AuthorID, _ = formValue(form, "authorId")
		if req.Tags, err = formTags(form); err != nil {
			response.Error(c, invalidPayload(err, "tags must be a JSON array"))
			return
		}
		if req.Students, err = formRecipients(form, "students"); err != nil {
			response.Error(c, invalidPayload(err, "students must be a JSON array"))
			return
		}
		if req.Staff, err = formRecipients(form, "staff"); err != nil {
			response.Error(c, invalidPayload(err, "staff must be a JSON array"))
			return
		}
		req.Files = formFiles(form, "files")
	} else if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, invalidPayload(err, "invalid announcement payload"))
		return
	}
	body.CallerID = callerID(c, body.AuthorID)

	ann, err := h.service.Update(c.Request.Context(), c.Param("id"), body.UpdateAnnouncementRequest)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ann)
}

// Delete godoc
// @Summary Delete announcement
// @Tags Announcements
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /announcements/{id} [delete]
func (h *AnnouncementHandler) Delete(c *gin.Context) {
	var body dto.OwnerRequest
	if err := bindOptionalJSON(c, &body); err != nil {
		response.Error(c, invalidPayload(err, "invalid payload"))
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), callerID(c, body.AuthorID)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "announcement deleted"})
}

// RegenerateImage godoc
// @Summary Replace the cover image
// @Description Uses customImageUrl when given, otherwise generates a new image.
// @Tags Announcements
// @Accept json
// @Produce json
// @Param id path string true "Announcement ID"
// @Param payload body dto.RegenerateImageRequest false "Custom image"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /announcements/{id}/regenerate-image [post]
func (h *AnnouncementHandler) RegenerateImage(c *gin.Context) {
	var body dto.RegenerateImageRequest
	if err := bindOptionalJSON(c, &body); err != nil {
		response.Error(c, invalidPayload(err, "invalid payload"))
		return
	}
	ann, err := h.service.RegenerateImage(c.Request.Context(), c.Param("id"), body.CustomImageURL, callerID(c, body.AuthorID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ann)
}

// UploadAttachments godoc
// @Summary Append attachments
// @Tags Announcements
// @Accept mpfd
// @Produce json
// @Param id path string true "Announcement ID"
// @Param files formData file true "Up to five files"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /announcements/{id}/upload [post]
func (h *AnnouncementHandler) UploadAttachments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, invalidPayload(err, "multipart form with files is required"))
		return
	}
	authorID, _ := formValue(form, "authorId")
	res, err := h.service.UploadAttachments(c.Request.Context(), c.Param("id"), formFiles(form, "files"), callerID(c, authorID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// DeleteAttachment godoc
// @Summary Remove one attachment
// @Tags Announcements
// @Produce json
// @Param id path string true "Announcement ID"
// @Param attachmentId path string true "Attachment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /announcements/{id}/attachment/{attachmentId} [delete]
func (h *AnnouncementHandler) DeleteAttachment(c *gin.Context) {
	var body dto.OwnerRequest
	if err := bindOptionalJSON(c, &body); err != nil {
		response.Error(c, invalidPayload(err, "invalid payload"))
		return
	}
	ann, err := h.service.DeleteAttachment(c.Request.Context(), c.Param("id"), c.Param("attachmentId"), callerID(c, body.AuthorID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.AnnouncementResult{Announcement: ann})
}

// queryInt returns 0 for missing or malformed values so the service applies defaults.
func queryInt(c *gin.Context, key string) int {
	value, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil {
		return 0
	}
	return value
}
