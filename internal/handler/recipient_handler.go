package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-bulletin-api/internal/dto"
	appErrors "github.com/noah-isme/campus-bulletin-api/pkg/errors"
	"github.com/noah-isme/campus-bulletin-api/pkg/response"
)

type recipientService interface {
	Import(ctx context.Context, file dto.FileUpload) (*dto.RosterImportResult, error)
	Export(ctx context.Context, id, callerID, format string) (*dto.ExportFile, error)
}

// RecipientHandler serves roster import and export.
type RecipientHandler struct {
	service recipientService
}

// NewRecipientHandler constructs the handler.
func NewRecipientHandler(svc recipientService) *RecipientHandler {
	return &RecipientHandler{service: svc}
}

// Import godoc
// @Summary Import a recipient roster
// @Description Parses a .csv or .xlsx sheet into recipients.
// @Tags Recipients
// @Accept mpfd
// @Produce json
// @Param file formData file true "Roster file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /announcements/recipients/import [post]
func (h *RecipientHandler) Import(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "roster file is required"))
		return
	}
	res, err := h.service.Import(c.Request.Context(), fileUpload(fh))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// Export godoc
// @Summary Export announcement recipients
// @Tags Recipients
// @Produce text/csv,application/pdf
// @Param id path string true "Announcement ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /announcements/{id}/recipients/export [get]
func (h *RecipientHandler) Export(c *gin.Context) {
	file, err := h.service.Export(c.Request.Context(), c.Param("id"), callerID(c, c.Query("authorId")), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+file.FileName+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
