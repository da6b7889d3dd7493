package handler

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-bulletin-api/internal/dto"
	"github.com/noah-isme/campus-bulletin-api/internal/middleware"
	"github.com/noah-isme/campus-bulletin-api/internal/models"
)

// UserIDHeader identifies the caller when no token is supplied.
const UserIDHeader = "X-User-ID"

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// callerID resolves the acting user: token claims first, then the submitted authorId, then the header.
func callerID(c *gin.Context, submitted string) string {
	if claims := claimsFromContext(c); claims != nil && claims.UserID != "" {
		return claims.UserID
	}
	if id := strings.TrimSpace(submitted); id != "" {
		return id
	}
	return strings.TrimSpace(c.GetHeader(UserIDHeader))
}

func isMultipart(c *gin.Context) bool {
	return c.ContentType() == gin.MIMEMultipartPOSTForm
}

// bindOptionalJSON decodes a JSON body when one is present.
func bindOptionalJSON(c *gin.Context, dst interface{}) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 || c.ContentType() != gin.MIMEJSON {
		return nil
	}
	return c.ShouldBindJSON(dst)
}

func formValue(form *multipart.Form, key string) (string, bool) {
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func formPointer(form *multipart.Form, key string) *string {
	if value, ok := formValue(form, key); ok {
		return &value
	}
	return nil
}

// formTags accepts a JSON array in a single field or repeated plain values.
func formTags(form *multipart.Form) ([]string, error) {
	values, ok := form.Value["tags"]
	if !ok {
		return nil, nil
	}
	if len(values) == 1 && strings.HasPrefix(strings.TrimSpace(values[0]), "[") {
		var tags []string
		if err := json.Unmarshal([]byte(values[0]), &tags); err != nil {
			return nil, err
		}
		if tags == nil {
			tags = []string{}
		}
		return tags, nil
	}
	tags := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			tags = append(tags, v)
		}
	}
	return tags, nil
}

func formRecipients(form *multipart.Form, key string) ([]dto.RecipientPayload, error) {
	raw, ok := formValue(form, key)
	if !ok {
		return nil, nil
	}
	recipients := []dto.RecipientPayload{}
	if strings.TrimSpace(raw) == "" {
		return recipients, nil
	}
	if err := json.Unmarshal([]byte(raw), &recipients); err != nil {
		return nil, err
	}
	return recipients, nil
}

func formFiles(form *multipart.Form, key string) []dto.FileUpload {
	headers := form.File[key]
	files := make([]dto.FileUpload, 0, len(headers))
	for _, fh := range headers {
		files = append(files, fileUpload(fh))
	}
	return files
}

func fileUpload(fh *multipart.FileHeader) dto.FileUpload {
	return dto.FileUpload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
