package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-bulletin-api/internal/dto"
	"github.com/noah-isme/campus-bulletin-api/internal/middleware"
	"github.com/noah-isme/campus-bulletin-api/internal/models"
	appErrors "github.com/noah-isme/campus-bulletin-api/pkg/errors"
)

type announcementServiceMock struct {
	lastFilter   models.AnnouncementFilter
	lastCreate   dto.CreateAnnouncementRequest
	lastUpdate   dto.UpdateAnnouncementRequest
	lastCaller   string
	lastCustom   string
	lastFiles    []dto.FileUpload
	fileContents []string
	err          error
}

func (m *announcementServiceMock) List(_ context.Context, filter models.AnnouncementFilter) ([]models.Announcement, models.Pagination, error) {
	m.lastFilter = filter
	return []models.Announcement{{ID: "a1"}}, models.NewPagination(filter.Page, filter.PerPage, 1), m.err
}

func (m *announcementServiceMock) Get(_ context.Context, id string) (*models.Announcement, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Announcement{ID: id}, nil
}

func (m *announcementServiceMock) Create(_ context.Context, req dto.CreateAnnouncementRequest) (*models.Announcement, error) {
	m.lastCreate = req
	for _, f := range req.Files {
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		raw, _ := io.ReadAll(rc)
		_ = rc.Close()
		m.fileContents = append(m.fileContents, string(raw))
	}
	if m.err != nil {
		return nil, m.err
	}
	return &models.Announcement{ID: "a1", Title: req.Title, AuthorID: req.AuthorID}, nil
}

func (m *announcementServiceMock) Update(_ context.Context, id string, req dto.UpdateAnnouncementRequest) (*models.Announcement, error) {
	m.lastUpdate = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.Announcement{ID: id}, nil
}

func (m *announcementServiceMock) Delete(_ context.Context, _ string, callerID string) error {
	m.lastCaller = callerID
	return m.err
}

func (m *announcementServiceMock) RegenerateImage(_ context.Context, id, customURL, callerID string) (*models.Announcement, error) {
	m.lastCustom = customURL
	m.lastCaller = callerID
	return &models.Announcement{ID: id, ImageURL: customURL}, m.err
}

func (m *announcementServiceMock) UploadAttachments(_ context.Context, id string, files []dto.FileUpload, callerID string) (*dto.UploadResult, error) {
	m.lastFiles = files
	m.lastCaller = callerID
	return &dto.UploadResult{Announcement: &models.Announcement{ID: id}}, m.err
}

func (m *announcementServiceMock) DeleteAttachment(_ context.Context, id, _ string, callerID string) (*models.Announcement, error) {
	m.lastCaller = callerID
	return &models.Announcement{ID: id}, m.err
}

func newContext(method, target string, body io.Reader, contentType string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.Request = req
	return c, w
}

func multipartBody(t *testing.T, fields map[string][]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for key, values := range fields {
		for _, v := range values {
			require.NoError(t, writer.WriteField(key, v))
		}
	}
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf, writer.FormDataContentType()
}

func TestAnnouncementHandlerListParsesQuery(t *testing.T) {
	svc := &announcementServiceMock{}
	h := NewAnnouncementHandler(svc)
	c, w := newContext(http.MethodGet, "/announcements?authorId=t1&category=All&page=2&limit=abc", nil, "")

	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.AnnouncementFilter{AuthorID: "t1", Category: models.CategoryAll, Page: 2}, svc.lastFilter)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	for _, key := range []string{"total", "page", "perPage", "totalPages", "data"} {
		assert.Contains(t, body, key)
	}
}

func TestAnnouncementHandlerCreateJSON(t *testing.T) {
	svc := &announcementServiceMock{}
	h := NewAnnouncementHandler(svc)
	payload := `{"title":"Exam","description":"Body","summary":"","tags":["exam"],"authorId":"t1"}`
	c, w := newContext(http.MethodPost, "/announcements", bytes.NewBufferString(payload), "application/json")

	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "t1", svc.lastCreate.AuthorID)
	require.NotNil(t, svc.lastCreate.Summary)
	assert.Equal(t, "", *svc.lastCreate.Summary)
	assert.Equal(t, []string{"exam"}, svc.lastCreate.Tags)
}

func TestAnnouncementHandlerCreateMultipart(t *testing.T) {
	svc := &announcementServiceMock{}
	h := NewAnnouncementHandler(svc)
	body, contentType := multipartBody(t, map[string][]string{
		"title":       {"Trip"},
		"description": {"Bring shoes"},
		"tags":        {`["outdoor","trip"]`},
		"students":    {`[{"name":"Ada","id":"S1","email":"ada@uni.edu"}]`},
	}, map[string]string{"map.txt": "north"})
	c, w := newContext(http.MethodPost, "/announcements", body, contentType)
	c.Request.Header.Set(UserIDHeader, "t9")

	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	req := svc.lastCreate
	assert.Equal(t, "Trip", req.Title)
	assert.Nil(t, req.Summary, "absent summary field stays nil")
	assert.Equal(t, []string{"outdoor", "trip"}, req.Tags)
	assert.Equal(t, []dto.RecipientPayload{{Name: "Ada", ID: "S1", Email: "ada@uni.edu"}}, req.Students)
	assert.Nil(t, req.Staff)
	assert.Equal(t, "t9", req.AuthorID)
	require.Len(t, req.Files, 1)
	assert.Equal(t, "map.txt", req.Files[0].FileName)
	assert.Equal(t, []string{"north"}, svc.fileContents)
}

func TestAnnouncementHandlerCreateMultipartBadRecipients(t *testing.T) {
	h := NewAnnouncementHandler(&announcementServiceMock{})
	body, contentType := multipartBody(t, map[string][]string{"title": {"x"}, "staff": {"not json"}}, nil)
	c, w := newContext(http.MethodPost, "/announcements", body, contentType)

	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnnouncementHandlerCreateInvalidJSON(t *testing.T) {
	h := NewAnnouncementHandler(&announcementServiceMock{})
	c, w := newContext(http.MethodPost, "/announcements", bytes.NewBufferString(`{"title":`), "application/json")

	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnnouncementHandlerUpdateCallerResolution(t *testing.T) {
	svc := &announcementServiceMock{}
	h := NewAnnouncementHandler(svc)

	c, w := newContext(http.MethodPut, "/announcements/a1", bytes.NewBufferString(`{"category":"Placement","authorId":"body-user"}`), "application/json")
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	c.Request.Header.Set(UserIDHeader, "header-user")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "token-user"})
	h.Update(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "token-user", svc.lastUpdate.CallerID)
	require.NotNil(t, svc.lastUpdate.Category)
	assert.Nil(t, svc.lastUpdate.Title)

	c, _ = newContext(http.MethodPut, "/announcements/a1", bytes.NewBufferString(`{"authorId":"body-user"}`), "application/json")
	c.Request.Header.Set(UserIDHeader, "header-user")
	h.Update(c)
	assert.Equal(t, "body-user", svc.lastUpdate.CallerID)

	c, _ = newContext(http.MethodPut, "/announcements/a1", bytes.NewBufferString(`{}`), "application/json")
	c.Request.Header.Set(UserIDHeader, "header-user")
	h.Update(c)
	assert.Equal(t, "header-user", svc.lastUpdate.CallerID)
}

func TestAnnouncementHandlerUpdateMultipartSummaryPresence(t *testing.T) {
	svc := &announcementServiceMock{}
	h := NewAnnouncementHandler(svc)
	body, contentType := multipartBody(t, map[string][]string{"summary": {""}, "tags": {"a", "b"}}, nil)
	c, w := newContext(http.MethodPut, "/announcements/a1", body, contentType)

	h.Update(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.lastUpdate.Summary)
	assert.Equal(t, "", *svc.lastUpdate.Summary)
	assert.Nil(t, svc.lastUpdate.Description)
	assert.Equal(t, []string{"a", "b"}, svc.lastUpdate.Tags)
}

func TestAnnouncementHandlerMapsServiceErrors(t *testing.T) {
	cases := map[int]error{
		http.StatusForbidden: appErrors.Clone(appErrors.ErrForbidden, "only the author can delete this announcement"),
		http.StatusNotFound:  appErrors.Clone(appErrors.ErrNotFound, "announcement not found"),
	}
	for status, err := range cases {
		h := NewAnnouncementHandler(&announcementServiceMock{err: err})
		c, w := newContext(http.MethodDelete, "/announcements/a1", nil, "")
		h.Delete(c)
		assert.Equal(t, status, w.Code)

		var env struct {
			Error appErrors.Error `json:"error"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		assert.Equal(t, err.(*appErrors.Error).Message, env.Error.Message)
	}
}

func TestAnnouncementHandlerDeleteUsesBodyAuthor(t *testing.T) {
	svc := &announcementServiceMock{}
	h := NewAnnouncementHandler(svc)
	c, w := newContext(http.MethodDelete, "/announcements/a1", bytes.NewBufferString(`{"authorId":"t1"}`), "application/json")

	h.Delete(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t1", svc.lastCaller)
	assert.Contains(t, w.Body.String(), "announcement deleted")
}

func TestAnnouncementHandlerRegenerateImage(t *testing.T) {
	svc := &announcementServiceMock{}
	h := NewAnnouncementHandler(svc)
	c, w := newContext(http.MethodPost, "/announcements/a1/regenerate-image", bytes.NewBufferString(`{"customImageUrl":"https://x/y.jpg"}`), "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "t1"})

	h.RegenerateImage(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://x/y.jpg", svc.lastCustom)
	assert.Equal(t, "t1", svc.lastCaller)
}

func TestAnnouncementHandlerUploadAttachments(t *testing.T) {
	svc := &announcementServiceMock{}
	h := NewAnnouncementHandler(svc)
	body, contentType := multipartBody(t, map[string][]string{"authorId": {"t1"}}, map[string]string{"a.pdf": "%PDF"})
	c, w := newContext(http.MethodPost, "/announcements/a1/upload", body, contentType)

	h.UploadAttachments(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, svc.lastFiles, 1)
	assert.Equal(t, "t1", svc.lastCaller)

	c, w = newContext(http.MethodPost, "/announcements/a1/upload", bytes.NewBufferString(`{}`), "application/json")
	h.UploadAttachments(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
