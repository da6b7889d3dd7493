package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-bulletin-api/internal/middleware"
	"github.com/noah-isme/campus-bulletin-api/internal/models"
	appErrors "github.com/noah-isme/campus-bulletin-api/pkg/errors"
)

type authServiceMock struct {
	lastReq models.LoginRequest
	resp    *models.LoginResponse
	err     error
}

func (m *authServiceMock) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	m.lastReq = req
	return m.resp, m.err
}

func TestAuthHandlerLogin(t *testing.T) {
	svc := &authServiceMock{resp: &models.LoginResponse{Token: "tok", User: models.UserInfo{ID: "u1", RegID: "teacher1", Role: models.RoleTeacher}}}
	h := NewAuthHandler(svc)
	c, w := newContext(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"regId":"teacher1","password":"pass123"}`), "application/json")
	c.Request.RemoteAddr = "10.1.2.3:5555"

	h.Login(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "teacher1", svc.lastReq.RegID)
	assert.Equal(t, "10.1.2.3", svc.lastReq.IP)
	assert.Contains(t, w.Body.String(), `"token":"tok"`)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestAuthHandlerLoginErrors(t *testing.T) {
	cases := map[int]error{
		http.StatusUnauthorized:        appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid credentials"),
		http.StatusTooManyRequests:     appErrors.Clone(appErrors.ErrTooManyRequests, "too many login attempts, try again later"),
		http.StatusInternalServerError: appErrors.Internal(errors.New("pq: connection refused"), "failed to fetch user"),
	}
	for status, err := range cases {
		h := NewAuthHandler(&authServiceMock{err: err})
		c, w := newContext(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"regId":"x","password":"y"}`), "application/json")
		h.Login(c)
		assert.Equal(t, status, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
	}

	h := NewAuthHandler(&authServiceMock{})
	c, w := newContext(http.MethodPost, "/auth/login", bytes.NewBufferString(`not json`), "application/json")
	h.Login(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	h := NewAuthHandler(&authServiceMock{})

	c, w := newContext(http.MethodGet, "/auth/me", nil, "")
	h.Me(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newContext(http.MethodGet, "/auth/me", nil, "")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", RegID: "teacher1", Role: models.RoleTeacher})
	h.Me(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"regId":"teacher1"`)
}
