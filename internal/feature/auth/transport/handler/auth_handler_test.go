package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xray_backend/internal/feature/auth/domain"
)

type mockAuthUsecase struct {
	SignupFunc func(ctx context.Context, email, password string) error
	LoginFunc  func(ctx context.Context, email, password string) (string, error)
}

func (m *mockAuthUsecase) Signup(ctx context.Context, email, password string) error {
	if m.SignupFunc != nil {
		return m.SignupFunc(ctx, email, password)
	}
	return nil
}

func (m *mockAuthUsecase) Login(ctx context.Context, email, password string) (string, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password)
	}
	return "", domain.ErrInvalidCredentials
}

func doJSON(t *testing.T, h gin.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	c.Request.Header.Set("Content-Type", "application/json")
	h(c)
	return w
}

func TestAuthHandler_Signup(t *testing.T) {
	tests := []struct {
		name       string
		body       gin.H
		signupErr  error
		wantCalled bool
		wantStatus int
		wantError  string
	}{
		{name: "created", body: gin.H{"email": "test@example.com", "password": "password123"}, wantCalled: true, wantStatus: http.StatusCreated},
		{name: "invalid email", body: gin.H{"email": "invalid-email", "password": "password123"}, wantStatus: http.StatusBadRequest, wantError: "invalid request"},
		{name: "short password", body: gin.H{"email": "test@example.com", "password": "short"}, wantStatus: http.StatusBadRequest, wantError: "invalid request"},
		{name: "duplicate email", body: gin.H{"email": "existing@example.com", "password": "password123"}, signupErr: domain.ErrUserAlreadyExists, wantCalled: true, wantStatus: http.StatusConflict, wantError: "signup failed"},
		{name: "repository failure", body: gin.H{"email": "test@example.com", "password": "password123"}, signupErr: errors.New("db down"), wantCalled: true, wantStatus: http.StatusInternalServerError, wantError: "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			uc := &mockAuthUsecase{SignupFunc: func(_ context.Context, _, _ string) error {
				called = true
				return tt.signupErr
			}}

			w := doJSON(t, NewAuthHandler(uc).Signup, tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCalled, called)
			var resp map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, resp["error"])
			} else {
				assert.Equal(t, "ok", resp["message"])
			}
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	tests := []struct {
		name       string
		body       gin.H
		token      string
		loginErr   error
		wantStatus int
	}{
		{name: "ok", body: gin.H{"email": "test@example.com", "password": "password123"}, token: "signed", wantStatus: http.StatusOK},
		{name: "missing password", body: gin.H{"email": "test@example.com"}, wantStatus: http.StatusBadRequest},
		{name: "invalid credentials", body: gin.H{"email": "test@example.com", "password": "nope-nope"}, loginErr: domain.ErrInvalidCredentials, wantStatus: http.StatusUnauthorized},
		{name: "internal failure", body: gin.H{"email": "test@example.com", "password": "password123"}, loginErr: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &mockAuthUsecase{LoginFunc: func(_ context.Context, _, _ string) (string, error) {
				return tt.token, tt.loginErr
			}}

			w := doJSON(t, NewAuthHandler(uc).Login, tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				var resp map[string]string
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, "signed", resp["token"])
			}
		})
	}
}
