package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-apns-gateway/internal/api"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// --- Mocks ---
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) RegisterDevice(ctx context.Context, u urn.URN, token string) error {
	args := m.Called(ctx, u, token)
	return args.Error(0)
}
func (m *MockTokenStore) UnregisterDevice(ctx context.Context, u urn.URN, token string) error {
	args := m.Called(ctx, u, token)
	return args.Error(0)
}
func (m *MockTokenStore) Fetch(ctx context.Context, u urn.URN) ([]string, error) {
	args := m.Called(ctx, u)
	return args.Get(0).([]string), args.Error(1)
}

// --- Setup ---
func setupAPI(t *testing.T) (*api.TokenAPI, *MockTokenStore) {
	t.Helper()
	mockStore := new(MockTokenStore)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return api.NewTokenAPI(mockStore, logger), mockStore
}

// Helper to inject UserID into context (simulating Auth Middleware)
func withUser(req *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(req.Context(), userID)
	return req.WithContext(ctx)
}

func jsonBody(t *testing.T, token string) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(map[string]string{"token": token})
	assert.NoError(t, err)
	return bytes.NewReader(body)
}

// --- Tests ---

func TestRegisterAPNS(t *testing.T) {
	apiHandler, mockStore := setupAPI(t)
	targetURN, _ := urn.Parse("urn:test:user:123")
	const deviceToken = "8b5a0c1d2e3f40516273849aabbccddeeff00112233445566778899aabbccdde"

	t.Run("Success", func(t *testing.T) {
		req := withUser(httptest.NewRequest("POST", "/api/v1/register/apns", jsonBody(t, deviceToken)), targetURN.String())
		w := httptest.NewRecorder()

		mockStore.On("RegisterDevice", mock.Anything, targetURN, deviceToken).Return(nil).Once()

		apiHandler.RegisterAPNS(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		mockStore.AssertExpectations(t)
	})

	t.Run("Rejects Empty Token", func(t *testing.T) {
		req := withUser(httptest.NewRequest("POST", "/api/v1/register/apns", jsonBody(t, "")), targetURN.String())
		w := httptest.NewRecorder()

		apiHandler.RegisterAPNS(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Rejects Non-Hex Token", func(t *testing.T) {
		req := withUser(httptest.NewRequest("POST", "/api/v1/register/apns", jsonBody(t, "../../etc")), targetURN.String())
		w := httptest.NewRecorder()

		apiHandler.RegisterAPNS(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Rejects Invalid JSON", func(t *testing.T) {
		req := withUser(httptest.NewRequest("POST", "/api/v1/register/apns", bytes.NewReader([]byte("{"))), targetURN.String())
		w := httptest.NewRecorder()

		apiHandler.RegisterAPNS(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Unauthorized Without User", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/register/apns", jsonBody(t, deviceToken))
		w := httptest.NewRecorder()

		apiHandler.RegisterAPNS(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Storage Failure", func(t *testing.T) {
		other := "aabbccdd"
		req := withUser(httptest.NewRequest("POST", "/api/v1/register/apns", jsonBody(t, other)), targetURN.String())
		w := httptest.NewRecorder()

		mockStore.On("RegisterDevice", mock.Anything, targetURN, other).Return(errors.New("db down")).Once()

		apiHandler.RegisterAPNS(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestUnregisterAPNS(t *testing.T) {
	apiHandler, mockStore := setupAPI(t)
	targetURN, _ := urn.Parse("urn:test:user:123")

	t.Run("Success", func(t *testing.T) {
		req := withUser(httptest.NewRequest("POST", "/api/v1/unregister/apns", jsonBody(t, "abcd")), targetURN.String())
		w := httptest.NewRecorder()

		mockStore.On("UnregisterDevice", mock.Anything, targetURN, "abcd").Return(nil).Once()

		apiHandler.UnregisterAPNS(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		mockStore.AssertExpectations(t)
	})

	t.Run("Store failure is still 204", func(t *testing.T) {
		req := withUser(httptest.NewRequest("POST", "/api/v1/unregister/apns", jsonBody(t, "dead")), targetURN.String())
		w := httptest.NewRecorder()

		mockStore.On("UnregisterDevice", mock.Anything, targetURN, "dead").Return(errors.New("db down")).Once()

		apiHandler.UnregisterAPNS(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}
