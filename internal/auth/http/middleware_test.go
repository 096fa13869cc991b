package http

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockAdminKeyService struct {
	mock.Mock
}

func (m *mockAdminKeyService) GenerateKey() (string, string, error) {
	args := m.Called()
	return args.String(0), args.String(1), args.Error(2)
}

func (m *mockAdminKeyService) HashKey(plainKey string) (string, error) {
	args := m.Called(plainKey)
	return args.String(0), args.Error(1)
}

func (m *mockAdminKeyService) CompareKey(plainKey, keyHash string) bool {
	return m.Called(plainKey, keyHash).Bool(0)
}

func TestAdminAuthMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		header         string
		keyHash        string
		setup          func(m *mockAdminKeyService)
		expectedStatus int
	}{
		{
			name:    "valid key",
			header:  "Bearer admin-key",
			keyHash: "hash",
			setup: func(m *mockAdminKeyService) {
				m.On("CompareKey", "admin-key", "hash").Return(true).Once()
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:    "case-insensitive scheme",
			header:  "bEaReR admin-key",
			keyHash: "hash",
			setup: func(m *mockAdminKeyService) {
				m.On("CompareKey", "admin-key", "hash").Return(true).Once()
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:    "wrong key",
			header:  "Bearer other",
			keyHash: "hash",
			setup: func(m *mockAdminKeyService) {
				m.On("CompareKey", "other", "hash").Return(false).Once()
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{name: "missing header", keyHash: "hash", expectedStatus: http.StatusUnauthorized},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", keyHash: "hash", expectedStatus: http.StatusUnauthorized},
		{name: "empty bearer", header: "Bearer ", keyHash: "hash", expectedStatus: http.StatusUnauthorized},
		{name: "no configured hash", header: "Bearer admin-key", expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keyService := &mockAdminKeyService{}
			if tt.setup != nil {
				tt.setup(keyService)
			}

			router := gin.New()
			router.Use(AdminAuthMiddleware(keyService, tt.keyHash, slog.New(slog.DiscardHandler)))
			router.GET("/v1/credentials", func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/v1/credentials", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			keyService.AssertExpectations(t)
		})
	}
}
