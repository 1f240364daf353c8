package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silentwatch/case-engine/internal/services"
	"github.com/silentwatch/case-engine/internal/storage"
)

func TestHealthHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name            string
		setupStorage    func() *storage.MockStorage
		expectedStatus  int
		expectedHealth  string
		expectedStorage string
	}{
		{
			name: "healthy",
			setupStorage: func() *storage.MockStorage {
				return storage.NewMockStorage()
			},
			expectedStatus:  http.StatusOK,
			expectedHealth:  "healthy",
			expectedStorage: "healthy",
		},
		{
			name: "unhealthy storage",
			setupStorage: func() *storage.MockStorage {
				ms := storage.NewMockStorage()
				ms.SetPingError(errors.New("connection refused"))
				return ms
			},
			expectedStatus:  http.StatusServiceUnavailable,
			expectedHealth:  "degraded",
			expectedStorage: "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.setupStorage(), services.NewMockLLMAPI(), testLogger())
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			require.Equal(t, tt.expectedStatus, rr.Code)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedHealth, resp.Status)
			assert.Equal(t, "case-engine", resp.Service)
			assert.Equal(t, tt.expectedStorage, resp.Components["storage"])

			llm, ok := resp.Components["llm"].(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, services.MockModelName, llm["model"])
		})
	}
}
