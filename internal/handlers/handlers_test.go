package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/silentwatch/case-engine/internal/middleware"
)

const (
	testUserID   = "test-user"
	testUserName = "Sam"
	testCaseID   = "blackwood-manor-mystery"
)

var testNow = time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// serve runs one request through the handler behind the identity middleware,
// the way production routes it.
func serve(t *testing.T, h http.Handler, method, path, body string, pathValues map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(middleware.HeaderUserID, testUserID)
	req.Header.Set(middleware.HeaderUserName, testUserName)
	for k, v := range pathValues {
		req.SetPathValue(k, v)
	}

	rr := httptest.NewRecorder()
	middleware.Identity(h).ServeHTTP(rr, req)
	return rr
}

func serveAnonymous(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	middleware.Identity(h).ServeHTTP(rr, req)
	return rr
}
