package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureSession(seen *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = SessionID(r.Context())
	})
}

func TestSessionMiddleware_IssuesCookie(t *testing.T) {
	var seen string
	rec := httptest.NewRecorder()
	SessionMiddleware(captureSession(&seen)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/upload", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.Equal(t, cookies[0].Value, seen)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
}

func TestSessionMiddleware_ReusesCookie(t *testing.T) {
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/api/upload", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: id})

	var seen string
	rec := httptest.NewRecorder()
	SessionMiddleware(captureSession(&seen)).ServeHTTP(rec, req)

	assert.Equal(t, id, seen)
	assert.Empty(t, rec.Result().Cookies())
}

func TestSessionMiddleware_ReplacesInvalidCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/upload", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "not-a-uuid"})

	var seen string
	rec := httptest.NewRecorder()
	SessionMiddleware(captureSession(&seen)).ServeHTTP(rec, req)

	assert.NotEqual(t, "not-a-uuid", seen)
	assert.Len(t, rec.Result().Cookies(), 1)
}

func TestSessionMiddleware_SkipsPages(t *testing.T) {
	seen := "untouched"
	rec := httptest.NewRecorder()
	SessionMiddleware(captureSession(&seen)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index", nil))

	assert.Empty(t, seen)
	assert.Empty(t, rec.Result().Cookies())
}

func TestCORSMiddleware(t *testing.T) {
	h := CORSMiddleware([]string{"http://localhost:3000"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/camera", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/camera", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
