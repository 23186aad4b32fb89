package access

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	accessService "github.com/hirelens/resume-video-service/internal/access"
	"github.com/hirelens/resume-video-service/internal/http/middleware"
	"github.com/hirelens/resume-video-service/internal/types"
)

type fakeService struct {
	requestErr error
	token      types.AccessToken
	tokenErr   error
}

func (f *fakeService) RequestAccess(context.Context, string, string, string) (types.AccessGrant, error) {
	if f.requestErr != nil {
		return types.AccessGrant{}, f.requestErr
	}
	return types.AccessGrant{URL: "http://api.test/videos/v1/stream?token=t", ViewsRemaining: 1}, nil
}

func (f *fakeService) ViewStatus(context.Context, string, string, string) (types.LimitStatus, error) {
	return types.LimitStatus{Allowed: true, ViewsRemaining: 2}, nil
}

func (f *fakeService) ValidateToken(context.Context, string) (types.AccessToken, error) {
	return f.token, f.tokenErr
}

type fakeStreams struct {
	ttl time.Duration
}

func (f *fakeStreams) StreamURL(_ context.Context, videoID string, ttl time.Duration) (string, error) {
	f.ttl = ttl
	return "https://media.test/" + videoID, nil
}

func requestAccess(h *AccessHandlers) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.Handle("POST /videos/{id}/access", h.RequestAccess())

	req := httptest.NewRequest(http.MethodPost, "/videos/v1/access",
		strings.NewReader(`{"application_id":"9b2f4c1e-3d5a-4e8b-9c7d-1a2b3c4d5e6f"}`))
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, "emp-1"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestRequestAccess_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{nil, http.StatusOK},
		{accessService.ErrNotFound, http.StatusNotFound},
		{accessService.ErrForbidden, http.StatusForbidden},
		{accessService.ErrLimitExceeded, http.StatusTooManyRequests},
		{fmt.Errorf("%w: redis down", accessService.ErrUpstreamUnavailable), http.StatusServiceUnavailable},
	}
	for _, c := range cases {
		h := NewAccessHandlers(&fakeService{requestErr: c.err}, &fakeStreams{})
		rec := requestAccess(h)
		if rec.Code != c.code {
			t.Fatalf("%v: expected %d, got %d", c.err, c.code, rec.Code)
		}
		if c.code == http.StatusServiceUnavailable && strings.Contains(rec.Body.String(), "redis") {
			t.Fatal("Upstream details must not leak to clients")
		}
	}
}

func TestRequestAccess_RejectsBadBody(t *testing.T) {
	h := NewAccessHandlers(&fakeService{}, &fakeStreams{})
	mux := http.NewServeMux()
	mux.Handle("POST /videos/{id}/access", h.RequestAccess())

	req := httptest.NewRequest(http.MethodPost, "/videos/v1/access", strings.NewReader(`{"application_id":"not-a-uuid"}`))
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, "emp-1"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
}

func TestStream(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	streams := &fakeStreams{}
	h := NewAccessHandlers(&fakeService{
		token: types.AccessToken{VideoID: "v1", ExpiresAt: now.Add(3 * time.Minute)},
	}, streams)
	h.now = func() time.Time { return now }

	mux := http.NewServeMux()
	mux.Handle("GET /videos/{id}/stream", h.Stream())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos/v1/stream?token=t", nil))
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("Expected 307, got %d", rec.Code)
	}
	if streams.ttl != 3*time.Minute {
		t.Fatalf("Expected presign ttl bounded by token, got %s", streams.ttl)
	}

	// A token for another video does not open this one.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos/v2/stream?token=t", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for mismatched video, got %d", rec.Code)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatal("Expected Cache-Control: no-store")
	}
}
