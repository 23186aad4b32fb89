package access

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/hirelens/resume-video-service/internal/cache"
	"github.com/hirelens/resume-video-service/internal/storage/memory"
	"github.com/hirelens/resume-video-service/internal/types"
	"github.com/hirelens/resume-video-service/internal/utils/upstream"
)

func init() {
	upstream.DefaultBackoff = time.Millisecond
}

type fixture struct {
	svc   *Service
	store *memory.Store
	mr    *miniredis.Miniredis
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	f := &fixture{store: memory.New(), mr: mr, now: time.Unix(1_700_000_000, 0)}
	f.svc, err = NewService(f.store, cache.NewTokenCache(client), Options{
		MaxViews:      2,
		TokenTTL:      5 * time.Minute,
		StreamBaseURL: "https://api.test",
		Timeouts:      Timeouts{Store: time.Second, Cache: time.Second},
		Now:           func() time.Time { return f.now },
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return f
}

// seedVideo stores a ready private résumé video owned by "js-1" and one
// application per employer, each snapshotting the video.
func (f *fixture) seedVideo(t *testing.T, videoID string, employers ...string) []string {
	t.Helper()
	ctx := context.Background()
	if err := f.store.CreateVideo(ctx, types.Video{
		ID: videoID, MediaID: "m-" + videoID, JobSeekerID: "js-1", Kind: types.VideoKindResume,
		DownloadProtected: true, Status: types.VideoStatusReady, CreatedAt: f.now,
	}); err != nil {
		t.Fatalf("create video: %v", err)
	}
	resumeID := "r-" + videoID
	if err := f.store.CreateResume(ctx, types.Resume{ID: resumeID, JobSeekerID: "js-1", VideoID: videoID}); err != nil {
		t.Fatalf("create resume: %v", err)
	}
	var apps []string
	for _, emp := range employers {
		id := "app-" + videoID + "-" + emp
		if err := f.store.CreateApplication(ctx, types.Application{
			ID: id, JobSeekerID: "js-1", EmployerID: emp, ResumeID: resumeID, VideoID: videoID,
		}); err != nil {
			t.Fatalf("create application: %v", err)
		}
		apps = append(apps, id)
	}
	return apps
}

func TestEvaluate(t *testing.T) {
	cases := []struct {
		count, max int
		allowed    bool
		remaining  int
	}{
		{0, 2, true, 2},
		{1, 2, true, 1},
		{2, 2, false, 0},
		{5, 2, false, 0},
	}
	for _, c := range cases {
		got := Evaluate(c.count, c.max)
		if got.Allowed != c.allowed || got.ViewsRemaining != c.remaining {
			t.Fatalf("Evaluate(%d, %d) = %+v", c.count, c.max, got)
		}
	}
}

func TestRequestAccess_ConsumesQuotaThenRefuses(t *testing.T) {
	f := newFixture(t)
	apps := f.seedVideo(t, "v1", "emp-1")
	ctx := context.Background()

	grant, err := f.svc.RequestAccess(ctx, "v1", apps[0], "emp-1")
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	if grant.ViewsRemaining != 1 {
		t.Fatalf("Expected 1 view remaining, got %d", grant.ViewsRemaining)
	}
	if !grant.ExpiresAt.Equal(f.now.Add(5 * time.Minute)) {
		t.Fatalf("Unexpected expiry %v", grant.ExpiresAt)
	}

	grant, err = f.svc.RequestAccess(ctx, "v1", apps[0], "emp-1")
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if grant.ViewsRemaining != 0 {
		t.Fatalf("Expected 0 views remaining, got %d", grant.ViewsRemaining)
	}

	grant, err = f.svc.RequestAccess(ctx, "v1", apps[0], "emp-1")
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("Expected ErrLimitExceeded, got %v", err)
	}
	if grant.ViewsRemaining != 0 || grant.URL != "" {
		t.Fatalf("Expected empty grant, got %+v", grant)
	}

	count, _ := f.store.GetViewCount(ctx, "v1", apps[0])
	if count != 2 {
		t.Fatalf("Expected view count 2, got %d", count)
	}
}

func TestRequestAccess_URLCarriesValidToken(t *testing.T) {
	f := newFixture(t)
	apps := f.seedVideo(t, "v1", "emp-1")
	ctx := context.Background()

	grant, err := f.svc.RequestAccess(ctx, "v1", apps[0], "emp-1")
	if err != nil {
		t.Fatalf("RequestAccess: %v", err)
	}

	u, err := url.Parse(grant.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if u.Path != "/videos/v1/stream" {
		t.Fatalf("Unexpected path %q", u.Path)
	}
	if u.Query().Get("expires") != "1700000300" {
		t.Fatalf("Unexpected expires %q", u.Query().Get("expires"))
	}

	token := u.Query().Get("token")
	if len(token) != 43 {
		t.Fatalf("Expected 43-char token, got %d", len(token))
	}

	payload, err := f.svc.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if payload.VideoID != "v1" || payload.EmployerID != "emp-1" || payload.ApplicationID != apps[0] {
		t.Fatalf("Unexpected payload %+v", payload)
	}

	// Validation does not consume the token.
	if _, err := f.svc.ValidateToken(ctx, token); err != nil {
		t.Fatalf("second ValidateToken: %v", err)
	}
}

func TestRequestAccess_ConcurrentLastView(t *testing.T) {
	f := newFixture(t)
	apps := f.seedVideo(t, "v1", "emp-1")
	ctx := context.Background()

	if _, err := f.svc.RequestAccess(ctx, "v1", apps[0], "emp-1"); err != nil {
		t.Fatalf("first request: %v", err)
	}

	var granted, refused int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.RequestAccess(ctx, "v1", apps[0], "emp-1")
			switch {
			case err == nil:
				atomic.AddInt32(&granted, 1)
			case errors.Is(err, ErrLimitExceeded):
				atomic.AddInt32(&refused, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if granted != 1 || refused != 9 {
		t.Fatalf("Expected 1 granted and 9 refused, got %d and %d", granted, refused)
	}
}

func TestRequestAccess_EmployersHaveIndependentQuotas(t *testing.T) {
	f := newFixture(t)
	apps := f.seedVideo(t, "v1", "emp-1", "emp-2")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := f.svc.RequestAccess(ctx, "v1", apps[0], "emp-1"); err != nil {
			t.Fatalf("emp-1 request %d: %v", i, err)
		}
	}

	grant, err := f.svc.RequestAccess(ctx, "v1", apps[1], "emp-2")
	if err != nil {
		t.Fatalf("emp-2 request: %v", err)
	}
	if grant.ViewsRemaining != 1 {
		t.Fatalf("Expected 1 view remaining for emp-2, got %d", grant.ViewsRemaining)
	}
}

func TestRequestAccess_Authorization(t *testing.T) {
	f := newFixture(t)
	apps := f.seedVideo(t, "v1", "emp-1")
	f.seedVideo(t, "v2", "emp-2")
	ctx := context.Background()

	if err := f.store.CreateVideo(ctx, types.Video{
		ID: "intro", JobSeekerID: "js-1", Kind: types.VideoKindIntro, IsPublic: true, Status: types.VideoStatusReady,
	}); err != nil {
		t.Fatalf("create intro: %v", err)
	}

	cases := []struct {
		name                   string
		video, app, employerID string
		want                   error
	}{
		{"unknown video", "missing", apps[0], "emp-1", ErrNotFound},
		{"unknown application", "v1", "missing", "emp-1", ErrNotFound},
		{"other employer", "v1", apps[0], "emp-2", ErrForbidden},
		{"application for other video", "v2", apps[0], "emp-1", ErrForbidden},
		{"public video", "intro", apps[0], "emp-1", ErrForbidden},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := f.svc.RequestAccess(ctx, c.video, c.app, c.employerID)
			if !errors.Is(err, c.want) {
				t.Fatalf("Expected %v, got %v", c.want, err)
			}
		})
	}

	count, _ := f.store.GetViewCount(ctx, "v1", apps[0])
	if count != 0 {
		t.Fatalf("Refused requests must not consume views, got %d", count)
	}
}

func TestValidateToken_Expiry(t *testing.T) {
	f := newFixture(t)
	apps := f.seedVideo(t, "v1", "emp-1")
	ctx := context.Background()

	grant, err := f.svc.RequestAccess(ctx, "v1", apps[0], "emp-1")
	if err != nil {
		t.Fatalf("RequestAccess: %v", err)
	}
	u, _ := url.Parse(grant.URL)
	token := u.Query().Get("token")

	f.now = f.now.Add(4*time.Minute + 59*time.Second)
	if _, err := f.svc.ValidateToken(ctx, token); err != nil {
		t.Fatalf("Expected token valid before expiry: %v", err)
	}

	// Clock past expiry while the cache entry still lives.
	f.now = f.now.Add(2 * time.Second)
	if _, err := f.svc.ValidateToken(ctx, token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("Expected ErrTokenInvalid, got %v", err)
	}
	if f.mr.Exists("access_token:" + token) {
		t.Fatal("Expected expired token to be evicted")
	}
}

func TestValidateToken_CacheTTL(t *testing.T) {
	f := newFixture(t)
	apps := f.seedVideo(t, "v1", "emp-1")
	ctx := context.Background()

	grant, _ := f.svc.RequestAccess(ctx, "v1", apps[0], "emp-1")
	u, _ := url.Parse(grant.URL)

	f.mr.FastForward(5*time.Minute + time.Second)
	if _, err := f.svc.ValidateToken(ctx, u.Query().Get("token")); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("Expected ErrTokenInvalid, got %v", err)
	}
}

func TestValidateToken_UnknownAndMalformed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.ValidateToken(ctx, ""); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("Expected ErrTokenInvalid for empty token, got %v", err)
	}
	if _, err := f.svc.ValidateToken(ctx, "nope"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("Expected ErrTokenInvalid for unknown token, got %v", err)
	}

	f.mr.Set("access_token:garbage", "{not json")
	if _, err := f.svc.ValidateToken(ctx, "garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("Expected ErrTokenInvalid for malformed payload, got %v", err)
	}
	if f.mr.Exists("access_token:garbage") {
		t.Fatal("Expected malformed payload to be evicted")
	}
}

func TestRequestAccess_CacheDownKeepsViewConsumed(t *testing.T) {
	f := newFixture(t)
	apps := f.seedVideo(t, "v1", "emp-1")
	ctx := context.Background()

	f.mr.SetError("LOADING")
	_, err := f.svc.RequestAccess(ctx, "v1", apps[0], "emp-1")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("Expected ErrUpstreamUnavailable, got %v", err)
	}

	count, _ := f.store.GetViewCount(ctx, "v1", apps[0])
	if count != 1 {
		t.Fatalf("Expected the view to stay consumed, got count %d", count)
	}
}

func TestViewStatus(t *testing.T) {
	f := newFixture(t)
	apps := f.seedVideo(t, "v1", "emp-1")
	ctx := context.Background()

	status, err := f.svc.ViewStatus(ctx, "v1", apps[0], "emp-1")
	if err != nil {
		t.Fatalf("ViewStatus: %v", err)
	}
	if !status.Allowed || status.ViewsRemaining != 2 {
		t.Fatalf("Unexpected status %+v", status)
	}

	if _, err := f.svc.ViewStatus(ctx, "v1", apps[0], "emp-2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("Expected ErrForbidden, got %v", err)
	}
}

func TestNewService_RejectsBadOptions(t *testing.T) {
	if _, err := NewService(memory.New(), nil, Options{MaxViews: 0, TokenTTL: time.Minute, StreamBaseURL: "https://x"}); err == nil {
		t.Fatal("Expected error for zero max views")
	}
	if _, err := NewService(memory.New(), nil, Options{MaxViews: 2, TokenTTL: time.Minute, StreamBaseURL: "not a url"}); err == nil {
		t.Fatal("Expected error for bad stream url")
	}
}
