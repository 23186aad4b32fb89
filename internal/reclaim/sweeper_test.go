package reclaim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/hirelens/resume-video-service/internal/access"
	"github.com/hirelens/resume-video-service/internal/cache"
	"github.com/hirelens/resume-video-service/internal/hosting/hostingtest"
	"github.com/hirelens/resume-video-service/internal/storage"
	"github.com/hirelens/resume-video-service/internal/storage/memory"
	"github.com/hirelens/resume-video-service/internal/types"
	"github.com/hirelens/resume-video-service/internal/types/media"
	"github.com/hirelens/resume-video-service/internal/utils/upstream"
)

func seedVideo(t *testing.T, s *memory.Store, gw *hostingtest.Gateway, videoID string, apps int) []string {
	t.Helper()
	ctx := context.Background()
	mediaID := "users/js/videos/" + videoID
	gw.Put(mediaID, []byte("video"))

	if err := s.CreateVideo(ctx, types.Video{
		ID: videoID, MediaID: mediaID, JobSeekerID: "js", Kind: types.VideoKindResume,
		DownloadProtected: true, Status: types.VideoStatusReady, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("create video: %v", err)
	}
	resumeID := "r-" + videoID
	if err := s.CreateResume(ctx, types.Resume{ID: resumeID, JobSeekerID: "js", VideoID: videoID}); err != nil {
		t.Fatalf("create resume: %v", err)
	}

	var ids []string
	for i := 0; i < apps; i++ {
		id := videoID + "-app-" + string(rune('a'+i))
		if err := s.CreateApplication(ctx, types.Application{
			ID: id, JobSeekerID: "js", EmployerID: "emp-" + id, ResumeID: resumeID, VideoID: videoID,
		}); err != nil {
			t.Fatalf("create application: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func view(t *testing.T, s *memory.Store, videoID, appID string, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		if _, err := s.IncrementView(context.Background(), videoID, appID, "emp-"+appID, 2); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
}

func init() {
	upstream.DefaultBackoff = time.Millisecond
}

// afterTokensExpire is a sweeper clock placed past every token issued during a test.
func afterTokensExpire() time.Time {
	return time.Now().Add(time.Hour)
}

func newSweeper(s Store, gw Remote) *Sweeper {
	return NewSweeper(s, gw, Options{
		MaxViews:     2,
		TokenTTL:     5 * time.Minute,
		BatchSize:    100,
		StoreTimeout: time.Second,
		Now:          afterTokensExpire,
	})
}

func TestSweep_DeletesExhaustedVideos(t *testing.T) {
	s := memory.New()
	gw := hostingtest.New()

	exhausted := seedVideo(t, s, gw, "v-done", 2)
	view(t, s, "v-done", exhausted[0], 2)
	view(t, s, "v-done", exhausted[1], 2)

	halfUsed := seedVideo(t, s, gw, "v-half", 2)
	view(t, s, "v-half", halfUsed[0], 2)
	view(t, s, "v-half", halfUsed[1], 1)

	seedVideo(t, s, gw, "v-none", 0)

	res, err := newSweeper(s, gw).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.DeletedCount != 1 || len(res.DeletedVideoIDs) != 1 || res.DeletedVideoIDs[0] != "v-done" {
		t.Fatalf("Unexpected result %+v", res)
	}

	if gw.Has("users/js/videos/v-done") {
		t.Fatal("Expected hosted object to be deleted")
	}
	if _, err := s.GetVideo(context.Background(), "v-done"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected video row to be deleted, got %v", err)
	}
	resume, _ := s.GetResume(context.Background(), "r-v-done")
	if resume.VideoID != "" {
		t.Fatalf("Expected résumé reference cleared, got %q", resume.VideoID)
	}

	for _, id := range []string{"v-half", "v-none"} {
		if _, err := s.GetVideo(context.Background(), id); err != nil {
			t.Fatalf("Expected %s to survive, got %v", id, err)
		}
	}
}

func TestSweep_SecondRunIsNoop(t *testing.T) {
	s := memory.New()
	gw := hostingtest.New()
	apps := seedVideo(t, s, gw, "v1", 1)
	view(t, s, "v1", apps[0], 2)

	sweeper := newSweeper(s, gw)
	if res, _ := sweeper.Sweep(context.Background()); res.DeletedCount != 1 {
		t.Fatalf("Expected 1 deletion, got %d", res.DeletedCount)
	}
	res, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.DeletedCount != 0 {
		t.Fatalf("Expected no deletions on second run, got %d", res.DeletedCount)
	}
}

func TestSweep_RemoteFailureLeavesRowForRetry(t *testing.T) {
	s := memory.New()
	gw := hostingtest.New()
	a := seedVideo(t, s, gw, "v1", 1)
	view(t, s, "v1", a[0], 2)
	b := seedVideo(t, s, gw, "v2", 1)
	view(t, s, "v2", b[0], 2)

	gw.DeleteErrors["users/js/videos/v1"] = errors.New("provider unavailable")

	res, err := newSweeper(s, gw).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.DeletedCount != 1 || res.DeletedVideoIDs[0] != "v2" {
		t.Fatalf("Expected only v2 deleted, got %+v", res)
	}
	if _, err := s.GetVideo(context.Background(), "v1"); err != nil {
		t.Fatalf("Expected v1 row to remain, got %v", err)
	}

	delete(gw.DeleteErrors, "users/js/videos/v1")
	res, _ = newSweeper(s, gw).Sweep(context.Background())
	if res.DeletedCount != 1 || res.DeletedVideoIDs[0] != "v1" {
		t.Fatalf("Expected v1 deleted on retry, got %+v", res)
	}
}

func TestSweep_MissingRemoteObjectCountsAsDeleted(t *testing.T) {
	s := memory.New()
	gw := hostingtest.New()
	a := seedVideo(t, s, gw, "v1", 1)
	view(t, s, "v1", a[0], 2)
	gw.DeleteErrors["users/js/videos/v1"] = media.ErrAssetNotFound

	res, err := newSweeper(s, gw).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.DeletedCount != 1 {
		t.Fatalf("Expected 1 deletion, got %d", res.DeletedCount)
	}
}

type failingStore struct {
	*memory.Store
}

func (failingStore) ListReclaimable(context.Context, int, time.Time, int) ([]types.ReclaimCandidate, error) {
	return nil, errors.New("connection refused")
}

// flakyStore fails the first selection only.
type flakyStore struct {
	*memory.Store
	calls int
}

func (f *flakyStore) ListReclaimable(ctx context.Context, maxViews int, settledBefore time.Time, limit int) ([]types.ReclaimCandidate, error) {
	f.calls++
	if f.calls == 1 {
		return nil, errors.New("connection reset")
	}
	return f.Store.ListReclaimable(ctx, maxViews, settledBefore, limit)
}

func TestSweep_SelectionRetriedOnce(t *testing.T) {
	s := &flakyStore{Store: memory.New()}
	gw := hostingtest.New()
	a := seedVideo(t, s.Store, gw, "v1", 1)
	view(t, s.Store, "v1", a[0], 2)

	res, err := newSweeper(s, gw).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if s.calls != 2 || res.DeletedCount != 1 {
		t.Fatalf("Expected one retry and one deletion, got calls=%d result=%+v", s.calls, res)
	}
}

func TestSweep_SelectionFailureAborts(t *testing.T) {
	gw := hostingtest.New()
	_, err := newSweeper(failingStore{memory.New()}, gw).Sweep(context.Background())
	if err == nil {
		t.Fatal("Expected selection error")
	}
	if len(gw.DeleteCalls) != 0 {
		t.Fatalf("Expected no remote deletes, got %v", gw.DeleteCalls)
	}
}

func TestSweep_RespectsBatchSize(t *testing.T) {
	s := memory.New()
	gw := hostingtest.New()
	for _, id := range []string{"v1", "v2", "v3"} {
		a := seedVideo(t, s, gw, id, 1)
		view(t, s, id, a[0], 2)
	}

	sweeper := NewSweeper(s, gw, Options{MaxViews: 2, BatchSize: 2, Now: afterTokensExpire})
	res, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.DeletedCount != 2 {
		t.Fatalf("Expected 2 deletions, got %d", res.DeletedCount)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := memory.New()
	gw := hostingtest.New()
	a := seedVideo(t, s, gw, "v1", 1)
	view(t, s, "v1", a[0], 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewSweeper(s, gw, Options{MaxViews: 2, BatchSize: 10, Interval: time.Hour, Now: afterTokensExpire}).Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if _, err := s.GetVideo(context.Background(), "v1"); errors.Is(err, storage.ErrNotFound) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Expected the initial sweep to delete v1")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSweep_KeepsVideoWhileLastTokenIsLive(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	s := memory.New()
	gw := hostingtest.New()
	apps := seedVideo(t, s, gw, "v1", 1)

	svc, err := access.NewService(s, cache.NewTokenCache(client), access.Options{
		MaxViews:      2,
		TokenTTL:      5 * time.Minute,
		StreamBaseURL: "https://api.test",
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := svc.RequestAccess(ctx, "v1", apps[0], "emp-"+apps[0]); err != nil {
			t.Fatalf("RequestAccess %d: %v", i+1, err)
		}
	}

	now := time.Now()
	sweeper := NewSweeper(s, gw, Options{
		MaxViews: 2,
		TokenTTL: 5 * time.Minute,
		Now:      func() time.Time { return now },
	})

	res, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.DeletedCount != 0 {
		t.Fatalf("Expected no deletion while the last token is live, got %+v", res)
	}
	if !gw.Has("users/js/videos/v1") {
		t.Fatal("Expected hosted object to survive")
	}

	now = now.Add(6 * time.Minute)
	res, err = sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.DeletedCount != 1 {
		t.Fatalf("Expected deletion once the token window passed, got %+v", res)
	}
}
