// Package reclaim removes private résumé videos whose every application has
// used up its view quota.
package reclaim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/hirelens/resume-video-service/internal/storage"
	"github.com/hirelens/resume-video-service/internal/types"
	"github.com/hirelens/resume-video-service/internal/types/media"
	"github.com/hirelens/resume-video-service/internal/utils/upstream"
)

type Store interface {
	ListReclaimable(ctx context.Context, maxViews int, settledBefore time.Time, limit int) ([]types.ReclaimCandidate, error)
	ReclaimVideo(ctx context.Context, videoID string, maxViews int, settledBefore time.Time, removeRemote func(ctx context.Context) error) (bool, error)
}

// Remote deletes the hosted object behind a video.
type Remote interface {
	Delete(ctx context.Context, mediaID string) error
}

// settleMargin is added to the token TTL to cover the gap between a view
// being recorded and its token's expiry being stamped.
const settleMargin = 30 * time.Second

type Options struct {
	MaxViews         int
	// TokenTTL is the access token lifetime. A video whose last view is
	// younger than this may still be streamed and is not reclaimed.
	TokenTTL         time.Duration
	BatchSize        int
	DeletesPerSecond float64
	Interval         time.Duration
	StoreTimeout     time.Duration
	Now              func() time.Time
	Logger           *slog.Logger
}

type Sweeper struct {
	store   Store
	remote  Remote
	opts    Options
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewSweeper(store Store, remote Remote, opts Options) *Sweeper {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	limit := rate.Inf
	if opts.DeletesPerSecond > 0 {
		limit = rate.Limit(opts.DeletesPerSecond)
	}

	return &Sweeper{
		store:   store,
		remote:  remote,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		logger:  opts.Logger.With("component", "ReclamationSweeper"),
	}
}

// Sweep runs one selection and deletes what it finds. A failed selection
// aborts the run; a failed video is logged and left for the next run.
func (s *Sweeper) Sweep(ctx context.Context) (types.SweepResult, error) {
	result := types.SweepResult{DeletedVideoIDs: []string{}}

	settledBefore := s.opts.Now().Add(-(s.opts.TokenTTL + settleMargin))

	candidates, err := s.list(ctx, settledBefore)
	if err != nil {
		return result, fmt.Errorf("select reclaimable videos: %w", err)
	}

	for _, c := range candidates {
		if err := s.limiter.Wait(ctx); err != nil {
			return result, err
		}

		deleted, err := s.reclaim(ctx, c, settledBefore)
		if err != nil {
			s.logger.Error("failed to reclaim video",
				"video_id", c.VideoID,
				"media_id", c.MediaID,
				"error", err)
			continue
		}
		if deleted {
			result.DeletedCount++
			result.DeletedVideoIDs = append(result.DeletedVideoIDs, c.VideoID)
		}
	}

	return result, nil
}

// list retries the selection once; it is a plain read.
func (s *Sweeper) list(ctx context.Context, settledBefore time.Time) ([]types.ReclaimCandidate, error) {
	var candidates []types.ReclaimCandidate
	err := upstream.Call(ctx, s.opts.StoreTimeout, 1, func(ctx context.Context) error {
		var err error
		candidates, err = s.store.ListReclaimable(ctx, s.opts.MaxViews, settledBefore, s.opts.BatchSize)
		return err
	})
	return candidates, err
}

// reclaim deletes the remote object inside the store's locked re-check, so a
// remote failure never leaves a database row pointing at nothing and no view
// can be granted between the check and the delete.
func (s *Sweeper) reclaim(ctx context.Context, c types.ReclaimCandidate, settledBefore time.Time) (bool, error) {
	deleted, err := s.store.ReclaimVideo(ctx, c.VideoID, s.opts.MaxViews, settledBefore, func(ctx context.Context) error {
		if c.MediaID == "" {
			return nil
		}
		if err := s.remote.Delete(ctx, c.MediaID); err != nil && !errors.Is(err, media.ErrAssetNotFound) {
			return fmt.Errorf("delete hosted object: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !deleted {
		s.logger.Info("skipping video no longer reclaimable", "video_id", c.VideoID)
		return false, nil
	}

	s.logger.Info("reclaimed video",
		"video_id", c.VideoID,
		"job_seeker_id", c.JobSeekerID)
	return true, nil
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.logger.Info("Reclamation sweeper started",
		"interval", s.opts.Interval.String(),
		"batch_size", s.opts.BatchSize)

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Reclamation sweeper shutting down")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	startTime := time.Now()

	result, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("Reclamation sweep failed",
			"error", err.Error(),
			"videos_deleted", result.DeletedCount,
			"duration_ms", time.Since(startTime).Milliseconds())
		return
	}

	duration := time.Since(startTime)
	s.logger.Info("Completed reclamation sweep",
		"videos_deleted", result.DeletedCount,
		"duration_ms", duration.Milliseconds(),
		"duration", duration.String())
}
