package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/hirelens/resume-video-service/internal/storage"
	"github.com/hirelens/resume-video-service/internal/types"
	"github.com/hirelens/resume-video-service/internal/utils/upstream"
)

// Issuer grants time-bounded stream URLs, consuming one view per grant.
type Issuer struct {
	store     Store
	tokens    TokenStore
	policy    *Policy
	ttl       time.Duration
	streamURL *url.URL
	timeouts  Timeouts
	now       func() time.Time
	logger    *slog.Logger
}

// authorize loads the video and application and checks that employerID may
// view the video through the application.
func (i *Issuer) authorize(ctx context.Context, videoID, applicationID, employerID string) (types.Video, types.Application, error) {
	var video types.Video
	err := upstream.Call(ctx, i.timeouts.Store, 1, func(ctx context.Context) error {
		var err error
		video, err = i.store.GetVideo(ctx, videoID)
		return err
	}, storage.ErrNotFound)
	if err != nil {
		return types.Video{}, types.Application{}, storeError("load video", err)
	}
	if video.Status != types.VideoStatusReady {
		return types.Video{}, types.Application{}, ErrNotFound
	}

	var app types.Application
	err = upstream.Call(ctx, i.timeouts.Store, 1, func(ctx context.Context) error {
		var err error
		app, err = i.store.GetApplication(ctx, applicationID)
		return err
	}, storage.ErrNotFound)
	if err != nil {
		return types.Video{}, types.Application{}, storeError("load application", err)
	}

	if app.EmployerID != employerID {
		return types.Video{}, types.Application{}, ErrForbidden
	}
	if !video.IsPrivateResume() {
		return types.Video{}, types.Application{}, ErrForbidden
	}
	if app.JobSeekerID != video.JobSeekerID || app.VideoID != video.ID {
		return types.Video{}, types.Application{}, ErrForbidden
	}

	return video, app, nil
}

// IssueAccessURL consumes a view and returns a stream URL carrying a fresh
// token. The increment is authoritative: a policy check that passed on a
// stale count still fails here when a concurrent request took the last view.
func (i *Issuer) IssueAccessURL(ctx context.Context, videoID, applicationID, employerID string) (types.AccessGrant, error) {
	if _, _, err := i.authorize(ctx, videoID, applicationID, employerID); err != nil {
		return types.AccessGrant{}, err
	}

	status, err := i.policy.CheckLimit(ctx, videoID, applicationID, employerID)
	if err != nil {
		return types.AccessGrant{}, err
	}
	if !status.Allowed {
		return types.AccessGrant{ViewsRemaining: 0}, ErrLimitExceeded
	}

	// Never retried: an ambiguous failure is reported as not granted and the
	// guarded increment makes a client-side retry safe.
	var res types.IncrementResult
	err = upstream.Once(ctx, i.timeouts.Store, func(ctx context.Context) error {
		var err error
		res, err = i.store.IncrementView(ctx, videoID, applicationID, employerID, i.policy.MaxViews())
		return err
	})
	if err != nil {
		return types.AccessGrant{}, storeError("increment view", err)
	}
	if !res.Success {
		i.logger.Info("view limit reached at increment",
			"video_id", videoID, "application_id", applicationID, "view_count", res.NewViewCount)
		return types.AccessGrant{ViewsRemaining: 0}, ErrLimitExceeded
	}

	token, err := newToken()
	if err != nil {
		return types.AccessGrant{}, err
	}

	expiresAt := i.now().Add(i.ttl).UTC()
	payload, err := json.Marshal(types.AccessToken{
		VideoID:       videoID,
		EmployerID:    employerID,
		ApplicationID: applicationID,
		ExpiresAt:     expiresAt,
	})
	if err != nil {
		return types.AccessGrant{}, fmt.Errorf("encode token payload: %w", err)
	}

	err = upstream.Call(ctx, i.timeouts.Cache, 1, func(ctx context.Context) error {
		return i.tokens.Set(ctx, token, payload, i.ttl)
	})
	if err != nil {
		i.logger.Error("view consumed but token could not be stored",
			"video_id", videoID, "application_id", applicationID, "error", err)
		return types.AccessGrant{}, fmt.Errorf("%w: store token: %w", ErrUpstreamUnavailable, err)
	}

	remaining := i.policy.MaxViews() - res.NewViewCount
	if remaining < 0 {
		remaining = 0
	}

	i.logger.Info("access granted",
		"video_id", videoID,
		"application_id", applicationID,
		"employer_id", employerID,
		"views_remaining", remaining,
		"expires_at", expiresAt)

	return types.AccessGrant{
		URL:            i.composeURL(videoID, token, expiresAt),
		ExpiresAt:      expiresAt,
		ViewsRemaining: remaining,
	}, nil
}

func (i *Issuer) composeURL(videoID, token string, expiresAt time.Time) string {
	u := i.streamURL.JoinPath("videos", videoID, "stream")
	q := u.Query()
	q.Set("token", token)
	q.Set("expires", strconv.FormatInt(expiresAt.Unix(), 10))
	u.RawQuery = q.Encode()
	return u.String()
}

func storeError(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %s: %w", ErrUpstreamUnavailable, op, err)
}
