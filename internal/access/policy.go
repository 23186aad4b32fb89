package access

import (
	"context"
	"fmt"
	"time"

	"github.com/hirelens/resume-video-service/internal/storage"
	"github.com/hirelens/resume-video-service/internal/types"
	"github.com/hirelens/resume-video-service/internal/utils/upstream"
)

// Evaluate decides whether another view is allowed after viewCount views.
func Evaluate(viewCount, maxViews int) types.LimitStatus {
	remaining := maxViews - viewCount
	if remaining < 0 {
		remaining = 0
	}
	return types.LimitStatus{
		Allowed:        viewCount < maxViews,
		ViewsRemaining: remaining,
	}
}

// Policy reads the consumed views of a (video, application) pair and applies
// Evaluate. It never writes.
type Policy struct {
	views    storage.ViewStore
	maxViews int
	timeout  time.Duration
}

func NewPolicy(views storage.ViewStore, maxViews int, timeout time.Duration) *Policy {
	return &Policy{views: views, maxViews: maxViews, timeout: timeout}
}

// CheckLimit reports the quota state for applicationID against videoID. The
// quota is scoped to the pair; employerID is carried for the caller's audit
// trail only.
func (p *Policy) CheckLimit(ctx context.Context, videoID, applicationID, employerID string) (types.LimitStatus, error) {
	var count int
	err := upstream.Call(ctx, p.timeout, 1, func(ctx context.Context) error {
		var err error
		count, err = p.views.GetViewCount(ctx, videoID, applicationID)
		return err
	})
	if err != nil {
		return types.LimitStatus{}, fmt.Errorf("%w: read view count: %w", ErrUpstreamUnavailable, err)
	}
	return Evaluate(count, p.maxViews), nil
}

func (p *Policy) MaxViews() int {
	return p.maxViews
}
