package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hirelens/resume-video-service/internal/types"
	"github.com/hirelens/resume-video-service/internal/types/users"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
)

type Storage interface {
	UserStore
	VideoStore
	ApplicationStore
	ViewStore
}

type UserStore interface {
	CreateUser(ctx context.Context, email, password string, role types.Role) (string, error)
	GetUserByEmail(ctx context.Context, email string) (users.User, error)
	GetUserByID(ctx context.Context, id string) (users.User, error)
}

type VideoStore interface {
	CreateVideo(ctx context.Context, video types.Video) error
	GetVideo(ctx context.Context, id string) (types.Video, error)
	UpdateVideoMetadata(ctx context.Context, id string, update types.VideoMetadataUpdate) (types.Video, error)
	// DeleteVideo removes the video row together with its view records and
	// clears the video reference on any résumé pointing at it.
	DeleteVideo(ctx context.Context, id string) error
}

type ApplicationStore interface {
	CreateResume(ctx context.Context, resume types.Resume) error
	GetResume(ctx context.Context, id string) (types.Resume, error)
	AttachResumeVideo(ctx context.Context, resumeID, videoID string) error
	CreateApplication(ctx context.Context, app types.Application) error
	GetApplication(ctx context.Context, id string) (types.Application, error)
}

type ViewStore interface {
	// GetViewCount returns the views consumed by applicationID against
	// videoID, or zero when no record exists yet.
	GetViewCount(ctx context.Context, videoID, applicationID string) (int, error)

	// IncrementView atomically consumes one view for the (video, application)
	// pair. A missing record is created with count 1. An existing record is
	// incremented only while its count is below maxViews; otherwise Success
	// is false and NewViewCount is the unchanged count. Concurrent calls for
	// the same pair are serialized.
	IncrementView(ctx context.Context, videoID, applicationID, employerID string, maxViews int) (types.IncrementResult, error)

	// ListReclaimable returns private résumé videos that have at least one
	// application, whose every application has used maxViews views and whose
	// latest view was recorded at or before settledBefore.
	ListReclaimable(ctx context.Context, maxViews int, settledBefore time.Time, limit int) ([]types.ReclaimCandidate, error)

	// ReclaimVideo locks videoID against new views and applications and
	// re-checks the ListReclaimable conditions. When they still hold it runs
	// removeRemote and then deletes the video as DeleteVideo does. It reports
	// false without calling removeRemote when the video is gone or no longer
	// reclaimable. A removeRemote error leaves the video untouched.
	ReclaimVideo(ctx context.Context, videoID string, maxViews int, settledBefore time.Time, removeRemote func(ctx context.Context) error) (bool, error)
}
