// Package applications lets job seekers keep résumés and apply to employers
// with them.
package applications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hirelens/resume-video-service/internal/storage"
	"github.com/hirelens/resume-video-service/internal/types"
	"github.com/hirelens/resume-video-service/internal/types/users"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("resource belongs to another user")
	ErrInvalidEmployer = errors.New("employer does not exist")
)

type Store interface {
	GetUserByID(ctx context.Context, id string) (users.User, error)
	GetVideo(ctx context.Context, id string) (types.Video, error)
	CreateResume(ctx context.Context, r types.Resume) error
	GetResume(ctx context.Context, id string) (types.Resume, error)
	CreateApplication(ctx context.Context, a types.Application) error
}

type Service struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, now: time.Now, logger: logger.With("component", "ApplicationService")}
}

func (s *Service) CreateResume(ctx context.Context, jobSeekerID string, req types.ResumeCreateRequest) (types.Resume, error) {
	if req.VideoID != "" {
		video, err := s.store.GetVideo(ctx, req.VideoID)
		if errors.Is(err, storage.ErrNotFound) {
			return types.Resume{}, fmt.Errorf("%w: video %s", ErrNotFound, req.VideoID)
		}
		if err != nil {
			return types.Resume{}, fmt.Errorf("load video: %w", err)
		}
		if video.JobSeekerID != jobSeekerID {
			return types.Resume{}, ErrForbidden
		}
	}

	resume := types.Resume{
		ID:          uuid.NewString(),
		JobSeekerID: jobSeekerID,
		Title:       req.Title,
		VideoID:     req.VideoID,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.CreateResume(ctx, resume); err != nil {
		return types.Resume{}, fmt.Errorf("create resume: %w", err)
	}
	return resume, nil
}

// Apply files an application to employerID with one of the job seeker's
// résumés. The résumé's current video is copied onto the application, so a
// later video change does not alter what this employer may view.
func (s *Service) Apply(ctx context.Context, jobSeekerID string, req types.ApplicationCreateRequest) (types.Application, error) {
	employer, err := s.store.GetUserByID(ctx, req.EmployerID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && employer.Role != types.RoleEmployer) {
		return types.Application{}, ErrInvalidEmployer
	}
	if err != nil {
		return types.Application{}, fmt.Errorf("load employer: %w", err)
	}

	resume, err := s.store.GetResume(ctx, req.ResumeID)
	if errors.Is(err, storage.ErrNotFound) {
		return types.Application{}, fmt.Errorf("%w: resume %s", ErrNotFound, req.ResumeID)
	}
	if err != nil {
		return types.Application{}, fmt.Errorf("load resume: %w", err)
	}
	if resume.JobSeekerID != jobSeekerID {
		return types.Application{}, ErrForbidden
	}

	app := types.Application{
		ID:          uuid.NewString(),
		JobSeekerID: jobSeekerID,
		EmployerID:  employer.ID,
		ResumeID:    resume.ID,
		VideoID:     resume.VideoID,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.CreateApplication(ctx, app); err != nil {
		return types.Application{}, fmt.Errorf("create application: %w", err)
	}

	s.logger.Info("application created",
		"application_id", app.ID,
		"employer_id", app.EmployerID,
		"video_id", app.VideoID)
	return app, nil
}
