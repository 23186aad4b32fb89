// Package videos manages the lifecycle of job seekers' résumé videos: upload,
// metadata edits and owner deletion.
package videos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/hirelens/resume-video-service/internal/config"
	"github.com/hirelens/resume-video-service/internal/hosting"
	"github.com/hirelens/resume-video-service/internal/storage"
	"github.com/hirelens/resume-video-service/internal/types"
	"github.com/hirelens/resume-video-service/internal/types/media"
)

var (
	ErrNotFound         = errors.New("video not found")
	ErrForbidden        = errors.New("video belongs to another user")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrTooLarge         = errors.New("file exceeds maximum size")
)

type Store interface {
	CreateVideo(ctx context.Context, v types.Video) error
	GetVideo(ctx context.Context, id string) (types.Video, error)
	UpdateVideoMetadata(ctx context.Context, id string, update types.VideoMetadataUpdate) (types.Video, error)
	DeleteVideo(ctx context.Context, id string) error
	GetResume(ctx context.Context, id string) (types.Resume, error)
	AttachResumeVideo(ctx context.Context, resumeID, videoID string) error
}

type Service struct {
	store        Store
	gateway      hosting.Gateway
	allowed      []string
	maxFileSize  int64
	storeTimeout time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

func NewService(store Store, gateway hosting.Gateway, cfg config.Media, storeTimeout time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:        store,
		gateway:      gateway,
		allowed:      cfg.AllowedMimeTypes,
		maxFileSize:  cfg.MaxFileSize,
		storeTimeout: storeTimeout,
		now:          time.Now,
		logger:       logger.With("component", "VideoService"),
	}
}

// Upload stores body with the hosting provider and records it as a private,
// download-protected résumé video owned by ownerID. When form.ResumeID is set
// the video becomes that résumé's current video. Either every step succeeds
// or nothing is left behind.
func (s *Service) Upload(ctx context.Context, ownerID string, form media.VideoUploadForm, in media.UploadInput) (types.Video, error) {
	if !slices.Contains(s.allowed, in.ContentType) {
		return types.Video{}, fmt.Errorf("%w: %s", ErrUnsupportedMedia, in.ContentType)
	}
	if s.maxFileSize > 0 && in.Size > s.maxFileSize {
		return types.Video{}, ErrTooLarge
	}

	if form.ResumeID != "" {
		if err := s.checkResumeOwner(ctx, ownerID, form.ResumeID); err != nil {
			return types.Video{}, err
		}
	}

	in.OwnerID = ownerID
	in.DurationSeconds = form.DurationSeconds
	asset, err := s.gateway.Upload(ctx, in)
	if err != nil {
		return types.Video{}, fmt.Errorf("upload to hosting provider: %w", err)
	}

	now := s.now().UTC()
	video := types.Video{
		ID:                uuid.NewString(),
		MediaID:           asset.MediaID,
		JobSeekerID:       ownerID,
		Kind:              types.VideoKindResume,
		Title:             form.Title,
		IsPublic:          false,
		DownloadProtected: true,
		Status:            types.VideoStatusReady,
		PlaybackURL:       asset.PlaybackURL,
		StreamURL:         asset.StreamURL,
		ThumbnailURL:      asset.ThumbnailURL,
		DurationSeconds:   form.DurationSeconds,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.withStoreTimeout(ctx, func(ctx context.Context) error {
		return s.store.CreateVideo(ctx, video)
	}); err != nil {
		s.discardRemote(ctx, asset.MediaID)
		return types.Video{}, fmt.Errorf("record video: %w", err)
	}

	if form.ResumeID != "" {
		err := s.withStoreTimeout(ctx, func(ctx context.Context) error {
			return s.store.AttachResumeVideo(ctx, form.ResumeID, video.ID)
		})
		if err != nil {
			s.rollback(ctx, video)
			return types.Video{}, fmt.Errorf("attach video to resume: %w", err)
		}
	}

	s.logger.Info("video uploaded",
		"video_id", video.ID,
		"job_seeker_id", ownerID,
		"media_id", asset.MediaID)
	return video, nil
}

func (s *Service) checkResumeOwner(ctx context.Context, ownerID, resumeID string) error {
	var resume types.Resume
	err := s.withStoreTimeout(ctx, func(ctx context.Context) error {
		var err error
		resume, err = s.store.GetResume(ctx, resumeID)
		return err
	})
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: resume %s", ErrNotFound, resumeID)
	}
	if err != nil {
		return fmt.Errorf("load resume: %w", err)
	}
	if resume.JobSeekerID != ownerID {
		return ErrForbidden
	}
	return nil
}

func (s *Service) rollback(ctx context.Context, video types.Video) {
	if err := s.withStoreTimeout(ctx, func(ctx context.Context) error {
		return s.store.DeleteVideo(ctx, video.ID)
	}); err != nil {
		s.logger.Error("failed to remove video row after failed upload", "video_id", video.ID, "error", err)
	}
	s.discardRemote(ctx, video.MediaID)
}

func (s *Service) discardRemote(ctx context.Context, mediaID string) {
	if err := s.gateway.Delete(context.WithoutCancel(ctx), mediaID); err != nil && !errors.Is(err, media.ErrAssetNotFound) {
		s.logger.Error("failed to remove orphaned hosted object", "media_id", mediaID, "error", err)
	}
}

// Get returns the video. Private résumé videos are only visible to their owner
// here; employers go through the access flow instead.
func (s *Service) Get(ctx context.Context, callerID, videoID string) (types.Video, error) {
	video, err := s.load(ctx, videoID)
	if err != nil {
		return types.Video{}, err
	}
	if video.IsPrivateResume() && video.JobSeekerID != callerID {
		return types.Video{}, ErrForbidden
	}
	return video, nil
}

func (s *Service) UpdateMetadata(ctx context.Context, callerID, videoID string, update types.VideoMetadataUpdate) (types.Video, error) {
	video, err := s.load(ctx, videoID)
	if err != nil {
		return types.Video{}, err
	}
	if video.JobSeekerID != callerID {
		return types.Video{}, ErrForbidden
	}

	var updated types.Video
	err = s.withStoreTimeout(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.store.UpdateVideoMetadata(ctx, videoID, update)
		return err
	})
	if errors.Is(err, storage.ErrNotFound) {
		return types.Video{}, ErrNotFound
	}
	if err != nil {
		return types.Video{}, fmt.Errorf("update video: %w", err)
	}
	return updated, nil
}

// Delete removes the hosted object and then the row. A remote failure leaves
// the row in place so the owner can try again.
func (s *Service) Delete(ctx context.Context, callerID, videoID string) error {
	video, err := s.load(ctx, videoID)
	if err != nil {
		return err
	}
	if video.JobSeekerID != callerID {
		return ErrForbidden
	}

	if video.MediaID != "" {
		if err := s.gateway.Delete(ctx, video.MediaID); err != nil && !errors.Is(err, media.ErrAssetNotFound) {
			return fmt.Errorf("delete hosted object: %w", err)
		}
	}

	err = s.withStoreTimeout(ctx, func(ctx context.Context) error {
		return s.store.DeleteVideo(ctx, videoID)
	})
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete video row: %w", err)
	}

	s.logger.Info("video deleted by owner", "video_id", videoID, "job_seeker_id", callerID)
	return nil
}

// StreamURL returns a presigned provider URL for video, valid for ttl.
func (s *Service) StreamURL(ctx context.Context, videoID string, ttl time.Duration) (string, error) {
	video, err := s.load(ctx, videoID)
	if err != nil {
		return "", err
	}
	// Presigning never contacts the provider, so confirm the object exists
	// before handing out a URL to it.
	if _, err := s.gateway.Stat(ctx, video.MediaID); err != nil {
		if errors.Is(err, media.ErrAssetNotFound) {
			s.logger.Warn("hosted object missing for video", "video_id", video.ID, "media_id", video.MediaID)
			return "", ErrNotFound
		}
		return "", fmt.Errorf("stat hosted object: %w", err)
	}

	u, err := s.gateway.PresignedStreamURL(ctx, video.MediaID, ttl)
	if errors.Is(err, media.ErrAssetNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("presign stream url: %w", err)
	}
	return u.String(), nil
}

func (s *Service) load(ctx context.Context, videoID string) (types.Video, error) {
	var video types.Video
	err := s.withStoreTimeout(ctx, func(ctx context.Context) error {
		var err error
		video, err = s.store.GetVideo(ctx, videoID)
		return err
	})
	if errors.Is(err, storage.ErrNotFound) {
		return types.Video{}, ErrNotFound
	}
	if err != nil {
		return types.Video{}, fmt.Errorf("load video: %w", err)
	}
	if video.Status == types.VideoStatusDeleted {
		return types.Video{}, ErrNotFound
	}
	return video, nil
}

func (s *Service) withStoreTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.storeTimeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return fn(ctx)
}
