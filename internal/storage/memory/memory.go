// Package memory is an in-process storage.Storage used for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hirelens/resume-video-service/internal/storage"
	"github.com/hirelens/resume-video-service/internal/types"
	"github.com/hirelens/resume-video-service/internal/types/users"
)

type viewKey struct {
	videoID       string
	applicationID string
}

type Store struct {
	mu           sync.RWMutex
	users        map[string]users.User
	videos       map[string]types.Video
	resumes      map[string]types.Resume
	applications map[string]types.Application
	views        map[viewKey]types.ViewRecord
}

func New() *Store {
	return &Store{
		users:        make(map[string]users.User),
		videos:       make(map[string]types.Video),
		resumes:      make(map[string]types.Resume),
		applications: make(map[string]types.Application),
		views:        make(map[viewKey]types.ViewRecord),
	}
}

func (s *Store) CreateUser(_ context.Context, email, password string, role types.Role) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			return "", storage.ErrConflict
		}
	}
	id := uuid.NewString()
	s.users[id] = users.User{
		ID:        id,
		Email:     email,
		Password:  password,
		Role:      role,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	return id, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return users.User{}, storage.ErrNotFound
}

func (s *Store) GetUserByID(_ context.Context, id string) (users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return users.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) CreateVideo(_ context.Context, v types.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.videos[v.ID]; ok {
		return storage.ErrConflict
	}
	s.videos[v.ID] = v
	return nil
}

func (s *Store) GetVideo(_ context.Context, id string) (types.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.videos[id]
	if !ok {
		return types.Video{}, storage.ErrNotFound
	}
	return v, nil
}

func (s *Store) UpdateVideoMetadata(_ context.Context, id string, update types.VideoMetadataUpdate) (types.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.videos[id]
	if !ok {
		return types.Video{}, storage.ErrNotFound
	}
	if update.Title != nil {
		v.Title = *update.Title
	}
	if update.ThumbnailURL != nil {
		v.ThumbnailURL = *update.ThumbnailURL
	}
	if update.DurationSeconds != nil {
		v.DurationSeconds = *update.DurationSeconds
	}
	v.UpdatedAt = time.Now().UTC()
	s.videos[id] = v
	return v, nil
}

func (s *Store) DeleteVideo(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.videos[id]; !ok {
		return storage.ErrNotFound
	}
	s.deleteVideoLocked(id)
	return nil
}

func (s *Store) deleteVideoLocked(id string) {
	delete(s.videos, id)

	for key := range s.views {
		if key.videoID == id {
			delete(s.views, key)
		}
	}
	for rid, r := range s.resumes {
		if r.VideoID == id {
			r.VideoID = ""
			s.resumes[rid] = r
		}
	}
	for aid, a := range s.applications {
		if a.VideoID == id {
			a.VideoID = ""
			s.applications[aid] = a
		}
	}
}

func (s *Store) CreateResume(_ context.Context, r types.Resume) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resumes[r.ID]; ok {
		return storage.ErrConflict
	}
	if r.VideoID != "" {
		if _, ok := s.videos[r.VideoID]; !ok {
			return storage.ErrNotFound
		}
	}
	s.resumes[r.ID] = r
	return nil
}

func (s *Store) GetResume(_ context.Context, id string) (types.Resume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.resumes[id]
	if !ok {
		return types.Resume{}, storage.ErrNotFound
	}
	return r, nil
}

func (s *Store) AttachResumeVideo(_ context.Context, resumeID, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.resumes[resumeID]
	if !ok {
		return storage.ErrNotFound
	}
	if videoID != "" {
		if _, ok := s.videos[videoID]; !ok {
			return storage.ErrNotFound
		}
	}
	r.VideoID = videoID
	s.resumes[resumeID] = r
	return nil
}

func (s *Store) CreateApplication(_ context.Context, a types.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.applications[a.ID]; ok {
		return storage.ErrConflict
	}
	if _, ok := s.resumes[a.ResumeID]; !ok {
		return storage.ErrNotFound
	}
	s.applications[a.ID] = a
	return nil
}

func (s *Store) GetApplication(_ context.Context, id string) (types.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.applications[id]
	if !ok {
		return types.Application{}, storage.ErrNotFound
	}
	return a, nil
}

func (s *Store) GetViewCount(_ context.Context, videoID, applicationID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.views[viewKey{videoID, applicationID}].ViewCount, nil
}

// IncrementView runs the guarded increment under the store's write lock.
func (s *Store) IncrementView(_ context.Context, videoID, applicationID, employerID string, maxViews int) (types.IncrementResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.videos[videoID]; !ok {
		return types.IncrementResult{}, storage.ErrNotFound
	}
	if _, ok := s.applications[applicationID]; !ok {
		return types.IncrementResult{}, storage.ErrNotFound
	}

	key := viewKey{videoID, applicationID}
	rec, ok := s.views[key]
	if !ok {
		rec = types.ViewRecord{VideoID: videoID, ApplicationID: applicationID, EmployerID: employerID}
	}
	if rec.ViewCount >= maxViews {
		return types.IncrementResult{Success: false, NewViewCount: rec.ViewCount}, nil
	}

	rec.ViewCount++
	rec.LastViewedAt = time.Now().UTC()
	s.views[key] = rec
	return types.IncrementResult{Success: true, NewViewCount: rec.ViewCount}, nil
}

// reclaimableLocked reports whether v has an application, no application
// with quota left and no view recorded after settledBefore.
func (s *Store) reclaimableLocked(v types.Video, maxViews int, settledBefore time.Time) bool {
	if !v.IsPrivateResume() || v.Status == types.VideoStatusDeleted {
		return false
	}

	applied := false
	for _, a := range s.applications {
		if a.VideoID != v.ID {
			continue
		}
		applied = true
		if s.views[viewKey{v.ID, a.ID}].ViewCount < maxViews {
			return false
		}
	}
	if !applied {
		return false
	}

	for key, rec := range s.views {
		if key.videoID == v.ID && rec.LastViewedAt.After(settledBefore) {
			return false
		}
	}
	return true
}

func (s *Store) ListReclaimable(_ context.Context, maxViews int, settledBefore time.Time, limit int) ([]types.ReclaimCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var eligible []types.Video
	for _, v := range s.videos {
		if s.reclaimableLocked(v, maxViews, settledBefore) {
			eligible = append(eligible, v)
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
	})
	if limit > 0 && len(eligible) > limit {
		eligible = eligible[:limit]
	}

	candidates := make([]types.ReclaimCandidate, 0, len(eligible))
	for _, v := range eligible {
		candidates = append(candidates, types.ReclaimCandidate{VideoID: v.ID, MediaID: v.MediaID, JobSeekerID: v.JobSeekerID})
	}
	return candidates, nil
}

// ReclaimVideo holds the write lock across removeRemote, so no view or
// application can land between the check and the delete.
func (s *Store) ReclaimVideo(ctx context.Context, videoID string, maxViews int, settledBefore time.Time, removeRemote func(ctx context.Context) error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.videos[videoID]
	if !ok || !s.reclaimableLocked(v, maxViews, settledBefore) {
		return false, nil
	}
	if err := removeRemote(ctx); err != nil {
		return false, err
	}
	s.deleteVideoLocked(videoID)
	return true, nil
}

var _ storage.Storage = (*Store)(nil)
