package types

import "time"

type VideoStatus string

const (
	VideoStatusUploading VideoStatus = "uploading"
	VideoStatusReady     VideoStatus = "ready"
	VideoStatusDeleted   VideoStatus = "deleted"
)

type VideoKind string

const (
	// VideoKindResume is a private résumé video viewed through applications.
	VideoKindResume VideoKind = "resume"
	// VideoKindIntro is a public introduction video with no view quota.
	VideoKindIntro VideoKind = "intro"
)

type Role string

const (
	RoleJobSeeker Role = "job_seeker"
	RoleEmployer  Role = "employer"
)

type Video struct {
	ID                string      `json:"id"`
	MediaID           string      `json:"media_id"`
	JobSeekerID       string      `json:"job_seeker_id"`
	Kind              VideoKind   `json:"kind"`
	Title             string      `json:"title"`
	IsPublic          bool        `json:"is_public"`
	DownloadProtected bool        `json:"download_protected"`
	Status            VideoStatus `json:"status"`
	PlaybackURL       string      `json:"playback_url"`
	StreamURL         string      `json:"stream_url"`
	ThumbnailURL      string      `json:"thumbnail_url"`
	DurationSeconds   int         `json:"duration_seconds"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// IsPrivateResume reports whether v is subject to the per-application view quota.
func (v Video) IsPrivateResume() bool {
	return v.Kind == VideoKindResume && !v.IsPublic
}

// VideoMetadataUpdate carries the owner-editable fields of a video. Nil fields are left unchanged.
type VideoMetadataUpdate struct {
	Title           *string `json:"title" validate:"omitempty,max=200"`
	ThumbnailURL    *string `json:"thumbnail_url" validate:"omitempty,url"`
	DurationSeconds *int    `json:"duration_seconds" validate:"omitempty,min=0"`
}

type Resume struct {
	ID          string    `json:"id"`
	JobSeekerID string    `json:"job_seeker_id"`
	Title       string    `json:"title"`
	VideoID     string    `json:"video_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type ResumeCreateRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	VideoID string `json:"video_id" validate:"omitempty,uuid"`
}

// Application grants one employer a bounded number of views of the video
// attached to a job seeker's résumé at the time of applying.
type Application struct {
	ID          string    `json:"id"`
	JobSeekerID string    `json:"job_seeker_id"`
	EmployerID  string    `json:"employer_id"`
	ResumeID    string    `json:"resume_id"`
	VideoID     string    `json:"video_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type ApplicationCreateRequest struct {
	EmployerID string `json:"employer_id" validate:"required,uuid"`
	ResumeID   string `json:"resume_id" validate:"required,uuid"`
}

// ViewRecord counts the views one application has consumed against one video.
type ViewRecord struct {
	VideoID       string    `json:"video_id"`
	ApplicationID string    `json:"application_id"`
	EmployerID    string    `json:"employer_id"`
	ViewCount     int       `json:"view_count"`
	LastViewedAt  time.Time `json:"last_viewed_at"`
}

// IncrementResult is the outcome of the guarded view increment.
type IncrementResult struct {
	Success      bool
	NewViewCount int
}

// AccessToken is the cache-resident payload behind an opaque token value.
type AccessToken struct {
	VideoID       string    `json:"video_id"`
	EmployerID    string    `json:"employer_id"`
	ApplicationID string    `json:"application_id"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type AccessRequest struct {
	ApplicationID string `json:"application_id" validate:"required,uuid"`
}

type AccessGrant struct {
	URL            string    `json:"url"`
	ExpiresAt      time.Time `json:"expires_at"`
	ViewsRemaining int       `json:"views_remaining"`
}

type LimitStatus struct {
	Allowed        bool `json:"allowed"`
	ViewsRemaining int  `json:"views_remaining"`
}

// ReclaimCandidate is a video the sweeper may remove.
type ReclaimCandidate struct {
	VideoID     string
	MediaID     string
	JobSeekerID string
}

type SweepResult struct {
	DeletedCount    int      `json:"deleted_count"`
	DeletedVideoIDs []string `json:"deleted_video_ids"`
}
