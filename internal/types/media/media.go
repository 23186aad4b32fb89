package media

import (
	"errors"
	"io"
	"time"
)

// ErrAssetNotFound is returned by hosting providers when the media object does not exist.
var ErrAssetNotFound = errors.New("media asset not found")

// UploadInput describes a raw video handed to the hosting provider.
type UploadInput struct {
	OwnerID         string
	ContentType     string
	Size            int64
	DurationSeconds int
	Body            io.Reader
}

// Asset is what the hosting provider returns for a stored video.
type Asset struct {
	MediaID         string `json:"media_id"`
	PlaybackURL     string `json:"playback_url"`
	StreamURL       string `json:"stream_url"`
	ThumbnailURL    string `json:"thumbnail_url"`
	DurationSeconds int    `json:"duration_seconds"`
}

// AssetInfo is the provider-side view of a stored object.
type AssetInfo struct {
	MediaID      string    `json:"media_id"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	LastModified time.Time `json:"last_modified"`
}

// VideoUploadForm holds the non-file fields of a résumé video upload.
type VideoUploadForm struct {
	Title           string `validate:"required,max=200"`
	DurationSeconds int    `validate:"min=0,max=600"`
	ResumeID        string `validate:"omitempty,uuid"`
}
