package access

import "errors"

var (
	// ErrNotFound means the video or application does not exist.
	ErrNotFound = errors.New("video or application not found")
	// ErrForbidden means the caller is not the application's employer, or the
	// video is not a private résumé linked to the application.
	ErrForbidden = errors.New("access forbidden")
	// ErrLimitExceeded means the application has no views left on the video.
	ErrLimitExceeded = errors.New("view limit exceeded")
	// ErrTokenInvalid means the token was never issued or has expired.
	ErrTokenInvalid = errors.New("access token invalid")
	// ErrUpstreamUnavailable wraps failures of the store, cache or video provider.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
