package access

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	accessService "github.com/hirelens/resume-video-service/internal/access"
	"github.com/hirelens/resume-video-service/internal/http/middleware"
	"github.com/hirelens/resume-video-service/internal/types"
	"github.com/hirelens/resume-video-service/internal/utils/response"
	videoService "github.com/hirelens/resume-video-service/internal/videos"
)

type Service interface {
	RequestAccess(ctx context.Context, videoID, applicationID, employerID string) (types.AccessGrant, error)
	ViewStatus(ctx context.Context, videoID, applicationID, employerID string) (types.LimitStatus, error)
	ValidateToken(ctx context.Context, token string) (types.AccessToken, error)
}

// StreamResolver turns a video id into a provider URL valid for ttl.
type StreamResolver interface {
	StreamURL(ctx context.Context, videoID string, ttl time.Duration) (string, error)
}

type AccessHandlers struct {
	service  Service
	streams  StreamResolver
	validate *validator.Validate
	now      func() time.Time
}

func NewAccessHandlers(service Service, streams StreamResolver) *AccessHandlers {
	return &AccessHandlers{
		service:  service,
		streams:  streams,
		validate: validator.New(),
		now:      time.Now,
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, accessService.ErrNotFound), errors.Is(err, videoService.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, accessService.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, accessService.ErrLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, accessService.ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, accessService.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeAccessError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusServiceUnavailable, http.StatusInternalServerError:
		slog.Error("access operation failed", slog.String("op", op), slog.String("error", err.Error()))
		response.WriteError(w, status, errors.New("service temporarily unavailable"))
	case http.StatusTooManyRequests:
		response.WriteJSON(w, status, response.Response{
			Status: response.StatusError,
			Error:  err.Error(),
			Data:   types.LimitStatus{Allowed: false, ViewsRemaining: 0},
		})
	default:
		response.WriteError(w, status, err)
	}
}

// RequestAccess consumes one view and returns a short-lived stream URL
// @Summary Request a stream URL for a résumé video
// @Description Consumes one of the application's views. The URL expires with its token.
// @Tags access
// @Accept json
// @Produce json
// @Param id path string true "Video ID"
// @Param request body types.AccessRequest true "Application to charge the view to"
// @Success 200 {object} types.AccessGrant "Access granted"
// @Failure 400 {object} response.Response "Bad request"
// @Failure 403 {object} response.Response "Forbidden"
// @Failure 404 {object} response.Response "Video or application not found"
// @Failure 429 {object} response.Response "View limit reached"
// @Failure 503 {object} response.Response "Upstream unavailable"
// @Security BearerAuth
// @Router /videos/{id}/access [post]
func (h *AccessHandlers) RequestAccess() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		employerID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
			return
		}

		var req types.AccessRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		if errors.Is(err, io.EOF) {
			response.WriteError(w, http.StatusBadRequest, errors.New("request body cannot be empty"))
			return
		} else if err != nil {
			response.WriteError(w, http.StatusBadRequest, err)
			return
		}
		if err := h.validate.Struct(req); err != nil {
			response.InvalidInput(w, err)
			return
		}

		grant, err := h.service.RequestAccess(r.Context(), r.PathValue("id"), req.ApplicationID, employerID)
		if err != nil {
			writeAccessError(w, "request access", err)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		response.WriteJSON(w, http.StatusOK, response.RequestOK("Access granted", grant))
	}
}

// ViewStatus reports the remaining views without consuming one
// @Summary Get remaining views
// @Tags access
// @Produce json
// @Param id path string true "Video ID"
// @Param application_id query string true "Application ID"
// @Success 200 {object} types.LimitStatus
// @Failure 403 {object} response.Response "Forbidden"
// @Failure 404 {object} response.Response "Video or application not found"
// @Security BearerAuth
// @Router /videos/{id}/views [get]
func (h *AccessHandlers) ViewStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		employerID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
			return
		}

		applicationID := r.URL.Query().Get("application_id")
		if applicationID == "" {
			response.WriteError(w, http.StatusBadRequest, errors.New("application_id is required"))
			return
		}

		status, err := h.service.ViewStatus(r.Context(), r.PathValue("id"), applicationID, employerID)
		if err != nil {
			writeAccessError(w, "view status", err)
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("View status retrieved", status))
	}
}

// Stream redeems a token for the hosted video
// @Summary Stream a résumé video
// @Description Validates the token and redirects to a provider URL that expires no later than the token.
// @Tags access
// @Param id path string true "Video ID"
// @Param token query string true "Access token"
// @Success 307 "Redirect to the hosted video"
// @Failure 401 {object} response.Response "Token invalid or expired"
// @Failure 404 {object} response.Response "Video not found"
// @Router /videos/{id}/stream [get]
func (h *AccessHandlers) Stream() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		videoID := r.PathValue("id")

		payload, err := h.service.ValidateToken(r.Context(), r.URL.Query().Get("token"))
		if err != nil {
			writeAccessError(w, "validate token", err)
			return
		}
		if payload.VideoID != videoID {
			writeAccessError(w, "validate token", accessService.ErrTokenInvalid)
			return
		}

		ttl := payload.ExpiresAt.Sub(h.now())
		if ttl < time.Second {
			writeAccessError(w, "validate token", accessService.ErrTokenInvalid)
			return
		}

		location, err := h.streams.StreamURL(r.Context(), videoID, ttl)
		if err != nil {
			writeAccessError(w, "presign stream", err)
			return
		}

		http.Redirect(w, r, location, http.StatusTemporaryRedirect)
	}
}
