package videos

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/hirelens/resume-video-service/internal/http/middleware"
	"github.com/hirelens/resume-video-service/internal/types"
	"github.com/hirelens/resume-video-service/internal/types/media"
	"github.com/hirelens/resume-video-service/internal/utils/response"
	videoService "github.com/hirelens/resume-video-service/internal/videos"
)

// Multipart parts beyond this stay on disk rather than in memory.
const maxMemory = 8 << 20

type Service interface {
	Upload(ctx context.Context, ownerID string, form media.VideoUploadForm, in media.UploadInput) (types.Video, error)
	Get(ctx context.Context, callerID, videoID string) (types.Video, error)
	UpdateMetadata(ctx context.Context, callerID, videoID string, update types.VideoMetadataUpdate) (types.Video, error)
	Delete(ctx context.Context, callerID, videoID string) error
}

type VideoHandlers struct {
	service     Service
	maxFileSize int64
	validate    *validator.Validate
}

func NewVideoHandlers(service Service, maxFileSize int64) *VideoHandlers {
	return &VideoHandlers{
		service:     service,
		maxFileSize: maxFileSize,
		validate:    validator.New(),
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, videoService.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, videoService.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, videoService.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, videoService.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("video operation failed", slog.String("op", op), slog.String("error", err.Error()))
		response.WriteError(w, status, errors.New("failed to "+op))
		return
	}
	response.WriteError(w, status, err)
}

// Upload stores a new private résumé video
// @Summary Upload a résumé video
// @Description Upload a video file as multipart form data. The video is private and download-protected.
// @Tags videos
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Video file"
// @Param title formData string true "Title"
// @Param duration_seconds formData int false "Duration in seconds"
// @Param resume_id formData string false "Résumé to attach the video to"
// @Success 201 {object} types.Video "Video uploaded successfully"
// @Failure 400 {object} response.Response "Bad request"
// @Failure 401 {object} response.Response "Unauthorized"
// @Failure 403 {object} response.Response "Forbidden"
// @Failure 413 {object} response.Response "File too large"
// @Failure 415 {object} response.Response "Unsupported media type"
// @Failure 429 {object} response.Response "Rate limit exceeded"
// @Security BearerAuth
// @Router /videos [post]
func (h *VideoHandlers) Upload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
			return
		}

		if h.maxFileSize > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+maxMemory)
		}
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.WriteError(w, http.StatusRequestEntityTooLarge, videoService.ErrTooLarge)
				return
			}
			response.WriteError(w, http.StatusBadRequest, errors.New("invalid multipart form"))
			return
		}
		defer r.MultipartForm.RemoveAll()

		form := media.VideoUploadForm{
			Title:    r.FormValue("title"),
			ResumeID: r.FormValue("resume_id"),
		}
		if raw := r.FormValue("duration_seconds"); raw != "" {
			d, err := strconv.Atoi(raw)
			if err != nil {
				response.WriteError(w, http.StatusBadRequest, errors.New("duration_seconds must be an integer"))
				return
			}
			form.DurationSeconds = d
		}
		if err := h.validate.Struct(form); err != nil {
			response.InvalidInput(w, err)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			response.WriteError(w, http.StatusBadRequest, errors.New("file is required"))
			return
		}
		defer file.Close()

		video, err := h.service.Upload(r.Context(), userID, form, media.UploadInput{
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		})
		if err != nil {
			writeServiceError(w, "upload video", err)
			return
		}

		response.WriteJSON(w, http.StatusCreated, response.RequestOK("Video uploaded successfully", video))
	}
}

// Get returns a video's metadata
// @Summary Get video
// @Tags videos
// @Produce json
// @Param id path string true "Video ID"
// @Success 200 {object} types.Video
// @Failure 403 {object} response.Response "Forbidden"
// @Failure 404 {object} response.Response "Video not found"
// @Security BearerAuth
// @Router /videos/{id} [get]
func (h *VideoHandlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
			return
		}

		video, err := h.service.Get(r.Context(), userID, r.PathValue("id"))
		if err != nil {
			writeServiceError(w, "get video", err)
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Video retrieved successfully", video))
	}
}

// Update replaces owner-editable metadata
// @Summary Update video metadata
// @Tags videos
// @Accept json
// @Produce json
// @Param id path string true "Video ID"
// @Param update body types.VideoMetadataUpdate true "Fields to change"
// @Success 200 {object} types.Video
// @Failure 400 {object} response.Response "Bad request"
// @Failure 403 {object} response.Response "Forbidden"
// @Failure 404 {object} response.Response "Video not found"
// @Security BearerAuth
// @Router /videos/{id} [patch]
func (h *VideoHandlers) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
			return
		}

		var update types.VideoMetadataUpdate
		err := json.NewDecoder(r.Body).Decode(&update)
		if errors.Is(err, io.EOF) {
			response.WriteError(w, http.StatusBadRequest, errors.New("request body cannot be empty"))
			return
		} else if err != nil {
			response.WriteError(w, http.StatusBadRequest, err)
			return
		}
		if err := h.validate.Struct(update); err != nil {
			response.InvalidInput(w, err)
			return
		}

		video, err := h.service.UpdateMetadata(r.Context(), userID, r.PathValue("id"), update)
		if err != nil {
			writeServiceError(w, "update video", err)
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Video updated successfully", video))
	}
}

// Delete removes the caller's video
// @Summary Delete video
// @Tags videos
// @Param id path string true "Video ID"
// @Success 200 {object} response.Response "Video deleted successfully"
// @Failure 403 {object} response.Response "Forbidden"
// @Failure 404 {object} response.Response "Video not found"
// @Security BearerAuth
// @Router /videos/{id} [delete]
func (h *VideoHandlers) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
			return
		}

		if err := h.service.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
			writeServiceError(w, "delete video", err)
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Video deleted successfully", nil))
	}
}
