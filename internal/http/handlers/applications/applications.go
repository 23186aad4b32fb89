package applications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	appService "github.com/hirelens/resume-video-service/internal/applications"
	"github.com/hirelens/resume-video-service/internal/http/middleware"
	"github.com/hirelens/resume-video-service/internal/types"
	"github.com/hirelens/resume-video-service/internal/utils/response"
)

type Service interface {
	CreateResume(ctx context.Context, jobSeekerID string, req types.ResumeCreateRequest) (types.Resume, error)
	Apply(ctx context.Context, jobSeekerID string, req types.ApplicationCreateRequest) (types.Application, error)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, appService.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, appService.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, appService.ErrInvalidEmployer):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, validate *validator.Validate, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		response.WriteError(w, http.StatusBadRequest, errors.New("request body cannot be empty"))
		return false
	} else if err != nil {
		response.WriteError(w, http.StatusBadRequest, err)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		response.InvalidInput(w, err)
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("application operation failed", slog.String("op", op), slog.String("error", err.Error()))
		response.WriteError(w, status, errors.New("failed to "+op))
		return
	}
	response.WriteError(w, status, err)
}

// CreateResume handles creating a résumé
// @Summary Create a résumé
// @Tags applications
// @Accept json
// @Produce json
// @Param resume body types.ResumeCreateRequest true "Résumé"
// @Success 201 {object} types.Resume
// @Failure 400 {object} response.Response "Bad request"
// @Failure 403 {object} response.Response "Video belongs to another user"
// @Security BearerAuth
// @Router /resumes [post]
func CreateResume(service Service) http.HandlerFunc {
	validate := validator.New()
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
			return
		}

		var req types.ResumeCreateRequest
		if !decode(w, r, validate, &req) {
			return
		}

		resume, err := service.CreateResume(r.Context(), userID, req)
		if err != nil {
			writeServiceError(w, "create resume", err)
			return
		}

		response.WriteJSON(w, http.StatusCreated, response.RequestOK("Resume created successfully", resume))
	}
}

// Apply handles a job seeker applying to an employer
// @Summary Apply to an employer
// @Description The application snapshots the résumé's current video.
// @Tags applications
// @Accept json
// @Produce json
// @Param application body types.ApplicationCreateRequest true "Application"
// @Success 201 {object} types.Application
// @Failure 400 {object} response.Response "Bad request"
// @Failure 403 {object} response.Response "Résumé belongs to another user"
// @Failure 404 {object} response.Response "Résumé not found"
// @Failure 422 {object} response.Response "Employer does not exist"
// @Security BearerAuth
// @Router /applications [post]
func Apply(service Service) http.HandlerFunc {
	validate := validator.New()
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
			return
		}

		var req types.ApplicationCreateRequest
		if !decode(w, r, validate, &req) {
			return
		}

		app, err := service.Apply(r.Context(), userID, req)
		if err != nil {
			writeServiceError(w, "create application", err)
			return
		}

		response.WriteJSON(w, http.StatusCreated, response.RequestOK("Application created successfully", app))
	}
}
