package users

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/hirelens/resume-video-service/internal/storage"
	"github.com/hirelens/resume-video-service/internal/types/users"
	"github.com/hirelens/resume-video-service/internal/utils/jwt"
	"github.com/hirelens/resume-video-service/internal/utils/password"
	"github.com/hirelens/resume-video-service/internal/utils/response"
)

// SignUp handles user registration
// @Summary Register a new user
// @Description Register a job seeker or employer account
// @Tags users
// @Accept json
// @Produce json
// @Param user body users.SignUpRequest true "User registration details"
// @Success 201 {object} map[string]string "User created successfully"
// @Failure 400 {object} response.Response "Bad request"
// @Failure 409 {object} response.Response "Email already registered"
// @Failure 500 {object} response.Response "Internal server error"
// @Router /signup [post]
func SignUp(store storage.UserStore) http.HandlerFunc {
	validate := validator.New()
	return func(w http.ResponseWriter, r *http.Request) {
		var req users.SignUpRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.WriteError(w, http.StatusBadRequest, err)
			return
		}
		if err := validate.Struct(req); err != nil {
			response.InvalidInput(w, err)
			return
		}

		hashedPassword, err := password.HashPassword(req.Password)
		if err != nil {
			response.WriteError(w, http.StatusInternalServerError, errors.New("failed to hash password"))
			return
		}

		userID, err := store.CreateUser(r.Context(), req.Email, hashedPassword, req.Role)
		if errors.Is(err, storage.ErrConflict) {
			response.WriteError(w, http.StatusConflict, errors.New("email already registered"))
			return
		}
		if err != nil {
			slog.Error("Failed to create user", slog.String("error", err.Error()))
			response.WriteError(w, http.StatusInternalServerError, errors.New("failed to create user"))
			return
		}
		slog.Info("User created", slog.String("user_id", userID), slog.String("role", string(req.Role)))

		response.WriteJSON(w, http.StatusCreated, map[string]string{
			"id": userID,
		})
	}
}

// Login handles user authentication
// @Summary Authenticate a user
// @Description Authenticate a user and return a JWT carrying their id and role
// @Tags users
// @Accept json
// @Produce json
// @Param user body users.SignInRequest true "User login details"
// @Success 200 {object} map[string]string "User authenticated successfully with token"
// @Failure 400 {object} response.Response "Bad request"
// @Failure 401 {object} response.Response "Unauthorized"
// @Router /signin [post]
func Login(store storage.UserStore, jwtSecret string) http.HandlerFunc {
	validate := validator.New()
	return func(w http.ResponseWriter, r *http.Request) {
		var req users.SignInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.WriteError(w, http.StatusBadRequest, err)
			return
		}
		if err := validate.Struct(req); err != nil {
			response.InvalidInput(w, err)
			return
		}

		user, err := store.GetUserByEmail(r.Context(), req.Email)
		if err != nil || !password.CheckPasswordHash(req.Password, user.Password) {
			response.WriteError(w, http.StatusUnauthorized, errors.New("invalid email or password"))
			return
		}

		token, err := jwt.CreateToken(user.ID, user.Role, jwtSecret)
		if err != nil {
			response.WriteError(w, http.StatusInternalServerError, errors.New("failed to generate token"))
			return
		}

		response.WriteJSON(w, http.StatusOK, map[string]string{
			"user_id": user.ID,
			"role":    string(user.Role),
			"token":   token,
		})
	}
}
