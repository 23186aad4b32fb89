package users

import "github.com/hirelens/resume-video-service/internal/types"

type SignUpRequest struct {
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required,min=6"`
	Role     types.Role `json:"role" validate:"required,oneof=job_seeker employer"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Password  string     `json:"-"`
	Role      types.Role `json:"role"`
	CreatedAt string     `json:"created_at"`
}
