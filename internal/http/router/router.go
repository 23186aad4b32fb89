// Package router assembles the HTTP surface of the service.
package router

import (
	"net/http"

	"github.com/go-redis/redis/v8"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/hirelens/resume-video-service/docs"
	"github.com/hirelens/resume-video-service/internal/cache"
	accessHandlers "github.com/hirelens/resume-video-service/internal/http/handlers/access"
	appHandlers "github.com/hirelens/resume-video-service/internal/http/handlers/applications"
	"github.com/hirelens/resume-video-service/internal/http/handlers/users"
	videoHandlers "github.com/hirelens/resume-video-service/internal/http/handlers/videos"
	"github.com/hirelens/resume-video-service/internal/http/middleware"
	"github.com/hirelens/resume-video-service/internal/storage"
	"github.com/hirelens/resume-video-service/internal/types"
)

type Deps struct {
	JWTSecret    string
	MaxFileSize  int64
	Users        storage.UserStore
	Videos       videoHandlers.Service
	Streams      accessHandlers.StreamResolver
	Access       accessHandlers.Service
	Applications appHandlers.Service
	RateLimits   *middleware.RateLimitConfig
}

func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func New(d Deps) http.Handler {
	router := http.NewServeMux()

	auth := middleware.AuthMiddleware(d.JWTSecret)
	jobSeeker := middleware.RequireRole(types.RoleJobSeeker)
	employer := middleware.RequireRole(types.RoleEmployer)

	router.HandleFunc("GET /healthz", healthz)
	router.Handle("GET /swagger/", httpSwagger.WrapHandler)

	router.HandleFunc("POST /signup", users.SignUp(d.Users))
	router.HandleFunc("POST /signin", users.Login(d.Users, d.JWTSecret))

	videos := videoHandlers.NewVideoHandlers(d.Videos, d.MaxFileSize)
	router.Handle("POST /videos", chain(videos.Upload(), auth, jobSeeker, d.RateLimits.RateLimitMiddleware(middleware.ActionUpload)))
	router.Handle("GET /videos/{id}", chain(videos.Get(), auth))
	router.Handle("PATCH /videos/{id}", chain(videos.Update(), auth, jobSeeker))
	router.Handle("DELETE /videos/{id}", chain(videos.Delete(), auth, jobSeeker))

	router.Handle("POST /resumes", chain(appHandlers.CreateResume(d.Applications), auth, jobSeeker))
	router.Handle("POST /applications", chain(appHandlers.Apply(d.Applications), auth, jobSeeker))

	access := accessHandlers.NewAccessHandlers(d.Access, d.Streams)
	router.Handle("POST /videos/{id}/access", chain(access.RequestAccess(), auth, employer, d.RateLimits.RateLimitMiddleware(middleware.ActionAccess)))
	router.Handle("GET /videos/{id}/views", chain(access.ViewStatus(), auth, employer))
	// The token in the query is the credential here.
	router.HandleFunc("GET /videos/{id}/stream", access.Stream())

	return router
}

// NewOperator serves operator endpoints. It has no authentication and is
// meant for a listener reachable only from inside the deployment.
func NewOperator(redisClient *redis.Client) http.Handler {
	router := http.NewServeMux()
	router.HandleFunc("GET /healthz", healthz)
	router.HandleFunc("GET /admin/cache/stats", cache.GetCacheStats(redisClient))
	return router
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}
