// Package access enforces the per-application view quota on private résumé
// videos and issues and validates the short-lived tokens that authorize
// media fetches.
package access

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/hirelens/resume-video-service/internal/config"
	"github.com/hirelens/resume-video-service/internal/storage"
	"github.com/hirelens/resume-video-service/internal/types"
)

// Store is the slice of storage.Storage the access subsystem reads and writes.
type Store interface {
	GetVideo(ctx context.Context, id string) (types.Video, error)
	GetApplication(ctx context.Context, id string) (types.Application, error)
	storage.ViewStore
}

// TokenStore holds token payloads with per-entry expiry. Get returns
// cache.ErrMiss for absent keys.
type TokenStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

type Timeouts struct {
	Store time.Duration
	Cache time.Duration
}

type Options struct {
	MaxViews      int
	TokenTTL      time.Duration
	StreamBaseURL string
	Timeouts      Timeouts
	Now           func() time.Time
	Logger        *slog.Logger
}

// OptionsFromConfig maps the service configuration onto Options.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		MaxViews:      cfg.Access.MaxViews,
		TokenTTL:      cfg.Access.TokenTTL,
		StreamBaseURL: cfg.Access.StreamBaseURL,
		Timeouts: Timeouts{
			Store: cfg.Timeouts.Store,
			Cache: cfg.Timeouts.Cache,
		},
		Logger: logger,
	}
}

// Service is the surface the rest of the application uses.
type Service struct {
	policy    *Policy
	issuer    *Issuer
	validator *Validator
}

func NewService(store Store, tokens TokenStore, opts Options) (*Service, error) {
	if opts.MaxViews <= 0 {
		return nil, fmt.Errorf("max views must be positive, got %d", opts.MaxViews)
	}
	if opts.TokenTTL <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", opts.TokenTTL)
	}
	streamURL, err := url.Parse(opts.StreamBaseURL)
	if err != nil || streamURL.Scheme == "" || streamURL.Host == "" {
		return nil, fmt.Errorf("invalid stream base url %q", opts.StreamBaseURL)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("component", "AccessService")

	policy := NewPolicy(store, opts.MaxViews, opts.Timeouts.Store)

	return &Service{
		policy: policy,
		issuer: &Issuer{
			store:     store,
			tokens:    tokens,
			policy:    policy,
			ttl:       opts.TokenTTL,
			streamURL: streamURL,
			timeouts:  opts.Timeouts,
			now:       opts.Now,
			logger:    logger,
		},
		validator: &Validator{
			tokens:  tokens,
			timeout: opts.Timeouts.Cache,
			now:     opts.Now,
			logger:  logger,
		},
	}, nil
}

// RequestAccess consumes one view of videoID for the employer on
// applicationID and returns a stream URL valid for the token TTL.
func (s *Service) RequestAccess(ctx context.Context, videoID, applicationID, employerID string) (types.AccessGrant, error) {
	return s.issuer.IssueAccessURL(ctx, videoID, applicationID, employerID)
}

// ValidateToken returns the token's payload while it is live.
func (s *Service) ValidateToken(ctx context.Context, token string) (types.AccessToken, error) {
	return s.validator.Validate(ctx, token)
}

// ViewStatus reports the remaining quota without consuming a view.
func (s *Service) ViewStatus(ctx context.Context, videoID, applicationID, employerID string) (types.LimitStatus, error) {
	if _, _, err := s.issuer.authorize(ctx, videoID, applicationID, employerID); err != nil {
		return types.LimitStatus{}, err
	}
	return s.policy.CheckLimit(ctx, videoID, applicationID, employerID)
}
