package miniohost

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hirelens/resume-video-service/internal/config"
	"github.com/hirelens/resume-video-service/internal/types/media"
)

// Provider stores résumé videos in a MinIO bucket.
type Provider struct {
	client     *minio.Client
	bucketName string
	useSSL     bool
}

// New creates a MinIO-backed provider and makes sure the bucket exists.
func New(ctx context.Context, cfg config.MinIO) (*Provider, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	p := &Provider{
		client:     client,
		bucketName: cfg.BucketName,
		useSSL:     cfg.UseSSL,
	}

	if err := p.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return p, nil
}

// ensureBucket creates the bucket if it doesn't exist
func (p *Provider) ensureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		err = p.client.MakeBucket(ctx, p.bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// ObjectKey builds a unique key for ownerID's video of the given content type.
func ObjectKey(ownerID, contentType string) string {
	var ext string
	if extensions, err := mime.ExtensionsByType(contentType); err == nil && len(extensions) > 0 {
		ext = extensions[0]
	} else {
		switch contentType {
		case "video/mp4":
			ext = ".mp4"
		case "video/quicktime":
			ext = ".mov"
		case "video/webm":
			ext = ".webm"
		}
	}

	return fmt.Sprintf("users/%s/videos/%s%s", ownerID, uuid.New().String(), ext)
}

func (p *Provider) objectURL(objectKey string) string {
	scheme := "http"
	if p.useSSL {
		scheme = "https"
	}

	endpoint := strings.TrimPrefix(p.client.EndpointURL().String(), scheme+"://")
	return fmt.Sprintf("%s://%s/%s/%s", scheme, endpoint, p.bucketName, objectKey)
}

func (p *Provider) Upload(ctx context.Context, in media.UploadInput) (media.Asset, error) {
	objectKey := ObjectKey(in.OwnerID, in.ContentType)

	_, err := p.client.PutObject(ctx, p.bucketName, objectKey, in.Body, in.Size, minio.PutObjectOptions{
		ContentType: in.ContentType,
		UserMetadata: map[string]string{
			"owner-id": in.OwnerID,
		},
	})
	if err != nil {
		return media.Asset{}, fmt.Errorf("put object: %w", err)
	}

	location := p.objectURL(objectKey)
	return media.Asset{
		MediaID:         objectKey,
		PlaybackURL:     location,
		StreamURL:       location,
		DurationSeconds: in.DurationSeconds,
	}, nil
}

// Delete removes the object. Removing a missing object succeeds.
func (p *Provider) Delete(ctx context.Context, mediaID string) error {
	err := p.client.RemoveObject(ctx, p.bucketName, mediaID, minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

func (p *Provider) Stat(ctx context.Context, mediaID string) (media.AssetInfo, error) {
	info, err := p.client.StatObject(ctx, p.bucketName, mediaID, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return media.AssetInfo{}, media.ErrAssetNotFound
		}
		return media.AssetInfo{}, fmt.Errorf("stat object: %w", err)
	}

	return media.AssetInfo{
		MediaID:      mediaID,
		Size:         info.Size,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}, nil
}

// PresignedStreamURL returns a GET URL for mediaID valid for ttl.
func (p *Provider) PresignedStreamURL(ctx context.Context, mediaID string, ttl time.Duration) (*url.URL, error) {
	params := url.Values{}
	params.Set("response-cache-control", "no-store")
	u, err := p.client.PresignedGetObject(ctx, p.bucketName, mediaID, ttl, params)
	if err != nil {
		return nil, fmt.Errorf("presign get object: %w", err)
	}
	return u, nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == 404
}
