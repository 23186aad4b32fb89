package s3host

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/hirelens/resume-video-service/internal/config"
	"github.com/hirelens/resume-video-service/internal/types/media"
)

// Provider stores résumé videos in an S3-compatible bucket.
type Provider struct {
	client    *s3.Client
	presigner *s3.PresignClient
	uploader  *manager.Uploader
	bucket    string
	baseURL   string
}

// New configures an S3 client targeting the provided bucket.
func New(ctx context.Context, cfg config.S3) (*Provider, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 hosting: bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSuffix(strings.TrimSpace(cfg.Endpoint), "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	baseURL := endpoint
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	} else {
		baseURL = baseURL + "/" + cfg.Bucket
	}

	return &Provider{
		client:    client,
		presigner: s3.NewPresignClient(client),
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = 5 * 1024 * 1024
			u.LeavePartsOnError = false
		}),
		bucket:  cfg.Bucket,
		baseURL: baseURL,
	}, nil
}

func (p *Provider) Upload(ctx context.Context, in media.UploadInput) (media.Asset, error) {
	key := fmt.Sprintf("users/%s/videos/%s", in.OwnerID, uuid.NewString())

	_, err := p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        in.Body,
		ContentType: aws.String(in.ContentType),
		ACL:         s3types.ObjectCannedACLPrivate,
		Metadata:    map[string]string{"owner-id": in.OwnerID},
	})
	if err != nil {
		return media.Asset{}, fmt.Errorf("s3 upload: %w", err)
	}

	location := p.baseURL + "/" + key
	return media.Asset{
		MediaID:         key,
		PlaybackURL:     location,
		StreamURL:       location,
		DurationSeconds: in.DurationSeconds,
	}, nil
}

// Delete removes the object. S3 reports success for missing keys.
func (p *Provider) Delete(ctx context.Context, mediaID string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(mediaID),
	})
	if err != nil {
		return fmt.Errorf("s3 delete object: %w", err)
	}
	return nil
}

func (p *Provider) Stat(ctx context.Context, mediaID string) (media.AssetInfo, error) {
	out, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(mediaID),
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return media.AssetInfo{}, media.ErrAssetNotFound
		}
		return media.AssetInfo{}, fmt.Errorf("s3 head object: %w", err)
	}

	info := media.AssetInfo{
		MediaID:     mediaID,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
	}
	if out.LastModified != nil {
		info.LastModified = *out.LastModified
	}
	return info, nil
}

func (p *Provider) PresignedStreamURL(ctx context.Context, mediaID string, ttl time.Duration) (*url.URL, error) {
	req, err := p.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:               aws.String(p.bucket),
		Key:                  aws.String(mediaID),
		ResponseCacheControl: aws.String("no-store"),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, fmt.Errorf("s3 presign get object: %w", err)
	}
	return url.Parse(req.URL)
}
