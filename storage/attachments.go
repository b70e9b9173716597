// Package storage presigns attachment uploads against S3 or an S3-compatible store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/upb/todo-backend/config"
)

const defaultExpiration = 300 * time.Second

// AttachmentSigner issues upload URLs for todo attachments
type AttachmentSigner interface {
	// PresignedUploadURL returns a time-limited URL that accepts a PUT of the object named key
	PresignedUploadURL(ctx context.Context, key string) (string, error)
}

// S3AttachmentSigner presigns PutObject requests for a single bucket
type S3AttachmentSigner struct {
	presigner  *s3.PresignClient
	bucket     string
	expiration time.Duration
	logger     *zap.Logger
}

// NewS3AttachmentSigner loads AWS credentials from the default chain and builds a signer
func NewS3AttachmentSigner(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*S3AttachmentSigner, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return NewS3AttachmentSignerFromConfig(awsCfg, cfg, logger)
}

// NewS3AttachmentSignerFromConfig builds a signer from an explicit aws.Config
func NewS3AttachmentSignerFromConfig(awsCfg aws.Config, cfg config.StorageConfig, logger *zap.Logger) (*S3AttachmentSigner, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("attachment bucket is required")
	}
	if cfg.SignedURLExpiration <= 0 {
		cfg.SignedURLExpiration = defaultExpiration
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3AttachmentSigner{
		presigner:  s3.NewPresignClient(client),
		bucket:     cfg.Bucket,
		expiration: cfg.SignedURLExpiration,
		logger:     logger,
	}, nil
}

// PresignedUploadURL implements AttachmentSigner
func (s *S3AttachmentSigner) PresignedUploadURL(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiration))
	if err != nil {
		return "", fmt.Errorf("failed to presign upload for %s: %w", key, err)
	}

	s.logger.Debug("presigned attachment upload",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Duration("expires_in", s.expiration),
	)
	return req.URL, nil
}
