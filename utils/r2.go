// utils/r2.go
package utils

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"strings"

	"doin-challenge/config"
	"doin-challenge/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// R2Storage uploads objects to a Cloudflare R2 bucket through the S3 API.
type R2Storage struct {
	client     *s3.Client
	bucket     string
	cdnBaseURL string
}

func NewR2Storage(ctx context.Context, cfg config.R2Config) (*R2Storage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	cdn := strings.TrimRight(cfg.CDNBaseURL, "/")
	if cdn == "" {
		cdn = endpoint + "/" + cfg.Bucket
	}
	return &R2Storage{client: client, bucket: cfg.Bucket, cdnBaseURL: cdn}, nil
}

// PublicURL returns the CDN URL for key.
func (r *R2Storage) PublicURL(key string) string {
	return r.cdnBaseURL + "/" + strings.TrimLeft(key, "/")
}

// UploadObject puts body under key and returns its public URL.
func (r *R2Storage) UploadObject(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to R2: %w", err)
	}
	logger.Info("[R2] ☁️ object uploaded", zap.String("key", key), zap.Int("bytes", len(body)))
	return r.PublicURL(key), nil
}

// UploadFormFile uploads a multipart file to R2 and returns the public URL.
// key is the object key (e.g., "challenges/<id>/cover.png").
func (r *R2Storage) UploadFormFile(ctx context.Context, fileHeader *multipart.FileHeader, key string) (string, error) {
	body, contentType, err := ReadFormFile(fileHeader)
	if err != nil {
		return "", err
	}
	return r.UploadObject(ctx, key, body, contentType)
}
