// utils/r2.go
package utils

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"partnership-sync/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter is the slice of the S3 API the archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2PageArchive stores raw marketplace pages in an R2 (S3-compatible) bucket
// so normalizer problems can be replayed against the exact payload.
type R2PageArchive struct {
	client ObjectPutter
	bucket string
	now    func() time.Time
}

// NewR2PageArchive builds the archive from configuration.
func NewR2PageArchive(ctx context.Context, cfg config.ArchiveConfig) (*R2PageArchive, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return NewPageArchive(client, cfg.Bucket), nil
}

// NewPageArchive wraps an existing S3 client.
func NewPageArchive(client ObjectPutter, bucket string) *R2PageArchive {
	return &R2PageArchive{client: client, bucket: bucket, now: time.Now}
}

// PageKey is the object key of one archived page:
// raw/<entity>/<yyyy-mm-dd>/<run id>/page-000001.json
func PageKey(entity, runID string, page int, at time.Time) string {
	return path.Join("raw", entity, at.UTC().Format(time.DateOnly), runID, fmt.Sprintf("page-%06d.json", page))
}

// ArchivePage uploads one raw page body.
func (a *R2PageArchive) ArchivePage(ctx context.Context, entity, runID string, page int, body []byte) error {
	key := PageKey(entity, runID, page, a.now())
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to R2: %w", key, err)
	}
	return nil
}
