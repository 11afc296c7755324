// Package archive keeps a copy of every raw upload in S3 compatible object
// storage before it is processed.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"alkalytics/internal/config"
	apperrors "alkalytics/internal/errors"
	"alkalytics/internal/files"
)

// Archiver stores decoded uploads.
type Archiver interface {
	Archive(ctx context.Context, requestID string, f files.File) error
}

// Nop discards everything
type Nop struct{}

// Archive implements Archiver
func (Nop) Archive(context.Context, string, files.File) error { return nil }

// S3 archives uploads under <prefix>/<yyyy>/<mm>/<dd>/<requestID>/<name>.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the S3 archiver
type Option func(*s3.Options)

// New returns an S3 archiver when archiving is enabled and Nop otherwise.
func New(ctx context.Context, cfg config.ArchiveConfig, logger *slog.Logger, opts ...Option) (Archiver, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	return NewS3(ctx, cfg, logger, opts...)
}

// NewS3 builds the S3 client from cfg. A custom endpoint (MinIO, localstack)
// is used verbatim.
func NewS3(ctx context.Context, cfg config.ArchiveConfig, logger *slog.Logger, opts ...Option) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, apperrors.NewConfigError("archive bucket is required", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to load AWS configuration", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		for _, opt := range opts {
			opt(o)
		}
	})

	return &S3{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger.With(slog.String("component", "archive")),
		now:    time.Now,
	}, nil
}

// Key returns the object key for a file uploaded at t.
func (a *S3) Key(requestID, name string, t time.Time) string {
	t = t.UTC()
	return path.Join(a.prefix,
		fmt.Sprintf("%04d", t.Year()),
		fmt.Sprintf("%02d", int(t.Month())),
		fmt.Sprintf("%02d", t.Day()),
		requestID,
		name)
}

// Archive uploads the file.
func (a *S3) Archive(ctx context.Context, requestID string, f files.File) error {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return apperrors.NewStorageError("failed to read upload for archiving", err)
	}
	key := a.Key(requestID, f.Name, a.now())

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return apperrors.NewStorageError("failed to archive upload", err).WithContext("key", key)
	}

	a.logger.DebugContext(ctx, "Upload archived",
		slog.String("bucket", a.bucket),
		slog.String("key", key),
		slog.Int("bytes", len(data)))
	return nil
}
