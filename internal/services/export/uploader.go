package export

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// S3Config configures the optional object-store export target. An empty
// Bucket disables exports. Endpoint supports S3-compatible stores
// (Cloudflare R2, MinIO); leave it empty for AWS.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
}

// Uploader pushes export artifacts to an S3-compatible bucket
type Uploader struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
	log      zerolog.Logger
}

// NewUploader builds the S3 client from the default credential chain
func NewUploader(ctx context.Context, cfg S3Config, log zerolog.Logger) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket not configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Uploader{
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		log:      log.With().Str("service", "s3_uploader").Logger(),
	}, nil
}

// Upload streams one object to the bucket
func (u *Uploader) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	fullKey := key
	if u.prefix != "" {
		fullKey = path.Join(u.prefix, key)
	}

	_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(fullKey),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", fullKey, err)
	}

	u.log.Debug().Str("key", fullKey).Msg("Object uploaded")
	return nil
}
