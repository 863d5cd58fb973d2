// Package attachments issues presigned S3 URLs for post attachments. Clients
// upload and download the objects directly; the moments service only stores
// the object key in the post.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/moments/internal/common"
)

// Config describes the bucket and credentials.
type Config struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	TTL          time.Duration
}

// Enabled reports whether enough is configured to presign.
func (c Config) Enabled() bool {
	return c.Bucket != "" && c.Region != ""
}

// seams for tests
var (
	loadDefaultAWSConfig  = awsconfig.LoadDefaultConfig
	newS3ClientFromConfig = s3.NewFromConfig
)

type Presigner struct {
	client *s3.PresignClient
	bucket string
	ttl    time.Duration
	now    func() time.Time
}

// New builds a presigner. It returns common.ErrAttachmentsDisabled when
// cfg has no bucket or region.
func New(ctx context.Context, cfg Config) (*Presigner, error) {
	if !cfg.Enabled() {
		return nil, common.ErrAttachmentsDisabled
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Presigner{
		client: s3.NewPresignClient(client),
		bucket: cfg.Bucket,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// NewKey returns a fresh object key of the form moments/yyyy/mm/dd/<uuid>.
func (p *Presigner) NewKey() string {
	d := p.now().UTC()
	return fmt.Sprintf("moments/%04d/%02d/%02d/%s", d.Year(), d.Month(), d.Day(), uuid.New())
}

// PresignUpload returns a new object key and a PUT URL for it.
func (p *Presigner) PresignUpload(ctx context.Context) (string, string, error) {
	key := p.NewKey()
	req, err := p.client.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return "", "", fmt.Errorf("presign put: %w", err)
	}
	return key, req.URL, nil
}

// PresignDownload returns a GET URL for key.
func (p *Presigner) PresignDownload(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New("empty key")
	}
	req, err := p.client.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}
