// Package aws implements the S3 storage backend for bucketlens.
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	apperrors "github.com/yairfalse/bucketlens/internal/errors"
	"github.com/yairfalse/bucketlens/internal/resilience"
)

// Plugin implements plugin.Backend against S3.
type Plugin struct {
	region string

	// AWS clients (interfaces for testability)
	s3Client  S3API
	stsClient STSAPI

	resilience resilience.Config
}

// Config holds AWS backend configuration.
type Config struct {
	Region  string
	Profile string

	// Static credentials. When empty the default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// RequireStaticCredentials turns missing static credentials into a configuration error.
	RequireStaticCredentials bool

	// Endpoint overrides the S3 endpoint (MinIO, LocalStack). Implies path-style addressing.
	Endpoint string

	Resilience resilience.Config
}

// LoadConfig builds the shared aws.Config. SDK-level retries are disabled;
// retries happen at the call site through resilience.Caller.
func LoadConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	if cfg.Region == "" {
		return aws.Config{}, apperrors.Configurationf("aws config", "region is required")
	}

	hasStatic := cfg.AccessKeyID != "" && cfg.SecretAccessKey != ""
	if cfg.RequireStaticCredentials && !hasStatic {
		return aws.Config{}, apperrors.Configurationf("aws config", "access key and secret key are required")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithRetryMaxAttempts(1),
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if hasStatic {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, apperrors.Configuration("load aws config", err)
	}
	return awsCfg, nil
}

// New creates the S3 backend.
func New(ctx context.Context, cfg Config) (*Plugin, error) {
	awsCfg, err := LoadConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(awsCfg, cfg), nil
}

// NewFromConfig creates the S3 backend from an existing aws.Config.
func NewFromConfig(awsCfg aws.Config, cfg Config) *Plugin {
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Plugin{
		region:     awsCfg.Region,
		s3Client:   s3Client,
		stsClient:  sts.NewFromConfig(awsCfg),
		resilience: cfg.Resilience,
	}
}

// Name returns the backend identifier.
func (p *Plugin) Name() string {
	return "aws"
}

// Region returns the configured region.
func (p *Plugin) Region() string {
	return p.region
}

// call runs one SDK request with per-attempt timeout, classification and retry.
func call[T any](ctx context.Context, p *Plugin, op, bucket string, fn func(context.Context) (T, error)) (T, error) {
	caller := resilience.NewCaller[T](p.resilience)
	return caller.Do(ctx, op, func(ctx context.Context) (T, error) {
		v, err := fn(ctx)
		if err != nil {
			return v, classify(op, bucket, err)
		}
		return v, nil
	})
}
