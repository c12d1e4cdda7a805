// Package s3blob stores daily outcome archives in an S3-compatible bucket
// using AWS SDK v2. Anything speaking the S3 API works as a backend: AWS
// itself, MinIO, or Cloudflare R2.
package s3blob

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// fallbackRegion is used when a custom endpoint is configured without a
// region. S3-compatible stores accept any region string but the SDK insists
// on one.
const fallbackRegion = "us-east-1"

// ClientConfig holds the connection parameters for the archive bucket.
type ClientConfig struct {
	// Endpoint overrides the AWS endpoint for S3-compatible providers,
	// e.g. "http://localhost:9000" for a local MinIO. Empty means AWS.
	Endpoint string

	// Region is the bucket region. Optional when Endpoint is set.
	Region string

	// Bucket is the archive bucket name.
	Bucket string

	// AccessKey and SecretKey are the static credentials for the bucket.
	AccessKey string
	SecretKey string

	// ForcePathStyle puts the bucket in the URL path instead of the host.
	// MinIO and most self-hosted stores need this.
	ForcePathStyle bool
}

// Client holds the SDK client and the archive bucket name. The archiver's
// writer is built on top of it.
type Client struct {
	s3     *s3.Client
	bucket string
}

// New connects to the archive bucket described by cfg.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3blob: bucket name is required")
	}

	region := cfg.Region
	if region == "" {
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("s3blob: region is required for AWS endpoints")
		}
		region = fallbackRegion
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	var opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := ensureScheme(cfg.Endpoint)
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	if cfg.ForcePathStyle {
		opts = append(opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &Client{
		s3:     s3.NewFromConfig(awsCfg, opts...),
		bucket: cfg.Bucket,
	}, nil
}

// Health verifies the archive bucket exists and the credentials can see it.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3blob: head bucket %s: %w", c.bucket, err)
	}
	return nil
}

// Close is a no-op; the SDK's HTTP client needs no teardown.
func (c *Client) Close() error {
	return nil
}

// S3 exposes the SDK client to the writer in this package.
func (c *Client) S3() *s3.Client {
	return c.s3
}

// Bucket returns the archive bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// ensureScheme prepends https:// to scheme-less endpoints. http must be
// stated explicitly, which only makes sense for a local MinIO anyway.
func ensureScheme(endpoint string) string {
	parsed, err := url.Parse(endpoint)
	if err == nil && parsed.Scheme != "" {
		return endpoint
	}
	return "https://" + endpoint
}
