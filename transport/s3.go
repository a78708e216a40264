package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/halide-io/sluice/types"
	"github.com/halide-io/sluice/wire"
)

// S3Config holds configuration for the S3 connector.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ParseS3Path parses a path in format "bucket/prefix" or "bucket".
func ParseS3Path(p string) (bucket, prefix string) {
	parts := strings.SplitN(p, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// PutObjectAPI is the slice of the S3 client this connector uses.
// Tests substitute a recording implementation.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 stores each frame as one object. Ordering is carried by the key,
// not by delivery: frames land under
// <prefix>/<fileID>/frames/<8-digit counter>.frame and the open frame
// under <prefix>/<fileID>/open.frame, so the receiver lists keys to
// reassemble.
type S3 struct {
	client   PutObjectAPI
	config   S3Config
	fileKey  string
	nextObj  uint64
	released bool
}

// NewS3 creates an S3 connector using the AWS SDK default credential
// chain (env vars, shared config, IAM role).
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return NewS3WithClient(s3.NewFromConfig(awsCfg, s3Opts...), cfg)
}

// NewS3WithClient creates an S3 connector with a caller-supplied client.
func NewS3WithClient(client PutObjectAPI, cfg S3Config) (*S3, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &S3{client: client, config: cfg}, nil
}

// S3Factory returns a Factory that builds the connector on first use.
func S3Factory(cfg S3Config) Factory {
	return func() (Connector, error) {
		return NewS3(context.Background(), cfg)
	}
}

// Open writes the open frame and resets the per-file object counter.
func (c *S3) Open(ctx context.Context, open *types.FileOpenFrame) error {
	if c.released {
		return ErrReleased
	}

	c.fileKey = fileKey(open.FileID)
	c.nextObj = 0

	frame, err := wire.EncodeOpen(open)
	if err != nil {
		return err
	}

	key := path.Join(c.config.Prefix, c.fileKey, "open.frame")
	return c.put(ctx, key, frame)
}

// Send stores one encoded frame as the next object for the open file.
func (c *S3) Send(ctx context.Context, frame []byte) error {
	if c.released {
		return ErrReleased
	}
	if c.fileKey == "" {
		return errors.New("s3: send before open")
	}

	key := path.Join(c.config.Prefix, c.fileKey, "frames", fmt.Sprintf("%08d.frame", c.nextObj))
	if err := c.put(ctx, key, frame); err != nil {
		return err
	}
	c.nextObj++
	return nil
}

// Release drops the client reference. S3 holds no persistent connection.
func (c *S3) Release() error {
	c.released = true
	c.client = nil
	return nil
}

func (c *S3) put(ctx context.Context, key string, body []byte) error {
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &c.config.Bucket,
		Key:    &key,
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("s3: put %s: %w", key, err)
	}
	return nil
}

// fileKey maps a file identifier onto a key segment. Leading slashes
// are dropped so absolute paths don't produce empty path elements.
func fileKey(fileID string) string {
	return strings.TrimLeft(fileID, "/")
}

// Verify S3 implements Connector.
var _ Connector = (*S3)(nil)
