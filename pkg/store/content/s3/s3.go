// Package s3 implements S3-based content storage.
//
// Each ContentID becomes one object key (optionally prefixed). WOPI writes
// whole documents, so uploads are single PutObject calls.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dittowopi/pkg/store/content"
)

// S3ContentStore implements content.ContentStore on an S3 bucket.
type S3ContentStore struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	metrics   S3Metrics
}

// S3ContentStoreConfig contains configuration for the S3 content store.
type S3ContentStoreConfig struct {
	// Client is the configured S3 client.
	Client *s3.Client

	// Bucket is the S3 bucket name.
	Bucket string

	// KeyPrefix is prepended to every object key (e.g. "wopi/").
	KeyPrefix string

	// Metrics is optional.
	Metrics S3Metrics
}

// ClientOptions describes how to build an S3 client from configuration.
type ClientOptions struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string

	// ForcePathStyle is required for Localstack and MinIO.
	ForcePathStyle bool
}

// NewClient builds an S3 client. Static credentials are used when both
// keys are set; otherwise the default AWS credential chain applies.
func NewClient(ctx context.Context, opts ClientOptions) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.ForcePathStyle
	}), nil
}

// NewS3ContentStore verifies the bucket is reachable and returns the store.
func NewS3ContentStore(ctx context.Context, cfg S3ContentStoreConfig) (*S3ContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	return &S3ContentStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		metrics:   metrics,
	}, nil
}

func (s *S3ContentStore) getObjectKey(id content.ContentID) string {
	return s.keyPrefix + string(id)
}

func (s *S3ContentStore) ReadContent(ctx context.Context, id content.ContentID) (rc io.ReadCloser, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation("ReadContent", time.Since(start), err)
	}()

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getObjectKey(id)),
	})
	if err != nil {
		if isNotFound(err) {
			err = fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
			return nil, err
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}

	return &objectBody{ReadCloser: result.Body, metrics: s.metrics}, nil
}

func (s *S3ContentStore) GetContentSize(ctx context.Context, id content.ContentID) (size uint64, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation("GetContentSize", time.Since(start), err)
	}()

	if err = ctx.Err(); err != nil {
		return 0, err
	}

	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getObjectKey(id)),
	})
	if err != nil {
		if isNotFound(err) {
			err = fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
			return 0, err
		}
		return 0, fmt.Errorf("failed to head object in S3: %w", err)
	}

	return uint64(aws.ToInt64(result.ContentLength)), nil
}

func (s *S3ContentStore) ContentExists(ctx context.Context, id content.ContentID) (bool, error) {
	_, err := s.GetContentSize(ctx, id)
	if errors.Is(err, content.ErrContentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *S3ContentStore) WriteContent(ctx context.Context, id content.ContentID, data []byte) (err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation("WriteContent", time.Since(start), err)
		if err == nil {
			s.metrics.RecordBytes("write", int64(len(data)))
		}
	}()

	if err = ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		err = content.ErrInvalidContentID
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.getObjectKey(id)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to put object to S3: %w", err)
	}
	return nil
}

func (s *S3ContentStore) Delete(ctx context.Context, id content.ContentID) (err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation("Delete", time.Since(start), err)
	}()

	if err = ctx.Err(); err != nil {
		return err
	}

	// DeleteObject is idempotent in S3.
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getObjectKey(id)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}

// Close is a no-op; the S3 client holds no resources that need releasing.
func (s *S3ContentStore) Close() error {
	return nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
