// Package objectstore wraps the S3-compatible bucket the coordinator stages
// canonical image payloads in between enqueue and worker acceptance. A
// missing key on Get is reported as (nil, nil); every other I/O failure is
// returned to the caller as a plain error, uninterpreted — callers decide
// what that means for a request.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/pamaxie/Pamaxie.Scan-API/internal/logging"
	"github.com/pamaxie/Pamaxie.Scan-API/internal/metrics"
)

// Config configures the S3 client against an S3-compatible endpoint.
// Credentials are read once at adapter construction time.
type Config struct {
	AccessKeyID string
	SecretKey   string
	Bucket      string
	Endpoint    string
	Region      string
}

// Store puts, gets, and deletes staged payloads by key.
type Store struct {
	client *s3.Client
	bucket string
}

// New builds a Store from Config, resolving an AWS SDK config with static
// credentials and a custom endpoint (so the same code serves AWS S3 or any
// S3-compatible backend behind S3Url).
func New(ctx context.Context, cfg Config) (*Store, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("objectstore: loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// Put uploads b under key with the given content type. Any failure is
// logged and surfaced as a plain error; callers map that to their own
// error taxonomy.
func (s *Store) Put(ctx context.Context, key string, b []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(b),
		ContentType: aws.String(contentType),
	})
	metrics.RecordObjectStoreOperation("put", err)
	if err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("objectstore: put failed")
		return fmt.Errorf("objectstore: put %q: %w", key, err)
	}
	return nil
}

// Get retrieves the object at key. It returns (nil, nil) if the key does
// not exist — a "not found", not an error, so callers that treat a miss
// as fail-open don't need to inspect the error.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			metrics.RecordObjectStoreOperation("get", nil)
			return nil, nil
		}
		metrics.RecordObjectStoreOperation("get", err)
		logging.Warn().Err(err).Str("key", key).Msg("objectstore: get failed")
		return nil, fmt.Errorf("objectstore: get %q: %w", key, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		metrics.RecordObjectStoreOperation("get", err)
		return nil, fmt.Errorf("objectstore: read %q: %w", key, err)
	}
	metrics.RecordObjectStoreOperation("get", nil)
	return b, nil
}

// Delete removes the object at key. Deleting an already-absent key is not
// an error — both staging cleanup paths (worker accept, enqueue rollback)
// call this best-effort.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		metrics.RecordObjectStoreOperation("delete", err)
		logging.Warn().Err(err).Str("key", key).Msg("objectstore: delete failed")
		return fmt.Errorf("objectstore: delete %q: %w", key, err)
	}
	metrics.RecordObjectStoreOperation("delete", nil)
	return nil
}

func isNotFound(err error) bool {
	var nf *types.NoSuchKey
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
