// Package s3 implements S3-backed blob storage for SkyVault.
//
// Works with Amazon S3 and S3-compatible services (MinIO, Localstack) via a
// custom endpoint with path-style addressing.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/skyvault/skyvault/pkg/blob"
)

// S3BlobStore implements blob.BlobStore on top of an S3 bucket.
//
// Key Design:
//   - Object key = keyPrefix + blob key
//   - Blob keys are random UUIDs generated by the engines, so objects are
//     uniformly distributed and never collide across tenants
//
// S3 Characteristics:
//   - Writes are full-object PutObject calls (blobs are immutable once
//     written; re-uploads get a fresh key)
//   - Reads stream the object body straight through to the caller
//   - DeleteObject on a missing key succeeds, matching the BlobStore
//     contract that deleting a missing blob is not an error
type S3BlobStore struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// Config contains configuration for the S3 blob store.
type Config struct {
	// Client is the configured S3 client
	Client *s3.Client

	// Bucket is the S3 bucket name. Must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys
	// Example: "skyvault/blobs/" results in keys like "skyvault/blobs/abc123"
	KeyPrefix string
}

// New creates an S3-backed blob store and verifies bucket access.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - cfg: S3 configuration (client and bucket are required)
//
// Returns:
//   - *S3BlobStore: Initialized store
//   - error: Returns error if the bucket is not accessible or config is
//     incomplete
func New(ctx context.Context, cfg Config) (*S3BlobStore, error) {
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

	return &S3BlobStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

func (s *S3BlobStore) objectKey(key string) string {
	return s.keyPrefix + key
}

// Put uploads the content with a single PutObject call.
func (s *S3BlobStore) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   r,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to write blob %s to S3: %w", key, err)
	}

	return nil
}

// Get streams the object body. The caller must close the returned reader.
func (s *S3BlobStore) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return nil, "", fmt.Errorf("blob %s: %w", key, blob.ErrNotFound)
		}
		return nil, "", fmt.Errorf("failed to read blob %s from S3: %w", key, err)
	}

	contentType := ""
	if out.ContentType != nil {
		contentType = *out.ContentType
	}

	return out.Body, contentType, nil
}

// Delete removes the object. S3 treats deleting a missing key as success,
// which matches the BlobStore contract.
func (s *S3BlobStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete blob %s from S3: %w", key, err)
	}

	return nil
}

// Exists checks for the object with a HeadObject call.
func (s *S3BlobStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check blob %s in S3: %w", key, err)
	}

	return true, nil
}
