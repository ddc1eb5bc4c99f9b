// Package s3 provides an S3-backed chunk store on aws-sdk-go-v2. It works
// against AWS as well as S3-compatible services (MinIO, Localstack) via a
// custom endpoint and path-style addressing.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"

	"github.com/rouse2617/NimbusStore/pkg/chunkstore"
)

// Config holds configuration for the S3 chunk store.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string

	// Region is the AWS region (optional, SDK default if empty).
	Region string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string

	// KeyPrefix is prepended to all chunk keys (e.g. "chunks/").
	KeyPrefix string

	// AccessKey and SecretKey configure static credentials. When empty the
	// SDK default credential chain applies.
	AccessKey string
	SecretKey string

	// ForcePathStyle forces path-style addressing (required for MinIO).
	ForcePathStyle bool

	// BatchConcurrency bounds parallel object fetches in BatchGet.
	// Default: 8.
	BatchConcurrency int
}

// Store is an S3-backed chunkstore.Store.
type Store struct {
	client      *awss3.Client
	bucket      string
	keyPrefix   string
	concurrency int
	mu          sync.RWMutex
	closed      bool
}

// New creates an S3 chunk store with an existing client.
func New(client *awss3.Client, cfg Config) *Store {
	concurrency := cfg.BatchConcurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Store{
		client:      client,
		bucket:      cfg.Bucket,
		keyPrefix:   cfg.KeyPrefix,
		concurrency: concurrency,
	}
}

// NewFromConfig creates an S3 chunk store by building a client from cfg.
func NewFromConfig(ctx context.Context, cfg Config) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*awss3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.UsePathStyle = true
		})
	}

	return New(awss3.NewFromConfig(awsCfg, s3Opts...), cfg), nil
}

func (s *Store) fullKey(key string) string {
	return s.keyPrefix + key
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return chunkstore.ErrStoreClosed
	}
	return nil
}

// isNotFoundError detects the SDK's assorted missing-object errors.
func isNotFoundError(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return true
	}
	return strings.Contains(err.Error(), "NoSuchKey") ||
		strings.Contains(err.Error(), "NotFound") ||
		strings.Contains(err.Error(), "404")
}

// Put writes a chunk object.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

// Get reads a whole chunk object.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	resp, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, chunkstore.ErrNotFound
		}
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3 object body: %w", err)
	}
	return data, nil
}

// GetRange reads size bytes starting at offset using an HTTP Range request.
// Ranges that start past the object's end return empty without error.
func (s *Store) GetRange(ctx context.Context, key string, offset, size uint64) ([]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}

	rangeHeader := fmt.Sprintf("bytes=%d-%d", offset, offset+size-1)
	resp, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
		Range:  aws.String(rangeHeader),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, chunkstore.ErrNotFound
		}
		// S3 answers 416 for a range entirely past the end; that is EOF,
		// not a failure.
		if strings.Contains(err.Error(), "InvalidRange") ||
			strings.Contains(err.Error(), "416") {
			return nil, nil
		}
		return nil, fmt.Errorf("s3 get object range: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3 object body: %w", err)
	}
	return data, nil
}

// Delete removes a chunk object. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		return fmt.Errorf("s3 delete object: %w", err)
	}
	return nil
}

// Exists reports whether a chunk object is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	_, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3 head object: %w", err)
	}
	return true, nil
}

// BatchGet fetches multiple objects in parallel, bounded by the configured
// concurrency. The result slice is positional with the input keys.
func (s *Store) BatchGet(ctx context.Context, keys []string) ([][]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	results := make([][]byte, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, key := range keys {
		g.Go(func() error {
			data, err := s.Get(gctx, key)
			if err != nil {
				return err
			}
			results[i] = data
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// HealthCheck verifies the bucket is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	_, err := s.client.HeadBucket(ctx, &awss3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 head bucket: %w", err)
	}
	return nil
}

// GetCapacity reports capacity. S3 has no meaningful bound, so the store
// advertises unlimited space.
func (s *Store) GetCapacity(ctx context.Context) (chunkstore.Capacity, error) {
	if err := s.checkOpen(); err != nil {
		return chunkstore.Capacity{}, err
	}
	return chunkstore.Capacity{
		Total:     ^uint64(0),
		Used:      0,
		Available: ^uint64(0),
	}, nil
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
