package persist

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	ferrors "github.com/AGES-Pro-Mata/frontend-sub002/internal/errors"
)

// S3API is the subset of *s3.Client used by S3Storage.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Storage stores one object per filter key in an S3 bucket.
//
// Example usage:
//
//	client := persist.NewS3Client(persist.S3ClientOptions{Region: "sa-east-1"})
//	storage := persist.NewS3Storage(client, "promata-filters", "filters/")
type S3Storage struct {
	client S3API
	bucket string
	prefix string

	mu     sync.RWMutex
	closed bool
}

// NewS3Storage creates an S3-backed Storage.
//
// Parameters:
//   - client: *s3.Client from aws-sdk-go-v2, or any S3API
//   - bucket: S3 bucket name
//   - prefix: key prefix for records (e.g., "filters/")
func NewS3Storage(client S3API, bucket, prefix string) *S3Storage {
	return &S3Storage{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// S3ClientOptions configures NewS3Client.
type S3ClientOptions struct {
	Region string

	// Endpoint overrides the service endpoint (MinIO, LocalStack).
	Endpoint string

	// UsePathStyle addresses buckets as path segments, which most
	// S3-compatible servers require.
	UsePathStyle bool

	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// NewS3Client builds an *s3.Client with static credentials. When no access
// key is given, requests are sent unsigned.
func NewS3Client(opts S3ClientOptions) *s3.Client {
	o := s3.Options{
		Region:       opts.Region,
		UsePathStyle: opts.UsePathStyle,
	}
	if opts.Endpoint != "" {
		o.BaseEndpoint = aws.String(opts.Endpoint)
	}
	if opts.AccessKeyID != "" {
		creds := aws.Credentials{
			AccessKeyID:     opts.AccessKeyID,
			SecretAccessKey: opts.SecretAccessKey,
			SessionToken:    opts.SessionToken,
			Source:          "filterctl",
		}
		o.Credentials = aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return creds, nil
		})
	}
	return s3.New(o)
}

func (s *S3Storage) objectKey(key string) string {
	return s.prefix + url.PathEscape(key) + ".json"
}

func (s *S3Storage) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Save uploads the record for key.
func (s *S3Storage) Save(ctx context.Context, key string, data []byte) error {
	if s.isClosed() {
		return errClosed()
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"filter-key": key,
		},
	})
	if err != nil {
		return ferrors.New("S004").WithDetailf("s3://%s/%s", s.bucket, s.objectKey(key)).Wrap(err)
	}
	return nil
}

// Load downloads the record for key, or returns nil if there is none.
func (s *S3Storage) Load(ctx context.Context, key string) ([]byte, error) {
	if s.isClosed() {
		return nil, errClosed()
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, ferrors.New("S005").WithDetailf("s3://%s/%s", s.bucket, s.objectKey(key)).Wrap(err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, ferrors.New("S005").WithDetailf("s3://%s/%s", s.bucket, s.objectKey(key)).Wrap(err)
	}
	return data, nil
}

// Delete removes the record for key. S3 deletes are idempotent.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	if s.isClosed() {
		return errClosed()
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil && !isNotFound(err) {
		return ferrors.New("S006").WithDetailf("s3://%s/%s", s.bucket, s.objectKey(key)).Wrap(err)
	}
	return nil
}

// Close marks the storage closed.
func (s *S3Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode() == http.StatusNotFound
	}
	return false
}
