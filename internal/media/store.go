// Package media stores photos and videos in S3-compatible object storage.
// When no endpoint is configured the NoopStore is used and every operation
// reports ErrNotConfigured.
package media

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/oklog/ulid/v2"

	"github.com/hyperengineering/pitchside/internal/config"
)

var (
	// ErrNotConfigured is returned when object storage is not configured.
	ErrNotConfigured = errors.New("media storage not configured")

	// ErrObjectNotFound is returned when the bucket has no object at the key.
	ErrObjectNotFound = errors.New("media object not found")
)

// Store reads and writes media objects by bucket and key.
type Store interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	PresignedURL(ctx context.Context, bucket, key string) (url string, expiry time.Time, err error)
	Delete(ctx context.Context, bucket, key string) error
	Enabled() bool
}

// s3Client defines the minimal minio.Client operations used by S3Store.
type s3Client interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error
	PresignedGetObject(ctx context.Context, bucket, key string, expiry time.Duration) (*url.URL, error)
	RemoveObject(ctx context.Context, bucket, key string) error
}

// minioClientWrapper adapts *minio.Client to s3Client.
type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := w.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	// GetObject is lazy; a missing key surfaces on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (w *minioClientWrapper) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := w.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (w *minioClientWrapper) PresignedGetObject(ctx context.Context, bucket, key string, expiry time.Duration) (*url.URL, error) {
	return w.client.PresignedGetObject(ctx, bucket, key, expiry, nil)
}

func (w *minioClientWrapper) RemoveObject(ctx context.Context, bucket, key string) error {
	return w.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
}

// S3Store keeps media in S3-compatible storage.
type S3Store struct {
	client    s3Client
	urlExpiry time.Duration
	now       func() time.Time
}

// Get returns the object's bytes.
func (s *S3Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	data, err := s.client.GetObject(ctx, bucket, key)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, key)
		}
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Put stores data under key.
func (s *S3Store) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if err := s.client.PutObject(ctx, bucket, key, data, contentType); err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// PresignedURL returns a pre-signed GET URL for the object.
func (s *S3Store) PresignedURL(ctx context.Context, bucket, key string) (string, time.Time, error) {
	presigned, err := s.client.PresignedGetObject(ctx, bucket, key, s.urlExpiry)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate pre-signed URL: %w", err)
	}
	return presigned.String(), s.now().Add(s.urlExpiry), nil
}

// Delete removes the object. Removing a missing key is not an error.
func (s *S3Store) Delete(ctx context.Context, bucket, key string) error {
	if err := s.client.RemoveObject(ctx, bucket, key); err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("remove object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Enabled reports true.
func (s *S3Store) Enabled() bool { return true }

func isNoSuchKey(err error) bool {
	if errors.Is(err, ErrObjectNotFound) {
		return true
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return true
	}
	return false
}

// NoopStore is used when object storage is not configured.
type NoopStore struct{}

// Get returns ErrNotConfigured.
func (NoopStore) Get(context.Context, string, string) ([]byte, error) {
	return nil, ErrNotConfigured
}

// Put returns ErrNotConfigured.
func (NoopStore) Put(context.Context, string, string, []byte, string) error {
	return ErrNotConfigured
}

// PresignedURL returns ErrNotConfigured.
func (NoopStore) PresignedURL(context.Context, string, string) (string, time.Time, error) {
	return "", time.Time{}, ErrNotConfigured
}

// Delete returns ErrNotConfigured.
func (NoopStore) Delete(context.Context, string, string) error {
	return ErrNotConfigured
}

// Enabled reports false.
func (NoopStore) Enabled() bool { return false }

// NewStore creates the Store selected by configuration.
// Returns NoopStore when no endpoint is set, S3Store otherwise.
func NewStore(cfg config.MediaConfig) (Store, error) {
	if !cfg.Enabled() {
		return NoopStore{}, nil
	}

	useSSL := true
	if cfg.UseSSL != nil {
		useSSL = *cfg.UseSSL
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	return &S3Store{
		client:    &minioClientWrapper{client: client},
		urlExpiry: time.Duration(cfg.URLExpiry),
		now:       time.Now,
	}, nil
}

// NewKey returns a fresh object key that keeps the extension of filename.
func NewKey(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return ulid.MustNew(ulid.Now(), rand.Reader).String() + ext
}
