// Package blob stores submission files in a GCS bucket, keyed by tenant,
// tracker and attempt so uploads from different learners never collide.
package blob

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/learnsphere/learnsphere-backend/internal/platform/envutil"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

type BucketService interface {
	UploadFile(ctx context.Context, key string, file io.Reader) error
	DownloadFile(ctx context.Context, key string) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, key string) error
	SignedURL(key string, ttl time.Duration) (string, error)
}

type bucketService struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
}

func NewBucketService(ctx context.Context, log *logger.Logger) (BucketService, error) {
	bucket := envutil.String("SUBMISSION_GCS_BUCKET_NAME", "")
	if bucket == "" {
		return nil, fmt.Errorf("missing env var SUBMISSION_GCS_BUCKET_NAME")
	}
	var opts []option.ClientOption
	if creds := envutil.String("GOOGLE_APPLICATION_CREDENTIALS_JSON", ""); creds != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &bucketService{
		log:    log.With("service", "BucketService"),
		client: client,
		bucket: bucket,
	}, nil
}

// SubmissionKey builds the canonical object key for one uploaded file.
func SubmissionKey(tenant string, trackerID string, attempt int, filename string) string {
	return fmt.Sprintf("%s/submissions/%s/%d/%s", tenant, trackerID, attempt, filename)
}

func (s *bucketService) UploadFile(ctx context.Context, key string, file io.Reader) error {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close object %q: %w", key, err)
	}
	s.log.Debug("uploaded object", "key", key)
	return nil
}

func (s *bucketService) DownloadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object %q: %w", key, err)
	}
	return r, nil
}

func (s *bucketService) DeleteFile(ctx context.Context, key string) error {
	if err := s.client.Bucket(s.bucket).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("delete object %q: %w", key, err)
	}
	return nil
}

func (s *bucketService) SignedURL(key string, ttl time.Duration) (string, error) {
	url, err := s.client.Bucket(s.bucket).SignedURL(key, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(ttl),
		Scheme:  storage.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("sign url for %q: %w", key, err)
	}
	return url, nil
}
