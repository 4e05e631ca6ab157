package gcp

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/careerlens/careerlens-backend/internal/pkg/logger"
)

// BucketService reads and writes export blobs in the single GCS bucket used
// for uploads. Raw exports land under the caller's key; converted JSON is
// archived next to them.
type BucketService interface {
	DownloadFile(ctx context.Context, key string) (io.ReadCloser, error)
	UploadFile(ctx context.Context, key string, file io.Reader) error
	DeleteFile(ctx context.Context, key string) error
	Close() error
}

type bucketService struct {
	log           *logger.Logger
	storageClient *storage.Client
	bucketName    string
}

func NewBucketService(log *logger.Logger) (BucketService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	bucketName := strings.TrimSpace(os.Getenv("GCS_EXPORT_BUCKET"))
	if bucketName == "" {
		return nil, fmt.Errorf("missing GCS_EXPORT_BUCKET")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var opts []option.ClientOption
	if creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init GCS client: %w", err)
	}

	return &bucketService{
		log:           log.With("service", "GcsBucketService"),
		storageClient: client,
		bucketName:    bucketName,
	}, nil
}

func (bs *bucketService) DownloadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("object key required")
	}
	r, err := bs.storageClient.Bucket(bs.bucketName).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open GCS object %q in bucket %q: %w", key, bs.bucketName, err)
	}
	return r, nil
}

func (bs *bucketService) UploadFile(ctx context.Context, key string, file io.Reader) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("object key required")
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := bs.storageClient.Bucket(bs.bucketName).Object(key).NewWriter(ctx)
	if strings.HasSuffix(strings.ToLower(key), ".json") {
		w.ContentType = "application/json"
	} else if strings.HasSuffix(strings.ToLower(key), ".html") {
		w.ContentType = "text/html"
	}
	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return fmt.Errorf("write GCS object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize GCS object %q: %w", key, err)
	}
	return nil
}

func (bs *bucketService) DeleteFile(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("object key required")
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := bs.storageClient.Bucket(bs.bucketName).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("delete GCS object %q in bucket %q: %w", key, bs.bucketName, err)
	}
	return nil
}

func (bs *bucketService) Close() error {
	return bs.storageClient.Close()
}
