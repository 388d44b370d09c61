// Package archive uploads finished result files to S3-compatible storage.
package archive

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/daryltucker/crowdcount-bench/internal/config"
	"github.com/daryltucker/crowdcount-bench/internal/output"
)

// ObjectStore is the subset of *minio.Client the archiver uses.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

var _ ObjectStore = (*minio.Client)(nil)

// Archiver copies result files into Bucket under Prefix/<run id>/.
type Archiver struct {
	Store  ObjectStore
	Bucket string
	Prefix string
	Retry  output.RetryPolicy
}

// New connects to the archive described by cfg.
func New(cfg config.ArchiveConfig, retry output.RetryPolicy) (*Archiver, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	return &Archiver{Store: client, Bucket: cfg.Bucket, Prefix: cfg.Prefix, Retry: retry}, nil
}

// ObjectName is the key a result file is stored under.
func (a *Archiver) ObjectName(runID, file string) string {
	return path.Join(a.Prefix, runID, filepath.Base(file))
}

// Upload stores every existing file of the run. Files that were never
// written (sink disabled) are skipped. It returns the object keys written.
func (a *Archiver) Upload(ctx context.Context, runID string, files ...string) ([]string, error) {
	if a.Store == nil {
		return nil, fmt.Errorf("s3 client not initialized")
	}

	exists, err := a.Store.BucketExists(ctx, a.Bucket)
	if err != nil {
		return nil, fmt.Errorf("s3 bucket exists: %w", err)
	}
	if !exists {
		if err := a.Store.MakeBucket(ctx, a.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("s3 make bucket %s: %w", a.Bucket, err)
		}
	}

	var keys []string
	for _, f := range files {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			continue
		}

		key := a.ObjectName(runID, f)
		opts := minio.PutObjectOptions{ContentType: contentType(f)}
		err := a.Retry.Do(ctx, "archive "+key, func() error {
			_, err := a.Store.FPutObject(ctx, a.Bucket, key, f, opts)
			return err
		})
		if err != nil {
			return keys, fmt.Errorf("s3 put object: %w", err)
		}
		output.Logger.Info("Archived result file", "bucket", a.Bucket, "key", key)
		keys = append(keys, key)
	}
	return keys, nil
}

func contentType(file string) string {
	switch filepath.Ext(file) {
	case ".jsonl":
		return "application/x-ndjson"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if t := mime.TypeByExtension(filepath.Ext(file)); t != "" {
		return t
	}
	return "application/octet-stream"
}
