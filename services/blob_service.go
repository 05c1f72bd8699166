package services

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"ragviet-backend/internal/config"
	"ragviet-backend/internal/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BlobService keeps the original uploaded PDFs so users can re-open the
// source document behind an answer. Objects live under
// <bucket>/<user_id>/<filename>; when no S3-compatible endpoint is
// configured it falls back to local disk.
type BlobService struct {
	client   *minio.Client
	bucket   string
	localDir string
}

func NewBlobService(cfg *config.Config) (*BlobService, error) {
	s := &BlobService{
		bucket:   cfg.BlobBucket,
		localDir: cfg.BlobLocalDir,
	}

	if cfg.BlobEndpoint == "" {
		if err := os.MkdirAll(cfg.BlobLocalDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create blob directory: %w", err)
		}
		logger.Info("blob storage using local disk", "dir", cfg.BlobLocalDir)
		return s, nil
	}

	client, err := minio.New(cfg.BlobEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.BlobAccessKey, cfg.BlobSecretKey, ""),
		Secure: cfg.BlobUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}
	s.client = client
	logger.Info("blob storage using object store", "endpoint", cfg.BlobEndpoint, "bucket", cfg.BlobBucket)
	return s, nil
}

// EnsureBucket creates the bucket if the object store does not have it.
// No-op for local disk.
func (s *BlobService) EnsureBucket(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (s *BlobService) objectName(userID, filename string) string {
	return userID + "/" + filename
}

// Upload stores the PDF at path under the user's prefix and returns the
// stored object key.
func (s *BlobService) Upload(ctx context.Context, userID, filename, path string) (string, error) {
	object := s.objectName(userID, filename)

	if s.client == nil {
		dst := filepath.Join(s.localDir, userID, filename)
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return "", fmt.Errorf("failed to create user blob directory: %w", err)
		}
		if err := copyFile(path, dst); err != nil {
			return "", fmt.Errorf("failed to store file: %w", err)
		}
		return object, nil
	}

	_, err := s.client.FPutObject(ctx, s.bucket, object, path, minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to blob storage: %w", err)
	}
	return object, nil
}

// ViewURL returns a short-lived link to the stored original. Local-disk
// storage has no URL scheme of its own, so it serves a file path the
// frontend can fetch through the API host.
func (s *BlobService) ViewURL(ctx context.Context, userID, filename string) (string, error) {
	object := s.objectName(userID, filename)

	if s.client == nil {
		path := filepath.Join(s.localDir, userID, filename)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("file not found in storage")
		}
		return "/static/blobs/" + object, nil
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, object, 15*time.Minute, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to sign view URL: %w", err)
	}
	return u.String(), nil
}

// Delete removes the stored original. Missing objects are not an error:
// the vector index is the source of truth for deletion.
func (s *BlobService) Delete(ctx context.Context, userID, filename string) error {
	object := s.objectName(userID, filename)

	if s.client == nil {
		err := os.Remove(filepath.Join(s.localDir, userID, filename))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete stored file: %w", err)
		}
		return nil
	}
	return s.client.RemoveObject(ctx, s.bucket, object, minio.RemoveObjectOptions{})
}

// DeleteAll removes every stored original for one user.
func (s *BlobService) DeleteAll(ctx context.Context, userID string) error {
	if s.client == nil {
		err := os.RemoveAll(filepath.Join(s.localDir, userID))
		if err != nil {
			return fmt.Errorf("failed to clear user storage: %w", err)
		}
		return nil
	}

	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    userID + "/",
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return obj.Err
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
