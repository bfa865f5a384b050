// civictrack/utils/storage.go
package utils

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// LocalStorage writes uploaded files to a directory on disk. Paths
// returned are URL paths under /uploads/.
type LocalStorage struct {
	BaseDir string
}

func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStorage{BaseDir: baseDir}, nil
}

func (s *LocalStorage) SaveFile(filename string, data []byte, contentType string) (string, error) {
	// filename is generated server-side, but reject traversal anyway
	clean := filepath.Base(filename)
	dst := filepath.Join(s.BaseDir, clean)
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return "/uploads/" + clean, nil
}

func (s *LocalStorage) DeleteFile(path string) error {
	clean := filepath.Base(strings.TrimPrefix(path, "/uploads/"))
	if clean == "." || clean == "/" {
		return fmt.Errorf("invalid file path: %s", path)
	}
	if err := os.Remove(filepath.Join(s.BaseDir, clean)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// S3Storage stores uploaded files in an S3-compatible bucket via minio.
type S3Storage struct {
	Client    *minio.Client
	Bucket    string
	PublicURL string
}

func NewS3Storage(endpoint, accessKey, secretKey, bucket, publicURL string, useSSL bool) (*S3Storage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &S3Storage{Client: client, Bucket: bucket, PublicURL: strings.TrimSuffix(publicURL, "/")}, nil
}

func (s *S3Storage) SaveFile(filename string, data []byte, contentType string) (string, error) {
	clean := filepath.Base(filename)
	_, err := s.Client.PutObject(context.Background(), s.Bucket, clean,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	return s.PublicURL + "/" + s.Bucket + "/" + clean, nil
}

func (s *S3Storage) DeleteFile(path string) error {
	clean := filepath.Base(path)
	err := s.Client.RemoveObject(context.Background(), s.Bucket, clean, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
