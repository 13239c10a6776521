// Package storage keeps uploaded bill files in MinIO.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Onebillie/parsetastic/internal/models"
)

// Config locates the bucket.
type Config struct {
	Endpoint   string        `yaml:"endpoint"`
	AccessKey  string        `yaml:"access_key"`
	SecretKey  string        `yaml:"secret_key"`
	Bucket     string        `yaml:"bucket"`
	UseSSL     bool          `yaml:"use_ssl"`
	PresignTTL time.Duration `yaml:"presign_ttl"`
}

// Store uploads bill files and issues presigned links to them.
type Store struct {
	client     *minio.Client
	bucket     string
	presignTTL time.Duration
	now        func() time.Time
}

// New connects to MinIO and checks the bucket exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" {
		return nil, models.WrapError(models.ErrNoStorage, "storage: new", eris.New("no storage configuration"))
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "bills"
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 24 * time.Hour
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, eris.Wrap(err, "storage: create MinIO client")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, eris.Wrap(err, "storage: check bucket")
	}
	if !exists {
		return nil, eris.Errorf("storage: bucket %s does not exist", cfg.Bucket)
	}

	zap.L().Info("storage initialized", zap.String("endpoint", cfg.Endpoint), zap.String("bucket", cfg.Bucket))
	return &Store{client: client, bucket: cfg.Bucket, presignTTL: cfg.PresignTTL, now: time.Now}, nil
}

// Upload stores a bill file and returns its path as "<bucket>/<object>".
// Objects are laid out as YYYY/MM/<uuid>-<file name>.
func (s *Store) Upload(ctx context.Context, fileName string, data []byte, contentType string) (string, error) {
	if s == nil || s.client == nil {
		return "", models.ErrNoStorage
	}
	objectName := ObjectName(s.now(), fileName, contentType)

	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", eris.Wrapf(err, "storage: upload %s", objectName)
	}
	return s.bucket + "/" + objectName, nil
}

// PresignedURL returns a time-limited GET link for a path returned by Upload.
func (s *Store) PresignedURL(ctx context.Context, objectPath string) (string, error) {
	if s == nil || s.client == nil {
		return "", models.ErrNoStorage
	}
	objectName := strings.TrimPrefix(objectPath, s.bucket+"/")

	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, s.presignTTL, nil)
	if err != nil {
		return "", eris.Wrapf(err, "storage: presign %s", objectName)
	}
	return u.String(), nil
}

// Available reports whether the bucket answers.
func (s *Store) Available(ctx context.Context) bool {
	if s == nil || s.client == nil {
		return false
	}
	ok, err := s.client.BucketExists(ctx, s.bucket)
	return err == nil && ok
}

// ObjectName builds the object key for an upload made at t.
func ObjectName(t time.Time, fileName, contentType string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "bill" + FileExtension(contentType)
	}
	return fmt.Sprintf("%d/%02d/%s-%s", t.Year(), t.Month(), uuid.NewString(), base)
}

// FileExtension extracts file extension from content type
func FileExtension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}
