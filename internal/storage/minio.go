package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/rs/zerolog"

	"ats-scorer-go/internal/config"
)

// ObjectStorage stores résumé uploads, their text and analysis artifacts.
type ObjectStorage interface {
	// UploadResumeFile streams an upload and returns its key and SHA-256.
	UploadResumeFile(ctx context.Context, analysisID, fileExt string, reader io.Reader, fileSize int64) (string, string, error)
	UploadText(ctx context.Context, analysisID, name, text string) (string, error)
	UploadArtifact(ctx context.Context, analysisID, name string, data []byte) (string, error)

	GetResumeFile(ctx context.Context, objectKey string) ([]byte, error)
	GetText(ctx context.Context, objectKey string) (string, error)
	GetArtifact(ctx context.Context, objectKey string) ([]byte, error)

	GetPresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
}

var _ ObjectStorage = (*MinIO)(nil)

// MinIO provides object storage.
type MinIO struct {
	client          *minio.Client
	cfg             *config.MinIOConfig
	uploadsBucket   string
	textsBucket     string
	artifactsBucket string
	logger          zerolog.Logger
}

// NewMinIO connects to MinIO and makes sure the configured buckets exist.
func NewMinIO(cfg *config.MinIOConfig, logger zerolog.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("minio config cannot be nil")
	}
	logger = logger.With().Str("component", "minio").Logger()

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	m := &MinIO{
		client:          client,
		cfg:             cfg,
		uploadsBucket:   orDefault(cfg.UploadsBucket, "ats-uploads"),
		textsBucket:     orDefault(cfg.TextsBucket, "ats-texts"),
		artifactsBucket: orDefault(cfg.ArtifactsBucket, "ats-artifacts"),
		logger:          logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, bucket := range []string{m.uploadsBucket, m.textsBucket, m.artifactsBucket} {
		if err := m.ensureBucketExists(ctx, bucket, cfg.Location); err != nil {
			return nil, err
		}
	}

	if cfg.UploadExpireDays > 0 || cfg.ArtifactExpireDays > 0 {
		if err := m.setupLifecycleRules(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to set up lifecycle rules")
		}
	}

	logger.Info().Str("endpoint", cfg.Endpoint).Msg("minio client initialized")
	return m, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (m *MinIO) ensureBucketExists(ctx context.Context, bucketName, location string) error {
	exists, err := m.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucketName, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucketName, err)
	}
	m.logger.Info().Str("bucket", bucketName).Msg("bucket created")
	return nil
}

func (m *MinIO) setupLifecycleRules(ctx context.Context) error {
	if m.cfg.UploadExpireDays > 0 {
		for _, bucket := range []string{m.uploadsBucket, m.textsBucket} {
			if err := m.setupBucketLifecycle(ctx, bucket, "expire-uploads", m.cfg.UploadExpireDays); err != nil {
				return fmt.Errorf("lifecycle for %s: %w", bucket, err)
			}
		}
	}
	if m.cfg.ArtifactExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.artifactsBucket, "expire-artifacts", m.cfg.ArtifactExpireDays); err != nil {
			return fmt.Errorf("lifecycle for %s: %w", m.artifactsBucket, err)
		}
	}
	return nil
}

func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	cfg := lifecycle.NewConfiguration()
	cfg.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}
	return m.client.SetBucketLifecycle(ctx, bucketName, cfg)
}

func (m *MinIO) put(ctx context.Context, bucket, objectName string, reader io.Reader, size int64, contentType string) error {
	info, err := m.client.PutObject(ctx, bucket, objectName, reader, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, objectName, err)
	}
	m.logger.Debug().
		Str("bucket", bucket).
		Str("object", objectName).
		Int64("size", info.Size).
		Msg("object uploaded")
	return nil
}

// UploadResumeFile streams the upload to the uploads bucket while hashing it.
func (m *MinIO) UploadResumeFile(ctx context.Context, analysisID, fileExt string, reader io.Reader, fileSize int64) (string, string, error) {
	objectName := fmt.Sprintf("resume/%s/original%s", analysisID, strings.ToLower(fileExt))
	hash := sha256.New()
	if err := m.put(ctx, m.uploadsBucket, objectName, io.TeeReader(reader, hash), fileSize, getContentType(fileExt)); err != nil {
		return "", "", err
	}
	return objectName, hex.EncodeToString(hash.Sum(nil)), nil
}

// UploadText stores extracted or cleaned résumé text as name.txt.
func (m *MinIO) UploadText(ctx context.Context, analysisID, name, text string) (string, error) {
	objectName := fmt.Sprintf("resume/%s/%s.txt", analysisID, name)
	if err := m.put(ctx, m.textsBucket, objectName, strings.NewReader(text), int64(len(text)), "text/plain; charset=utf-8"); err != nil {
		return "", err
	}
	return objectName, nil
}

// UploadArtifact stores a JSON artifact such as the preprocessing output.
func (m *MinIO) UploadArtifact(ctx context.Context, analysisID, name string, data []byte) (string, error) {
	objectName := fmt.Sprintf("analysis/%s/%s.json", analysisID, name)
	if err := m.put(ctx, m.artifactsBucket, objectName, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return "", err
	}
	return objectName, nil
}

// OpenObject streams an object from any bucket.
func (m *MinIO) OpenObject(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, objectName, err)
	}
	// GetObject is lazy; Stat surfaces a missing object now.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("stat object %s/%s: %w", bucket, objectName, err)
	}
	return obj, nil
}

func (m *MinIO) download(ctx context.Context, bucket, objectName string) ([]byte, error) {
	obj, err := m.OpenObject(ctx, bucket, objectName)
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, objectName, err)
	}
	return data, nil
}

func (m *MinIO) GetResumeFile(ctx context.Context, objectKey string) ([]byte, error) {
	return m.download(ctx, m.uploadsBucket, objectKey)
}

func (m *MinIO) GetText(ctx context.Context, objectKey string) (string, error) {
	data, err := m.download(ctx, m.textsBucket, objectKey)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (m *MinIO) GetArtifact(ctx context.Context, objectKey string) ([]byte, error) {
	return m.download(ctx, m.artifactsBucket, objectKey)
}

// GetPresignedURL returns a temporary download link for an upload.
func (m *MinIO) GetPresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.uploadsBucket, objectKey, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", objectKey, err)
	}
	return u.String(), nil
}

func getContentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain"
	case ".html", ".htm":
		return "text/html"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
