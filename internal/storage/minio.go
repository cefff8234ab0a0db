package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// MinIOStorage handles image blobs. Uploaded objects are publicly readable
// so the returned URL can be embedded directly in item responses.
type MinIOStorage struct {
	client         *minio.Client
	bucketName     string
	publicEndpoint string
	useSSL         bool
}

// NewMinIOStorage creates the blob store client and ensures the bucket
// exists with a public-read policy.
func NewMinIOStorage(endpoint, publicEndpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinIOStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	if publicEndpoint == "" {
		publicEndpoint = endpoint
	}
	publicEndpoint = strings.TrimSuffix(strings.TrimSpace(publicEndpoint), "/")

	storage := &MinIOStorage{
		client:         client,
		bucketName:     bucketName,
		publicEndpoint: publicEndpoint,
		useSSL:         useSSL,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		log.Warn().Err(err).Msgf("Failed to check bucket existence for %s (will continue)", bucketName)
	} else if !exists {
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			log.Error().Err(err).Msgf("Failed to create bucket %s", bucketName)
		} else {
			log.Info().Msgf("Bucket %s created", bucketName)

			policy := fmt.Sprintf(`{"Version": "2012-10-17","Statement": [{"Action": ["s3:GetObject"],"Effect": "Allow","Principal": {"AWS": ["*"]},"Resource": ["arn:aws:s3:::%s/*"],"Sid": ""}]}`, bucketName)
			if err := client.SetBucketPolicy(ctx, bucketName, policy); err != nil {
				log.Error().Err(err).Msg("Failed to set bucket policy")
			}
		}
	}

	log.Info().
		Str("endpoint", endpoint).
		Str("public_endpoint", publicEndpoint).
		Str("bucket", bucketName).
		Msg("MinIO storage initialized")

	return storage, nil
}

// Upload stores an image under a generated key and returns its public URL.
func (s *MinIOStorage) Upload(ctx context.Context, reader io.Reader, filename, contentType string, size int64) (string, error) {
	ext := filepath.Ext(filename)
	objectKey := fmt.Sprintf("items/%s/%s%s", time.Now().Format("2006-01-02"), uuid.New().String(), ext)

	_, err := s.client.PutObject(ctx, s.bucketName, objectKey, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	publicURL := s.objectURL(objectKey)

	log.Info().
		Str("filename", filename).
		Str("key", objectKey).
		Str("url", publicURL).
		Msg("Image uploaded")

	return publicURL, nil
}

// Delete removes the object a previously returned URL points at.
func (s *MinIOStorage) Delete(ctx context.Context, imageURL string) error {
	objectKey := s.keyFromURL(imageURL)
	if objectKey == "" {
		return fmt.Errorf("could not extract object key from URL %q", imageURL)
	}

	if err := s.client.RemoveObject(ctx, s.bucketName, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	log.Info().Str("key", objectKey).Msg("Image deleted")
	return nil
}

// HealthCheck verifies the MinIO connection and bucket.
func (s *MinIOStorage) HealthCheck(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("MinIO health check failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", s.bucketName)
	}
	return nil
}

func (s *MinIOStorage) objectURL(objectKey string) string {
	if strings.Contains(s.publicEndpoint, "://") {
		return fmt.Sprintf("%s/%s/%s", s.publicEndpoint, s.bucketName, objectKey)
	}
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.publicEndpoint, s.bucketName, objectKey)
}

// keyFromURL extracts the object key from a public URL. The path looks
// like /bucketName/items/..., but the bucket prefix may be duplicated in
// malformed URLs, so the last occurrence wins.
func (s *MinIOStorage) keyFromURL(imageURL string) string {
	u, err := url.Parse(imageURL)
	if err != nil {
		return ""
	}

	path := strings.TrimPrefix(u.Path, "/")
	prefix := s.bucketName + "/"
	if idx := strings.LastIndex(path, prefix); idx != -1 {
		return path[idx+len(prefix):]
	}
	return path
}
