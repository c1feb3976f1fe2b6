// Package objectstore uploads tenant assets to S3-compatible object storage.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
)

const defaultLogoExt = "png"

// Config describes the bucket assets are written to
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
	// PublicURL is the base for durable asset URLs. Defaults to the endpoint.
	PublicURL string
}

// Uploader writes objects to a single bucket
type Uploader struct {
	client    *minio.Client
	bucket    string
	publicURL string
	now       func() time.Time
}

// NewUploader creates an Uploader for cfg
func NewUploader(cfg Config) (*Uploader, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	return &Uploader{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}, nil
}

// Put stores data at objectPath and returns its durable URL
func (u *Uploader) Put(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	_, err := u.client.PutObject(ctx, u.bucket, objectPath, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", objectPath, err)
	}
	return u.URL(objectPath), nil
}

// URL returns the durable URL of objectPath
func (u *Uploader) URL(objectPath string) string {
	return u.publicURL + "/" + strings.TrimLeft(objectPath, "/")
}

// UploadLogo stores a tenant logo under a collision-resistant name and returns its URL
func (u *Uploader) UploadLogo(ctx context.Context, tenantID string, logo *model.LogoFile) (string, error) {
	objectPath := LogoPath(tenantID, logo.Filename, u.now())
	log.Info().
		Str("tenant_id", tenantID).
		Str("path", objectPath).
		Int("size", len(logo.Data)).
		Msg("Uploading tenant logo")

	url, err := u.Put(ctx, objectPath, logo.Data, logo.ContentType)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("Logo upload failed")
		return "", err
	}
	return url, nil
}

// LogoPath builds tenants/{tenant}/branding/logo_{unixmillis}.{ext}. The
// extension is taken from filename, lowercased, and defaults to png.
func LogoPath(tenantID, filename string, now time.Time) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" {
		ext = defaultLogoExt
	}
	return fmt.Sprintf("tenants/%s/branding/logo_%d.%s", tenantID, now.UnixMilli(), ext)
}
