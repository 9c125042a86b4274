package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig holds MinIO connection configuration.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// MinIOArchive keeps rejected drafts as JSON objects in a bucket.
type MinIOArchive struct {
	client *minio.Client
	bucket string
}

// NewMinIOArchive creates the client and ensures the bucket exists.
func NewMinIOArchive(ctx context.Context, cfg MinIOConfig) (*MinIOArchive, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		exist, xerr := mc.BucketExists(ctx, cfg.Bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return &MinIOArchive{client: mc, bucket: cfg.Bucket}, nil
}

func (a *MinIOArchive) SaveDraft(ctx context.Context, d Draft) (string, error) {
	if d.RejectedAt.IsZero() {
		d.RejectedAt = time.Now().UTC()
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	key := DraftKey(d)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(b), int64(len(b)), minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("put draft %s: %w", key, err)
	}
	return key, nil
}

// LoadDraft reads a stored draft back.
func (a *MinIOArchive) LoadDraft(ctx context.Context, key string) (*Draft, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	b, err := io.ReadAll(obj)
	if err != nil {
		return nil, err
	}
	var d Draft
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// DraftURL returns a presigned GET URL for a stored draft.
func (a *MinIOArchive) DraftURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	u, err := a.client.PresignedGetObject(ctx, a.bucket, key, expires, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
