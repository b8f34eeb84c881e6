// Package objectstore keeps the registry document as one object in an
// S3-compatible bucket (AWS S3, Cloudflare R2, MinIO).
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pinwater/pinwatch/internal/infra/storage"
)

type Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Key       string `yaml:"key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type Client struct {
	mc     *minio.Client
	config Config
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("object store bucket is required")
	}
	if cfg.Key == "" {
		cfg.Key = "registry.json"
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}

	c := &Client{mc: mc, config: cfg}
	if err := c.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) ensureBucket(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", c.config.Bucket, err)
	}
	if exists {
		return nil
	}
	region := c.config.Region
	if region == "" {
		region = "us-east-1"
	}
	if err := c.mc.MakeBucket(ctx, c.config.Bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", c.config.Bucket, err)
	}
	slog.Info("Created registry bucket", "bucket", c.config.Bucket)
	return nil
}

func (c *Client) Read(ctx context.Context) ([]byte, error) {
	obj, err := c.mc.GetObject(ctx, c.config.Bucket, c.config.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, c.wrap(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, c.wrap(err)
	}
	return data, nil
}

// Write uploads the document with a single PUT. Object stores replace
// objects atomically, so readers see either the old or the new document.
func (c *Client) Write(ctx context.Context, doc []byte) error {
	_, err := c.mc.PutObject(ctx, c.config.Bucket, c.config.Key,
		bytes.NewReader(doc), int64(len(doc)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", c.config.Bucket, c.config.Key, err)
	}
	return nil
}

func (c *Client) wrap(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: s3://%s/%s", storage.ErrRegistryNotFound, c.config.Bucket, c.config.Key)
	}
	return fmt.Errorf("get %s/%s: %w", c.config.Bucket, c.config.Key, err)
}

// Ping checks that the bucket is reachable and exists.
func (c *Client) Ping(ctx context.Context) error {
	ok, err := c.mc.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return fmt.Errorf("bucket %s: %w", c.config.Bucket, err)
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", c.config.Bucket)
	}
	return nil
}

func (c *Client) Close() error {
	return nil
}
