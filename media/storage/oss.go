package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
)

// OSSConfig configures the optional Aliyun OSS derivative mirror.
type OSSConfig struct {
	Enabled         bool   `mapstructure:"enabled" default:"false"`
	Endpoint        string `mapstructure:"endpoint" validate:"required_if=Enabled true"` // oss-cn-hangzhou.aliyuncs.com
	AccessKeyID     string `mapstructure:"access-key-id" validate:"required_if=Enabled true"`
	AccessKeySecret string `mapstructure:"access-key-secret" validate:"required_if=Enabled true"`
	Bucket          string `mapstructure:"bucket" validate:"required_if=Enabled true"`
	Domain          string `mapstructure:"domain"` // custom or CDN domain
	Prefix          string `mapstructure:"prefix" default:"recipes"`
}

func (c *OSSConfig) Validate() error {
	return validator.New().Struct(c)
}

// OSSMirror implements Mirror for Aliyun OSS.
type OSSMirror struct {
	bucket *oss.Bucket
	domain string
	prefix string
}

// NewOSSMirror creates the client and resolves the bucket. It does not touch
// the network.
func NewOSSMirror(cfg OSSConfig) (*OSSMirror, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid oss config: %w", err)
	}
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket %s: %w", cfg.Bucket, err)
	}
	return &OSSMirror{
		bucket: bucket,
		domain: publicDomain(cfg),
		prefix: cfg.Prefix,
	}, nil
}

func publicDomain(cfg OSSConfig) string {
	if cfg.Domain == "" {
		return fmt.Sprintf("https://%s.%s", cfg.Bucket, cfg.Endpoint)
	}
	if !strings.HasPrefix(cfg.Domain, "http") {
		return "https://" + strings.TrimSuffix(cfg.Domain, "/")
	}
	return strings.TrimSuffix(cfg.Domain, "/")
}

// Key returns the object key for a derivative file name.
func (m *OSSMirror) Key(name string) string {
	return ObjectKey(m.prefix, name)
}

func (m *OSSMirror) Publish(ctx context.Context, localPath string) (string, error) {
	key := m.Key(filepath.Base(localPath))
	opts := []oss.Option{oss.WithContext(ctx)}
	if mt, err := mimetype.DetectFile(localPath); err == nil {
		opts = append(opts, oss.ContentType(mt.String()))
	}
	if err := m.bucket.PutObjectFromFile(key, localPath, opts...); err != nil {
		return "", fmt.Errorf("failed to upload %s to OSS: %w", key, err)
	}
	return m.domain + "/" + key, nil
}

func (m *OSSMirror) Remove(ctx context.Context, name string) error {
	key := m.Key(name)
	if err := m.bucket.DeleteObject(key, oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to delete %s from OSS: %w", key, err)
	}
	return nil
}

func (m *OSSMirror) Name() string {
	return "oss"
}
