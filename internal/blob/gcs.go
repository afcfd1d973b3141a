package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSConfig 描述 Cloud Storage 配置。
type GCSConfig struct {
	Bucket          string
	CredentialsJSON string
	CredentialsFile string
	URLTTL          time.Duration
}

// GCSStore 将文件保存到 Cloud Storage（即 Firebase Storage 的底层 bucket），返回签名读取地址。
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	ttl    time.Duration
	now    func() time.Time
}

// NewGCSStore 创建 GCSStore，未提供凭据时使用默认应用凭据。
func NewGCSStore(ctx context.Context, cfg GCSConfig) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket missing")
	}
	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	} else if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("new gcs client: %w", err)
	}
	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &GCSStore{client: client, bucket: client.Bucket(cfg.Bucket), ttl: ttl, now: time.Now}, nil
}

// Close 关闭底层客户端。
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) Put(ctx context.Context, key, contentType string, body io.Reader) (Object, error) {
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return Object{}, fmt.Errorf("upload object: %w", err)
	}
	if err := w.Close(); err != nil {
		return Object{}, fmt.Errorf("finalize object: %w", err)
	}

	url, err := s.bucket.SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: s.now().Add(s.ttl),
	})
	if err != nil {
		return Object{}, fmt.Errorf("sign object url: %w", err)
	}
	return Object{Path: key, URL: url}, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
