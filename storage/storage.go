package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MaxImageSize is the largest accepted upload, in bytes.
const MaxImageSize = 5 << 20

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image too large")
	ErrEmpty           = errors.New("image is empty")
	ErrNotConfigured   = errors.New("object storage not configured")
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Image is an upload request. ContentType is sniffed from the data when empty.
type Image struct {
	Prefix      string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Object is a stored image.
type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type ImageStore interface {
	Upload(ctx context.Context, img Image) (Object, error)
	Delete(ctx context.Context, key string) error
	// KeyFromURL returns the object key of a URL produced by Upload.
	KeyFromURL(url string) (string, bool)
}

// prepare validates img and returns its data, content type and a fresh key.
func prepare(img Image) ([]byte, string, string, error) {
	if img.Size > MaxImageSize {
		return nil, "", "", ErrTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(img.Reader, MaxImageSize+1))
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return nil, "", "", ErrEmpty
	}
	if len(data) > MaxImageSize {
		return nil, "", "", ErrTooLarge
	}

	contentType := img.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	contentType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, "", "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	key := uuid.NewString() + ext
	if img.Prefix != "" {
		key = path.Join(img.Prefix, key)
	}
	return data, contentType, key, nil
}

// MinioConfig configures a MinioStore.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the base of object URLs; defaults to the endpoint URL plus bucket.
	PublicURL string
}

// MinioConfigFromEnv reads MINIO_* variables. ok is false when MINIO_ENDPOINT is unset.
func MinioConfigFromEnv() (cfg MinioConfig, ok bool) {
	cfg = MinioConfig{
		Endpoint:  os.Getenv("MINIO_ENDPOINT"),
		AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_SECRET_KEY"),
		Bucket:    os.Getenv("MINIO_BUCKET"),
		PublicURL: os.Getenv("MINIO_PUBLIC_URL"),
	}
	cfg.UseSSL, _ = strconv.ParseBool(os.Getenv("MINIO_USE_SSL"))
	if cfg.Bucket == "" {
		cfg.Bucket = "dhermica"
	}
	return cfg, cfg.Endpoint != ""
}

func (cfg MinioConfig) baseURL() string {
	if cfg.PublicURL != "" {
		return strings.TrimRight(cfg.PublicURL, "/")
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
}

// MinioStore keeps images in a MinIO (or any S3 compatible) bucket.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewMinioStore connects to MinIO and creates the bucket when it does not exist.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinioStore{client: client, bucket: cfg.Bucket, baseURL: cfg.baseURL()}, nil
}

func (s *MinioStore) Upload(ctx context.Context, img Image) (Object, error) {
	data, contentType, key, err := prepare(img)
	if err != nil {
		return Object{}, err
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Object{}, fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return Object{Key: key, URL: s.baseURL + "/" + key, ContentType: contentType, Size: info.Size}, nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

func (s *MinioStore) KeyFromURL(url string) (string, bool) {
	return keyFromURL(s.baseURL, url)
}

func keyFromURL(base, url string) (string, bool) {
	if !strings.HasPrefix(url, base+"/") {
		return "", false
	}
	key := strings.TrimPrefix(url, base+"/")
	return key, key != ""
}

// MemoryStore keeps images in process memory. Used when MinIO is not configured
// and in tests.
type MemoryStore struct {
	mu      sync.Mutex
	BaseURL string
	objects map[string][]byte
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{BaseURL: strings.TrimRight(baseURL, "/"), objects: map[string][]byte{}}
}

func (s *MemoryStore) Upload(_ context.Context, img Image) (Object, error) {
	data, contentType, key, err := prepare(img)
	if err != nil {
		return Object{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return Object{Key: key, URL: s.BaseURL + "/" + key, ContentType: contentType, Size: int64(len(data))}, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) KeyFromURL(url string) (string, bool) {
	return keyFromURL(s.BaseURL, url)
}

// Has reports whether key is stored.
func (s *MemoryStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}
