package minio

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Storage keeps source videos, exported clips and dataset trees in MinIO.
type Storage struct {
	client        *miniogo.Client
	videoBucket   string
	clipBucket    string
	datasetBucket string
	logger        *zap.Logger
}

type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	VideoBucket   string
	ClipBucket    string
	DatasetBucket string
}

func NewStorage(cfg StorageConfig, logger *zap.Logger) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Storage{
		client:        client,
		videoBucket:   cfg.VideoBucket,
		clipBucket:    cfg.ClipBucket,
		datasetBucket: cfg.DatasetBucket,
		logger:        logger,
	}, nil
}

func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.videoBucket, s.clipBucket, s.datasetBucket} {
		if bucket == "" {
			continue
		}
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

func (s *Storage) DownloadVideo(ctx context.Context, objectKey string, destPath string) error {
	if err := s.client.FGetObject(ctx, s.videoBucket, objectKey, destPath, miniogo.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download %s: %w", objectKey, err)
	}
	return nil
}

func (s *Storage) UploadClip(ctx context.Context, objectKey string, reader io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.clipBucket, objectKey, reader, size, miniogo.PutObjectOptions{
		ContentType: "application/zip",
	})
	if err != nil {
		return fmt.Errorf("upload clip: %w", err)
	}
	return nil
}

// UploadFile puts a local file into the dataset bucket.
func (s *Storage) UploadFile(ctx context.Context, objectKey, srcPath string) error {
	if _, err := s.client.FPutObject(ctx, s.datasetBucket, objectKey, srcPath, miniogo.PutObjectOptions{}); err != nil {
		return fmt.Errorf("upload %s: %w", objectKey, err)
	}
	return nil
}

// SyncPrefix downloads every object under prefix in the dataset bucket into
// destDir, keeping the key layout below the prefix. Objects whose local copy
// already has the same size are skipped. onFetched, when set, is called after
// each download. It returns the number of files fetched.
func (s *Storage) SyncPrefix(ctx context.Context, prefix, destDir string, onFetched func(key string, size int64)) (int, error) {
	prefix = strings.TrimPrefix(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	// Cancelling stops the listing goroutine when the loop returns early.
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	fetched := 0
	for obj := range s.client.ListObjects(listCtx, s.datasetBucket, miniogo.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return fetched, fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		rel, err := relativeKey(prefix, obj.Key)
		if err != nil {
			return fetched, err
		}
		dest := filepath.Join(destDir, filepath.FromSlash(rel))
		if info, err := os.Stat(dest); err == nil && info.Size() == obj.Size {
			continue
		}
		if err := s.client.FGetObject(ctx, s.datasetBucket, obj.Key, dest, miniogo.GetObjectOptions{}); err != nil {
			return fetched, fmt.Errorf("download %s: %w", obj.Key, err)
		}
		fetched++
		if onFetched != nil {
			onFetched(obj.Key, obj.Size)
		}
	}
	s.logger.Info("dataset synced",
		zap.String("bucket", s.datasetBucket),
		zap.String("prefix", prefix),
		zap.String("dest", destDir),
		zap.Int("fetched", fetched),
	)
	return fetched, nil
}

// relativeKey strips prefix from key and rejects keys escaping the prefix.
func relativeKey(prefix, key string) (string, error) {
	rel := path.Clean(strings.TrimPrefix(key, prefix))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") || path.IsAbs(rel) {
		return "", fmt.Errorf("object key %q escapes prefix %q", key, prefix)
	}
	return rel, nil
}
