package port

import (
	"context"
	"io"
)

// VideoStorage moves source videos in and exported clips out.
type VideoStorage interface {
	DownloadVideo(ctx context.Context, objectKey string, destPath string) error
	UploadClip(ctx context.Context, objectKey string, reader io.Reader, size int64) error
}

// DatasetMirror copies a remote dataset root to local disk. onFetched is
// called once per downloaded object; objects already present are skipped.
type DatasetMirror interface {
	SyncPrefix(ctx context.Context, prefix, destDir string, onFetched func(key string, size int64)) (int, error)
}
