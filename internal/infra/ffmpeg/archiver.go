package ffmpeg

import (
	"archive/zip"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/disintegration/imaging"
)

// PNGArchiver writes clip frames as PNG entries of a zip archive.
type PNGArchiver struct {
	level png.CompressionLevel
}

func NewPNGArchiver(level png.CompressionLevel) *PNGArchiver {
	return &PNGArchiver{level: level}
}

func (a *PNGArchiver) ArchiveFrames(ctx context.Context, frames []image.Image, outputPath string) (int64, error) {
	if len(frames) == 0 {
		return 0, fmt.Errorf("no frames to archive")
	}
	zipFile, err := os.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("create zip file: %w", err)
	}
	defer zipFile.Close()

	zw := zip.NewWriter(zipFile)
	modified := time.Now()
	for i, frame := range frames {
		select {
		case <-ctx.Done():
			zw.Close()
			return 0, ctx.Err()
		default:
		}

		// PNG data is already deflated.
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     fmt.Sprintf("frame_%04d.png", i),
			Method:   zip.Store,
			Modified: modified,
		})
		if err != nil {
			zw.Close()
			return 0, fmt.Errorf("add frame %d to zip: %w", i, err)
		}
		if err := imaging.Encode(w, frame, imaging.PNG, imaging.PNGCompressionLevel(a.level)); err != nil {
			zw.Close()
			return 0, fmt.Errorf("encode frame %d: %w", i, err)
		}
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("finalize zip: %w", err)
	}

	info, err := zipFile.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat zip: %w", err)
	}
	return info.Size(), nil
}
