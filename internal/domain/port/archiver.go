package port

import (
	"context"
	"image"
)

// FrameArchiver packs clip frames into a single archive file.
type FrameArchiver interface {
	// ArchiveFrames encodes frames in order and returns the archive size in bytes.
	ArchiveFrames(ctx context.Context, frames []image.Image, outputPath string) (int64, error)
}
