package port

import (
	"context"
	"image"
)

// VideoReader decodes frames from video files.
type VideoReader interface {
	// CountFrames returns the number of decodable frames in the video.
	CountFrames(ctx context.Context, videoPath string) (int, error)
	// LoadFrames decodes the frames at the given indices, in the given order.
	// Repeated indices yield repeated frames.
	LoadFrames(ctx context.Context, videoPath string, indices []int) ([]image.Image, error)
}
