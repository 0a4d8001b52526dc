package ffmpeg

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// Reader decodes video frames through the ffprobe and ffmpeg binaries.
type Reader struct {
	ffmpegBin  string
	ffprobeBin string
	tempDir    string
	logger     *zap.Logger
}

type ReaderConfig struct {
	FFmpegBin  string
	FFprobeBin string
	// TempDir receives the intermediate frame files. Empty means os.TempDir().
	TempDir string
}

func NewReader(cfg ReaderConfig, logger *zap.Logger) *Reader {
	if cfg.FFmpegBin == "" {
		cfg.FFmpegBin = "ffmpeg"
	}
	if cfg.FFprobeBin == "" {
		cfg.FFprobeBin = "ffprobe"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{ffmpegBin: cfg.FFmpegBin, ffprobeBin: cfg.FFprobeBin, tempDir: cfg.TempDir, logger: logger}
}

// CountFrames counts the packets of the first video stream, which matches
// the number of frames LoadFrames can address.
func (r *Reader) CountFrames(ctx context.Context, videoPath string) (int, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return 0, err
	}
	cmd := exec.CommandContext(ctx, r.ffprobeBin,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=nb_read_packets",
		"-of", "csv=p=0",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return parseFrameCount(string(output))
}

func parseFrameCount(output string) (int, error) {
	field := strings.TrimSpace(strings.SplitN(strings.TrimSpace(output), "\n", 2)[0])
	field = strings.TrimSuffix(field, ",")
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("parse frame count %q: %w", field, err)
	}
	return n, nil
}

// LoadFrames extracts each distinct index once and returns the frames in the
// requested order, repeating images for repeated indices.
func (r *Reader) LoadFrames(ctx context.Context, videoPath string, indices []int) ([]image.Image, error) {
	if len(indices) == 0 {
		return nil, nil
	}
	if _, err := os.Stat(videoPath); err != nil {
		return nil, err
	}
	unique := slices.Clone(indices)
	slices.Sort(unique)
	unique = slices.Compact(unique)
	if unique[0] < 0 {
		return nil, fmt.Errorf("negative frame index %d", unique[0])
	}

	workDir, err := os.MkdirTemp(r.tempDir, "frames-")
	if err != nil {
		return nil, fmt.Errorf("create frames dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	pattern := filepath.Join(workDir, "frame_%06d.png")
	cmd := exec.CommandContext(ctx, r.ffmpegBin,
		"-v", "error",
		"-i", videoPath,
		"-vf", selectFilter(unique),
		"-vsync", "0",
		"-y",
		pattern,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg error: %w, output: %s", err, string(output))
	}

	decoded := make(map[int]image.Image, len(unique))
	for i, idx := range unique {
		img, err := imaging.Open(filepath.Join(workDir, fmt.Sprintf("frame_%06d.png", i+1)))
		if err != nil {
			return nil, fmt.Errorf("frame %d not decoded from %s: %w", idx, videoPath, err)
		}
		decoded[idx] = img
	}

	frames := make([]image.Image, len(indices))
	for i, idx := range indices {
		frames[i] = decoded[idx]
	}
	r.logger.Debug("frames decoded",
		zap.String("video", videoPath),
		zap.Int("requested", len(indices)),
		zap.Int("decoded", len(unique)),
	)
	return frames, nil
}

// selectFilter builds an ffmpeg select expression for sorted, distinct
// indices. Contiguous runs collapse into between() terms.
func selectFilter(sorted []int) string {
	var terms []string
	for i := 0; i < len(sorted); {
		j := i
		for j+1 < len(sorted) && sorted[j+1] == sorted[j]+1 {
			j++
		}
		if i == j {
			terms = append(terms, fmt.Sprintf(`eq(n\,%d)`, sorted[i]))
		} else {
			terms = append(terms, fmt.Sprintf(`between(n\,%d\,%d)`, sorted[i], sorted[j]))
		}
		i = j + 1
	}
	return "select=" + strings.Join(terms, "+")
}
