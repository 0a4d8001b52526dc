package dataset

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/fiapx/fiapx-video-datasets/internal/domain/entity"
	"github.com/fiapx/fiapx-video-datasets/internal/labelset"
	"github.com/fiapx/fiapx-video-datasets/internal/recordset"
	"github.com/fiapx/fiapx-video-datasets/internal/sampler"
	"github.com/fiapx/fiapx-video-datasets/internal/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader serves synthetic 4x4 frames whose red channel is the frame index.
type fakeReader struct {
	mu     sync.Mutex
	frames map[string]int
	counts int
}

func (f *fakeReader) CountFrames(_ context.Context, path string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts++
	n, ok := f.frames[path]
	if !ok {
		return 0, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return n, nil
}

func (f *fakeReader) LoadFrames(_ context.Context, path string, indices []int) ([]image.Image, error) {
	f.mu.Lock()
	n, ok := f.frames[path]
	f.mu.Unlock()
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	out := make([]image.Image, len(indices))
	for i, idx := range indices {
		if idx >= n {
			return nil, fmt.Errorf("frame %d beyond %d", idx, n)
		}
		out[i] = imaging.New(4, 4, color.NRGBA{R: uint8(idx), A: 255})
	}
	return out, nil
}

func redOf(img image.Image) uint8 {
	return imaging.Clone(img).Pix[0]
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRecordDatasetUsesRecordFrameCount(t *testing.T) {
	root := t.TempDir()
	rs, err := recordset.Parse(strings.NewReader("a 10 0\nb 20 1\nc 15 2\n"), "meta.txt",
		recordset.WithLayout(recordset.LayoutPathFramesLabel))
	require.NoError(t, err)

	reader := &fakeReader{frames: map[string]int{
		filepath.Join(root, "a"): 10,
		filepath.Join(root, "b"): 20,
		filepath.Join(root, "c"): 15,
	}}
	s, err := sampler.NewClip(sampler.ClipConfig{NumFrames: 4})
	require.NoError(t, err)

	ds, err := NewRecordDataset(root, rs, reader, WithSampler(s))
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())

	ex, err := ds.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, reader.counts)
	assert.Equal(t, []int{0, 5, 10, 15}, ex.Indices)
	assert.True(t, ex.Label.Equal(entity.SingleLabel(1)))
	require.NotNil(t, ex.Clip.Tensor)
	assert.Equal(t, []int{3, 4, 4, 4}, ex.Clip.Tensor.Shape())
	assert.InDelta(t, 5.0/255, ex.Clip.Tensor.At(0, 1, 0, 0), 1e-6)
}

func TestRecordDatasetProbesMissingFrameCount(t *testing.T) {
	root := t.TempDir()
	rs, err := recordset.Parse(strings.NewReader("a 0\n"), "meta.txt")
	require.NoError(t, err)
	reader := &fakeReader{frames: map[string]int{filepath.Join(root, "a"): 3}}

	ds, err := NewRecordDataset(root, rs, reader, WithTransform(transform.NewCompose()))
	require.NoError(t, err)

	ex, err := ds.Get(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, reader.counts)
	assert.Equal(t, []int{0, 1, 2}, ex.Indices)
	require.Len(t, ex.Clip.Frames, 3)
	assert.Equal(t, uint8(2), redOf(ex.Clip.Frames[2]))
}

func TestRecordDatasetFrameCounter(t *testing.T) {
	root := t.TempDir()
	rs, err := recordset.Parse(strings.NewReader("a 0\n"), "meta.txt")
	require.NoError(t, err)
	reader := &fakeReader{frames: map[string]int{filepath.Join(root, "a"): 6}}

	ds, err := NewRecordDataset(root, rs, reader,
		WithTransform(transform.NewCompose()),
		WithFrameCounter(func(rel string) (int, bool) { return 2, rel == "a" }))
	require.NoError(t, err)

	ex, err := ds.Get(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, reader.counts)
	assert.Equal(t, []int{0, 1}, ex.Indices)
}

func TestRecordDatasetErrors(t *testing.T) {
	root := t.TempDir()
	rs, err := recordset.Parse(strings.NewReader("missing 0\n"), "meta.txt")
	require.NoError(t, err)
	ds, err := NewRecordDataset(root, rs, &fakeReader{})
	require.NoError(t, err)

	_, err = ds.Get(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	_, err = ds.Get(context.Background(), 1)
	assert.ErrorIs(t, err, entity.ErrLookup)
}

func TestRecordDatasetTransformErrorSurfaces(t *testing.T) {
	root := t.TempDir()
	rs, err := recordset.Parse(strings.NewReader("a 4 0\n"), "meta.txt",
		recordset.WithLayout(recordset.LayoutPathFramesLabel))
	require.NoError(t, err)
	reader := &fakeReader{frames: map[string]int{filepath.Join(root, "a"): 4}}

	// Normalize before ToTensor has no tensor to work on.
	norm, err := transform.NewNormalize([]float32{0.5, 0.5, 0.5}, []float32{0.5, 0.5, 0.5})
	require.NoError(t, err)
	ds, err := NewRecordDataset(root, rs, reader, WithTransform(transform.NewCompose(transform.Frames(norm))))
	require.NoError(t, err)

	_, err = ds.Get(context.Background(), 0)
	assert.ErrorIs(t, err, transform.ErrNoTensor)
}

func TestRecordDatasetLabelAwareStep(t *testing.T) {
	root := t.TempDir()
	rs, err := recordset.Parse(strings.NewReader("a 2 7\n"), "meta.txt",
		recordset.WithLayout(recordset.LayoutPathFramesLabel))
	require.NoError(t, err)
	reader := &fakeReader{frames: map[string]int{filepath.Join(root, "a"): 2}}

	shift := transform.MapLabel(func(l entity.Label) (entity.Label, error) {
		code, _ := l.Code()
		return entity.SingleLabel(code - 1), nil
	})
	ds, err := NewRecordDataset(root, rs, reader, WithTransform(transform.NewCompose(transform.Labeled(shift))))
	require.NoError(t, err)

	ex, err := ds.Get(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, ex.Label.Equal(entity.SingleLabel(6)))
}

func newFolder(t *testing.T, names ...string) (string, *fakeReader) {
	t.Helper()
	root := t.TempDir()
	reader := &fakeReader{frames: map[string]int{}}
	for i, name := range names {
		writeFile(t, filepath.Join(root, name), "")
		reader.frames[filepath.Join(root, name)] = i + 2
	}
	require.NoError(t, os.Mkdir(filepath.Join(root, "nested.mp4"), 0o755))
	return root, reader
}

func TestFolderDatasetUnlabeled(t *testing.T) {
	root, reader := newFolder(t, "b.mp4", "a.avi", "notes.txt", "c.MKV")

	ds, err := NewFolderDataset(context.Background(), root, reader, WithTransform(transform.NewCompose()))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ds.VideoIDs())
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, 3, reader.counts)

	n, err := ds.FrameCount(0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ex, err := ds.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ex.Label.Present())
	assert.Equal(t, []int{0, 1}, ex.Indices)
	assert.Equal(t, 3, reader.counts, "lengths are measured once")
}

func TestFolderDatasetLabeledAndFiltered(t *testing.T) {
	root, reader := newFolder(t, "cat.mp4", "dog.mp4", "skip.mp4")
	labels := labelset.FromMap(map[string]int{"cat.mp4": 0, "dog.mp4": 1})

	ds, err := NewFolderDataset(context.Background(), root, reader,
		WithLabelSet(labels),
		WithFilter(func(name string) bool { return !strings.HasPrefix(name, "skip") }),
		WithFrameCounter(func(string) (int, bool) { return 5, true }),
		WithTransform(transform.NewCompose()))
	require.NoError(t, err)
	assert.Equal(t, 0, reader.counts)
	require.Equal(t, 2, ds.Len())

	ex, err := ds.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ex.Label.Equal(entity.SingleLabel(1)))
	assert.Len(t, ex.Indices, 5)
}

func TestFolderDatasetLabelKey(t *testing.T) {
	root, reader := newFolder(t, "video1.mp4", "video2.avi")

	byName := labelset.FromMap(map[string]int{"video1.mp4": 3, "video2.avi": 4})
	ds, err := NewFolderDataset(context.Background(), root, reader,
		WithLabelSet(byName), WithTransform(transform.NewCompose()))
	require.NoError(t, err)
	ex, err := ds.Get(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, ex.Label.Equal(entity.SingleLabel(3)))

	_, err = NewFolderDataset(context.Background(), root, reader,
		WithLabelSet(labelset.FromMap(map[string]int{"video1": 3, "video2": 4})))
	assert.ErrorIs(t, err, entity.ErrLookup, "stems do not match by default")

	byStem := labelset.FromMap(map[string]int{"video1": 3, "video2": 4})
	ds, err = NewFolderDataset(context.Background(), root, reader,
		WithLabelSet(byStem), WithLabelKey(FileStem), WithTransform(transform.NewCompose()))
	require.NoError(t, err)
	ex, err = ds.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ex.Label.Equal(entity.SingleLabel(4)))
}

func TestFolderDatasetUnknownLabel(t *testing.T) {
	root, reader := newFolder(t, "cat.mp4", "bird.mp4")
	_, err := NewFolderDataset(context.Background(), root, reader,
		WithLabelSet(labelset.FromMap(map[string]int{"cat.mp4": 0})))
	assert.ErrorIs(t, err, entity.ErrLookup)
}

func TestFolderDatasetMissingRoot(t *testing.T) {
	_, err := NewFolderDataset(context.Background(), filepath.Join(t.TempDir(), "nope"), &fakeReader{})
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

// writeCollage saves a 4-per-row collage of 4px tiles with `filled` coloured
// tiles followed by black padding.
func writeCollage(t *testing.T, path string, filled, rows int) {
	t.Helper()
	img := imaging.New(16, rows*4, color.Black)
	for i := 0; i < filled; i++ {
		tile := imaging.New(4, 4, color.NRGBA{R: uint8(10 * (i + 1)), A: 255})
		img = imaging.Paste(img, tile, image.Pt((i%4)*4, (i/4)*4))
	}
	require.NoError(t, imaging.Save(img, path))
}

func TestCollageDataset(t *testing.T) {
	root := t.TempDir()
	writeCollage(t, filepath.Join(root, "a.png"), 5, 2)
	meta := filepath.Join(root, "meta.txt")
	writeFile(t, meta, "a.png 3\nclip.mp4 1\n")

	full, err := sampler.NewFullVideo(1)
	require.NoError(t, err)
	ds, err := NewCollageDataset(root, meta,
		WithTilesPerRow(4),
		WithSampler(full),
		WithTransform(transform.NewCompose()))
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())

	ex, err := ds.Get(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, ex.Label.Equal(entity.SingleLabel(3)))
	require.Len(t, ex.Clip.Frames, 5)
	for i, f := range ex.Clip.Frames {
		assert.Equal(t, 4, f.Bounds().Dx())
		assert.Equal(t, uint8(10*(i+1)), redOf(f))
	}
}

func TestCollageDatasetDefaultTensor(t *testing.T) {
	root := t.TempDir()
	writeCollage(t, filepath.Join(root, "a.png"), 8, 2)
	meta := filepath.Join(root, "meta.txt")
	writeFile(t, meta, "a.png 0\n")

	ds, err := NewCollageDataset(root, meta, WithTilesPerRow(4))
	require.NoError(t, err)

	ex, err := ds.Get(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, ex.Indices)
	assert.Equal(t, []int{3, 8, 4, 4}, ex.Clip.Tensor.Shape())
}

func TestCollageDatasetInvalidTiles(t *testing.T) {
	root := t.TempDir()
	meta := filepath.Join(root, "meta.txt")
	writeFile(t, meta, "a.png 0\n")
	_, err := NewCollageDataset(root, meta, WithTilesPerRow(-1))
	assert.ErrorIs(t, err, entity.ErrInvalidParam)

	ds, err := NewCollageDataset(root, meta)
	require.NoError(t, err)
	_, err = ds.Get(context.Background(), 0)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestTileReaderPartialEdges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheet.png")
	// 18x10 with 4 tiles per row: 4px tiles on a 5x3 grid, the last column
	// and row overhanging the sheet.
	img := imaging.New(18, 10, color.Black)
	for i := 0; i < 10; i++ {
		tile := imaging.New(4, 4, color.NRGBA{R: uint8(10 * (i + 1)), A: 255})
		img = imaging.Paste(img, tile, image.Pt((i%5)*4, (i/5)*4))
	}
	img = imaging.Paste(img, imaging.New(2, 2, color.NRGBA{G: 200, A: 255}), image.Pt(0, 8))
	require.NoError(t, imaging.Save(img, path))

	sheet, err := (&TileReader{PerRow: 4}).Open(path)
	require.NoError(t, err)
	// rows: 5 + 5 + 1 (partial), the blank rest of the last row is dropped
	require.Equal(t, 11, sheet.Len())

	tile, err := sheet.Tile(10)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), tile.Bounds())
	assert.Equal(t, color.NRGBA{G: 200, A: 255}, color.NRGBAModel.Convert(tile.At(1, 1)))
	assert.Equal(t, color.NRGBA{A: 255}, color.NRGBAModel.Convert(tile.At(3, 3)))

	// the overhanging column is padded with black
	edge, err := sheet.Tile(4)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), edge.Bounds())
	assert.Equal(t, color.NRGBA{R: 50, A: 255}, color.NRGBAModel.Convert(edge.At(1, 1)))
	assert.Equal(t, color.NRGBA{A: 255}, color.NRGBAModel.Convert(edge.At(3, 3)))

	_, err = sheet.Tile(11)
	assert.ErrorIs(t, err, entity.ErrLookup)
}

func TestCollageOpenDecodesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	writeCollage(t, path, 6, 2)

	sheet, err := (&TileReader{PerRow: 4}).Open(path)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	n, err := sheet.CountFrames(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	frames, err := sheet.LoadFrames(context.Background(), path, []int{5, 0})
	require.NoError(t, err)
	assert.Equal(t, uint8(60), redOf(frames[0]))
	assert.Equal(t, uint8(10), redOf(frames[1]))
}

func TestLoaderConcurrentGet(t *testing.T) {
	root := t.TempDir()
	rs, err := recordset.Parse(strings.NewReader("a 30 0\n"), "meta.txt",
		recordset.WithLayout(recordset.LayoutPathFramesLabel))
	require.NoError(t, err)
	reader := &fakeReader{frames: map[string]int{filepath.Join(root, "a"): 30}}
	crop, err := sampler.NewTemporalCrop(5, sampler.WithSeed(1))
	require.NoError(t, err)
	ds, err := NewRecordDataset(root, rs, reader, WithSampler(crop))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ex, err := ds.Get(context.Background(), 0)
			assert.NoError(t, err)
			assert.Len(t, ex.Indices, 5)
		}()
	}
	wg.Wait()
}
