package dataset

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/fiapx/fiapx-video-datasets/internal/domain/entity"
	"github.com/fiapx/fiapx-video-datasets/internal/infra/metrics"
	"github.com/fiapx/fiapx-video-datasets/internal/recordset"
	"github.com/fiapx/fiapx-video-datasets/internal/sampler"
	"go.uber.org/zap"
)

// DefaultTilesPerRow is the collage width in tiles.
const DefaultTilesPerRow = 8

// ImageExtensions are the collage files kept from the metadata.
var ImageExtensions = []string{".png", ".jpg", ".jpeg"}

// CollageDataset serves videos stored as sprite sheets: square tiles laid
// out row by row, each tile one frame. Metadata lines are "filename label".
type CollageDataset struct {
	root    string
	records []entity.VideoRecord
	tiles   *TileReader
	loader  *Loader
}

func NewCollageDataset(root, metafile string, opts ...Option) (*CollageDataset, error) {
	o, err := applyOptions(opts, func() (sampler.Sampler, error) {
		return sampler.NewClip(sampler.ClipConfig{NumFrames: 8})
	})
	if err != nil {
		return nil, err
	}
	if o.tilesInRow == 0 {
		o.tilesInRow = DefaultTilesPerRow
	}
	if o.tilesInRow < 0 {
		return nil, fmt.Errorf("%w: tiles per row must be positive, got %d", entity.ErrInvalidParam, o.tilesInRow)
	}

	rs, err := recordset.Load(metafile, recordset.WithLayout(recordset.LayoutPathLabel))
	if err != nil {
		return nil, err
	}
	d := &CollageDataset{root: root}
	for _, rec := range rs.Records() {
		if hasExtension(rec.Path, ImageExtensions) {
			d.records = append(d.records, rec)
		}
	}
	o.logger.Info("collage dataset ready",
		zap.String("root", root),
		zap.Int("collages", len(d.records)),
		zap.Int("skipped", rs.Len()-len(d.records)),
	)
	d.tiles = &TileReader{PerRow: o.tilesInRow}
	d.loader = NewLoader("collage", d.tiles, o.sampler, o.pipeline, o.logger)
	return d, nil
}

func (d *CollageDataset) Len() int { return len(d.records) }

func (d *CollageDataset) Get(ctx context.Context, index int) (Example, error) {
	if err := checkIndex(index, len(d.records)); err != nil {
		return Example{}, err
	}
	rec := d.records[index]
	path := filepath.Join(d.root, rec.Path)
	sheet, err := d.tiles.Open(path)
	if err != nil {
		metrics.ExamplesLoadedTotal.WithLabelValues("collage", "error").Inc()
		return Example{}, err
	}
	return d.loader.loadFrom(ctx, sheet, path, sheet.Len(), rec.Label)
}

// TileReader reads frames out of collage images. Tiles are squares of side
// width/PerRow laid out row by row; tiles overhanging the right or bottom
// edge are padded with black, and trailing all-black tiles are dropped.
type TileReader struct {
	PerRow int
}

// Open decodes the collage at path once so its tiles can be counted and
// loaded without reading the file again.
func (r *TileReader) Open(path string) (*Collage, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open collage: %w", err)
	}
	c, err := r.split(img)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (r *TileReader) CountFrames(_ context.Context, path string) (int, error) {
	c, err := r.Open(path)
	if err != nil {
		return 0, err
	}
	return c.Len(), nil
}

func (r *TileReader) LoadFrames(ctx context.Context, path string, indices []int) ([]image.Image, error) {
	c, err := r.Open(path)
	if err != nil {
		return nil, err
	}
	return c.LoadFrames(ctx, path, indices)
}

func (r *TileReader) split(img image.Image) (*Collage, error) {
	b := img.Bounds()
	size := b.Dx() / r.PerRow
	if size == 0 {
		return nil, fmt.Errorf("%w: collage %dpx wide cannot hold %d tiles", entity.ErrInvalidParam, b.Dx(), r.PerRow)
	}
	c := &Collage{img: img, size: size}
	for y := 0; y < b.Dy(); y += size {
		for x := 0; x < b.Dx(); x += size {
			origin := b.Min.Add(image.Pt(x, y))
			c.tiles = append(c.tiles, image.Rectangle{Min: origin, Max: origin.Add(image.Pt(size, size))})
		}
	}
	for len(c.tiles) > 0 && isBlank(img, c.tiles[len(c.tiles)-1]) {
		c.tiles = c.tiles[:len(c.tiles)-1]
	}
	return c, nil
}

// Collage is one decoded sprite sheet. It serves as the VideoReader of a
// single example, so the path arguments of its reader methods are ignored.
type Collage struct {
	img   image.Image
	size  int
	tiles []image.Rectangle
}

func (c *Collage) Len() int { return len(c.tiles) }

// Tile returns frame i, padded with black to a full square when the tile
// overhangs the sheet.
func (c *Collage) Tile(i int) (image.Image, error) {
	if i < 0 || i >= len(c.tiles) {
		return nil, fmt.Errorf("%w: tile %d out of range [0, %d)", entity.ErrLookup, i, len(c.tiles))
	}
	tile := imaging.Crop(c.img, c.tiles[i])
	if tile.Bounds().Dx() == c.size && tile.Bounds().Dy() == c.size {
		return tile, nil
	}
	return imaging.Paste(imaging.New(c.size, c.size, color.Black), tile, image.Pt(0, 0)), nil
}

func (c *Collage) CountFrames(context.Context, string) (int, error) { return c.Len(), nil }

func (c *Collage) LoadFrames(_ context.Context, _ string, indices []int) ([]image.Image, error) {
	frames := make([]image.Image, len(indices))
	for i, idx := range indices {
		tile, err := c.Tile(idx)
		if err != nil {
			return nil, err
		}
		frames[i] = tile
	}
	return frames, nil
}

func isBlank(img image.Image, rect image.Rectangle) bool {
	tile := imaging.Crop(img, rect)
	for i := 0; i < len(tile.Pix); i += 4 {
		if tile.Pix[i]|tile.Pix[i+1]|tile.Pix[i+2] != 0 {
			return false
		}
	}
	return true
}
