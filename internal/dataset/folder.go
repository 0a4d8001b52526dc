package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/fiapx/fiapx-video-datasets/internal/domain/entity"
	"github.com/fiapx/fiapx-video-datasets/internal/domain/port"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultVideoExtensions are the file extensions a folder scan accepts.
var DefaultVideoExtensions = []string{".mp4", ".avi", ".mkv", ".mov", ".webm"}

type folderItem struct {
	id     string
	path   string
	frames int
	label  entity.Label
}

// FolderDataset serves every video file directly under a root directory.
// Frame counts are measured once at construction. Labels are keyed by file
// name, e.g. "video1.mp4". Without a label set the dataset runs unlabeled and
// every example carries entity.NoLabel.
type FolderDataset struct {
	root   string
	items  []folderItem
	loader *Loader
}

func NewFolderDataset(ctx context.Context, root string, reader port.VideoReader, opts ...Option) (*FolderDataset, error) {
	o, err := applyOptions(opts, fullVideo)
	if err != nil {
		return nil, err
	}
	exts := o.extensions
	if len(exts) == 0 {
		exts = DefaultVideoExtensions
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("scan dataset root: %w", err)
	}

	d := &FolderDataset{root: root}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !hasExtension(name, exts) {
			continue
		}
		if o.filter != nil && !o.filter(name) {
			continue
		}
		item := folderItem{
			id:    FileStem(name),
			path:  filepath.Join(root, name),
			label: entity.NoLabel,
		}
		if o.labels != nil {
			key := name
			if o.labelKey != nil {
				key = o.labelKey(name)
			}
			code, err := o.labels.Lookup(key)
			if err != nil {
				return nil, fmt.Errorf("label for %s: %w", name, err)
			}
			item.label = entity.SingleLabel(code)
		}
		if n, ok := countFromCounter(o.counter, name); ok {
			item.frames = n
		}
		d.items = append(d.items, item)
	}
	if err := d.measure(ctx, reader); err != nil {
		return nil, err
	}

	o.logger.Info("folder dataset ready",
		zap.String("root", root),
		zap.Int("videos", len(d.items)),
		zap.Bool("labeled", o.labels != nil),
	)
	d.loader = NewLoader("folder", reader, o.sampler, o.pipeline, o.logger)
	return d, nil
}

// measure probes the frame count of every item the counter did not cover.
func (d *FolderDataset) measure(ctx context.Context, reader port.VideoReader) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range d.items {
		it := &d.items[i]
		if it.frames > 0 {
			continue
		}
		g.Go(func() error {
			n, err := reader.CountFrames(ctx, it.path)
			if err != nil {
				return fmt.Errorf("count frames of %s: %w", filepath.Base(it.path), err)
			}
			it.frames = n
			return nil
		})
	}
	return g.Wait()
}

func countFromCounter(fc FrameCounter, name string) (int, bool) {
	if fc == nil {
		return 0, false
	}
	return fc(name)
}

func hasExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return slices.ContainsFunc(exts, func(e string) bool { return strings.ToLower(e) == ext })
}

func (d *FolderDataset) Len() int { return len(d.items) }

// VideoIDs returns the file names without extension, in dataset order.
func (d *FolderDataset) VideoIDs() []string {
	ids := make([]string, len(d.items))
	for i, it := range d.items {
		ids[i] = it.id
	}
	return ids
}

// FrameCount returns the frame count measured for the video at index.
func (d *FolderDataset) FrameCount(index int) (int, error) {
	if err := checkIndex(index, len(d.items)); err != nil {
		return 0, err
	}
	return d.items[index].frames, nil
}

func (d *FolderDataset) Get(ctx context.Context, index int) (Example, error) {
	if err := checkIndex(index, len(d.items)); err != nil {
		return Example{}, err
	}
	it := d.items[index]
	return d.loader.Load(ctx, it.path, it.frames, it.label)
}
