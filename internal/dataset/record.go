package dataset

import (
	"context"
	"path/filepath"

	"github.com/fiapx/fiapx-video-datasets/internal/domain/port"
	"github.com/fiapx/fiapx-video-datasets/internal/recordset"
	"go.uber.org/zap"
)

// RecordDataset serves the records of a RecordSet, resolving paths under root.
type RecordDataset struct {
	root    string
	records *recordset.RecordSet
	counter FrameCounter
	loader  *Loader
}

func NewRecordDataset(root string, records *recordset.RecordSet, reader port.VideoReader, opts ...Option) (*RecordDataset, error) {
	o, err := applyOptions(opts, fullVideo)
	if err != nil {
		return nil, err
	}
	o.logger.Info("record dataset ready",
		zap.String("root", root),
		zap.String("metafile", records.File()),
		zap.Stringer("layout", records.Layout()),
		zap.Int("records", records.Len()),
	)
	return &RecordDataset{
		root:    root,
		records: records,
		counter: o.counter,
		loader:  NewLoader("record", reader, o.sampler, o.pipeline, o.logger),
	}, nil
}

func (d *RecordDataset) Len() int { return d.records.Len() }

func (d *RecordDataset) Get(ctx context.Context, index int) (Example, error) {
	rec, err := d.records.Get(index)
	if err != nil {
		return Example{}, err
	}
	total := rec.NumFrames
	if !rec.HasFrameCount() && d.counter != nil {
		if n, ok := d.counter(rec.Path); ok {
			total = n
		}
	}
	return d.loader.Load(ctx, filepath.Join(d.root, rec.Path), total, rec.Label)
}
