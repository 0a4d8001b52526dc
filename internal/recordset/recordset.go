// Package recordset parses dataset metadata files into immutable, ordered
// video records.
package recordset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fiapx/fiapx-video-datasets/internal/domain/entity"
	"github.com/fiapx/fiapx-video-datasets/internal/labelset"
)

// Layout selects the column layout of a metadata file.
type Layout int

const (
	// LayoutPathLabel is `path label`.
	LayoutPathLabel Layout = iota
	// LayoutPathFramesLabel is `path num_frames label`.
	LayoutPathFramesLabel
	// LayoutMultiLabel is `path cat1,cat2,...`; tokens resolve through a label set.
	LayoutMultiLabel
)

const DefaultSeparator = " "

func (l Layout) String() string {
	switch l {
	case LayoutPathLabel:
		return "path-label"
	case LayoutPathFramesLabel:
		return "path-frames-label"
	case LayoutMultiLabel:
		return "multi-label"
	}
	return "unknown"
}

// ParseLayout accepts the names returned by Layout.String.
func ParseLayout(s string) (Layout, error) {
	for _, l := range []Layout{LayoutPathLabel, LayoutPathFramesLabel, LayoutMultiLabel} {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown layout %q", entity.ErrInvalidParam, s)
}

type config struct {
	layout    Layout
	sep       string
	extension string
	labels    labelset.LabelSet
}

type Option func(*config)

func WithLayout(l Layout) Option {
	return func(c *config) { c.layout = l }
}

// WithSeparator sets the single-character field separator.
func WithSeparator(sep string) Option {
	return func(c *config) { c.sep = sep }
}

// WithExtension appends a fixed suffix such as ".mp4" to every parsed path.
func WithExtension(ext string) Option {
	return func(c *config) { c.extension = ext }
}

// WithLabelSet resolves multi-label category tokens.
func WithLabelSet(ls labelset.LabelSet) Option {
	return func(c *config) { c.labels = ls }
}

// RecordSet is an ordered, read-only sequence of records built from one file.
type RecordSet struct {
	file    string
	cfg     config
	records []entity.VideoRecord
	// categoryFields keeps the label fields of multi-label lines as written,
	// so tokens split over several fields are written back the same way.
	categoryFields [][]string
}

// Load reads the metadata file at path. Any malformed line fails the whole
// load; no partial record set is returned.
func Load(path string, opts ...Option) (*RecordSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metadata file: %w", err)
	}
	defer f.Close()
	return Parse(f, path, opts...)
}

// Parse reads records from r; name is used in error messages.
func Parse(r io.Reader, name string, opts ...Option) (*RecordSet, error) {
	cfg := config{layout: LayoutPathLabel, sep: DefaultSeparator}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len([]rune(cfg.sep)) != 1 {
		return nil, fmt.Errorf("%w: separator must be a single character, got %q", entity.ErrInvalidParam, cfg.sep)
	}
	if cfg.layout == LayoutMultiLabel && cfg.labels == nil {
		return nil, fmt.Errorf("%w: multi-label layout requires a label set", entity.ErrInvalidParam)
	}

	rs := &RecordSet{file: name, cfg: cfg}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rec, err := cfg.parseLine(line)
		if err != nil {
			if errors.Is(err, entity.ErrLookup) {
				return nil, fmt.Errorf("%s:%d: %w", name, lineNo, err)
			}
			return nil, &entity.ParseError{File: name, Line: lineNo, Text: line, Err: err}
		}
		rs.records = append(rs.records, rec)
		if cfg.layout == LayoutMultiLabel {
			rs.categoryFields = append(rs.categoryFields, strings.Split(line, cfg.sep)[1:])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read metadata file: %w", err)
	}
	return rs, nil
}

func (c config) parseLine(line string) (entity.VideoRecord, error) {
	fields := strings.Split(line, c.sep)
	switch c.layout {
	case LayoutPathLabel:
		if len(fields) != 2 {
			return entity.VideoRecord{}, fieldCountError(2, len(fields))
		}
		label, err := strconv.Atoi(fields[1])
		if err != nil {
			return entity.VideoRecord{}, fmt.Errorf("non-numeric label %q", fields[1])
		}
		return entity.VideoRecord{Path: fields[0] + c.extension, Label: entity.SingleLabel(label)}, nil

	case LayoutPathFramesLabel:
		if len(fields) != 3 {
			return entity.VideoRecord{}, fieldCountError(3, len(fields))
		}
		numFrames, err := strconv.Atoi(fields[1])
		if err != nil {
			return entity.VideoRecord{}, fmt.Errorf("non-numeric frame count %q", fields[1])
		}
		if numFrames <= 0 {
			return entity.VideoRecord{}, fmt.Errorf("frame count must be positive, got %d", numFrames)
		}
		label, err := strconv.Atoi(fields[2])
		if err != nil {
			return entity.VideoRecord{}, fmt.Errorf("non-numeric label %q", fields[2])
		}
		return entity.VideoRecord{
			Path:      fields[0] + c.extension,
			NumFrames: numFrames,
			Label:     entity.SingleLabel(label),
		}, nil

	case LayoutMultiLabel:
		if len(fields) < 2 {
			return entity.VideoRecord{}, fieldCountError(2, len(fields))
		}
		var tokens []string
		for _, field := range fields[1:] {
			for _, tok := range strings.Split(field, ",") {
				if tok == "" {
					return entity.VideoRecord{}, fmt.Errorf("empty category token")
				}
				tokens = append(tokens, tok)
			}
		}
		codes := make([]int, len(tokens))
		for i, tok := range tokens {
			code, err := c.labels.Lookup(tok)
			if err != nil {
				return entity.VideoRecord{}, err
			}
			codes[i] = code
		}
		return entity.VideoRecord{
			Path:       fields[0] + c.extension,
			Label:      entity.MultiLabel(codes...),
			Categories: tokens,
		}, nil
	}
	return entity.VideoRecord{}, fmt.Errorf("unsupported layout %v", c.layout)
}

func fieldCountError(want, got int) error {
	return fmt.Errorf("expected %d fields, got %d", want, got)
}

func (rs *RecordSet) Len() int { return len(rs.records) }

// Get returns the record at index.
func (rs *RecordSet) Get(index int) (entity.VideoRecord, error) {
	if index < 0 || index >= len(rs.records) {
		return entity.VideoRecord{}, fmt.Errorf("%w: record index %d out of range [0, %d)", entity.ErrLookup, index, len(rs.records))
	}
	return rs.records[index], nil
}

// Records returns a copy of all records in file order.
func (rs *RecordSet) Records() []entity.VideoRecord {
	out := make([]entity.VideoRecord, len(rs.records))
	copy(out, rs.records)
	return out
}

func (rs *RecordSet) File() string { return rs.file }

func (rs *RecordSet) Layout() Layout { return rs.cfg.layout }
