package entity

import (
	"slices"
	"strconv"
	"strings"
)

// LabelKind tells which variant a Label holds.
type LabelKind int

const (
	// LabelNone is the absent label emitted in unlabeled mode.
	LabelNone LabelKind = iota
	LabelSingle
	LabelMulti
)

// Label is either a single class code, a set of class codes, or absent.
type Label struct {
	kind  LabelKind
	code  int
	codes []int
}

// NoLabel is the sentinel for datasets built without a label source.
var NoLabel = Label{}

func SingleLabel(code int) Label {
	return Label{kind: LabelSingle, code: code}
}

// MultiLabel builds a label set. Codes are deduplicated and sorted.
func MultiLabel(codes ...int) Label {
	set := slices.Clone(codes)
	slices.Sort(set)
	return Label{kind: LabelMulti, codes: slices.Compact(set)}
}

func (l Label) Kind() LabelKind { return l.kind }

func (l Label) Present() bool { return l.kind != LabelNone }

// Code returns the single class code. ok is false for other variants.
func (l Label) Code() (code int, ok bool) {
	return l.code, l.kind == LabelSingle
}

// Codes returns a copy of the label set, sorted ascending.
func (l Label) Codes() []int {
	if l.kind == LabelSingle {
		return []int{l.code}
	}
	return slices.Clone(l.codes)
}

func (l Label) Equal(o Label) bool {
	return l.kind == o.kind && l.code == o.code && slices.Equal(l.codes, o.codes)
}

func (l Label) String() string {
	switch l.kind {
	case LabelSingle:
		return strconv.Itoa(l.code)
	case LabelMulti:
		parts := make([]string, len(l.codes))
		for i, c := range l.codes {
			parts[i] = strconv.Itoa(c)
		}
		return "{" + strings.Join(parts, ",") + "}"
	}
	return "<none>"
}

// VideoRecord is one immutable metadata entry. NumFrames is zero when the
// metadata layout does not carry a frame count. Categories keeps the raw tokens
// of multi-label records in file order.
type VideoRecord struct {
	Path       string
	NumFrames  int
	Label      Label
	Categories []string
}

// HasFrameCount reports whether the record carries a frame count.
func (r VideoRecord) HasFrameCount() bool { return r.NumFrames > 0 }
