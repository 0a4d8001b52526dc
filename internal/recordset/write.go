package recordset

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fiapx/fiapx-video-datasets/internal/domain/entity"
)

// WriteTo writes the records back in the layout and separator they were
// parsed with. The configured extension suffix is removed from paths and
// multi-label tokens keep their original order and field split.
func (rs *RecordSet) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for i, rec := range rs.records {
		line, err := rs.formatRecord(i, rec)
		if err != nil {
			return n, fmt.Errorf("format record %d: %w", i, err)
		}
		written, err := bw.WriteString(line + "\n")
		n += int64(written)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

func (rs *RecordSet) formatRecord(i int, rec entity.VideoRecord) (string, error) {
	path := strings.TrimSuffix(rec.Path, rs.cfg.extension)
	switch rs.cfg.layout {
	case LayoutPathLabel:
		code, ok := rec.Label.Code()
		if !ok {
			return "", fmt.Errorf("record %q has no single label", rec.Path)
		}
		return strings.Join([]string{path, strconv.Itoa(code)}, rs.cfg.sep), nil
	case LayoutPathFramesLabel:
		code, ok := rec.Label.Code()
		if !ok {
			return "", fmt.Errorf("record %q has no single label", rec.Path)
		}
		return strings.Join([]string{path, strconv.Itoa(rec.NumFrames), strconv.Itoa(code)}, rs.cfg.sep), nil
	case LayoutMultiLabel:
		return path + rs.cfg.sep + strings.Join(rs.categoryFields[i], rs.cfg.sep), nil
	}
	return "", fmt.Errorf("unsupported layout %v", rs.cfg.layout)
}
