// Package pdftext recovers the text layer of a PDF document.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	ErrEmptyDocument = errors.New("empty pdf document")
	ErrMalformed     = errors.New("malformed pdf document")
)

// Extractor turns PDF bytes into plain text.
type Extractor interface {
	Text(ctx context.Context, data []byte) (string, error)
}

// Reader is the ledongthuc/pdf backed Extractor. Every text row becomes its
// own line and pages are separated by a newline, so line-oriented parsers see
// the slip's layout.
type Reader struct {
	logger *slog.Logger
}

var _ Extractor = (*Reader)(nil)

func New(logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{logger: logger}
}

// Text reads every page. The parser panics on some malformed inputs; those
// panics are turned into ErrMalformed.
func (r *Reader) Text(ctx context.Context, data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", ErrEmptyDocument
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.WarnContext(ctx, "pdf parser panicked", slog.Any("panic", rec))
			text, err = "", fmt.Errorf("%w: %v", ErrMalformed, rec)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var b strings.Builder
	for i := 1; i <= doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		b.WriteString(layoutRows(page.Content().Text))
		b.WriteByte('\n')
	}

	return b.String(), nil
}

// layoutRows rebuilds reading order from positioned glyphs: top to bottom,
// then left to right. Glyphs whose baselines sit within half a font size of
// each other share a row; a horizontal gap wider than a third of the font
// size becomes a space.
func layoutRows(glyphs []pdf.Text) string {
	if len(glyphs) == 0 {
		return ""
	}

	sorted := make([]pdf.Text, len(glyphs))
	copy(sorted, glyphs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y > sorted[j].Y })

	var rows [][]pdf.Text
	for _, g := range sorted {
		if n := len(rows); n > 0 && math.Abs(rows[n-1][0].Y-g.Y) <= rowTolerance(g) {
			rows[n-1] = append(rows[n-1], g)
			continue
		}
		rows = append(rows, []pdf.Text{g})
	}

	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		sort.SliceStable(row, func(x, y int) bool { return row[x].X < row[y].X })
		for j, g := range row {
			if j > 0 {
				prev := row[j-1]
				gap := g.X - (prev.X + prev.W)
				if gap > g.FontSize/3 && !strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(g.S, " ") {
					b.WriteByte(' ')
				}
			}
			b.WriteString(g.S)
		}
	}
	return b.String()
}

func rowTolerance(g pdf.Text) float64 {
	return math.Max(1, g.FontSize/2)
}
