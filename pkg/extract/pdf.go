package extract

import (
	"strings"

	"github.com/cometwk/standards/pkg/parser"
	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
)

// ReadPDF returns the text of every page as lines tagged with the 1-based
// page number, plus the page count.
func ReadPDF(path string) (lines []parser.Line, pages int, err error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, 0, errors.Wrap(err, "open pdf")
	}
	defer f.Close()

	pages = r.NumPage()
	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			return nil, pages, errors.Wrapf(err, "page %d", i)
		}
		for _, row := range rows {
			if text := joinRow(row.Content); strings.TrimSpace(text) != "" {
				lines = append(lines, SplitLines(text, i)...)
			}
		}
	}
	return lines, pages, nil
}

// joinRow concatenates the text runs of one row, inserting a space where
// the horizontal gap between runs is wider than a fraction of the font size.
func joinRow(texts pdf.TextHorizontal) string {
	var b strings.Builder
	for i, t := range texts {
		if i > 0 {
			prev := texts[i-1]
			gap := t.X - (prev.X + prev.W)
			if gap > prev.FontSize*0.15 && !strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(t.S, " ") {
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.S)
	}
	return b.String()
}
