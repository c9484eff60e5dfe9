package extract

import (
	"os"
	"strings"
	"unicode/utf8"

	"github.com/cometwk/standards/pkg/parser"
	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

// ReadText reads a UTF-8 text file as a flat line stream without pages.
func ReadText(path string) ([]parser.Line, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, errors.New("text file is not valid utf-8")
	}
	return SplitLines(string(data), 0), nil
}

// SplitLines normalizes s to NFC and splits it into lines tagged with page.
func SplitLines(s string, page int) []parser.Line {
	s = strings.TrimPrefix(s, "\ufeff")
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	raw := strings.Split(s, "\n")
	out := make([]parser.Line, 0, len(raw))
	for _, l := range raw {
		out = append(out, parser.Line{Text: l, Page: page})
	}
	return out
}
