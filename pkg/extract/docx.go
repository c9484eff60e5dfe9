package extract

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/cometwk/standards/pkg/parser"
	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

const maxHeadingLevel = 9

var headingName = regexp.MustCompile(`(?i)^heading\s*(\d*)$`)

// ReadDocx returns the body paragraphs of a .docx file in document order,
// with heading levels taken from paragraph styles ("Heading N") or outline
// levels. Paragraphs inside tables are skipped.
func ReadDocx(path string) ([]parser.Paragraph, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrap(err, "open docx")
	}
	defer zr.Close()

	var doc, styles *zip.File
	for _, f := range zr.File {
		switch f.Name {
		case "word/document.xml":
			doc = f
		case "word/styles.xml":
			styles = f
		}
	}
	if doc == nil {
		return nil, errors.New("word/document.xml not found")
	}

	levels := map[string]int{}
	if styles != nil {
		rc, err := styles.Open()
		if err != nil {
			return nil, errors.Wrap(err, "open styles")
		}
		levels, err = readStyleLevels(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
	}

	rc, err := doc.Open()
	if err != nil {
		return nil, errors.Wrap(err, "open document")
	}
	defer rc.Close()
	return readParagraphs(rc, levels)
}

// readStyleLevels maps styleId to heading level for heading styles.
func readStyleLevels(r io.Reader) (map[string]int, error) {
	levels := map[string]int{}
	d := xml.NewDecoder(r)
	var (
		id      string
		name    string
		outline = -1
	)
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return levels, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "parse styles")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "style":
				id, name, outline = attr(t, "styleId"), "", -1
			case "name":
				name = attr(t, "val")
			case "outlineLvl":
				if n, err := strconv.Atoi(attr(t, "val")); err == nil {
					outline = n
				}
			}
		case xml.EndElement:
			if t.Name.Local == "style" && id != "" {
				if lvl := styleLevel(name, id, outline); lvl > 0 {
					levels[id] = lvl
				}
			}
		}
	}
}

func styleLevel(name, id string, outline int) int {
	for _, s := range []string{name, id} {
		if m := headingName.FindStringSubmatch(s); m != nil {
			if m[1] == "" {
				return 1
			}
			if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 {
				return n
			}
		}
	}
	if outline >= 0 && outline < maxHeadingLevel {
		return outline + 1
	}
	return 0
}

func readParagraphs(r io.Reader, levels map[string]int) ([]parser.Paragraph, error) {
	d := xml.NewDecoder(r)
	var (
		out      []parser.Paragraph
		text     strings.Builder
		inPara   bool
		tblDepth int
		style    string
		outline  = -1
	)
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "parse document")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tblDepth++
			case "p":
				if tblDepth == 0 {
					inPara, style, outline = true, "", -1
					text.Reset()
				}
			case "pStyle":
				style = attr(t, "val")
			case "outlineLvl":
				if n, err := strconv.Atoi(attr(t, "val")); err == nil {
					outline = n
				}
			case "t":
				if inPara {
					var s string
					if err := d.DecodeElement(&s, &t); err != nil {
						return nil, errors.Wrap(err, "parse text run")
					}
					text.WriteString(s)
				}
			case "tab":
				if inPara {
					text.WriteByte('\t')
				}
			case "br", "cr":
				if inPara {
					text.WriteByte(' ')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tbl":
				tblDepth--
			case "p":
				if inPara && tblDepth == 0 {
					lvl := levels[style]
					if lvl == 0 && outline >= 0 && outline < maxHeadingLevel {
						lvl = outline + 1
					}
					out = append(out, parser.Paragraph{
						Text:         norm.NFC.String(text.String()),
						HeadingLevel: lvl,
					})
					inPara = false
				}
			}
		}
	}
}

func attr(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
