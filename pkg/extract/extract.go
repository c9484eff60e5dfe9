// Package extract turns a downloaded document into parser input and runs
// the structure parser over it. Format is chosen from the MIME type; when
// the type is missing or generic the file content is sniffed.
package extract

import (
	"strings"

	"github.com/cometwk/standards/pkg/parser"
	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
)

var xlog = logrus.WithField("module", "extract")

// Kind maps a MIME type to a parser type, or "" when unsupported.
func Kind(mimeType string) string {
	m := strings.ToLower(mimeType)
	switch {
	case strings.Contains(m, "pdf"):
		return parser.TypePDF
	case strings.Contains(m, "document") || strings.Contains(m, "docx"):
		return parser.TypeDocx
	case strings.Contains(m, "text") || strings.Contains(m, "plain"):
		return parser.TypeText
	}
	return ""
}

func generic(mimeType string) bool {
	m := strings.ToLower(strings.TrimSpace(mimeType))
	return m == "" || m == "application/octet-stream" || m == "binary/octet-stream"
}

// Detect sniffs the MIME type from the file content.
func Detect(path string) string {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return ""
	}
	return mt.String()
}

// Parse extracts and parses the document at path. It never fails: an
// unsupported type or any extraction error yields parser.Empty().
func Parse(path, mimeType string) (out parser.Structure) {
	log := xlog.WithField("path", path)
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("解析文档异常: %v", r)
			out = parser.Empty()
		}
	}()

	if generic(mimeType) {
		mimeType = Detect(path)
	}

	switch kind := Kind(mimeType); kind {
	case parser.TypePDF:
		lines, pages, err := ReadPDF(path)
		if err != nil {
			log.WithError(err).Error("读取 PDF 失败")
			return parser.Empty()
		}
		out = parser.ParseLines(lines)
		out.Type = kind
		out.TotalPages = pages
	case parser.TypeDocx:
		paras, err := ReadDocx(path)
		if err != nil {
			log.WithError(err).Error("读取 DOCX 失败")
			return parser.Empty()
		}
		out = parser.ParseParagraphs(paras)
		out.Type = kind
	case parser.TypeText:
		lines, err := ReadText(path)
		if err != nil {
			log.WithError(err).Error("读取文本失败")
			return parser.Empty()
		}
		out = parser.ParseLines(lines)
		out.Type = kind
	default:
		log.Warnf("不支持的 MIME 类型: %s", mimeType)
		return parser.Empty()
	}
	log.Infof("解析完成: %d sections, %d clauses", len(out.Sections), len(out.Clauses))
	return out
}
