package parser

import (
	"regexp"
	"strings"
)

// 只扫描前几个文本块
const metadataBlocks = 5

var (
	editionPattern = regexp.MustCompile(`(?i)(\d+(?:st|nd|rd|th)?\s+Edition)`)
	versionPattern = regexp.MustCompile(`(?i)\bVersion\s+(\d+(?:\.\d+)*)`)
	yearPattern    = regexp.MustCompile(`(20\d{2})`)
	publishers     = []string{"IICRC", "Standards Australia"}
)

// ExtractMetadata scans the leading blocks for edition, version, year and
// publisher. Unmatched fields stay empty.
func ExtractMetadata(blocks []string) Metadata {
	if len(blocks) > metadataBlocks {
		blocks = blocks[:metadataBlocks]
	}
	combined := strings.Join(blocks, " ")

	var md Metadata
	if m := editionPattern.FindStringSubmatch(combined); m != nil {
		md.Edition = m[1]
	}
	if m := versionPattern.FindStringSubmatch(combined); m != nil {
		md.Version = m[1]
	}
	if m := yearPattern.FindStringSubmatch(combined); m != nil {
		md.PublicationYear = m[1]
	}
	for _, p := range publishers {
		if strings.Contains(combined, p) {
			md.Publisher = p
			break
		}
	}
	return md
}
