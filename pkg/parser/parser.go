// Package parser rebuilds a section/clause hierarchy from extracted
// document text. It is a best-effort heuristic, not a grammar.
//
// Two input shapes are supported: a flat stream of lines (PDF, plain text)
// and a stream of paragraphs annotated with heading levels (word processor
// documents). Neither function returns an error; an internal failure yields
// Empty().
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

var xlog = logrus.WithField("module", "parser")

// GeneralBucket collects clauses seen before any section.
const GeneralBucket = "general"

const (
	TypePDF     = "pdf"
	TypeDocx    = "docx"
	TypeText    = "text"
	TypeUnknown = "unknown"
)

// Line is one line of flat input. Page is 0 when unknown.
type Line struct {
	Text string
	Page int
}

// Paragraph is one paragraph of heading-annotated input. HeadingLevel is 0
// for body text and >= 1 for headings.
type Paragraph struct {
	Text         string
	HeadingLevel int
}

type Section struct {
	// Key identifies the section within one document: its number, or
	// "heading-N" for an unnumbered heading.
	Key         string `json:"key"`
	Number      string `json:"number"`
	Title       string `json:"title"`
	Level       int    `json:"level"`
	Content     string `json:"content"`
	Page        int    `json:"page,omitempty"`
	ParentKey   string `json:"parentKey,omitempty"`
	ClauseCount int    `json:"clauseCount"`
}

type Clause struct {
	Number     string `json:"number"`
	Title      string `json:"title,omitempty"`
	Content    string `json:"content"`
	SectionKey string `json:"sectionKey,omitempty"`
	Page       int    `json:"page,omitempty"`
	Category   string `json:"category"`
	Importance string `json:"importance"`
}

type Metadata struct {
	Edition         string `json:"edition,omitempty"`
	Version         string `json:"version,omitempty"`
	PublicationYear string `json:"publicationYear,omitempty"`
	Publisher       string `json:"publisher,omitempty"`
}

type Structure struct {
	Type         string         `json:"type"`
	TotalPages   int            `json:"totalPages,omitempty"`
	FullText     string         `json:"fullText"`
	Sections     []Section      `json:"sections"`
	Clauses      []Clause       `json:"clauses"`
	ClauseCounts map[string]int `json:"clauseCountsBySection,omitempty"`
	Metadata     Metadata       `json:"metadata"`
}

// Empty is the result for unsupported or unreadable documents.
func Empty() Structure {
	return Structure{
		Type:     TypeUnknown,
		Sections: []Section{},
		Clauses:  []Clause{},
	}
}

func (s Structure) IsEmpty() bool {
	return len(s.Sections) == 0 && len(s.Clauses) == 0
}

var (
	sectionPattern = regexp.MustCompile(`(?i)^(Chapter|Section|Part)\s+(\d+)`)
	headingNumber  = regexp.MustCompile(`^(\d+(\.\d+)*)`)
	headingPrefix  = regexp.MustCompile(`^[\d.\s]+`)
)

// ParseLines parses flat input. A "Chapter|Section|Part N" line opens a
// level-1 section; a line with a leading dotted number becomes a clause of
// the most recent section, which carries across page boundaries.
func ParseLines(lines []Line) (out Structure) {
	defer recoverEmpty(&out)

	var (
		b       builder
		current = -1
		text    = make([]string, 0, len(lines))
	)
	for _, l := range lines {
		text = append(text, l.Text)
		line := strings.TrimSpace(l.Text)
		if line == "" {
			continue
		}
		if m := sectionPattern.FindStringSubmatch(line); m != nil {
			current = b.addSection(Section{
				Number:  m[2],
				Title:   line,
				Level:   1,
				Content: line,
				Page:    l.Page,
			})
			continue
		}
		if c, ok := parseClause(line); ok {
			c.Page = l.Page
			b.addClause(c, current)
		}
	}

	out = b.build()
	out.FullText = strings.Join(text, "\n")
	out.Metadata = ExtractMetadata(pageBlocks(lines))
	return out
}

// ParseParagraphs parses heading-annotated input. Headings become sections
// nested by level; numbered body paragraphs become clauses of the most
// recent heading.
func ParseParagraphs(paras []Paragraph) (out Structure) {
	defer recoverEmpty(&out)

	var (
		b       builder
		current = -1
		text    []string
	)
	for _, p := range paras {
		t := strings.TrimSpace(p.Text)
		if t == "" {
			continue
		}
		text = append(text, t)

		if p.HeadingLevel > 0 {
			current = b.addSection(Section{
				Number:  headingNumber.FindString(t),
				Title:   strings.TrimSpace(headingPrefix.ReplaceAllString(t, "")),
				Level:   p.HeadingLevel,
				Content: t,
			})
			continue
		}
		if c, ok := parseClause(t); ok {
			b.addClause(c, current)
		}
	}

	out = b.build()
	out.FullText = strings.Join(text, "\n")
	out.Metadata = ExtractMetadata(text)
	return out
}

func recoverEmpty(out *Structure) {
	if r := recover(); r != nil {
		xlog.Errorf("解析失败, 返回空结构: %v", r)
		*out = Empty()
	}
}

// builder assembles sections and clauses. Parent links come from a stack of
// open headings indexed by level.
type builder struct {
	sections []Section
	clauses  []Clause
	stack    []int
	unnamed  int
}

func (b *builder) addSection(s Section) int {
	s.Key = s.Number
	if s.Key == "" {
		b.unnamed++
		s.Key = fmt.Sprintf("heading-%d", b.unnamed)
	}
	if s.Level < 1 {
		s.Level = 1
	}

	for len(b.stack) > 0 && b.sections[b.stack[len(b.stack)-1]].Level >= s.Level {
		b.stack = b.stack[:len(b.stack)-1]
	}
	if len(b.stack) > 0 {
		if parent := b.sections[b.stack[len(b.stack)-1]].Key; parent != s.Key {
			s.ParentKey = parent
		}
	}

	b.sections = append(b.sections, s)
	idx := len(b.sections) - 1
	b.stack = append(b.stack, idx)
	return idx
}

func (b *builder) addClause(c Clause, section int) {
	if section >= 0 {
		c.SectionKey = b.sections[section].Key
	}
	b.clauses = append(b.clauses, c)
}

func (b *builder) build() Structure {
	counts := make(map[string]int)
	for _, c := range b.clauses {
		key := c.SectionKey
		if key == "" {
			key = GeneralBucket
		}
		counts[key]++
	}
	sections := b.sections
	if sections == nil {
		sections = []Section{}
	}
	for i := range sections {
		sections[i].ClauseCount = counts[sections[i].Key]
	}
	clauses := b.clauses
	if clauses == nil {
		clauses = []Clause{}
	}
	return Structure{
		Sections:     sections,
		Clauses:      clauses,
		ClauseCounts: counts,
	}
}

// pageBlocks groups consecutive lines of the same page into one block.
func pageBlocks(lines []Line) []string {
	var (
		blocks []string
		cur    []string
		page   = -1
	)
	for _, l := range lines {
		if l.Page != page && cur != nil {
			blocks = append(blocks, strings.Join(cur, "\n"))
			cur = nil
		}
		page = l.Page
		cur = append(cur, l.Text)
	}
	if cur != nil {
		blocks = append(blocks, strings.Join(cur, "\n"))
	}
	return blocks
}
