package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClause(t *testing.T) {
	c, ok := parseClause("3.2.1 Hazard Control: Wear PPE at all times.")
	require.True(t, ok)
	assert.Equal(t, "3.2.1", c.Number)
	assert.Equal(t, "Hazard Control", c.Title)
	assert.Equal(t, "Wear PPE at all times.", c.Content)
	assert.Equal(t, CategorySafety, c.Category)
	assert.Equal(t, ImportanceRequired, c.Importance)
}

func TestParseClauseTitleRules(t *testing.T) {
	cases := []struct {
		name    string
		line    string
		number  string
		title   string
		content string
	}{
		{"尾随句点的编号", "4.1. Scope. This standard applies to water damage.", "4.1", "Scope", "This standard applies to water damage."},
		{"冒号优先于句点", "2.3 Drying. Goals: reach dry standard.", "2.3", "Drying. Goals", "reach dry standard."},
		{"无标题", "7 Restorers should use calibrated meters", "7", "", "Restorers should use calibrated meters"},
		{
			"句点超出 50 字符不拆分",
			"5.5 Restorers should evaluate the structure carefully before demolition begins.",
			"5.5", "", "Restorers should evaluate the structure carefully before demolition begins.",
		},
		{
			"冒号超出 100 字符不拆分, 回落到句点规则",
			"6.1 Short. " + strings.Repeat("a", 100) + ": tail",
			"6.1", "Short", strings.Repeat("a", 100) + ": tail",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, ok := parseClause(tc.line)
			require.True(t, ok)
			assert.Equal(t, tc.number, c.Number)
			assert.Equal(t, tc.title, c.Title)
			assert.Equal(t, tc.content, c.Content)
		})
	}

	_, ok := parseClause("Introduction to the standard")
	assert.False(t, ok)
	_, ok = parseClause("3.2.1")
	assert.False(t, ok, "number without body")
}

func TestInferImportance(t *testing.T) {
	assert.Equal(t, ImportanceRequired, InferImportance("Workers must avoid hazard zones."))
	assert.Equal(t, ImportanceCritical, InferImportance("Danger: live electrical circuits."))
	assert.Equal(t, ImportanceRecommended, InferImportance("Technicians should recommend a follow-up."))
	assert.Equal(t, ImportanceOptional, InferImportance("Optional sampling"))
	assert.Equal(t, ImportanceStandard, InferImportance("Scope of work"))
	// "at all times" 视为强制用语, 优先于 hazard
	assert.Equal(t, ImportanceRequired, InferImportance("Monitor hazard at all times"))
}

func TestInferCategory(t *testing.T) {
	assert.Equal(t, CategorySafety, InferCategory("Use PPE"))
	assert.Equal(t, CategoryEquipment, InferCategory("Place the Air Mover near walls"))
	assert.Equal(t, CategoryDocumentation, InferCategory("Keep a daily record"))
	assert.Equal(t, CategoryProcess, InferCategory("Follow this procedure"))
	assert.Equal(t, CategoryMoisture, InferCategory("Measure humidity"))
	assert.Equal(t, CategoryInspection, InferCategory("Inspect the site"))
	assert.Equal(t, CategoryGeneral, InferCategory("Scope"))
	// 优先级: Safety 先于 Equipment
	assert.Equal(t, CategorySafety, InferCategory("equipment safety"))
}

func TestParseLines(t *testing.T) {
	lines := []Line{
		{Text: "IICRC S500 Standard", Page: 1},
		{Text: "5th Edition 2021", Page: 1},
		{Text: "1.1 Purpose: general orientation", Page: 1},
		{Text: "Chapter 3 Safety and Health", Page: 2},
		{Text: "3.1 Hazard Control: Wear PPE at all times.", Page: 2},
		{Text: "   ", Page: 2},
		{Text: "3.2 Restorers should keep records.", Page: 3},
		{Text: "section 4 Equipment", Page: 3},
		{Text: "4.1 Dehumidifiers may be used", Page: 3},
	}
	s := ParseLines(lines)

	require.Len(t, s.Sections, 2)
	assert.Equal(t, "3", s.Sections[0].Number)
	assert.Equal(t, "Chapter 3 Safety and Health", s.Sections[0].Title)
	assert.Equal(t, 1, s.Sections[0].Level)
	assert.Equal(t, 2, s.Sections[0].Page)
	assert.Equal(t, 2, s.Sections[0].ClauseCount)
	assert.Equal(t, "4", s.Sections[1].Number)
	assert.Equal(t, 1, s.Sections[1].ClauseCount)
	assert.Empty(t, s.Sections[1].ParentKey)

	require.Len(t, s.Clauses, 4)
	assert.Empty(t, s.Clauses[0].SectionKey)
	assert.Equal(t, "3", s.Clauses[1].SectionKey)
	// 当前章节跨页延续
	assert.Equal(t, "3", s.Clauses[2].SectionKey)
	assert.Equal(t, 3, s.Clauses[2].Page)
	assert.Equal(t, "4", s.Clauses[3].SectionKey)
	assert.Equal(t, ImportanceOptional, s.Clauses[3].Importance)

	assert.Equal(t, map[string]int{GeneralBucket: 1, "3": 2, "4": 1}, s.ClauseCounts)

	assert.Equal(t, "5th Edition", s.Metadata.Edition)
	assert.Equal(t, "2021", s.Metadata.PublicationYear)
	assert.Equal(t, "IICRC", s.Metadata.Publisher)
	assert.Contains(t, s.FullText, "Chapter 3 Safety and Health")
}

func TestParseParagraphs(t *testing.T) {
	paras := []Paragraph{
		{Text: "Standards Australia AS 4849 2nd Edition"},
		{Text: "Introduction", HeadingLevel: 1},
		{Text: "1 Safety", HeadingLevel: 1},
		{Text: "1.1 Personal protection", HeadingLevel: 2},
		{Text: "1.1.1 Respirators: Workers must wear respirators."},
		{Text: "Some narrative paragraph without numbering."},
		{Text: "1.2 Site assessment", HeadingLevel: 2},
		{Text: "1.2.1 Inspect the structure"},
		{Text: "2 Drying", HeadingLevel: 1},
	}
	s := ParseParagraphs(paras)

	require.Len(t, s.Sections, 5)
	intro := s.Sections[0]
	assert.Equal(t, "", intro.Number)
	assert.Equal(t, "heading-1", intro.Key)
	assert.Equal(t, "Introduction", intro.Title)

	assert.Equal(t, "1", s.Sections[1].Key)
	assert.Equal(t, "Safety", s.Sections[1].Title)
	assert.Empty(t, s.Sections[1].ParentKey)

	assert.Equal(t, "1.1", s.Sections[2].Key)
	assert.Equal(t, "Personal protection", s.Sections[2].Title)
	assert.Equal(t, 2, s.Sections[2].Level)
	assert.Equal(t, "1", s.Sections[2].ParentKey)
	assert.Equal(t, 1, s.Sections[2].ClauseCount)

	assert.Equal(t, "1", s.Sections[3].ParentKey)
	assert.Empty(t, s.Sections[4].ParentKey)

	require.Len(t, s.Clauses, 2)
	assert.Equal(t, "1.1", s.Clauses[0].SectionKey)
	assert.Equal(t, "Respirators", s.Clauses[0].Title)
	assert.Equal(t, ImportanceRequired, s.Clauses[0].Importance)
	assert.Equal(t, "1.2", s.Clauses[1].SectionKey)
	assert.Equal(t, CategoryInspection, s.Clauses[1].Category)

	assert.Equal(t, "2nd Edition", s.Metadata.Edition)
	assert.Equal(t, "Standards Australia", s.Metadata.Publisher)
	assert.Empty(t, s.Metadata.PublicationYear)
}

func TestExtractMetadataOnlyLeadingBlocks(t *testing.T) {
	md := ExtractMetadata([]string{"a", "b", "c", "d", "e", "IICRC 3rd Edition 2015"})
	assert.Equal(t, Metadata{}, md)

	md = ExtractMetadata([]string{"Version 2.1 published 2019"})
	assert.Equal(t, "2.1", md.Version)
	assert.Equal(t, "2019", md.PublicationYear)
}

func TestEmpty(t *testing.T) {
	s := ParseLines(nil)
	assert.True(t, s.IsEmpty())
	assert.NotNil(t, s.Sections)
	assert.NotNil(t, s.Clauses)

	e := Empty()
	assert.Equal(t, TypeUnknown, e.Type)
	assert.Empty(t, e.Sections)
	assert.Empty(t, e.Clauses)
	assert.Equal(t, Metadata{}, e.Metadata)
}
