package parser

import "strings"

const (
	CategorySafety        = "Safety"
	CategoryEquipment     = "Equipment"
	CategoryDocumentation = "Documentation"
	CategoryProcess       = "Process"
	CategoryMoisture      = "Moisture Control"
	CategoryInspection    = "Inspection"
	CategoryGeneral       = "General"
)

const (
	ImportanceRequired    = "REQUIRED"
	ImportanceCritical    = "CRITICAL"
	ImportanceRecommended = "RECOMMENDED"
	ImportanceOptional    = "OPTIONAL"
	ImportanceStandard    = "STANDARD"
)

type rule struct {
	label    string
	keywords []string
}

// 顺序即优先级
var categoryRules = []rule{
	{CategorySafety, []string{"safety", "hazard", "protection", "ppe"}},
	{CategoryEquipment, []string{"equipment", "dehumidifier", "air mover"}},
	{CategoryDocumentation, []string{"document", "record", "report", "log"}},
	{CategoryProcess, []string{"procedure", "process", "method", "step"}},
	{CategoryMoisture, []string{"moisture", "humidity", "drying", "water"}},
	{CategoryInspection, []string{"inspect", "assess", "evaluat", "test"}},
}

// Mandatory language is checked before hazard language: a clause saying
// "must" and "hazard" is REQUIRED.
var importanceRules = []rule{
	{ImportanceRequired, []string{"must", "shall", "required", "mandatory", "at all times"}},
	{ImportanceCritical, []string{"critical", "danger", "warning", "hazard"}},
	{ImportanceRecommended, []string{"should", "recommend", "suggest"}},
	{ImportanceOptional, []string{"may", "optional", "consider"}},
}

func classify(text string, rules []rule, fallback string) string {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.label
			}
		}
	}
	return fallback
}

func InferCategory(text string) string {
	return classify(text, categoryRules, CategoryGeneral)
}

func InferImportance(text string) string {
	return classify(text, importanceRules, ImportanceStandard)
}
