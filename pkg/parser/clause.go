package parser

import (
	"regexp"
	"strings"
)

// "3.2.1 ", "3.2.1. ", "4 "
var clausePattern = regexp.MustCompile(`^\d+(\.\d+)*\.?\s`)

const (
	colonWindow  = 100
	periodWindow = 50
)

// parseClause splits a numbered line into number, optional title and body.
// Title rules, first match wins:
//  1. a colon within the first 100 characters of the body
//  2. a period within the first 50 characters of the body
func parseClause(line string) (Clause, bool) {
	loc := clausePattern.FindStringIndex(line)
	if loc == nil {
		return Clause{}, false
	}
	number := strings.TrimRight(strings.TrimSpace(line[:loc[1]]), ".")
	body := strings.TrimSpace(line[loc[1]:])

	title, body := splitTitle(body)
	return Clause{
		Number:     number,
		Title:      title,
		Content:    body,
		Category:   InferCategory(body),
		Importance: InferImportance(body),
	}, true
}

func splitTitle(body string) (title, rest string) {
	if i := strings.IndexByte(body, ':'); i >= 0 && runeIndex(body, i) < colonWindow {
		return strings.TrimSpace(body[:i]), strings.TrimSpace(body[i+1:])
	}
	if i := strings.IndexByte(body, '.'); i >= 0 && runeIndex(body, i) < periodWindow {
		return strings.TrimSpace(body[:i]), strings.TrimSpace(body[i+1:])
	}
	return "", body
}

// runeIndex converts a byte offset into a character offset.
func runeIndex(s string, byteOff int) int {
	n := 0
	for i := range s {
		if i >= byteOff {
			break
		}
		n++
	}
	return n
}
