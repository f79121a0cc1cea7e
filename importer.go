/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"strings"
)

// ImportRow is one validated question from an import file, ready to
// be handed to the store.
type ImportRow struct {
	Category    Category
	Prompt      string
	Choices     []string
	AnswerIndex int
}

// ImportError describes one rejected line.
type ImportError struct {
	Line    int    `json:"line"`
	Raw     string `json:"raw"`
	Message string `json:"message"`
}

// ImportResult collects accepted rows and rejected lines, both in
// input order.
type ImportResult struct {
	OK     []ImportRow
	Errors []ImportError
}

// parseImport reads a semicolon-separated question file:
//
//	category;prompt;choice1;choice2;choice3[;choice4];answer
//
// where answer is either a digit 0-3 or the exact text of the correct
// choice. Double quotes keep semicolons literal inside a field. A
// leading header line ("category;..." or "catégorie;...") is skipped.
//
// Parsing is total: a malformed line is reported in Errors with its
// 1-based line number and never stops the lines after it.
func parseImport(input string) ImportResult {
	var result ImportResult

	input = strings.TrimPrefix(input, "\ufeff")

	rawLines := strings.Split(strings.ReplaceAll(input, "\r\n", "\n"), "\n")

	lines := make([]string, 0, len(rawLines))
	for _, l := range rawLines {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, strings.TrimSpace(l))
		}
	}
	if len(lines) == 0 {
		return result
	}

	firstLine := 1
	if isHeaderLine(lines[0]) {
		lines = lines[1:]
		firstLine = 2
	}

	for i, raw := range lines {
		lineNum := firstLine + i

		row, err := parseImportLine(raw)
		if err != nil {
			result.Errors = append(result.Errors, ImportError{
				Line:    lineNum,
				Raw:     raw,
				Message: err.Error(),
			})
			continue
		}

		result.OK = append(result.OK, row)
	}

	return result
}

func isHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	return strings.HasPrefix(lower, "category") || strings.HasPrefix(lower, "catégorie")
}

func parseImportLine(raw string) (ImportRow, error) {
	parts := splitImportLine(raw)
	if len(parts) < 6 {
		return ImportRow{}, fmt.Errorf("expected category;prompt;choice1;choice2;choice3;answer (plus an optional fourth choice), got %d fields", len(parts))
	}

	category, err := ParseCategory(parts[0])
	if err != nil {
		return ImportRow{}, err
	}

	prompt := strings.TrimSpace(parts[1])
	if prompt == "" {
		return ImportRow{}, fmt.Errorf("prompt is blank")
	}

	rest := parts[2:]
	last := strings.TrimSpace(rest[len(rest)-1])

	var choices []string
	var answerIndex int

	if len(last) == 1 && last[0] >= '0' && last[0] <= '3' {
		choices = trimNonEmpty(rest[:len(rest)-1])
		answerIndex = int(last[0] - '0')
	} else {
		choices = trimNonEmpty(rest)
		answerIndex = -1
		for i, choice := range choices {
			if choice == last {
				answerIndex = i
				break
			}
		}
		if answerIndex == -1 {
			return ImportRow{}, fmt.Errorf("answer %q does not match any choice", last)
		}
	}

	if len(choices) < 3 || len(choices) > 4 {
		return ImportRow{}, fmt.Errorf("expected 3 or 4 choices, got %d", len(choices))
	}
	if answerIndex < 0 || answerIndex >= len(choices) {
		return ImportRow{}, fmt.Errorf("answer index %d out of range (0 to %d)", answerIndex, len(choices)-1)
	}

	return ImportRow{
		Category:    category,
		Prompt:      prompt,
		Choices:     choices,
		AnswerIndex: answerIndex,
	}, nil
}

// splitImportLine splits on semicolons, treating a double quote as a
// toggle during which semicolons are literal. Each field is stripped
// of at most one surrounding quote pair and trimmed; doubled quotes
// are not unescaped beyond that.
func splitImportLine(line string) []string {
	var parts []string
	var current strings.Builder
	inQuotes := false

	for _, ch := range line {
		switch {
		case ch == '"':
			inQuotes = !inQuotes
			current.WriteRune(ch)
		case ch == ';' && !inQuotes:
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}
	parts = append(parts, current.String())

	for i, p := range parts {
		p = strings.TrimPrefix(p, `"`)
		p = strings.TrimSuffix(p, `"`)
		parts[i] = strings.TrimSpace(p)
	}

	return parts
}

func trimNonEmpty(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		trimmed := strings.TrimSpace(f)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (r ImportRow) questionData() QuestionData {
	return QuestionData{
		Category:    r.Category,
		Prompt:      r.Prompt,
		Choices:     r.Choices,
		AnswerIndex: r.AnswerIndex,
	}
}

// exportCSV renders the question bank in the import file format:
// semicolon-separated with a header line, the answer given as its
// index. Fields containing semicolons, quotes, or newlines are quoted,
// with internal quotes doubled.
func exportCSV(questions []Question) string {
	var b strings.Builder
	b.WriteString("category;prompt;choice1;choice2;choice3;choice4;answer\n")

	for _, q := range questions {
		fields := make([]string, 0, 7)
		fields = append(fields, string(q.Category), q.Prompt)
		fields = append(fields, q.Choices...)
		fields = append(fields, fmt.Sprintf("%d", q.AnswerIndex))

		for i, f := range fields {
			if i > 0 {
				b.WriteByte(';')
			}
			b.WriteString(csvField(f))
		}
		b.WriteByte('\n')
	}

	return b.String()
}

func csvField(s string) string {
	if strings.ContainsAny(s, ";\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
