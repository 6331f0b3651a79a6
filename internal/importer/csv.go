// Package importer turns uploaded question sheets into question records.
//
// Import is all-or-nothing: a file either yields records or a list of
// human-readable errors, never both.
package importer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/stemsi/mocktest-backend/internal/model"
)

// ErrTooFewLines is returned for input without a header and at least one data row.
var ErrTooFewLines = errors.New("CSV must have a header row and at least one data row")

// Record is one parsed question row. All fields are raw strings;
// CorrectAnswer is uppercased.
type Record struct {
	QuestionNumber string `json:"question_number"`
	SetName        string `json:"set_name,omitempty"`
	PassageText    string `json:"passage_text,omitempty"`
	QuestionText   string `json:"question_text"`
	OptionA        string `json:"option_a"`
	OptionB        string `json:"option_b"`
	OptionC        string `json:"option_c"`
	OptionD        string `json:"option_d"`
	OptionE        string `json:"option_e,omitempty"`
	CorrectAnswer  string `json:"correct_answer"`
	Explanation    string `json:"explanation,omitempty"`
}

// ParseCSV parses question rows from comma-separated text.
// Rows without question text or a correct answer are dropped silently.
func ParseCSV(text string) ([]Record, error) {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) < 2 {
		return nil, ErrTooFewLines
	}

	header := parseHeader(lines[0])
	records := make([]Record, 0, len(lines)-1)
	for i := 1; i < len(lines); i++ {
		values := splitLine(strings.TrimRight(lines[i], "\r"))
		if isBlank(values) {
			continue
		}
		if rec, ok := buildRecord(header, values, i); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// ValidateCSV checks parsed records. Row numbers are offset by two to match
// the source file (header line plus 1-based numbering).
func ValidateCSV(records []Record) []string {
	var errs []string
	for i, r := range records {
		row := i + 2
		if r.QuestionText == "" {
			errs = append(errs, fmt.Sprintf("Row %d: Missing question text", row))
		}
		if r.OptionA == "" || r.OptionB == "" || r.OptionC == "" || r.OptionD == "" {
			errs = append(errs, fmt.Sprintf("Row %d: Missing required options (A-D)", row))
		}
		if !model.IsValidAnswerKey(r.CorrectAnswer) {
			errs = append(errs, fmt.Sprintf("Row %d: Invalid correct answer \"%s\"", row, r.CorrectAnswer))
		}
	}
	return errs
}

// Import parses and validates text. On any failure records is nil.
func Import(text string) ([]Record, []string) {
	records, err := ParseCSV(text)
	if err != nil {
		return nil, []string{err.Error()}
	}
	return finish(records)
}

func finish(records []Record) ([]Record, []string) {
	if errs := ValidateCSV(records); len(errs) > 0 {
		return nil, errs
	}
	return records, nil
}

// ToQuestion converts a validated record into a question of testID.
// The question number is the leading integer of the number column, so "12a"
// becomes 12. index+1 is used when there is none or it is zero.
func (r Record) ToQuestion(testID uuid.UUID, index int) model.Question {
	number, ok := leadingInt(r.QuestionNumber)
	if !ok || number == 0 {
		number = index + 1
	}
	return model.Question{
		ID:             uuid.New(),
		TestID:         testID,
		QuestionNumber: number,
		QuestionText:   r.QuestionText,
		SetName:        optional(r.SetName),
		PassageText:    optional(r.PassageText),
		OptionA:        r.OptionA,
		OptionB:        r.OptionB,
		OptionC:        r.OptionC,
		OptionD:        r.OptionD,
		OptionE:        optional(r.OptionE),
		CorrectAnswer:  r.CorrectAnswer,
		Explanation:    optional(r.Explanation),
	}
}

// leadingInt parses an optional sign and the digits that follow it at the
// start of s, ignoring leading whitespace and anything after the digits.
func leadingInt(s string) (int, bool) {
	s = strings.TrimLeft(s, " \t\r\n")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseHeader(line string) []string {
	parts := strings.Split(strings.TrimRight(line, "\r"), ",")
	header := make([]string, len(parts))
	for i, p := range parts {
		header[i] = normalizeHeader(p)
	}
	return header
}

var headerQuotes = strings.NewReplacer(`"`, "", "'", "")

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
	return headerQuotes.Replace(strings.ToLower(h))
}

// splitLine splits one line on commas. A double quote opens a quoted section
// in which commas are literal and "" yields a single quote character.
func splitLine(line string) []string {
	var (
		fields   []string
		current  strings.Builder
		inQuotes bool
	)
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"' && !inQuotes:
			inQuotes = true
		case ch == '"' && inQuotes:
			if i+1 < len(line) && line[i+1] == '"' {
				current.WriteByte('"')
				i++
			} else {
				inQuotes = false
			}
		case ch == ',' && !inQuotes:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	return append(fields, current.String())
}

// buildRecord maps values onto header columns. lineNo is the 1-based data
// line used as the default question number.
func buildRecord(header, values []string, lineNo int) (Record, bool) {
	row := make(map[string]string, len(header))
	for i, h := range header {
		if i < len(values) {
			row[h] = cleanCell(values[i])
		} else {
			row[h] = ""
		}
	}

	rec := Record{
		QuestionNumber: row["question_number"],
		SetName:        row["set_name"],
		PassageText:    row["passage_text"],
		QuestionText:   row["question_text"],
		OptionA:        row["option_a"],
		OptionB:        row["option_b"],
		OptionC:        row["option_c"],
		OptionD:        row["option_d"],
		OptionE:        row["option_e"],
		CorrectAnswer:  strings.ToUpper(row["correct_answer"]),
		Explanation:    row["explanation"],
	}
	if rec.QuestionNumber == "" {
		rec.QuestionNumber = strconv.Itoa(lineNo)
	}
	return rec, rec.QuestionText != "" && rec.CorrectAnswer != ""
}

// cleanCell trims whitespace and one surrounding quote character on each side.
func cleanCell(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && (v[0] == '"' || v[0] == '\'') {
		v = v[1:]
	}
	if v != "" && (v[len(v)-1] == '"' || v[len(v)-1] == '\'') {
		v = v[:len(v)-1]
	}
	return v
}

func isBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
