package importer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

const header = "question_number,set_name,passage_text,question_text,option_a,option_b,option_c,option_d,option_e,correct_answer,explanation"

func TestParseCSVTooFewLines(t *testing.T) {
	tests := []string{"", "   ", header, header + "\n\n  \n"}
	for _, in := range tests {
		records, errs := Import(in)
		if records != nil {
			t.Fatalf("Import(%q) records = %v, want nil", in, records)
		}
		if len(errs) != 1 || errs[0] != ErrTooFewLines.Error() {
			t.Fatalf("Import(%q) errs = %v, want single too-few-lines error", in, errs)
		}
	}
}

func TestParseCSVRoundTrip(t *testing.T) {
	text := header + "\n" +
		"1,,,What is 2+2?,3,4,5,6,,b,Basic math\n" +
		"2,Set A,\"A passage, with commas\",\"Pick the \"\"quoted\"\" one\",w,x,y,z,v,E,\n" +
		"7,,,Third,a,b,c,d,,c,\n"

	records, errs := Import(text)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}

	first := records[0]
	if first.QuestionNumber != "1" || first.QuestionText != "What is 2+2?" {
		t.Fatalf("unexpected first record: %+v", first)
	}
	if first.OptionA != "3" || first.OptionB != "4" || first.OptionC != "5" || first.OptionD != "6" {
		t.Fatalf("options not preserved: %+v", first)
	}
	if first.CorrectAnswer != "B" {
		t.Fatalf("correct answer = %q, want uppercased B", first.CorrectAnswer)
	}

	second := records[1]
	if second.PassageText != "A passage, with commas" {
		t.Fatalf("passage = %q", second.PassageText)
	}
	if second.QuestionText != `Pick the "quoted" one` {
		t.Fatalf("question text = %q", second.QuestionText)
	}
	if second.OptionE != "v" || second.SetName != "Set A" {
		t.Fatalf("unexpected second record: %+v", second)
	}

	if records[2].QuestionNumber != "7" {
		t.Fatalf("question number = %q, want 7", records[2].QuestionNumber)
	}
}

func TestParseCSVHeaderNormalization(t *testing.T) {
	text := " \"Question_Text\" , 'OPTION_A',option_b,option_c,option_d,Correct_Answer\r\n" +
		"Hello,a,b,c,d,a\r\n"

	records, err := ParseCSV(text)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	r := records[0]
	if r.QuestionText != "Hello" || r.OptionA != "a" || r.CorrectAnswer != "A" {
		t.Fatalf("unexpected record: %+v", r)
	}
	if r.QuestionNumber != "1" {
		t.Fatalf("default question number = %q, want 1", r.QuestionNumber)
	}
}

func TestParseCSVDropsIncompleteRows(t *testing.T) {
	text := header + "\n" +
		"1,,,,a,b,c,d,,A,\n" +
		"\n" +
		",,,,,,,,,,\n" +
		"2,,,No answer,a,b,c,d,,,\n" +
		"3,,,Kept,a,b,c,d,,D,\n"

	records, err := ParseCSV(text)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(records) != 1 || records[0].QuestionText != "Kept" {
		t.Fatalf("records = %+v, want only the complete row", records)
	}
}

func TestParseCSVMissingTrailingFields(t *testing.T) {
	text := header + "\n5,,,Short row,a,b,c,d,,A"

	records, err := ParseCSV(text)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(records) != 1 || records[0].Explanation != "" {
		t.Fatalf("records = %+v", records)
	}
}

func TestValidateCSV(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want []string
	}{
		{
			name: "valid",
			rec:  Record{QuestionText: "q", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectAnswer: "A"},
		},
		{
			name: "missing option c",
			rec:  Record{QuestionText: "q", OptionA: "a", OptionB: "b", OptionD: "d", CorrectAnswer: "A"},
			want: []string{"Row 2: Missing required options (A-D)"},
		},
		{
			name: "invalid answer",
			rec:  Record{QuestionText: "q", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectAnswer: "F"},
			want: []string{`Row 2: Invalid correct answer "F"`},
		},
		{
			name: "missing text",
			rec:  Record{OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectAnswer: "A"},
			want: []string{"Row 2: Missing question text"},
		},
		{
			name: "answer with quote and backslash",
			rec:  Record{QuestionText: "q", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectAnswer: `X"Y\`},
			want: []string{`Row 2: Invalid correct answer "X"Y\"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateCSV([]Record{tt.rec})
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %q, want %q", got[i], tt.want[i])
				}
			}
		})
	}
}

func TestImportRejectsWholeFile(t *testing.T) {
	text := header + "\n" +
		"1,,,Good,a,b,c,d,,A,\n" +
		"2,,,Bad,a,b,,d,,B,\n" +
		"3,,,Also bad,a,b,c,d,,Z,\n"

	records, errs := Import(text)
	if records != nil {
		t.Fatalf("records = %v, want nil on validation failure", records)
	}
	want := []string{
		"Row 3: Missing required options (A-D)",
		`Row 4: Invalid correct answer "Z"`,
	}
	if strings.Join(errs, "|") != strings.Join(want, "|") {
		t.Fatalf("errs = %v, want %v", errs, want)
	}
}

func TestRecordToQuestion(t *testing.T) {
	testID := uuid.New()
	r := Record{QuestionNumber: "12", QuestionText: "q", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", OptionE: "e", CorrectAnswer: "E"}

	q := r.ToQuestion(testID, 0)
	if q.TestID != testID || q.QuestionNumber != 12 {
		t.Fatalf("unexpected question: %+v", q)
	}
	if q.OptionE == nil || *q.OptionE != "e" {
		t.Fatalf("option E not carried: %+v", q.OptionE)
	}
	if q.SetName != nil || q.PassageText != nil || q.Explanation != nil {
		t.Fatal("empty optionals must be nil")
	}

	numbers := []struct {
		raw  string
		want int
	}{
		{"abc", 5},
		{"", 5},
		{"0", 5},
		{"12a", 12},
		{" 7.5", 7},
		{"-3", -3},
		{"+", 5},
	}
	for _, n := range numbers {
		r.QuestionNumber = n.raw
		if got := r.ToQuestion(testID, 4).QuestionNumber; got != n.want {
			t.Fatalf("number for %q = %d, want %d", n.raw, got, n.want)
		}
	}
}

func TestImportXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Question_Number", "Question_Text", "Option_A", "Option_B", "Option_C", "Option_D", "Correct_Answer"},
		{"1", "From excel", "a", "b", "c", "d", "c"},
		{"2", "Second", "a", "b", "c", "d", "a"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	records, errs := ImportXLSX(bytes.NewReader(buf.Bytes()))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(records) != 2 || records[0].QuestionText != "From excel" || records[0].CorrectAnswer != "C" {
		t.Fatalf("records = %+v", records)
	}
}

func TestImportXLSXRejectsGarbage(t *testing.T) {
	records, errs := ImportXLSX(strings.NewReader("not a workbook"))
	if records != nil || len(errs) != 1 {
		t.Fatalf("records=%v errs=%v", records, errs)
	}
}
