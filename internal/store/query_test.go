package store

import (
	"strings"
	"testing"
)

func f64(v float64) *float64 { return &v }

func TestCompileOrderWhitelist(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"timestamp DESC", "timestamp DESC"},
		{"timestamp asc", "timestamp ASC"},
		{"importance", "importance DESC"},
		{"id ASC", "id ASC"},
		{"content desc", "content DESC"},
		{"event ASC", "event ASC"},
		{"", "timestamp DESC"},
		{"relevance DESC", "timestamp DESC"},
		{"timestamp SIDEWAYS", "timestamp DESC"},
		{"timestamp; DROP TABLE memories", "timestamp DESC"},
		{"importance DESC, id ASC", "timestamp DESC"},
		{"metadata ASC", "timestamp DESC"},
	}

	for _, tt := range tests {
		got := CompileOrder(tt.input)
		if got != tt.want {
			t.Errorf("CompileOrder(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain", "plain"},
		{"100%", `100\%`},
		{"snake_case", `snake\_case`},
		{`back\slash`, `back\\slash`},
		{`%_\`, `\%\_\\`},
	}

	for _, tt := range tests {
		got := EscapeLike(tt.input)
		if got != tt.want {
			t.Errorf("EscapeLike(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCompileContentContains(t *testing.T) {
	q, err := Compile(Filters{ContentContains: "deploy"}, "", 10, true, 0.1)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(q.Where, `(event LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\')`) {
		t.Errorf("Where = %q, want event/content LIKE pair", q.Where)
	}
	if len(q.Args) != 2 {
		t.Fatalf("len(Args) = %d, want 2", len(q.Args))
	}
	if q.Args[0] != "%deploy%" {
		t.Errorf("Args[0] = %v, want %%deploy%%", q.Args[0])
	}
	// User input never lands in the statement text.
	if strings.Contains(q.Where, "deploy") {
		t.Errorf("user fragment leaked into Where: %q", q.Where)
	}
}

func TestCompileVisibilityConjunct(t *testing.T) {
	q, err := Compile(Filters{}, "", 10, false, 0.1)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(q.Where, "effective_importance IS NULL OR effective_importance >= ?") {
		t.Errorf("Where = %q, want NULL-tolerant visibility conjunct", q.Where)
	}

	q, _ = Compile(Filters{}, "", 10, true, 0.1)
	if strings.Contains(q.Where, "effective_importance") {
		t.Errorf("include_decayed=true still filters: %q", q.Where)
	}
}

func TestCompileCrossFieldValidation(t *testing.T) {
	bad := []Filters{
		{ImportanceMin: f64(0.9), ImportanceMax: f64(0.1)},
		{EmotionalIntensityMin: f64(0.8), EmotionalIntensityMax: f64(0.2)},
		{TimestampAfter: f64(2000), TimestampBefore: f64(1000)},
		{EffectiveImportanceMin: f64(0.5), EffectiveImportanceMax: f64(0.4)},
	}
	for i, f := range bad {
		if _, err := Compile(f, "", 10, true, 0.1); err == nil {
			t.Errorf("case %d: expected cross-field validation error, got nil", i)
		}
	}
}

func TestCompileAndScan(t *testing.T) {
	db, _ := OpenMemory("episodic")
	defer db.Close()

	db.Insert(testRecord("progress is 100% done", 0.7))
	db.Insert(testRecord("progress is 10x done", 0.7))
	db.Insert(testRecord("something else", 0.7))

	q, err := Compile(Filters{ContentContains: "100%"}, "", 10, true, 0.1)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	records, err := db.Scan(q)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1 (wildcards must match literally)", len(records))
	}
	if !strings.Contains(records[0].Content, "100%") {
		t.Errorf("matched %q, want literal 100%%", records[0].Content)
	}
}

func TestScanRangeFilters(t *testing.T) {
	db, _ := OpenMemory("semantic")
	defer db.Close()

	for _, imp := range []float64{0.2, 0.5, 0.8} {
		db.Insert(testRecord("r", imp))
	}

	q, err := Compile(Filters{ImportanceMin: f64(0.4), ImportanceMax: f64(0.6)}, "importance ASC", 10, true, 0.1)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	records, err := db.Scan(q)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(records) != 1 || records[0].Importance != 0.5 {
		t.Errorf("records = %+v, want single row with importance 0.5", records)
	}
}

func TestScanVisibilityFilter(t *testing.T) {
	db, _ := OpenMemory("working")
	defer db.Close()

	visible := testRecord("visible", 0.7)
	db.Insert(visible)

	faded := testRecord("faded", 0.3)
	low := 0.01
	faded.EffectiveImportance = &low
	db.Insert(faded)

	unswept := testRecord("unswept", 0.4)
	unswept.EffectiveImportance = nil
	db.Insert(unswept)

	q, _ := Compile(Filters{}, "id ASC", 10, false, 0.1)
	records, err := db.Scan(q)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2 (NULL row passes, faded row filtered)", len(records))
	}
	for _, r := range records {
		if r.Content == "faded" {
			t.Error("decayed row leaked through default visibility filter")
		}
	}

	q, _ = Compile(Filters{}, "id ASC", 10, true, 0.1)
	records, _ = db.Scan(q)
	if len(records) != 3 {
		t.Errorf("include_decayed: len = %d, want 3", len(records))
	}
}
