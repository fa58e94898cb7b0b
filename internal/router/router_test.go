package router

import (
	"reflect"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"episodic", "episodic", true},
		{"EPISODIC", "episodic", true},
		{"  working ", "working", true},
		{"core", "identity", true},
		{"self", "identity", true},
		{"values", "identity", true},
		{"temp", "working", true},
		{"scratch", "working", true},
		{"wip", "working", true},
		{"facts", "semantic", true},
		{"knowledge", "semantic", true},
		{"skills", "procedural", true},
		{"howto", "procedural", true},
		{"insights", "meta", true},
		{"reasoning", "meta", true},
		{"events", "episodic", true},
		{"conversations", "episodic", true},
		{"limbic", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := Canonicalize(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Canonicalize(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAnalyzeRouting(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"The deployment process requires running migrations before starting the app server", "procedural"},
		{"Today we had a great session working on the project", "episodic"},
		{"How to deploy the MCP server: step 1 install dependencies", "procedural"},
		{"I realized that the pattern here is about integration not separation", "meta"},
		{"Polymorphism means dispatching on the runtime type, it refers to interface method sets", "semantic"},
		{"My purpose is helping people, I value honesty and who I am matters to me", "identity"},
		{"todo: draft the temporary scratch notes, currently in progress", "working"},
	}

	for _, tt := range tests {
		got := Analyze(tt.content)
		if got.Layer != tt.want {
			t.Errorf("Analyze(%q).Layer = %q (scores %v), want %q", tt.content, got.Layer, got.Scores, tt.want)
		}
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	content := "Today we discussed how to configure the database, I'm excited!"
	first := Analyze(content)
	for i := 0; i < 5; i++ {
		again := Analyze(content)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("Analyze is not deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestAnalyzeEmptyDefaultsToWorking(t *testing.T) {
	for _, content := range []string{"", "xyzzy qwerty plugh", "     "} {
		d := Analyze(content)
		if d.Layer != "working" {
			t.Errorf("Analyze(%q).Layer = %q, want working", content, d.Layer)
		}
		if d.Confidence < 0.5 {
			t.Errorf("Analyze(%q).Confidence = %v, want >= 0.5", content, d.Confidence)
		}
	}
}

func TestConfidenceBounds(t *testing.T) {
	inputs := []string{
		"how to install and configure, step 1, step 2, then run the script",
		"today",
		"I am absolutely thrilled, this is amazing!!!",
		"the server database api config",
	}
	for _, content := range inputs {
		d := Analyze(content)
		if d.Confidence < 0 || d.Confidence > 0.95 {
			t.Errorf("Analyze(%q).Confidence = %v, want within [0, 0.95]", content, d.Confidence)
		}
	}
}

func TestEmotionalIntensity(t *testing.T) {
	signals := map[string]bool{}
	base := emotionalIntensity("nothing notable here", signals)
	if base != 0.5 {
		t.Errorf("baseline = %v, want 0.5", base)
	}

	signals = map[string]bool{}
	hot := emotionalIntensity("I absolutely love this, it is AMAZING WONDERFUL!!!", signals)
	if hot <= base {
		t.Errorf("emotional content scored %v, want above baseline %v", hot, base)
	}
	if hot > 1 {
		t.Errorf("emotional intensity %v exceeds 1", hot)
	}
	if !signals["emotion_positive"] {
		t.Error("emotion_positive signal not recorded")
	}
}

func TestExclamationCap(t *testing.T) {
	few := emotionalIntensity("nice!", map[string]bool{})
	many := emotionalIntensity("nice!!!!!!!!!!!!!!!!!!!!", map[string]bool{})
	if many-few > 0.2 {
		t.Errorf("exclamation contribution %v exceeds 0.2 cap", many-few)
	}
}

func TestTechnicalDensity(t *testing.T) {
	none := technicalDensity("a quiet walk in the park", map[string]bool{})
	if none != 0 {
		t.Errorf("non-technical density = %v, want 0", none)
	}

	dense := technicalDensity("the server api returned a JSON error; parseConfig() and retry_count point at a bug in the database migration", map[string]bool{})
	if dense <= 0.6 {
		t.Errorf("technical density = %v, want > 0.6", dense)
	}
	if dense > 1 {
		t.Errorf("technical density %v exceeds 1", dense)
	}
}

func TestTechnicalBoostSteersProcedural(t *testing.T) {
	// How-to signal fired and density is high: procedural gets the boost.
	d := Analyze("How to fix the server bug: step 1 run parseConfig(); step 2 check the JSON api error in the database migration")
	if d.Layer != "procedural" {
		t.Errorf("Layer = %q (scores %v), want procedural", d.Layer, d.Scores)
	}
	if d.TechnicalDensity <= 0.6 {
		t.Errorf("TechnicalDensity = %v, want > 0.6 for this input", d.TechnicalDensity)
	}
}

func TestEmotionalBoostSteersIdentity(t *testing.T) {
	d := Analyze("I'm absolutely thrilled about who I am, I value honesty, this is WONDERFUL AMAZING!!!")
	if d.EmotionalIntensity <= 0.7 {
		t.Fatalf("EmotionalIntensity = %v, want > 0.7 for this input", d.EmotionalIntensity)
	}
	if d.Layer != "identity" {
		t.Errorf("Layer = %q (scores %v), want identity", d.Layer, d.Scores)
	}
}

func TestRepeatFiringsDiminish(t *testing.T) {
	// One firing of a 0.8-weight pattern scores 0.8; twelve firings cap at
	// 0.8 * 1.5, not 9.6.
	d := Analyze("today today today today today today today today today today today today")
	if d.Scores["episodic"] > 0.8*1.5+1e-9 {
		t.Errorf("episodic score = %v, want capped at %v", d.Scores["episodic"], 0.8*1.5)
	}
}
