package popup

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"À propos de ChemiNot", "a propos de cheminot"},
		{"  Conflit   d'horaire\n\tdétecté ", "conflit d'horaire detecte"},
		{"ÉRREUR", "erreur"},
		{"Le cours est complet.", "le cours est complet."},
		{"", ""},
		{"日本語 text", "text"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"À propos de ChemiNot",
		"Pour quelle session voulez-vous modifier votre choix de cours ?",
		"  ATTENTION  Le cours PEP110 est obligatoire si  ",
		"ñandú   ÇA   va",
		"\t\n",
	}
	for _, s := range inputs {
		once := Normalize(s)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", s, once, twice)
		}
	}
}

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()
	want := []Outcome{CourseFull, ScheduleConflict, Error, About, SessionSelection, Attention}
	if len(rules) != len(want) {
		t.Fatalf("len(rules) = %d, want %d", len(rules), len(want))
	}
	for i, r := range rules {
		if r.Outcome != want[i] {
			t.Errorf("rule %d outcome = %s, want %s", i, r.Outcome, want[i])
		}
	}
}

func TestClassifyDefaults(t *testing.T) {
	c := NewClassifier(DefaultRules())

	tests := []struct {
		name        string
		title, text string
		outcome     Outcome
		action      Action
	}{
		{"about", "À propos de ChemiNot", "", About, Close},
		{"course full", "Message", "Désolé, ce cours est complet.", CourseFull, Close},
		{"schedule conflict", "Message", "Conflit d'horaire avec LOG320", ScheduleConflict, Close},
		{"error", "Erreur", "Une erreur est survenue", Error, Close},
		{"session selection", "ChemiNot", "Pour quelle session voulez-vous modifier votre choix de cours ?", SessionSelection, ForceClose},
		{"attention", "ATTENTION", "Le cours PEP110 est obligatoire si vous devez suivre TIN503", Attention, ForceClose},
		{"attention needs title", "Message", "Le cours PEP110 est obligatoire si vous devez suivre TIN503", Unknown, Close},
		{"unknown", "Mise à jour", "Nouvelle version disponible", Unknown, Close},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, action := c.Classify(tt.title, tt.text)
			if outcome != tt.outcome || action != tt.action {
				t.Errorf("Classify() = (%s, %s), want (%s, %s)", outcome, action, tt.outcome, tt.action)
			}
		})
	}
}

func TestClassifyOrderSensitive(t *testing.T) {
	a := Rule{Name: "a", Texts: []string{"complet"}, Outcome: "first", Action: Close}
	b := Rule{Name: "b", Texts: []string{"cours est complet"}, Outcome: "second", Action: ClickOK}

	if got, _ := NewClassifier([]Rule{a, b}).Classify("", "Le cours est complet"); got != "first" {
		t.Errorf("a before b: got %s, want first", got)
	}
	if got, _ := NewClassifier([]Rule{b, a}).Classify("", "Le cours est complet"); got != "second" {
		t.Errorf("b before a: got %s, want second", got)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := NewClassifier(DefaultRules())
	first, _ := c.Classify("ChemiNot", "Pour quelle session voulez-vous")
	for i := 0; i < 50; i++ {
		if got, _ := c.Classify("ChemiNot", "Pour quelle session voulez-vous"); got != first {
			t.Fatalf("iteration %d: got %s, want %s", i, got, first)
		}
	}
}

func TestEmptyPatternsMatchAnything(t *testing.T) {
	c := NewClassifier([]Rule{{Name: "any", Outcome: "any", Action: Close}})
	if !c.Recognized("", "") {
		t.Error("rule with no patterns should match empty input")
	}
	if !c.Recognized("whatever", "text") {
		t.Error("rule with no patterns should match any input")
	}
}

func TestRecognized(t *testing.T) {
	c := NewClassifier(DefaultRules())
	if !c.Recognized("À propos de ChemiNot", "") {
		t.Error("about popup should be recognized")
	}
	if c.Recognized("Mise à jour", "") {
		t.Error("unrelated popup should not be recognized")
	}
}

func TestLoadRules(t *testing.T) {
	src := `
rules:
  - texts: ["plein"]
    outcome: course_full
  - name: ok
    titles: ["Information"]
    outcome: info
    action: click_ok
`
	rules, err := LoadRules(strings.NewReader(src))
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}
	if rules[0].Name != "course_full" || rules[0].Action != Close {
		t.Errorf("defaults not applied: %+v", rules[0])
	}
	if rules[1].Action != ClickOK {
		t.Errorf("rules[1].Action = %s, want click_ok", rules[1].Action)
	}
}

func TestLoadRulesInvalid(t *testing.T) {
	tests := map[string]string{
		"empty":          "rules: []",
		"no outcome":     "rules:\n  - texts: [x]\n",
		"bad action":     "rules:\n  - outcome: x\n    action: explode\n",
		"unknown field":  "rules:\n  - outcome: x\n    pattern: y\n",
		"not yaml rules": "- a\n- b\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadRules(strings.NewReader(src)); err == nil {
				t.Error("LoadRules() should fail")
			}
		})
	}
}

func TestLoadRulesFileEmptyPath(t *testing.T) {
	rules, err := LoadRulesFile("")
	if err != nil || len(rules) != len(DefaultRules()) {
		t.Errorf("LoadRulesFile(\"\") = %d rules, %v", len(rules), err)
	}
}
