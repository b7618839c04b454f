package popup

import (
	"bytes"
	_ "embed"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	apperrors "github.com/cheminotify/agent/internal/errors"
)

// Outcome is the semantic type of a popup.
type Outcome string

const (
	CourseFull       Outcome = "course_full"
	ScheduleConflict Outcome = "schedule_conflict"
	Error            Outcome = "error"
	About            Outcome = "about"
	SessionSelection Outcome = "session_selection"
	Attention        Outcome = "attention"
	Unknown          Outcome = "unknown"
)

// Action is the recovery performed on a classified popup.
type Action string

const (
	Close      Action = "close"
	ClickOK    Action = "click_ok"
	ForceClose Action = "force_close"
)

func (a Action) valid() bool {
	switch a {
	case Close, ClickOK, ForceClose:
		return true
	}
	return false
}

// Rule maps title and text patterns to an outcome.
type Rule struct {
	Name    string   `yaml:"name"`
	Titles  []string `yaml:"titles"`
	Texts   []string `yaml:"texts"`
	Outcome Outcome  `yaml:"outcome"`
	Action  Action   `yaml:"action"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

//go:embed rules.yaml
var defaultRules []byte

// DefaultRules returns the built-in rule table.
func DefaultRules() []Rule {
	rules, err := LoadRules(bytes.NewReader(defaultRules))
	if err != nil {
		panic("popup: invalid embedded rules: " + err.Error())
	}
	return rules
}

// LoadRules parses a YAML rule table. A rule without an action closes the
// popup.
func LoadRules(r io.Reader) ([]Rule, error) {
	var f ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ConfigInvalid, "parse popup rules")
	}
	if len(f.Rules) == 0 {
		return nil, apperrors.New(apperrors.ConfigInvalid, "popup rules: empty table")
	}
	for i := range f.Rules {
		rule := &f.Rules[i]
		if rule.Outcome == "" {
			return nil, apperrors.Newf(apperrors.ConfigInvalid, "popup rule %d (%s): missing outcome", i, rule.Name)
		}
		if rule.Name == "" {
			rule.Name = string(rule.Outcome)
		}
		if rule.Action == "" {
			rule.Action = Close
		}
		if !rule.Action.valid() {
			return nil, apperrors.Newf(apperrors.ConfigInvalid, "popup rule %s: unknown action %q", rule.Name, rule.Action)
		}
	}
	return f.Rules, nil
}

// LoadRulesFile reads a rule table from path, or returns the defaults when
// path is empty.
func LoadRulesFile(path string) ([]Rule, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ConfigInvalid, "open popup rules %s", path)
	}
	defer f.Close()
	return LoadRules(f)
}
