// Package popup classifies the dialogs ChemiNot raises and dismisses them.
//
// Classification is pure: a window title and its OCR text are normalized and
// matched against an ordered rule table. The Detector is the device side: it
// notices new windows, reads them and runs the rule's recovery action.
package popup

import "strings"

// Classifier matches popups against an ordered rule table. It is immutable
// and safe for concurrent use.
type Classifier struct {
	rules []Rule // patterns normalized
}

// NewClassifier normalizes the patterns of rules once.
func NewClassifier(rules []Rule) *Classifier {
	c := &Classifier{rules: make([]Rule, len(rules))}
	for i, r := range rules {
		r.Titles = normalizeAll(r.Titles)
		r.Texts = normalizeAll(r.Texts)
		c.rules[i] = r
	}
	return c
}

// Match returns the first rule whose title and text patterns both match.
func (c *Classifier) Match(title, text string) (Rule, bool) {
	title, text = Normalize(title), Normalize(text)
	for _, r := range c.rules {
		if matchAny(r.Titles, title) && matchAny(r.Texts, text) {
			return r, true
		}
	}
	return Rule{}, false
}

// Classify returns the outcome and recovery action for a popup. Unmatched
// popups are Unknown and closed.
func (c *Classifier) Classify(title, text string) (Outcome, Action) {
	if r, ok := c.Match(title, text); ok {
		return r.Outcome, r.Action
	}
	return Unknown, Close
}

// Recognized reports whether any rule matches.
func (c *Classifier) Recognized(title, text string) bool {
	_, ok := c.Match(title, text)
	return ok
}

// Rules returns the normalized table.
func (c *Classifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

func matchAny(patterns []string, s string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func normalizeAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if n := Normalize(s); n != "" {
			out = append(out, n)
		}
	}
	return out
}
