package fieldpolicy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/caseflow-dev/caseflow/pkg/casedef"
)

// Policy maps template field types to the form widget rendered for them.
// Administrators tune it per deployment without code changes.
type Policy struct {
	Version int    `yaml:"version" json:"version"`
	Rules   []Rule `yaml:"rules" json:"rules"`
}

// Rule picks a widget for fields matching When. Rules are tried in order,
// first match wins.
type Rule struct {
	ID     string         `yaml:"id" json:"id"`
	When   RuleWhen       `yaml:"when" json:"when"`
	Widget string         `yaml:"widget" json:"widget"`
	Config map[string]any `yaml:"config" json:"config"`
}

type RuleWhen struct {
	Types     []string `yaml:"types" json:"types"`
	Required  *bool    `yaml:"required" json:"required"`
	NameRegex string   `yaml:"name_regex" json:"name_regex"`

	rx *regexp.Regexp
}

// Normalize trims and lowercases the match criteria and compiles name
// regexes. A bad regex is a load error, not a panic, so a broken policy file
// cannot take down the reload watcher.
func (p *Policy) Normalize() error {
	for i := range p.Rules {
		r := &p.Rules[i]
		r.Widget = strings.TrimSpace(r.Widget)
		for j, t := range r.When.Types {
			r.When.Types[j] = strings.ToLower(strings.TrimSpace(t))
		}
		if r.When.NameRegex != "" {
			rx, err := regexp.Compile(r.When.NameRegex)
			if err != nil {
				return fmt.Errorf("rule %q: name_regex: %w", r.ID, err)
			}
			r.When.rx = rx
		}
	}
	return nil
}

// Resolve returns the widget and config for a field. Unmatched fields fall
// back to a plain text input.
func (p *Policy) Resolve(f casedef.Field) (string, map[string]any) {
	for _, r := range p.Rules {
		if matches(r.When, f) {
			cfg := r.Config
			if cfg == nil {
				cfg = map[string]any{}
			}
			return r.Widget, cfg
		}
	}
	return "text-input", map[string]any{}
}

func matches(w RuleWhen, f casedef.Field) bool {
	if len(w.Types) > 0 {
		ft := strings.ToLower(string(f.Type))
		found := false
		for _, t := range w.Types {
			if t == ft {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if w.Required != nil && *w.Required != f.Required {
		return false
	}
	if w.rx != nil && !w.rx.MatchString(f.FieldID) {
		return false
	}
	return true
}
