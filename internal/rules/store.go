// Package rules loads the ordered classification rule set and the
// prompt/template texts the rules reference. Rules live in a YAML file;
// referenced texts are plain files resolved relative to it.
package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kerbelp/z-mail-agent/internal/model"
)

// ruleEntry is the YAML shape of one rule.
type ruleEntry struct {
	Name          string `yaml:"name"`
	Priority      int    `yaml:"priority"`
	Description   string `yaml:"description"`
	Prompt        string `yaml:"prompt"`
	Action        string `yaml:"action"`
	ReplyTemplate string `yaml:"reply_template"`
}

// ruleFile is the YAML shape of the rule file.
type ruleFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

// Store holds the validated, priority-ordered rule set and resolves
// text references. It is loaded once per run and read-only afterwards.
type Store struct {
	dir   string
	rules []model.ClassificationRule
}

// Load reads and validates the rule file at path. Rules come back
// sorted by ascending priority with declaration order breaking ties.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule file %s: %w", path, err)
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing rule file %s: %w", path, err)
	}

	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("rule file %s defines no rules", path)
	}

	dir := filepath.Dir(path)
	s := &Store{dir: dir}

	seen := make(map[string]bool, len(file.Rules))
	for i, entry := range file.Rules {
		if entry.Name == "" {
			return nil, fmt.Errorf("rule %d has no name", i)
		}
		if seen[entry.Name] {
			return nil, fmt.Errorf("duplicate rule name %q", entry.Name)
		}
		seen[entry.Name] = true

		action, err := model.ParseAction(entry.Action)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", entry.Name, err)
		}

		if entry.Prompt == "" {
			return nil, fmt.Errorf("rule %q has no prompt reference", entry.Name)
		}
		if action == model.ActionReply && entry.ReplyTemplate == "" {
			return nil, fmt.Errorf(
				"rule %q: reply action requires a reply_template", entry.Name,
			)
		}
		if action != model.ActionReply && entry.ReplyTemplate != "" {
			return nil, fmt.Errorf(
				"rule %q: reply_template is only valid with the reply action",
				entry.Name,
			)
		}

		// Referenced files must exist up front so a broken reference
		// fails the run before any message is touched.
		for _, ref := range []string{entry.Prompt, entry.ReplyTemplate} {
			if ref == "" {
				continue
			}
			resolved, err := s.resolve(ref)
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", entry.Name, err)
			}
			if _, err := os.Stat(resolved); err != nil {
				return nil, fmt.Errorf(
					"rule %q references missing file %s: %w", entry.Name, ref, err,
				)
			}
		}

		s.rules = append(s.rules, model.ClassificationRule{
			Name:             entry.Name,
			Priority:         entry.Priority,
			Description:      entry.Description,
			PromptRef:        entry.Prompt,
			Action:           action,
			ReplyTemplateRef: entry.ReplyTemplate,
		})
	}

	// Stable sort keeps declaration order for equal priorities.
	sort.SliceStable(s.rules, func(i, j int) bool {
		return s.rules[i].Priority < s.rules[j].Priority
	})

	return s, nil
}

// Rules returns the ordered rule set. The slice is a copy; callers
// cannot mutate the store.
func (s *Store) Rules() []model.ClassificationRule {
	out := make([]model.ClassificationRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// LoadText reads the prompt or template text behind a reference.
func (s *Store) LoadText(ref string) (string, error) {
	resolved, err := s.resolve(ref)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", ref, err)
	}

	return string(data), nil
}

// resolve maps a reference to a path inside the rule directory,
// rejecting absolute paths and escapes.
func (s *Store) resolve(ref string) (string, error) {
	if filepath.IsAbs(ref) {
		return "", fmt.Errorf("reference %q must be relative", ref)
	}

	cleaned := filepath.Clean(ref)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("reference %q escapes the rule directory", ref)
	}

	return filepath.Join(s.dir, cleaned), nil
}
