package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kerbelp/z-mail-agent/internal/model"
)

func writeRuleDir(t *testing.T, yaml string, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const validRules = `
rules:
  - name: inquiry
    priority: 2
    description: customer questions
    prompt: prompts/inquiry.txt
    action: reply
    reply_template: templates/inquiry.txt
  - name: newsletter
    priority: 1
    prompt: prompts/newsletter.txt
    action: skip
`

func validFiles() map[string]string {
	return map[string]string{
		"prompts/inquiry.txt":    "Is this a customer inquiry?",
		"prompts/newsletter.txt": "Is this a newsletter?",
		"templates/inquiry.txt":  "Thanks for reaching out.",
	}
}

func TestLoadSortsByPriority(t *testing.T) {
	path := writeRuleDir(t, validRules, validFiles())

	store, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	got := store.Rules()
	if len(got) != 2 {
		t.Fatalf("loaded %d rules, want 2", len(got))
	}
	if got[0].Name != "newsletter" || got[1].Name != "inquiry" {
		t.Errorf("order = [%s %s], want [newsletter inquiry]", got[0].Name, got[1].Name)
	}
	if got[1].Action != model.ActionReply {
		t.Errorf("inquiry action = %q", got[1].Action)
	}
	if got[1].ReplyTemplateRef != "templates/inquiry.txt" {
		t.Errorf("inquiry reply template = %q", got[1].ReplyTemplateRef)
	}
}

func TestLoadEqualPriorityKeepsDeclarationOrder(t *testing.T) {
	yaml := `
rules:
  - name: first
    priority: 5
    prompt: a.txt
    action: skip
  - name: second
    priority: 5
    prompt: b.txt
    action: skip
`
	path := writeRuleDir(t, yaml, map[string]string{"a.txt": "a", "b.txt": "b"})

	store, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	got := store.Rules()
	if got[0].Name != "first" || got[1].Name != "second" {
		t.Errorf("order = [%s %s], want declaration order", got[0].Name, got[1].Name)
	}
}

func TestLoadRejectsInvalidRuleFiles(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		files   map[string]string
		wantErr string
	}{
		{
			name:    "empty",
			yaml:    "rules: []\n",
			wantErr: "defines no rules",
		},
		{
			name: "missing name",
			yaml: `
rules:
  - priority: 1
    prompt: a.txt
    action: skip
`,
			files:   map[string]string{"a.txt": "a"},
			wantErr: "has no name",
		},
		{
			name: "duplicate name",
			yaml: `
rules:
  - name: dup
    prompt: a.txt
    action: skip
  - name: dup
    prompt: a.txt
    action: skip
`,
			files:   map[string]string{"a.txt": "a"},
			wantErr: "duplicate rule name",
		},
		{
			name: "unknown action",
			yaml: `
rules:
  - name: bad
    prompt: a.txt
    action: explode
`,
			files:   map[string]string{"a.txt": "a"},
			wantErr: "unknown action",
		},
		{
			name: "missing prompt",
			yaml: `
rules:
  - name: bad
    action: skip
`,
			wantErr: "no prompt reference",
		},
		{
			name: "reply without template",
			yaml: `
rules:
  - name: bad
    prompt: a.txt
    action: reply
`,
			files:   map[string]string{"a.txt": "a"},
			wantErr: "requires a reply_template",
		},
		{
			name: "template on non-reply",
			yaml: `
rules:
  - name: bad
    prompt: a.txt
    action: skip
    reply_template: b.txt
`,
			files:   map[string]string{"a.txt": "a", "b.txt": "b"},
			wantErr: "only valid with the reply action",
		},
		{
			name: "missing referenced file",
			yaml: `
rules:
  - name: bad
    prompt: nowhere.txt
    action: skip
`,
			wantErr: "missing file",
		},
		{
			name: "absolute reference",
			yaml: `
rules:
  - name: bad
    prompt: /etc/passwd
    action: skip
`,
			wantErr: "must be relative",
		},
		{
			name: "escaping reference",
			yaml: `
rules:
  - name: bad
    prompt: ../outside.txt
    action: skip
`,
			wantErr: "escapes the rule directory",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeRuleDir(t, tc.yaml, tc.files)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadText(t *testing.T) {
	path := writeRuleDir(t, validRules, validFiles())
	store, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	text, err := store.LoadText("templates/inquiry.txt")
	if err != nil {
		t.Fatal(err)
	}
	if text != "Thanks for reaching out." {
		t.Errorf("text = %q", text)
	}

	if _, err := store.LoadText("../escape.txt"); err == nil {
		t.Error("expected error for escaping reference")
	}
	if _, err := store.LoadText("gone.txt"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRulesReturnsACopy(t *testing.T) {
	path := writeRuleDir(t, validRules, validFiles())
	store, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	first := store.Rules()
	first[0].Name = "mutated"

	if store.Rules()[0].Name == "mutated" {
		t.Error("caller mutation leaked into the store")
	}
}
