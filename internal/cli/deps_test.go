package cli

import (
	"testing"

	"github.com/kerbelp/z-mail-agent/internal/model"
)

func TestResolveLLMKeyPrefersProviderEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("ZMAIL_LLM_API_KEY", "generic")

	key, err := resolveLLMKey("openai")
	if err != nil {
		t.Fatal(err)
	}
	if key != "sk-openai" {
		t.Errorf("key = %q", key)
	}

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	key, err = resolveLLMKey("anthropic")
	if err != nil {
		t.Fatal(err)
	}
	if key != "sk-ant" {
		t.Errorf("key = %q", key)
	}
}

func TestResolveLLMKeyFallsBackToGenericEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ZMAIL_LLM_API_KEY", "generic")

	key, err := resolveLLMKey("openai")
	if err != nil {
		t.Fatal(err)
	}
	if key != "generic" {
		t.Errorf("key = %q", key)
	}
}

func TestBuildProviderValidation(t *testing.T) {
	cfg := &model.Config{}
	cfg.Provider.Type = "zoho"
	if _, err := buildProvider(cfg); err == nil {
		t.Error("expected error for missing gateway URL")
	}

	cfg.Provider.Type = "imap"
	if _, err := buildProvider(cfg); err == nil {
		t.Error("expected error for missing IMAP host/username")
	}

	cfg.Provider.Type = "carrier-pigeon"
	if _, err := buildProvider(cfg); err == nil {
		t.Error("expected error for unknown provider type")
	}

	cfg.Provider.Type = "zoho"
	cfg.Provider.Zoho.GatewayURL = "http://localhost:8080/mcp"
	p, err := buildProvider(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "zoho" {
		t.Errorf("provider name = %q", p.Name())
	}
}
