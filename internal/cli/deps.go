package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/kerbelp/z-mail-agent/internal/credential"
	"github.com/kerbelp/z-mail-agent/internal/llm"
	"github.com/kerbelp/z-mail-agent/internal/model"
	"github.com/kerbelp/z-mail-agent/internal/provider"
	"github.com/kerbelp/z-mail-agent/internal/provider/imapmail"
	"github.com/kerbelp/z-mail-agent/internal/provider/zoho"
)

// buildProvider constructs the configured mail provider, resolving any
// credentials it needs.
func buildProvider(cfg *model.Config) (provider.Provider, error) {
	switch cfg.Provider.Type {
	case "zoho":
		if cfg.Provider.Zoho.GatewayURL == "" {
			return nil, fmt.Errorf("provider.zoho.gateway_url is not configured")
		}
		return zoho.New(cfg.Provider.Zoho), nil

	case "imap":
		imapCfg := cfg.Provider.IMAP
		if imapCfg.Host == "" || imapCfg.Username == "" {
			return nil, fmt.Errorf("provider.imap.host and provider.imap.username are required")
		}

		password, err := resolveSecret(
			"ZMAIL_IMAP_PASSWORD", "imap-"+imapCfg.Username,
		)
		if err != nil {
			return nil, fmt.Errorf("resolving IMAP password: %w", err)
		}
		return imapmail.New(imapCfg, password), nil
	}

	return nil, fmt.Errorf("unknown provider type %q", cfg.Provider.Type)
}

// buildClassificationService constructs the configured LLM client
// wrapped with rate-limit retries.
func buildClassificationService(cfg *model.Config) (llm.Service, error) {
	apiKey, err := resolveLLMKey(cfg.LLM.Provider)
	if err != nil {
		return nil, err
	}

	service, err := llm.New(cfg.LLM, apiKey)
	if err != nil {
		return nil, err
	}

	callTimeout := time.Duration(cfg.LLM.CallTimeoutSec) * time.Second
	return llm.WithRetry(service, cfg.LLM.MaxRetries, callTimeout), nil
}

// resolveLLMKey finds the API key for the classification service:
// provider-specific environment variable first, then the generic one,
// then the system keyring.
func resolveLLMKey(llmProvider string) (string, error) {
	envVar := "OPENAI_API_KEY"
	if llmProvider == "anthropic" {
		envVar = "ANTHROPIC_API_KEY"
	}

	if key := os.Getenv(envVar); key != "" {
		return key, nil
	}

	key, err := resolveSecret("ZMAIL_LLM_API_KEY", "llm-api-key")
	if err != nil {
		return "", fmt.Errorf(
			"no API key found: set %s or store credential %q: %w",
			envVar, "llm-api-key", err,
		)
	}
	return key, nil
}

// resolveSecret reads a secret from the environment, falling back to
// the system keyring.
func resolveSecret(envVar, keyringKey string) (string, error) {
	if v := os.Getenv(envVar); v != "" {
		return v, nil
	}
	return credential.Get(keyringKey)
}
