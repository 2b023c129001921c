package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearConcordEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"DATABASE_URL", "OPENAI_API_KEY", "GROK_API_KEY", "ANTHROPIC_API_KEY",
		"DEEPSEEK_API_KEY", "GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET",
		"GOOGLE_REDIRECT_URI", "JWT_SECRET_KEY", "CONTEXT_MAX_MESSAGES",
		"CONTEXT_MAX_CHARS", "TOOL_LOOP_MAX_ITERS", "TOOL_CALL_DEADLINE_SEC",
		"APPROVAL_REQUIRED_FOR_WRITES", "JUDGE_MODEL_ID", "LOG_LEVEL",
		"METRICS_ADDR", "OTEL_EXPORTER_OTLP_ENDPOINT",
	}
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	clearConcordEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error when JWT_SECRET_KEY is unset")
	}
}

func TestLoadRequiresAtLeastOneProvider(t *testing.T) {
	clearConcordEnv(t)
	t.Setenv("JWT_SECRET_KEY", "secret")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error when no provider API key is set")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearConcordEnv(t)
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Context.MaxMessages != 10 {
		t.Errorf("expected default max messages 10, got %d", cfg.Context.MaxMessages)
	}
	if cfg.Context.MaxChars != 15000 {
		t.Errorf("expected default max chars 15000, got %d", cfg.Context.MaxChars)
	}
	if cfg.ToolLoop.MaxIterations != 10 {
		t.Errorf("expected default max iterations 10, got %d", cfg.ToolLoop.MaxIterations)
	}
	if cfg.ToolLoop.CallDeadline != 30*time.Second {
		t.Errorf("expected default call deadline 30s, got %s", cfg.ToolLoop.CallDeadline)
	}
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	clearConcordEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "concord.yaml")
	yamlContent := "context:\n  max_messages: 4\n  max_chars: 1000\n"
	if err := os.WriteFile(path, []byte(yamlContent), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("CONTEXT_MAX_MESSAGES", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Context.MaxMessages != 7 {
		t.Errorf("expected env override to win, got max messages %d", cfg.Context.MaxMessages)
	}
	if cfg.Context.MaxChars != 1000 {
		t.Errorf("expected yaml value to survive when env unset, got max chars %d", cfg.Context.MaxChars)
	}
}

func TestLoadMissingFilePathIsNotAnError(t *testing.T) {
	clearConcordEnv(t)
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("GROK_API_KEY", "xai-test")

	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestLoadRejectsUnknownYAMLFields(t *testing.T) {
	clearConcordEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "concord.yaml")
	if err := os.WriteFile(path, []byte("not_a_real_field: true\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown yaml field")
	}
}
