package models

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/kopihq/kopi/internal/config"
)

func TestResolveAuth_DirectAPIKey(t *testing.T) {
	cfg := config.ProviderConfig{
		Driver: "anthropic",
		Auth:   config.AuthConfig{APIKey: "sk-ant-test-123"},
	}
	auth, err := ResolveAuth(cfg)
	if err != nil {
		t.Fatalf("ResolveAuth: %v", err)
	}
	if auth.Value != "sk-ant-test-123" {
		t.Fatalf("expected value %q, got %q", "sk-ant-test-123", auth.Value)
	}
}

func TestResolveAuth_EnvVarSyntax(t *testing.T) {
	t.Setenv("MY_CUSTOM_KEY", "custom-api-key-value")

	cfg := config.ProviderConfig{
		Driver: "anthropic",
		Auth:   config.AuthConfig{APIKey: "${MY_CUSTOM_KEY}"},
	}
	auth, err := ResolveAuth(cfg)
	if err != nil {
		t.Fatalf("ResolveAuth: %v", err)
	}
	if auth.Value != "custom-api-key-value" {
		t.Fatalf("expected value %q, got %q", "custom-api-key-value", auth.Value)
	}
}

func TestResolveAuth_FallbackOpenAIEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-openai-key")

	cfg := config.ProviderConfig{Driver: "openai"}
	auth, err := ResolveAuth(cfg)
	if err != nil {
		t.Fatalf("ResolveAuth: %v", err)
	}
	if auth.Value != "env-openai-key" {
		t.Fatalf("expected value %q, got %q", "env-openai-key", auth.Value)
	}
}

func TestResolveAuth_UnknownDriver(t *testing.T) {
	cfg := config.ProviderConfig{Driver: "mistral"}
	_, err := ResolveAuth(cfg)
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if !strings.Contains(err.Error(), "unknown driver") {
		t.Fatalf("expected 'unknown driver' error, got %v", err)
	}
}

func TestResolveAuth_NothingSet(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	os.Unsetenv("ANTHROPIC_API_KEY")

	cfg := config.ProviderConfig{Driver: "anthropic"}
	_, err := ResolveAuth(cfg)
	if err == nil {
		t.Fatal("expected error when no auth is available")
	}
	if !strings.Contains(err.Error(), "ANTHROPIC_API_KEY not set") {
		t.Fatalf("expected 'ANTHROPIC_API_KEY not set' error, got %v", err)
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	cfg := config.ModelsConfig{
		Default:   "main",
		Providers: map[string]config.ProviderConfig{},
	}
	reg := NewRegistry(cfg)

	_, err := reg.Get(context.Background(), "nonexistent")
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected 'not found' error, got %v", err)
	}
}

func TestRegistry_DefaultName(t *testing.T) {
	cfg := config.ModelsConfig{
		Default: "claude-main",
		Providers: map[string]config.ProviderConfig{
			"claude-main": {Driver: "anthropic"},
		},
	}
	reg := NewRegistry(cfg)

	if reg.DefaultName() != "claude-main" {
		t.Fatalf("expected default name %q, got %q", "claude-main", reg.DefaultName())
	}
}

func TestRegistry_NoDefault(t *testing.T) {
	reg := NewRegistry(config.ModelsConfig{})
	if _, err := reg.Default(context.Background()); err == nil {
		t.Fatal("expected error when no default model is configured")
	}
}

func TestCreateModel_UnknownDriver(t *testing.T) {
	cfg := config.ProviderConfig{Driver: "unknown-driver"}
	_, err := CreateModel(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if !strings.Contains(err.Error(), "unknown driver") {
		t.Fatalf("expected 'unknown driver' error, got %v", err)
	}
}

func TestHandleError_Classification(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"unexpected status 401 Unauthorized", "authentication failed"},
		{"invalid api key provided", "authentication failed"},
		{"429 Too Many Requests", "rate limited"},
		{"prompt exceeds context length", "context too long"},
		{"model not found: gpt-9", "model not found"},
		{"dial tcp 127.0.0.1:11434: connection refused", "connection error"},
	}
	for _, tc := range cases {
		got := HandleError(errors.New(tc.raw))
		if got == nil || !strings.Contains(got.Error(), tc.want) {
			t.Errorf("HandleError(%q) = %v, want prefix %q", tc.raw, got, tc.want)
		}
	}
}

func TestHandleError_Passthrough(t *testing.T) {
	if HandleError(nil) != nil {
		t.Fatal("nil must stay nil")
	}
	plain := errors.New("something else entirely")
	if got := HandleError(plain); got != plain {
		t.Fatalf("unrecognized error must pass through unchanged, got %v", got)
	}
}
