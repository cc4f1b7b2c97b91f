package models

import (
	"fmt"
	"os"
	"strings"

	"github.com/kopihq/kopi/internal/config"
)

// ResolvedAuth holds the resolved API credentials for a provider.
type ResolvedAuth struct {
	Value string
}

// ResolveAuth resolves the API key for a provider.
// Resolution order: direct api_key → ${ENV_VAR} reference → driver default env.
func ResolveAuth(cfg config.ProviderConfig) (ResolvedAuth, error) {
	key := strings.TrimSpace(cfg.Auth.APIKey)
	if key != "" {
		if strings.HasPrefix(key, "${") && strings.HasSuffix(key, "}") {
			key = os.Getenv(key[2 : len(key)-1])
		}
		if key != "" {
			return ResolvedAuth{Value: key}, nil
		}
	}

	envVar := defaultEnvVar(cfg.Driver)
	if envVar == "" {
		return ResolvedAuth{}, fmt.Errorf("unknown driver %q: cannot resolve auth", cfg.Driver)
	}
	if key := os.Getenv(envVar); key != "" {
		return ResolvedAuth{Value: key}, nil
	}
	return ResolvedAuth{}, fmt.Errorf("%s not set", envVar)
}

func defaultEnvVar(driver string) string {
	switch strings.ToLower(driver) {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}
