package config

import "time"

// Config is the root configuration for Kopi.
type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	Models    ModelsConfig    `json:"models"`
	Embedding EmbeddingConfig `json:"embedding"`
	Sessions  SessionsConfig  `json:"sessions"`
	Outlets   OutletsConfig   `json:"outlets"`
	Products  ProductsConfig  `json:"products"`
	Timeouts  TimeoutsConfig  `json:"timeouts"`
	Events    EventsConfig    `json:"events"`
}

// GatewayConfig holds the HTTP server settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ModelsConfig holds chat model provider configuration.
type ModelsConfig struct {
	Default   string                    `json:"default"`
	Providers map[string]ProviderConfig `json:"providers"`
}

// ProviderConfig configures a single LLM provider.
type ProviderConfig struct {
	Driver    string         `json:"driver"` // "openai", "ollama", "anthropic", "gemini"
	Model     string         `json:"model"`
	BaseURL   string         `json:"base_url,omitempty"`
	Auth      AuthConfig     `json:"auth"`
	MaxTokens int            `json:"max_tokens,omitempty"`
	Timeout   Duration       `json:"timeout,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

// AuthConfig configures API key resolution.
type AuthConfig struct {
	APIKey string `json:"api_key,omitempty"` // direct key or ${ENV_VAR} reference
}

// EmbeddingConfig configures the embedding provider for the product vector store.
type EmbeddingConfig struct {
	Driver  string     `json:"driver"` // "openai", "ollama"
	Model   string     `json:"model"`
	BaseURL string     `json:"base_url,omitempty"`
	Auth    AuthConfig `json:"auth"`
	Dims    int        `json:"dims,omitempty"`
}

// SessionsConfig holds conversation memory settings.
type SessionsConfig struct {
	Window      int `json:"window"`       // turns kept per session
	MaxSessions int `json:"max_sessions"` // LRU bound on live sessions
}

// OutletsConfig holds the outlets database settings.
type OutletsConfig struct {
	DBPath string `json:"db_path"` // sqlite file (default: $KOPI_PATH/outlets.db)
}

// ProductsConfig holds the product knowledge base settings.
type ProductsConfig struct {
	Dir             string  `json:"dir"` // vector store directory (default: $KOPI_PATH/products)
	MaxResults      int     `json:"max_results"`
	SimilarityFloor float64 `json:"similarity_floor"`
}

// TimeoutsConfig bounds external collaborator calls.
type TimeoutsConfig struct {
	LLM       Duration `json:"llm"`
	Embedding Duration `json:"embedding"`
	Database  Duration `json:"database"`
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int `json:"buffer_size"`
}

// Duration wraps time.Duration for JSON unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
