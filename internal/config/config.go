// Package config assembles runtime configuration from flags, environment
// variables and the optional config file. Everything downstream receives an
// explicit Config value; no package reads configuration at init time.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/yashward001/finchat/internal/llm"
)

// Defaults applied when neither the config file nor the environment sets a
// value.
const (
	DefaultDataBaseURL = "https://data.finchat.dev"
	DefaultToolTimeout = 30 * time.Second
	DefaultCacheSize   = 64
	DefaultCacheTTL    = 15 * time.Minute
)

// Config carries everything the agent and its tools need at runtime.
type Config struct {
	// Provider selects the LLM backend: "anthropic", "openai" or "gemini".
	Provider string
	// Model overrides the provider's default model when set.
	Model string
	// ProviderAPIKeys maps provider IDs to API keys.
	ProviderAPIKeys map[llm.ProviderID]string

	// DataBaseURL is the market data API endpoint.
	DataBaseURL string
	// DataAPIKey authenticates against the market data API.
	DataAPIKey string

	// ImgurClientID enables chart uploads when set.
	ImgurClientID string

	// ToolTimeout bounds each individual tool call.
	ToolTimeout time.Duration
	// CacheSize is the maximum number of cached daily series.
	CacheSize int
	// CacheTTL is how long a cached series stays fresh.
	CacheTTL time.Duration

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string
}

// Load builds a Config from viper's merged settings. Provider API keys come
// from the environment first, then the config file.
func Load(v *viper.Viper) (*Config, error) {
	v.SetDefault("data.base_url", DefaultDataBaseURL)
	v.SetDefault("tools.timeout", DefaultToolTimeout)
	v.SetDefault("cache.size", DefaultCacheSize)
	v.SetDefault("cache.ttl", DefaultCacheTTL)
	v.SetDefault("log.level", "info")

	cfg := &Config{
		Provider:        v.GetString("provider"),
		Model:           v.GetString("model"),
		ProviderAPIKeys: make(map[llm.ProviderID]string),
		DataBaseURL:     v.GetString("data.base_url"),
		DataAPIKey:      v.GetString("data.api_key"),
		ImgurClientID:   v.GetString("imgur.client_id"),
		ToolTimeout:     v.GetDuration("tools.timeout"),
		CacheSize:       v.GetInt("cache.size"),
		CacheTTL:        v.GetDuration("cache.ttl"),
		LogLevel:        v.GetString("log.level"),
	}

	for _, id := range llm.AllProviderIDs() {
		if key := os.Getenv(llm.EnvVarForProvider(id)); key != "" {
			cfg.ProviderAPIKeys[id] = key
			continue
		}
		if key := v.GetString(fmt.Sprintf("providers.%s.api_key", id)); key != "" {
			cfg.ProviderAPIKeys[id] = key
		}
	}
	if cfg.DataAPIKey == "" {
		cfg.DataAPIKey = os.Getenv("FINCHAT_DATA_API_KEY")
	}
	if cfg.ImgurClientID == "" {
		cfg.ImgurClientID = os.Getenv("IMGUR_CLIENT_ID")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ToolTimeout <= 0 {
		return fmt.Errorf("tools.timeout must be positive")
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache.size must be positive")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	if c.Provider != "" {
		id := llm.ProviderID(c.Provider)
		known := false
		for _, pid := range llm.AllProviderIDs() {
			if pid == id {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown provider %q", c.Provider)
		}
	}
	return nil
}

// ResolveProvider picks the provider to use: the configured one if it has a
// key, otherwise the first provider with a key available.
func (c *Config) ResolveProvider() (llm.ProviderID, string, error) {
	if c.Provider != "" {
		id := llm.ProviderID(c.Provider)
		key, ok := c.ProviderAPIKeys[id]
		if !ok {
			return "", "", fmt.Errorf("no API key for provider %s: set %s", id, llm.EnvVarForProvider(id))
		}
		return id, key, nil
	}
	for _, id := range llm.AllProviderIDs() {
		if key, ok := c.ProviderAPIKeys[id]; ok {
			return id, key, nil
		}
	}
	return "", "", fmt.Errorf("no LLM provider configured: set one of ANTHROPIC_API_KEY, OPENAI_API_KEY or GOOGLE_API_KEY")
}
