// Package config loads the workshop runtime configuration: defaults, then
// TOML files in order, then WORKSHOP_* environment variables. Later sources
// win; missing files are skipped silently.
package config

import (
	"net"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

type Config struct {
	// BaseURL is the remote server address used by clients.
	BaseURL string `toml:"base_url"`
	// Host and Port are the server bind address.
	Host string `toml:"host"`
	Port int    `toml:"port"`
	// Token is the shared bearer token. Empty disables authentication.
	Token string `toml:"token"`
	// UserID identifies the client user; the server sanitizes it.
	UserID string `toml:"user_id"`
	// AutoApprove skips the write-confirmation gate on file tools.
	AutoApprove bool `toml:"auto_approve"`
	// BaseDir anchors the filesystem layout: workspace/, workspaces/<user>/
	// and .workshop/sessions/ all live under it.
	BaseDir string `toml:"base_dir"`

	Agent    AgentConfig    `toml:"agent"`
	LLM      LLMConfig      `toml:"llm"`
	Search   SearchConfig   `toml:"search"`
	Observer ObserverConfig `toml:"observer"`
}

type AgentConfig struct {
	MaxSteps     int    `toml:"max_steps"`
	SystemPrompt string `toml:"system_prompt"`
}

type LLMConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	// RPM and TPM enable proactive provider rate limiting when > 0.
	RPM int `toml:"rpm"`
	TPM int `toml:"tpm"`
}

type SearchConfig struct {
	// APIKey selects the JSON search API backend; without it searches
	// scrape a public HTML endpoint.
	APIKey string `toml:"api_key"`
}

type ObserverConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"`
}

const defaultSystemPrompt = "You are a helpful assistant. You can search the web, " +
	"fetch pages, read, write and patch files inside the user's workspace, and " +
	"summarize documents. Use tools when they help; answer directly when they do not."

// Default is the zero-file configuration: a loopback server over the user's
// home directory against the OpenAI endpoint.
func Default() Config {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "."
	}
	return Config{
		BaseURL: "http://127.0.0.1:8787",
		Host:    "127.0.0.1",
		Port:    8787,
		BaseDir: home,
		Agent:   AgentConfig{MaxSteps: 12, SystemPrompt: defaultSystemPrompt},
		LLM:     LLMConfig{BaseURL: "https://api.openai.com/v1", Model: "gpt-4o-mini"},
	}
}

// Load reads config: defaults -> each TOML file in order -> env vars.
// Later files override earlier ones key by key; env wins over all files.
func Load(paths ...string) Config {
	cfg := Default()

	for _, path := range paths {
		if path == "" {
			continue
		}
		if data, err := os.ReadFile(path); err == nil {
			_ = toml.Unmarshal(data, &cfg)
		}
	}

	// Env overrides
	if v := os.Getenv("WORKSHOP_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("WORKSHOP_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("WORKSHOP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Port = n
		}
	}
	if v := os.Getenv("WORKSHOP_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("WORKSHOP_USER_ID"); v != "" {
		cfg.UserID = v
	}
	if v := os.Getenv("WORKSHOP_AUTO_APPROVE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AutoApprove = b
		}
	}
	if v := os.Getenv("WORKSHOP_BASE_DIR"); v != "" {
		cfg.BaseDir = v
	}
	if v := os.Getenv("WORKSHOP_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Agent.MaxSteps = n
		}
	}
	if v := os.Getenv("WORKSHOP_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("WORKSHOP_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("WORKSHOP_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("WORKSHOP_SEARCH_API_KEY"); v != "" {
		cfg.Search.APIKey = v
	}
	if v := os.Getenv("WORKSHOP_OTEL_ENDPOINT"); v != "" {
		cfg.Observer.Enabled = true
		cfg.Observer.Endpoint = v
	}

	return cfg
}

// Addr returns the server bind address as host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
