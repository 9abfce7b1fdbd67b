// Package config supplies orchestrator configuration: the default agent,
// timeout and concurrency bounds, cache settings, and the enabled agent
// set. Configuration is resolved once at construction time and read-only
// thereafter.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aman-jaglan/CI-Code-Companion-sub001/internal/agent"
)

// Bounds applied during normalization. Out-of-range values are clamped,
// not rejected, so a misconfigured environment degrades instead of
// failing.
const (
	MinAgentTimeout = 5 * time.Second
	MaxAgentTimeout = 300 * time.Second

	MinConcurrentOperations = 1
	MaxConcurrentOperations = 32
)

// Config holds all orchestrator settings.
type Config struct {
	// DefaultAgentID is the guaranteed routing fallback.
	DefaultAgentID string

	// AgentTimeout is the per-agent deadline applied to descriptors that
	// do not set their own.
	AgentTimeout time.Duration

	// MaxConcurrentOperations bounds concurrent agent invocations across
	// all in-flight requests.
	MaxConcurrentOperations int

	CacheTTL     time.Duration
	CacheEnabled bool

	// CachePath, when set, enables the persistent SQLite cache store.
	CachePath string

	// Agents is the enabled-agent set registered at startup.
	Agents []agent.Descriptor
}

// Default returns the default configuration with the built-in agent set.
func Default() *Config {
	return &Config{
		DefaultAgentID:          "general",
		AgentTimeout:            120 * time.Second,
		MaxConcurrentOperations: 5,
		CacheTTL:                1 * time.Hour,
		CacheEnabled:            true,
		Agents:                  DefaultAgents(),
	}
}

// DefaultAgents returns the built-in agent descriptors. The general
// agent carries no detection metadata: it never outscores a specialist
// and serves as the routing fallback.
func DefaultAgents() []agent.Descriptor {
	return []agent.Descriptor{
		{
			ID:      "react_code",
			Enabled: true,
			Detection: agent.DetectionPatterns{
				Extensions: []string{".jsx", ".tsx"},
				ContentPatterns: []string{
					`import\s+react`,
					`from\s+['"]react['"]`,
					`use(State|Effect|Memo|Callback)\s*\(`,
					`<[A-Z][A-Za-z0-9]*[\s/>]`,
				},
				FrameworkKeywords: []string{"react", "next.js", "redux"},
			},
			Config: map[string]any{
				"role": "You are a React specialist reviewing component code for hook misuse, rendering bugs, and state management problems.",
			},
		},
		{
			ID:      "python_code",
			Enabled: true,
			Detection: agent.DetectionPatterns{
				Extensions: []string{".py"},
				ContentPatterns: []string{
					`^import\s+\w+`,
					`^from\s+\w+\s+import`,
					`def\s+\w+\s*\(`,
					`class\s+\w+.*:`,
				},
				FrameworkKeywords: []string{"django", "flask", "fastapi", "pandas"},
			},
			Config: map[string]any{
				"role": "You are a Python specialist reviewing code for correctness, typing problems, and idiomatic style.",
			},
		},
		{
			ID:      "node_code",
			Enabled: true,
			Detection: agent.DetectionPatterns{
				Extensions: []string{".js", ".ts", ".mjs"},
				ContentPatterns: []string{
					`require\s*\(`,
					`module\.exports`,
					`export\s+(default|const|function)`,
					`async\s+function`,
				},
				FrameworkKeywords: []string{"express", "node", "nest", "koa"},
			},
			Config: map[string]any{
				"role": "You are a Node.js specialist reviewing server-side JavaScript and TypeScript for async bugs and API misuse.",
			},
		},
		{
			ID:      "security",
			Enabled: true,
			Detection: agent.DetectionPatterns{
				ContentPatterns: []string{
					`password|secret|api[_-]?key|token`,
					`eval\s*\(`,
					`exec\s*\(`,
					`SELECT\s+.*\s+FROM`,
				},
				FrameworkKeywords: []string{"crypto", "auth", "jwt", "oauth"},
			},
			Config: map[string]any{
				"role": "You are a security reviewer looking for injection risks, credential leaks, and unsafe evaluation.",
			},
		},
		{
			ID:      "general",
			Enabled: true,
			Config: map[string]any{
				"role": "You are a general code reviewer checking correctness, readability, and maintainability.",
			},
		},
	}
}

// Normalize clamps bounded settings into range and applies per-agent
// timeout defaults. Always called before the config is handed to the
// orchestrator.
func (c *Config) Normalize() {
	if c.AgentTimeout < MinAgentTimeout {
		c.AgentTimeout = MinAgentTimeout
	}
	if c.AgentTimeout > MaxAgentTimeout {
		c.AgentTimeout = MaxAgentTimeout
	}
	if c.MaxConcurrentOperations < MinConcurrentOperations {
		c.MaxConcurrentOperations = MinConcurrentOperations
	}
	if c.MaxConcurrentOperations > MaxConcurrentOperations {
		c.MaxConcurrentOperations = MaxConcurrentOperations
	}
	for i := range c.Agents {
		if c.Agents[i].Timeout <= 0 {
			c.Agents[i].Timeout = c.AgentTimeout
			continue
		}
		if c.Agents[i].Timeout < MinAgentTimeout {
			c.Agents[i].Timeout = MinAgentTimeout
		}
		if c.Agents[i].Timeout > MaxAgentTimeout {
			c.Agents[i].Timeout = MaxAgentTimeout
		}
	}
}

// Validate checks settings that cannot be clamped into sanity.
func (c *Config) Validate() error {
	if c.DefaultAgentID == "" {
		return fmt.Errorf("default_agent must be set")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache ttl must be positive (got %v)", c.CacheTTL)
	}
	seen := make(map[string]bool, len(c.Agents))
	hasDefault := false
	for _, d := range c.Agents {
		if d.ID == "" {
			return fmt.Errorf("agent descriptor with empty id")
		}
		if seen[d.ID] {
			return fmt.Errorf("duplicate agent id %q", d.ID)
		}
		seen[d.ID] = true
		if d.ID == c.DefaultAgentID {
			hasDefault = true
		}
	}
	if !hasDefault {
		return fmt.Errorf("default agent %q is not in the agent set", c.DefaultAgentID)
	}
	return nil
}

// fileConfig is the YAML shape of a companion.yaml file. Agents declared
// here replace the built-in set; omitted sections keep defaults.
type fileConfig struct {
	DefaultAgent            string          `yaml:"default_agent"`
	AgentTimeoutSeconds     int             `yaml:"agent_timeout_seconds"`
	MaxConcurrentOperations int             `yaml:"max_concurrent_operations"`
	Cache                   fileCacheConfig `yaml:"cache"`
	Agents                  []fileAgent     `yaml:"agents"`
}

type fileCacheConfig struct {
	Enabled    *bool  `yaml:"enabled"`
	TTLSeconds int    `yaml:"ttl_seconds"`
	Path       string `yaml:"path"`
}

type fileAgent struct {
	ID                string            `yaml:"id"`
	Enabled           *bool             `yaml:"enabled"`
	TimeoutSeconds    int               `yaml:"timeout_seconds"`
	Extensions        []string          `yaml:"extensions"`
	ContentPatterns   []string          `yaml:"content_patterns"`
	FrameworkKeywords []string          `yaml:"framework_keywords"`
	Capabilities      []string          `yaml:"capabilities"`
	Config            map[string]any    `yaml:"config"`
}

// Load resolves configuration: defaults, then the YAML file at path (if
// it exists), then environment overrides, then normalization. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fc.DefaultAgent != "" {
		c.DefaultAgentID = fc.DefaultAgent
	}
	if fc.AgentTimeoutSeconds > 0 {
		c.AgentTimeout = time.Duration(fc.AgentTimeoutSeconds) * time.Second
	}
	if fc.MaxConcurrentOperations > 0 {
		c.MaxConcurrentOperations = fc.MaxConcurrentOperations
	}
	if fc.Cache.Enabled != nil {
		c.CacheEnabled = *fc.Cache.Enabled
	}
	if fc.Cache.TTLSeconds > 0 {
		c.CacheTTL = time.Duration(fc.Cache.TTLSeconds) * time.Second
	}
	if fc.Cache.Path != "" {
		c.CachePath = fc.Cache.Path
	}

	if len(fc.Agents) > 0 {
		agents := make([]agent.Descriptor, 0, len(fc.Agents))
		for _, fa := range fc.Agents {
			d := agent.Descriptor{
				ID:      fa.ID,
				Enabled: true,
				Detection: agent.DetectionPatterns{
					Extensions:        fa.Extensions,
					ContentPatterns:   fa.ContentPatterns,
					FrameworkKeywords: fa.FrameworkKeywords,
				},
				Config: fa.Config,
			}
			if fa.Enabled != nil {
				d.Enabled = *fa.Enabled
			}
			if fa.TimeoutSeconds > 0 {
				d.Timeout = time.Duration(fa.TimeoutSeconds) * time.Second
			}
			for _, capability := range fa.Capabilities {
				d.Capabilities = append(d.Capabilities, agent.Capability(capability))
			}
			agents = append(agents, d)
		}
		c.Agents = agents
	}
	return nil
}

// Environment variables:
//   - COMPANION_DEFAULT_AGENT: routing fallback agent id
//   - COMPANION_AGENT_TIMEOUT_SECONDS: default per-agent deadline
//   - COMPANION_MAX_CONCURRENT: global concurrency limit
//   - COMPANION_CACHE_TTL_SECONDS: cache entry time-to-live
//   - COMPANION_CACHE_ENABLED: enable/disable the result cache
//   - COMPANION_CACHE_PATH: persistent cache database path
func (c *Config) applyEnv() error {
	if v := os.Getenv("COMPANION_DEFAULT_AGENT"); v != "" {
		c.DefaultAgentID = v
	}
	if v := os.Getenv("COMPANION_CACHE_PATH"); v != "" {
		c.CachePath = v
	}

	var timeoutSeconds, ttlSeconds int
	if err := parseEnvInt("COMPANION_AGENT_TIMEOUT_SECONDS", &timeoutSeconds); err != nil {
		return err
	}
	if timeoutSeconds > 0 {
		c.AgentTimeout = time.Duration(timeoutSeconds) * time.Second
	}
	if err := parseEnvInt("COMPANION_MAX_CONCURRENT", &c.MaxConcurrentOperations); err != nil {
		return err
	}
	if err := parseEnvInt("COMPANION_CACHE_TTL_SECONDS", &ttlSeconds); err != nil {
		return err
	}
	if ttlSeconds > 0 {
		c.CacheTTL = time.Duration(ttlSeconds) * time.Second
	}
	if err := parseEnvBool("COMPANION_CACHE_ENABLED", &c.CacheEnabled); err != nil {
		return err
	}
	return nil
}

// parseEnvInt parses an integer environment variable into target,
// leaving target unchanged if the variable is unset.
func parseEnvInt(key string, target *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %q is not an integer", key, v)
	}
	*target = parsed
	return nil
}

// parseEnvBool parses a boolean environment variable into target,
// leaving target unchanged if the variable is unset.
func parseEnvBool(key string, target *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %q is not a boolean", key, v)
	}
	*target = parsed
	return nil
}
