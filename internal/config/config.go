// Package config loads Sovereign Stack's configuration from a YAML file on
// disk, applies environment overrides, and validates resource limits before
// the server starts.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Sovereign Stack configuration.
type Config struct {
	Root string `yaml:"root"`

	Logging    LoggingConfig    `yaml:"logging"`
	Governance GovernanceConfig `yaml:"governance"`
	Spiral     SpiralConfig     `yaml:"spiral"`
	Compaction CompactionConfig `yaml:"compaction"`
	Transport  TransportConfig  `yaml:"transport"`
	CoreLimits CoreLimits       `yaml:"core_limits"`
}

// DefaultConfig returns the default configuration. Root is resolved
// separately by ResolveRoot since it depends on the environment and the
// operator's home directory.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "text",
			DebugMode: false,
		},
		Governance: GovernanceConfig{
			DetectorTimeout:         "5s",
			FileCountCap:            500,
			DepthCap:                12,
			EntropyCap:              4.5,
			GrowthRateCapPerMinute:  50,
			ReversibilityFloor:      0.3,
			CriticalRequiresConsent: true,
		},
		Spiral: SpiralConfig{
			ReflectionAdvanceEvery: 2,
			InheritanceTopK:        20,
		},
		Compaction: CompactionConfig{
			Capacity: 3,
		},
		Transport: TransportConfig{
			Mode:           "stdio",
			SSEAddr:        ":8787",
			MaxConnections: 32,
			CallTimeout:    "30s",
		},
		CoreLimits: CoreLimits{
			MaxConcurrentToolCalls: 8,
			MaxRecallLimit:         200,
		},
	}
}

// Load reads configuration from path, falling back to defaults (with env
// overrides applied) if the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to path as YAML, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// applyEnvOverrides applies environment variable overrides, one tunable
// per check, in priority order over the YAML-loaded value.
func (c *Config) applyEnvOverrides() {
	if root := os.Getenv("SOVEREIGN_ROOT"); root != "" {
		c.Root = root
	}
	if addr := os.Getenv("SOVEREIGN_SSE_ADDR"); addr != "" {
		c.Transport.SSEAddr = addr
	}
	if mode := os.Getenv("SOVEREIGN_TRANSPORT"); mode != "" {
		c.Transport.Mode = mode
	}
	if os.Getenv("SOVEREIGN_DEBUG") == "1" {
		c.Logging.DebugMode = true
	}
}

// ResolveRoot returns the effective storage root: Root if set, else
// SOVEREIGN_ROOT, else ~/.sovereign.
func (c *Config) ResolveRoot() (string, error) {
	if c.Root != "" {
		return c.Root, nil
	}
	if env := os.Getenv("SOVEREIGN_ROOT"); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".sovereign"), nil
}

// GetDetectorTimeout returns the threshold scan timeout as a duration.
func (c *GovernanceConfig) GetDetectorTimeout() time.Duration {
	d, err := time.ParseDuration(c.DetectorTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetCallTimeout returns the MCP tool call deadline as a duration.
func (c *TransportConfig) GetCallTimeout() time.Duration {
	d, err := time.ParseDuration(c.CallTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Validate checks that core limits and governance caps are within
// acceptable ranges, in the style of the teacher's ValidateCoreLimits.
func (c *Config) Validate() error {
	if c.CoreLimits.MaxConcurrentToolCalls < 1 {
		return fmt.Errorf("core_limits.max_concurrent_tool_calls must be >= 1")
	}
	if c.Compaction.Capacity != 3 {
		return fmt.Errorf("compaction.capacity is fixed at 3 by specification, got %d", c.Compaction.Capacity)
	}
	if c.Governance.ReversibilityFloor < 0 || c.Governance.ReversibilityFloor > 1 {
		return fmt.Errorf("governance.reversibility_floor must be in [0,1]")
	}
	if c.Governance.FileCountCap < 1 {
		return fmt.Errorf("governance.file_count_cap must be >= 1")
	}
	return nil
}
