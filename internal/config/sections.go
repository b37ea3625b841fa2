package config

// LoggingConfig configures category-scoped logging (internal/logging).
type LoggingConfig struct {
	Level      string          `yaml:"level"`
	Format     string          `yaml:"format"` // "json" or "text"
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
}

// GovernanceConfig configures the Threshold Detector, Simulator, and
// Deliberator.
type GovernanceConfig struct {
	DetectorTimeout string `yaml:"detector_timeout"`

	FileCountCap           int     `yaml:"file_count_cap"`
	DepthCap               int     `yaml:"depth_cap"`
	EntropyCap             float64 `yaml:"entropy_cap"`
	GrowthRateCapPerMinute int     `yaml:"growth_rate_cap_per_minute"`

	// ReversibilityFloor: a reject vote citing reversibility below this
	// floor forces a pause outcome (spec §4.5a).
	ReversibilityFloor float64 `yaml:"reversibility_floor"`

	// CriticalRequiresConsent is loaded and saved with the configuration
	// but not read by the Deliberator, which always requires unanimous
	// proceed when any projected violation is severity=critical.
	CriticalRequiresConsent bool `yaml:"critical_requires_consent"`
}

// SpiralConfig configures the per-session cognitive state machine.
type SpiralConfig struct {
	// ReflectionAdvanceEvery is loaded and saved with the configuration
	// but not read by the spiral Machine, which always advances the phase
	// when reflection_depth is divisible by 2, saturating at 9.
	ReflectionAdvanceEvery int `yaml:"reflection_advance_every"`
	InheritanceTopK        int `yaml:"inheritance_top_k"`
}

// CompactionConfig configures the bounded FIFO summary buffer.
type CompactionConfig struct {
	Capacity int `yaml:"capacity"`
}

// TransportConfig configures the MCP surface's transport binding.
type TransportConfig struct {
	Mode           string `yaml:"mode"` // "stdio" or "sse"
	SSEAddr        string `yaml:"sse_addr"`
	MaxConnections int    `yaml:"max_connections"`
	CallTimeout    string `yaml:"call_timeout"`
}

// CoreLimits enforces system-wide resource constraints.
type CoreLimits struct {
	MaxConcurrentToolCalls int `yaml:"max_concurrent_tool_calls"`
	MaxRecallLimit         int `yaml:"max_recall_limit"`
}
