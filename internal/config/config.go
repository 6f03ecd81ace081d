// Package config loads and validates the AgentRoom TOML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that unmarshals from TOML strings like "60s" or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the top-level AgentRoom configuration.
type Config struct {
	General   General           `toml:"general"`
	Agents    AgentDefaults     `toml:"agents"`
	Models    Models            `toml:"models"`
	LLM       LLM               `toml:"llm"`
	API       API               `toml:"api"`
}

// General holds process-wide settings.
type General struct {
	StateDB           string   `toml:"state_db"`
	LogLevel          string   `toml:"log_level"`
	SchedulerMode     string   `toml:"scheduler_mode"` // "individual" or "batched"
	TickInterval      Duration `toml:"tick_interval"`  // outer scheduler sleep, spec caps at 100ms
	PollGranularity   Duration `toml:"poll_granularity"`
	PullForwardWindow Duration `toml:"pull_forward_window"`
	MaxRecentActions  int      `toml:"max_recent_actions"`
	PersonasFile      string   `toml:"personas_file"`
	ResponseFormat    string   `toml:"response_format"` // "json", "abbr", or "toon"
}

// AgentDefaults seeds newly-created agents and bounds runtime tuning knobs.
type AgentDefaults struct {
	TokenBudget           int      `toml:"token_budget"`
	KnowledgePct          int      `toml:"knowledge_pct"`
	RecentActionsPct      int      `toml:"recent_actions_pct"`
	RoomsPct              int      `toml:"rooms_pct"`
	MinAllocationPct      int      `toml:"min_allocation_pct"`
	WarningThresholdPct   int      `toml:"warning_threshold_pct"`
	CriticalThresholdPct  int      `toml:"critical_threshold_pct"`
	HeartbeatMin          Duration `toml:"heartbeat_min"`
	HeartbeatMax          Duration `toml:"heartbeat_max"`
	HeartbeatVariance     float64  `toml:"heartbeat_variance"`
	HeartbeatDecayStep    Duration `toml:"heartbeat_decay_step"`
	ReactionStep          Duration `toml:"reaction_step"`
	RoomWPMMin            int      `toml:"room_wpm_min"`
	RoomWPMMax            int      `toml:"room_wpm_max"`
	DefaultRoomWPM        int      `toml:"default_room_wpm"`
	BaseHUDMetaTokens     int      `toml:"base_hud_meta_tokens"`
	RoomOverheadReserve   int      `toml:"room_overhead_reserve"`
	RecentActionRingSize  int      `toml:"recent_action_ring_size"`
}

// Models configures which model identifiers agents may be assigned.
type Models struct {
	Default              string   `toml:"default"`
	Allowed              []string `toml:"allowed"`
	TemperatureUnsupported []string `toml:"temperature_unsupported"`
}

// LLM configures the provider transport.
type LLM struct {
	BaseURL          string   `toml:"base_url"`
	Timeout          Duration `toml:"timeout"`
	RetryBase        Duration `toml:"retry_base"`
	RetryMax         Duration `toml:"retry_max"`
	RetryMaxAttempts int      `toml:"retry_max_attempts"`
}

// API configures the thin REST adapter (outside the core pipeline).
type API struct {
	Bind     string      `toml:"bind"`
	Security APISecurity `toml:"security"`
}

// APISecurity configures the bearer-token auth middleware guarding
// write/control endpoints.
type APISecurity struct {
	Enabled          bool     `toml:"enabled"`
	AllowedTokens    []string `toml:"allowed_tokens"`
	RequireLocalOnly bool     `toml:"require_local_only"`
	AuditLog         string   `toml:"audit_log"`
}

// Clone returns a deep-enough copy of cfg for safe concurrent handoff.
func (cfg *Config) Clone() *Config {
	if cfg == nil {
		return nil
	}
	clone := *cfg
	clone.Models.Allowed = append([]string(nil), cfg.Models.Allowed...)
	clone.Models.TemperatureUnsupported = append([]string(nil), cfg.Models.TemperatureUnsupported...)
	clone.API.Security.AllowedTokens = append([]string(nil), cfg.API.Security.AllowedTokens...)
	return &clone
}

// Load reads and validates a TOML config file, applying defaults for
// anything left unset (mirrors the teacher's applyDefaults/validate split).
func Load(path string) (*Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	applyDefaults(&cfg, md)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadManager loads a config and wraps it in a thread-safe ConfigManager.
func LoadManager(path string) (ConfigManager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewManager(cfg), nil
}

func applyDefaults(cfg *Config, md toml.MetaData) {
	_ = md
	if cfg.General.SchedulerMode == "" {
		cfg.General.SchedulerMode = "individual"
	}
	if cfg.General.TickInterval.Duration == 0 {
		cfg.General.TickInterval = Duration{100 * time.Millisecond}
	}
	if cfg.General.PollGranularity.Duration == 0 {
		cfg.General.PollGranularity = Duration{500 * time.Millisecond}
	}
	if cfg.General.PullForwardWindow.Duration == 0 {
		cfg.General.PullForwardWindow = Duration{250 * time.Millisecond}
	}
	if cfg.General.MaxRecentActions == 0 {
		cfg.General.MaxRecentActions = 20
	}
	if cfg.General.StateDB == "" {
		cfg.General.StateDB = "agentroom.db"
	}
	if cfg.General.ResponseFormat == "" {
		cfg.General.ResponseFormat = "json"
	}
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}

	a := &cfg.Agents
	if a.TokenBudget == 0 {
		a.TokenBudget = 8000
	}
	if a.KnowledgePct == 0 && a.RecentActionsPct == 0 && a.RoomsPct == 0 {
		a.KnowledgePct = 30
		a.RecentActionsPct = 10
		a.RoomsPct = 60
	}
	if a.MinAllocationPct == 0 {
		a.MinAllocationPct = 5
	}
	if a.WarningThresholdPct == 0 {
		a.WarningThresholdPct = 75
	}
	if a.CriticalThresholdPct == 0 {
		a.CriticalThresholdPct = 90
	}
	if a.HeartbeatMin.Duration == 0 {
		a.HeartbeatMin = Duration{1 * time.Second}
	}
	if a.HeartbeatMax.Duration == 0 {
		a.HeartbeatMax = Duration{10 * time.Second}
	}
	if a.HeartbeatVariance == 0 {
		a.HeartbeatVariance = 0.2
	}
	if a.HeartbeatDecayStep.Duration == 0 {
		a.HeartbeatDecayStep = Duration{100 * time.Millisecond}
	}
	if a.ReactionStep.Duration == 0 {
		a.ReactionStep = Duration{500 * time.Millisecond}
	}
	if a.RoomWPMMin == 0 {
		a.RoomWPMMin = 10
	}
	if a.RoomWPMMax == 0 {
		a.RoomWPMMax = 200
	}
	if a.DefaultRoomWPM == 0 {
		a.DefaultRoomWPM = 80
	}
	if a.BaseHUDMetaTokens == 0 {
		a.BaseHUDMetaTokens = 2200
	}
	if a.RoomOverheadReserve == 0 {
		a.RoomOverheadReserve = 200
	}
	if a.RecentActionRingSize == 0 {
		a.RecentActionRingSize = cfg.General.MaxRecentActions
	}

	if cfg.Models.Default == "" {
		cfg.Models.Default = "claude-sonnet-4-5"
	}
	if len(cfg.Models.Allowed) == 0 {
		cfg.Models.Allowed = []string{cfg.Models.Default}
	}

	if cfg.LLM.Timeout.Duration == 0 {
		cfg.LLM.Timeout = Duration{30 * time.Second}
	}
	if cfg.LLM.RetryBase.Duration == 0 {
		cfg.LLM.RetryBase = Duration{500 * time.Millisecond}
	}
	if cfg.LLM.RetryMax.Duration == 0 {
		cfg.LLM.RetryMax = Duration{30 * time.Second}
	}
	if cfg.LLM.RetryMaxAttempts == 0 {
		cfg.LLM.RetryMaxAttempts = 5
	}

	if cfg.API.Bind == "" {
		cfg.API.Bind = "127.0.0.1:8765"
	}
}

func validate(cfg *Config) error {
	switch cfg.General.SchedulerMode {
	case "individual", "batched":
	default:
		return fmt.Errorf("general.scheduler_mode must be 'individual' or 'batched', got %q", cfg.General.SchedulerMode)
	}
	if cfg.General.TickInterval.Duration > 100*time.Millisecond {
		return fmt.Errorf("general.tick_interval must be <= 100ms, got %s", cfg.General.TickInterval.Duration)
	}
	if cfg.Agents.HeartbeatMin.Duration < time.Second || cfg.Agents.HeartbeatMax.Duration > 10*time.Second {
		return fmt.Errorf("agents heartbeat bounds must fall within [1s, 10s]")
	}
	if cfg.Agents.HeartbeatMin.Duration > cfg.Agents.HeartbeatMax.Duration {
		return fmt.Errorf("agents.heartbeat_min must be <= agents.heartbeat_max")
	}
	sum := cfg.Agents.KnowledgePct + cfg.Agents.RecentActionsPct + cfg.Agents.RoomsPct
	if sum <= 0 || sum > 300 {
		return fmt.Errorf("agents monitor allocation percentages look invalid: knowledge=%d recent_actions=%d rooms=%d",
			cfg.Agents.KnowledgePct, cfg.Agents.RecentActionsPct, cfg.Agents.RoomsPct)
	}
	if cfg.Agents.RoomWPMMin < 1 || cfg.Agents.RoomWPMMax > 10000 || cfg.Agents.RoomWPMMin > cfg.Agents.RoomWPMMax {
		return fmt.Errorf("agents.room_wpm bounds are invalid")
	}
	if cfg.Models.Default == "" {
		return fmt.Errorf("models.default is required")
	}
	if !containsString(cfg.Models.Allowed, cfg.Models.Default) {
		return fmt.Errorf("models.default %q must be present in models.allowed", cfg.Models.Default)
	}
	if strings.TrimSpace(cfg.General.StateDB) == "" {
		return fmt.Errorf("general.state_db is required")
	}
	switch cfg.General.ResponseFormat {
	case "json", "abbr", "toon":
	default:
		return fmt.Errorf("general.response_format must be 'json', 'abbr', or 'toon', got %q", cfg.General.ResponseFormat)
	}
	return nil
}

// ModelTemperatureSupported reports whether temperature should be sent to the
// provider for this model (spec §6.2: omitted for models known not to accept it).
func (cfg *Config) ModelTemperatureSupported(model string) bool {
	return !containsString(cfg.Models.TemperatureUnsupported, model)
}

// ModelAllowed reports whether model is in the configured allow-list.
func (cfg *Config) ModelAllowed(model string) bool {
	return containsString(cfg.Models.Allowed, model)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ExpandHome expands a leading "~" to the user's home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return home + path[1:]
	}
	return path
}
