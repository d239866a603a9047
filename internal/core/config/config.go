package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	coreagg "github.com/aevon-lab/timebucket/internal/core/aggregation"
	"github.com/aevon-lab/timebucket/internal/core/period"
	"github.com/aevon-lab/timebucket/internal/core/zone"
)

const envPrefix = "TIMEBUCKET_"

// Config represents the top-level application config plus the resolved
// engine environment and rules.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Engine   EngineConfig   `koanf:"engine"`
	Rules    RulesConfig    `koanf:"rules"`

	// Env and RuleLoading are populated by Load after validation.
	Env         coreagg.Env       `koanf:"-"`
	RuleLoading RuleLoadingConfig `koanf:"-"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

type DatabaseConfig struct {
	Type         string `koanf:"type"` // postgres | sqlite
	DSN          string `koanf:"dsn"`  // file path for sqlite
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type EngineConfig struct {
	Adapter string `koanf:"adapter"` // memory | pushdown
	// Fallback reruns pushdown queries the backend cannot express in memory.
	Fallback        bool   `koanf:"fallback"`
	DefaultTimeZone string `koanf:"default_time_zone"`
	WeekStart       string `koanf:"week_start"`
	Workers         int    `koanf:"workers"`
	ScanBatchSize   int    `koanf:"scan_batch_size"`
}

type RulesConfig struct {
	ConfigDir    string `koanf:"config_dir"`
	RequireRules bool   `koanf:"require_rules"`
}

type RuleLoadingConfig struct {
	ConfigDir  string
	Repository *coreagg.FileSystemRuleRepository
	Count      int
}

// BuildEnv resolves the ambient zone and week start.
func (c EngineConfig) BuildEnv() (coreagg.Env, error) {
	var loc *time.Location
	if strings.TrimSpace(c.DefaultTimeZone) != "" {
		l, err := zone.Load(c.DefaultTimeZone)
		if err != nil {
			return coreagg.Env{}, fmt.Errorf("invalid engine.default_time_zone: %w", err)
		}
		loc = l
	}
	ws := time.Sunday
	if strings.TrimSpace(c.WeekStart) != "" {
		d, err := period.ParseWeekday(c.WeekStart)
		if err != nil {
			return coreagg.Env{}, fmt.Errorf("invalid engine.week_start: %w", err)
		}
		ws = d
	}
	return coreagg.Env{Zones: zone.NewResolver(loc), WeekStart: ws}, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if c.Database.Type != "postgres" && c.Database.Type != "sqlite" {
		return fmt.Errorf("unsupported database.type %q (must be postgres or sqlite)", c.Database.Type)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0")
	}
	if c.Database.MaxIdleConns <= 0 {
		return fmt.Errorf("database.max_idle_conns must be > 0")
	}

	if c.Engine.Adapter != "memory" && c.Engine.Adapter != "pushdown" {
		return fmt.Errorf("invalid engine.adapter %q (must be memory or pushdown)", c.Engine.Adapter)
	}
	if c.Engine.Fallback && c.Engine.Adapter != "pushdown" {
		return fmt.Errorf("engine.fallback requires engine.adapter pushdown")
	}
	if c.Engine.Workers <= 0 {
		return fmt.Errorf("engine.workers must be > 0")
	}
	if c.Engine.ScanBatchSize <= 0 {
		return fmt.Errorf("engine.scan_batch_size must be > 0")
	}
	if _, err := c.Engine.BuildEnv(); err != nil {
		return err
	}

	if c.Rules.RequireRules && strings.TrimSpace(c.Rules.ConfigDir) == "" {
		return fmt.Errorf("rules.config_dir is required when rules.require_rules is set")
	}

	return nil
}

// Load parses config from file + env, validates it, then loads and validates rules.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":              8080,
		"server.host":              "0.0.0.0",
		"server.max_body_size_mb":  1,
		"server.mode":              "release",
		"database.type":            "sqlite",
		"database.dsn":             "./data/timebucket.db",
		"database.max_open_conns":  25,
		"database.max_idle_conns":  25,
		"database.auto_migrate":    true,
		"engine.adapter":           "memory",
		"engine.fallback":          false,
		"engine.default_time_zone": "UTC",
		"engine.week_start":        "sunday",
		"engine.workers":           4,
		"engine.scan_batch_size":   5000,
		"rules.config_dir":         "./config/rules",
		"rules.require_rules":      false,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	envCfg, err := cfg.Engine.BuildEnv()
	if err != nil {
		return nil, err
	}
	cfg.Env = envCfg

	repo, err := coreagg.NewFileSystemRuleRepository(cfg.Rules.ConfigDir, cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	rules, err := repo.List(context.Background(), "")
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	if cfg.Rules.RequireRules && len(rules) == 0 {
		return nil, fmt.Errorf("no rules found in %q", cfg.Rules.ConfigDir)
	}

	cfg.RuleLoading = RuleLoadingConfig{
		ConfigDir:  cfg.Rules.ConfigDir,
		Repository: repo,
		Count:      len(rules),
	}

	return &cfg, nil
}
