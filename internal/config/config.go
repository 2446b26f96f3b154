package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Platform PlatformConfig `yaml:"platform"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Trading  TradingConfig  `yaml:"trading"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Telegram TelegramConfig `yaml:"telegram"`
	Web      WebConfig      `yaml:"web"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type PlatformConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type TradingConfig struct {
	AutoTrade          bool    `yaml:"auto_trade"`
	Capital            float64 `yaml:"capital"`
	RiskPercent        float64 `yaml:"risk_percent"`
	MinConfidence      int     `yaml:"min_confidence"`
	MinSafetyScore     int     `yaml:"min_safety_score"`
	Symbol             string  `yaml:"symbol"`
	Exchange           string  `yaml:"exchange"`
	Product            string  `yaml:"product"`
	InterlockForceFlat bool    `yaml:"interlock_force_flat"`
}

type AnalysisConfig struct {
	IntervalSeconds int    `yaml:"interval_seconds"`
	StrategyNotes   string `yaml:"strategy_notes"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type WebConfig struct {
	Port int `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// AutoIntervals are the timeframe intervals the auto cycle may use, in seconds.
var AutoIntervals = []int{60, 300, 900, 3600}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Platform.TimeoutSeconds == 0 {
		cfg.Platform.TimeoutSeconds = 180
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-2.0-flash"
	}
	if cfg.Trading.Capital == 0 {
		cfg.Trading.Capital = 100000
	}
	if cfg.Trading.RiskPercent == 0 {
		cfg.Trading.RiskPercent = 1.0
	}
	if cfg.Trading.MinConfidence == 0 {
		cfg.Trading.MinConfidence = 70
	}
	if cfg.Trading.MinSafetyScore == 0 {
		cfg.Trading.MinSafetyScore = 70
	}
	if cfg.Trading.Exchange == "" {
		cfg.Trading.Exchange = "NSE"
	}
	if cfg.Trading.Product == "" {
		cfg.Trading.Product = "MIS"
	}
	if cfg.Analysis.IntervalSeconds == 0 {
		cfg.Analysis.IntervalSeconds = 300
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8765
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func (c *Config) Validate() error {
	if c.Platform.BaseURL == "" {
		return fmt.Errorf("platform.base_url is required")
	}
	if !strings.HasPrefix(c.Platform.BaseURL, "http://") && !strings.HasPrefix(c.Platform.BaseURL, "https://") {
		return fmt.Errorf("platform.base_url must start with http:// or https://")
	}
	if c.Trading.Symbol == "" {
		return fmt.Errorf("trading.symbol is required")
	}
	if c.Trading.RiskPercent < 0 || c.Trading.RiskPercent > 100 {
		return fmt.Errorf("trading.risk_percent must be within [0,100]")
	}
	if !ValidInterval(c.Analysis.IntervalSeconds) {
		return fmt.Errorf("analysis.interval_seconds must be one of %v", AutoIntervals)
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

func ValidInterval(seconds int) bool {
	for _, v := range AutoIntervals {
		if v == seconds {
			return true
		}
	}
	return false
}

func (c *Config) PlatformTimeout() time.Duration {
	return time.Duration(c.Platform.TimeoutSeconds) * time.Second
}

// GeminiConfigured reports whether an analysis credential is present.
// Analysis attempts are refused without one.
func (c *Config) GeminiConfigured() bool {
	return strings.TrimSpace(c.Gemini.APIKey) != ""
}
