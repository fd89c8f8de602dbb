package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	OutputDir   string           `yaml:"output_dir"`
	Games       []string         `yaml:"games"`
	SourcesFile string           `yaml:"sources_file"` // Optional override of the embedded source catalog
	Historic    HistoricConfig   `yaml:"historic"`
	Latest      LatestConfig     `yaml:"latest"`
	Fetch       FetchConfig      `yaml:"fetch"`
	Browser     BrowserConfig    `yaml:"browser"`
	Validation  ValidationConfig `yaml:"validation"`
	Publish     PublishConfig    `yaml:"publish"`
	Logging     LoggingConfig    `yaml:"logging"`
	Telegram    TelegramConfig   `yaml:"telegram"`
}

type HistoricConfig struct {
	StartYear     int  `yaml:"start_year"`
	EndYear       int  `yaml:"end_year"` // 0 = current year
	ParallelGames bool `yaml:"parallel_games"`
}

type LatestConfig struct {
	WindowDays int `yaml:"window_days"`
}

type FetchConfig struct {
	MaxTries          int               `yaml:"max_tries"`
	BackoffBase       time.Duration     `yaml:"backoff_base"`
	BackoffMultiplier float64           `yaml:"backoff_multiplier"`
	Jitter            time.Duration     `yaml:"jitter"`
	Timeout           time.Duration     `yaml:"timeout"`
	RequestsPerSecond float64           `yaml:"requests_per_second"`
	Burst             int               `yaml:"burst"`
	UserAgents        []string          `yaml:"user_agents"`
	Headers           map[string]string `yaml:"headers"`
	// List of proxies to try in order before the direct connection
	ProxyList []string `yaml:"proxy_list"`
	// Randomized pause between variant attempts
	PauseMin time.Duration `yaml:"pause_min"`
	PauseMax time.Duration `yaml:"pause_max"`
	// Ceiling of per-date page requests per window
	MaxDateProbes int `yaml:"max_date_probes"`
}

type BrowserConfig struct {
	Disabled    bool          `yaml:"disabled"`
	Headful     bool          `yaml:"headful"`
	ExecPath    string        `yaml:"exec_path"`
	NavTimeout  time.Duration `yaml:"nav_timeout"`
	SettleDelay time.Duration `yaml:"settle_delay"`
	MaxPages    int           `yaml:"max_pages"`
}

type ValidationConfig struct {
	EpochFloor      string `yaml:"epoch_floor"`       // YYYY-MM-DD
	WindowSlackDays int    `yaml:"window_slack_days"` // Draws this many days outside the requested window are still kept
}

type PublishConfig struct {
	HistoricFile   string   `yaml:"historic_file"`
	LatestFile     string   `yaml:"latest_file"`
	PerGamePattern string   `yaml:"per_game_pattern"` // e.g. "%s.json"
	MinValidDraws  int      `yaml:"min_valid_draws"`
	S3             S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days"`
	MaxBackups int    `yaml:"max_backups"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// Load reads a YAML config file. An empty path yields the defaults.
func Load(configPath string) (*Config, error) {
	var config Config

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnv()
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// applyEnv lets secrets live outside the YAML file.
func (c *Config) applyEnv() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Telegram.ChatID = id
		}
	}
	if v := os.Getenv("LOTERIAS_S3_BUCKET"); v != "" {
		c.Publish.S3.Bucket = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" && c.Publish.S3.AccessKeyID == "" {
		c.Publish.S3.AccessKeyID = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" && c.Publish.S3.SecretAccessKey == "" {
		c.Publish.S3.SecretAccessKey = v
	}
	if v := os.Getenv("LOTERIAS_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
}

func (c *Config) applyDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = "docs/api"
	}
	if len(c.Games) == 0 {
		c.Games = []string{"PRIMITIVA", "BONOLOTO", "GORDO", "EURO"}
	}
	if c.Historic.StartYear == 0 {
		c.Historic.StartYear = 2013
	}
	if c.Latest.WindowDays <= 0 {
		c.Latest.WindowDays = 14
	}

	f := &c.Fetch
	if f.MaxTries <= 0 {
		f.MaxTries = 6
	}
	if f.BackoffBase <= 0 {
		f.BackoffBase = 1500 * time.Millisecond
	}
	if f.BackoffMultiplier < 1 {
		f.BackoffMultiplier = 2
	}
	if f.Jitter <= 0 {
		f.Jitter = 400 * time.Millisecond
	}
	if f.Timeout <= 0 {
		f.Timeout = 30 * time.Second
	}
	if f.RequestsPerSecond <= 0 {
		f.RequestsPerSecond = 2
	}
	if f.Burst <= 0 {
		f.Burst = 1
	}
	if f.PauseMin <= 0 {
		f.PauseMin = 200 * time.Millisecond
	}
	if f.PauseMax < f.PauseMin {
		f.PauseMax = f.PauseMin + 200*time.Millisecond
	}
	if f.MaxDateProbes <= 0 {
		f.MaxDateProbes = 400
	}

	b := &c.Browser
	if b.NavTimeout <= 0 {
		b.NavTimeout = 45 * time.Second
	}
	if b.SettleDelay <= 0 {
		b.SettleDelay = 1500 * time.Millisecond
	}
	if b.MaxPages <= 0 {
		b.MaxPages = 10
	}

	if c.Validation.WindowSlackDays <= 0 {
		c.Validation.WindowSlackDays = 1
	}

	p := &c.Publish
	if p.HistoricFile == "" {
		p.HistoricFile = "lae_historico.json"
	}
	if p.LatestFile == "" {
		p.LatestFile = "lae_latest.json"
	}
	if p.PerGamePattern == "" {
		p.PerGamePattern = "%s.json"
	}
	if p.MinValidDraws <= 0 {
		p.MinValidDraws = 1
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 50
	}
	if c.Logging.MaxAgeDays <= 0 {
		c.Logging.MaxAgeDays = 14
	}
}

// Validate checks values that have no sensible default.
func (c *Config) Validate() error {
	if c.Historic.EndYear != 0 && c.Historic.EndYear < c.Historic.StartYear {
		return fmt.Errorf("historic.end_year %d is before historic.start_year %d", c.Historic.EndYear, c.Historic.StartYear)
	}
	if c.Validation.EpochFloor != "" {
		if _, err := time.Parse("2006-01-02", c.Validation.EpochFloor); err != nil {
			return fmt.Errorf("validation.epoch_floor: %w", err)
		}
	}
	if c.Publish.S3.Enabled && c.Publish.S3.Bucket == "" {
		return fmt.Errorf("publish.s3.bucket must be set when publish.s3.enabled is true")
	}
	if !strings.Contains(c.Publish.PerGamePattern, "%s") {
		return fmt.Errorf("publish.per_game_pattern must contain %%s, got %q", c.Publish.PerGamePattern)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	return nil
}
