package main

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lienwatch/lienwatch/schedule"
)

// Config is the top-level service configuration. Every field has a
// working default; a YAML file and environment variables override it.
type Config struct {
	Listen         string `yaml:"listen"`
	DBPath         string `yaml:"db_path"`
	LogLevel       string `yaml:"log_level"`
	ThresholdCents int64  `yaml:"threshold_cents"`

	Browser  BrowserConfig   `yaml:"browser"`
	Fetch    FetchConfig     `yaml:"fetch"`
	OCR      OCRConfig       `yaml:"ocr"`
	Sync     SyncConfig      `yaml:"sync"`
	Schedule schedule.Config `yaml:"schedule"`
}

// BrowserConfig controls the Chrome lifecycle.
type BrowserConfig struct {
	Remote          string        `yaml:"remote"` // ws:// URL of an external Chrome; empty launches one
	RecycleInterval time.Duration `yaml:"recycle_interval"`
}

// FetchConfig controls the plain-HTTP document fetcher.
type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// OCRConfig points at the external OCR service. Empty URL disables the
// OCR extraction tier.
type OCRConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SyncConfig points at the external records service. Empty URL disables
// outbound sync.
type SyncConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// LoadConfig reads an optional YAML file, then applies environment
// overrides and defaults. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Listen = ":" + v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("CHROME_WS"); v != "" {
		c.Browser.Remote = v
	}
	if v := os.Getenv("OCR_URL"); v != "" {
		c.OCR.URL = v
	}
	if v := os.Getenv("SYNC_URL"); v != "" {
		c.Sync.URL = v
	}
	if v := os.Getenv("SYNC_API_KEY"); v != "" {
		c.Sync.APIKey = v
	}
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.DBPath == "" {
		c.DBPath = "db/lienwatch.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.OCR.Timeout <= 0 {
		c.OCR.Timeout = 60 * time.Second
	}
	if c.Sync.Timeout <= 0 {
		c.Sync.Timeout = 30 * time.Second
	}
	if c.Schedule.Timezone == "" {
		c.Schedule = schedule.DefaultConfig()
	}
}
