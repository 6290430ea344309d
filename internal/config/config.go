package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"feed_spider/internal/urls"
)

type SiteConfig struct {
	Origin       string   `yaml:"origin"`
	StartURL     string   `yaml:"start_url"`
	Cookie       string   `yaml:"cookie"`
	UserAgent    string   `yaml:"user_agent"`
	BlockMarkers []string `yaml:"block_markers"`
}

type RedisConfig struct {
	Addr           string        `yaml:"addr"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	PoolSize       int           `yaml:"pool_size"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	RetryInterval  time.Duration `yaml:"retry_interval"`
	MaxWait        time.Duration `yaml:"max_wait"`
	PingTimeout    time.Duration `yaml:"ping_timeout"`
}

type MongoConfig struct {
	Connection string `yaml:"connection"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type StorageConfig struct {
	Backend   string      `yaml:"backend"` // memory | redis | mongo
	KeyPrefix string      `yaml:"key_prefix"`
	Redis     RedisConfig `yaml:"redis"`
	Mongo     MongoConfig `yaml:"mongo"`
}

type LogicConfig struct {
	TimeoutSec          int           `yaml:"timeout_sec"`
	MaxRedirects        int           `yaml:"max_redirects"`
	EnrichDelayMin      time.Duration `yaml:"enrich_delay_min"`
	EnrichDelayMax      time.Duration `yaml:"enrich_delay_max"`
	PageDelayMin        time.Duration `yaml:"page_delay_min"`
	PageDelayMax        time.Duration `yaml:"page_delay_max"`
	DownloadDelayMin    time.Duration `yaml:"download_delay_min"`
	DownloadDelayMax    time.Duration `yaml:"download_delay_max"`
	ReadabilityFallback bool          `yaml:"readability_fallback"`
}

type DownloadConfig struct {
	Dir        string `yaml:"dir"`
	Subdir     string `yaml:"subdir"`
	Referer    string `yaml:"referer"`
	DefaultExt string `yaml:"default_ext"`
}

type ExportConfig struct {
	Dir string `yaml:"dir"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type ServerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Listen          string        `yaml:"listen"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type SpiderConfig struct {
	Site     SiteConfig     `yaml:"site"`
	Storage  StorageConfig  `yaml:"storage"`
	Logic    LogicConfig    `yaml:"logic"`
	Download DownloadConfig `yaml:"download"`
	Export   ExportConfig   `yaml:"export"`
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	NATS     NATSConfig     `yaml:"nats"`
}

// LoadConfig reads the YAML file at path, applies FEED_SPIDER_* environment
// overrides and fills defaults. An empty path skips the file.
func LoadConfig(path string) (*SpiderConfig, error) {
	var cfg SpiderConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *SpiderConfig) applyEnv() {
	c.Site.StartURL = getenv("FEED_SPIDER_START_URL", c.Site.StartURL)
	c.Site.Cookie = getenv("FEED_SPIDER_COOKIE", c.Site.Cookie)
	c.Site.UserAgent = getenv("FEED_SPIDER_USER_AGENT", c.Site.UserAgent)

	c.Storage.Backend = getenv("FEED_SPIDER_STORAGE", c.Storage.Backend)
	c.Storage.Redis.Addr = getenv("FEED_SPIDER_REDIS_ADDR", c.Storage.Redis.Addr)
	c.Storage.Redis.Password = getenv("FEED_SPIDER_REDIS_PASSWORD", c.Storage.Redis.Password)
	c.Storage.Redis.DB = getenvInt("FEED_SPIDER_REDIS_DB", c.Storage.Redis.DB)
	c.Storage.Mongo.Connection = getenv("FEED_SPIDER_MONGO_URI", c.Storage.Mongo.Connection)

	c.Logic.TimeoutSec = getenvInt("FEED_SPIDER_TIMEOUT_SEC", c.Logic.TimeoutSec)
	c.Logic.PageDelayMin = mustDuration("FEED_SPIDER_PAGE_DELAY_MIN", c.Logic.PageDelayMin)
	c.Logic.PageDelayMax = mustDuration("FEED_SPIDER_PAGE_DELAY_MAX", c.Logic.PageDelayMax)
	c.Logic.ReadabilityFallback = mustBool("FEED_SPIDER_READABILITY", c.Logic.ReadabilityFallback)

	c.Download.Dir = getenv("FEED_SPIDER_DOWNLOAD_DIR", c.Download.Dir)
	c.Export.Dir = getenv("FEED_SPIDER_EXPORT_DIR", c.Export.Dir)

	c.Log.Level = getenv("FEED_SPIDER_LOG_LEVEL", c.Log.Level)
	c.Log.Pretty = mustBool("FEED_SPIDER_PRETTY_LOG", c.Log.Pretty)

	c.Server.Enabled = mustBool("FEED_SPIDER_SERVER", c.Server.Enabled)
	c.Server.Listen = getenv("FEED_SPIDER_LISTEN", c.Server.Listen)

	c.NATS.URL = getenv("FEED_SPIDER_NATS_URL", c.NATS.URL)
}

func (c *SpiderConfig) applyDefaults() {
	if c.Site.Origin == "" {
		c.Site.Origin = urls.Origin(c.Site.StartURL)
	}
	if c.Site.Origin == "" {
		c.Site.Origin = "https://www.douban.com"
	}
	if c.Site.UserAgent == "" {
		c.Site.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	}
	if len(c.Site.BlockMarkers) == 0 {
		c.Site.BlockMarkers = []string{"captcha", "security check", "检测到有异常请求"}
	}

	// with no config file the spider runs on the in-memory store; config.yaml ships mongo
	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "feed_spider"
	}
	r := &c.Storage.Redis
	if r.PoolSize == 0 {
		r.PoolSize = 10
	}
	if r.ConnectTimeout == 0 {
		r.ConnectTimeout = 30 * time.Second
	}
	if r.RetryInterval == 0 {
		r.RetryInterval = 2 * time.Second
	}
	if r.MaxWait == 0 {
		r.MaxWait = 10 * time.Second
	}
	if r.PingTimeout == 0 {
		r.PingTimeout = 5 * time.Second
	}
	if c.Storage.Mongo.Database == "" {
		c.Storage.Mongo.Database = "feed_spider"
	}
	if c.Storage.Mongo.Collection == "" {
		c.Storage.Mongo.Collection = "kv"
	}

	l := &c.Logic
	if l.TimeoutSec == 0 {
		l.TimeoutSec = 30
	}
	if l.MaxRedirects == 0 {
		l.MaxRedirects = 15
	}
	if l.EnrichDelayMin == 0 && l.EnrichDelayMax == 0 {
		l.EnrichDelayMin, l.EnrichDelayMax = 2*time.Second, 5*time.Second
	}
	if l.PageDelayMin == 0 && l.PageDelayMax == 0 {
		l.PageDelayMin, l.PageDelayMax = 3*time.Second, 8*time.Second
	}
	if l.DownloadDelayMin == 0 && l.DownloadDelayMax == 0 {
		l.DownloadDelayMin, l.DownloadDelayMax = 500*time.Millisecond, 1500*time.Millisecond
	}

	if c.Download.Dir == "" {
		c.Download.Dir = "downloads"
	}
	if c.Download.Subdir == "" {
		c.Download.Subdir = "images"
	}
	if c.Download.Referer == "" {
		c.Download.Referer = strings.TrimRight(c.Site.Origin, "/") + "/"
	}
	if c.Download.DefaultExt == "" {
		c.Download.DefaultExt = "jpg"
	}
	c.Download.DefaultExt = strings.TrimPrefix(c.Download.DefaultExt, ".")

	if c.Export.Dir == "" {
		c.Export.Dir = "."
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "feed_spider"
	}
}

func (c *SpiderConfig) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case "memory":
	case "redis":
		if c.Storage.Redis.Addr == "" {
			errs = append(errs, errors.New("storage.redis.addr is required for the redis backend"))
		}
	case "mongo":
		if c.Storage.Mongo.Connection == "" {
			errs = append(errs, errors.New("storage.mongo.connection is required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	pairs := []struct {
		name     string
		min, max time.Duration
	}{
		{"enrich_delay", c.Logic.EnrichDelayMin, c.Logic.EnrichDelayMax},
		{"page_delay", c.Logic.PageDelayMin, c.Logic.PageDelayMax},
		{"download_delay", c.Logic.DownloadDelayMin, c.Logic.DownloadDelayMax},
	}
	for _, p := range pairs {
		if p.min < 0 || p.max < p.min {
			errs = append(errs, fmt.Errorf("logic.%s: invalid range [%v, %v]", p.name, p.min, p.max))
		}
	}

	if c.Logic.TimeoutSec < 0 {
		errs = append(errs, fmt.Errorf("logic.timeout_sec must be >= 0, got %d", c.Logic.TimeoutSec))
	}

	return errors.Join(errs...)
}

func (c *SpiderConfig) Timeout() time.Duration {
	return time.Duration(c.Logic.TimeoutSec) * time.Second
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
