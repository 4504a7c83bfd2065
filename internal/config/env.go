package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Pretty     bool   `yaml:"pretty"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool          `yaml:"send"`
	APIKey        string        `yaml:"api_key"`
	OrgID         string        `yaml:"org_id"`
	Dataset       string        `yaml:"dataset"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// ServerConfig holds the HTTP service settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	UploadDir    string        `yaml:"upload_dir"`
	MaxUploadMB  int           `yaml:"max_upload_mb"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	SyncTimeout  time.Duration `yaml:"sync_timeout"`
	// MaxConcurrent caps synchronous conversions; extra requests get 503.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// SplitConfig holds conversion defaults shared by every entry point.
type SplitConfig struct {
	Workers     int     `yaml:"workers"`
	BlankWidth  float64 `yaml:"blank_width"`
	BlankHeight float64 `yaml:"blank_height"`
	MaxSheets   int     `yaml:"max_sheets"`
}

// QueueConfig defines queue connectivity and names.
type QueueConfig struct {
	RedisURL     string        `yaml:"redis_url"`
	Stream       string        `yaml:"stream"`
	Group        string        `yaml:"group"`
	Block        time.Duration `yaml:"block"`
}

// StorageConfig selects where results are kept.
type StorageConfig struct {
	Backend   string `yaml:"backend"` // "local"|"s3"
	LocalDir  string `yaml:"local_dir"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	PathStyle bool   `yaml:"path_style"`
	// Password enables at-rest encryption of stored results.
	Password string `yaml:"password"`
}

// WorkerConfig defines job worker behavior and limits.
type WorkerConfig struct {
	Concurrency int           `yaml:"concurrency"`
	JobTimeout  time.Duration `yaml:"job_timeout"`
	StatusTTL   time.Duration `yaml:"status_ttl"`
}

// Config is the top-level configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Axiom   AxiomConfig   `yaml:"axiom"`
	Server  ServerConfig  `yaml:"server"`
	Split   SplitConfig   `yaml:"split"`
	Queue   QueueConfig   `yaml:"queue"`
	Storage StorageConfig `yaml:"storage"`
	Worker  WorkerConfig  `yaml:"worker"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Logging: LoggingConfig{
			Level:      "info",
			Pretty:     devDefaultPretty(),
			MaxSizeMB:  100,
			MaxBackups: 10,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Axiom: AxiomConfig{
			Dataset:       "dev_sheetsplit",
			FlushInterval: 10 * time.Second,
		},
		Server: ServerConfig{
			Addr:          ":8080",
			UploadDir:     "uploads",
			MaxUploadMB:   50,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  5 * time.Minute,
			SyncTimeout:   2 * time.Minute,
			MaxConcurrent: 4,
		},
		Split: SplitConfig{
			Workers:     1,
			BlankWidth:  595,
			BlankHeight: 842,
			MaxSheets:   500,
		},
		Queue: QueueConfig{
			RedisURL:     "redis://localhost:6379",
			Stream:       "jobs:sheetsplit",
			Group:        "workers:sheetsplit",
			Block:        2 * time.Second,
		},
		Storage: StorageConfig{
			Backend:  "local",
			LocalDir: "results",
		},
		Worker: WorkerConfig{
			Concurrency: 2,
			JobTimeout:  5 * time.Minute,
			StatusTTL:   24 * time.Hour,
		},
	}
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Defaults()
	applyEnv(&cfg)
	return cfg
}

// applyEnv overrides cfg with every variable that is set.
func applyEnv(cfg *Config) {
	l := &cfg.Logging
	l.Level = getEnv("LOG_LEVEL", l.Level)
	l.Pretty = parseBool(os.Getenv("LOG_PRETTY"), l.Pretty)
	l.File = getEnv("LOG_FILE", l.File)
	l.MaxSizeMB = parseInt(os.Getenv("LOG_MAX_SIZE_MB"), l.MaxSizeMB)
	l.MaxBackups = parseInt(os.Getenv("LOG_MAX_BACKUPS"), l.MaxBackups)
	l.MaxAgeDays = parseInt(os.Getenv("LOG_MAX_AGE_DAYS"), l.MaxAgeDays)
	l.Compress = parseBool(os.Getenv("LOG_COMPRESS"), l.Compress)

	a := &cfg.Axiom
	a.Send = parseBool(os.Getenv("SEND_LOGS_TO_AXIOM"), a.Send)
	a.APIKey = getEnv("AXIOM_API_KEY", a.APIKey)
	a.OrgID = getEnv("AXIOM_ORG_ID", a.OrgID)
	if base := os.Getenv("AXIOM_DATASET"); base != "" {
		a.Dataset = base + "_sheetsplit"
	}
	a.FlushInterval = parseDuration(os.Getenv("AXIOM_FLUSH_INTERVAL"), a.FlushInterval)

	s := &cfg.Server
	if port := os.Getenv("PORT"); port != "" {
		s.Addr = ":" + port
	}
	s.Addr = getEnv("HTTP_ADDR", s.Addr)
	s.UploadDir = getEnv("UPLOAD_DIR", s.UploadDir)
	s.MaxUploadMB = parseInt(os.Getenv("MAX_UPLOAD_MB"), s.MaxUploadMB)
	s.ReadTimeout = parseDuration(os.Getenv("HTTP_READ_TIMEOUT"), s.ReadTimeout)
	s.WriteTimeout = parseDuration(os.Getenv("HTTP_WRITE_TIMEOUT"), s.WriteTimeout)
	s.SyncTimeout = parseDuration(os.Getenv("SYNC_TIMEOUT"), s.SyncTimeout)
	s.MaxConcurrent = parseInt(os.Getenv("MAX_CONCURRENT"), s.MaxConcurrent)

	sp := &cfg.Split
	sp.Workers = parseInt(os.Getenv("SPLIT_WORKERS"), sp.Workers)
	sp.BlankWidth = parseFloat(os.Getenv("BLANK_WIDTH"), sp.BlankWidth)
	sp.BlankHeight = parseFloat(os.Getenv("BLANK_HEIGHT"), sp.BlankHeight)
	sp.MaxSheets = parseInt(os.Getenv("MAX_SHEETS"), sp.MaxSheets)

	q := &cfg.Queue
	q.RedisURL = getEnv("REDIS_URL", q.RedisURL)
	q.Stream = getEnv("QUEUE_STREAM", q.Stream)
	q.Group = getEnv("QUEUE_GROUP", q.Group)
	q.Block = parseDuration(os.Getenv("QUEUE_BLOCK"), q.Block)

	st := &cfg.Storage
	st.Backend = strings.ToLower(getEnv("STORAGE_BACKEND", st.Backend))
	st.LocalDir = getEnv("RESULTS_DIR", st.LocalDir)
	st.Bucket = getEnv("S3_BUCKET", st.Bucket)
	st.Region = getEnv("AWS_REGION", st.Region)
	st.Endpoint = getEnv("S3_ENDPOINT", st.Endpoint)
	st.Prefix = getEnv("S3_PREFIX", st.Prefix)
	st.AccessKey = getEnv("AWS_ACCESS_KEY_ID", st.AccessKey)
	st.SecretKey = getEnv("AWS_SECRET_ACCESS_KEY", st.SecretKey)
	st.PathStyle = parseBool(os.Getenv("S3_PATH_STYLE"), st.PathStyle)
	st.Password = getEnv("STORAGE_PASSWORD", st.Password)

	w := &cfg.Worker
	w.Concurrency = parseInt(os.Getenv("WORKER_CONCURRENCY"), w.Concurrency)
	w.JobTimeout = parseDuration(os.Getenv("JOB_TIMEOUT"), w.JobTimeout)
	w.StatusTTL = parseDuration(os.Getenv("STATUS_TTL"), w.StatusTTL)
}

// Validate reports every setting that cannot work.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			errs = append(errs, errors.New("storage: local_dir is required for the local backend"))
		}
	case "s3":
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("storage: bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage: unknown backend %q", c.Storage.Backend))
	}
	if c.Split.BlankWidth <= 0 || c.Split.BlankHeight <= 0 {
		errs = append(errs, fmt.Errorf("split: blank size %gx%g must be positive", c.Split.BlankWidth, c.Split.BlankHeight))
	}
	if c.Split.Workers < 1 {
		errs = append(errs, fmt.Errorf("split: workers must be at least 1, got %d", c.Split.Workers))
	}
	if c.Server.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("server: max_upload_mb must be positive, got %d", c.Server.MaxUploadMB))
	}
	if c.Server.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("server: max_concurrent must be at least 1, got %d", c.Server.MaxConcurrent))
	}
	if c.Worker.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("worker: concurrency must be at least 1, got %d", c.Worker.Concurrency))
	}
	return errors.Join(errs...)
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() bool {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	return env == "dev" || env == "development" || env == "local"
}
