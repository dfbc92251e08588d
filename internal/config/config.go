package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"
)

// maxBatchSize keeps one staging insert below postgres' 65535 bind parameters.
const maxBatchSize = 5000

const (
	envDBDSN       = "MCATALOG_DB_DSN"
	envJWTSecret   = "MCATALOG_JWT_SECRET"
	envS3SecretKey = "MCATALOG_S3_SECRET_KEY"
)

type Config struct {
	Port        int              `json:"port" toml:"port"`
	JWTSecret   string           `json:"jwt_secret" toml:"jwt_secret"`
	CORSOrigins []string         `json:"cors_origins" toml:"cors_origins"`
	LogConfig   logger.LogConfig `json:"log_config" toml:"log_config"`
	Database    DatabaseConfig   `json:"database" toml:"database"`
	FileStore   FileStoreConfig  `json:"file_store" toml:"file_store"`
	Import      ImportConfig     `json:"import" toml:"import"`
}

type DatabaseConfig struct {
	Driver   string `json:"driver" toml:"driver"`
	DSN      string `json:"dsn" toml:"dsn"`
	Host     string `json:"host" toml:"host"`
	Port     int    `json:"port" toml:"port"`
	User     string `json:"user" toml:"user"`
	Password string `json:"password" toml:"password"`
	DBName   string `json:"dbname" toml:"dbname"`
	SSLMode  string `json:"sslmode" toml:"sslmode"`
	// Similarity selects the metric registered as similarity() on sqlite.
	Similarity   string `json:"similarity" toml:"similarity"`
	MaxOpenConns int    `json:"max_open_conns" toml:"max_open_conns"`
}

type FileStoreConfig struct {
	Type string                 `json:"type" toml:"type"`
	Data map[string]interface{} `json:"data" toml:"data"`
}

type WeightsConfig struct {
	Title  float64 `json:"title" toml:"title"`
	Album  float64 `json:"album" toml:"album"`
	Artist float64 `json:"artist" toml:"artist"`
	Date   float64 `json:"date" toml:"date"`
}

type ImportConfig struct {
	PollIntervalMs      int64         `json:"poll_interval_ms" toml:"poll_interval_ms"`
	BatchSize           int           `json:"batch_size" toml:"batch_size"`
	Threshold           float64       `json:"threshold" toml:"threshold"`
	PrefilterFloor      float64       `json:"prefilter_floor" toml:"prefilter_floor"`
	Weights             WeightsConfig `json:"weights" toml:"weights"`
	StaleAfterMinutes   int64         `json:"stale_after_minutes" toml:"stale_after_minutes"`
	ReaperCron          string        `json:"reaper_cron" toml:"reaper_cron"`
	UploadMaxBytes      int64         `json:"upload_max_bytes" toml:"upload_max_bytes"`
	UploadRatePerMinute int           `json:"upload_rate_per_minute" toml:"upload_rate_per_minute"`
}

func (c ImportConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// PrefilterBound is the highest score a candidate rejected by the prefilter
// could still reach: every similarity term below the floor, a perfect date.
func (c ImportConfig) PrefilterBound() float64 {
	w := c.Weights
	return (w.Title+w.Album+w.Artist)*c.PrefilterFloor + w.Date
}

func (c ImportConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMinutes) * time.Minute
}

// DefaultImportConfig holds the reference pipeline parameters.
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		PollIntervalMs: 5000,
		BatchSize:      300,
		Threshold:      0.3,
		PrefilterFloor: 0.1,
		Weights: WeightsConfig{
			Title:  0.3,
			Album:  0.3,
			Artist: 0.2,
			Date:   0.1,
		},
		ReaperCron:          "*/10 * * * *",
		UploadMaxBytes:      8 * 1024 * 1024,
		UploadRatePerMinute: 6,
	}
}

func Load(path string) (*Config, error) {
	cfg := &Config{Import: DefaultImportConfig()}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	loadEnv(filepath.Join(filepath.Dir(path), ".env"))
	applyEnv(cfg)
	if err := normalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnv(path string) {
	// godotenv never overrides variables already present in the environment.
	if _, err := os.Stat(path); err == nil {
		_ = godotenv.Load(path)
		return
	}
	_ = godotenv.Load()
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(envDBDSN); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv(envJWTSecret); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv(envS3SecretKey); v != "" && strings.EqualFold(cfg.FileStore.Type, "s3") {
		if cfg.FileStore.Data == nil {
			cfg.FileStore.Data = map[string]interface{}{}
		}
		cfg.FileStore.Data["secret_key"] = v
	}
}

func normalize(cfg *Config) error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.DSN == "" && cfg.Database.Host == "" {
			return fmt.Errorf("database.dsn or database.host is required")
		}
		if cfg.Database.Port == 0 {
			cfg.Database.Port = 5432
		}
	case "sqlite":
		if cfg.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for sqlite")
		}
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite")
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	return normalizeImport(&cfg.Import)
}

func normalizeImport(c *ImportConfig) error {
	def := DefaultImportConfig()
	if c.PollIntervalMs <= 0 {
		c.PollIntervalMs = def.PollIntervalMs
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.BatchSize > maxBatchSize {
		return fmt.Errorf("import.batch_size must not exceed %d", maxBatchSize)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("import.threshold must be within [0,1]")
	}
	if c.PrefilterFloor < 0 || c.PrefilterFloor > 1 {
		return fmt.Errorf("import.prefilter_floor must be within [0,1]")
	}
	w := c.Weights
	if w.Title < 0 || w.Album < 0 || w.Artist < 0 || w.Date < 0 {
		return fmt.Errorf("import.weights must not be negative")
	}
	if w.Title+w.Album+w.Artist+w.Date == 0 {
		c.Weights = def.Weights
	}
	if bound := c.PrefilterBound(); bound > c.Threshold {
		return fmt.Errorf("import.prefilter_floor %v lets candidates scoring up to %.3f escape threshold %v", c.PrefilterFloor, bound, c.Threshold)
	}
	if c.ReaperCron == "" {
		c.ReaperCron = def.ReaperCron
	}
	if c.UploadMaxBytes <= 0 {
		c.UploadMaxBytes = def.UploadMaxBytes
	}
	return nil
}
