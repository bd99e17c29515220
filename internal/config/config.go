package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the immutable configuration tree loaded at startup and passed
// into constructors. Nothing reads it through mutable globals.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Scrapers  ScrapersConfig  `mapstructure:"scrapers"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	Environment string `mapstructure:"environment"`
	File        string `mapstructure:"file"`
	FileOnly    bool   `mapstructure:"file_only"`
}

// SchedulerConfig holds the orchestration knobs: worker pool size, retry
// policy, and the two dispatch-spacing floors.
type SchedulerConfig struct {
	MaxConcurrency       int           `mapstructure:"max_concurrency"`
	MaxRetries           int           `mapstructure:"max_retries"`
	RetryDelay           time.Duration `mapstructure:"retry_delay"`
	DelayBetweenSites    time.Duration `mapstructure:"delay_between_sites"`
	DelayBetweenSearches time.Duration `mapstructure:"delay_between_searches"`
}

// PipelineConfig holds the processing knobs, including the similarity
// threshold and the scoring weights for duplicate detection.
type PipelineConfig struct {
	BatchSize           int     `mapstructure:"batch_size"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	TitleWeight         float64 `mapstructure:"title_weight"`
	CompanyWeight       float64 `mapstructure:"company_weight"`
	LocationWeight      float64 `mapstructure:"location_weight"`
}

type ScrapersConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// Load reads configuration from an optional YAML file, .env, and the
// environment, applying defaults for everything unset.
func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/jobs.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.environment", "local")
	v.SetDefault("log.file", "/var/log/job-scraper/app.log")
	v.SetDefault("scheduler.max_concurrency", 3)
	v.SetDefault("scheduler.max_retries", 3)
	v.SetDefault("scheduler.retry_delay", 60*time.Second)
	v.SetDefault("scheduler.delay_between_sites", 30*time.Second)
	v.SetDefault("scheduler.delay_between_searches", 10*time.Second)
	v.SetDefault("pipeline.batch_size", 100)
	v.SetDefault("pipeline.similarity_threshold", 0.7)
	v.SetDefault("pipeline.title_weight", 0.4)
	v.SetDefault("pipeline.company_weight", 0.3)
	v.SetDefault("pipeline.location_weight", 0.3)
	v.SetDefault("scrapers.request_timeout", 30*time.Second)
	v.SetDefault("scrapers.user_agent", "job-scraper/1.0")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for deployment overrides
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.dsn", "DATABASE_URL")
	v.BindEnv("server.port", "PORT")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.environment", "APP_ENV")
	v.BindEnv("pipeline.similarity_threshold", "SIMILARITY_THRESHOLD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
