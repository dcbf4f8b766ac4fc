package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env     string
	OpsAddr string

	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Scheduler SchedulerConfig
	Export    ExportConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulerConfig carries the duty constraints and search tuning. Values are
// passed into every scheduling call; nothing is read from globals at run time.
type SchedulerConfig struct {
	MaxAssignmentsPerStudent int
	MaxStudentsPerSlot       int
	AvoidSameClassSameDay    bool
	ConsiderPreviousTerm     bool
	MaxAttempts              int
	TargetScore              float64
	Workers                  int
	SearchTimeout            time.Duration
	StatsCacheTTL            time.Duration
}

// ExportConfig controls roster export output.
type ExportConfig struct {
	Dir string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.OpsAddr = v.GetString("OPS_ADDR")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		Enabled:  v.GetBool("REDIS_ENABLED"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduler = SchedulerConfig{
		MaxAssignmentsPerStudent: v.GetInt("DUTY_MAX_PER_STUDENT"),
		MaxStudentsPerSlot:       v.GetInt("DUTY_MAX_PER_SLOT"),
		AvoidSameClassSameDay:    v.GetBool("DUTY_AVOID_SAME_CLASS"),
		ConsiderPreviousTerm:     v.GetBool("DUTY_CONSIDER_PREVIOUS_TERM"),
		MaxAttempts:              v.GetInt("DUTY_MAX_ATTEMPTS"),
		TargetScore:              v.GetFloat64("DUTY_TARGET_SCORE"),
		Workers:                  v.GetInt("DUTY_SEARCH_WORKERS"),
		SearchTimeout:            parseDuration(v.GetString("DUTY_SEARCH_TIMEOUT"), 10*time.Second),
		StatsCacheTTL:            parseDuration(v.GetString("DUTY_STATS_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Export = ExportConfig{
		Dir: v.GetString("EXPORT_DIR"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("OPS_ADDR", "")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "library_duty")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_ENABLED", false)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DUTY_MAX_PER_STUDENT", 2)
	v.SetDefault("DUTY_MAX_PER_SLOT", 4)
	v.SetDefault("DUTY_AVOID_SAME_CLASS", true)
	v.SetDefault("DUTY_CONSIDER_PREVIOUS_TERM", true)
	v.SetDefault("DUTY_MAX_ATTEMPTS", 1000)
	v.SetDefault("DUTY_TARGET_SCORE", 0.95)
	v.SetDefault("DUTY_SEARCH_WORKERS", 4)
	v.SetDefault("DUTY_SEARCH_TIMEOUT", "10s")
	v.SetDefault("DUTY_STATS_CACHE_TTL", "10m")

	v.SetDefault("EXPORT_DIR", "./exports")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
