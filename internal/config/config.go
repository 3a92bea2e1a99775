package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "Asia/Shanghai"
	configPathEnv   = "EARNINGS_TRACKER_CONFIG"

	databaseDSNEnv    = "DATABASE_DSN"
	redisAddrEnv      = "REDIS_ADDR"
	redisPasswordEnv  = "REDIS_PASSWORD"
	smtpHostEnv       = "SMTP_HOST"
	smtpPortEnv       = "SMTP_PORT"
	smtpUserEnv       = "SMTP_USER"
	smtpPassEnv       = "SMTP_PASS"
	emailFromEnv      = "EMAIL_FROM"
	scoringAPIKeyEnv  = "SCORING_API_KEY"
	scoringModelEnv   = "SCORING_MODEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	cronSecretEnv     = "CRON_SECRET"
	logLevelEnv       = "LOG_LEVEL"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Storage     StorageConfig     `yaml:"storage"`
	Upstream    UpstreamConfig    `yaml:"upstream"`
	Cycle       CycleConfig       `yaml:"cycle"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Mail        MailConfig        `yaml:"mail"`
	Subscribers SubscribersConfig `yaml:"subscribers"`
	Scoring     ScoringConfig     `yaml:"scoring"`
	Telegram    TelegramConfig    `yaml:"telegram"`
	HTTP        HTTPConfig        `yaml:"http"`
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StorageConfig picks the key-value backend.
type StorageConfig struct {
	Driver    string         `yaml:"driver"`
	KeyPrefix string         `yaml:"keyPrefix"`
	Redis     RedisConfig    `yaml:"redis"`
	Postgres  PostgresConfig `yaml:"postgres"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PostgresConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// UpstreamConfig describes where raw reports come from.
type UpstreamConfig struct {
	Source   string        `yaml:"source"`
	Endpoint string        `yaml:"endpoint"`
	PageSize int           `yaml:"pageSize"`
	MaxPages int           `yaml:"maxPages"`
	Timeout  time.Duration `yaml:"timeout"`
	FilePath string        `yaml:"filePath"`
}

// CycleConfig parameterizes the dispatch cycle.
type CycleConfig struct {
	Window                time.Duration  `yaml:"window"`
	MinInterval           time.Duration  `yaml:"minInterval"`
	AutoSend              bool           `yaml:"autoSend"`
	MarkOnSendSuccessOnly bool           `yaml:"markOnSendSuccessOnly"`
	Timeout               time.Duration  `yaml:"timeout"`
	Timezone              string         `yaml:"timezone"`
	MarkerTTL             time.Duration  `yaml:"markerTTL"`
	HistoryLimit          int            `yaml:"historyLimit"`
	TodayTTL              time.Duration  `yaml:"todayTTL"`
	location              *time.Location `yaml:"-"`
}

// Location resolves the cycle timezone string to a time.Location.
func (c CycleConfig) Location() *time.Location {
	if c.location != nil {
		return c.location
	}
	if loc, err := time.LoadLocation(defaultTimezone); err == nil {
		return loc
	}
	return time.UTC
}

// SchedulerConfig defines when jobs run.
type SchedulerConfig struct {
	CheckSpec   string `yaml:"checkSpec"`
	SummarySpec string `yaml:"summarySpec"`
}

// MailConfig describes the SMTP transport.
type MailConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	From     string        `yaml:"from"`
	SSL      bool          `yaml:"ssl"`
	Timeout  time.Duration `yaml:"timeout"`
}

// SubscribersConfig lists the addresses that can never be removed.
type SubscribersConfig struct {
	Protected []string `yaml:"protected"`
}

// ScoringConfig defines how to contact the scoring model. Empty APIKey disables scoring.
type ScoringConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	Model      string        `yaml:"model"`
	APIKey     string        `yaml:"apiKey"`
	BatchSize  int           `yaml:"batchSize"`
	BatchDelay time.Duration `yaml:"batchDelay"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxTokens  int64         `yaml:"maxTokens"`
}

// TelegramConfig wires the optional mirror channel.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// HTTPConfig configures the trigger server.
type HTTPConfig struct {
	Addr       string `yaml:"addr"`
	CronSecret string `yaml:"cronSecret"`
}

// Load reads .env, then the YAML file at path (or $EARNINGS_TRACKER_CONFIG) over the defaults,
// then environment overrides.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		// Decoding onto the defaults keeps every key the file leaves out.
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	if err := cfg.bindTimezone(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	overrides := map[string]*string{
		databaseDSNEnv:    &c.Storage.Postgres.DSN,
		redisAddrEnv:      &c.Storage.Redis.Addr,
		redisPasswordEnv:  &c.Storage.Redis.Password,
		smtpHostEnv:       &c.Mail.Host,
		smtpUserEnv:       &c.Mail.Username,
		smtpPassEnv:       &c.Mail.Password,
		emailFromEnv:      &c.Mail.From,
		scoringAPIKeyEnv:  &c.Scoring.APIKey,
		scoringModelEnv:   &c.Scoring.Model,
		telegramTokenEnv:  &c.Telegram.BotToken,
		telegramChatIDEnv: &c.Telegram.ChatID,
		cronSecretEnv:     &c.HTTP.CronSecret,
		logLevelEnv:       &c.Logging.Level,
	}
	for env, field := range overrides {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}

	if v := os.Getenv(smtpPortEnv); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", smtpPortEnv, err)
		}
		c.Mail.Port = port
	}
	return nil
}

func (c *Config) bindTimezone() error {
	tz := c.Cycle.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("load timezone %s: %w", tz, err)
	}
	c.Cycle.location = loc
	return nil
}

// Validate rejects settings the application cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Storage.Redis.Addr == "" {
			errs = append(errs, errors.New("storage.redis.addr is required for the redis driver"))
		}
	case DriverPostgres:
		if c.Storage.Postgres.DSN == "" {
			errs = append(errs, errors.New("storage.postgres.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not one of memory, redis, postgres", c.Storage.Driver))
	}
	if strings.TrimSpace(c.Upstream.Source) == "" {
		errs = append(errs, errors.New("upstream.source is required"))
	}
	if c.Cycle.Window <= 0 {
		errs = append(errs, errors.New("cycle.window must be positive"))
	}
	if c.Cycle.MinInterval <= 0 {
		errs = append(errs, errors.New("cycle.minInterval must be positive"))
	}
	return errors.Join(errs...)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Storage: StorageConfig{
			Driver:   DriverMemory,
			Redis:    RedisConfig{Addr: "localhost:6379"},
			Postgres: PostgresConfig{Table: "kv_store"},
		},
		Upstream: UpstreamConfig{
			Source:   "eastmoney",
			Endpoint: "http://datacenter-web.eastmoney.com/api/data/v1/get",
			PageSize: 500,
			MaxPages: 1,
			Timeout:  15 * time.Second,
		},
		Cycle: CycleConfig{
			Window:       7 * 24 * time.Hour,
			MinInterval:  30 * time.Minute,
			AutoSend:     true,
			Timeout:      55 * time.Second,
			Timezone:     defaultTimezone,
			MarkerTTL:    90 * 24 * time.Hour,
			HistoryLimit: 100,
			TodayTTL:     72 * time.Hour,
		},
		Scheduler: SchedulerConfig{CheckSpec: "*/10 * * * *", SummarySpec: "0 8 * * *"},
		Mail:      MailConfig{Host: "smtp.qq.com", Port: 465, SSL: true, Timeout: 20 * time.Second},
		Scoring: ScoringConfig{
			Endpoint:   "https://dashscope.aliyuncs.com/compatible-mode/v1",
			Model:      "qwen-turbo",
			BatchSize:  5,
			BatchDelay: time.Second,
			Timeout:    10 * time.Second,
			MaxTokens:  150,
		},
		HTTP: HTTPConfig{Addr: ":8080"},
	}
}
