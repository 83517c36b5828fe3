package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config top-level struct
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Expirer   ExpirerConfig   `yaml:"expirer"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type PostgresConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

// LedgerConfig holds the money rules enforced by the wallet service.
type LedgerConfig struct {
	MaxAmount           decimal.Decimal `yaml:"max_amount"`
	DailyWithdrawLimit  decimal.Decimal `yaml:"daily_withdraw_limit"`
	DefaultExpiryDays   int             `yaml:"default_expiry_days"`
	MaxExpiryDays       int             `yaml:"max_expiry_days"`
	AutoCreateOnDeposit bool            `yaml:"auto_create_on_deposit"`
	TxTimeout           time.Duration   `yaml:"tx_timeout"`
	LockTimeout         time.Duration   `yaml:"lock_timeout"`
	RecentTransactions  int             `yaml:"recent_transactions"`
}

type ExpirerConfig struct {
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"`
}

// Default returns a config with every knob set to its production default.
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Port: 8080},
		Postgres:  PostgresConfig{MaxOpenConns: 25, MaxIdleConns: 5},
		Redis:     RedisConfig{Addr: "localhost:6379", TTL: 5 * time.Minute},
		Kafka:     KafkaConfig{Topic: "wallet-events", PollInterval: time.Second, BatchSize: 100},
		RateLimit: RateLimitConfig{RPS: 50, Burst: 100},
		Ledger:    DefaultLedger(),
		Expirer:   ExpirerConfig{Interval: time.Minute, BatchSize: 200},
	}
}

// DefaultLedger is split out so tests can build a service without a file.
func DefaultLedger() LedgerConfig {
	return LedgerConfig{
		MaxAmount:           decimal.NewFromInt(100_000_000),
		DailyWithdrawLimit:  decimal.Zero,
		DefaultExpiryDays:   15,
		MaxExpiryDays:       365,
		AutoCreateOnDeposit: true,
		TxTimeout:           10 * time.Second,
		LockTimeout:         5 * time.Second,
		RecentTransactions:  20,
	}
}

// Load reads yaml file on top of Default, then applies .env and env overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.fillZero()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		c.Postgres.DSN = dsn
	}
	// override DSN password from env if present
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" {
		c.Postgres.DSN = c.Postgres.DSN + " password=" + pw
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = strings.Split(brokers, ",")
	}
	if port, err := strconv.Atoi(os.Getenv("SERVER_PORT")); err == nil && port > 0 {
		c.Server.Port = port
	}
}

// fillZero restores defaults for knobs a partial yaml file left unset.
func (c *Config) fillZero() {
	def := DefaultLedger()
	if c.Ledger.MaxAmount.LessThanOrEqual(decimal.Zero) {
		c.Ledger.MaxAmount = def.MaxAmount
	}
	if c.Ledger.DefaultExpiryDays <= 0 {
		c.Ledger.DefaultExpiryDays = def.DefaultExpiryDays
	}
	if c.Ledger.MaxExpiryDays <= 0 {
		c.Ledger.MaxExpiryDays = def.MaxExpiryDays
	}
	if c.Ledger.TxTimeout <= 0 {
		c.Ledger.TxTimeout = def.TxTimeout
	}
	if c.Ledger.LockTimeout <= 0 {
		c.Ledger.LockTimeout = def.LockTimeout
	}
	if c.Ledger.RecentTransactions <= 0 {
		c.Ledger.RecentTransactions = def.RecentTransactions
	}
	if c.Redis.TTL <= 0 {
		c.Redis.TTL = 5 * time.Minute
	}
	if c.Expirer.Interval <= 0 {
		c.Expirer.Interval = time.Minute
	}
	if c.Expirer.BatchSize <= 0 {
		c.Expirer.BatchSize = 200
	}
	if c.Kafka.PollInterval <= 0 {
		c.Kafka.PollInterval = time.Second
	}
	if c.Kafka.BatchSize <= 0 {
		c.Kafka.BatchSize = 100
	}
}
