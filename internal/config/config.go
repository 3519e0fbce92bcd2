package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	Logging  LoggingConfig  `yaml:"logging"`
	Symbols  SymbolsConfig  `yaml:"symbols"`
	Trading  TradingConfig  `yaml:"trading"`
	Queue    QueueConfig    `yaml:"queue"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JWTConfig struct {
	Secret      string `yaml:"secret"`
	ExpireHours int    `yaml:"expire_hours"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

type SymbolsConfig struct {
	CatalogPath string `yaml:"catalog_path"`
	TTLSeconds  int    `yaml:"ttl_seconds"`
}

// TradingConfig bounds the polling loops of the execution pipeline.
type TradingConfig struct {
	PollIntervalSeconds   int `yaml:"poll_interval_seconds"`
	MonitorTimeoutSeconds int `yaml:"monitor_timeout_seconds"`
	PnLIntervalSeconds    int `yaml:"pnl_interval_seconds"`
	PnLDurationSeconds    int `yaml:"pnl_duration_seconds"`
	OrderBookDepth        int `yaml:"order_book_depth"`
}

type QueueConfig struct {
	JobKey         string `yaml:"job_key"`
	EventChannel   string `yaml:"event_channel"`
	ControlChannel string `yaml:"control_channel"`
	Concurrency    int    `yaml:"concurrency"`
}

// Load loads configuration from file and environment variables
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Symbols.TTLSeconds == 0 {
		c.Symbols.TTLSeconds = 86400
	}
	if c.Trading.PollIntervalSeconds == 0 {
		c.Trading.PollIntervalSeconds = 3
	}
	if c.Trading.MonitorTimeoutSeconds == 0 {
		c.Trading.MonitorTimeoutSeconds = 300
	}
	if c.Trading.PnLIntervalSeconds == 0 {
		c.Trading.PnLIntervalSeconds = 10
	}
	if c.Trading.PnLDurationSeconds == 0 {
		c.Trading.PnLDurationSeconds = 120
	}
	if c.Trading.OrderBookDepth == 0 {
		c.Trading.OrderBookDepth = 50
	}
	if c.Queue.JobKey == "" {
		c.Queue.JobKey = "tradepipe:jobs"
	}
	if c.Queue.EventChannel == "" {
		c.Queue.EventChannel = "tradepipe:events"
	}
	if c.Queue.ControlChannel == "" {
		c.Queue.ControlChannel = "tradepipe:control"
	}
	if c.Queue.Concurrency == 0 {
		c.Queue.Concurrency = 4
	}
}

func (c *Config) loadFromEnv() {
	// Server
	if v := os.Getenv("SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("SERVER_MODE"); v != "" {
		c.Server.Mode = v
	}

	// Database
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Database.Port = port
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database.DBName = v
	}

	// Redis
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Redis.Port = port
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}

	// JWT
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}
	if v := os.Getenv("JWT_EXPIRE_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil {
			c.JWT.ExpireHours = hours
		}
	}

	// Symbols
	if v := os.Getenv("SYMBOL_CATALOG_PATH"); v != "" {
		c.Symbols.CatalogPath = v
	}

	// Queue
	if v := os.Getenv("WORKER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Queue.Concurrency = n
		}
	}
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

// Addr returns the redis host:port address.
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

func (c *TradingConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c *TradingConfig) MonitorTimeout() time.Duration {
	return time.Duration(c.MonitorTimeoutSeconds) * time.Second
}

func (c *TradingConfig) PnLInterval() time.Duration {
	return time.Duration(c.PnLIntervalSeconds) * time.Second
}

func (c *TradingConfig) PnLDuration() time.Duration {
	return time.Duration(c.PnLDurationSeconds) * time.Second
}

func (c *SymbolsConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}
