package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	StoreMemory = "memory"
	StoreMySQL  = "mysql"

	envPrefix = "CROWDFUND"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port     int   `mapstructure:"port"`
	WorkerID int64 `mapstructure:"worker_id"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogSQL       bool   `mapstructure:"log_sql"`
}

func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type BusinessConfig struct {
	OutboxBatchSize    int           `mapstructure:"outbox_batch_size"`
	OutboxInterval     time.Duration `mapstructure:"outbox_interval"`
	OutboxRequeueAfter time.Duration `mapstructure:"outbox_requeue_after"`
	MaxRetryCount      int           `mapstructure:"max_retry_count"`
	LockTTL            time.Duration `mapstructure:"lock_ttl"`
	LockRetryInterval  time.Duration `mapstructure:"lock_retry_interval"`
	LockMaxRetries     int           `mapstructure:"lock_max_retries"`
	// TransferTimeout bounds one payout or refund transfer. A settlement
	// becomes eligible for recovery SettlementStaleAfter after it opened.
	TransferTimeout      time.Duration `mapstructure:"transfer_timeout"`
	SettlementInterval   time.Duration `mapstructure:"settlement_interval"`
	SettlementStaleAfter time.Duration `mapstructure:"settlement_stale_after"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.worker_id", 1)

	v.SetDefault("store.driver", StoreMemory)

	v.SetDefault("mysql.host", "127.0.0.1")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.user", "root")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.database", "crowdfund")
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.log_sql", false)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.topic", "crowdfund.campaign.events")

	v.SetDefault("business.outbox_batch_size", 100)
	v.SetDefault("business.outbox_interval", 5*time.Second)
	v.SetDefault("business.outbox_requeue_after", time.Minute)
	v.SetDefault("business.max_retry_count", 3)
	v.SetDefault("business.lock_ttl", 10*time.Second)
	v.SetDefault("business.lock_retry_interval", 50*time.Millisecond)
	v.SetDefault("business.lock_max_retries", 100)
	v.SetDefault("business.transfer_timeout", 30*time.Second)
	v.SetDefault("business.settlement_interval", time.Minute)
	v.SetDefault("business.settlement_stale_after", 5*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the YAML file at path, if any, over the defaults. Every key can
// be overridden from the environment, e.g. CROWDFUND_STORE_DRIVER=mysql.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory, StoreMySQL:
	default:
		return errors.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka enabled without brokers")
	}
	if c.Business.MaxRetryCount < 1 {
		return errors.New("business.max_retry_count must be at least 1")
	}
	if c.Business.OutboxBatchSize < 1 {
		return errors.New("business.outbox_batch_size must be at least 1")
	}
	if c.Business.TransferTimeout <= 0 || c.Business.SettlementStaleAfter <= c.Business.TransferTimeout {
		return errors.New("business.settlement_stale_after must exceed a positive business.transfer_timeout")
	}
	return nil
}
