package config

import (
	"bytes"
	_ "embed"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	Log           LogConfig          `mapstructure:"log"`
	HTTP          HTTPConfig         `mapstructure:"http"`
	MySQL         DatabaseConfig     `mapstructure:"mysql"`
	ClickHouse    DatabaseConfig     `mapstructure:"clickhouse"`
	Redis         RedisConfig        `mapstructure:"redis"`
	Kafka         KafkaConfig        `mapstructure:"kafka"`
	Publisher     PublisherConfig    `mapstructure:"publisher"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Mail          MailConfig         `mapstructure:"mail"`
	Dedup         DedupConfig        `mapstructure:"dedup"`
	RateLimit     RateLimitConfig    `mapstructure:"rate_limit"`
}

// ---- Leaf structs ----

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
}

type KafkaConfig struct {
	Brokers           []string      `mapstructure:"brokers"`
	Topic             string        `mapstructure:"topic"`
	Partitions        int           `mapstructure:"partitions"`
	ReplicationFactor int           `mapstructure:"replication_factor"`
	Username          string        `mapstructure:"username"`
	Password          string        `mapstructure:"password"`
	GroupID           string        `mapstructure:"group_id"`
	MinBytes          int           `mapstructure:"min_bytes"`
	MaxBytes          int           `mapstructure:"max_bytes"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	MaxDeliveries     int           `mapstructure:"max_deliveries"`
	DeadLetterTopic   string        `mapstructure:"dead_letter_topic"`
}

type PublisherConfig struct {
	Mode            string        `mapstructure:"mode"` // direct | outbox
	OutboxBatchSize int           `mapstructure:"outbox_batch_size"`
	OutboxPoll      time.Duration `mapstructure:"outbox_poll"`
}

// OutboxMode reports whether integration events go through the outbox table.
func (p PublisherConfig) OutboxMode() bool {
	return strings.EqualFold(strings.TrimSpace(p.Mode), "outbox")
}

type NotificationConfig struct {
	AllowedTimeDiscrepancy  int `mapstructure:"allowed_time_discrepancy"` // minutes
	GroupEventBatchSize     int `mapstructure:"group_event_batch_size"`
	AttendeeBatchSize       int `mapstructure:"attendee_batch_size"`
	PersonalEventBatchSize  int `mapstructure:"personal_event_batch_size"`
	NotificationsBatchSize  int `mapstructure:"notifications_batch_size"`
	SleepTimeInMilliseconds int `mapstructure:"sleep_time_ms"`
	MaxSendAttempts         int `mapstructure:"max_send_attempts"`
}

func (n NotificationConfig) Window() time.Duration {
	return time.Duration(n.AllowedTimeDiscrepancy) * time.Minute
}

func (n NotificationConfig) Sleep() time.Duration {
	return time.Duration(n.SleepTimeInMilliseconds) * time.Millisecond
}

type MailConfig struct {
	From             string           `mapstructure:"from"`
	MaxRetryAttempts int              `mapstructure:"max_retry_attempts"`
	Providers        []ProviderConfig `mapstructure:"providers"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

type ProviderConfig struct {
	Name      string        `mapstructure:"name"`
	Kind      string        `mapstructure:"kind"` // http | smtp
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url"`
	Path      string        `mapstructure:"path"`
	APIKey    string        `mapstructure:"api_key"`
	SMTPAddr  string        `mapstructure:"smtp_addr"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	TimeoutMs int           `mapstructure:"timeout_ms"`
	Breaker   BreakerConfig `mapstructure:"breaker"`
}

type DedupConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type RateLimitConfig struct {
	RPS   int `mapstructure:"rps"`
	Burst int `mapstructure:"burst"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (REMINDER_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (REMINDER_KAFKA_TOPIC, ...)
	v.SetEnvPrefix("REMINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
