package main

import (
	"fmt"
	"os"
	"time"

	"codejudge/internal/common/cache"
	"codejudge/internal/common/db"
	"codejudge/internal/common/http/middleware"
	"codejudge/internal/common/mq"
	"codejudge/internal/judge/sandbox/engine"
	"codejudge/internal/judge/sandbox/profile"
	"codejudge/pkg/utils/logger"

	"github.com/segmentio/kafka-go"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8085"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultSubmitTopic     = "judge.submit"
	defaultFinalTopic      = "judge.status.final"
	defaultStatusTTL       = 24 * time.Hour
	defaultStatusTimeout   = time.Second
	defaultProblemTTL      = 5 * time.Minute
	defaultProblemEmptyTTL = 30 * time.Second
	defaultMetricsPath     = "/metrics"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
	// TrustUserIDHeader accepts X-User-Id set by a fronting gateway.
	TrustUserIDHeader bool                       `yaml:"trustUserIDHeader"`
	RateLimit         middleware.RateLimitPolicy `yaml:"rateLimit"`
}

// KafkaConfig holds Kafka settings. A RequiredAcks of 0 is read as "all".
type KafkaConfig struct {
	Brokers         []string      `yaml:"brokers"`
	ClientID        string        `yaml:"clientID"`
	MinBytes        int           `yaml:"minBytes"`
	MaxBytes        int           `yaml:"maxBytes"`
	MaxWait         time.Duration `yaml:"maxWait"`
	BatchSize       int           `yaml:"batchSize"`
	BatchTimeout    time.Duration `yaml:"batchTimeout"`
	DialTimeout     time.Duration `yaml:"dialTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequiredAcks    int           `yaml:"requiredAcks"`
	Compression     string        `yaml:"compression"`
	SubmitTopic     string        `yaml:"submitTopic"`
	ConsumerGroup   string        `yaml:"consumerGroup"`
	Concurrency     int           `yaml:"concurrency"`
	MaxRetries      int           `yaml:"maxRetries"`
	RetryDelay      time.Duration `yaml:"retryDelay"`
	DeadLetterTopic string        `yaml:"deadLetterTopic"`
	MessageTTL      time.Duration `yaml:"messageTTL"`
}

// StatusConfig holds status cache and event settings.
type StatusConfig struct {
	TTL            time.Duration `yaml:"ttl"`
	Timeout        time.Duration `yaml:"timeout"`
	FinalTopic     string        `yaml:"finalTopic"`
	SubmitInterval time.Duration `yaml:"submitInterval"`
}

// ProblemCacheConfig holds problem lookup cache settings. A zero TTL disables the cache.
type ProblemCacheConfig struct {
	TTL      time.Duration `yaml:"ttl"`
	EmptyTTL time.Duration `yaml:"emptyTTL"`
}

// WorkerConfig holds worker pool settings.
type WorkerConfig struct {
	PoolSize int           `yaml:"poolSize"`
	Timeout  time.Duration `yaml:"timeout"`
	SlotWait time.Duration `yaml:"slotWait"`
}

// JudgeConfig holds sandbox settings.
type JudgeConfig struct {
	WorkRoot             string        `yaml:"workRoot"`
	CompileTimeout       time.Duration `yaml:"compileTimeout"`
	MaxCodeBytes         int           `yaml:"maxCodeBytes"`
	StdoutStderrMaxBytes int64         `yaml:"stdoutStderrMaxBytes"`
	WaitDelay            time.Duration `yaml:"waitDelay"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// AppConfig holds judge-service config.
type AppConfig struct {
	Server    ServerConfig           `yaml:"server"`
	Logger    logger.Config          `yaml:"logger"`
	Kafka     KafkaConfig            `yaml:"kafka"`
	Database  db.MySQLConfig         `yaml:"database"`
	Redis     cache.RedisConfig      `yaml:"redis"`
	Status    StatusConfig           `yaml:"status"`
	Problem   ProblemCacheConfig     `yaml:"problemCache"`
	Worker    WorkerConfig           `yaml:"worker"`
	Judge     JudgeConfig            `yaml:"judge"`
	Metrics   MetricsConfig          `yaml:"metrics"`
	Languages []profile.LanguageSpec `yaml:"languages"`
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Judge.WorkRoot == "" {
		return nil, fmt.Errorf("judge workRoot is required")
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	cfg.Redis.ApplyDefaults()
	cfg.Database.ApplyDefaults()
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Kafka.SubmitTopic == "" {
		cfg.Kafka.SubmitTopic = defaultSubmitTopic
	}
	if cfg.Kafka.RequiredAcks == 0 {
		cfg.Kafka.RequiredAcks = int(kafka.RequireAll)
	}
	if cfg.Kafka.Concurrency <= 0 {
		cfg.Kafka.Concurrency = 1
	}
	if cfg.Status.FinalTopic == "" {
		cfg.Status.FinalTopic = defaultFinalTopic
	}
	if cfg.Status.TTL == 0 {
		cfg.Status.TTL = defaultStatusTTL
	}
	if cfg.Status.Timeout == 0 {
		cfg.Status.Timeout = defaultStatusTimeout
	}
	if cfg.Problem.TTL == 0 {
		cfg.Problem.TTL = defaultProblemTTL
	}
	if cfg.Problem.EmptyTTL == 0 {
		cfg.Problem.EmptyTTL = defaultProblemEmptyTTL
	}
	if cfg.Worker.PoolSize <= 0 {
		cfg.Worker.PoolSize = cfg.Kafka.Concurrency
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = defaultMetricsPath
	}
}

func (k KafkaConfig) toMQConfig() mq.KafkaConfig {
	return mq.KafkaConfig{
		Brokers:      k.Brokers,
		ClientID:     k.ClientID,
		MinBytes:     k.MinBytes,
		MaxBytes:     k.MaxBytes,
		MaxWait:      k.MaxWait,
		BatchSize:    k.BatchSize,
		BatchTimeout: k.BatchTimeout,
		DialTimeout:  k.DialTimeout,
		WriteTimeout: k.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(k.RequiredAcks),
		Compression:  mq.ParseCompression(k.Compression),
	}
}

func (k KafkaConfig) subscribeOptions() *mq.SubscribeOptions {
	return &mq.SubscribeOptions{
		ConsumerGroup:   k.ConsumerGroup,
		Concurrency:     k.Concurrency,
		MaxRetries:      k.MaxRetries,
		RetryDelay:      k.RetryDelay,
		DeadLetterTopic: k.DeadLetterTopic,
		MessageTTL:      k.MessageTTL,
	}
}

func (j JudgeConfig) toEngineConfig() engine.Config {
	return engine.Config{
		StdoutStderrMaxBytes: j.StdoutStderrMaxBytes,
		WaitDelay:            j.WaitDelay,
	}
}
