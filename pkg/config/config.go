package config

import "time"

// Chat definition chat_service YAML structure
type Chat struct {
	Port       string `mapstructure:"port"`
	GRPCPort   string `mapstructure:"grpc_port"`
	InstanceID string `mapstructure:"instance_id"`

	MongoSQL   DatabaseConfig `mapstructure:"mongo"`
	PostgreSQL DatabaseConfig `mapstructure:"pg"`
	Redis      RedisConfig    `mapstructure:"redis"`
	MinIO      MinIOConfig    `mapstructure:"minio"`
	Notify     NotifyConfig   `mapstructure:"notify"`
	JWT        JWTConfig      `mapstructure:"jwt"`
	WS         WSConfig       `mapstructure:"ws"`
	Breaker    BreakerConfig  `mapstructure:"breaker"`

	ProfileCacheTTL time.Duration `mapstructure:"profile_cache_ttl"`
	// SyncSkew pull 回傳的 timestamp 往回退的時間，涵蓋已蓋時間但還沒寫入的訊息
	SyncSkew time.Duration `mapstructure:"sync_skew"`
}

// RedisConfig definition redis setting
// Addr 有值時走單機，否則走 sentinel (.env REDIS_SENTINEL*)
type RedisConfig struct {
	RedisDB  int    `mapstructure:"redis_db"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// MinIOConfig definition task asset storage
type MinIOConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	BucketName    string        `mapstructure:"bucket_name"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	RetryCount    int           `mapstructure:"retry_count"`
}

// NotifyDriver push job transport
type NotifyDriver string

const (
	// NotifyKafka publish push job to kafka topic
	NotifyKafka NotifyDriver = "kafka"
	// NotifyRabbitMQ publish push job to rabbitmq queue
	NotifyRabbitMQ NotifyDriver = "rabbitmq"
	// NotifyLog only log push job
	NotifyLog NotifyDriver = "log"
)

// NotifyConfig definition push dispatcher
type NotifyConfig struct {
	Driver   NotifyDriver   `mapstructure:"driver"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
}

// KafkaConfig definition kafka
type KafkaConfig struct {
	Brokers       []string      `mapstructure:"brokers"`
	Topic         string        `mapstructure:"topic"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	RetryCount    int           `mapstructure:"retry_count"`
}

// RabbitMQConfig definition rabbitmq
type RabbitMQConfig struct {
	IP            string        `mapstructure:"ip"`
	Port          string        `mapstructure:"port"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	Queue         string        `mapstructure:"queue"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	RetryCount    int           `mapstructure:"retry_count"`
}

// JWTConfig definition token verify
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	// VerifyExpiration 預設 false，沿用長效 token
	VerifyExpiration bool `mapstructure:"verify_expiration"`
}

// WSConfig definition websocket gateway
type WSConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	EventRate      float64       `mapstructure:"event_rate"`
	EventBurst     int           `mapstructure:"event_burst"`
}

// BreakerConfig definition circuit breaker for collaborators
type BreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// ApplyDefaults fill zero values
func (c *Chat) ApplyDefaults() {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.GRPCPort == "" {
		c.GRPCPort = "9090"
	}
	if c.MongoSQL.Database == "" {
		c.MongoSQL.Database = "task_chat"
	}
	if c.MinIO.PresignExpiry == 0 {
		c.MinIO.PresignExpiry = time.Hour
	}
	if c.Notify.Driver == "" {
		c.Notify.Driver = NotifyLog
	}
	if c.Notify.Kafka.Topic == "" {
		c.Notify.Kafka.Topic = "chat.push"
	}
	if c.Notify.RabbitMQ.Queue == "" {
		c.Notify.RabbitMQ.Queue = "chat.push"
	}
	if c.WS.PingInterval == 0 {
		c.WS.PingInterval = 30 * time.Second
	}
	if c.WS.WriteWait == 0 {
		c.WS.WriteWait = 10 * time.Second
	}
	if c.WS.SendBuffer == 0 {
		c.WS.SendBuffer = 256
	}
	if c.WS.MaxMessageSize == 0 {
		c.WS.MaxMessageSize = 64 * 1024
	}
	if c.WS.EventRate == 0 {
		c.WS.EventRate = 20
	}
	if c.WS.EventBurst == 0 {
		c.WS.EventBurst = 40
	}
	if c.Breaker.MaxRequests == 0 {
		c.Breaker.MaxRequests = 1
	}
	if c.Breaker.Interval == 0 {
		c.Breaker.Interval = time.Minute
	}
	if c.Breaker.Timeout == 0 {
		c.Breaker.Timeout = 30 * time.Second
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 5
	}
	if c.ProfileCacheTTL == 0 {
		c.ProfileCacheTTL = 5 * time.Minute
	}
	if c.SyncSkew == 0 {
		c.SyncSkew = 5 * time.Second
	}
}
