package config

import (
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/john0isaac/fastroom/pkg/config"
	"github.com/john0isaac/fastroom/pkg/log"
)

type Config struct {
	Server    ServerConfig
	ServerID  string `mapstructure:"server_id"`
	Database  DatabaseConfig
	Redis     RedisConfig
	WebSocket WebSocketConfig
	Chat      ChatConfig
	Auth      AuthConfig
	Kafka     KafkaConfig
	Log       log.Config
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Driver   string // postgres, mysql, sqlite
	Host     string
	Port     int
	User     string
	Password string
	DBName   string `mapstructure:"db_name"`
	SSLMode  string `mapstructure:"ssl_mode"`
	FilePath string `mapstructure:"file_path"` // sqlite only
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type ChatConfig struct {
	// HeartbeatInterval is the tick between presence record refreshes;
	// HeartbeatTTL must be strictly greater so one missed tick does not
	// expire the record.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	HeartbeatTTL      time.Duration `mapstructure:"heartbeat_ttl"`
	PresencePrefix    string        `mapstructure:"presence_prefix"`
	ChannelPrefix     string        `mapstructure:"channel_prefix"`
	HistoryLimit      int           `mapstructure:"history_limit"`
}

type AuthConfig struct {
	Secret          string
	Issuer          string
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

type KafkaConfig struct {
	Enabled    bool
	Brokers    string
	Topic      string
	Partitions int
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server_id", "")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "fastroom")
	v.SetDefault("database.password", "")
	v.SetDefault("database.db_name", "fastroom")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.file_path", "fastroom.db")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("chat.heartbeat_interval", "25s")
	v.SetDefault("chat.heartbeat_ttl", "30s")
	v.SetDefault("chat.presence_prefix", "presence")
	v.SetDefault("chat.channel_prefix", "room:")
	v.SetDefault("chat.history_limit", 50)
	v.SetDefault("auth.secret", "change-me")
	v.SetDefault("auth.issuer", "fastroom")
	v.SetDefault("auth.access_token_ttl", "30m")
	v.SetDefault("auth.refresh_token_ttl", "720h")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "chat-archive")
	v.SetDefault("kafka.partitions", 8)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "fastroom")

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server_id", "SERVER_ID")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.db_name", "DB_NAME")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("chat.heartbeat_interval", "WS_HEARTBEAT_INTERVAL")
	v.BindEnv("chat.heartbeat_ttl", "WS_HEARTBEAT_TTL")
	v.BindEnv("auth.secret", "AUTH_SECRET")
	v.BindEnv("kafka.enabled", "KAFKA_ENABLED")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_TOPIC")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Chat.HeartbeatInterval = parseDuration(v, "chat.heartbeat_interval", 25*time.Second)
	cfg.Chat.HeartbeatTTL = parseDuration(v, "chat.heartbeat_ttl", 30*time.Second)
	cfg.Auth.AccessTokenTTL = parseDuration(v, "auth.access_token_ttl", 30*time.Minute)
	cfg.Auth.RefreshTokenTTL = parseDuration(v, "auth.refresh_token_ttl", 720*time.Hour)

	if cfg.Chat.HeartbeatTTL <= cfg.Chat.HeartbeatInterval {
		cfg.Chat.HeartbeatTTL = cfg.Chat.HeartbeatInterval + 5*time.Second
	}

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
