package config

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Legacy  LegacyConfig
	Push    PushConfig
	Session SessionConfig
	Redis   RedisConfig
	Broker  BrokerConfig
	History HistoryConfig
	Auth    AuthConfig
	Metrics MetricsConfig
}

type LegacyConfig struct {
	Enabled        bool
	Port           int
	MaxConnections int
}

type PushConfig struct {
	Port             int
	ReadTimeout      int // Seconds
	WriteTimeout     int // Seconds
	PingInterval     int // Seconds
	ActivityTimeout  int // Seconds
	MessageSizeLimit int
	MaxRetries       int
}

type SessionConfig struct {
	TimeoutMinutes       int
	SweepIntervalSeconds int
}

type RedisConfig struct {
	Address     string
	Password    string
	DB          int
	PoolSize    int
	PoolTimeout int
}

type BrokerConfig struct {
	Type    string // "redis" or "kafka"
	Channel string
	Kafka   KafkaConfig
}

type KafkaConfig struct {
	Brokers         []string
	GroupID         string
	PublishRetries  int
	FlushIntervalMs int
}

type HistoryConfig struct {
	Enabled    bool
	TTLHours   int
	MaxEntries int
}

type AuthConfig struct {
	Enabled           bool
	JWTSecret         string
	TokenQueryParam   string
	RevocationListKey string
}

type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

var (
	instance *AppConfig
	once     sync.Once
)

func Initialize(env string) error {
	var initErr error
	once.Do(func() {
		viper.SetConfigName(fmt.Sprintf("config.%s", env))
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")

		viper.AutomaticEnv()
		viper.SetEnvPrefix("CHATRELAY")

		setDefaults()
		bindEnvVars()

		if err := viper.ReadInConfig(); err != nil {
			initErr = fmt.Errorf("config file error: %w", err)
			return
		}

		if err := viper.Unmarshal(&instance); err != nil {
			initErr = fmt.Errorf("config unmarshal error: %w", err)
			return
		}

		if err := instance.Validate(); err != nil {
			initErr = fmt.Errorf("config validation failed: %w", err)
			return
		}
	})
	return initErr
}

func Get() *AppConfig {
	return instance
}
