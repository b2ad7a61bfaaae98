package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func (c *AppConfig) Validate() error {
	if c.Legacy.Enabled {
		if c.Legacy.Port < 1 || c.Legacy.Port > 65535 {
			return errors.New("invalid legacy server port")
		}
		if c.Legacy.MaxConnections < 1 {
			return errors.New("legacy max connections must be positive")
		}
	}

	if c.Push.Port < 1 || c.Push.Port > 65535 {
		return errors.New("invalid push server port")
	}
	if c.Push.PingInterval >= c.Push.ActivityTimeout {
		return errors.New("ping interval should be less than activity timeout")
	}

	if c.Session.TimeoutMinutes < 1 {
		return errors.New("session timeout must be at least 1 minute")
	}
	if c.Session.SweepIntervalSeconds < 1 {
		return errors.New("session sweep interval must be at least 1 second")
	}

	// Validate auth config
	if c.Auth.Enabled {
		if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == "default-secret" {
			return errors.New("auth.jwtSecret must be set to a strong secret when auth is enabled")
		}
		if c.Auth.TokenQueryParam == "" {
			return errors.New("auth.tokenQueryParam must be configured when auth is enabled")
		}
	}

	// Validate broker configuration
	switch strings.ToLower(c.Broker.Type) {
	case "redis":
		if c.Redis.Address == "" {
			return errors.New("redis address must be specified for redis broker")
		}
	case "kafka":
		if len(c.Broker.Kafka.Brokers) == 0 {
			return errors.New("kafka brokers must be specified for kafka broker")
		}
		if c.Broker.Kafka.GroupID == "" {
			return errors.New("kafka groupID must be specified for kafka broker")
		}
		if c.Broker.Kafka.PublishRetries < 1 {
			return errors.New("kafka publish retries must be positive")
		}
		if c.Broker.Kafka.FlushIntervalMs < 1 {
			return errors.New("kafka flush interval must be positive")
		}
	default:
		return fmt.Errorf("invalid broker type: %s. Must be 'redis' or 'kafka'", c.Broker.Type)
	}
	if c.Broker.Channel == "" {
		return errors.New("broker channel must be configured")
	}

	if c.History.Enabled && c.Redis.Address == "" {
		return errors.New("redis address must be specified when history is enabled")
	}

	return nil
}

func bindEnvVars() {
	// Legacy server
	viper.BindEnv("legacy.enabled", "CHATRELAY_LEGACY_ENABLED")
	viper.BindEnv("legacy.port", "CHATRELAY_LEGACY_PORT")
	viper.BindEnv("legacy.maxConnections", "CHATRELAY_LEGACY_MAX_CONNECTIONS")

	// Push server
	viper.BindEnv("push.port", "CHATRELAY_PUSH_PORT")
	viper.BindEnv("push.pingInterval", "CHATRELAY_PUSH_PING_INTERVAL")
	viper.BindEnv("push.activityTimeout", "CHATRELAY_PUSH_ACTIVITY_TIMEOUT")
	viper.BindEnv("push.writeTimeout", "CHATRELAY_PUSH_WRITE_TIMEOUT")

	// Sessions
	viper.BindEnv("session.timeoutMinutes", "CHATRELAY_SESSION_TIMEOUT_MINUTES")
	viper.BindEnv("session.sweepIntervalSeconds", "CHATRELAY_SESSION_SWEEP_INTERVAL")

	// Redis
	viper.BindEnv("redis.address", "CHATRELAY_REDIS_ADDRESS")
	viper.BindEnv("redis.password", "CHATRELAY_REDIS_PASSWORD")

	// Broker
	viper.BindEnv("broker.type", "CHATRELAY_BROKER_TYPE")
	viper.BindEnv("broker.channel", "CHATRELAY_BROKER_CHANNEL")
	viper.BindEnv("broker.kafka.brokers", "CHATRELAY_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.groupID", "CHATRELAY_KAFKA_GROUPID")

	// History
	viper.BindEnv("history.enabled", "CHATRELAY_HISTORY_ENABLED")

	// Auth
	viper.BindEnv("auth.enabled", "CHATRELAY_AUTH_ENABLED")
	viper.BindEnv("auth.jwtSecret", "CHATRELAY_AUTH_JWT_SECRET")
	viper.BindEnv("auth.tokenQueryParam", "CHATRELAY_AUTH_TOKEN_PARAM")
	viper.BindEnv("auth.revocationListKey", "CHATRELAY_AUTH_REVOCATION_KEY")
}
