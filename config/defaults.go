package config

import "github.com/spf13/viper"

func setDefaults() {
	// Legacy socket server
	viper.SetDefault("legacy.enabled", true)
	viper.SetDefault("legacy.port", 3000)
	viper.SetDefault("legacy.maxConnections", 100)

	// Push (supervisor console) server
	viper.SetDefault("push.port", 8080)
	viper.SetDefault("push.readTimeout", 15)
	viper.SetDefault("push.writeTimeout", 10)
	viper.SetDefault("push.pingInterval", 25)
	viper.SetDefault("push.activityTimeout", 60)
	viper.SetDefault("push.messageSizeLimit", 4096)
	viper.SetDefault("push.maxRetries", 5)

	// Sessions
	viper.SetDefault("session.timeoutMinutes", 30)
	viper.SetDefault("session.sweepIntervalSeconds", 60)

	// Redis
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.poolSize", 100)
	viper.SetDefault("redis.poolTimeout", 5)

	// Broker
	viper.SetDefault("broker.type", "redis")
	viper.SetDefault("broker.channel", "chat-archive")
	viper.SetDefault("broker.kafka.publishRetries", 3)
	viper.SetDefault("broker.kafka.flushIntervalMs", 500)

	// History
	viper.SetDefault("history.enabled", true)
	viper.SetDefault("history.ttlHours", 24)
	viper.SetDefault("history.maxEntries", 1000)

	// Auth
	viper.SetDefault("auth.enabled", false) // Default to off for security
	viper.SetDefault("auth.jwtSecret", "default-secret")
	viper.SetDefault("auth.tokenQueryParam", "token")
	viper.SetDefault("auth.revocationListKey", "jwt:revoked")

	// Metrics
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)
	viper.SetDefault("metrics.path", "/metrics")
}
