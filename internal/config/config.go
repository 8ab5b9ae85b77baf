package config

import (
	"fmt"
	"time"
)

const defaultSessionTTL = time.Hour

type Config struct {
	ServerAddr     string
	MongoURI       string
	MongoDatabase  string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	SessionTTL     time.Duration
	AllowedOrigins []string
}

// NewConfig validates the runtime settings. RedisAddr may be empty, in
// which case the session cache is disabled. A non-positive sessionTTL
// falls back to the default.
func NewConfig(serverAddr, mongoURI, mongoDatabase, redisAddr, redisPassword string, redisDB int,
	sessionTTL time.Duration, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if mongoURI == "" {
		return nil, fmt.Errorf("mongo URI cannot be empty")
	}
	if mongoDatabase == "" {
		return nil, fmt.Errorf("mongo database name cannot be empty")
	}
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}

	return &Config{
		ServerAddr:     serverAddr,
		MongoURI:       mongoURI,
		MongoDatabase:  mongoDatabase,
		RedisAddr:      redisAddr,
		RedisPassword:  redisPassword,
		RedisDB:        redisDB,
		SessionTTL:     sessionTTL,
		AllowedOrigins: allowedOrigins,
	}, nil
}
