package config

import (
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
}

var (
	ConfigInstance *Config
	once           sync.Once
)

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type RedisConfig struct {
	URL          string
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

func LoadConfig() (*Config, error) {
	once.Do(func() {
		viper.SetDefault("QRMENU_PORT", "8080")
		viper.SetDefault("QRMENU_READ_TIMEOUT", 30*time.Second)
		viper.SetDefault("QRMENU_WRITE_TIMEOUT", 30*time.Second)
		viper.SetDefault("QRMENU_IDLE_TIMEOUT", 60*time.Second)
		viper.SetDefault("QRMENU_RATE_LIMIT_REQUESTS", 60)
		viper.SetDefault("QRMENU_RATE_LIMIT_WINDOW", time.Minute)
		viper.SetDefault("REDIS_URL", "redis://127.0.0.1:6379/0")
		viper.SetDefault("REDIS_MAX_RETRIES", 3)
		viper.SetDefault("REDIS_POOL_SIZE", 100)
		viper.SetDefault("REDIS_MIN_IDLE_CONNS", 10)
		viper.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
		viper.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
		viper.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)
		viper.SetDefault("POSTGRES_USER", "postgres")
		viper.SetDefault("POSTGRES_PASSWORD", "password")
		viper.SetDefault("POSTGRES_HOST", "localhost")
		viper.SetDefault("POSTGRES_PORT", "5432")
		viper.SetDefault("POSTGRES_DB", "qrmenu")
		viper.AutomaticEnv()

		ConfigInstance = &Config{
			Server: ServerConfig{
				Host:         viper.GetString("QRMENU_HOST"),
				Port:         viper.GetString("QRMENU_PORT"),
				ReadTimeout:  viper.GetDuration("QRMENU_READ_TIMEOUT"),
				WriteTimeout: viper.GetDuration("QRMENU_WRITE_TIMEOUT"),
				IdleTimeout:  viper.GetDuration("QRMENU_IDLE_TIMEOUT"),
			},
			Database: DatabaseConfig{
				URL:      viper.GetString("DATABASE_URL"),
				Host:     viper.GetString("POSTGRES_HOST"),
				Port:     viper.GetString("POSTGRES_PORT"),
				User:     viper.GetString("POSTGRES_USER"),
				Password: viper.GetString("POSTGRES_PASSWORD"),
				DBName:   viper.GetString("POSTGRES_DB"),
			},
			Redis: RedisConfig{
				URL:          viper.GetString("REDIS_URL"),
				MaxRetries:   viper.GetInt("REDIS_MAX_RETRIES"),
				DialTimeout:  viper.GetDuration("REDIS_DIAL_TIMEOUT"),
				ReadTimeout:  viper.GetDuration("REDIS_READ_TIMEOUT"),
				WriteTimeout: viper.GetDuration("REDIS_WRITE_TIMEOUT"),
				PoolSize:     viper.GetInt("REDIS_POOL_SIZE"),
				MinIdleConns: viper.GetInt("REDIS_MIN_IDLE_CONNS"),
			},
			RateLimit: RateLimitConfig{
				Requests: viper.GetInt("QRMENU_RATE_LIMIT_REQUESTS"),
				Window:   viper.GetDuration("QRMENU_RATE_LIMIT_WINDOW"),
			},
		}
	})

	return ConfigInstance, nil
}
