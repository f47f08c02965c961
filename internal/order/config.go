package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/microshop/platform/internal/pkg/ports"
)

// Config holds the order service configuration.
type Config struct {
	Log struct {
		Level string
	}
	Database struct {
		Path string
	}
	Products struct {
		BaseURL string
		Timeout time.Duration
	}
	Kafka struct {
		Brokers string // comma-separated; empty disables the kafka publisher
	}
	Redis struct {
		Addr string // empty falls back to the in-process cache
	}
	ServicePorts map[string]int
}

// LoadConfig reads order-service.yaml (if present) with MICROSHOP_-prefixed
// environment overrides on top of the built-in defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("order-service")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/microshop")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("MICROSHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("database.path", "orders.db")
	v.SetDefault("products.timeout", "5s")
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("redis.addr", "")
	for name, port := range ports.Defaults() {
		v.SetDefault("services."+name, port)
	}

	cfg := &Config{ServicePorts: make(map[string]int)}
	cfg.Log.Level = v.GetString("log.level")
	cfg.Database.Path = v.GetString("database.path")
	cfg.Products.BaseURL = v.GetString("products.base_url")
	cfg.Products.Timeout = v.GetDuration("products.timeout")
	cfg.Kafka.Brokers = v.GetString("kafka.brokers")
	cfg.Redis.Addr = v.GetString("redis.addr")
	for name := range v.GetStringMap("services") {
		cfg.ServicePorts[name] = v.GetInt("services." + name)
	}

	if cfg.Products.BaseURL == "" {
		cfg.Products.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.ServicePorts["products"])
	}
	return cfg, nil
}
