package gateway

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/microshop/platform/internal/pkg/ports"
)

// Config holds the gateway configuration: where to listen, how to log and
// which downstream services to relay to.
type Config struct {
	Log    LogConfig
	HTTP   HTTPConfig
	Routes []RouteConfig

	// ServicePorts maps service names to their default ports; the port
	// resolver shifts from these when a port is already taken.
	ServicePorts map[string]int
}

type LogConfig struct {
	Level string // debug, info, warn, error
}

type HTTPConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// RouteConfig is the file/env-facing shape of a route definition.
type RouteConfig struct {
	Name             string        `mapstructure:"name"`
	Prefix           string        `mapstructure:"prefix"`
	Service          string        `mapstructure:"service"`
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryBaseDelay   time.Duration `mapstructure:"retry_base_delay"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	CoolDown         time.Duration `mapstructure:"cool_down"`
}

func defaultRoutes() []RouteConfig {
	mk := func(name, prefix string) RouteConfig {
		return RouteConfig{Name: name, Prefix: prefix, Service: name, Host: "localhost"}
	}
	return []RouteConfig{
		mk("products", "/api/products"),
		mk("orders", "/api/orders"),
		mk("payments", "/api/payments"),
		mk("notifications", "/api/notifications"),
		mk("users", "/api/users"),
		mk("inventory", "/api/inventory"),
	}
}

// Load reads gateway.yaml (if present) with MICROSHOP_-prefixed environment
// overrides on top of the built-in defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("gateway")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/microshop")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine, defaults and env vars cover it.
	}

	v.SetEnvPrefix("MICROSHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.idle_timeout", "60s")
	for name, port := range ports.Defaults() {
		v.SetDefault("services."+name, port)
	}

	cfg := &Config{
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
			IdleTimeout:  v.GetDuration("http.idle_timeout"),
		},
		ServicePorts: make(map[string]int),
	}
	for name := range v.GetStringMap("services") {
		cfg.ServicePorts[name] = v.GetInt("services." + name)
	}

	if v.IsSet("routes") {
		if err := v.UnmarshalKey("routes", &cfg.Routes); err != nil {
			return nil, fmt.Errorf("error parsing routes: %w", err)
		}
	} else {
		cfg.Routes = defaultRoutes()
	}
	return cfg, nil
}

// RouteDefinitions turns the configured routes into runtime definitions,
// filling in each downstream port from the service-port table. Targets use
// a service's default port; a downstream that had to shift its own port is
// reached through its route's explicit config instead.
func (c *Config) RouteDefinitions() ([]RouteDefinition, error) {
	defs := make([]RouteDefinition, len(c.Routes))
	for i, rc := range c.Routes {
		port := rc.Port
		if port == 0 {
			var ok bool
			port, ok = c.ServicePorts[rc.Service]
			if !ok {
				return nil, fmt.Errorf("route %s: no port known for service %q", rc.Name, rc.Service)
			}
		}
		host := rc.Host
		if host == "" {
			host = "localhost"
		}
		defs[i] = RouteDefinition{
			Name:    rc.Name,
			Prefix:  rc.Prefix,
			Host:    host,
			Port:    port,
			Timeout: rc.Timeout,
			Retry: RetryPolicy{
				MaxRetries: rc.MaxRetries,
				BaseDelay:  rc.RetryBaseDelay,
			},
			Breaker: BreakerPolicy{
				FailureThreshold: rc.FailureThreshold,
				CoolDown:         rc.CoolDown,
			},
		}
	}
	return defs, nil
}
