package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Backend  Backend  `mapstructure:"backend" yaml:"backend"`
	Polling  Polling  `mapstructure:"polling" yaml:"polling"`
	Logger   Logger   `mapstructure:"logger" yaml:"logger"`
	Database Database `mapstructure:"database" yaml:"database"`
	Sandbox  Sandbox  `mapstructure:"sandbox" yaml:"sandbox"`
	Metrics  Metrics  `mapstructure:"metrics" yaml:"metrics"`
}

// Backend holds the configuration for the Trading Core REST API.
type Backend struct {
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RateLimit         float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateLimitBurst    int           `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
	DefaultRetryAfter time.Duration `mapstructure:"default_retry_after" yaml:"default_retry_after"`
}

// Polling holds the refresh interval of every polled resource.
type Polling struct {
	Wallet      time.Duration `mapstructure:"wallet" yaml:"wallet"`
	Orders      time.Duration `mapstructure:"orders" yaml:"orders"`
	MarketPrice time.Duration `mapstructure:"market_price" yaml:"market_price"`
	Stocks      time.Duration `mapstructure:"stocks" yaml:"stocks"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Database holds the configuration for the local credential and journal store.
type Database struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// Sandbox holds the configuration for the local development backend.
type Sandbox struct {
	Port           int     `mapstructure:"port" yaml:"port"`
	StartingCash   float64 `mapstructure:"starting_cash" yaml:"starting_cash"`
	OrdersPerMin   float64 `mapstructure:"orders_per_minute" yaml:"orders_per_minute"`
	RetryAfterSecs int     `mapstructure:"retry_after_seconds" yaml:"retry_after_seconds"`
	// BarePortfolio leaves currentPrice off holdings, so clients quote
	// each symbol themselves.
	BarePortfolio bool `mapstructure:"bare_portfolio" yaml:"bare_portfolio"`
}

// Metrics holds the configuration for the Prometheus listener.
// An empty Listen disables it.
type Metrics struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("backend.base_url", "http://localhost:5000/api")
	v.SetDefault("backend.timeout", 15*time.Second)
	v.SetDefault("backend.rate_limit", 20) // requests per second
	v.SetDefault("backend.rate_limit_burst", 5)
	v.SetDefault("backend.default_retry_after", 30*time.Second)

	v.SetDefault("polling.wallet", 10*time.Second)
	v.SetDefault("polling.orders", 7*time.Second)
	v.SetDefault("polling.market_price", 5*time.Second)
	v.SetDefault("polling.stocks", 10*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("database.dsn", "trading-terminal.db")

	v.SetDefault("sandbox.port", 5000)
	v.SetDefault("sandbox.starting_cash", 100000)
	v.SetDefault("sandbox.orders_per_minute", 30)
	v.SetDefault("sandbox.retry_after_seconds", 30)

	v.SetDefault("metrics.listen", "")
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error: defaults and environment still apply.
func LoadConfig(path string) (config Config, err error) {
	// Values already present in the environment win over .env.
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	SetDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}
