// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Binance   BinanceConfig   `mapstructure:"binance"`
	Solana    SolanaConfig    `mapstructure:"solana"`
	OnChain   OnChainConfig   `mapstructure:"onchain"`
	Spread    SpreadConfig    `mapstructure:"spread"`
	Server    ServerConfig    `mapstructure:"server"`
	Health    HealthConfig    `mapstructure:"health"`
	Pairs     []PairConfig    `mapstructure:"pairs"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	TUIMode     bool   `mapstructure:"-"` // Set at runtime, not from config file
}

// BinanceConfig holds the exchange stream settings.
type BinanceConfig struct {
	WebSocketURL   string        `mapstructure:"websocket_url"` // wss://stream.binance.com:9443 or wss://stream.binance.us:9443 for US
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

// SolanaConfig holds the JSON-RPC endpoint settings.
type SolanaConfig struct {
	RPCURL            string        `mapstructure:"rpc_url"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Commitment        string        `mapstructure:"commitment"`
}

// OnChainConfig controls the order-book poller.
type OnChainConfig struct {
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	StartupRetryDelay time.Duration `mapstructure:"startup_retry_delay"`
}

// SpreadConfig holds fee rates applied before comparing prices.
type SpreadConfig struct {
	ExchangeFeeRate float64 `mapstructure:"exchange_fee_rate"`
	OnChainFeeRate  float64 `mapstructure:"onchain_fee_rate"`
	ProfitThreshold float64 `mapstructure:"profit_threshold"` // percent, informational only
}

// ExchangeFee returns the exchange fee rate as a decimal.
func (c SpreadConfig) ExchangeFee() decimal.Decimal {
	return decimal.NewFromFloat(c.ExchangeFeeRate)
}

// OnChainFee returns the on-chain fee rate as a decimal.
func (c SpreadConfig) OnChainFee() decimal.Decimal {
	return decimal.NewFromFloat(c.OnChainFeeRate)
}

// Threshold returns the profitability threshold as a decimal.
func (c SpreadConfig) Threshold() decimal.Decimal {
	return decimal.NewFromFloat(c.ProfitThreshold)
}

// ServerConfig configures the subscriber socket.
type ServerConfig struct {
	Port       int `mapstructure:"port"`
	SendBuffer int `mapstructure:"send_buffer"`
}

// HealthConfig configures the health endpoint.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// PairConfig describes one monitored pair.
type PairConfig struct {
	Name           string `mapstructure:"name"`
	MarketAddress  string `mapstructure:"market_address"`
	ProgramAddress string `mapstructure:"program_address"`
	ExchangeSymbol string `mapstructure:"exchange_symbol"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	Provider       string `mapstructure:"provider"` // zipkin, otlp-grpc, otlp-http, console
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// SerumProgramV3 is the Serum DEX v3 program id.
const SerumProgramV3 = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("SPREAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "SPREAD_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "SPREAD_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "SPREAD_LOG_LEVEL", "LOG_LEVEL")

	// Binance
	v.BindEnv("binance.websocket_url", "SPREAD_BINANCE_WS_URL", "BINANCE_WS_URL")
	v.BindEnv("binance.reconnect_delay", "SPREAD_BINANCE_RECONNECT_DELAY")

	// Solana
	v.BindEnv("solana.rpc_url", "SPREAD_SOLANA_RPC_URL", "SOLANA_RPC_URL")
	v.BindEnv("solana.requests_per_second", "SPREAD_SOLANA_RPS")

	// On-chain poller
	v.BindEnv("onchain.poll_interval", "SPREAD_POLL_INTERVAL")

	// Spread
	v.BindEnv("spread.exchange_fee_rate", "SPREAD_EXCHANGE_FEE_RATE")
	v.BindEnv("spread.onchain_fee_rate", "SPREAD_ONCHAIN_FEE_RATE")
	v.BindEnv("spread.profit_threshold", "SPREAD_PROFIT_THRESHOLD")

	// Server
	v.BindEnv("server.port", "SPREAD_SERVER_PORT", "PORT")
	v.BindEnv("health.port", "SPREAD_HEALTH_PORT")

	// Telemetry
	v.BindEnv("telemetry.enabled", "SPREAD_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "SPREAD_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.provider", "SPREAD_OTEL_PROVIDER")
	v.BindEnv("telemetry.otlp_endpoint", "SPREAD_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "SPREAD_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "spread-monitor")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Binance defaults
	v.SetDefault("binance.websocket_url", "wss://stream.binance.com:9443")
	v.SetDefault("binance.reconnect_delay", "5s")
	v.SetDefault("binance.max_message_size", 1024*1024)

	// Solana defaults
	v.SetDefault("solana.rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("solana.request_timeout", "10s")
	v.SetDefault("solana.requests_per_second", 10)
	v.SetDefault("solana.commitment", "confirmed")

	// Poller defaults
	v.SetDefault("onchain.poll_interval", "1s")
	v.SetDefault("onchain.startup_retry_delay", "5s")

	// Spread defaults
	v.SetDefault("spread.exchange_fee_rate", 0.001)
	v.SetDefault("spread.onchain_fee_rate", 0.003)
	v.SetDefault("spread.profit_threshold", 0.5)

	// Server defaults
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.send_buffer", 16)
	v.SetDefault("health.port", 8081)

	v.SetDefault("pairs", DefaultPairs())

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "spread-monitor")
	v.SetDefault("telemetry.provider", "zipkin")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// DefaultPairs returns the Serum v3 markets monitored out of the box.
func DefaultPairs() []map[string]any {
	return []map[string]any{
		{
			"name":            "BTC/USDC",
			"market_address":  "A8YFbxQYFVqKZaoYJLLUVcQiWP7G2MeEgW5wsAQgMvFw",
			"program_address": SerumProgramV3,
			"exchange_symbol": "BTCUSDC",
		},
		{
			"name":            "ETH/USDC",
			"market_address":  "4tSvZvnbkwu8rXFwZjsSYJbVRHW1bUvqqAjN3rxu4t8X",
			"program_address": SerumProgramV3,
			"exchange_symbol": "ETHUSDC",
		},
		{
			"name":            "SOL/USDC",
			"market_address":  "9wFFyRfZBsuAha4YcuxcXLKwMxJR43S7fPfQLusDBzvT",
			"program_address": SerumProgramV3,
			"exchange_symbol": "SOLUSDC",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Binance.WebSocketURL == "" {
		return fmt.Errorf("binance.websocket_url is required")
	}
	if c.Binance.ReconnectDelay <= 0 {
		return fmt.Errorf("binance.reconnect_delay must be positive")
	}
	if c.Solana.RPCURL == "" {
		return fmt.Errorf("solana.rpc_url is required")
	}
	if c.OnChain.PollInterval <= 0 {
		return fmt.Errorf("onchain.poll_interval must be positive")
	}
	if c.OnChain.StartupRetryDelay <= 0 {
		return fmt.Errorf("onchain.startup_retry_delay must be positive")
	}
	if err := validateFee("spread.exchange_fee_rate", c.Spread.ExchangeFeeRate); err != nil {
		return err
	}
	if err := validateFee("spread.onchain_fee_rate", c.Spread.OnChainFeeRate); err != nil {
		return err
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	if len(c.Pairs) == 0 {
		return fmt.Errorf("pairs cannot be empty")
	}

	seen := make(map[string]struct{}, len(c.Pairs))
	for i, p := range c.Pairs {
		if p.Name == "" {
			return fmt.Errorf("pairs[%d].name is required", i)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("duplicate pair name: %s", p.Name)
		}
		seen[p.Name] = struct{}{}

		if p.ExchangeSymbol == "" {
			return fmt.Errorf("pairs[%d].exchange_symbol is required", i)
		}
		if !isPublicKey(p.MarketAddress) {
			return fmt.Errorf("invalid pairs[%d].market_address: %s", i, p.MarketAddress)
		}
		if !isPublicKey(p.ProgramAddress) {
			return fmt.Errorf("invalid pairs[%d].program_address: %s", i, p.ProgramAddress)
		}
	}
	return nil
}

func validateFee(key string, v float64) error {
	if v < 0 || v >= 1 {
		return fmt.Errorf("%s must be in [0,1): %v", key, v)
	}
	return nil
}

func isPublicKey(s string) bool {
	b, err := base58.Decode(s)
	return err == nil && len(b) == 32
}
