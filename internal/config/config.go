package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Engine    Engine    `mapstructure:"engine"`
	Trading   Trading   `mapstructure:"trading"`
	Feed      Feed      `mapstructure:"feed"`
	Sentiment Sentiment `mapstructure:"sentiment"`
	Advisor   Advisor   `mapstructure:"advisor"`
	Live      Live      `mapstructure:"live"`
	Logger    Logger    `mapstructure:"logger"`
	Database  Database  `mapstructure:"database"`
}

// Engine holds the scheduler and control-surface configuration.
type Engine struct {
	Symbols      []string `mapstructure:"symbols"`
	TickInterval int      `mapstructure:"tick_interval"` // seconds
	ApiPort      int      `mapstructure:"api_port"`
	Mode         string   `mapstructure:"mode"` // "paper" or "live"
}

// Trading holds the policy constants for the decision engine.
// Percent-style values are fractions (0.008 == 0.8%) unless noted.
type Trading struct {
	InitialBalance   float64   `mapstructure:"initial_balance"`
	RSIOversold      float64   `mapstructure:"rsi_oversold"`
	RSIOverbought    float64   `mapstructure:"rsi_overbought"`
	TakeProfit       float64   `mapstructure:"take_profit"`
	StopLoss         float64   `mapstructure:"stop_loss"` // negative
	MinConfidence    float64   `mapstructure:"min_confidence"`
	WarmupPeriod     int       `mapstructure:"warmup_period"` // samples
	MinCashReserve   float64   `mapstructure:"min_cash_reserve"`
	MaxPositionShare float64   `mapstructure:"max_position_share"`
	BuyPercent       float64   `mapstructure:"buy_percent"`
	MinTradeSize     float64   `mapstructure:"min_trade_size"` // token units
	CooldownSeconds  int       `mapstructure:"cooldown_seconds"`
	CooldownOnExits  bool      `mapstructure:"cooldown_applies_to_exits"`
	DCAZones         []float64 `mapstructure:"dca_zones"`       // drawdown fractions, negative
	DCAMultipliers   []float64 `mapstructure:"dca_multipliers"` // relative re-entry sizing
	TrailingActivate float64   `mapstructure:"trailing_activation"`
	TrailingCallback float64   `mapstructure:"trailing_callback"`
	HardStopLoss     float64   `mapstructure:"hard_stop_loss"` // negative
	FeeRate          float64   `mapstructure:"fee_rate"`
	RSIPeriod        int       `mapstructure:"rsi_period"`
	SMAPeriod        int       `mapstructure:"sma_period"`
	MaxHistory       int       `mapstructure:"max_history"`
	SMABuyGap        float64   `mapstructure:"sma_buy_gap"`    // fraction below SMA worth a buy
	SharpDrop24h     float64   `mapstructure:"sharp_drop_24h"` // percent, negative
	DataPenaltyLimit float64   `mapstructure:"data_penalty_limit"`
}

// Feed holds the configuration for the price feed client.
type Feed struct {
	BaseURL        string  `mapstructure:"base_url"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// Sentiment holds the configuration for the news sentiment feed.
type Sentiment struct {
	BaseURL        string `mapstructure:"base_url"`
	CacheTTL       int    `mapstructure:"cache_ttl"` // seconds
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	Enabled        bool   `mapstructure:"enabled"`
}

// Advisor holds the configuration for the external advisory service.
type Advisor struct {
	BaseURL        string `mapstructure:"base_url"`
	ApiKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	Enabled        bool   `mapstructure:"enabled"`
}

// Live holds the exchange credentials required to switch into live mode.
type Live struct {
	ApiKey    string `mapstructure:"api_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}

// setDefaults registers the default trading policy so a minimal config
// file still yields a fully specified engine.
func setDefaults() {
	viper.SetDefault("engine.symbols", []string{"SOL", "BTC", "ETH"})
	viper.SetDefault("engine.tick_interval", 30)
	viper.SetDefault("engine.api_port", 8080)
	viper.SetDefault("engine.mode", "paper")

	viper.SetDefault("trading.initial_balance", 100.0)
	viper.SetDefault("trading.rsi_oversold", 30.0)
	viper.SetDefault("trading.rsi_overbought", 75.0)
	viper.SetDefault("trading.take_profit", 0.008)
	viper.SetDefault("trading.stop_loss", -0.015)
	viper.SetDefault("trading.min_confidence", 60.0)
	viper.SetDefault("trading.warmup_period", 20)
	viper.SetDefault("trading.min_cash_reserve", 0.20)
	viper.SetDefault("trading.max_position_share", 0.30)
	viper.SetDefault("trading.buy_percent", 0.15)
	viper.SetDefault("trading.min_trade_size", 0.05)
	viper.SetDefault("trading.cooldown_seconds", 60)
	viper.SetDefault("trading.cooldown_applies_to_exits", true)
	viper.SetDefault("trading.dca_zones", []float64{-0.02, -0.05, -0.10})
	viper.SetDefault("trading.dca_multipliers", []float64{1.0, 1.5, 2.0})
	viper.SetDefault("trading.trailing_activation", 0.015)
	viper.SetDefault("trading.trailing_callback", 0.005)
	viper.SetDefault("trading.hard_stop_loss", -0.15)
	viper.SetDefault("trading.fee_rate", 0.001)
	viper.SetDefault("trading.rsi_period", 14)
	viper.SetDefault("trading.sma_period", 20)
	viper.SetDefault("trading.max_history", 100)
	viper.SetDefault("trading.sma_buy_gap", 0.02)
	viper.SetDefault("trading.sharp_drop_24h", -5.0)
	viper.SetDefault("trading.data_penalty_limit", 50.0)

	viper.SetDefault("feed.rate_limit", 10)
	viper.SetDefault("feed.rate_limit_burst", 5)
	viper.SetDefault("feed.timeout_seconds", 10)

	viper.SetDefault("sentiment.cache_ttl", 300)
	viper.SetDefault("sentiment.timeout_seconds", 10)
	viper.SetDefault("sentiment.enabled", true)

	viper.SetDefault("advisor.timeout_seconds", 15)
	viper.SetDefault("advisor.enabled", true)

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")

	viper.SetDefault("database.dsn", "trader.db")
}
