// Package config defines all configuration for the market-making bot.
//
// The load-bearing trading knobs are flat environment variables, resolved
// exactly as named: PK, CONDITIONID, PROXYWALLET, ASSETS_IDS, RPC_URL,
// MAX_INVENTORY_IMBALANCE, MAX_POSITION_SIZE. Secondary tunables (dashboard,
// scanner, rate limiting, logging) may additionally come from an optional
// YAML file (default configs/config.yaml, override via BOT_CONFIG).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration.
type Config struct {
	DryRun bool `mapstructure:"dry_run"`

	Wallet   WalletConfig   `mapstructure:"wallet"`
	Market   MarketConfig   `mapstructure:"market"`
	API      APIConfig      `mapstructure:"api"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Scanner  ScannerConfig  `mapstructure:"scanner"`
	Store    StoreConfig    `mapstructure:"store"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// WalletConfig holds the Ethereum wallet used for signing orders and the
// Safe-relayer split/merge transaction.
type WalletConfig struct {
	PrivateKey    string `mapstructure:"pk"`
	SignatureType int    `mapstructure:"signature_type"`
	ProxyWallet   string `mapstructure:"proxy_wallet"`
	ChainID       int    `mapstructure:"chain_id"`
	RPCURL        string `mapstructure:"rpc_url"`
}

// MarketConfig names the single binary market this instance trades.
type MarketConfig struct {
	ConditionID     string `mapstructure:"condition_id"`
	YesTokenID      string `mapstructure:"yes_token_id"`
	NoTokenID       string `mapstructure:"no_token_id"` // not checked by Validate; nothing derives it when unset
	NegRisk         bool   `mapstructure:"neg_risk"`
	CTFAddress      string `mapstructure:"ctf_address"`
	CollateralAddr  string `mapstructure:"collateral_address"`
}

// APIConfig holds exchange API endpoints and optional pre-derived L2 creds.
type APIConfig struct {
	CLOBBaseURL    string `mapstructure:"clob_base_url"`
	GammaBaseURL   string `mapstructure:"gamma_base_url"`
	WSMarketURL    string `mapstructure:"ws_market_url"`
	WSUserURL      string `mapstructure:"ws_user_url"`
	RelayerBaseURL string `mapstructure:"relayer_base_url"`
	ApiKey         string `mapstructure:"api_key"`
	Secret         string `mapstructure:"secret"`
	Passphrase     string `mapstructure:"passphrase"`
}

// StrategyConfig tunes the edge-based quoting rule of SPEC_FULL §4.3.
type StrategyConfig struct {
	Edge            float64       `mapstructure:"edge"`              // 0.02
	BaseOrderSize   float64       `mapstructure:"base_order_size"`   // units per side
	ExtremeLow      float64       `mapstructure:"extreme_low"`       // 0.02
	ExtremeHigh     float64       `mapstructure:"extreme_high"`      // 0.98
	AggressiveSkew  float64       `mapstructure:"aggressive_skew"`   // disabled (0) by default
	SkewEnabled     bool          `mapstructure:"skew_enabled"`
	StaleBookTimeout time.Duration `mapstructure:"stale_book_timeout"`
}

// RiskConfig mirrors SPEC_FULL §3's shared-state risk knobs.
type RiskConfig struct {
	MaxInventoryImbalance float64 `mapstructure:"max_inventory_imbalance"` // default 25.0; compared to a token-unit difference, not dollars
	MaxPositionSize       float64 `mapstructure:"max_position_size"`       // default 50.0; compared to a token count, not dollars
}

// ScannerConfig controls the negative-risk arbitrage scanner (SPEC_FULL §12),
// distinct from the trading core.
type ScannerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	PollInterval  time.Duration `mapstructure:"poll_interval"` // default 10s
	Threshold     float64       `mapstructure:"threshold"`     // default 0.01
	ConditionIDs  []string      `mapstructure:"condition_ids"` // family of mutually-exclusive outcomes
}

// StoreConfig sets where the shared-state snapshot is persisted.
type StoreConfig struct {
	SnapshotPath string `mapstructure:"snapshot_path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the operator-facing web dashboard.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load builds a Config from the flat environment keys named in SPEC_FULL §6,
// layered over an optional YAML file for secondary tunables. The YAML file
// is optional — its absence is not an error, since the required keys all
// resolve from the environment.
func Load(yamlPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(yamlPath)
	v.AutomaticEnv()

	// Defaults for secondary tunables, overridden by the optional YAML file.
	v.SetDefault("api.clob_base_url", "https://clob.polymarket.com")
	v.SetDefault("api.gamma_base_url", "https://gamma-api.polymarket.com")
	v.SetDefault("api.ws_market_url", "wss://ws-subscriptions-clob.polymarket.com/ws/market")
	v.SetDefault("api.ws_user_url", "wss://ws-subscriptions-clob.polymarket.com/ws/user")
	v.SetDefault("api.relayer_base_url", "https://relayer-v2.polymarket.com")
	v.SetDefault("market.ctf_address", "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045")
	v.SetDefault("market.collateral_address", "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")
	v.SetDefault("strategy.edge", 0.02)
	v.SetDefault("strategy.base_order_size", 500.0)
	v.SetDefault("strategy.extreme_low", 0.02)
	v.SetDefault("strategy.extreme_high", 0.98)
	v.SetDefault("strategy.aggressive_skew", 0.0)
	v.SetDefault("strategy.skew_enabled", false)
	v.SetDefault("strategy.stale_book_timeout", 60*time.Second)
	v.SetDefault("risk.max_inventory_imbalance", 25.0)
	v.SetDefault("risk.max_position_size", 50.0)
	v.SetDefault("scanner.enabled", true)
	v.SetDefault("scanner.poll_interval", 10*time.Second)
	v.SetDefault("scanner.threshold", 0.01)
	v.SetDefault("store.snapshot_path", "data/state.json")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("dashboard.enabled", true)
	v.SetDefault("dashboard.port", 8090)
	v.SetDefault("wallet.signature_type", 2) // Gnosis Safe — PROXYWALLET is the safe address

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file %q: %w", yamlPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// The load-bearing keys named in SPEC_FULL §6, resolved directly off the
	// environment (via the same instance's AutomaticEnv binding) so they
	// match the spec's exact names, without a prefix or nested YAML path.
	if s := v.GetString("PK"); s != "" {
		cfg.Wallet.PrivateKey = s
	}
	if s := v.GetString("CONDITIONID"); s != "" {
		cfg.Market.ConditionID = s
	}
	if s := v.GetString("PROXYWALLET"); s != "" {
		cfg.Wallet.ProxyWallet = s
	}
	if s := v.GetString("ASSETS_IDS"); s != "" {
		cfg.Market.YesTokenID = s
	}
	if s := v.GetString("NOASSETID"); s != "" {
		cfg.Market.NoTokenID = s
	}
	if s := v.GetString("RPC_URL"); s != "" {
		cfg.Wallet.RPCURL = s
	}
	if f := v.GetFloat64("MAX_INVENTORY_IMBALANCE"); f != 0 {
		cfg.Risk.MaxInventoryImbalance = f
	} else if cfg.Risk.MaxInventoryImbalance == 0 {
		cfg.Risk.MaxInventoryImbalance = 25.0
	}
	if f := v.GetFloat64("MAX_POSITION_SIZE"); f != 0 {
		cfg.Risk.MaxPositionSize = f
	} else if cfg.Risk.MaxPositionSize == 0 {
		cfg.Risk.MaxPositionSize = 50.0
	}
	if i := v.GetInt("CHAINID"); i != 0 {
		cfg.Wallet.ChainID = i
	} else if cfg.Wallet.ChainID == 0 {
		cfg.Wallet.ChainID = 137
	}
	if s := v.GetString("LOG_LEVEL"); s != "" {
		cfg.Logging.Level = s
	}
	if s := v.GetString("LOG_FORMAT"); s != "" {
		cfg.Logging.Format = s
	}
	if s := v.GetString("API_KEY"); s != "" {
		cfg.API.ApiKey = s
	}
	if s := v.GetString("API_SECRET"); s != "" {
		cfg.API.Secret = s
	}
	if s := v.GetString("API_PASSPHRASE"); s != "" {
		cfg.API.Passphrase = s
	}
	if dr := v.GetString("DRY_RUN"); dr == "true" || dr == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks all required fields per SPEC_FULL §7's Fatal error class:
// the process refuses to start if signing key, condition id, or wallet are
// missing.
func (c *Config) Validate() error {
	if c.Wallet.PrivateKey == "" {
		return fmt.Errorf("PK is required")
	}
	if c.Market.ConditionID == "" {
		return fmt.Errorf("CONDITIONID is required")
	}
	if c.Market.YesTokenID == "" {
		return fmt.Errorf("ASSETS_IDS is required")
	}
	if c.Wallet.ProxyWallet == "" {
		return fmt.Errorf("PROXYWALLET is required")
	}
	if c.API.CLOBBaseURL == "" {
		return fmt.Errorf("api.clob_base_url is required")
	}
	if c.Risk.MaxInventoryImbalance <= 0 {
		return fmt.Errorf("MAX_INVENTORY_IMBALANCE must be > 0")
	}
	if c.Risk.MaxPositionSize <= 0 {
		return fmt.Errorf("MAX_POSITION_SIZE must be > 0")
	}
	return nil
}
