package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeEmptyFile(path string) error {
	return os.WriteFile(path, []byte("dry_run: false\n"), 0o644)
}

func TestLoad_ResolvesFlatEnvKeys(t *testing.T) {
	env := map[string]string{
		"PK":                      "abc123",
		"CONDITIONID":             "0xcond",
		"PROXYWALLET":             "0xsafe",
		"ASSETS_IDS":              "0xyes",
		"NOASSETID":               "0xno",
		"MAX_INVENTORY_IMBALANCE": "30",
		"MAX_POSITION_SIZE":       "75",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	// An empty but present YAML file avoids depending on viper's
	// missing-file-detection edge case when SetConfigFile names an explicit
	// path rather than a discovered one.
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := writeEmptyFile(path); err != nil {
		t.Fatalf("create empty config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Wallet.PrivateKey != "abc123" {
		t.Errorf("PrivateKey = %q, want abc123", cfg.Wallet.PrivateKey)
	}
	if cfg.Market.ConditionID != "0xcond" {
		t.Errorf("ConditionID = %q, want 0xcond", cfg.Market.ConditionID)
	}
	if cfg.Wallet.ProxyWallet != "0xsafe" {
		t.Errorf("ProxyWallet = %q, want 0xsafe", cfg.Wallet.ProxyWallet)
	}
	if cfg.Market.YesTokenID != "0xyes" {
		t.Errorf("YesTokenID = %q, want 0xyes", cfg.Market.YesTokenID)
	}
	if cfg.Market.NoTokenID != "0xno" {
		t.Errorf("NoTokenID = %q, want 0xno", cfg.Market.NoTokenID)
	}
	if cfg.Risk.MaxInventoryImbalance != 30 {
		t.Errorf("MaxInventoryImbalance = %v, want 30", cfg.Risk.MaxInventoryImbalance)
	}
	if cfg.Risk.MaxPositionSize != 75 {
		t.Errorf("MaxPositionSize = %v, want 75", cfg.Risk.MaxPositionSize)
	}
	if cfg.Wallet.ChainID != 137 {
		t.Errorf("ChainID = %v, want default 137", cfg.Wallet.ChainID)
	}
	if cfg.API.CLOBBaseURL != "https://clob.polymarket.com" {
		t.Errorf("CLOBBaseURL = %q, want the default", cfg.API.CLOBBaseURL)
	}
}

func TestValidate_RequiresLoadBearingFields(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "fully populated config is valid",
			cfg: Config{
				Wallet: WalletConfig{PrivateKey: "pk", ProxyWallet: "0xsafe"},
				Market: MarketConfig{ConditionID: "0xcond", YesTokenID: "0xyes"},
				API:    APIConfig{CLOBBaseURL: "https://clob.polymarket.com"},
				Risk:   RiskConfig{MaxInventoryImbalance: 25, MaxPositionSize: 50},
			},
			wantErr: false,
		},
		{
			name:    "missing private key fails",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name: "missing condition id fails",
			cfg: Config{
				Wallet: WalletConfig{PrivateKey: "pk", ProxyWallet: "0xsafe"},
				Market: MarketConfig{YesTokenID: "0xyes"},
				API:    APIConfig{CLOBBaseURL: "https://clob.polymarket.com"},
				Risk:   RiskConfig{MaxInventoryImbalance: 25, MaxPositionSize: 50},
			},
			wantErr: true,
		},
		{
			name: "zero risk limits fail",
			cfg: Config{
				Wallet: WalletConfig{PrivateKey: "pk", ProxyWallet: "0xsafe"},
				Market: MarketConfig{ConditionID: "0xcond", YesTokenID: "0xyes"},
				API:    APIConfig{CLOBBaseURL: "https://clob.polymarket.com"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
