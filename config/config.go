package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full environment-supplied surface of the agent. Exactly
// one of APIKey / PrivateKey authenticates against the inference
// provider; when both are set the API key takes precedence.
type Config struct {
	// Inference provider.
	BaseURL       string
	APIKey        string
	PrivateKey    string // hex, no 0x, signs grants and swaps
	Model         string
	ReasonerModel string
	ChainID       int64

	// Verification registry.
	RegistryURL    string
	RegistryAPIKey string
	CompetitionID  string
	SubmitInterval time.Duration

	// Trading.
	Orchestrator      string // "deterministic" or "toolcall"
	RPCURL            string
	TargetToken       string
	QuoteToken        string
	BaseToken         string
	TradeInterval     time.Duration
	ToolResultCeiling int
	MaxPriceImpactPct float64
	SlippagePct       float64
	MinTradeUSD       float64
	DryRun            bool

	// Persistence and audit.
	DBPath         string
	ExpectedSigner string
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		BaseURL:           getEnv("EIGENAI_BASE_URL", DefaultBaseURL),
		APIKey:            os.Getenv("EIGENAI_API_KEY"),
		PrivateKey:        strings.TrimPrefix(os.Getenv("EVM_PRIVATE_KEY"), "0x"),
		Model:             getEnv("EIGENAI_MODEL", DefaultModel),
		ReasonerModel:     getEnv("REASONING_MODEL", DefaultReasonerModel),
		ChainID:           getInt("CHAIN_ID", DefaultChainID),
		RegistryURL:       os.Getenv("REGISTRY_URL"),
		RegistryAPIKey:    os.Getenv("REGISTRY_API_KEY"),
		CompetitionID:     os.Getenv("COMPETITION_ID"),
		SubmitInterval:    getDuration("SUBMIT_INTERVAL", DefaultSubmitInterval),
		Orchestrator:      getEnv("ORCHESTRATOR", "deterministic"),
		RPCURL:            getEnv("BASE_RPC_URL", "https://mainnet.base.org"),
		TargetToken:       getEnv("TARGET_TOKEN", "AERO"),
		QuoteToken:        getEnv("QUOTE_TOKEN", "USDC"),
		BaseToken:         getEnv("BASE_TOKEN", "WETH"),
		TradeInterval:     getDuration("TRADE_INTERVAL", DefaultTradeInterval),
		ToolResultCeiling: int(getInt("TOOL_RESULT_CEILING", DefaultToolResultCeiling)),
		MaxPriceImpactPct: getFloat("MAX_PRICE_IMPACT_PCT", DefaultMaxPriceImpactPct),
		SlippagePct:       getFloat("SLIPPAGE_PCT", DefaultSlippagePct),
		MinTradeUSD:       getFloat("MIN_TRADE_USD", DefaultMinTradeUSD),
		DryRun:            getBool("DRY_RUN", true),
		DBPath:            getEnv("DB_PATH", "agent.db"),
		ExpectedSigner:    getEnv("EXPECTED_SIGNER", ExpectedSignerBase),
	}

	if cfg.APIKey == "" && cfg.PrivateKey == "" {
		return nil, fmt.Errorf("no inference credential: set EIGENAI_API_KEY or EVM_PRIVATE_KEY")
	}
	if _, ok := TokenAddresses[cfg.TargetToken]; !ok {
		return nil, fmt.Errorf("unknown target token %q", cfg.TargetToken)
	}
	if cfg.Orchestrator != "deterministic" && cfg.Orchestrator != "toolcall" {
		return nil, fmt.Errorf("unknown orchestrator %q (want deterministic or toolcall)", cfg.Orchestrator)
	}
	return cfg, nil
}

// WalletMode reports whether requests authenticate with a signed grant
// rather than an API key.
func (c *Config) WalletMode() bool {
	return c.APIKey == "" && c.PrivateKey != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
