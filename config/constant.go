package config

import "time"

const (
	// Base mainnet.
	DefaultChainID = 8453

	DefaultBaseURL       = "https://eigenai.eigencloud.xyz"
	DefaultModel         = "gpt-oss-120b"
	DefaultReasonerModel = "deepseek-r1"

	// ExpectedSignerBase is the attestation signer for Base; responses
	// must recover to this address to verify.
	ExpectedSignerBase = "0x7053bDD0Db1e03dA083cBd48d0d8ba3F6EdfC2f0"

	DefaultTradeInterval  = 15 * time.Minute
	DefaultSubmitInterval = 15 * time.Minute

	// DefaultToolResultCeiling bounds tool-result messages in one
	// conversation before the adapter forces termination.
	DefaultToolResultCeiling = 8

	DefaultMaxPriceImpactPct = 5.0
	DefaultSlippagePct       = 0.5
	DefaultMinTradeUSD       = 1.0
)

// Token addresses on Base.
const (
	AddrAERO = "0x940181a94A35A4569E4529A3CDfB74e38FD98631"
	AddrUSDC = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	AddrWETH = "0x4200000000000000000000000000000000000006"

	// Aerodrome v2 router and default pool factory.
	AddrRouter  = "0xcF77a3Ba9A5CA399B7c97c74d54e5b1Beb874E43"
	AddrFactory = "0x420DD381b31aEf6683db6B902084cB0FFECe40Da"
)

// TokenDecimals maps symbols to ERC-20 decimals for amount conversion.
var TokenDecimals = map[string]int32{
	"AERO": 18,
	"WETH": 18,
	"USDC": 6,
}

// TokenAddresses maps the traded symbols to their Base addresses.
var TokenAddresses = map[string]string{
	"AERO": AddrAERO,
	"USDC": AddrUSDC,
	"WETH": AddrWETH,
}
