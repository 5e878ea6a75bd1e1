package entity

import "time"

// Balance is an on-chain token holding valued in USD.
type Balance struct {
	Token  string  `json:"token"`
	Amount float64 `json:"amount"`
	USD    float64 `json:"usd"`
}

// Indicators is the technical snapshot for one token. Series are ordered
// oldest to newest.
type Indicators struct {
	Token      string    `json:"token"`
	Prices     []float64 `json:"prices"`
	EMA20      float64   `json:"ema_20"`
	EMA50      float64   `json:"ema_50"`
	RSI7       float64   `json:"rsi_7"`
	RSI14      float64   `json:"rsi_14"`
	MACD       []float64 `json:"macd"`
	MACDSignal []float64 `json:"macd_signal"`
	ATR14      float64   `json:"atr_14"`
}

// PoolMetrics describes the Aerodrome pool backing a token pair.
type PoolMetrics struct {
	Pool     string  `json:"pool"`
	Token0   string  `json:"token0"`
	Token1   string  `json:"token1"`
	Reserve0 float64 `json:"reserve0"`
	Reserve1 float64 `json:"reserve1"`
	Stable   bool    `json:"stable"`
}

// Quote is a router amounts-out sample for a concrete input size.
type Quote struct {
	TokenIn      string  `json:"token_in"`
	TokenOut     string  `json:"token_out"`
	AmountIn     float64 `json:"amount_in"`
	AmountOut    float64 `json:"amount_out"`
	AmountInUSD  float64 `json:"amount_in_usd"`
	AmountOutUSD float64 `json:"amount_out_usd"`
}

// GatherStep records one data-gathering call: either its serialized
// result or the error text, never both.
type GatherStep struct {
	Name string `json:"name"`
	Data string `json:"data,omitempty"`
	Err  string `json:"error,omitempty"`
}

// Snapshot is everything one iteration gathered before reasoning.
type Snapshot struct {
	StartedAt time.Time    `json:"started_at"`
	Steps     []GatherStep `json:"steps"`
}
