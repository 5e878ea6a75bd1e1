package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mzkrasner/base-aerodrome-agent-sub000/config"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/entity"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/trade"
)

// MarketData serves reference prices and technical indicators.
type MarketData interface {
	TokenPrice(ctx context.Context, symbol string) (float64, error)
	Indicators(ctx context.Context, symbol string) (entity.Indicators, error)
}

// ChainReader reads wallet and pool state.
type ChainReader interface {
	Balances(ctx context.Context) ([]entity.Balance, error)
	PoolMetrics(ctx context.Context, tokenA, tokenB string, stable bool) (entity.PoolMetrics, error)
	Quote(ctx context.Context, tokenIn, tokenOut string, amountIn float64) (entity.Quote, error)
}

// Swapper executes (or dry-runs) one swap.
type Swapper interface {
	Swap(ctx context.Context, p trade.SwapParams) (trade.SwapResult, error)
}

// Trader applies the execution guards to one BUY/SELL decision and then
// invokes the swap primitive. The outcome is annotated into the
// decision's rationale so intent and result live in one audit string.
type Trader struct {
	market  MarketData
	chain   ChainReader
	swapper Swapper
	cfg     *config.Config
	log     *zap.SugaredLogger
}

func NewTrader(market MarketData, chain ChainReader, swapper Swapper, cfg *config.Config, log *zap.SugaredLogger) *Trader {
	return &Trader{market: market, chain: chain, swapper: swapper, cfg: cfg, log: log}
}

// Execute runs one decision through the guard pipeline. HOLDs and
// sub-minimum amounts are ignored untouched; everything else gets an
// outcome tag appended to its rationale.
func (t *Trader) Execute(ctx context.Context, d *entity.TradeDecision) {
	if d.Action != entity.ActionBuy && d.Action != entity.ActionSell {
		return
	}
	if d.AmountUSD < t.cfg.MinTradeUSD {
		t.log.Infow("decision below minimum trade size, skipping",
			"token", d.Token, "action", d.Action, "amount_usd", d.AmountUSD)
		return
	}

	tokenIn, tokenOut := t.cfg.QuoteToken, d.Token
	if d.Action == entity.ActionSell {
		tokenIn, tokenOut = d.Token, t.cfg.QuoteToken
	}

	priceIn, err := t.market.TokenPrice(ctx, tokenIn)
	if err != nil {
		annotate(d, "[EXECUTION FAILED: no spot price for %s: %v]", tokenIn, err)
		return
	}
	if priceIn <= 0 {
		annotate(d, "[EXECUTION FAILED: zero spot price for %s]", tokenIn)
		return
	}
	amountIn := d.AmountUSD / priceIn

	if !t.hasBalance(ctx, tokenIn, amountIn) {
		annotate(d, "[REJECTED: insufficient %s balance for $%.2f]", tokenIn, d.AmountUSD)
		return
	}

	// Never execute against a stale or hypothetical quote: re-quote at
	// the actual decided size.
	quote, err := t.chain.Quote(ctx, tokenIn, tokenOut, amountIn)
	if err != nil {
		annotate(d, "[EXECUTION FAILED: quote unavailable: %v]", err)
		return
	}

	// Impact is measured in USD using an independently fetched spot
	// price for the output token, not the router's own pricing.
	priceOut, err := t.market.TokenPrice(ctx, tokenOut)
	if err != nil {
		annotate(d, "[EXECUTION FAILED: no spot price for %s: %v]", tokenOut, err)
		return
	}
	amountInUSD := amountIn * priceIn
	amountOutUSD := quote.AmountOut * priceOut

	impact, ok := trade.CheckImpact(amountInUSD, amountOutUSD, t.cfg.MaxPriceImpactPct)
	if !ok {
		annotate(d, "[REJECTED: price impact %.2f%% exceeds %.1f%% ceiling]",
			impact, t.cfg.MaxPriceImpactPct)
		return
	}

	minOut := trade.MinOut(quote.AmountOut, t.cfg.SlippagePct)
	result, err := t.swapper.Swap(ctx, trade.SwapParams{
		TokenIn:  tokenIn,
		TokenOut: tokenOut,
		AmountIn: amountIn,
		MinOut:   minOut,
	})
	if err != nil {
		annotate(d, "[EXECUTION FAILED: %v]", err)
		return
	}
	if result.DryRun {
		annotate(d, "[DRY RUN: would swap %.6f %s for >= %.6f %s, impact %.2f%%]",
			amountIn, tokenIn, minOut, tokenOut, impact)
		return
	}
	annotate(d, "[EXECUTED: tx %s]", result.TxHash)
}

func (t *Trader) hasBalance(ctx context.Context, token string, amount float64) bool {
	balances, err := t.chain.Balances(ctx)
	if err != nil {
		t.log.Warnw("balance check failed, letting the swap surface it", "err", err)
		return true
	}
	for _, b := range balances {
		if b.Token == token {
			return b.Amount >= amount
		}
	}
	return false
}

func annotate(d *entity.TradeDecision, format string, args ...any) {
	d.Rationale = fmt.Sprintf("%s %s", d.Rationale, fmt.Sprintf(format, args...))
}
