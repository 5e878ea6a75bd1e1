package collector

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2"
	"github.com/cinar/indicator"
	"github.com/samber/lo"

	"github.com/mzkrasner/base-aerodrome-agent-sub000/entity"
)

const (
	usdtSuffix = "USDT"
	// seriesLength is how much of each indicator series reaches the
	// reasoning prompt.
	seriesLength = 30
	// klineInterval and klineLimit: enough candles for EMA50.
	klineInterval = "15m"
	klineLimit    = 100
)

// MarketProvider serves spot prices and technical indicators from
// Binance public market data. Trading itself happens on-chain; Binance
// is only the reference price feed.
type MarketProvider struct {
	client *binance.Client
}

func NewMarketProvider() *MarketProvider {
	// Public market-data endpoints need no credentials.
	return &MarketProvider{client: binance.NewClient("", "")}
}

func (p *MarketProvider) TokenPrice(ctx context.Context, symbol string) (float64, error) {
	pair := symbol + usdtSuffix
	prices, err := p.client.NewListPricesService().Symbol(pair).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch price for %s: %w", pair, err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("no price returned for %s", pair)
	}
	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable price for %s: %w", pair, err)
	}
	return price, nil
}

func (p *MarketProvider) Indicators(ctx context.Context, symbol string) (entity.Indicators, error) {
	pair := symbol + usdtSuffix
	klines, err := p.client.NewKlinesService().
		Symbol(pair).Interval(klineInterval).Limit(klineLimit).Do(ctx)
	if err != nil {
		return lo.Empty[entity.Indicators](), fmt.Errorf("failed to fetch %s klines for %s: %w", klineInterval, pair, err)
	}
	if len(klines) < 50 {
		return lo.Empty[entity.Indicators](), fmt.Errorf("only %d candles for %s, need 50", len(klines), pair)
	}

	high := make([]float64, len(klines))
	low := make([]float64, len(klines))
	closing := make([]float64, len(klines))
	for i, k := range klines {
		h, _ := strconv.ParseFloat(k.High, 64)
		l, _ := strconv.ParseFloat(k.Low, 64)
		c, _ := strconv.ParseFloat(k.Close, 64)
		high[i] = h
		low[i] = l
		closing[i] = c
	}

	ema20 := indicator.Ema(20, closing)
	ema50 := indicator.Ema(50, closing)
	macd, signal := indicator.Macd(closing)
	_, rsi7 := indicator.RsiPeriod(7, closing)
	_, rsi14 := indicator.RsiPeriod(14, closing)
	_, atr14 := indicator.Atr(14, high, low, closing)

	return entity.Indicators{
		Token:      symbol,
		Prices:     lo.Subset(closing, -seriesLength, uint(seriesLength)),
		EMA20:      lo.LastOrEmpty(ema20),
		EMA50:      lo.LastOrEmpty(ema50),
		RSI7:       lo.LastOrEmpty(rsi7),
		RSI14:      lo.LastOrEmpty(rsi14),
		MACD:       lo.Subset(macd, -seriesLength, uint(seriesLength)),
		MACDSignal: lo.Subset(signal, -seriesLength, uint(seriesLength)),
		ATR14:      lo.LastOrEmpty(atr14),
	}, nil
}
