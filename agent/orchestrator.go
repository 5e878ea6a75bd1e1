package agent

import (
	"context"
	"fmt"
	"time"

	json "github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/mzkrasner/base-aerodrome-agent-sub000/config"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/entity"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/llm"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/prompts"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/store"
)

const historyDepth = 5

// Orchestrator drives one trading iteration deterministically: it
// gathers data with direct function calls instead of model-driven tool
// selection, asks a reasoning-only model once, parses defensively and
// executes under guards. Used when the primary tool-calling model is
// too unreliable to run its own loop.
type Orchestrator struct {
	adapter *llm.Adapter
	market  MarketData
	chain   ChainReader
	trader  *Trader
	diary   *store.Diary
	tracker *store.Tracker
	cfg     *config.Config
	log     *zap.SugaredLogger

	systemPrompt string
}

func NewOrchestrator(adapter *llm.Adapter, market MarketData, chain ChainReader, trader *Trader,
	diary *store.Diary, tracker *store.Tracker, cfg *config.Config, log *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		adapter: adapter,
		market:  market,
		chain:   chain,
		trader:  trader,
		diary:   diary,
		tracker: tracker,
		cfg:     cfg,
		log:     log,
		systemPrompt: prompts.BuildSystemPrompt(
			cfg.ReasonerModel, cfg.TargetToken, cfg.QuoteToken,
			cfg.ChainID, cfg.TradeInterval.String(), cfg.MaxPriceImpactPct),
	}
}

// RunIteration executes one full gather-reason-parse-guard-execute
// cycle. It always writes a diary entry, even on total failure.
func (o *Orchestrator) RunIteration(ctx context.Context) {
	snapshot, accountValue := o.gather(ctx)

	set, verification := o.reason(ctx, snapshot)
	o.log.Infof("decision set:\n%s", set)

	for i := range set.Decisions {
		o.trader.Execute(ctx, &set.Decisions[i])
	}

	entry, err := o.diary.Append(ctx, set, snapshot, accountValue)
	if err != nil {
		o.log.Errorw("failed to write diary entry", "err", err)
	}
	o.log.Infow("iteration complete",
		"decisions", len(set.Decisions),
		"account_value_usd", accountValue,
		"signed", verification != nil)

	if verification != nil {
		if _, err := o.tracker.Record(ctx, *verification, entry.ID); err != nil {
			o.log.Errorw("failed to record verification", "err", err)
		}
	}
}

// gather runs the fixed data-collection sequence. Calls are sequential
// and each failure is captured as step text rather than aborting the
// iteration.
func (o *Orchestrator) gather(ctx context.Context) (entity.Snapshot, float64) {
	snapshot := entity.Snapshot{StartedAt: time.Now()}
	prices := make(map[string]float64)
	var balances []entity.Balance

	step := func(name string, fn func() (any, error)) {
		data, err := fn()
		if err != nil {
			o.log.Warnw("gather step failed", "step", name, "err", err)
			snapshot.Steps = append(snapshot.Steps, entity.GatherStep{Name: name, Err: err.Error()})
			return
		}
		serialized, err := json.MarshalString(data)
		if err != nil {
			snapshot.Steps = append(snapshot.Steps, entity.GatherStep{Name: name, Err: err.Error()})
			return
		}
		snapshot.Steps = append(snapshot.Steps, entity.GatherStep{Name: name, Data: serialized})
	}

	step("wallet_balances", func() (any, error) {
		var err error
		balances, err = o.chain.Balances(ctx)
		return balances, err
	})

	target, quote, base := o.cfg.TargetToken, o.cfg.QuoteToken, o.cfg.BaseToken

	step(target+"_price", func() (any, error) {
		price, err := o.market.TokenPrice(ctx, target)
		if err == nil {
			prices[target] = price
		}
		return price, err
	})

	// The quote stable asset is pinned at $1; only fetch the base token
	// when it is a distinct asset.
	prices[quote] = 1.0
	if base != quote {
		step(base+"_price", func() (any, error) {
			price, err := o.market.TokenPrice(ctx, base)
			if err == nil {
				prices[base] = price
			}
			return price, err
		})
	}

	step("indicators", func() (any, error) {
		return o.market.Indicators(ctx, target)
	})

	step("pool_metrics", func() (any, error) {
		return o.chain.PoolMetrics(ctx, target, quote, false)
	})

	sampleUSD := 100.0
	step("sample_quote_buy", func() (any, error) {
		return o.quoteUSD(ctx, quote, target, sampleUSD, prices)
	})
	step("sample_quote_sell", func() (any, error) {
		return o.quoteUSD(ctx, target, quote, sampleUSD, prices)
	})

	var accountValue float64
	for i := range balances {
		balances[i].USD = balances[i].Amount * prices[balances[i].Token]
		accountValue += balances[i].USD
	}
	return snapshot, accountValue
}

func (o *Orchestrator) quoteUSD(ctx context.Context, tokenIn, tokenOut string, usd float64, prices map[string]float64) (entity.Quote, error) {
	priceIn, ok := prices[tokenIn]
	if !ok || priceIn <= 0 {
		return entity.Quote{}, fmt.Errorf("no spot price for %s", tokenIn)
	}
	q, err := o.chain.Quote(ctx, tokenIn, tokenOut, usd/priceIn)
	if err != nil {
		return entity.Quote{}, err
	}
	q.AmountInUSD = q.AmountIn * priceIn
	if priceOut, ok := prices[tokenOut]; ok {
		q.AmountOutUSD = q.AmountOut * priceOut
	}
	return q, nil
}

// reason serializes the snapshot into one prompt and invokes the
// reasoning model once. Provider failure degrades to HOLD.
func (o *Orchestrator) reason(ctx context.Context, snapshot entity.Snapshot) (entity.DecisionSet, *entity.Verification) {
	data := prompts.ReasoningData{Snapshot: snapshot}

	if perf, err := o.diary.Performance(ctx); err == nil {
		data.Iterations = perf.Iterations
		data.ReturnPct = perf.ReturnPct
		data.MeanStepReturn = perf.MeanStepReturn
		data.StepVolatility = perf.StepVolatility
	} else {
		o.log.Warnw("failed to load performance summary", "err", err)
	}
	if history, err := o.diary.Recent(ctx, historyDepth); err == nil {
		for _, h := range history {
			data.History = append(data.History, prompts.HistoryItem{
				At:        h.CreatedAt,
				Reasoning: h.Reasoning,
				Decisions: h.DecisionsJSON,
			})
		}
	} else {
		o.log.Warnw("failed to load decision history", "err", err)
	}

	req := entity.ChatRequest{
		Model: o.cfg.ReasonerModel,
		Messages: []entity.ChatMessage{
			{Role: entity.RoleSystem, Content: o.systemPrompt},
			{Role: entity.RoleUser, Content: prompts.BuildReasoningPrompt(data)},
		},
	}

	outcome, verification, err := o.adapter.Generate(ctx, req)
	if err != nil {
		o.log.Errorw("reasoning call failed", "err", err)
		return entity.HoldDecision(o.cfg.TargetToken,
			fmt.Sprintf("Inference provider unavailable: %v; holding.", err)), nil
	}
	if outcome.Kind == llm.OutcomeExhausted {
		return *outcome.Synthetic, nil
	}

	return ParseDecision(outcome.Response.Content, o.cfg.TargetToken), verification
}
