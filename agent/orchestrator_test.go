package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mzkrasner/base-aerodrome-agent-sub000/config"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/entity"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/llm"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/store"
)

// deadMarket and deadChain fail every call, simulating a total outage
// of both data sources.
type deadMarket struct{}

func (deadMarket) TokenPrice(context.Context, string) (float64, error) {
	return 0, errors.New("feed down")
}

func (deadMarket) Indicators(context.Context, string) (entity.Indicators, error) {
	return entity.Indicators{}, errors.New("feed down")
}

type deadChain struct{}

func (deadChain) Balances(context.Context) ([]entity.Balance, error) {
	return nil, errors.New("rpc down")
}

func (deadChain) PoolMetrics(context.Context, string, string, bool) (entity.PoolMetrics, error) {
	return entity.PoolMetrics{}, errors.New("rpc down")
}

func (deadChain) Quote(context.Context, string, string, float64) (entity.Quote, error) {
	return entity.Quote{}, errors.New("rpc down")
}

func testIterationConfig() *config.Config {
	return &config.Config{
		Model:             "m",
		ReasonerModel:     "r",
		ChainID:           8453,
		TargetToken:       "AERO",
		QuoteToken:        "USDC",
		BaseToken:         "WETH",
		TradeInterval:     15 * time.Minute,
		ToolResultCeiling: 8,
		MaxPriceImpactPct: 5,
		SlippagePct:       0.5,
		MinTradeUSD:       1,
	}
}

func openTestStore(t *testing.T) (*store.Diary, *store.Tracker) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "agent.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store.NewDiary(db), store.NewTracker(db)
}

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *llm.Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	log := zap.NewNop().Sugar()
	client := llm.NewClient(srv.URL, "test-key", nil, log)
	return llm.NewAdapter(client, llm.NewVerifier(8453, "0x0000000000000000000000000000000000000001"), 8, log)
}

func TestRunIterationTotalFailureStillWritesDiary(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"down"}`, http.StatusInternalServerError)
	})
	diary, tracker := openTestStore(t)
	cfg := testIterationConfig()
	log := zap.NewNop().Sugar()

	market, chain := deadMarket{}, deadChain{}
	trader := NewTrader(market, chain, &fakeSwapper{}, cfg, log)
	orch := NewOrchestrator(adapter, market, chain, trader, diary, tracker, cfg, log)

	ctx := context.Background()
	orch.RunIteration(ctx)

	entries, err := diary.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d diary entries, want 1", len(entries))
	}
	entry := entries[0]
	if !strings.Contains(entry.DecisionsJSON, `"HOLD"`) {
		t.Fatalf("expected a HOLD decision, got %s", entry.DecisionsJSON)
	}
	if !strings.Contains(entry.Reasoning, "Inference provider unavailable") {
		t.Fatalf("reasoning does not cite the provider failure: %q", entry.Reasoning)
	}
	// Gather failures are captured as step errors, not dropped.
	if !strings.Contains(entry.SnapshotJSON, "rpc down") || !strings.Contains(entry.SnapshotJSON, "feed down") {
		t.Fatalf("snapshot missing failure steps: %s", entry.SnapshotJSON)
	}

	rec, err := tracker.MostRecentUnsubmitted(ctx)
	if err != nil {
		t.Fatalf("MostRecentUnsubmitted: %v", err)
	}
	if rec != nil {
		t.Fatalf("failed inference must not produce a verification record: %+v", rec)
	}
}

func TestToolLoopIterationGathersThenDecides(t *testing.T) {
	var hits atomic.Int64
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if hits.Add(1) == 1 {
			w.Write([]byte(`{
				"id": "cmpl-1",
				"model": "m",
				"choices": [{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","tool_calls":[
					{"id":"t1","type":"function","function":{"name":"get_wallet_balances","arguments":"{}"}}
				]}}],
				"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
			}`))
			return
		}
		w.Write([]byte(`{
			"id": "cmpl-2",
			"model": "m",
			"choices": [{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"reasoning\":\"flat\",\"trade_decisions\":[{\"token\":\"AERO\",\"action\":\"HOLD\",\"amount_usd\":0,\"rationale\":\"no edge\"}]}"}}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 10, "total_tokens": 30}
		}`))
	})
	diary, tracker := openTestStore(t)
	cfg := testIterationConfig()
	log := zap.NewNop().Sugar()

	market := &fakeMarket{prices: map[string]float64{"USDC": 1, "AERO": 2}}
	chain := &fakeChain{balances: []entity.Balance{{Token: "USDC", Amount: 500}}}
	trader := NewTrader(market, chain, &fakeSwapper{}, cfg, log)
	box := NewToolbox(market, chain, trader, cfg)

	loop := NewToolLoop(adapter, box, diary, tracker, cfg, log)
	ctx := context.Background()
	loop.RunIteration(ctx)

	if hits.Load() != 2 {
		t.Fatalf("provider hit %d times, want 2 (tool turn then answer)", hits.Load())
	}

	entries, err := diary.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d diary entries, want 1", len(entries))
	}
	if entries[0].Reasoning != "flat" {
		t.Fatalf("reasoning = %q", entries[0].Reasoning)
	}
	if !strings.Contains(entries[0].DecisionsJSON, "no edge") {
		t.Fatalf("decision not persisted: %s", entries[0].DecisionsJSON)
	}
	if box.Executed() != 0 {
		t.Fatalf("HOLD iteration executed %d trades", box.Executed())
	}
}
