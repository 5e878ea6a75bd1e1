package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mzkrasner/base-aerodrome-agent-sub000/agent"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/collector"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/config"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/llm"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/registry"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/store"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/trade"
)

type runner interface {
	RunIteration(ctx context.Context)
}

func main() {
	zl, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer zl.Sync()
	log := zl.Sugar()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("load config", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	auth, err := llm.NewAuthenticator(cfg.BaseURL, cfg.PrivateKey, log)
	if err != nil {
		log.Fatalw("init authenticator", "err", err)
	}
	client := llm.NewClient(cfg.BaseURL, cfg.APIKey, auth, log)
	verifier := llm.NewVerifier(cfg.ChainID, cfg.ExpectedSigner)
	adapter := llm.NewAdapter(client, verifier, cfg.ToolResultCeiling, log)

	market := collector.NewMarketProvider()
	chain, err := collector.NewChainClient(cfg.RPCURL, auth.Address())
	if err != nil {
		log.Fatalw("dial base rpc", "err", err)
	}
	executor, err := trade.NewExecutor(chain.Eth(), cfg.PrivateKey, cfg.ChainID, cfg.DryRun, log)
	if err != nil {
		log.Fatalw("init executor", "err", err)
	}
	trader := agent.NewTrader(market, chain, executor, cfg, log)

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalw("open store", "err", err)
	}
	tracker := store.NewTracker(db)
	diary := store.NewDiary(db)

	if cfg.RegistryURL != "" {
		svc := registry.NewService(
			registry.NewClient(cfg.RegistryURL, cfg.RegistryAPIKey, cfg.CompetitionID),
			tracker, cfg.SubmitInterval, log)
		go svc.Run(ctx)
	} else {
		log.Infow("registry submission disabled, REGISTRY_URL not set")
	}

	var loop runner
	switch cfg.Orchestrator {
	case "toolcall":
		box := agent.NewToolbox(market, chain, trader, cfg)
		loop = agent.NewToolLoop(adapter, box, diary, tracker, cfg, log)
	default:
		loop = agent.NewOrchestrator(adapter, market, chain, trader, diary, tracker, cfg, log)
	}

	log.Infow("agent started",
		"orchestrator", cfg.Orchestrator,
		"target", cfg.TargetToken,
		"quote", cfg.QuoteToken,
		"interval", cfg.TradeInterval,
		"dryRun", cfg.DryRun,
		"walletMode", cfg.WalletMode())

	ticker := time.NewTicker(cfg.TradeInterval)
	defer ticker.Stop()

	loop.RunIteration(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Infow("shutting down")
			return
		case <-ticker.C:
			loop.RunIteration(ctx)
		}
	}
}
