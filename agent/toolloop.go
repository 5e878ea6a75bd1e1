package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mzkrasner/base-aerodrome-agent-sub000/config"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/entity"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/llm"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/prompts"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/store"
)

// ToolLoop is the model-driven flow: the primary model picks its own
// tools each turn. The adapter's exhaustion machine guarantees the loop
// terminates within the tool-result ceiling even though the model never
// stops calling tools on its own.
type ToolLoop struct {
	adapter *llm.Adapter
	box     *Toolbox
	diary   *store.Diary
	tracker *store.Tracker
	cfg     *config.Config
	log     *zap.SugaredLogger

	systemPrompt string
}

func NewToolLoop(adapter *llm.Adapter, box *Toolbox, diary *store.Diary, tracker *store.Tracker,
	cfg *config.Config, log *zap.SugaredLogger) *ToolLoop {
	return &ToolLoop{
		adapter: adapter,
		box:     box,
		diary:   diary,
		tracker: tracker,
		cfg:     cfg,
		log:     log,
		systemPrompt: prompts.BuildSystemPrompt(
			cfg.Model, cfg.TargetToken, cfg.QuoteToken,
			cfg.ChainID, cfg.TradeInterval.String(), cfg.MaxPriceImpactPct),
	}
}

// RunIteration lets the model gather data and trade through tools until
// it answers in text or the adapter forces termination. Like the
// deterministic path, it always ends in a diary entry.
func (l *ToolLoop) RunIteration(ctx context.Context) {
	messages := []entity.ChatMessage{
		{Role: entity.RoleSystem, Content: l.systemPrompt},
		{Role: entity.RoleUser, Content: "Begin this trading cycle: gather whatever data you need with the available tools, then either execute a trade or answer with your decision JSON."},
	}

	executedBefore := l.box.Executed()
	var verifications []entity.Verification
	var set entity.DecisionSet

	for {
		outcome, verification, err := l.adapter.Generate(ctx, entity.ChatRequest{
			Model:    l.cfg.Model,
			Messages: messages,
			Tools:    l.box.Specs(),
		})
		if err != nil {
			l.log.Errorw("tool-loop inference failed", "err", err)
			set = entity.HoldDecision(l.cfg.TargetToken,
				fmt.Sprintf("Inference provider unavailable: %v; holding.", err))
			break
		}
		if verification != nil {
			verifications = append(verifications, *verification)
		}

		if outcome.Kind == llm.OutcomeExhausted {
			set = *outcome.Synthetic
			break
		}

		resp := outcome.Response
		if len(resp.ToolCalls) == 0 {
			set = ParseDecision(resp.Content, l.cfg.TargetToken)
			break
		}

		// One accumulated assistant turn plus one tool message per
		// result; the adapter re-pairs them for the provider.
		messages = append(messages, entity.ChatMessage{
			Role:      entity.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			l.log.Infow("tool call", "tool", call.Name)
			messages = append(messages, entity.ChatMessage{
				Role:       entity.RoleTool,
				Content:    l.box.Call(ctx, call),
				ToolCallID: call.ID,
			})
		}
	}

	l.log.Infof("decision set:\n%s", set)

	// A trade that already ran through the execution tool must not run
	// again off the final text answer.
	if l.box.Executed() == executedBefore {
		for i := range set.Decisions {
			l.box.trader.Execute(ctx, &set.Decisions[i])
		}
	}

	entry, err := l.diary.Append(ctx, set, entity.Snapshot{}, 0)
	if err != nil {
		l.log.Errorw("failed to write diary entry", "err", err)
	}
	for _, v := range verifications {
		if _, err := l.tracker.Record(ctx, v, entry.ID); err != nil {
			l.log.Errorw("failed to record verification", "err", err)
		}
	}
	l.log.Infow("tool-loop iteration complete",
		"decisions", len(set.Decisions),
		"signed_inferences", len(verifications))
}
