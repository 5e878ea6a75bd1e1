package llm

import (
	"context"
	"fmt"
	"time"

	json "github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/mzkrasner/base-aerodrome-agent-sub000/entity"
)

// ExecuteTradeTool is the tool name whose completed call means a trade
// already happened in this conversation.
const ExecuteTradeTool = "execute_trade"

type OutcomeKind int

const (
	// OutcomeCompleted carries a genuine provider response.
	OutcomeCompleted OutcomeKind = iota
	// OutcomeExhausted carries a synthetic decision the adapter wrote
	// itself after the tool-result ceiling was hit. No network call was
	// made and no signature exists for it.
	OutcomeExhausted
)

// Outcome is the tagged result of Generate, so callers cannot mistake a
// synthesized decision for a model-authored response.
type Outcome struct {
	Kind      OutcomeKind
	Response  *entity.ChatResponse
	Synthetic *entity.DecisionSet
}

// Adapter implements the text/tool-calling generation contract on top of
// the provider. The upstream tool-calling model never spontaneously
// stops calling tools, so the adapter counts tool results and forces
// termination at a fixed ceiling.
type Adapter struct {
	client   *Client
	verifier *Verifier
	ceiling  int
	log      *zap.SugaredLogger

	now func() time.Time
}

func NewAdapter(client *Client, verifier *Verifier, toolResultCeiling int, log *zap.SugaredLogger) *Adapter {
	return &Adapter{
		client:   client,
		verifier: verifier,
		ceiling:  toolResultCeiling,
		log:      log,
		now:      time.Now,
	}
}

// Generate runs one completion. When the conversation already carries
// the ceiling count of tool results it skips the network entirely and
// synthesizes a terminal answer; otherwise it forwards the call, checks
// the returned signature locally (audit only, mismatches never block),
// and hands the verification payload back to the caller to persist.
func (ad *Adapter) Generate(ctx context.Context, req entity.ChatRequest) (Outcome, *entity.Verification, error) {
	if n := countToolResults(req.Messages); n >= ad.ceiling {
		ad.log.Infow("tool-result ceiling reached, synthesizing final answer",
			"tool_results", n, "ceiling", ad.ceiling)
		synthetic := ad.synthesize(req.Messages)
		return Outcome{Kind: OutcomeExhausted, Synthetic: &synthetic}, nil, nil
	}

	resp, err := ad.client.Complete(ctx, req)
	if err != nil {
		return Outcome{}, nil, err
	}

	var verification *entity.Verification
	if resp.Signature != "" {
		verification = &entity.Verification{
			RequestPrompt:    RequestPrompt(req),
			ResponseModel:    resp.Model,
			ResponseOutput:   ResponseOutput(resp),
			Signature:        resp.Signature,
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			InferenceAt:      ad.now(),
		}

		if result := ad.verifier.Verify(req, resp); !result.IsValid {
			ad.log.Warnw("signature verification failed",
				"recovered", result.RecoveredAddress,
				"expected", result.ExpectedSigner,
				"err", result.Error)
		}
	}

	return Outcome{Kind: OutcomeCompleted, Response: &resp}, verification, nil
}

// synthesize writes the forced terminal answer: an EXECUTED
// acknowledgment when a completed trade-execution call exists in the
// conversation, a conservative HOLD otherwise.
func (ad *Adapter) synthesize(msgs []entity.ChatMessage) entity.DecisionSet {
	if call, ok := findExecutedTrade(msgs); ok {
		token := tokenFromArgs(call.Arguments)
		rationale := fmt.Sprintf(
			"Trade already executed via the %s tool this iteration; ending the tool loop.", ExecuteTradeTool)
		return entity.DecisionSet{
			Reasoning: "Tool-call limit reached after a trade was executed. Acknowledging the completed trade and stopping.",
			Decisions: []entity.TradeDecision{{
				Token:     token,
				Action:    entity.ActionExecuted,
				Rationale: rationale,
			}},
		}
	}

	return entity.HoldDecision("",
		"Tool-call limit reached without a completed trade. Holding as the safe default.")
}

// countToolResults counts prior tool-role messages in the conversation;
// the state machine transitions on this count, not on provider output.
func countToolResults(msgs []entity.ChatMessage) int {
	n := 0
	for _, m := range msgs {
		if m.Role == entity.RoleTool {
			n++
		}
	}
	return n
}

// findExecutedTrade returns the first trade-execution call that has a
// matching tool result, meaning the swap actually ran.
func findExecutedTrade(msgs []entity.ChatMessage) (entity.ToolCall, bool) {
	completed := make(map[string]bool)
	for _, m := range msgs {
		if m.Role == entity.RoleTool && m.ToolCallID != "" {
			completed[m.ToolCallID] = true
		}
	}
	for _, m := range msgs {
		if m.Role != entity.RoleAssistant {
			continue
		}
		for _, call := range m.ToolCalls {
			if call.Name == ExecuteTradeTool && completed[call.ID] {
				return call, true
			}
		}
	}
	return entity.ToolCall{}, false
}

func tokenFromArgs(arguments string) string {
	var args struct {
		Token string `json:"token"`
	}
	if err := json.UnmarshalString(arguments, &args); err != nil {
		return ""
	}
	return args.Token
}
