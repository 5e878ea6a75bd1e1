package entity

import (
	json "github.com/bytedance/sonic"
)

type TradeAction string

const (
	ActionBuy  TradeAction = "BUY"
	ActionSell TradeAction = "SELL"
	ActionHold TradeAction = "HOLD"
	// ActionExecuted acknowledges a trade already performed through the
	// execution tool earlier in the same conversation.
	ActionExecuted TradeAction = "EXECUTED"
)

// TradeDecision is one per-token instruction from the reasoning model.
type TradeDecision struct {
	Token     string      `json:"token"`
	Action    TradeAction `json:"action"`
	AmountUSD float64     `json:"amount_usd"`
	Rationale string      `json:"rationale"`
	Route     string      `json:"route,omitempty"`
}

// DecisionSet is the full exported decision contract: free-text reasoning
// plus a list of per-token decisions.
type DecisionSet struct {
	Reasoning string          `json:"reasoning"`
	Decisions []TradeDecision `json:"trade_decisions"`
}

// HoldDecision builds a safe single-token HOLD set. Used whenever the
// pipeline cannot produce a genuine decision.
func HoldDecision(token, rationale string) DecisionSet {
	return DecisionSet{
		Reasoning: rationale,
		Decisions: []TradeDecision{{
			Token:     token,
			Action:    ActionHold,
			AmountUSD: 0,
			Rationale: rationale,
		}},
	}
}

func (d DecisionSet) String() string {
	display, _ := json.MarshalIndent(d, "", "  ")
	return string(display)
}
