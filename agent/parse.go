package agent

import (
	"fmt"
	"strings"

	"github.com/mzkrasner/base-aerodrome-agent-sub000/entity"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/utils"
)

// ParseDecision turns raw reasoning-model output into a decision set.
// The model may wrap its JSON in markdown fences, prepend <think>
// blocks, or produce prose with no JSON at all; every failure path
// degrades to a HOLD decision citing the problem instead of erroring.
func ParseDecision(raw, fallbackToken string) entity.DecisionSet {
	cleaned := stripThinkBlocks(raw)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return entity.HoldDecision(fallbackToken,
			"Decision parse failure: model output contains no JSON object; holding.")
	}

	set, err := utils.ParseLLMJSON[entity.DecisionSet](cleaned[start : end+1])
	if err != nil {
		return entity.HoldDecision(fallbackToken,
			fmt.Sprintf("Decision parse failure: %v; holding.", err))
	}
	if len(set.Decisions) == 0 {
		return entity.HoldDecision(fallbackToken,
			"Decision parse failure: trade_decisions array is empty; holding.")
	}

	for i := range set.Decisions {
		set.Decisions[i].Action = entity.TradeAction(strings.ToUpper(string(set.Decisions[i].Action)))
		if set.Decisions[i].Token == "" {
			set.Decisions[i].Token = fallbackToken
		}
	}
	return set
}

// stripThinkBlocks removes <think>...</think> reasoning traces. An
// unterminated block swallows the rest of the string, which is correct:
// nothing after it can be the decision.
func stripThinkBlocks(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start < 0 {
			return s
		}
		end := strings.Index(s[start:], "</think>")
		if end < 0 {
			return s[:start]
		}
		s = s[:start] + s[start+end+len("</think>"):]
	}
}
