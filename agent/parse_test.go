package agent

import (
	"strings"
	"testing"

	"github.com/mzkrasner/base-aerodrome-agent-sub000/entity"
)

func TestParseDecisionFencedJSON(t *testing.T) {
	raw := "Here is my decision:\n```json\n" +
		`{"reasoning":"momentum fading","trade_decisions":[{"token":"AERO","action":"sell","amount_usd":50,"rationale":"take profit"}]}` +
		"\n```\nDone."

	set := ParseDecision(raw, "AERO")
	if set.Reasoning != "momentum fading" {
		t.Fatalf("reasoning = %q", set.Reasoning)
	}
	if len(set.Decisions) != 1 {
		t.Fatalf("decisions = %+v", set.Decisions)
	}
	d := set.Decisions[0]
	if d.Action != entity.ActionSell || d.Token != "AERO" || d.AmountUSD != 50 {
		t.Fatalf("decision = %+v", d)
	}
}

func TestParseDecisionStripsThinkBlock(t *testing.T) {
	raw := "<think>maybe {\"fake\":1} I should buy</think>" +
		`{"reasoning":"r","trade_decisions":[{"token":"AERO","action":"BUY","amount_usd":10,"rationale":"x"}]}`

	set := ParseDecision(raw, "AERO")
	if len(set.Decisions) != 1 || set.Decisions[0].Action != entity.ActionBuy {
		t.Fatalf("decisions = %+v", set.Decisions)
	}
}

func TestParseDecisionUnterminatedThinkBlock(t *testing.T) {
	raw := `{"reasoning":"r","trade_decisions":[{"token":"AERO","action":"HOLD","rationale":"x"}]}` +
		"<think>and then the stream cut off"

	set := ParseDecision(raw, "AERO")
	if len(set.Decisions) != 1 || set.Decisions[0].Action != entity.ActionHold {
		t.Fatalf("decisions = %+v", set.Decisions)
	}
}

func TestParseDecisionProseFallsBackToHold(t *testing.T) {
	set := ParseDecision("I am not sure what to do here.", "AERO")
	if len(set.Decisions) != 1 {
		t.Fatalf("decisions = %+v", set.Decisions)
	}
	d := set.Decisions[0]
	if d.Action != entity.ActionHold || d.Token != "AERO" {
		t.Fatalf("expected fallback HOLD for AERO, got %+v", d)
	}
	if !strings.Contains(d.Rationale, "parse failure") {
		t.Fatalf("rationale should cite the parse failure: %q", d.Rationale)
	}
}

func TestParseDecisionEmptyDecisionsFallsBackToHold(t *testing.T) {
	set := ParseDecision(`{"reasoning":"flat market","trade_decisions":[]}`, "AERO")
	if len(set.Decisions) != 1 || set.Decisions[0].Action != entity.ActionHold {
		t.Fatalf("decisions = %+v", set.Decisions)
	}
}

func TestParseDecisionNormalizesCaseAndToken(t *testing.T) {
	set := ParseDecision(
		`{"reasoning":"r","trade_decisions":[{"action":"buy","amount_usd":25,"rationale":"x"}]}`, "AERO")
	d := set.Decisions[0]
	if d.Action != entity.ActionBuy {
		t.Fatalf("action not uppercased: %+v", d)
	}
	if d.Token != "AERO" {
		t.Fatalf("missing token not backfilled: %+v", d)
	}
}
