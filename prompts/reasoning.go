package prompts

import (
	"fmt"
	"strings"
	"time"

	"github.com/mzkrasner/base-aerodrome-agent-sub000/entity"
)

// HistoryItem is one prior iteration shown to the reasoning model.
type HistoryItem struct {
	At        time.Time
	Reasoning string
	Decisions string
}

// ReasoningData is everything one iteration feeds the reasoning model.
type ReasoningData struct {
	Snapshot       entity.Snapshot
	History        []HistoryItem
	Iterations     int
	ReturnPct      float64
	MeanStepReturn float64
	StepVolatility float64
}

const reasoningTemplate = `Gathered market and account data for this cycle
(each section is either data or the error that prevented gathering it):

{gathered_block}

## PORTFOLIO PERFORMANCE

- Iterations so far: {iterations}
- Total return: {return_pct}%
- Mean per-cycle return: {mean_step}% (volatility {step_vol}%)

## RECENT DECISIONS (newest first)

{history_block}

Based on the above, produce your trading decision in the required JSON
format. Remember: data sections that carry an error were unavailable
this cycle; reason with what you have and prefer HOLD when blind.`

func buildGatheredBlock(snapshot entity.Snapshot) string {
	var b strings.Builder
	for _, step := range snapshot.Steps {
		b.WriteString(fmt.Sprintf("### %s\n\n", step.Name))
		if step.Err != "" {
			b.WriteString(fmt.Sprintf("ERROR: %s\n\n", step.Err))
			continue
		}
		b.WriteString(fmt.Sprintf("```json\n%s\n```\n\n", step.Data))
	}
	return b.String()
}

func buildHistoryBlock(history []HistoryItem) string {
	if len(history) == 0 {
		return "No prior iterations. The market is a blank slate; establish a baseline read before committing capital."
	}

	var b strings.Builder
	for i, h := range history {
		b.WriteString(fmt.Sprintf("%d. [%s] %s\n   decisions: %s\n",
			i+1, h.At.UTC().Format(time.RFC3339), h.Reasoning, h.Decisions))
	}
	return b.String()
}

// BuildReasoningPrompt renders the user prompt for the single
// reasoning-model invocation of an iteration.
func BuildReasoningPrompt(data ReasoningData) string {
	r := strings.NewReplacer(
		"{gathered_block}", buildGatheredBlock(data.Snapshot),
		"{iterations}", fmt.Sprintf("%d", data.Iterations),
		"{return_pct}", fmt.Sprintf("%.4f", data.ReturnPct),
		"{mean_step}", fmt.Sprintf("%.4f", data.MeanStepReturn),
		"{step_vol}", fmt.Sprintf("%.4f", data.StepVolatility),
		"{history_block}", buildHistoryBlock(data.History),
	)
	return r.Replace(reasoningTemplate)
}
