package agent

import (
	"context"
	"fmt"
	"strings"

	json "github.com/bytedance/sonic"

	"github.com/mzkrasner/base-aerodrome-agent-sub000/config"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/entity"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/llm"
)

// ToolFunc runs one tool call; args is the raw JSON argument string.
type ToolFunc func(ctx context.Context, args string) (string, error)

// Toolbox exposes the data-gathering and execution tools to the
// tool-calling model. Executions count so the loop knows whether a
// trade already happened.
type Toolbox struct {
	specs    []entity.ToolSpec
	funcs    map[string]ToolFunc
	trader   *Trader
	executed int
}

func tokenParam(desc string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"token": map[string]any{"type": "string", "description": desc},
		},
		"required": []string{"token"},
	}
}

func NewToolbox(market MarketData, chain ChainReader, trader *Trader, cfg *config.Config) *Toolbox {
	box := &Toolbox{funcs: make(map[string]ToolFunc), trader: trader}

	box.add(entity.ToolSpec{
		Name:        "get_wallet_balances",
		Description: "Read the agent wallet's token balances.",
		Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
	}, func(ctx context.Context, _ string) (string, error) {
		balances, err := chain.Balances(ctx)
		if err != nil {
			return "", err
		}
		return json.MarshalString(balances)
	})

	box.add(entity.ToolSpec{
		Name:        "get_token_price",
		Description: "Fetch the current USD spot price of a token.",
		Parameters:  tokenParam("Token symbol, e.g. AERO"),
	}, func(ctx context.Context, args string) (string, error) {
		token, err := argToken(args, cfg.TargetToken)
		if err != nil {
			return "", err
		}
		price, err := market.TokenPrice(ctx, token)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(`{"token":%q,"price_usd":%f}`, token, price), nil
	})

	box.add(entity.ToolSpec{
		Name:        "get_indicators",
		Description: "Fetch technical indicators (EMA, RSI, MACD, ATR) for a token.",
		Parameters:  tokenParam("Token symbol, e.g. AERO"),
	}, func(ctx context.Context, args string) (string, error) {
		token, err := argToken(args, cfg.TargetToken)
		if err != nil {
			return "", err
		}
		ind, err := market.Indicators(ctx, token)
		if err != nil {
			return "", err
		}
		return json.MarshalString(ind)
	})

	box.add(entity.ToolSpec{
		Name:        "get_pool_metrics",
		Description: "Read the Aerodrome pool reserves for the traded pair.",
		Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
	}, func(ctx context.Context, _ string) (string, error) {
		metrics, err := chain.PoolMetrics(ctx, cfg.TargetToken, cfg.QuoteToken, false)
		if err != nil {
			return "", err
		}
		return json.MarshalString(metrics)
	})

	box.add(entity.ToolSpec{
		Name:        "get_quote",
		Description: "Sample the router's output amount for a swap.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"token_in":  map[string]any{"type": "string"},
				"token_out": map[string]any{"type": "string"},
				"amount_in": map[string]any{"type": "number"},
			},
			"required": []string{"token_in", "token_out", "amount_in"},
		},
	}, func(ctx context.Context, args string) (string, error) {
		var p struct {
			TokenIn  string  `json:"token_in"`
			TokenOut string  `json:"token_out"`
			AmountIn float64 `json:"amount_in"`
		}
		if err := json.UnmarshalString(args, &p); err != nil {
			return "", fmt.Errorf("bad quote arguments: %w", err)
		}
		quote, err := chain.Quote(ctx, strings.ToUpper(p.TokenIn), strings.ToUpper(p.TokenOut), p.AmountIn)
		if err != nil {
			return "", err
		}
		return json.MarshalString(quote)
	})

	box.add(entity.ToolSpec{
		Name:        llm.ExecuteTradeTool,
		Description: "Execute a BUY or SELL for amount_usd of the token, under price-impact and slippage guards.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"token":      map[string]any{"type": "string"},
				"action":     map[string]any{"type": "string", "enum": []string{"BUY", "SELL"}},
				"amount_usd": map[string]any{"type": "number"},
				"rationale":  map[string]any{"type": "string"},
			},
			"required": []string{"token", "action", "amount_usd"},
		},
	}, func(ctx context.Context, args string) (string, error) {
		var d entity.TradeDecision
		if err := json.UnmarshalString(args, &d); err != nil {
			return "", fmt.Errorf("bad trade arguments: %w", err)
		}
		d.Action = entity.TradeAction(strings.ToUpper(string(d.Action)))
		trader.Execute(ctx, &d)
		box.executed++
		return json.MarshalString(d)
	})

	return box
}

func (b *Toolbox) add(spec entity.ToolSpec, fn ToolFunc) {
	b.specs = append(b.specs, spec)
	b.funcs[spec.Name] = fn
}

// Specs returns the tool schemas advertised to the model.
func (b *Toolbox) Specs() []entity.ToolSpec { return b.specs }

// Executed reports how many trades ran through the execution tool.
func (b *Toolbox) Executed() int { return b.executed }

// Call dispatches one tool call. The result string is always usable as
// a tool message: tool failures come back as an ERROR payload for the
// model rather than a Go error.
func (b *Toolbox) Call(ctx context.Context, call entity.ToolCall) string {
	fn, ok := b.funcs[call.Name]
	if !ok {
		return fmt.Sprintf(`{"error":"unknown tool %s"}`, call.Name)
	}
	result, err := fn(ctx, call.Arguments)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return result
}

func argToken(args, fallback string) (string, error) {
	var p struct {
		Token string `json:"token"`
	}
	if err := json.UnmarshalString(args, &p); err != nil {
		return "", fmt.Errorf("bad tool arguments: %w", err)
	}
	if p.Token == "" {
		return fallback, nil
	}
	return strings.ToUpper(p.Token), nil
}
