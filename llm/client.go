package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	json "github.com/bytedance/sonic"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/respjson"
	"github.com/openai/openai-go/v2/packages/ssestream"
	"github.com/openai/openai-go/v2/shared"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/mzkrasner/base-aerodrome-agent-sub000/entity"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/utils"
)

// completionRetries is how many extra attempts a transient provider
// failure gets before the error surfaces.
const completionRetries = 2

// Client speaks the provider's chat-completions dialect. API-key mode
// posts to {base}/v1/chat/completions with header auth; wallet-signing
// mode posts to {base}/api/chat/completions with the signed grant
// embedded in the request body.
type Client struct {
	oai    openai.Client
	auth   *Authenticator
	wallet bool
	log    *zap.SugaredLogger
}

func NewClient(baseURL, apiKey string, auth *Authenticator, log *zap.SugaredLogger) *Client {
	base := strings.TrimRight(baseURL, "/")
	wallet := apiKey == ""
	if wallet {
		base += "/api/"
	} else {
		base += "/v1/"
	}

	return &Client{
		// The SDK's own retry layer is disabled; utils.RetryWithBackoff
		// owns retries so the auth fallback sees the real error.
		oai: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(base),
			option.WithMaxRetries(0),
		),
		auth:   auth,
		wallet: wallet,
		log:    log,
	}
}

// Complete issues one non-streaming completion. In wallet mode an
// authentication rejection clears the cached grant and the call is
// retried once with a freshly signed one.
func (c *Client) Complete(ctx context.Context, req entity.ChatRequest) (entity.ChatResponse, error) {
	params := c.buildParams(req)

	opts, err := c.requestOptions(ctx, false)
	if err != nil {
		return entity.ChatResponse{}, err
	}

	completion, err := c.create(ctx, params, opts)
	if err != nil && c.wallet && isAuthError(err) {
		c.log.Warnw("provider rejected grant, refreshing", "err", err)
		c.auth.Clear()
		if opts, err = c.requestOptions(ctx, true); err != nil {
			return entity.ChatResponse{}, err
		}
		completion, err = c.create(ctx, params, opts)
	}
	if err != nil {
		return entity.ChatResponse{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	return fromCompletion(completion), nil
}

// create issues one completion with backoff on transient failures.
func (c *Client) create(ctx context.Context, params openai.ChatCompletionNewParams, opts []option.RequestOption) (*openai.ChatCompletion, error) {
	return utils.RetryWithBackoff(func() (*openai.ChatCompletion, error) {
		return c.oai.Chat.Completions.New(ctx, params, opts...)
	}, completionRetries)
}

// CompleteStream opens a streaming completion with usage reporting
// enabled; the provider appends its signature to the terminal event.
func (c *Client) CompleteStream(ctx context.Context, req entity.ChatRequest) (*ssestream.Stream[openai.ChatCompletionChunk], error) {
	params := c.buildParams(req)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	opts, err := c.requestOptions(ctx, false)
	if err != nil {
		return nil, err
	}
	return c.oai.Chat.Completions.NewStreaming(ctx, params, opts...), nil
}

func (c *Client) buildParams(req entity.ChatRequest) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: toProviderMessages(ExpandTurns(req.Messages)),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		params.Tools = toProviderTools(req.Tools)
	}
	return params
}

func (c *Client) requestOptions(ctx context.Context, forceRefresh bool) ([]option.RequestOption, error) {
	if !c.wallet {
		return nil, nil
	}
	grant, err := c.auth.AuthFields(ctx, forceRefresh)
	if err != nil {
		return nil, err
	}
	return []option.RequestOption{
		option.WithJSONSet("grantMessage", grant.Message),
		option.WithJSONSet("grantSignature", grant.Signature),
		option.WithJSONSet("walletAddress", grant.SignerAddress),
	}, nil
}

// ExpandTurns rewrites the framework's accumulated form (one assistant
// message carrying every tool call of a turn, one tool message per
// result) into the strict pairing the provider requires: one assistant
// message per call, immediately followed by that call's result. A call
// without a matching result keeps its assistant turn and simply omits
// the result message.
func ExpandTurns(msgs []entity.ChatMessage) []entity.ChatMessage {
	results := make(map[string]entity.ChatMessage)
	for _, m := range msgs {
		if m.Role == entity.RoleTool && m.ToolCallID != "" {
			if _, seen := results[m.ToolCallID]; !seen {
				results[m.ToolCallID] = m
			}
		}
	}

	out := make([]entity.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		switch {
		case m.Role == entity.RoleTool:
			// Re-emitted next to its matched call below.
		case m.Role == entity.RoleAssistant && len(m.ToolCalls) > 0:
			for i, call := range m.ToolCalls {
				turn := entity.ChatMessage{
					Role:      entity.RoleAssistant,
					ToolCalls: []entity.ToolCall{call},
				}
				if i == 0 {
					turn.Content = m.Content
				}
				out = append(out, turn)
				if res, ok := results[call.ID]; ok {
					out = append(out, res)
				}
			}
		default:
			out = append(out, m)
		}
	}
	return out
}

func toProviderMessages(msgs []entity.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case entity.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case entity.RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case entity.RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		case entity.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				assistant.Content.OfString = openai.String(m.Content)
			}
			for _, call := range m.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: call.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      call.Name,
							Arguments: call.Arguments,
						},
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		}
	}
	return out
}

func toProviderTools(specs []entity.ToolSpec) []openai.ChatCompletionToolUnionParam {
	return lo.Map(specs, func(s entity.ToolSpec, _ int) openai.ChatCompletionToolUnionParam {
		return openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        s.Name,
			Description: openai.String(s.Description),
			Parameters:  shared.FunctionParameters(s.Parameters),
		})
	})
}

func fromCompletion(c *openai.ChatCompletion) entity.ChatResponse {
	resp := entity.ChatResponse{
		Model: c.Model,
		Usage: entity.TokenUsage{
			PromptTokens:     c.Usage.PromptTokens,
			CompletionTokens: c.Usage.CompletionTokens,
			TotalTokens:      c.Usage.TotalTokens,
		},
		Signature: extraString(c.JSON.ExtraFields, "signature"),
	}
	if len(c.Choices) > 0 {
		choice := c.Choices[0]
		resp.Content = choice.Message.Content
		resp.FinishReason = string(choice.FinishReason)
		for _, call := range choice.Message.ToolCalls {
			resp.ToolCalls = append(resp.ToolCalls, entity.ToolCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			})
		}
	}
	return resp
}

// extraString pulls a non-standard string field (e.g. the attestation
// signature) out of a response's unrecognized JSON.
func extraString(fields map[string]respjson.Field, key string) string {
	f, ok := fields[key]
	if !ok || !f.Valid() {
		return ""
	}
	var s string
	if err := json.Unmarshal([]byte(f.Raw()), &s); err != nil {
		return strings.Trim(f.Raw(), `"`)
	}
	return s
}

func isAuthError(err error) bool {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode == http.StatusUnauthorized || apierr.StatusCode == http.StatusForbidden
	}
	return false
}
