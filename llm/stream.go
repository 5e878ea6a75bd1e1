package llm

import (
	"context"
	"io"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/packages/ssestream"

	"github.com/mzkrasner/base-aerodrome-agent-sub000/entity"
)

type StreamEventType string

const (
	// EventDelta carries one token delta, forwarded as it arrives.
	EventDelta StreamEventType = "delta"
	// EventFinish carries the assembled response, usage and (when the
	// provider attached one) the verification payload. Emitted exactly
	// once, even when the stream terminates abruptly.
	EventFinish StreamEventType = "finish"
)

type StreamEvent struct {
	Type         StreamEventType
	Delta        string
	Response     *entity.ChatResponse
	Verification *entity.Verification
	Synthetic    *entity.DecisionSet
}

// Stream is a single-consumer pull reader over a streaming completion.
// The provider only attaches the signature and usage totals to the
// terminal SSE event, so both are buffered here until stream end.
type Stream struct {
	ad  *Adapter
	req entity.ChatRequest

	inner     *ssestream.Stream[openai.ChatCompletionChunk]
	acc       openai.ChatCompletionAccumulator
	signature string

	synthetic *entity.DecisionSet
	finished  bool
}

// GenerateStream opens a streaming completion. The exhaustion rule
// applies before the network call exactly as in Generate: past the
// ceiling the returned stream yields a single synthetic finish event.
func (ad *Adapter) GenerateStream(ctx context.Context, req entity.ChatRequest) (*Stream, error) {
	if countToolResults(req.Messages) >= ad.ceiling {
		synthetic := ad.synthesize(req.Messages)
		return &Stream{ad: ad, req: req, synthetic: &synthetic}, nil
	}

	inner, err := ad.client.CompleteStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Stream{ad: ad, req: req, inner: inner}, nil
}

// Recv returns the next event, or io.EOF after the finish event has
// been delivered.
func (s *Stream) Recv() (StreamEvent, error) {
	if s.finished {
		return StreamEvent{}, io.EOF
	}

	if s.synthetic != nil {
		s.finished = true
		return StreamEvent{Type: EventFinish, Synthetic: s.synthetic}, nil
	}

	for s.inner.Next() {
		chunk := s.inner.Current()
		s.acc.AddChunk(chunk)

		if sig := extraString(chunk.JSON.ExtraFields, "signature"); sig != "" {
			s.signature = sig
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			return StreamEvent{Type: EventDelta, Delta: chunk.Choices[0].Delta.Content}, nil
		}
	}

	// Stream is over, terminal event or not: the consumer always gets a
	// finish event instead of hanging.
	if err := s.inner.Err(); err != nil {
		s.ad.log.Warnw("stream ended abruptly", "err", err)
	}
	s.finished = true
	return s.finishEvent(), nil
}

func (s *Stream) finishEvent() StreamEvent {
	resp := fromCompletion(&s.acc.ChatCompletion)
	if resp.Signature == "" {
		resp.Signature = s.signature
	}

	event := StreamEvent{Type: EventFinish, Response: &resp}
	if resp.Signature != "" {
		event.Verification = &entity.Verification{
			RequestPrompt:    RequestPrompt(s.req),
			ResponseModel:    resp.Model,
			ResponseOutput:   ResponseOutput(resp),
			Signature:        resp.Signature,
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			InferenceAt:      s.ad.now(),
		}
		if result := s.ad.verifier.Verify(s.req, resp); !result.IsValid {
			s.ad.log.Warnw("signature verification failed",
				"recovered", result.RecoveredAddress,
				"expected", result.ExpectedSigner,
				"err", result.Error)
		}
	}
	return event
}

func (s *Stream) Close() error {
	if s.inner != nil {
		return s.inner.Close()
	}
	return nil
}
