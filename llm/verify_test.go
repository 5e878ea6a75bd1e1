package llm

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mzkrasner/base-aerodrome-agent-sub000/entity"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestSignRecoverRoundTrip(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	if err != nil {
		t.Fatalf("HexToECDSA: %v", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)

	sig, err := SignMessage(key, "hello world")
	if err != nil {
		t.Fatalf("SignMessage: %v", err)
	}
	if !strings.HasPrefix(sig, "0x") || len(sig) != 2+65*2 {
		t.Fatalf("unexpected signature shape: %q", sig)
	}

	recovered, err := RecoverSigner("hello world", sig)
	if err != nil {
		t.Fatalf("RecoverSigner: %v", err)
	}
	if recovered != addr {
		t.Fatalf("recovered %s, want %s", recovered.Hex(), addr.Hex())
	}

	// Same signature without the 0x prefix and with v in {0,1} must
	// recover identically.
	bare := strings.TrimPrefix(sig, "0x")
	if recovered, err = RecoverSigner("hello world", bare); err != nil || recovered != addr {
		t.Fatalf("bare-hex recovery: addr=%s err=%v", recovered.Hex(), err)
	}
}

func TestRecoverSignerTamperedMessage(t *testing.T) {
	key, _ := crypto.HexToECDSA(testKeyHex)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	sig, err := SignMessage(key, "original")
	if err != nil {
		t.Fatalf("SignMessage: %v", err)
	}
	recovered, err := RecoverSigner("tampered", sig)
	if err == nil && recovered == addr {
		t.Fatalf("tampered message recovered the real signer")
	}
}

func TestRecoverSignerMalformed(t *testing.T) {
	if _, err := RecoverSigner("msg", "0xzz"); err == nil {
		t.Fatalf("expected error for non-hex signature")
	}
	if _, err := RecoverSigner("msg", "0xdeadbeef"); err == nil {
		t.Fatalf("expected error for short signature")
	}
}

func TestReconstructMessage(t *testing.T) {
	req := entity.ChatRequest{
		Model: "request-model",
		Messages: []entity.ChatMessage{
			{Role: entity.RoleSystem, Content: "sys"},
			{Role: entity.RoleUser, Content: "user"},
		},
	}
	resp := entity.ChatResponse{Model: "response-model", Content: "out"}

	got := ReconstructMessage(8453, req, resp)
	want := "8453response-modelsysuserout"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	// Response model wins over the request model; fall back only when
	// the response omits it.
	resp.Model = ""
	if got = ReconstructMessage(8453, req, resp); got != "8453request-modelsysuserout" {
		t.Fatalf("fallback model: got %q", got)
	}
}

func TestReconstructMessageUsesWireTurnOrder(t *testing.T) {
	// Tool results recorded out of call order: the provider saw them
	// re-paired next to their calls, so the reconstruction must too.
	req := entity.ChatRequest{
		Model: "m",
		Messages: []entity.ChatMessage{
			{Role: entity.RoleUser, Content: "u"},
			{Role: entity.RoleAssistant, Content: "x", ToolCalls: []entity.ToolCall{
				{ID: "a", Name: "get_token_price"},
				{ID: "b", Name: "get_indicators"},
			}},
			{Role: entity.RoleTool, ToolCallID: "b", Content: "B"},
			{Role: entity.RoleTool, ToolCallID: "a", Content: "A"},
		},
	}
	resp := entity.ChatResponse{Model: "m", Content: "out"}

	if got, want := ReconstructMessage(8453, req, resp), "8453m"+"uxABout"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	// A signature over the wire-form message must verify.
	key, _ := crypto.HexToECDSA(testKeyHex)
	v := NewVerifier(8453, crypto.PubkeyToAddress(key.PublicKey).Hex())
	resp.Signature, _ = SignMessage(key, ReconstructMessage(8453, req, resp))
	if res := v.Verify(req, resp); !res.IsValid {
		t.Fatalf("expected valid, got error %q", res.Error)
	}
}

func TestResponseOutputToolCalls(t *testing.T) {
	resp := entity.ChatResponse{
		ToolCalls: []entity.ToolCall{{ID: "c1", Name: "get_quote", Arguments: `{"token":"AERO"}`}},
	}
	out := ResponseOutput(resp)
	if !strings.Contains(out, "get_quote") || !strings.Contains(out, "c1") {
		t.Fatalf("serialized tool calls missing fields: %q", out)
	}

	// Textual content, when present, takes precedence.
	resp.Content = "final answer"
	if got := ResponseOutput(resp); got != "final answer" {
		t.Fatalf("got %q, want content", got)
	}
}

func TestVerifierVerify(t *testing.T) {
	key, _ := crypto.HexToECDSA(testKeyHex)
	addr := crypto.PubkeyToAddress(key.PublicKey)
	v := NewVerifier(8453, addr.Hex())

	req := entity.ChatRequest{
		Model:    "gpt-oss-120b",
		Messages: []entity.ChatMessage{{Role: entity.RoleUser, Content: "decide"}},
	}
	resp := entity.ChatResponse{Model: "gpt-oss-120b", Content: "HOLD"}

	sig, err := SignMessage(key, ReconstructMessage(8453, req, resp))
	if err != nil {
		t.Fatalf("SignMessage: %v", err)
	}
	resp.Signature = sig

	res := v.Verify(req, resp)
	if !res.IsValid {
		t.Fatalf("expected valid, got error %q", res.Error)
	}
	if !strings.EqualFold(res.RecoveredAddress, addr.Hex()) {
		t.Fatalf("recovered %s, want %s", res.RecoveredAddress, addr.Hex())
	}
}

func TestVerifierVerifyMismatch(t *testing.T) {
	key, _ := crypto.HexToECDSA(testKeyHex)
	v := NewVerifier(8453, "0x0000000000000000000000000000000000000001")

	req := entity.ChatRequest{Model: "m", Messages: []entity.ChatMessage{{Role: entity.RoleUser, Content: "p"}}}
	resp := entity.ChatResponse{Model: "m", Content: "o"}
	resp.Signature, _ = SignMessage(key, ReconstructMessage(8453, req, resp))

	if res := v.Verify(req, resp); res.IsValid {
		t.Fatalf("expected mismatch to be invalid")
	}
}

func TestVerifierVerifyNoSignature(t *testing.T) {
	v := NewVerifier(8453, "0x0000000000000000000000000000000000000001")
	res := v.Verify(entity.ChatRequest{}, entity.ChatResponse{})
	if res.IsValid || res.Error == "" {
		t.Fatalf("unsigned response must be invalid with an error, got %+v", res)
	}
}
