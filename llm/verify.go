package llm

import (
	"strconv"
	"strings"

	json "github.com/bytedance/sonic"
	"github.com/ethereum/go-ethereum/common"

	"github.com/mzkrasner/base-aerodrome-agent-sub000/entity"
)

// VerifyResult is the outcome of local signature verification. It never
// carries a Go error; every failure path sets IsValid=false with a
// human-readable Error so verification stays an audit concern.
type VerifyResult struct {
	IsValid              bool   `json:"is_valid"`
	RecoveredAddress     string `json:"recovered_address,omitempty"`
	ExpectedSigner       string `json:"expected_signer"`
	ReconstructedMessage string `json:"reconstructed_message"`
	Error                string `json:"error,omitempty"`
}

// Verifier checks provider signatures against the expected attestation
// signer for the network.
type Verifier struct {
	chainID  int64
	expected common.Address
}

func NewVerifier(chainID int64, expectedSigner string) *Verifier {
	return &Verifier{
		chainID:  chainID,
		expected: common.HexToAddress(expectedSigner),
	}
}

// ResponseOutput is the textual output the provider signed over: the
// message content, or the serialized tool-call list when the response
// contains tool calls instead of text.
func ResponseOutput(resp entity.ChatResponse) string {
	if resp.Content != "" || len(resp.ToolCalls) == 0 {
		return resp.Content
	}
	serialized, err := json.MarshalString(resp.ToolCalls)
	if err != nil {
		return ""
	}
	return serialized
}

// RequestPrompt is the request's prompt text in the provider's wire
// form: assistant turns expanded to one call each, results paired in
// call order. The provider signs over what it received, so the
// reconstruction must concatenate the expanded list, not the
// accumulated one.
func RequestPrompt(req entity.ChatRequest) string {
	expanded := entity.ChatRequest{Messages: ExpandTurns(req.Messages)}
	return expanded.PromptText()
}

// ReconstructMessage rebuilds, byte for byte, the string the provider
// signed: chainId + modelId + every request message content in order +
// the response output. Any drift here silently breaks all verification,
// so keep it a pure concatenation with no separators.
func ReconstructMessage(chainID int64, req entity.ChatRequest, resp entity.ChatResponse) string {
	model := resp.Model
	if model == "" {
		model = req.Model
	}

	var b strings.Builder
	b.WriteString(strconv.FormatInt(chainID, 10))
	b.WriteString(model)
	b.WriteString(RequestPrompt(req))
	b.WriteString(ResponseOutput(resp))
	return b.String()
}

// Verify reconstructs the signed message, recovers the signer from the
// response signature and compares it (case-insensitively) against the
// expected signer.
func (v *Verifier) Verify(req entity.ChatRequest, resp entity.ChatResponse) VerifyResult {
	result := VerifyResult{
		ExpectedSigner:       v.expected.Hex(),
		ReconstructedMessage: ReconstructMessage(v.chainID, req, resp),
	}

	if resp.Signature == "" {
		result.Error = "response carries no signature"
		return result
	}

	recovered, err := RecoverSigner(result.ReconstructedMessage, resp.Signature)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.RecoveredAddress = recovered.Hex()
	if !strings.EqualFold(result.RecoveredAddress, result.ExpectedSigner) {
		result.Error = "recovered address does not match expected signer"
		return result
	}

	result.IsValid = true
	return result
}
