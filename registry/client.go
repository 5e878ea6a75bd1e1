package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mzkrasner/base-aerodrome-agent-sub000/store"
)

type submissionRequest struct {
	CompetitionID  string `json:"competitionId"`
	RequestPrompt  string `json:"requestPrompt"`
	ResponseModel  string `json:"responseModel"`
	ResponseOutput string `json:"responseOutput"`
	Signature      string `json:"signature"`
}

// SubmissionResult is the registry's acknowledgment.
type SubmissionResult struct {
	Success            bool   `json:"success"`
	SubmissionID       string `json:"submissionId"`
	Verified           bool   `json:"verified"`
	VerificationStatus string `json:"verificationStatus"`
	BadgeStatus        string `json:"badgeStatus"`
}

// Client submits signed inferences to the verification registry.
type Client struct {
	http          *resty.Client
	competitionID string
}

func NewClient(baseURL, apiKey, competitionID string) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(20 * time.Second)
	if apiKey != "" {
		http.SetHeader("Authorization", "Bearer "+apiKey)
	}
	return &Client{http: http, competitionID: competitionID}
}

// Submit forwards one verification record.
func (c *Client) Submit(ctx context.Context, rec store.VerificationRecord) (SubmissionResult, error) {
	var result SubmissionResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(submissionRequest{
			CompetitionID:  c.competitionID,
			RequestPrompt:  rec.RequestPrompt,
			ResponseModel:  rec.ResponseModel,
			ResponseOutput: rec.ResponseOutput,
			Signature:      rec.Signature,
		}).
		SetResult(&result).
		Post("/api/eigenai/signatures")
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("registry request failed: %w", err)
	}
	if resp.IsError() {
		return SubmissionResult{}, fmt.Errorf("registry returned status %d: %s", resp.StatusCode(), resp.String())
	}
	if !result.Success {
		return SubmissionResult{}, fmt.Errorf("registry rejected submission for record %s", rec.ID)
	}
	return result, nil
}
