package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mzkrasner/base-aerodrome-agent-sub000/entity"
)

// Tracker is the append-only log of signed inferences.
type Tracker struct {
	db *gorm.DB
}

func NewTracker(db *gorm.DB) *Tracker {
	return &Tracker{db: db}
}

// Record appends one signed inference, linked to the diary entry of the
// decision it produced.
func (t *Tracker) Record(ctx context.Context, v entity.Verification, diaryEntryID string) (VerificationRecord, error) {
	rec := VerificationRecord{
		ID:               uuid.NewString(),
		RequestPrompt:    v.RequestPrompt,
		ResponseModel:    v.ResponseModel,
		ResponseOutput:   v.ResponseOutput,
		Signature:        v.Signature,
		PromptTokens:     v.PromptTokens,
		CompletionTokens: v.CompletionTokens,
		DiaryEntryID:     diaryEntryID,
		Status:           StatusPending,
		InferenceAt:      v.InferenceAt,
	}
	if err := t.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return VerificationRecord{}, fmt.Errorf("failed to record inference: %w", err)
	}
	return rec, nil
}

// MostRecentUnsubmitted returns the newest pending record by inference
// time, or nil when everything has been submitted. The descending order
// matters: ascending would quietly submit stale inferences forever.
func (t *Tracker) MostRecentUnsubmitted(ctx context.Context) (*VerificationRecord, error) {
	var rec VerificationRecord
	err := t.db.WithContext(ctx).
		Where("status = ?", StatusPending).
		Order("inference_at DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query unsubmitted records: %w", err)
	}
	return &rec, nil
}

// MarkSubmitted flips the given records from pending to submitted.
// Idempotent: already-submitted records keep their original submission
// id and timestamp.
func (t *Tracker) MarkSubmitted(ctx context.Context, ids []string, submissionID string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now()
	err := t.db.WithContext(ctx).
		Model(&VerificationRecord{}).
		Where("id IN ? AND status = ?", ids, StatusPending).
		Updates(map[string]any{
			"status":        StatusSubmitted,
			"submission_id": submissionID,
			"submitted_at":  &now,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark records submitted: %w", err)
	}
	return nil
}
