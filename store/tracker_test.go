package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mzkrasner/base-aerodrome-agent-sub000/entity"
)

func openTestDB(t *testing.T) *Tracker {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return NewTracker(db)
}

func verificationAt(at time.Time, sig string) entity.Verification {
	return entity.Verification{
		RequestPrompt:    "prompt",
		ResponseModel:    "m",
		ResponseOutput:   "output",
		Signature:        sig,
		PromptTokens:     10,
		CompletionTokens: 5,
		InferenceAt:      at,
	}
}

func TestMostRecentUnsubmittedPicksNewest(t *testing.T) {
	tracker := openTestDB(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	first, err := tracker.Record(ctx, verificationAt(base, "0xsig1"), "d1")
	if err != nil {
		t.Fatalf("Record S1: %v", err)
	}
	second, err := tracker.Record(ctx, verificationAt(base.Add(time.Minute), "0xsig2"), "d2")
	if err != nil {
		t.Fatalf("Record S2: %v", err)
	}

	rec, err := tracker.MostRecentUnsubmitted(ctx)
	if err != nil {
		t.Fatalf("MostRecentUnsubmitted: %v", err)
	}
	if rec == nil || rec.ID != second.ID {
		t.Fatalf("expected newest record %s, got %+v", second.ID, rec)
	}

	// The older record stays pending; nothing was dropped.
	if err := tracker.MarkSubmitted(ctx, []string{second.ID}, "sub-1"); err != nil {
		t.Fatalf("MarkSubmitted: %v", err)
	}
	rec, err = tracker.MostRecentUnsubmitted(ctx)
	if err != nil {
		t.Fatalf("MostRecentUnsubmitted after submit: %v", err)
	}
	if rec == nil || rec.ID != first.ID {
		t.Fatalf("expected older pending record %s, got %+v", first.ID, rec)
	}
}

func TestMostRecentUnsubmittedEmpty(t *testing.T) {
	tracker := openTestDB(t)
	rec, err := tracker.MostRecentUnsubmitted(context.Background())
	if err != nil {
		t.Fatalf("MostRecentUnsubmitted: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil on empty log, got %+v", rec)
	}
}

func TestMarkSubmittedIdempotent(t *testing.T) {
	tracker := openTestDB(t)
	ctx := context.Background()

	rec, err := tracker.Record(ctx, verificationAt(time.Now(), "0xsig"), "d1")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	if err := tracker.MarkSubmitted(ctx, []string{rec.ID}, "sub-1"); err != nil {
		t.Fatalf("MarkSubmitted: %v", err)
	}
	var after VerificationRecord
	if err := tracker.db.First(&after, "id = ?", rec.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if after.Status != StatusSubmitted || after.SubmissionID != "sub-1" || after.SubmittedAt == nil {
		t.Fatalf("record not marked: %+v", after)
	}

	// Re-marking with a different submission id must not overwrite the
	// original attribution.
	if err := tracker.MarkSubmitted(ctx, []string{rec.ID}, "sub-2"); err != nil {
		t.Fatalf("second MarkSubmitted: %v", err)
	}
	var again VerificationRecord
	if err := tracker.db.First(&again, "id = ?", rec.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.SubmissionID != "sub-1" {
		t.Fatalf("submission id overwritten to %q", again.SubmissionID)
	}
}

func TestRecordPreservesPayload(t *testing.T) {
	tracker := openTestDB(t)
	ctx := context.Background()

	v := verificationAt(time.Now().UTC().Truncate(time.Second), "0xdeadbeef")
	rec, err := tracker.Record(ctx, v, "diary-9")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	var got VerificationRecord
	if err := tracker.db.First(&got, "id = ?", rec.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Signature != v.Signature || got.RequestPrompt != v.RequestPrompt ||
		got.ResponseOutput != v.ResponseOutput || got.DiaryEntryID != "diary-9" {
		t.Fatalf("payload mangled: %+v", got)
	}
	if got.Status != StatusPending {
		t.Fatalf("new record status = %q, want pending", got.Status)
	}
}
