package store

import (
	"context"
	"fmt"

	json "github.com/bytedance/sonic"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mzkrasner/base-aerodrome-agent-sub000/entity"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/utils"
)

// Diary persists one entry per trading iteration, failure or not.
type Diary struct {
	db *gorm.DB
}

func NewDiary(db *gorm.DB) *Diary {
	return &Diary{db: db}
}

// Append writes the iteration's decision set and gathered snapshot.
func (d *Diary) Append(ctx context.Context, set entity.DecisionSet, snapshot entity.Snapshot, accountValueUSD float64) (DiaryEntry, error) {
	decisions, err := json.MarshalString(set.Decisions)
	if err != nil {
		return DiaryEntry{}, fmt.Errorf("failed to serialize decisions: %w", err)
	}
	snap, err := json.MarshalString(snapshot)
	if err != nil {
		return DiaryEntry{}, fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	entry := DiaryEntry{
		ID:              uuid.NewString(),
		Reasoning:       set.Reasoning,
		DecisionsJSON:   decisions,
		SnapshotJSON:    snap,
		AccountValueUSD: accountValueUSD,
	}
	if err := d.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return DiaryEntry{}, fmt.Errorf("failed to append diary entry: %w", err)
	}
	return entry, nil
}

// Recent returns the latest entries, newest first.
func (d *Diary) Recent(ctx context.Context, limit int) ([]DiaryEntry, error) {
	var entries []DiaryEntry
	err := d.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load diary entries: %w", err)
	}
	return entries, nil
}

// Performance summarizes portfolio history for the reasoning prompt.
type Performance struct {
	Iterations     int     `json:"iterations"`
	ReturnPct      float64 `json:"return_pct"`
	MeanStepReturn float64 `json:"mean_step_return_pct"`
	StepVolatility float64 `json:"step_volatility_pct"`
}

// Performance computes return and step-to-step volatility from recorded
// account values, oldest to newest.
func (d *Diary) Performance(ctx context.Context) (Performance, error) {
	var values []float64
	err := d.db.WithContext(ctx).
		Model(&DiaryEntry{}).
		Where("account_value_usd > 0").
		Order("created_at ASC").
		Pluck("account_value_usd", &values).Error
	if err != nil {
		return Performance{}, fmt.Errorf("failed to load account history: %w", err)
	}

	perf := Performance{Iterations: len(values)}
	if len(values) < 2 {
		return perf, nil
	}

	perf.ReturnPct = (values[len(values)-1] - values[0]) / values[0] * 100

	steps := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] > 0 {
			steps = append(steps, (values[i]-values[i-1])/values[i-1]*100)
		}
	}
	perf.MeanStepReturn = utils.Avg(steps)
	perf.StepVolatility = utils.StdDev(steps)
	return perf, nil
}
