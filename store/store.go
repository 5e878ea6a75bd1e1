package store

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// VerificationRecord is one signed inference, appended once and never
// deleted. Only the submission fields ever change, exactly once, from
// pending to submitted.
type VerificationRecord struct {
	ID               string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	RequestPrompt    string     `gorm:"type:text;not null" json:"request_prompt"`
	ResponseModel    string     `gorm:"type:varchar(100)" json:"response_model"`
	ResponseOutput   string     `gorm:"type:text" json:"response_output"`
	Signature        string     `gorm:"type:text;not null" json:"signature"`
	PromptTokens     int64      `gorm:"type:int" json:"prompt_tokens"`
	CompletionTokens int64      `gorm:"type:int" json:"completion_tokens"`
	DiaryEntryID     string     `gorm:"type:varchar(36);index" json:"diary_entry_id"`
	Status           string     `gorm:"type:varchar(16);not null;index" json:"status"`
	SubmissionID     string     `gorm:"type:varchar(64)" json:"submission_id"`
	InferenceAt      time.Time  `gorm:"not null;index" json:"inference_at"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
}

func (VerificationRecord) TableName() string { return "verification_records" }

const (
	StatusPending   = "pending"
	StatusSubmitted = "submitted"
)

// DiaryEntry is the per-iteration trading log: the parsed decision set
// with execution outcomes annotated into the rationales, plus the
// gathered snapshot that produced it.
type DiaryEntry struct {
	ID              string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Reasoning       string    `gorm:"type:text" json:"reasoning"`
	DecisionsJSON   string    `gorm:"type:text" json:"decisions_json"`
	SnapshotJSON    string    `gorm:"type:text" json:"snapshot_json"`
	AccountValueUSD float64   `gorm:"type:decimal(20,8)" json:"account_value_usd"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (DiaryEntry) TableName() string { return "diary_entries" }

// Open opens (or creates) the SQLite database and migrates the schema.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	if err := db.AutoMigrate(&VerificationRecord{}, &DiaryEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return db, nil
}
