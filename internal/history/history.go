// Package history keeps the per-sender campaign log and aggregate
// analytics.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zapsend/zapsend/internal/dispatch"
)

// Campaign statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// CampaignRecord is one completed run in the sender's history. Records
// are append-only.
type CampaignRecord struct {
	ID             string    `json:"id"`
	Sender         string    `json:"sender"`
	Subject        string    `json:"subject"`
	SentAt         time.Time `json:"sent_at"`
	RecipientCount int       `json:"recipient_count"`
	SuccessCount   int       `json:"success_count"`
	FailureCount   int       `json:"failure_count"`
	Status         string    `json:"status"`
}

// Stats aggregates a sender's campaigns.
type Stats struct {
	Campaigns  int `json:"campaigns"`
	Recipients int `json:"recipients"`
	Successes  int `json:"successes"`
	Failures   int `json:"failures"`
}

// NewRecord derives a campaign record from a finished run. Attempted
// is the number of valid recipients the run addressed; a run that sent
// to all of them is a success, to some of them partial, to none failed.
func NewRecord(result *dispatch.RunResult, sender, subject string, attempted int) *CampaignRecord {
	success := 0
	failure := 0
	for _, o := range result.Outcomes {
		switch o.Status {
		case dispatch.StatusSent:
			success++
		case dispatch.StatusFailed:
			failure++
		}
	}

	status := StatusFailed
	switch {
	case success == attempted:
		status = StatusSuccess
	case success > 0:
		status = StatusPartial
	}

	return &CampaignRecord{
		ID:             uuid.New().String(),
		Sender:         sender,
		Subject:        subject,
		SentAt:         result.FinishedAt,
		RecipientCount: attempted,
		SuccessCount:   success,
		FailureCount:   failure,
		Status:         status,
	}
}

// Repository persists campaign records.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create appends a campaign record.
func (r *Repository) Create(rec *CampaignRecord) error {
	_, err := r.db.Exec(`
		INSERT INTO campaigns (id, sender, subject, sent_at, recipient_count, success_count, failure_count, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Sender, rec.Subject, rec.SentAt, rec.RecipientCount, rec.SuccessCount, rec.FailureCount, rec.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to create campaign record: %w", err)
	}
	return nil
}

// ListBySender returns the sender's campaigns, most recent first.
func (r *Repository) ListBySender(sender string, limit int) ([]CampaignRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT id, sender, subject, sent_at, recipient_count, success_count, failure_count, status
		FROM campaigns WHERE sender = ?
		ORDER BY sent_at DESC
		LIMIT ?`, sender, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	records := []CampaignRecord{}
	for rows.Next() {
		var rec CampaignRecord
		if err := rows.Scan(&rec.ID, &rec.Sender, &rec.Subject, &rec.SentAt,
			&rec.RecipientCount, &rec.SuccessCount, &rec.FailureCount, &rec.Status); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// StatsBySender aggregates the sender's campaign history.
func (r *Repository) StatsBySender(sender string) (*Stats, error) {
	s := &Stats{}
	err := r.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(recipient_count), 0),
		       COALESCE(SUM(success_count), 0),
		       COALESCE(SUM(failure_count), 0)
		FROM campaigns WHERE sender = ?`, sender,
	).Scan(&s.Campaigns, &s.Recipients, &s.Successes, &s.Failures)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate campaigns: %w", err)
	}
	return s, nil
}
