package entities

import (
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxProcessed OutboxStatus = "processed"
	OutboxFailed    OutboxStatus = "failed"
)

// OutboxEvent is a durable record of a committed state change, written in
// the same database transaction as the change itself and relayed to the
// event bus by a background worker.
type OutboxEvent struct {
	ID          string       `db:"id" json:"id"`
	Type        string       `db:"type" json:"type"`
	Payload     []byte       `db:"payload" json:"payload"`
	Status      OutboxStatus `db:"status" json:"status"`
	Attempts    int          `db:"attempts" json:"attempts"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	ProcessedAt *time.Time   `db:"processed_at" json:"processed_at,omitempty"`
}

func NewOutboxEvent(eventType string, payload []byte) *OutboxEvent {
	return &OutboxEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   payload,
		Status:    OutboxPending,
		CreatedAt: time.Now().UTC(),
	}
}
