package model

import "time"

// OutboxEvent is written in the same DB transaction as the ledger change it
// describes and later shipped to Kafka by the poller.
type OutboxEvent struct {
	ID          uint64    `gorm:"primaryKey"`
	Aggregate   string    `gorm:"size:64;not null"`
	AggregateID string    `gorm:"size:64;not null"`
	EventType   string    `gorm:"size:64;not null"`
	Payload     string    `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	Processed   bool      `gorm:"not null;default:false;index"`
	ProcessedAt *time.Time
}

func (OutboxEvent) TableName() string { return "event_outbox" }

// All lists every table for AutoMigrate.
func All() []interface{} {
	return []interface{}{&Wallet{}, &VirtualCredit{}, &WalletTransaction{}, &OutboxEvent{}}
}
