package models

import "time"

// Ledger reasons
const (
	LedgerReasonRequestCompleted = "request_completed"
	LedgerReasonAdjustment       = "adjustment"
)

// PointsLedgerEntry is append-only. A user's balance is the sum of deltas.
type PointsLedgerEntry struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	UserID    uint64    `gorm:"not null;index" json:"user_id"`
	RequestID *uint64   `gorm:"index" json:"request_id"`
	Delta     int       `gorm:"not null" json:"delta"`
	Reason    string    `gorm:"type:varchar(100);not null" json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName keeps the table name short
func (PointsLedgerEntry) TableName() string {
	return "points_ledger"
}

type Review struct {
	ID         uint64    `gorm:"primarykey" json:"id"`
	RequestID  uint64    `gorm:"not null;index" json:"request_id"`
	ReviewerID uint64    `gorm:"not null;index" json:"reviewer_id"`
	RevieweeID uint64    `gorm:"not null;index" json:"reviewee_id"`
	Rating     int       `gorm:"not null" json:"rating"`
	Comment    string    `gorm:"type:text" json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}
