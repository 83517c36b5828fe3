package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type CreditStatus string

const (
	CreditActive    CreditStatus = "ACTIVE"
	CreditUsed      CreditStatus = "USED"
	CreditExpired   CreditStatus = "EXPIRED"
	CreditCancelled CreditStatus = "CANCELLED"
)

// UsageEntry records one consumption of a credit by an order.
type UsageEntry struct {
	OrderID string          `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
	UsedAt  time.Time       `json:"used_at"`
}

// UsageHistory is stored as a JSON array and only ever appended to.
type UsageHistory []UsageEntry

func (h UsageHistory) Value() (driver.Value, error) {
	if h == nil {
		return "[]", nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (h *UsageHistory) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*h = UsageHistory{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("usage history: unsupported type %T", src)
	}
	return json.Unmarshal(raw, h)
}

type VirtualCredit struct {
	ID              uint64          `gorm:"primaryKey" json:"id"`
	WalletID        uint64          `gorm:"not null;index:idx_credit_wallet_status" json:"walletId"`
	OriginalAmount  decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"originalAmount"`
	RemainingAmount decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"remainingAmount"`
	IssuedAt        time.Time       `gorm:"not null" json:"issuedAt"`
	ExpiresAt       time.Time       `gorm:"not null;index" json:"expiresAt"`
	Status          CreditStatus    `gorm:"size:16;not null;index:idx_credit_wallet_status" json:"status"`
	SourceType      string          `gorm:"size:32;not null" json:"sourceType"`
	SourceTicketID  *string         `gorm:"size:64" json:"sourceTicketId,omitempty"`
	SourceNote      string          `gorm:"size:255" json:"sourceNote,omitempty"`
	UsageHistory    UsageHistory    `gorm:"type:jsonb;not null" json:"usageHistory"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (VirtualCredit) TableName() string { return "virtual_credits" }

// ExpiredAt reports whether the credit is past its deadline at now.
func (c *VirtualCredit) ExpiredAt(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
