package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is one per customer phone. Rows are never deleted.
type Wallet struct {
	ID             uint64          `gorm:"primaryKey;column:id" json:"id"`
	Phone          string          `gorm:"size:16;not null;uniqueIndex" json:"phone"`
	CustomerName   string          `gorm:"size:128" json:"customerName,omitempty"`
	RealBalance    decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"realBalance"`
	VirtualBalance decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"virtualBalance"`
	IsFrozen       bool            `gorm:"not null;default:false" json:"isFrozen"`
	FrozenReason   string          `gorm:"size:255" json:"frozenReason,omitempty"`
	// Version grows by one with every committed update of the row.
	Version        uint64          `gorm:"not null;default:0" json:"version"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Wallet) TableName() string { return "wallets" }

// Total is what the customer can spend right now.
func (w *Wallet) Total() decimal.Decimal {
	return w.RealBalance.Add(w.VirtualBalance)
}

// Balances is the read model served by the balance endpoint and the cache.
type Balances struct {
	RealBalance    decimal.Decimal `json:"realBalance"`
	VirtualBalance decimal.Decimal `json:"virtualBalance"`
	TotalBalance   decimal.Decimal `json:"totalBalance"`
	Version        uint64          `json:"version"`
}

func (w *Wallet) Balances() Balances {
	return Balances{
		RealBalance:    w.RealBalance,
		VirtualBalance: w.VirtualBalance,
		TotalBalance:   w.Total(),
		Version:        w.Version,
	}
}
