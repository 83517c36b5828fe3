package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TxDepositBank         TransactionType = "deposit-bank"
	TxDepositReturn       TransactionType = "deposit-return"
	TxDepositAdjustment   TransactionType = "deposit-adjustment"
	TxWithdrawOrder       TransactionType = "withdraw-order"
	TxWithdrawRefund      TransactionType = "withdraw-refund"
	TxWithdrawAdjustment  TransactionType = "withdraw-adjustment"
	TxVirtualCreditIssue  TransactionType = "virtual-credit-issue"
	TxVirtualCreditUse    TransactionType = "virtual-credit-use"
	TxVirtualCreditExpire TransactionType = "virtual-credit-expire"
	TxVirtualCreditCancel TransactionType = "virtual-credit-cancel"
)

// DebitTypes count towards the daily withdraw limit.
var DebitTypes = []TransactionType{TxWithdrawOrder, TxWithdrawRefund, TxWithdrawAdjustment, TxVirtualCreditUse}

// WalletTransaction is an immutable audit row. It is inserted once and
// never updated or deleted.
type WalletTransaction struct {
	ID                   uint64          `gorm:"primaryKey" json:"id"`
	TransactionCode      string          `gorm:"size:40;not null;uniqueIndex" json:"transactionCode"`
	WalletID             uint64          `gorm:"not null;index:idx_tx_wallet_created" json:"walletId"`
	Phone                string          `gorm:"size:16;not null" json:"phone"`
	TransactionType      TransactionType `gorm:"size:32;not null;index" json:"transactionType"`
	Amount               decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	RealBalanceBefore    decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"realBalanceBefore"`
	RealBalanceAfter     decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"realBalanceAfter"`
	VirtualBalanceBefore decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"virtualBalanceBefore"`
	VirtualBalanceAfter  decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"virtualBalanceAfter"`
	VirtualCreditID      *uint64         `gorm:"index" json:"virtualCreditId,omitempty"`
	SourceType           string          `gorm:"size:32" json:"sourceType,omitempty"`
	SourceID             *string         `gorm:"size:64" json:"sourceId,omitempty"`
	SourceDetails        string          `gorm:"size:255" json:"sourceDetails,omitempty"`
	Description          string          `gorm:"size:255" json:"description,omitempty"`
	InternalNote         string          `gorm:"size:255" json:"-"`
	IdempotencyKey       *string         `gorm:"size:160;uniqueIndex" json:"-"`
	CreatedAt            time.Time       `gorm:"not null;index:idx_tx_wallet_created" json:"createdAt"`
}

func (WalletTransaction) TableName() string { return "wallet_transactions" }
