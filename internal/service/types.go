package service

import (
	"time"

	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/shopspring/decimal"
)

// Deposit source types accepted by Deposit.
const (
	SourceBankTransfer = "bank_transfer"
	SourceReturn       = "return"
	SourceAdjustment   = "adjustment"
)

// Withdraw kinds accepted by Withdraw.
const (
	KindOrder      = "order"
	KindRefund     = "refund"
	KindAdjustment = "adjustment"
)

var depositTypes = map[string]model.TransactionType{
	SourceBankTransfer: model.TxDepositBank,
	SourceReturn:       model.TxDepositReturn,
	SourceAdjustment:   model.TxDepositAdjustment,
}

var withdrawTypes = map[string]model.TransactionType{
	KindOrder:      model.TxWithdrawOrder,
	KindRefund:     model.TxWithdrawRefund,
	KindAdjustment: model.TxWithdrawAdjustment,
}

type DepositRequest struct {
	Phone        string
	Amount       decimal.Decimal
	SourceType   string
	SourceID     string
	Description  string
	InternalNote string
}

type DepositResult struct {
	Phone           string          `json:"phone"`
	Amount          decimal.Decimal `json:"amount"`
	RealBalance     decimal.Decimal `json:"realBalance"`
	VirtualBalance  decimal.Decimal `json:"virtualBalance"`
	TransactionID   uint64          `json:"transactionId"`
	TransactionCode string          `json:"transactionCode"`
	WalletCreated   bool            `json:"walletCreated"`
}

type WithdrawRequest struct {
	Phone       string
	Amount      decimal.Decimal
	OrderID     string
	Kind        string // order (default), refund or adjustment
	Description string
}

// TouchedCredit is the state of a credit after a withdrawal consumed it.
type TouchedCredit struct {
	CreditID  uint64             `json:"creditId"`
	Used      decimal.Decimal    `json:"used"`
	Remaining decimal.Decimal    `json:"remaining"`
	Status    model.CreditStatus `json:"status"`
	ExpiresAt time.Time          `json:"expiresAt"`
}

type WithdrawResult struct {
	Phone            string          `json:"phone"`
	OrderID          string          `json:"orderId"`
	Amount           decimal.Decimal `json:"amount"`
	VirtualUsed      decimal.Decimal `json:"virtualUsed"`
	RealUsed         decimal.Decimal `json:"realUsed"`
	Credits          []TouchedCredit `json:"credits"`
	RealBalance      decimal.Decimal `json:"realBalance"`
	VirtualBalance   decimal.Decimal `json:"virtualBalance"`
	TransactionIDs   []uint64        `json:"transactionIds"`
	TransactionCodes []string        `json:"transactionCodes"`
}

type IssueRequest struct {
	Phone          string
	Amount         decimal.Decimal
	ExpiryDays     int // 0 means the configured default
	SourceType     string
	SourceTicketID string
	SourceNote     string
}

type IssueResult struct {
	CreditID        uint64          `json:"creditId"`
	Amount          decimal.Decimal `json:"amount"`
	ExpiresAt       time.Time       `json:"expiresAt"`
	VirtualBalance  decimal.Decimal `json:"virtualBalance"`
	RealBalance     decimal.Decimal `json:"realBalance"`
	TransactionCode string          `json:"transactionCode"`
}

type CancelResult struct {
	CreditID        uint64          `json:"creditId"`
	Forfeited       decimal.Decimal `json:"forfeited"`
	VirtualBalance  decimal.Decimal `json:"virtualBalance"`
	TransactionCode string          `json:"transactionCode"`
}

// ExpireReport summarises one ExpireCredits sweep.
type ExpireReport struct {
	Wallets   int             `json:"wallets"`
	Credits   int             `json:"credits"`
	Forfeited decimal.Decimal `json:"forfeited"`
	Failed    int             `json:"failed"`
}

// WalletView is the full read model of one wallet.
type WalletView struct {
	Wallet             model.Wallet              `json:"wallet"`
	TotalBalance       decimal.Decimal           `json:"totalBalance"`
	ActiveCredits      []model.VirtualCredit     `json:"activeCredits"`
	RecentTransactions []model.WalletTransaction `json:"recentTransactions"`
}

type HistoryQuery struct {
	Types []model.TransactionType
	From  *time.Time
	To    *time.Time
	Page  int
	Limit int
}

type HistoryPage struct {
	Items      []model.WalletTransaction `json:"items"`
	Total      int64                     `json:"total"`
	Page       int                       `json:"page"`
	Limit      int                       `json:"limit"`
	TotalPages int                       `json:"totalPages"`
}

type ReconcileResult struct {
	Phone    string          `json:"phone"`
	Stored   decimal.Decimal `json:"stored"`
	Computed decimal.Decimal `json:"computed"`
	Drift    decimal.Decimal `json:"drift"`
	Repaired bool            `json:"repaired"`
}
