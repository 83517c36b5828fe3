package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/richardliu001/wallet-ledger/internal/repo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Snapshot holds a wallet's balances before a mutation.
type Snapshot struct {
	Real    decimal.Decimal
	Virtual decimal.Decimal
}

func snapshot(w *model.Wallet) Snapshot {
	return Snapshot{Real: w.RealBalance, Virtual: w.VirtualBalance}
}

// Recorder appends the immutable audit rows of the ledger. It only ever
// inserts; there is no code path that updates or deletes a row.
type Recorder struct {
	repo repo.RepositoryInterface
}

func NewRecorder(r repo.RepositoryInterface) *Recorder {
	return &Recorder{repo: r}
}

// NewTransactionCode returns a human-readable unique code such as
// WT-20261015-9F2C41A07B3E.
func NewTransactionCode(at time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("WT-%s-%s", at.UTC().Format("20060102"), id[:12])
}

// Record fills the wallet identity, the before/after snapshot and the code
// on row, then inserts it inside tx. w must already hold the after state.
func (r *Recorder) Record(ctx context.Context, tx *gorm.DB, w *model.Wallet, before Snapshot, at time.Time, row *model.WalletTransaction) error {
	row.WalletID = w.ID
	row.Phone = w.Phone
	row.RealBalanceBefore = before.Real
	row.RealBalanceAfter = w.RealBalance
	row.VirtualBalanceBefore = before.Virtual
	row.VirtualBalanceAfter = w.VirtualBalance
	row.CreatedAt = at
	if row.TransactionCode == "" {
		row.TransactionCode = NewTransactionCode(at)
	}
	return r.repo.InsertTransaction(ctx, tx, row)
}

// History pages through a wallet's rows, newest first.
func (r *Recorder) History(ctx context.Context, walletID uint64, q HistoryQuery) (*HistoryPage, error) {
	page, limit := q.Page, q.Limit
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	items, total, err := r.repo.ListTransactions(ctx, walletID, repo.TxFilter{
		Types:  q.Types,
		From:   q.From,
		To:     q.To,
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.WalletTransaction{}
	}
	totalPages := int(total) / limit
	if int(total)%limit > 0 {
		totalPages++
	}
	return &HistoryPage{Items: items, Total: total, Page: page, Limit: limit, TotalPages: totalPages}, nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
