package repo

import (
	"context"
	"errors"
	"time"

	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TxFilter narrows a history query. Zero values mean "no filter".
type TxFilter struct {
	Types  []model.TransactionType
	From   *time.Time
	To     *time.Time
	Offset int
	Limit  int
}

// InsertTransaction appends an audit row. Rows are never updated.
func (r *Repository) InsertTransaction(ctx context.Context, tx *gorm.DB, t *model.WalletTransaction) error {
	return translate(tx.WithContext(ctx).Create(t).Error)
}

// FindTransactionByKey returns the row that carries an idempotency key,
// or nil when the key is unused.
func (r *Repository) FindTransactionByKey(ctx context.Context, tx *gorm.DB, key string) (*model.WalletTransaction, error) {
	var t model.WalletTransaction
	err := tx.WithContext(ctx).Where("idempotency_key = ?", key).First(&t).Error
	if err == nil {
		return &t, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, translate(err)
}

// ListTransactions pages through a wallet's history, newest first.
func (r *Repository) ListTransactions(ctx context.Context, walletID uint64, f TxFilter) ([]model.WalletTransaction, int64, error) {
	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&model.WalletTransaction{}).Where("wallet_id = ?", walletID)
		if len(f.Types) > 0 {
			q = q.Where("transaction_type IN ?", f.Types)
		}
		if f.From != nil {
			q = q.Where("created_at >= ?", *f.From)
		}
		if f.To != nil {
			q = q.Where("created_at < ?", *f.To)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var txs []model.WalletTransaction
	err := scoped().Order("created_at DESC, id DESC").Offset(f.Offset).Limit(f.Limit).Find(&txs).Error
	return txs, total, translate(err)
}

// SumTransactionsSince adds up the amounts of a wallet's rows of the given
// types created at or after since.
func (r *Repository) SumTransactionsSince(ctx context.Context, tx *gorm.DB, walletID uint64, types []model.TransactionType, since time.Time) (decimal.Decimal, error) {
	var rows []model.WalletTransaction
	err := tx.WithContext(ctx).
		Select("amount").
		Where("wallet_id = ? AND transaction_type IN ? AND created_at >= ?", walletID, types, since).
		Find(&rows).Error
	if err != nil {
		return decimal.Zero, translate(err)
	}
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Amount)
	}
	return total, nil
}
