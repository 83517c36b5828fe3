package repo

import (
	"context"
	"time"

	"github.com/richardliu001/wallet-ledger/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetWallet reads without locking.
func (r *Repository) GetWallet(ctx context.Context, phone string) (*model.Wallet, error) {
	var w model.Wallet
	if err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&w).Error; err != nil {
		return nil, translate(err)
	}
	return &w, nil
}

// GetWalletForUpdate locks wallet row.
func (r *Repository) GetWalletForUpdate(ctx context.Context, tx *gorm.DB, phone string) (*model.Wallet, error) {
	var w model.Wallet
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("phone = ?", phone).First(&w).Error; err != nil {
		return nil, translate(err)
	}
	return &w, nil
}

// GetWalletByIDForUpdate locks wallet row by primary key; used by the
// expiry sweep, which discovers wallets through their credits.
func (r *Repository) GetWalletByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint64) (*model.Wallet, error) {
	var w model.Wallet
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&w).Error; err != nil {
		return nil, translate(err)
	}
	return &w, nil
}

// EnsureWallet inserts w unless a wallet with the same phone exists and
// reports whether a row was created. Concurrent callers never fail.
func (r *Repository) EnsureWallet(ctx context.Context, tx *gorm.DB, w *model.Wallet) (bool, error) {
	res := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "phone"}}, DoNothing: true}).
		Create(w)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// UpdateWallet writes balances and the freeze flag of a locked wallet and
// bumps its version.
func (r *Repository) UpdateWallet(ctx context.Context, tx *gorm.DB, w *model.Wallet) error {
	w.UpdatedAt = time.Now().UTC()
	res := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("id = ?", w.ID).
		Updates(map[string]interface{}{
			"real_balance":    w.RealBalance,
			"virtual_balance": w.VirtualBalance,
			"is_frozen":       w.IsFrozen,
			"frozen_reason":   w.FrozenReason,
			"updated_at":      w.UpdatedAt,
			"version":         gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	w.Version++
	return nil
}
