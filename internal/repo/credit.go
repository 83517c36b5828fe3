package repo

import (
	"context"
	"time"

	"github.com/richardliu001/wallet-ledger/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const creditOrder = "expires_at ASC, issued_at ASC, id ASC"

// ListActiveCredits reads a wallet's ACTIVE credits, soonest expiry first.
func (r *Repository) ListActiveCredits(ctx context.Context, walletID uint64) ([]model.VirtualCredit, error) {
	var cs []model.VirtualCredit
	err := r.db.WithContext(ctx).
		Where("wallet_id = ? AND status = ?", walletID, model.CreditActive).
		Order(creditOrder).
		Find(&cs).Error
	return cs, translate(err)
}

// GetActiveCreditsForUpdate locks a wallet's ACTIVE credits in consumption order.
func (r *Repository) GetActiveCreditsForUpdate(ctx context.Context, tx *gorm.DB, walletID uint64) ([]model.VirtualCredit, error) {
	var cs []model.VirtualCredit
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("wallet_id = ? AND status = ?", walletID, model.CreditActive).
		Order(creditOrder).
		Find(&cs).Error
	return cs, translate(err)
}

// GetCreditForUpdate locks one credit of a wallet regardless of status.
func (r *Repository) GetCreditForUpdate(ctx context.Context, tx *gorm.DB, walletID, creditID uint64) (*model.VirtualCredit, error) {
	var c model.VirtualCredit
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND wallet_id = ?", creditID, walletID).
		First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// InsertCredit creates a credit row.
func (r *Repository) InsertCredit(ctx context.Context, tx *gorm.DB, c *model.VirtualCredit) error {
	if c.UsageHistory == nil {
		c.UsageHistory = model.UsageHistory{}
	}
	return translate(tx.WithContext(ctx).Create(c).Error)
}

// UpdateCredit persists remaining amount, status and usage history.
func (r *Repository) UpdateCredit(ctx context.Context, tx *gorm.DB, c *model.VirtualCredit) error {
	c.UpdatedAt = time.Now().UTC()
	res := tx.WithContext(ctx).
		Model(&model.VirtualCredit{}).
		Where("id = ?", c.ID).
		Updates(map[string]interface{}{
			"remaining_amount": c.RemainingAmount,
			"status":           c.Status,
			"usage_history":    c.UsageHistory,
			"updated_at":       c.UpdatedAt,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// WalletsWithExpiredCredits returns ids of wallets holding ACTIVE credits
// whose expiry is at or before now.
func (r *Repository) WalletsWithExpiredCredits(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&model.VirtualCredit{}).
		Where("status = ? AND expires_at <= ?", model.CreditActive, now).
		Distinct().
		Order("wallet_id").
		Limit(limit).
		Pluck("wallet_id", &ids).Error
	return ids, translate(err)
}
