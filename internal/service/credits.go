package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/richardliu001/wallet-ledger/internal/apperrors"
	"github.com/richardliu001/wallet-ledger/internal/events"
	"github.com/richardliu001/wallet-ledger/internal/metrics"
	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/richardliu001/wallet-ledger/internal/repo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const defaultExpireBatch = 500

// IssueVirtualCredit grants a time-limited credit to an existing wallet.
func (s *WalletService) IssueVirtualCredit(ctx context.Context, req IssueRequest) (res *IssueResult, err error) {
	defer func(start time.Time) { s.observe(opIssue, start, err) }(time.Now())

	p, err := canonicalPhone(req.Phone)
	if err != nil {
		return nil, err
	}
	if err := s.validateAmount(req.Amount); err != nil {
		return nil, err
	}
	days := req.ExpiryDays
	if days == 0 {
		days = s.cfg.DefaultExpiryDays
	}
	if days < 1 || days > s.cfg.MaxExpiryDays {
		return nil, apperrors.InvalidRequest(
			fmt.Sprintf("expiryDays must be between 1 and %d", s.cfg.MaxExpiryDays), nil)
	}
	if req.SourceType == "" {
		return nil, apperrors.InvalidRequest("sourceType is required", nil)
	}
	var key *string
	if req.SourceTicketID != "" {
		k := fmt.Sprintf("virtual-credit-issue:%s:%s", req.SourceType, req.SourceTicketID)
		key = &k
	}

	now := s.clock()
	var w *model.Wallet
	res = &IssueResult{Amount: req.Amount}
	err = s.repo.InTx(ctx, func(tx *gorm.DB) error {
		var err error
		if w, err = s.lockWallet(ctx, tx, p, true); err != nil {
			return err
		}
		if err := s.dupCheck(ctx, tx, key); err != nil {
			return err
		}
		locked, err := s.repo.GetActiveCreditsForUpdate(ctx, tx, w.ID)
		if err != nil {
			return err
		}
		s.syncVirtual(w, locked)

		c := &model.VirtualCredit{
			WalletID:        w.ID,
			OriginalAmount:  req.Amount,
			RemainingAmount: req.Amount,
			IssuedAt:        now,
			ExpiresAt:       now.AddDate(0, 0, days),
			Status:          model.CreditActive,
			SourceType:      req.SourceType,
			SourceTicketID:  strPtr(req.SourceTicketID),
			SourceNote:      req.SourceNote,
			UsageHistory:    model.UsageHistory{},
		}
		if err := s.repo.InsertCredit(ctx, tx, c); err != nil {
			return err
		}

		before := snapshot(w)
		w.VirtualBalance = w.VirtualBalance.Add(req.Amount)
		if err := s.repo.UpdateWallet(ctx, tx, w); err != nil {
			return err
		}
		creditID := c.ID
		row := &model.WalletTransaction{
			TransactionType: model.TxVirtualCreditIssue,
			Amount:          req.Amount,
			VirtualCreditID: &creditID,
			SourceType:      req.SourceType,
			SourceID:        strPtr(req.SourceTicketID),
			SourceDetails:   req.SourceNote,
			IdempotencyKey:  key,
		}
		if err := s.rec.Record(ctx, tx, w, before, now, row); err != nil {
			return err
		}
		res.CreditID = c.ID
		res.ExpiresAt = c.ExpiresAt
		res.TransactionCode = row.TransactionCode
		return s.emit(ctx, tx, events.CreditIssued{
			WalletPhone: p,
			CreditID:    c.ID,
			Amount:      req.Amount,
			ExpiresAt:   c.ExpiresAt,
			At:          now,
		})
	})
	if err != nil {
		return nil, s.fail(opIssue, err, apperrors.ErrCustomerNotFound)
	}

	res.VirtualBalance = w.VirtualBalance
	res.RealBalance = w.RealBalance
	s.refreshCache(ctx, w)
	metrics.AddAmount(opIssue, "virtual", req.Amount)
	s.log.Infow("virtual credit issued",
		"phone", p, "credit_id", res.CreditID, "amount", req.Amount.String(), "expires_at", res.ExpiresAt)
	return res, nil
}

// CancelVirtualCredit voids an ACTIVE credit and forfeits what is left on it.
// Frozen wallets may still have credits cancelled.
func (s *WalletService) CancelVirtualCredit(ctx context.Context, rawPhone string, creditID uint64, reason string) (res *CancelResult, err error) {
	defer func(start time.Time) { s.observe(opCancel, start, err) }(time.Now())

	p, err := canonicalPhone(rawPhone)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	var w *model.Wallet
	res = &CancelResult{CreditID: creditID}
	err = s.repo.InTx(ctx, func(tx *gorm.DB) error {
		var err error
		if w, err = s.lockWallet(ctx, tx, p, false); err != nil {
			return err
		}
		c, err := s.repo.GetCreditForUpdate(ctx, tx, w.ID, creditID)
		if errors.Is(err, repo.ErrNotFound) {
			return apperrors.ErrVirtualCreditNotFound.With(map[string]interface{}{"creditId": creditID})
		}
		if err != nil {
			return err
		}
		switch {
		case c.Status == model.CreditCancelled:
			return apperrors.ErrVirtualCreditCancelled
		case c.Status == model.CreditUsed:
			return apperrors.ErrVirtualCreditUsed
		case c.Status == model.CreditExpired, c.ExpiredAt(now):
			return apperrors.ErrVirtualCreditExpired
		}

		locked, err := s.repo.GetActiveCreditsForUpdate(ctx, tx, w.ID)
		if err != nil {
			return err
		}
		s.syncVirtual(w, locked)

		before := snapshot(w)
		c.Status = model.CreditCancelled
		if err := s.repo.UpdateCredit(ctx, tx, c); err != nil {
			return err
		}
		w.VirtualBalance = w.VirtualBalance.Sub(c.RemainingAmount)
		if err := s.repo.UpdateWallet(ctx, tx, w); err != nil {
			return err
		}
		id := c.ID
		row := &model.WalletTransaction{
			TransactionType: model.TxVirtualCreditCancel,
			Amount:          c.RemainingAmount,
			VirtualCreditID: &id,
			SourceType:      c.SourceType,
			SourceID:        c.SourceTicketID,
			Description:     reason,
		}
		if err := s.rec.Record(ctx, tx, w, before, now, row); err != nil {
			return err
		}
		res.Forfeited = c.RemainingAmount
		res.TransactionCode = row.TransactionCode
		return s.emit(ctx, tx, events.CreditCancelled{
			WalletPhone: p,
			CreditID:    c.ID,
			Forfeited:   c.RemainingAmount,
			Reason:      reason,
			At:          now,
		})
	})
	if err != nil {
		return nil, s.fail(opCancel, err, apperrors.ErrWalletNotFound)
	}

	res.VirtualBalance = w.VirtualBalance
	s.refreshCache(ctx, w)
	s.log.Infow("virtual credit cancelled", "phone", p, "credit_id", creditID, "forfeited", res.Forfeited.String())
	return res, nil
}

// ExpireCredits sweeps up to limit wallets holding overdue ACTIVE credits.
// Each wallet is handled in its own transaction under its row lock, so a
// sweep and a withdrawal on the same wallet are strictly ordered. A failing
// wallet is logged and skipped.
func (s *WalletService) ExpireCredits(ctx context.Context, limit int) (rep *ExpireReport, err error) {
	defer func(start time.Time) { s.observe(opExpire, start, err) }(time.Now())

	if limit <= 0 {
		limit = defaultExpireBatch
	}
	now := s.clock()
	rep = &ExpireReport{Forfeited: decimal.Zero}
	ids, err := s.repo.WalletsWithExpiredCredits(ctx, now, limit)
	if err != nil {
		return nil, s.fail(opExpire, err, nil)
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		var w *model.Wallet
		var n int
		var forfeited, drift decimal.Decimal
		err := s.repo.InTx(ctx, func(tx *gorm.DB) error {
			var err error
			if w, err = s.repo.GetWalletByIDForUpdate(ctx, tx, id); err != nil {
				return err
			}
			locked, err := s.repo.GetActiveCreditsForUpdate(ctx, tx, w.ID)
			if err != nil {
				return err
			}
			drift = s.syncVirtual(w, locked)
			live, lost, err := s.expireDue(ctx, tx, w, locked, now)
			if err != nil {
				return err
			}
			n, forfeited = len(locked)-len(live), lost
			if n == 0 && drift.IsZero() {
				return nil
			}
			return s.repo.UpdateWallet(ctx, tx, w)
		})
		if err != nil {
			rep.Failed++
			s.log.Errorw("expire credits failed", "wallet_id", id, "err", err)
			continue
		}
		if n == 0 && drift.IsZero() {
			continue
		}
		s.refreshCache(ctx, w)
		if n == 0 {
			continue
		}
		rep.Wallets++
		rep.Credits += n
		rep.Forfeited = rep.Forfeited.Add(forfeited)
	}

	metrics.RecordExpired(rep.Credits)
	if rep.Credits > 0 || rep.Failed > 0 {
		s.log.Infow("expiry sweep finished",
			"wallets", rep.Wallets, "credits", rep.Credits, "forfeited", rep.Forfeited.String(), "failed", rep.Failed)
	}
	return rep, nil
}
