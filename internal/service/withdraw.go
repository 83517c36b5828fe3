package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/richardliu001/wallet-ledger/internal/apperrors"
	"github.com/richardliu001/wallet-ledger/internal/events"
	"github.com/richardliu001/wallet-ledger/internal/metrics"
	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/richardliu001/wallet-ledger/internal/selector"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func candidates(cs []model.VirtualCredit) []selector.Candidate {
	out := make([]selector.Candidate, 0, len(cs))
	for _, c := range cs {
		out = append(out, selector.Candidate{
			ID:        c.ID,
			Remaining: c.RemainingAmount,
			ExpiresAt: c.ExpiresAt,
			IssuedAt:  c.IssuedAt,
		})
	}
	return out
}

// Withdraw debits amount, virtual credits first in order of nearest
// expiry, then the real balance for whatever they do not cover.
func (s *WalletService) Withdraw(ctx context.Context, req WithdrawRequest) (res *WithdrawResult, err error) {
	defer func(start time.Time) { s.observe(opWithdraw, start, err) }(time.Now())

	p, err := canonicalPhone(req.Phone)
	if err != nil {
		return nil, err
	}
	if err := s.validateAmount(req.Amount); err != nil {
		return nil, err
	}
	kind := req.Kind
	if kind == "" {
		kind = KindOrder
	}
	txType, ok := withdrawTypes[kind]
	if !ok {
		return nil, apperrors.InvalidRequest(fmt.Sprintf("unknown withdraw kind %q", kind), nil)
	}
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return nil, apperrors.InvalidRequest("orderId is required", nil)
	}
	key := fmt.Sprintf("withdraw:%s:%s", kind, orderID)

	now := s.clock()
	res = &WithdrawResult{
		Phone:            p,
		OrderID:          orderID,
		Amount:           req.Amount,
		Credits:          []TouchedCredit{},
		TransactionIDs:   []uint64{},
		TransactionCodes: []string{},
	}
	var w *model.Wallet
	err = s.repo.InTx(ctx, func(tx *gorm.DB) error {
		var err error
		if w, err = s.lockWallet(ctx, tx, p, true); err != nil {
			return err
		}
		if err := s.dupCheck(ctx, tx, &key); err != nil {
			return err
		}
		if err := s.checkDailyLimit(ctx, tx, w, req.Amount, now); err != nil {
			return err
		}

		locked, err := s.repo.GetActiveCreditsForUpdate(ctx, tx, w.ID)
		if err != nil {
			return err
		}
		s.syncVirtual(w, locked)
		live, _, err := s.expireDue(ctx, tx, w, locked, now)
		if err != nil {
			return err
		}

		cands := candidates(live)
		available := w.RealBalance.Add(selector.Available(cands))
		if available.LessThan(req.Amount) {
			return apperrors.InsufficientBalance(available, req.Amount)
		}

		// The idempotency key rides on the first row this withdrawal writes.
		rowKey := &key
		takeKey := func() *string {
			k := rowKey
			rowKey = nil
			return k
		}

		plan := selector.Select(cands, req.Amount)
		byID := make(map[uint64]*model.VirtualCredit, len(live))
		for i := range live {
			byID[live[i].ID] = &live[i]
		}
		for _, a := range plan.Allocations {
			c := byID[a.CreditID]
			before := snapshot(w)
			c.RemainingAmount = a.Remaining
			c.UsageHistory = append(c.UsageHistory, model.UsageEntry{OrderID: orderID, Amount: a.Amount, UsedAt: now})
			if a.Exhausted() {
				c.Status = model.CreditUsed
			}
			if err := s.repo.UpdateCredit(ctx, tx, c); err != nil {
				return err
			}
			w.VirtualBalance = w.VirtualBalance.Sub(a.Amount)

			creditID := c.ID
			row := &model.WalletTransaction{
				TransactionType: model.TxVirtualCreditUse,
				Amount:          a.Amount,
				VirtualCreditID: &creditID,
				SourceType:      kind,
				SourceID:        strPtr(orderID),
				Description:     req.Description,
				IdempotencyKey:  takeKey(),
			}
			if err := s.rec.Record(ctx, tx, w, before, now, row); err != nil {
				return err
			}
			res.TransactionIDs = append(res.TransactionIDs, row.ID)
			res.TransactionCodes = append(res.TransactionCodes, row.TransactionCode)
			res.Credits = append(res.Credits, TouchedCredit{
				CreditID:  c.ID,
				Used:      a.Amount,
				Remaining: c.RemainingAmount,
				Status:    c.Status,
				ExpiresAt: c.ExpiresAt,
			})
		}

		if plan.Shortfall.GreaterThan(decimal.Zero) {
			before := snapshot(w)
			w.RealBalance = w.RealBalance.Sub(plan.Shortfall)
			row := &model.WalletTransaction{
				TransactionType: txType,
				Amount:          plan.Shortfall,
				SourceType:      kind,
				SourceID:        strPtr(orderID),
				Description:     req.Description,
				IdempotencyKey:  takeKey(),
			}
			if err := s.rec.Record(ctx, tx, w, before, now, row); err != nil {
				return err
			}
			res.TransactionIDs = append(res.TransactionIDs, row.ID)
			res.TransactionCodes = append(res.TransactionCodes, row.TransactionCode)
		}

		w.VirtualBalance = activeSum(live)
		if err := s.repo.UpdateWallet(ctx, tx, w); err != nil {
			return err
		}
		res.VirtualUsed = plan.Covered
		res.RealUsed = plan.Shortfall
		return s.emit(ctx, tx, events.Withdrawn{
			WalletPhone:    p,
			OrderID:        orderID,
			Amount:         req.Amount,
			VirtualUsed:    plan.Covered,
			RealUsed:       plan.Shortfall,
			RealBalance:    w.RealBalance,
			VirtualBalance: w.VirtualBalance,
			At:             now,
		})
	})
	if err != nil {
		return nil, s.fail(opWithdraw, err, apperrors.ErrWalletNotFound)
	}

	res.RealBalance = w.RealBalance
	res.VirtualBalance = w.VirtualBalance
	s.refreshCache(ctx, w)
	metrics.AddAmount(opWithdraw, "virtual", res.VirtualUsed)
	metrics.AddAmount(opWithdraw, "real", res.RealUsed)
	s.log.Infow("withdraw applied",
		"phone", p, "order", orderID, "amount", req.Amount.String(),
		"virtual_used", res.VirtualUsed.String(), "real_used", res.RealUsed.String())
	return res, nil
}

// checkDailyLimit sums today's debits (UTC day) when a limit is configured.
func (s *WalletService) checkDailyLimit(ctx context.Context, tx *gorm.DB, w *model.Wallet, amt decimal.Decimal, now time.Time) error {
	limit := s.cfg.DailyWithdrawLimit
	if limit.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	used, err := s.repo.SumTransactionsSince(ctx, tx, w.ID, model.DebitTypes, startOfDay(now))
	if err != nil {
		return err
	}
	if used.Add(amt).GreaterThan(limit) {
		return apperrors.DailyLimitExceeded(used, amt, limit)
	}
	return nil
}

// expireDue moves every overdue credit in cs to EXPIRED, writing one
// virtual-credit-expire row and one outbox event each. The wallet's
// virtual balance is reduced in memory; the caller persists it. It returns
// the credits that are still usable.
func (s *WalletService) expireDue(ctx context.Context, tx *gorm.DB, w *model.Wallet, cs []model.VirtualCredit, now time.Time) ([]model.VirtualCredit, decimal.Decimal, error) {
	live := make([]model.VirtualCredit, 0, len(cs))
	forfeited := decimal.Zero
	for i := range cs {
		c := cs[i]
		if !c.ExpiredAt(now) {
			live = append(live, c)
			continue
		}
		before := snapshot(w)
		c.Status = model.CreditExpired
		if err := s.repo.UpdateCredit(ctx, tx, &c); err != nil {
			return nil, decimal.Zero, err
		}
		w.VirtualBalance = w.VirtualBalance.Sub(c.RemainingAmount)
		forfeited = forfeited.Add(c.RemainingAmount)

		creditID := c.ID
		row := &model.WalletTransaction{
			TransactionType: model.TxVirtualCreditExpire,
			Amount:          c.RemainingAmount,
			VirtualCreditID: &creditID,
			SourceType:      c.SourceType,
			SourceID:        c.SourceTicketID,
			Description:     "virtual credit expired",
		}
		if err := s.rec.Record(ctx, tx, w, before, now, row); err != nil {
			return nil, decimal.Zero, err
		}
		if err := s.emit(ctx, tx, events.CreditExpired{
			WalletPhone: w.Phone,
			CreditID:    c.ID,
			Forfeited:   c.RemainingAmount,
			At:          now,
		}); err != nil {
			return nil, decimal.Zero, err
		}
	}
	return live, forfeited, nil
}
