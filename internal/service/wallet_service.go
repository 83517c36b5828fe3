package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/richardliu001/wallet-ledger/internal/apperrors"
	"github.com/richardliu001/wallet-ledger/internal/config"
	"github.com/richardliu001/wallet-ledger/internal/events"
	"github.com/richardliu001/wallet-ledger/internal/metrics"
	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/richardliu001/wallet-ledger/internal/phone"
	"github.com/richardliu001/wallet-ledger/internal/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opCreateWallet = "create_wallet"
	opDeposit      = "deposit"
	opWithdraw     = "withdraw"
	opIssue        = "issue_credit"
	opCancel       = "cancel_credit"
	opExpire       = "expire_credits"
	opFreeze       = "freeze"
	opReconcile    = "reconcile"
)

// WalletService glues business logic and repository. Every mutation locks
// exactly one wallet row, as the first statement of its transaction.
type WalletService struct {
	repo repo.RepositoryInterface
	rec  *Recorder
	cfg  config.LedgerConfig
	log  *zap.SugaredLogger
	now  func() time.Time
}

// NewWalletService returns WalletService.
func NewWalletService(r repo.RepositoryInterface, cfg config.LedgerConfig, logger *zap.SugaredLogger) *WalletService {
	return &WalletService{
		repo: r,
		rec:  NewRecorder(r),
		cfg:  cfg,
		log:  logger,
		now:  time.Now,
	}
}

// WithClock replaces the time source.
func (s *WalletService) WithClock(now func() time.Time) *WalletService {
	s.now = now
	return s
}

// Repo exposes underlying repository; the health check and tests use it.
func (s *WalletService) Repo() repo.RepositoryInterface {
	return s.repo
}

func (s *WalletService) clock() time.Time { return s.now().UTC() }

func canonicalPhone(raw string) (string, error) {
	p, ok := phone.Canonical(raw)
	if !ok {
		return "", apperrors.ErrInvalidPhone.With(map[string]interface{}{"phone": raw})
	}
	return p, nil
}

func (s *WalletService) validateAmount(amt decimal.Decimal) error {
	if amt.LessThanOrEqual(decimal.Zero) || !amt.Equal(amt.Round(2)) {
		return apperrors.ErrInvalidAmount.With(map[string]interface{}{"amount": amt.String()})
	}
	if amt.GreaterThan(s.cfg.MaxAmount) {
		return apperrors.AmountExceedsLimit(s.cfg.MaxAmount)
	}
	return nil
}

// fail maps whatever came out of a transaction onto the public taxonomy.
// notFound is what a missing wallet means for the calling operation.
func (s *WalletService) fail(op string, err error, notFound *apperrors.AppError) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, repo.ErrLockTimeout):
		return apperrors.ErrLockTimeout.Wrap(err)
	case errors.Is(err, repo.ErrDuplicate):
		return apperrors.ErrDuplicateTransaction.Wrap(err)
	case errors.Is(err, repo.ErrNotFound) && notFound != nil:
		return notFound.Wrap(err)
	}
	s.log.Errorw("ledger operation failed", "op", op, "err", err)
	return apperrors.Internal(err)
}

func (s *WalletService) observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = apperrors.From(err).Code
	}
	metrics.RecordOperation(op, result, time.Since(start).Seconds())
}

func (s *WalletService) lockWallet(ctx context.Context, tx *gorm.DB, p string, mutating bool) (*model.Wallet, error) {
	w, err := s.repo.GetWalletForUpdate(ctx, tx, p)
	if err != nil {
		return nil, err
	}
	if mutating && w.IsFrozen {
		return nil, apperrors.ErrWalletFrozen.With(map[string]interface{}{"reason": w.FrozenReason})
	}
	return w, nil
}

// dupCheck rejects a key that an earlier committed operation already used.
func (s *WalletService) dupCheck(ctx context.Context, tx *gorm.DB, key *string) error {
	if key == nil {
		return nil
	}
	prior, err := s.repo.FindTransactionByKey(ctx, tx, *key)
	if err != nil {
		return err
	}
	if prior != nil {
		return apperrors.ErrDuplicateTransaction.With(map[string]interface{}{
			"transactionCode": prior.TransactionCode,
		})
	}
	return nil
}

func (s *WalletService) emit(ctx context.Context, tx *gorm.DB, e events.Event) error {
	name, payload, err := events.Encode(e)
	if err != nil {
		return err
	}
	return s.repo.CreateOutboxEvent(ctx, tx, &model.OutboxEvent{
		Aggregate:   events.Aggregate,
		AggregateID: e.Phone(),
		EventType:   name,
		Payload:     payload,
	})
}

// refreshCache runs after commit only. When the write fails the entry is
// dropped so readers fall back to the database.
func (s *WalletService) refreshCache(ctx context.Context, w *model.Wallet) {
	err := s.repo.CacheBalance(ctx, w.Phone, w.Balances())
	if err == nil {
		return
	}
	if delErr := s.repo.InvalidateBalance(ctx, w.Phone); delErr != nil {
		err = fmt.Errorf("%v; invalidate: %w", err, delErr)
	}
	s.log.Warnw("balance cache refresh failed", "phone", w.Phone, "err", err)
}

func activeSum(cs []model.VirtualCredit) decimal.Decimal {
	sum := decimal.Zero
	for _, c := range cs {
		if c.Status == model.CreditActive {
			sum = sum.Add(c.RemainingAmount)
		}
	}
	return sum
}

// syncVirtual makes the stored virtual balance equal the sum of the locked
// ACTIVE credits and returns the drift it corrected.
func (s *WalletService) syncVirtual(w *model.Wallet, cs []model.VirtualCredit) decimal.Decimal {
	computed := activeSum(cs)
	drift := w.VirtualBalance.Sub(computed)
	if !drift.IsZero() {
		s.log.Warnw("virtual balance drift corrected",
			"phone", w.Phone, "stored", w.VirtualBalance.String(), "computed", computed.String())
		metrics.RecordDrift()
		w.VirtualBalance = computed
	}
	return drift
}

// CreateWallet onboards a customer with zero balances.
func (s *WalletService) CreateWallet(ctx context.Context, rawPhone, customerName string) (w *model.Wallet, err error) {
	defer func(start time.Time) { s.observe(opCreateWallet, start, err) }(time.Now())

	p, err := canonicalPhone(rawPhone)
	if err != nil {
		return nil, err
	}
	w = &model.Wallet{Phone: p, CustomerName: customerName, RealBalance: decimal.Zero, VirtualBalance: decimal.Zero}
	now := s.clock()
	err = s.repo.InTx(ctx, func(tx *gorm.DB) error {
		created, err := s.repo.EnsureWallet(ctx, tx, w)
		if err != nil {
			return err
		}
		if !created {
			return apperrors.ErrWalletAlreadyExists.With(map[string]interface{}{"phone": p})
		}
		return s.emit(ctx, tx, events.WalletCreated{WalletPhone: p, CustomerName: customerName, At: now})
	})
	if err != nil {
		return nil, s.fail(opCreateWallet, err, nil)
	}
	s.log.Infow("wallet created", "phone", p)
	s.refreshCache(ctx, w)
	return w, nil
}

// Deposit adds money to the real balance.
func (s *WalletService) Deposit(ctx context.Context, req DepositRequest) (res *DepositResult, err error) {
	defer func(start time.Time) { s.observe(opDeposit, start, err) }(time.Now())

	p, err := canonicalPhone(req.Phone)
	if err != nil {
		return nil, err
	}
	if err := s.validateAmount(req.Amount); err != nil {
		return nil, err
	}
	txType, ok := depositTypes[req.SourceType]
	if !ok {
		return nil, apperrors.InvalidRequest(fmt.Sprintf("unknown sourceType %q", req.SourceType), nil)
	}
	var key *string
	if req.SourceID != "" {
		k := fmt.Sprintf("deposit:%s:%s", req.SourceType, req.SourceID)
		key = &k
	}

	res = &DepositResult{Phone: p, Amount: req.Amount}
	now := s.clock()
	var w *model.Wallet
	err = s.repo.InTx(ctx, func(tx *gorm.DB) error {
		// A wallet created here goes away with the deposit if it fails.
		if s.cfg.AutoCreateOnDeposit {
			fresh := &model.Wallet{Phone: p, RealBalance: decimal.Zero, VirtualBalance: decimal.Zero}
			created, err := s.repo.EnsureWallet(ctx, tx, fresh)
			if err != nil {
				return err
			}
			if created {
				res.WalletCreated = true
				if err := s.emit(ctx, tx, events.WalletCreated{WalletPhone: p, At: now}); err != nil {
					return err
				}
			}
		}
		var err error
		if w, err = s.lockWallet(ctx, tx, p, true); err != nil {
			return err
		}
		if err := s.dupCheck(ctx, tx, key); err != nil {
			return err
		}
		before := snapshot(w)
		w.RealBalance = w.RealBalance.Add(req.Amount)
		if err := s.repo.UpdateWallet(ctx, tx, w); err != nil {
			return err
		}
		row := &model.WalletTransaction{
			TransactionType: txType,
			Amount:          req.Amount,
			SourceType:      req.SourceType,
			SourceID:        strPtr(req.SourceID),
			Description:     req.Description,
			InternalNote:    req.InternalNote,
			IdempotencyKey:  key,
		}
		if err := s.rec.Record(ctx, tx, w, before, now, row); err != nil {
			return err
		}
		res.TransactionID = row.ID
		res.TransactionCode = row.TransactionCode
		return s.emit(ctx, tx, events.Deposited{
			WalletPhone:     p,
			TransactionCode: row.TransactionCode,
			Amount:          req.Amount,
			SourceType:      req.SourceType,
			RealBalance:     w.RealBalance,
			At:              now,
		})
	})
	if err != nil {
		return nil, s.fail(opDeposit, err, apperrors.ErrWalletNotFound)
	}

	if res.WalletCreated {
		s.log.Infow("wallet auto-created on deposit", "phone", p)
	}
	res.RealBalance = w.RealBalance
	res.VirtualBalance = w.VirtualBalance
	s.refreshCache(ctx, w)
	metrics.AddAmount(opDeposit, "real", req.Amount)
	s.log.Infow("deposit applied", "phone", p, "amount", req.Amount.String(), "code", res.TransactionCode)
	return res, nil
}

// Freeze blocks deposits, withdrawals and issuance on the wallet.
func (s *WalletService) Freeze(ctx context.Context, rawPhone, reason string) (*model.Wallet, error) {
	return s.setFrozen(ctx, rawPhone, true, reason)
}

// Unfreeze lifts a freeze.
func (s *WalletService) Unfreeze(ctx context.Context, rawPhone, reason string) (*model.Wallet, error) {
	return s.setFrozen(ctx, rawPhone, false, reason)
}

func (s *WalletService) setFrozen(ctx context.Context, rawPhone string, frozen bool, reason string) (w *model.Wallet, err error) {
	defer func(start time.Time) { s.observe(opFreeze, start, err) }(time.Now())

	p, err := canonicalPhone(rawPhone)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	err = s.repo.InTx(ctx, func(tx *gorm.DB) error {
		var err error
		if w, err = s.lockWallet(ctx, tx, p, false); err != nil {
			return err
		}
		if w.IsFrozen == frozen {
			return nil
		}
		w.IsFrozen = frozen
		w.FrozenReason = ""
		if frozen {
			w.FrozenReason = reason
		}
		if err := s.repo.UpdateWallet(ctx, tx, w); err != nil {
			return err
		}
		return s.emit(ctx, tx, events.FreezeChanged{WalletPhone: p, Frozen: frozen, Reason: reason, At: now})
	})
	if err != nil {
		return nil, s.fail(opFreeze, err, apperrors.ErrWalletNotFound)
	}
	s.log.Infow("wallet freeze changed", "phone", p, "frozen", frozen, "reason", reason)
	return w, nil
}

// GetWallet returns the wallet, its ACTIVE credits and the latest rows.
func (s *WalletService) GetWallet(ctx context.Context, rawPhone string) (*WalletView, error) {
	p, err := canonicalPhone(rawPhone)
	if err != nil {
		return nil, err
	}
	w, err := s.repo.GetWallet(ctx, p)
	if err != nil {
		return nil, s.fail("get_wallet", err, apperrors.ErrWalletNotFound)
	}
	credits, err := s.repo.ListActiveCredits(ctx, w.ID)
	if err != nil {
		return nil, s.fail("get_wallet", err, nil)
	}
	if credits == nil {
		credits = []model.VirtualCredit{}
	}
	recent, err := s.rec.History(ctx, w.ID, HistoryQuery{Limit: s.cfg.RecentTransactions})
	if err != nil {
		return nil, s.fail("get_wallet", err, nil)
	}
	return &WalletView{
		Wallet:             *w,
		TotalBalance:       w.Total(),
		ActiveCredits:      credits,
		RecentTransactions: recent.Items,
	}, nil
}

// GetBalance serves from Redis when possible and falls back to the DB.
func (s *WalletService) GetBalance(ctx context.Context, rawPhone string) (model.Balances, error) {
	p, err := canonicalPhone(rawPhone)
	if err != nil {
		return model.Balances{}, err
	}
	if b, err := s.repo.GetCachedBalance(ctx, p); err == nil {
		return b, nil
	}
	w, err := s.repo.GetWallet(ctx, p)
	if err != nil {
		return model.Balances{}, s.fail("get_balance", err, apperrors.ErrWalletNotFound)
	}
	s.refreshCache(ctx, w)
	return w.Balances(), nil
}

// GetTransactionHistory pages through the wallet's audit rows.
func (s *WalletService) GetTransactionHistory(ctx context.Context, rawPhone string, q HistoryQuery) (*HistoryPage, error) {
	p, err := canonicalPhone(rawPhone)
	if err != nil {
		return nil, err
	}
	w, err := s.repo.GetWallet(ctx, p)
	if err != nil {
		return nil, s.fail("history", err, apperrors.ErrWalletNotFound)
	}
	page, err := s.rec.History(ctx, w.ID, q)
	if err != nil {
		return nil, s.fail("history", err, nil)
	}
	return page, nil
}

// Reconcile recomputes the virtual balance from the ACTIVE credits under
// the wallet lock and repairs any drift.
func (s *WalletService) Reconcile(ctx context.Context, rawPhone string) (res *ReconcileResult, err error) {
	defer func(start time.Time) { s.observe(opReconcile, start, err) }(time.Now())

	p, err := canonicalPhone(rawPhone)
	if err != nil {
		return nil, err
	}
	var w *model.Wallet
	res = &ReconcileResult{Phone: p}
	err = s.repo.InTx(ctx, func(tx *gorm.DB) error {
		var err error
		if w, err = s.lockWallet(ctx, tx, p, false); err != nil {
			return err
		}
		credits, err := s.repo.GetActiveCreditsForUpdate(ctx, tx, w.ID)
		if err != nil {
			return err
		}
		res.Stored = w.VirtualBalance
		res.Drift = s.syncVirtual(w, credits)
		res.Computed = w.VirtualBalance
		if res.Drift.IsZero() {
			return nil
		}
		res.Repaired = true
		return s.repo.UpdateWallet(ctx, tx, w)
	})
	if err != nil {
		return nil, s.fail(opReconcile, err, apperrors.ErrWalletNotFound)
	}
	if res.Repaired {
		s.refreshCache(ctx, w)
	}
	return res, nil
}
