package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key (idempotency key,
	// transaction code, phone) is already taken.
	ErrDuplicate = errors.New("duplicate key")
	// ErrLockTimeout is returned when the row lock or the transaction
	// deadline could not be met. The transaction has been rolled back.
	ErrLockTimeout = errors.New("lock wait timeout")
)

// PostgreSQL SQLSTATEs that mean "gave up waiting".
const (
	pgLockNotAvailable = "55P03"
	pgQueryCanceled    = "57014"
)

// RepositoryInterface is the data access contract of the ledger. Methods
// taking tx run inside the caller's transaction; none of them decide
// anything about money.
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	GetWallet(ctx context.Context, phone string) (*model.Wallet, error)
	GetWalletForUpdate(ctx context.Context, tx *gorm.DB, phone string) (*model.Wallet, error)
	GetWalletByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint64) (*model.Wallet, error)
	EnsureWallet(ctx context.Context, tx *gorm.DB, w *model.Wallet) (bool, error)
	UpdateWallet(ctx context.Context, tx *gorm.DB, w *model.Wallet) error

	ListActiveCredits(ctx context.Context, walletID uint64) ([]model.VirtualCredit, error)
	GetActiveCreditsForUpdate(ctx context.Context, tx *gorm.DB, walletID uint64) ([]model.VirtualCredit, error)
	GetCreditForUpdate(ctx context.Context, tx *gorm.DB, walletID, creditID uint64) (*model.VirtualCredit, error)
	InsertCredit(ctx context.Context, tx *gorm.DB, c *model.VirtualCredit) error
	UpdateCredit(ctx context.Context, tx *gorm.DB, c *model.VirtualCredit) error
	WalletsWithExpiredCredits(ctx context.Context, now time.Time, limit int) ([]uint64, error)

	InsertTransaction(ctx context.Context, tx *gorm.DB, t *model.WalletTransaction) error
	FindTransactionByKey(ctx context.Context, tx *gorm.DB, key string) (*model.WalletTransaction, error)
	ListTransactions(ctx context.Context, walletID uint64, f TxFilter) ([]model.WalletTransaction, int64, error)
	SumTransactionsSince(ctx context.Context, tx *gorm.DB, walletID uint64, types []model.TransactionType, since time.Time) (decimal.Decimal, error)

	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error

	CacheBalance(ctx context.Context, phone string, b model.Balances) error
	GetCachedBalance(ctx context.Context, phone string) (model.Balances, error)
	InvalidateBalance(ctx context.Context, phone string) error
}

// Repository implements RepositoryInterface.
type Repository struct {
	db          *gorm.DB
	rdb         *redis.Client
	writer      *kafka.Writer
	log         *zap.SugaredLogger
	cacheTTL    time.Duration
	txTimeout   time.Duration
	lockTimeout time.Duration
}

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, rdb *redis.Client, w *kafka.Writer, logger *zap.SugaredLogger) *Repository {
	return &Repository{
		db:          db,
		rdb:         rdb,
		writer:      w,
		log:         logger,
		cacheTTL:    5 * time.Minute,
		txTimeout:   10 * time.Second,
		lockTimeout: 5 * time.Second,
	}
}

// WithTimeouts sets the transaction deadline and the row-lock wait.
func (r *Repository) WithTimeouts(txTimeout, lockTimeout time.Duration) *Repository {
	r.txTimeout = txTimeout
	r.lockTimeout = lockTimeout
	return r
}

// WithCacheTTL sets how long cached balances live.
func (r *Repository) WithCacheTTL(ttl time.Duration) *Repository {
	r.cacheTTL = ttl
	return r
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// InTx runs fn in one database transaction bounded by the tx timeout.
// Any error from fn, a lock wait or commit rolls everything back.
func (r *Repository) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if r.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.txTimeout)
		defer cancel()
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" && r.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(tx)
	})
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		r.log.Warnw("transaction deadline exceeded, rolled back", "timeout", r.txTimeout, "err", err)
		return fmt.Errorf("%w: %v", ErrLockTimeout, err)
	}
	return translate(err)
}

// translate maps driver errors onto the repo sentinels and leaves
// everything else (including errors returned by fn) untouched.
func translate(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDuplicate), errors.Is(err, ErrLockTimeout):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrLockTimeout, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgQueryCanceled:
			return fmt.Errorf("%w: %v", ErrLockTimeout, err)
		}
	}
	return err
}
