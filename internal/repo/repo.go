package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kudiwallet/ledger-service/internal/errs"
	"github.com/kudiwallet/ledger-service/internal/model"
)

// RepositoryInterface restricts Repo methods so services can take a
// test double.
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB

	CreateWallet(ctx context.Context, tx *gorm.DB, w *model.Wallet) error
	GetWallet(ctx context.Context, walletID uuid.UUID) (*model.Wallet, error)
	GetWalletByUser(ctx context.Context, userID uuid.UUID) (*model.Wallet, error)
	GetWalletForUpdate(ctx context.Context, tx *gorm.DB, walletID uuid.UUID) (*model.Wallet, error)
	GetWalletByUserForUpdate(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*model.Wallet, error)
	UpdateWalletBalance(ctx context.Context, tx *gorm.DB, walletID uuid.UUID, newBalance decimal.Decimal, oldVersion uint64) error
	SetWalletFrozen(ctx context.Context, walletID uuid.UUID, frozen bool) (*model.Wallet, error)
	UpdateWalletMetadata(ctx context.Context, walletID uuid.UUID, md model.JSON) (*model.Wallet, error)
	DeleteWallet(ctx context.Context, walletID uuid.UUID) error
	ListWallets(ctx context.Context) ([]model.Wallet, error)

	CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	TxByIdempotencyKey(ctx context.Context, tx *gorm.DB, userID uuid.UUID, key, txType string) (*model.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, fromStatus string, fields map[string]interface{}) error
	ListTransactions(ctx context.Context, q HistoryQuery) ([]model.Transaction, int64, error)
	TransactionStats(ctx context.Context, f StatsFilter) (*Stats, error)

	CreateExternalPayment(ctx context.Context, tx *gorm.DB, p *model.ExternalPayment) error
	GetExternalPaymentByProviderRef(ctx context.Context, provider, providerRef string) (*model.ExternalPayment, error)
	SaveExternalPayment(ctx context.Context, tx *gorm.DB, p *model.ExternalPayment) error

	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error

	CacheBalance(ctx context.Context, walletID uuid.UUID, bal decimal.Decimal) error
	GetCachedBalance(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error)
}

// HistoryQuery is the sanitized shape the history service hands down.
// SortField must already be a column name from the service allow-list.
type HistoryQuery struct {
	UserID    *uuid.UUID
	Status    string
	Type      string
	Search    string
	FromDate  *time.Time
	ToDate    *time.Time
	SortField string
	SortDesc  bool
	Page      int
	PageSize  int
}

// StatsFilter scopes aggregate statistics.
type StatsFilter struct {
	UserID   *uuid.UUID
	FromDate *time.Time
	ToDate   *time.Time
}

// Stats is the aggregate summary over the filtered transaction set.
type Stats struct {
	TotalTransactions int64           `json:"totalTransactions"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
	TotalFees         decimal.Decimal `json:"totalFees"`
	Completed         int64           `json:"completed"`
	Pending           int64           `json:"pending"`
	Failed            int64           `json:"failed"`
	Cancelled         int64           `json:"cancelled"`
	AverageAmount     decimal.Decimal `json:"averageAmount"`
	TodayCount        int64           `json:"todayCount"`
}

// Repository implements RepositoryInterface on gorm + redis + kafka.
type Repository struct {
	db     *gorm.DB
	rdb    *redis.Client
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, rdb *redis.Client, w *kafka.Writer, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, writer: w, log: logger}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// forUpdate applies row locking where the dialect supports it. The
// sqlite test driver has no FOR UPDATE; there the optimistic version
// check alone serializes writers.
func (r *Repository) forUpdate(tx *gorm.DB) *gorm.DB {
	if r.db.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// CreateWallet inserts a wallet; one wallet per user is enforced by
// the unique user index.
func (r *Repository) CreateWallet(ctx context.Context, tx *gorm.DB, w *model.Wallet) error {
	if tx == nil {
		tx = r.db
	}
	if err := tx.WithContext(ctx).Create(w).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.ErrDuplicateWallet
		}
		return errs.ErrStorageFailure.With(err)
	}
	return nil
}

func (r *Repository) GetWallet(ctx context.Context, walletID uuid.UUID) (*model.Wallet, error) {
	var w model.Wallet
	if err := r.db.WithContext(ctx).Where("id = ?", walletID).First(&w).Error; err != nil {
		return nil, walletErr(err)
	}
	return &w, nil
}

func (r *Repository) GetWalletByUser(ctx context.Context, userID uuid.UUID) (*model.Wallet, error) {
	var w model.Wallet
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, walletErr(err)
	}
	return &w, nil
}

// GetWalletForUpdate locks the wallet row inside tx.
func (r *Repository) GetWalletForUpdate(ctx context.Context, tx *gorm.DB, walletID uuid.UUID) (*model.Wallet, error) {
	var w model.Wallet
	if err := r.forUpdate(tx.WithContext(ctx)).Where("id = ?", walletID).First(&w).Error; err != nil {
		return nil, walletErr(err)
	}
	return &w, nil
}

// GetWalletByUserForUpdate locks the user's wallet row inside tx.
func (r *Repository) GetWalletByUserForUpdate(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*model.Wallet, error) {
	var w model.Wallet
	if err := r.forUpdate(tx.WithContext(ctx)).Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, walletErr(err)
	}
	return &w, nil
}

// UpdateWalletBalance applies the optimistic version check; a stale
// version surfaces as a retryable storage conflict.
func (r *Repository) UpdateWalletBalance(ctx context.Context, tx *gorm.DB, walletID uuid.UUID, newBalance decimal.Decimal, oldVersion uint64) error {
	res := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("id = ? AND version = ?", walletID, oldVersion).
		Updates(map[string]interface{}{
			"balance":    newBalance,
			"version":    oldVersion + 1,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return StorageError(res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.ErrStorageConflict
	}
	return nil
}

// SetWalletFrozen flips the frozen flag atomically. The state guard
// sits in the WHERE clause so two admins racing cannot both win.
func (r *Repository) SetWalletFrozen(ctx context.Context, walletID uuid.UUID, frozen bool) (*model.Wallet, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("id = ? AND frozen = ?", walletID, !frozen).
		Update("frozen", frozen)
	if res.Error != nil {
		return nil, errs.ErrStorageFailure.With(res.Error)
	}
	if res.RowsAffected == 0 {
		// either missing or already in the requested state
		if _, err := r.GetWallet(ctx, walletID); err != nil {
			return nil, err
		}
		return nil, errs.ErrWalletStateConflict
	}
	return r.GetWallet(ctx, walletID)
}

func (r *Repository) UpdateWalletMetadata(ctx context.Context, walletID uuid.UUID, md model.JSON) (*model.Wallet, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("id = ?", walletID).
		Update("metadata", md)
	if res.Error != nil {
		return nil, errs.ErrStorageFailure.With(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errs.ErrWalletNotFound
	}
	return r.GetWallet(ctx, walletID)
}

// DeleteWallet removes the wallet row. Administrative override only:
// transaction history keeps its references and is never cascaded.
func (r *Repository) DeleteWallet(ctx context.Context, walletID uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", walletID).Delete(&model.Wallet{})
	if res.Error != nil {
		return errs.ErrStorageFailure.With(res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.ErrWalletNotFound
	}
	return nil
}

func (r *Repository) ListWallets(ctx context.Context) ([]model.Wallet, error) {
	var ws []model.Wallet
	if err := r.db.WithContext(ctx).Order("created_at").Find(&ws).Error; err != nil {
		return nil, errs.ErrStorageFailure.With(err)
	}
	return ws, nil
}

// CreateTransaction inserts a ledger record. A collision on the
// unique reference index is reported distinctly so the transfer
// engine can regenerate and retry.
func (r *Repository) CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.Transaction) error {
	if tx == nil {
		tx = r.db
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.ErrDuplicateReference
		}
		return StorageError(err)
	}
	return nil
}

// TxByIdempotencyKey returns the record previously committed under
// key for this user and type, or nil when the key is unseen.
func (r *Repository) TxByIdempotencyKey(ctx context.Context, tx *gorm.DB, userID uuid.UUID, key, txType string) (*model.Transaction, error) {
	if key == "" {
		return nil, nil
	}
	if tx == nil {
		tx = r.db
	}
	var t model.Transaction
	err := tx.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ? AND type = ?", userID, key, txType).
		First(&t).Error
	if err == nil {
		return &t, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, StorageError(err)
}

func (r *Repository) GetTransaction(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	var t model.Transaction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTransactionNotFound
		}
		return nil, errs.ErrStorageFailure.With(err)
	}
	return &t, nil
}

// UpdateTransactionStatus writes fields on one record, guarded by the
// status it was read at. RowsAffected == 0 with the record present
// means a concurrent transition won the race.
func (r *Repository) UpdateTransactionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, fromStatus string, fields map[string]interface{}) error {
	if tx == nil {
		tx = r.db
	}
	res := tx.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(fields)
	if res.Error != nil {
		return StorageError(res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetTransaction(ctx, id); err != nil {
			return err
		}
		return errs.ErrStorageConflict
	}
	return nil
}

// ListTransactions runs the paged history query and its total count
// over the same filter.
func (r *Repository) ListTransactions(ctx context.Context, q HistoryQuery) ([]model.Transaction, int64, error) {
	var total int64
	if err := r.applyHistoryFilter(r.db.WithContext(ctx).Model(&model.Transaction{}), q).
		Count(&total).Error; err != nil {
		return nil, 0, errs.ErrStorageFailure.With(err)
	}

	order := q.SortField
	if order == "" {
		order = "created_at"
	}
	if q.SortDesc {
		order += " desc"
	}

	var txs []model.Transaction
	err := r.applyHistoryFilter(r.db.WithContext(ctx).Model(&model.Transaction{}), q).
		Order(order).
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&txs).Error
	if err != nil {
		return nil, 0, errs.ErrStorageFailure.With(err)
	}
	return txs, total, nil
}

func (r *Repository) applyHistoryFilter(db *gorm.DB, q HistoryQuery) *gorm.DB {
	if q.UserID != nil {
		db = db.Where("user_id = ?", *q.UserID)
	}
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	if q.Type != "" {
		db = db.Where("type = ?", q.Type)
	}
	if q.FromDate != nil {
		db = db.Where("created_at >= ?", *q.FromDate)
	}
	if q.ToDate != nil {
		db = db.Where("created_at <= ?", *q.ToDate)
	}
	if q.Search != "" {
		needle := "%" + q.Search + "%"
		db = db.Where(
			"LOWER(reference) LIKE LOWER(?) OR LOWER(status) LIKE LOWER(?) OR LOWER(type) LIKE LOWER(?)",
			needle, needle, needle,
		)
	}
	return db
}

// TransactionStats aggregates the filtered set in one pass.
func (r *Repository) TransactionStats(ctx context.Context, f StatsFilter) (*Stats, error) {
	db := r.db.WithContext(ctx).Model(&model.Transaction{})
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	if f.FromDate != nil {
		db = db.Where("created_at >= ?", *f.FromDate)
	}
	if f.ToDate != nil {
		db = db.Where("created_at <= ?", *f.ToDate)
	}

	startOfDay := time.Now().UTC().Truncate(24 * time.Hour)
	var s Stats
	err := db.Select(`
		COUNT(*) AS total_transactions,
		COALESCE(SUM(amount), 0) AS total_amount,
		COALESCE(SUM(fee), 0) AS total_fees,
		COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0) AS completed,
		COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0) AS pending,
		COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0) AS failed,
		COALESCE(SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END), 0) AS cancelled,
		COALESCE(AVG(amount), 0) AS average_amount,
		COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0) AS today_count`, startOfDay).
		Scan(&s).Error
	if err != nil {
		return nil, errs.ErrStorageFailure.With(err)
	}
	return &s, nil
}

func (r *Repository) CreateExternalPayment(ctx context.Context, tx *gorm.DB, p *model.ExternalPayment) error {
	if tx == nil {
		tx = r.db
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		return errs.ErrStorageFailure.With(err)
	}
	return nil
}

func (r *Repository) GetExternalPaymentByProviderRef(ctx context.Context, provider, providerRef string) (*model.ExternalPayment, error) {
	var p model.ExternalPayment
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_reference = ?", provider, providerRef).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrPaymentNotFound
		}
		return nil, errs.ErrStorageFailure.With(err)
	}
	return &p, nil
}

func (r *Repository) SaveExternalPayment(ctx context.Context, tx *gorm.DB, p *model.ExternalPayment) error {
	if tx == nil {
		tx = r.db
	}
	if err := tx.WithContext(ctx).Save(p).Error; err != nil {
		return errs.ErrStorageFailure.With(err)
	}
	return nil
}

// CreateOutboxEvent writes event.
func (r *Repository) CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error {
	if tx == nil {
		tx = r.db
	}
	if err := tx.WithContext(ctx).Create(evt).Error; err != nil {
		return StorageError(err)
	}
	return nil
}

// PollOutbox pulls unprocessed events.
func (r *Repository) PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	var evts []model.OutboxEvent
	err := r.db.WithContext(ctx).Where("processed = false").Order("created_at").Limit(limit).Find(&evts).Error
	return evts, err
}

// MarkOutboxProcessed sets processed flag.
func (r *Repository) MarkOutboxProcessed(ctx context.Context, id uint64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{"processed": true, "processed_at": &now}).Error
}

// PublishEvent sends to Kafka.
func (r *Repository) PublishEvent(ctx context.Context, evt model.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("%d", evt.ID)),
		Value: []byte(evt.Payload),
		Time:  time.Now(),
	}
	return r.writer.WriteMessages(ctx, msg)
}

// CacheBalance writes Redis, best-effort at every call site.
func (r *Repository) CacheBalance(ctx context.Context, walletID uuid.UUID, bal decimal.Decimal) error {
	return r.rdb.Set(ctx, "balance:"+walletID.String(), bal.String(), 5*time.Minute).Err()
}

// GetCachedBalance reads Redis.
func (r *Repository) GetCachedBalance(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	str, err := r.rdb.Get(ctx, "balance:"+walletID.String()).Result()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(str)
}

func walletErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.ErrWalletNotFound
	}
	return StorageError(err)
}

// StorageError classifies a raw storage error: transient
// serialization conditions become the retryable conflict, everything
// else is fatal.
func StorageError(err error) error {
	if transient(err) {
		return errs.ErrStorageConflict.With(err)
	}
	return errs.ErrStorageFailure.With(err)
}

// transient matches sqlite busy/locked conditions and postgres
// serialization or deadlock aborts (SQLSTATE 40001/40P01), all of
// which clear on retry.
func transient(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLSTATE 40001") ||
		strings.Contains(msg, "SQLSTATE 40P01")
}
