package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kudiwallet/ledger-service/internal/errs"
	"github.com/kudiwallet/ledger-service/internal/model"
	"github.com/kudiwallet/ledger-service/internal/ref"
	"github.com/kudiwallet/ledger-service/internal/repo"
)

const (
	// maxConflictRetries bounds whole-attempt retries after an
	// optimistic lock conflict on either wallet row.
	maxConflictRetries = 3
	// maxReferenceRetries bounds regeneration after the storage
	// uniqueness index rejects a reference.
	maxReferenceRetries = 3
	// maxIdempotencyKeyLength matches the column width.
	maxIdempotencyKeyLength = 64
)

// TransferResult reports a committed internal transfer.
type TransferResult struct {
	TransactionID      uuid.UUID       `json:"transactionId"`
	Reference          string          `json:"reference"`
	Amount             decimal.Decimal `json:"amount"`
	Fee                decimal.Decimal `json:"fee"`
	Status             string          `json:"status"`
	SourceBalance      decimal.Decimal `json:"sourceBalance"`
	DestinationBalance decimal.Decimal `json:"destinationBalance"`
}

// Transfer moves amount from the initiating user's wallet to the
// destination wallet, deducting the internal fee from the source.
// Exactly one ledger record is created and two balances mutated, all
// inside one transaction scope; on any failure nothing is written.
// A non-empty idempotencyKey dedupes retried submissions: a replay
// returns the originally committed result without moving money again.
func (s *LedgerService) Transfer(ctx context.Context, sourceUserID uuid.UUID, destWalletID string, amount decimal.Decimal, description, idempotencyKey string) (*TransferResult, error) {
	destID, err := uuid.Parse(destWalletID)
	if err != nil {
		return nil, errs.ErrValidation.Withf("invalid destination wallet id")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, errs.ErrValidation.Withf("amount must be a positive number")
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, errs.ErrValidation.Withf("description is required")
	}
	if len(idempotencyKey) > maxIdempotencyKeyLength {
		return nil, errs.ErrValidation.Withf("idempotency key too long, maximum %d characters", maxIdempotencyKeyLength)
	}

	var (
		result   *TransferResult
		lastErr  error
		refTries = 0
	)
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		result, lastErr = s.transferOnce(ctx, sourceUserID, destID, amount, description, idempotencyKey)
		if lastErr == nil {
			break
		}
		if errors.Is(lastErr, errs.ErrDuplicateReference) {
			refTries++
			if refTries >= maxReferenceRetries {
				return nil, errs.ErrReferenceGeneration.With(lastErr)
			}
			attempt-- // a collision does not consume a conflict retry
			continue
		}
		if errors.Is(lastErr, errs.ErrStorageConflict) {
			s.log.Warnw("transfer conflict, retrying",
				"sourceUser", sourceUserID, "destWallet", destID, "attempt", attempt+1)
			continue
		}
		return nil, lastErr
	}
	if lastErr != nil {
		if errors.Is(lastErr, errs.ErrStorageConflict) {
			return nil, errs.ErrTransferFailed.With(lastErr)
		}
		return nil, lastErr
	}

	s.log.Infow("transfer completed",
		"reference", result.Reference, "amount", result.Amount, "fee", result.Fee)
	return result, nil
}

// transferOnce is one atomic attempt; every read and write below
// shares the same transaction scope so a failure at any step rolls
// the whole attempt back.
func (s *LedgerService) transferOnce(ctx context.Context, sourceUserID, destID uuid.UUID, amount decimal.Decimal, description, idempotencyKey string) (*TransferResult, error) {
	var (
		result       *TransferResult
		srcID, dstID uuid.UUID
		replayed     bool
	)
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		// A seen idempotency key short-circuits to the committed
		// result before anything is locked or mutated.
		prior, err := s.repo.TxByIdempotencyKey(ctx, tx, sourceUserID, idempotencyKey, model.TypeTransfer)
		if err != nil {
			return err
		}
		if prior != nil {
			result = replayResult(prior)
			replayed = true
			return nil
		}

		// Unlocked peek resolves the source wallet id so both rows
		// can then be locked in deterministic order.
		peek, err := s.repo.GetWalletByUser(ctx, sourceUserID)
		if err != nil {
			return err
		}
		if peek.ID == destID {
			return errs.ErrSameWallet
		}

		firstID, secondID := peek.ID, destID
		if secondID.String() < firstID.String() {
			firstID, secondID = secondID, firstID
		}
		w1, err := s.repo.GetWalletForUpdate(ctx, tx, firstID)
		if err != nil {
			return err
		}
		w2, err := s.repo.GetWalletForUpdate(ctx, tx, secondID)
		if err != nil {
			return err
		}
		src, dst := w1, w2
		if src.ID != peek.ID {
			src, dst = w2, w1
		}

		if src.Frozen {
			return errs.ErrWalletFrozen.Withf("source wallet is frozen")
		}
		if dst.Frozen {
			return errs.ErrWalletFrozen.Withf("destination wallet is frozen")
		}

		quote := s.feePolicy.Quote(amount)
		if src.Balance.LessThan(quote.TotalDeduction) {
			return errs.ErrInsufficientBalance
		}

		srcBefore := src.Balance
		srcAfter := srcBefore.Sub(quote.TotalDeduction)
		dstBefore := dst.Balance
		dstAfter := dstBefore.Add(amount)

		reference, err := ref.New(model.TypeTransfer)
		if err != nil {
			return errs.ErrReferenceGeneration.With(err)
		}

		now := time.Now()
		record := &model.Transaction{
			UserID:        &sourceUserID,
			FromWalletID:  &src.ID,
			ToWalletID:    &dst.ID,
			Amount:        amount,
			Description:   description,
			Fee:           quote.Fee,
			BalanceBefore: srcBefore,
			BalanceAfter:  srcAfter,
			Currency:      src.Currency,
			Status:        model.StatusCompleted,
			Type:          model.TypeTransfer,
			Reference:     reference,
			Settled:       true,
			ProcessedAt:   &now,
			Metadata: model.JSON{
				model.MetaReceiverBalanceBefore: dstBefore.String(),
				model.MetaReceiverBalanceAfter:  dstAfter.String(),
			},
		}
		if idempotencyKey != "" {
			record.IdempotencyKey = &idempotencyKey
		}
		if err := s.repo.CreateTransaction(ctx, tx, record); err != nil {
			return err
		}

		if err := s.repo.UpdateWalletBalance(ctx, tx, src.ID, srcAfter, src.Version); err != nil {
			return err
		}
		if err := s.repo.UpdateWalletBalance(ctx, tx, dst.ID, dstAfter, dst.Version); err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"reference": reference,
			"from":      src.ID,
			"to":        dst.ID,
			"amount":    amount,
			"fee":       quote.Fee,
		})
		evt := &model.OutboxEvent{
			Aggregate:   "Transaction",
			AggregateID: record.ID.String(),
			EventType:   model.EventTransferCompleted,
			Payload:     string(payload),
		}
		if err := s.repo.CreateOutboxEvent(ctx, tx, evt); err != nil {
			return err
		}

		srcID, dstID = src.ID, dst.ID
		result = &TransferResult{
			TransactionID:      record.ID,
			Reference:          reference,
			Amount:             amount,
			Fee:                quote.Fee,
			Status:             record.Status,
			SourceBalance:      srcAfter,
			DestinationBalance: dstAfter,
		}
		return nil
	})
	if err != nil {
		var de *errs.Error
		if !errors.As(err, &de) {
			// begin/commit failures reach here untyped
			return nil, repo.StorageError(err)
		}
		return nil, err
	}
	if replayed {
		return result, nil
	}

	// cache refresh only after the commit; failures just log
	if err := s.repo.CacheBalance(ctx, srcID, result.SourceBalance); err != nil {
		s.log.Warnw("cache source balance", "err", err)
	}
	if err := s.repo.CacheBalance(ctx, dstID, result.DestinationBalance); err != nil {
		s.log.Warnw("cache destination balance", "err", err)
	}
	return result, nil
}

// replayResult rebuilds the caller-facing result from a committed
// record matched by idempotency key. The receiving side's balance
// snapshot travels in metadata (see model.MetaReceiverBalanceAfter).
func replayResult(t *model.Transaction) *TransferResult {
	res := &TransferResult{
		TransactionID: t.ID,
		Reference:     t.Reference,
		Amount:        t.Amount,
		Fee:           t.Fee,
		Status:        t.Status,
		SourceBalance: t.BalanceAfter,
	}
	if v, ok := t.Metadata[model.MetaReceiverBalanceAfter].(string); ok {
		if d, err := decimal.NewFromString(v); err == nil {
			res.DestinationBalance = d
		}
	}
	return res
}
