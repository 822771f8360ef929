package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kudiwallet/ledger-service/internal/errs"
	"github.com/kudiwallet/ledger-service/internal/model"
)

var supportedProviders = map[string]bool{
	model.ProviderStripe:      true,
	model.ProviderPaypal:      true,
	model.ProviderFlutterwave: true,
	model.ProviderPaystack:    true,
	model.ProviderBank:        true,
	model.ProviderCrypto:      true,
	model.ProviderManual:      true,
}

// systemActor tags status transitions driven by webhook
// reconciliation rather than a human administrator.
var systemActor = uuid.Nil

// RecordExternalPayment opens the reconciliation shadow for a
// gateway-sourced movement. The shadow never owns a balance mutation;
// it only correlates the provider side with the internal record.
func (s *LedgerService) RecordExternalPayment(ctx context.Context, txID uuid.UUID, provider, providerRef string, fee decimal.Decimal, data model.JSON) (*model.ExternalPayment, error) {
	if !supportedProviders[provider] {
		return nil, errs.ErrValidation.Withf("unsupported provider %q", provider)
	}
	t, err := s.repo.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	p := &model.ExternalPayment{
		TransactionID:     t.ID,
		Provider:          provider,
		ProviderReference: providerRef,
		ProviderData:      data,
		Amount:            t.Amount,
		Currency:          t.Currency,
		Fee:               fee,
		Status:            model.StatusPending,
	}
	if err := s.repo.CreateExternalPayment(ctx, nil, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ReconcileWebhook ingests one provider notification: it updates the
// shadow's bookkeeping (attempt count, last attempt, payload,
// gateway response) and, when the notification settles an internal
// pending record, drives that record through the status state
// machine. A completed deposit additionally credits the target
// wallet; all other outcomes only move the record's status.
func (s *LedgerService) ReconcileWebhook(ctx context.Context, provider, providerRef, status, gatewayResponse string, payload model.JSON) (*model.ExternalPayment, error) {
	switch status {
	case model.StatusCompleted, model.StatusFailed, model.StatusPending:
	default:
		return nil, errs.ErrValidation.Withf("invalid provider status %q", status)
	}

	p, err := s.repo.GetExternalPaymentByProviderRef(ctx, provider, providerRef)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	p.Attempts++
	p.LastAttemptAt = &now
	p.Status = status
	p.GatewayResponse = gatewayResponse
	if payload != nil {
		if p.ProviderData == nil {
			p.ProviderData = model.JSON{}
		}
		for k, v := range payload {
			p.ProviderData[k] = v
		}
	}
	if err := s.repo.SaveExternalPayment(ctx, nil, p); err != nil {
		return nil, err
	}

	if status == model.StatusPending {
		return p, nil
	}

	t, err := s.repo.GetTransaction(ctx, p.TransactionID)
	if err != nil {
		return nil, err
	}
	if t.Terminal() {
		s.log.Infow("webhook for settled transaction ignored",
			"transaction", t.ID, "provider", provider, "providerRef", providerRef)
		return p, nil
	}

	reason := "provider " + provider + " webhook"
	if status == model.StatusCompleted && t.Type == model.TypeDeposit {
		if err := s.settleDeposit(ctx, t, reason); err != nil {
			return nil, err
		}
		return p, nil
	}
	if _, err := s.UpdateStatus(ctx, t.ID, status, systemActor, reason); err != nil {
		return nil, err
	}
	return p, nil
}

// settleDeposit credits the target wallet and completes the pending
// record under the same transaction discipline as a transfer: status
// flip and balance mutation commit together or not at all. The
// optimistic version check serializes against concurrent transfers
// touching the same wallet, so conflicts are retried.
func (s *LedgerService) settleDeposit(ctx context.Context, t *model.Transaction, reason string) error {
	var (
		walletID uuid.UUID
		after    decimal.Decimal
		lastErr  error
	)
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		lastErr = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
			var w *model.Wallet
			var err error
			switch {
			case t.ToWalletID != nil:
				w, err = s.repo.GetWalletForUpdate(ctx, tx, *t.ToWalletID)
			case t.UserID != nil:
				w, err = s.repo.GetWalletByUserForUpdate(ctx, tx, *t.UserID)
			default:
				return errs.ErrValidation.Withf("deposit record names no wallet to credit")
			}
			if err != nil {
				return err
			}
			if w.Frozen {
				return errs.ErrWalletFrozen.Withf("deposit wallet is frozen")
			}

			before := w.Balance
			after = before.Add(t.Amount)
			now := time.Now()
			fields := map[string]interface{}{
				"status":           model.StatusCompleted,
				"settled":          true,
				"processed_at":     now,
				"last_modified_by": systemActor,
				"last_modified_at": now,
				"balance_before":   before,
				"balance_after":    after,
				"to_wallet_id":     w.ID,
			}
			if err := s.repo.UpdateTransactionStatus(ctx, tx, t.ID, model.StatusPending, fields); err != nil {
				return err
			}
			if err := s.repo.UpdateWalletBalance(ctx, tx, w.ID, after, w.Version); err != nil {
				return err
			}
			walletID = w.ID
			return nil
		})
		if lastErr == nil || !errors.Is(lastErr, errs.ErrStorageConflict) {
			break
		}
		s.log.Warnw("deposit settlement conflict, retrying",
			"transaction", t.ID, "attempt", attempt+1)
	}
	if lastErr != nil {
		return lastErr
	}

	s.auditStatusChange(ctx, t.ID, systemActor, t.Status, model.StatusCompleted, reason, time.Now())
	if err := s.repo.CacheBalance(ctx, walletID, after); err != nil {
		s.log.Warnw("cache deposit balance", "err", err)
	}
	return nil
}
