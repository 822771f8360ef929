package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kudiwallet/ledger-service/internal/errs"
	"github.com/kudiwallet/ledger-service/internal/model"
)

var supportedCurrencies = map[string]bool{"NGN": true, "USD": true, "EUR": true}

// CreateWallet opens a zero-balance wallet for userID. The unique
// user index enforces one wallet per user; wallets are created
// alongside the owning account.
func (s *LedgerService) CreateWallet(ctx context.Context, userID uuid.UUID, currency string) (*model.Wallet, error) {
	if currency != "" && !supportedCurrencies[currency] {
		return nil, errs.ErrValidation.Withf("unsupported currency %q", currency)
	}
	w := &model.Wallet{
		UserID:   userID,
		Balance:  decimal.Zero,
		Currency: currency,
	}
	if err := s.repo.CreateWallet(ctx, nil, w); err != nil {
		return nil, err
	}
	s.log.Infow("wallet created", "wallet", w.ID, "user", userID)
	return w, nil
}

// WalletByUser returns the caller's wallet.
func (s *LedgerService) WalletByUser(ctx context.Context, userID uuid.UUID) (*model.Wallet, error) {
	return s.repo.GetWalletByUser(ctx, userID)
}

// WalletByID returns a wallet by identifier (admin lookups).
func (s *LedgerService) WalletByID(ctx context.Context, walletID uuid.UUID) (*model.Wallet, error) {
	return s.repo.GetWallet(ctx, walletID)
}

// ListWallets returns every wallet (admin).
func (s *LedgerService) ListWallets(ctx context.Context) ([]model.Wallet, error) {
	return s.repo.ListWallets(ctx)
}

// Balance returns the wallet balance, served from the cache when
// fresh.
func (s *LedgerService) Balance(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	if bal, err := s.repo.GetCachedBalance(ctx, walletID); err == nil {
		return bal, nil
	}
	w, err := s.repo.GetWallet(ctx, walletID)
	if err != nil {
		return decimal.Zero, err
	}
	if err := s.repo.CacheBalance(ctx, walletID, w.Balance); err != nil {
		s.log.Warnw("cache balance", "err", err)
	}
	return w.Balance, nil
}

// BalanceByUser resolves the caller's wallet and returns its balance.
func (s *LedgerService) BalanceByUser(ctx context.Context, userID uuid.UUID) (decimal.Decimal, string, error) {
	w, err := s.repo.GetWalletByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, "", err
	}
	if err := s.repo.CacheBalance(ctx, w.ID, w.Balance); err != nil {
		s.log.Warnw("cache balance", "err", err)
	}
	return w.Balance, w.Currency, nil
}

// SetFrozen freezes or unfreezes a wallet atomically. Balance is
// untouched; a wallet already in the requested state is a conflict.
func (s *LedgerService) SetFrozen(ctx context.Context, walletID uuid.UUID, frozen bool, actorID uuid.UUID) (*model.Wallet, error) {
	w, err := s.repo.SetWalletFrozen(ctx, walletID, frozen)
	if err != nil {
		return nil, err
	}

	eventType := model.EventWalletFrozen
	if !frozen {
		eventType = model.EventWalletUnfrozen
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"walletId": walletID,
		"actorId":  actorID,
	})
	evt := &model.OutboxEvent{
		Aggregate:   "Wallet",
		AggregateID: walletID.String(),
		EventType:   eventType,
		Payload:     string(payload),
	}
	if err := s.repo.CreateOutboxEvent(ctx, nil, evt); err != nil {
		s.log.Warnw("wallet freeze event not persisted", "wallet", walletID, "err", err)
	}
	s.log.Infow("wallet frozen flag changed", "wallet", walletID, "frozen", frozen, "actor", actorID)
	return w, nil
}

// UpdateWalletMetadata replaces the wallet's free-form metadata
// (admin).
func (s *LedgerService) UpdateWalletMetadata(ctx context.Context, walletID uuid.UUID, md model.JSON) (*model.Wallet, error) {
	if md == nil {
		return nil, errs.ErrValidation.Withf("metadata must be provided as an object")
	}
	return s.repo.UpdateWalletMetadata(ctx, walletID, md)
}

// DeleteWallet removes a wallet. Administrative override: history
// records referencing the wallet are kept as-is.
func (s *LedgerService) DeleteWallet(ctx context.Context, walletID uuid.UUID, actorID uuid.UUID) error {
	if err := s.repo.DeleteWallet(ctx, walletID); err != nil {
		return err
	}
	s.log.Infow("wallet deleted", "wallet", walletID, "actor", actorID)
	return nil
}
