// Package service holds the ledger core: the transfer engine, the
// transaction status state machine, history/stats queries and wallet
// administration. All multi-write paths run inside a single gorm
// transaction scope acquired from the repository.
package service

import (
	"go.uber.org/zap"

	"github.com/kudiwallet/ledger-service/internal/fee"
	"github.com/kudiwallet/ledger-service/internal/repo"
)

// LedgerService glues business logic and repository.
type LedgerService struct {
	repo      repo.RepositoryInterface
	log       *zap.SugaredLogger
	feePolicy fee.Policy
}

// NewLedgerService returns LedgerService using the default internal
// transfer fee policy.
func NewLedgerService(r repo.RepositoryInterface, logger *zap.SugaredLogger) *LedgerService {
	return NewLedgerServiceWithPolicy(r, logger, fee.DefaultTransferPolicy())
}

// NewLedgerServiceWithPolicy allows a non-default fee schedule.
func NewLedgerServiceWithPolicy(r repo.RepositoryInterface, logger *zap.SugaredLogger, p fee.Policy) *LedgerService {
	return &LedgerService{repo: r, log: logger, feePolicy: p}
}

// Repo exposes the underlying repository (unit tests helper).
func (s *LedgerService) Repo() repo.RepositoryInterface { return s.repo }
