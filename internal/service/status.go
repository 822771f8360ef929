package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/kudiwallet/ledger-service/internal/errs"
	"github.com/kudiwallet/ledger-service/internal/model"
)

// validTransitions is the whole state machine: pending is the only
// non-terminal status.
var validTransitions = map[string][]string{
	model.StatusPending:   {model.StatusCompleted, model.StatusFailed, model.StatusCancelled},
	model.StatusCompleted: {},
	model.StatusFailed:    {},
	model.StatusCancelled: {},
}

func transitionAllowed(from, to string) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// UpdateStatus advances a transaction record through the status state
// machine on behalf of actorID. The audit entry is emitted after the
// status commit and is best-effort: its failure never rolls the
// transition back.
func (s *LedgerService) UpdateStatus(ctx context.Context, txID uuid.UUID, newStatus string, actorID uuid.UUID, reason string) (*model.Transaction, error) {
	if _, ok := validTransitions[newStatus]; !ok {
		return nil, errs.ErrValidation.Withf("invalid status %q", newStatus)
	}

	t, err := s.repo.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if t.Status == newStatus {
		return nil, errs.ErrNoOpTransition.Withf("transaction is already %s", newStatus)
	}
	if !transitionAllowed(t.Status, newStatus) {
		return nil, errs.ErrInvalidTransition.Withf("cannot go from %s to %s", t.Status, newStatus)
	}

	now := time.Now()
	fields := map[string]interface{}{
		"status":           newStatus,
		"last_modified_by": actorID,
		"last_modified_at": now,
	}
	if newStatus != model.StatusPending {
		fields["processed_at"] = now
	}
	switch newStatus {
	case model.StatusCompleted:
		fields["settled"] = true
	case model.StatusFailed, model.StatusCancelled:
		if reason != "" {
			fields["failure_reason"] = reason
		}
	}

	if err := s.repo.UpdateTransactionStatus(ctx, nil, txID, t.Status, fields); err != nil {
		return nil, err
	}

	s.auditStatusChange(ctx, txID, actorID, t.Status, newStatus, reason, now)

	return s.repo.GetTransaction(ctx, txID)
}

// auditStatusChange appends the compliance trail out of band.
func (s *LedgerService) auditStatusChange(ctx context.Context, txID, actorID uuid.UUID, oldStatus, newStatus, reason string, ts time.Time) {
	if reason == "" {
		reason = "manual admin update"
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"action":        "TRANSACTION_STATUS_UPDATE",
		"transactionId": txID,
		"actorId":       actorID,
		"oldStatus":     oldStatus,
		"newStatus":     newStatus,
		"reason":        reason,
		"timestamp":     ts.UTC().Format(time.RFC3339),
	})
	evt := &model.OutboxEvent{
		Aggregate:   "Transaction",
		AggregateID: txID.String(),
		EventType:   model.EventStatusChanged,
		Payload:     string(payload),
	}
	if err := s.repo.CreateOutboxEvent(ctx, nil, evt); err != nil {
		s.log.Warnw("audit entry not persisted", "transaction", txID, "err", err)
	}
	s.log.Infow("transaction status updated",
		"transaction", txID, "actor", actorID,
		"oldStatus", oldStatus, "newStatus", newStatus, "reason", reason)
}
