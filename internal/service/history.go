package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kudiwallet/ledger-service/internal/errs"
	"github.com/kudiwallet/ledger-service/internal/model"
	"github.com/kudiwallet/ledger-service/internal/repo"
)

const (
	maxPageSize     = 100
	maxPageNumber   = 1000
	maxDateSpanDays = 365
	maxSearchLength = 100
)

// sortColumns is the sort allow-list, API name to column.
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"amount":    "amount",
	"status":    "status",
	"type":      "type",
	"reference": "reference",
}

// HistoryRequest is the inbound, unvalidated history query.
type HistoryRequest struct {
	UserID    *uuid.UUID
	Status    string
	Type      string
	Search    string
	FromDate  *time.Time
	ToDate    *time.Time
	SortField string
	SortDir   string
	Page      int
	PageSize  int
}

// HistoryResult is one page of committed ledger records.
type HistoryResult struct {
	Data       []model.Transaction `json:"data"`
	TotalItems int64               `json:"totalItems"`
	TotalPages int64               `json:"totalPages"`
	Page       int                 `json:"currentPage"`
	PageSize   int                 `json:"pageSize"`
}

// StatsRequest scopes aggregate statistics.
type StatsRequest struct {
	UserID   *uuid.UUID
	FromDate *time.Time
	ToDate   *time.Time
}

// History returns a filtered, sorted page of transaction records.
// Filters and sorts are restricted to allow-lists; page, page size
// and date span are capped to bound query cost.
func (s *LedgerService) History(ctx context.Context, req HistoryRequest) (*HistoryResult, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Page > maxPageNumber {
		return nil, errs.ErrValidation.Withf("page number too high, maximum allowed: %d", maxPageNumber)
	}
	if req.PageSize < 1 {
		req.PageSize = 10
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	if req.Status != "" {
		if _, ok := validTransitions[req.Status]; !ok {
			return nil, errs.ErrValidation.Withf("invalid status filter %q", req.Status)
		}
	}
	switch req.Type {
	case "", model.TypeDeposit, model.TypeWithdrawal, model.TypeTransfer:
	default:
		return nil, errs.ErrValidation.Withf("invalid type filter %q", req.Type)
	}

	if err := validateSearch(req.Search); err != nil {
		return nil, err
	}
	if err := validateDateRange(req.FromDate, req.ToDate); err != nil {
		return nil, err
	}

	sortField := ""
	if req.SortField != "" {
		col, ok := sortColumns[req.SortField]
		if !ok {
			return nil, errs.ErrValidation.Withf("invalid sort field %q", req.SortField)
		}
		sortField = col
	}
	sortDesc := true
	switch strings.ToLower(req.SortDir) {
	case "", "desc":
	case "asc":
		sortDesc = false
	default:
		return nil, errs.ErrValidation.Withf("invalid sort direction %q", req.SortDir)
	}

	records, total, err := s.repo.ListTransactions(ctx, repo.HistoryQuery{
		UserID:    req.UserID,
		Status:    req.Status,
		Type:      req.Type,
		Search:    req.Search,
		FromDate:  req.FromDate,
		ToDate:    req.ToDate,
		SortField: sortField,
		SortDesc:  sortDesc,
		Page:      req.Page,
		PageSize:  req.PageSize,
	})
	if err != nil {
		return nil, err
	}

	pages := total / int64(req.PageSize)
	if total%int64(req.PageSize) > 0 {
		pages++
	}
	if pages < 1 {
		pages = 1
	}
	return &HistoryResult{
		Data:       records,
		TotalItems: total,
		TotalPages: pages,
		Page:       req.Page,
		PageSize:   req.PageSize,
	}, nil
}

// Stats aggregates committed records under the same filter rules as
// History.
func (s *LedgerService) Stats(ctx context.Context, req StatsRequest) (*repo.Stats, error) {
	if err := validateDateRange(req.FromDate, req.ToDate); err != nil {
		return nil, err
	}
	return s.repo.TransactionStats(ctx, repo.StatsFilter{
		UserID:   req.UserID,
		FromDate: req.FromDate,
		ToDate:   req.ToDate,
	})
}

// Transaction fetches one committed record.
func (s *LedgerService) Transaction(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

func validateSearch(search string) error {
	if search == "" {
		return nil
	}
	if len(search) > maxSearchLength {
		return errs.ErrValidation.Withf("search term too long")
	}
	if strings.ContainsAny(search, "<>{}") {
		return errs.ErrValidation.Withf("search term contains forbidden characters")
	}
	return nil
}

func validateDateRange(from, to *time.Time) error {
	if from != nil && to != nil {
		if from.After(*to) {
			return errs.ErrValidation.Withf("fromDate cannot be greater than toDate")
		}
		if to.Sub(*from) > maxDateSpanDays*24*time.Hour {
			return errs.ErrValidation.Withf("date range cannot exceed %d days", maxDateSpanDays)
		}
	}
	return nil
}
