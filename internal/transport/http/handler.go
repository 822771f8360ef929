package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kudiwallet/ledger-service/internal/model"
	"github.com/kudiwallet/ledger-service/internal/service"
)

func RegisterHandlers(r *gin.Engine, svc *service.LedgerService) {
	v1 := r.Group("/v1")
	v1.Use(RequireActor())
	{
		v1.POST("/transfers", transferHandler(svc))

		v1.GET("/transactions", historyHandler(svc))
		v1.GET("/transactions/stats", statsHandler(svc))
		v1.GET("/transactions/:id", getTransactionHandler(svc))
		v1.PATCH("/transactions/:id/status", RequireAdmin(), updateStatusHandler(svc))

		v1.GET("/wallets/me", myWalletHandler(svc))
		v1.GET("/wallets/me/balance", myBalanceHandler(svc))

		admin := v1.Group("/admin", RequireAdmin())
		{
			admin.POST("/wallets", createWalletHandler(svc))
			admin.GET("/wallets", listWalletsHandler(svc))
			admin.GET("/wallets/:id", getWalletHandler(svc))
			admin.GET("/wallets/:id/balance", walletBalanceHandler(svc))
			admin.POST("/wallets/:id/freeze", freezeHandler(svc, true))
			admin.POST("/wallets/:id/unfreeze", freezeHandler(svc, false))
			admin.PATCH("/wallets/:id", updateWalletMetadataHandler(svc))
			admin.DELETE("/wallets/:id", deleteWalletHandler(svc))

			admin.POST("/payments", recordPaymentHandler(svc))
		}

		// provider callbacks are authenticated upstream like any
		// other actor, then verified against the stored shadow
		v1.POST("/webhooks/payments", webhookHandler(svc))
	}
}

type transferReq struct {
	ToWalletID     string `json:"toWalletId" binding:"required"`
	Amount         string `json:"amount" binding:"required"`
	Description    string `json:"description" binding:"required"`
	IdempotencyKey string `json:"idempotencyKey"`
}

func transferHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req transferReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		amt, err := decimal.NewFromString(req.Amount)
		if err != nil {
			badRequest(c, "invalid amount")
			return
		}
		res, err := svc.Transfer(c, actorID(c), req.ToWalletID, amt, req.Description, req.IdempotencyKey)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, http.StatusCreated, "internal transfer completed successfully", res)
	}
}

type updateStatusReq struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

func updateStatusHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			badRequest(c, "invalid transaction id")
			return
		}
		var req updateStatusReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		updated, err := svc.UpdateStatus(c, id, req.Status, actorID(c), req.Reason)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, http.StatusOK, "transaction status updated successfully", updated)
	}
}

func getTransactionHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			badRequest(c, "invalid transaction id")
			return
		}
		record, err := svc.Transaction(c, id)
		if err != nil {
			fail(c, err)
			return
		}
		// non-admins only see their own records
		if !isAdmin(c) {
			actor := actorID(c)
			if record.UserID == nil || *record.UserID != actor {
				c.JSON(http.StatusNotFound, gin.H{
					"code": "TRANSACTION_NOT_FOUND", "error": "transaction not found",
				})
				return
			}
		}
		ok(c, http.StatusOK, "transaction retrieved successfully", record)
	}
}

func historyHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := service.HistoryRequest{
			Status:    c.Query("status"),
			Type:      c.Query("type"),
			Search:    c.Query("search"),
			SortField: c.Query("sortField"),
			SortDir:   c.Query("sortType"),
		}
		req.Page, _ = strconv.Atoi(c.DefaultQuery("pageNumber", "1"))
		req.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "10"))

		var err error
		if req.FromDate, err = parseDateQuery(c, "fromDate"); err != nil {
			badRequest(c, "invalid fromDate format, use ISO date string")
			return
		}
		if req.ToDate, err = parseDateQuery(c, "toDate"); err != nil {
			badRequest(c, "invalid toDate format, use ISO date string")
			return
		}

		// admins see the whole ledger, users only their slice
		if !isAdmin(c) {
			actor := actorID(c)
			req.UserID = &actor
		}

		res, err := svc.History(c, req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "transaction history retrieved successfully",
			"data":    res.Data,
			"meta": gin.H{
				"totalItems":  res.TotalItems,
				"totalPages":  res.TotalPages,
				"currentPage": res.Page,
				"pageSize":    res.PageSize,
			},
		})
	}
}

func statsHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.StatsRequest
		var err error
		if req.FromDate, err = parseDateQuery(c, "fromDate"); err != nil {
			badRequest(c, "invalid fromDate format")
			return
		}
		if req.ToDate, err = parseDateQuery(c, "toDate"); err != nil {
			badRequest(c, "invalid toDate format")
			return
		}
		if !isAdmin(c) {
			actor := actorID(c)
			req.UserID = &actor
		}
		stats, err := svc.Stats(c, req)
		if err != nil {
			fail(c, err)
			return
		}
		msg := "user transaction stats"
		if isAdmin(c) {
			msg = "platform-wide transaction stats"
		}
		ok(c, http.StatusOK, msg, stats)
	}
}

type recordPaymentReq struct {
	TransactionID     string     `json:"transactionId" binding:"required"`
	Provider          string     `json:"provider" binding:"required"`
	ProviderReference string     `json:"providerReference" binding:"required"`
	Fee               string     `json:"fee"`
	Data              model.JSON `json:"data"`
}

func recordPaymentHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req recordPaymentReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		txID, err := uuid.Parse(req.TransactionID)
		if err != nil {
			badRequest(c, "invalid transaction id")
			return
		}
		fee := decimal.Zero
		if req.Fee != "" {
			if fee, err = decimal.NewFromString(req.Fee); err != nil {
				badRequest(c, "invalid fee")
				return
			}
		}
		p, err := svc.RecordExternalPayment(c, txID, req.Provider, req.ProviderReference, fee, req.Data)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, http.StatusCreated, "external payment recorded", p)
	}
}

type webhookReq struct {
	Provider          string     `json:"provider" binding:"required"`
	ProviderReference string     `json:"providerReference" binding:"required"`
	Status            string     `json:"status" binding:"required"`
	GatewayResponse   string     `json:"gatewayResponse"`
	Data              model.JSON `json:"data"`
}

func webhookHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req webhookReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		p, err := svc.ReconcileWebhook(c, req.Provider, req.ProviderReference,
			req.Status, req.GatewayResponse, req.Data)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, http.StatusOK, "webhook processed", p)
	}
}

func parseDateQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
