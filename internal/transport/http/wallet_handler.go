package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kudiwallet/ledger-service/internal/model"
	"github.com/kudiwallet/ledger-service/internal/service"
)

func myWalletHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, err := svc.WalletByUser(c, actorID(c))
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, http.StatusOK, "wallet retrieved successfully", w)
	}
}

func myBalanceHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		bal, currency, err := svc.BalanceByUser(c, actorID(c))
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, http.StatusOK, "balance retrieved successfully", gin.H{
			"balance":  bal,
			"currency": currency,
		})
	}
}

type createWalletReq struct {
	UserID   string `json:"userId" binding:"required"`
	Currency string `json:"currency"`
}

func createWalletHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createWalletReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			badRequest(c, "invalid user id")
			return
		}
		w, err := svc.CreateWallet(c, userID, req.Currency)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, http.StatusCreated, "wallet created successfully", w)
	}
}

func listWalletsHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		wallets, err := svc.ListWallets(c)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, http.StatusOK, "wallets retrieved successfully", wallets)
	}
}

func getWalletHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			badRequest(c, "invalid wallet id")
			return
		}
		w, err := svc.WalletByID(c, id)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, http.StatusOK, "wallet retrieved successfully", w)
	}
}

func walletBalanceHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			badRequest(c, "invalid wallet id")
			return
		}
		bal, err := svc.Balance(c, id)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, http.StatusOK, "balance retrieved successfully", gin.H{"balance": bal})
	}
}

func freezeHandler(svc *service.LedgerService, frozen bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			badRequest(c, "invalid wallet id")
			return
		}
		w, err := svc.SetFrozen(c, id, frozen, actorID(c))
		if err != nil {
			fail(c, err)
			return
		}
		msg := "wallet frozen successfully"
		if !frozen {
			msg = "wallet unfrozen successfully"
		}
		ok(c, http.StatusOK, msg, w)
	}
}

type updateWalletReq struct {
	Metadata model.JSON `json:"metadata" binding:"required"`
}

func updateWalletMetadataHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			badRequest(c, "invalid wallet id")
			return
		}
		var req updateWalletReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		w, err := svc.UpdateWalletMetadata(c, id, req.Metadata)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, http.StatusOK, "wallet updated successfully", w)
	}
}

func deleteWalletHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			badRequest(c, "invalid wallet id")
			return
		}
		if err := svc.DeleteWallet(c, id, actorID(c)); err != nil {
			fail(c, err)
			return
		}
		ok(c, http.StatusOK, "wallet deleted successfully", nil)
	}
}
