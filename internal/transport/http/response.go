package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kudiwallet/ledger-service/internal/errs"
)

// httpStatus maps stable domain codes to HTTP statuses. Anything
// unmapped is a server fault and must not leak details.
var httpStatus = map[string]int{
	"VALIDATION_ERROR":            http.StatusBadRequest,
	"SAME_WALLET_TRANSFER":        http.StatusBadRequest,
	"WALLET_FROZEN":               http.StatusBadRequest,
	"INSUFFICIENT_BALANCE":        http.StatusBadRequest,
	"INVALID_TRANSITION":          http.StatusBadRequest,
	"NOOP_TRANSITION":             http.StatusBadRequest,
	"WALLET_NOT_FOUND":            http.StatusNotFound,
	"TRANSACTION_NOT_FOUND":       http.StatusNotFound,
	"PAYMENT_NOT_FOUND":           http.StatusNotFound,
	"WALLET_STATE_CONFLICT":       http.StatusConflict,
	"DUPLICATE_WALLET":            http.StatusConflict,
	"STORAGE_CONFLICT":            http.StatusConflict,
	"TRANSFER_FAILED":             http.StatusInternalServerError,
	"STORAGE_FAILURE":             http.StatusInternalServerError,
	"REFERENCE_GENERATION_FAILED": http.StatusInternalServerError,
}

func fail(c *gin.Context, err error) {
	var de *errs.Error
	if errors.As(err, &de) {
		status, ok := httpStatus[de.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"code": de.Code, "error": de.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL", "error": "internal error"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_ERROR", "error": msg})
}

func ok(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{"message": message, "data": data})
}
