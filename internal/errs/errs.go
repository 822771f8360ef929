package errs

import "fmt"

// Error is a domain failure with a stable machine code. Handlers map
// codes to HTTP statuses; the wrapped cause stays server-side.
type Error struct {
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches by code so wrapped copies still compare equal to their
// sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// With returns a copy of e carrying cause.
func (e *Error) With(cause error) *Error {
	return &Error{Code: e.Code, Message: e.Message, cause: cause}
}

// Withf returns a copy of e with a more specific message.
func (e *Error) Withf(format string, args ...interface{}) *Error {
	return &Error{Code: e.Code, Message: fmt.Sprintf(format, args...), cause: e.cause}
}

var (
	ErrValidation          = &Error{Code: "VALIDATION_ERROR", Message: "invalid request"}
	ErrWalletNotFound      = &Error{Code: "WALLET_NOT_FOUND", Message: "wallet not found"}
	ErrSameWallet          = &Error{Code: "SAME_WALLET_TRANSFER", Message: "cannot transfer to the same wallet"}
	ErrWalletFrozen        = &Error{Code: "WALLET_FROZEN", Message: "wallet is frozen"}
	ErrInsufficientBalance = &Error{Code: "INSUFFICIENT_BALANCE", Message: "insufficient balance"}
	ErrReferenceGeneration = &Error{Code: "REFERENCE_GENERATION_FAILED", Message: "could not generate a unique reference"}
	ErrInvalidTransition   = &Error{Code: "INVALID_TRANSITION", Message: "status transition not allowed"}
	ErrNoOpTransition      = &Error{Code: "NOOP_TRANSITION", Message: "transaction already in requested status"}
	ErrTransactionNotFound = &Error{Code: "TRANSACTION_NOT_FOUND", Message: "transaction not found"}
	ErrStorageConflict     = &Error{Code: "STORAGE_CONFLICT", Message: "concurrent update conflict"}
	ErrStorageFailure      = &Error{Code: "STORAGE_FAILURE", Message: "storage failure"}
	ErrTransferFailed      = &Error{Code: "TRANSFER_FAILED", Message: "transfer failed after retries"}
	ErrWalletStateConflict = &Error{Code: "WALLET_STATE_CONFLICT", Message: "wallet already in requested state"}
	ErrDuplicateWallet     = &Error{Code: "DUPLICATE_WALLET", Message: "user already has a wallet"}
	ErrDuplicateReference  = &Error{Code: "DUPLICATE_REFERENCE", Message: "transaction reference already exists"}
	ErrPaymentNotFound     = &Error{Code: "PAYMENT_NOT_FOUND", Message: "external payment not found"}
)
