package ecommerce_errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors
var (
	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrAlreadyProcessed        = errors.New("transaction already processed")
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrInvalidRequest          = errors.New("invalid request")
	ErrUnsatisfiablePspRequest = errors.New("unsatisfiable psp request")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrForbidden               = errors.New("forbidden")
	ErrNotFound                = errors.New("not found")
	ErrConflict                = errors.New("conflict")
	ErrServiceUnavailable      = errors.New("service unavailable")
	ErrUnrecoverable           = errors.New("unrecoverable")
)

// AlreadyProcessedError reports a command issued against a transaction whose
// status no longer accepts it.
type AlreadyProcessedError struct {
	TransactionID string
	Status        string
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("transaction %s already processed (status %s)", e.TransactionID, e.Status)
}

func (e *AlreadyProcessedError) Is(target error) bool {
	return target == ErrAlreadyProcessed
}

// NodoError is a business fault returned by the payment node.
type NodoError struct {
	FaultCode   string
	Description string
}

func (e *NodoError) Error() string {
	if e.Description == "" {
		return "nodo fault: " + e.FaultCode
	}
	return fmt.Sprintf("nodo fault %s: %s", e.FaultCode, e.Description)
}

// Duplicate reports the node refusing a second activation of the same notice.
func (e *NodoError) Duplicate() bool {
	switch e.FaultCode {
	case "PPT_PAGAMENTO_IN_CORSO", "PAA_PAGAMENTO_IN_CORSO", "PPT_PAGAMENTO_DUPLICATO", "PAA_PAGAMENTO_DUPLICATO":
		return true
	}
	return false
}

// GatewayError wraps a failed call to a downstream HTTP service.
// StatusCode is zero when no response was received.
type GatewayError struct {
	Op         string
	StatusCode int
	Code       string
	Detail     string
	Err        error
}

func (e *GatewayError) Error() string {
	msg := e.Op + ": "
	if e.StatusCode != 0 {
		msg += fmt.Sprintf("status %d", e.StatusCode)
	} else {
		msg += "no response"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// ClientError reports a 4xx answer.
func (e *GatewayError) ClientError() bool {
	return e.StatusCode >= http.StatusBadRequest && e.StatusCode < http.StatusInternalServerError
}

// Retryable reports a 5xx answer, a timeout or a transport failure.
func (e *GatewayError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError
}

// Timeout reports a missing or gateway-timeout response.
func (e *GatewayError) Timeout() bool {
	return e.StatusCode == 0 || e.StatusCode == http.StatusGatewayTimeout
}

// Invalid wraps ErrInvalidRequest with a reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

type unrecoverableError struct {
	err error
}

func (e *unrecoverableError) Error() string {
	return e.err.Error()
}

func (e *unrecoverableError) Unwrap() []error {
	return []error{ErrUnrecoverable, e.err}
}

// Unrecoverable marks err as one that repeating the same request cannot fix.
// The original error stays reachable through errors.Is and errors.As.
func Unrecoverable(err error) error {
	if err == nil || errors.Is(err, ErrUnrecoverable) {
		return err
	}
	return &unrecoverableError{err: err}
}
