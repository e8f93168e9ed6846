package commands

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"ecommerce-transactions/internal/domain/transaction"
	ecommerce_errors "ecommerce-transactions/pkg/errors"
)

const (
	TypeActivateTransaction  = "ActivateTransaction"
	TypeRequestAuthorization = "RequestAuthorization"
	TypeUpdateAuthorization  = "UpdateAuthorization"
	TypeSendClosure          = "SendClosure"
	TypeAddUserReceipt       = "AddUserReceipt"
	TypeCancelTransaction    = "CancelTransaction"
	TypeReleaseCancellation  = "ReleaseCancellation"
	TypeRequestRefund        = "RequestRefund"
	TypeExecuteRefund        = "ExecuteRefund"
	TypeExpireTransaction    = "ExpireTransaction"
)

const maxNoticesPerTransaction = 5

type NoticeRequest struct {
	RptID  transaction.RptID
	Amount int64
}

type ActivateTransaction struct {
	Notices  []NoticeRequest
	Email    string
	ClientID transaction.ClientID
}

func (c *ActivateTransaction) CommandType() string { return TypeActivateTransaction }

func (c *ActivateTransaction) Validate() error {
	if len(c.Notices) == 0 || len(c.Notices) > maxNoticesPerTransaction {
		return ecommerce_errors.Invalid("between 1 and %d payment notices required, got %d", maxNoticesPerTransaction, len(c.Notices))
	}
	seen := make(map[transaction.RptID]bool, len(c.Notices))
	for _, n := range c.Notices {
		if _, err := transaction.ParseRptID(string(n.RptID)); err != nil {
			return ecommerce_errors.Invalid("%v", err)
		}
		if seen[n.RptID] {
			return ecommerce_errors.Invalid("duplicate rptId %s", n.RptID)
		}
		seen[n.RptID] = true
		if n.Amount <= 0 {
			return ecommerce_errors.Invalid("rptId %s: amount must be positive", n.RptID)
		}
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return ecommerce_errors.Invalid("email: %v", err)
	}
	if !c.ClientID.Valid() {
		return ecommerce_errors.Invalid("unknown client id %q", c.ClientID)
	}
	return nil
}

// ActivationResult is the Payload of a successful ActivateTransaction.
type ActivationResult struct {
	AuthToken string
}

type RequestAuthorization struct {
	TransactionID       uuid.UUID
	Amount              int64
	Fee                 int64
	PaymentInstrumentID string
	PaymentMethodID     string
	PaymentMethodName   string
	PspID               string
	Gateway             transaction.PaymentGateway
	Language            string
	Details             map[string]string
}

func (c *RequestAuthorization) CommandType() string            { return TypeRequestAuthorization }
func (c *RequestAuthorization) TargetTransactionID() uuid.UUID { return c.TransactionID }

func (c *RequestAuthorization) Validate() error {
	switch {
	case c.TransactionID == uuid.Nil:
		return ecommerce_errors.Invalid("transaction id required")
	case c.Amount <= 0:
		return ecommerce_errors.Invalid("amount must be positive")
	case c.Fee < 0:
		return ecommerce_errors.Invalid("fee must not be negative")
	case strings.TrimSpace(c.PaymentInstrumentID) == "":
		return ecommerce_errors.Invalid("payment instrument id required")
	case strings.TrimSpace(c.PspID) == "":
		return ecommerce_errors.Invalid("psp id required")
	case !c.Gateway.Valid():
		return ecommerce_errors.Invalid("unknown payment gateway %q", c.Gateway)
	}
	return nil
}

// AuthorizationResult is the Payload of a successful RequestAuthorization.
type AuthorizationResult struct {
	AuthorizationRequestID string
	RedirectURL            string
}

type UpdateAuthorization struct {
	TransactionID     uuid.UUID
	Outcome           transaction.Outcome
	AuthorizationCode string
	ErrorCode         string
	Timestamp         time.Time
}

func (c *UpdateAuthorization) CommandType() string            { return TypeUpdateAuthorization }
func (c *UpdateAuthorization) TargetTransactionID() uuid.UUID { return c.TransactionID }

func (c *UpdateAuthorization) Validate() error {
	if c.TransactionID == uuid.Nil {
		return ecommerce_errors.Invalid("transaction id required")
	}
	if !c.Outcome.Valid() {
		return ecommerce_errors.Invalid("unknown authorization outcome %q", c.Outcome)
	}
	if c.Outcome == transaction.OutcomeOK && strings.TrimSpace(c.AuthorizationCode) == "" {
		return ecommerce_errors.Invalid("authorization code required for outcome OK")
	}
	return nil
}

// SendClosure reports the authorization outcome to the node. Attempt counts
// earlier failed closures; Transaction may carry an already reduced aggregate.
type SendClosure struct {
	TransactionID uuid.UUID
	Attempt       int
	Transaction   *transaction.Transaction
}

func (c *SendClosure) CommandType() string            { return TypeSendClosure }
func (c *SendClosure) TargetTransactionID() uuid.UUID { return c.TransactionID }

func (c *SendClosure) Validate() error {
	if c.TransactionID == uuid.Nil {
		return ecommerce_errors.Invalid("transaction id required")
	}
	if c.Attempt < 0 {
		return ecommerce_errors.Invalid("attempt must not be negative")
	}
	return nil
}

type AddUserReceipt struct {
	TransactionID uuid.UUID
	Outcome       transaction.Outcome
	PaymentDate   time.Time
	Language      string
}

func (c *AddUserReceipt) CommandType() string            { return TypeAddUserReceipt }
func (c *AddUserReceipt) TargetTransactionID() uuid.UUID { return c.TransactionID }

func (c *AddUserReceipt) Validate() error {
	if c.TransactionID == uuid.Nil {
		return ecommerce_errors.Invalid("transaction id required")
	}
	if !c.Outcome.Valid() {
		return ecommerce_errors.Invalid("unknown receipt outcome %q", c.Outcome)
	}
	return nil
}

type CancelTransaction struct {
	TransactionID uuid.UUID
}

func (c *CancelTransaction) CommandType() string            { return TypeCancelTransaction }
func (c *CancelTransaction) TargetTransactionID() uuid.UUID { return c.TransactionID }

func (c *CancelTransaction) Validate() error {
	if c.TransactionID == uuid.Nil {
		return ecommerce_errors.Invalid("transaction id required")
	}
	return nil
}

// ReleaseCancellation tells the node to release the tokens of a canceled transaction.
type ReleaseCancellation struct {
	TransactionID uuid.UUID
	Attempt       int
}

func (c *ReleaseCancellation) CommandType() string            { return TypeReleaseCancellation }
func (c *ReleaseCancellation) TargetTransactionID() uuid.UUID { return c.TransactionID }

func (c *ReleaseCancellation) Validate() error {
	if c.TransactionID == uuid.Nil {
		return ecommerce_errors.Invalid("transaction id required")
	}
	return nil
}

type RequestRefund struct {
	TransactionID uuid.UUID
	Reason        string
}

func (c *RequestRefund) CommandType() string            { return TypeRequestRefund }
func (c *RequestRefund) TargetTransactionID() uuid.UUID { return c.TransactionID }

func (c *RequestRefund) Validate() error {
	if c.TransactionID == uuid.Nil {
		return ecommerce_errors.Invalid("transaction id required")
	}
	if strings.TrimSpace(c.Reason) == "" {
		return ecommerce_errors.Invalid("refund reason required")
	}
	return nil
}

type ExecuteRefund struct {
	TransactionID uuid.UUID
}

func (c *ExecuteRefund) CommandType() string            { return TypeExecuteRefund }
func (c *ExecuteRefund) TargetTransactionID() uuid.UUID { return c.TransactionID }

func (c *ExecuteRefund) Validate() error {
	if c.TransactionID == uuid.Nil {
		return ecommerce_errors.Invalid("transaction id required")
	}
	return nil
}

type ExpireTransaction struct {
	TransactionID uuid.UUID
}

func (c *ExpireTransaction) CommandType() string            { return TypeExpireTransaction }
func (c *ExpireTransaction) TargetTransactionID() uuid.UUID { return c.TransactionID }

func (c *ExpireTransaction) Validate() error {
	if c.TransactionID == uuid.Nil {
		return ecommerce_errors.Invalid("transaction id required")
	}
	return nil
}
