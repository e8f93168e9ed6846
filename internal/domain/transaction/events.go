package transaction

import (
	"time"

	"github.com/google/uuid"
)

type EventCode string

const (
	EventActivated              EventCode = "TRANSACTION_ACTIVATED_EVENT"
	EventAuthorizationRequested EventCode = "TRANSACTION_AUTHORIZATION_REQUESTED_EVENT"
	EventAuthorizationCompleted EventCode = "TRANSACTION_AUTHORIZATION_COMPLETED_EVENT"
	EventClosureRequested       EventCode = "TRANSACTION_CLOSURE_REQUESTED_EVENT"
	EventClosed                 EventCode = "TRANSACTION_CLOSED_EVENT"
	EventClosureFailed          EventCode = "TRANSACTION_CLOSURE_FAILED_EVENT"
	EventClosureError           EventCode = "TRANSACTION_CLOSURE_ERROR_EVENT"
	EventUserReceiptRequested   EventCode = "TRANSACTION_USER_RECEIPT_REQUESTED_EVENT"
	EventRefundRequested        EventCode = "TRANSACTION_REFUND_REQUESTED_EVENT"
	EventRefundError            EventCode = "TRANSACTION_REFUND_ERROR_EVENT"
	EventRefunded               EventCode = "TRANSACTION_REFUNDED_EVENT"
	EventUserCanceled           EventCode = "TRANSACTION_USER_CANCELED_EVENT"
	EventExpired                EventCode = "TRANSACTION_EXPIRED_EVENT"
)

type Outcome string

const (
	OutcomeOK Outcome = "OK"
	OutcomeKO Outcome = "KO"
)

func (o Outcome) Valid() bool {
	return o == OutcomeOK || o == OutcomeKO
}

type ClientID string

const (
	ClientCheckout ClientID = "CHECKOUT"
	ClientIO       ClientID = "IO"
)

func (c ClientID) Valid() bool {
	return c == ClientCheckout || c == ClientIO
}

// PaymentGateway selects the acquirer handling authorization and refund.
type PaymentGateway string

const (
	GatewayXPay     PaymentGateway = "XPAY"
	GatewayVPOS     PaymentGateway = "VPOS"
	GatewayRedirect PaymentGateway = "REDIRECT"
)

func (g PaymentGateway) Valid() bool {
	switch g {
	case GatewayXPay, GatewayVPOS, GatewayRedirect:
		return true
	}
	return false
}

// PaymentNotice is one activated notice of a transaction.
type PaymentNotice struct {
	RptID          RptID          `json:"rptId"`
	PaymentToken   PaymentToken   `json:"paymentToken"`
	IdempotencyKey IdempotencyKey `json:"idempotencyKey"`
	Amount         int64          `json:"amount"`
	Description    string         `json:"description"`
	CreditorName   string         `json:"creditorName,omitempty"`
}

// Event is a single immutable fact in a transaction's log.
type Event struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	Code          EventCode
	CreatedAt     time.Time
	Data          EventData
}

// EventData is the typed payload carried by an Event.
type EventData interface {
	EventCode() EventCode
}

func NewEvent(transactionID uuid.UUID, data EventData, now time.Time) Event {
	return Event{
		ID:            uuid.New(),
		TransactionID: transactionID,
		Code:          data.EventCode(),
		CreatedAt:     now.UTC(),
		Data:          data,
	}
}

type ActivatedData struct {
	PaymentNotices              []PaymentNotice `json:"paymentNotices"`
	Email                       string          `json:"email"`
	ClientID                    ClientID        `json:"clientId"`
	PaymentTokenValiditySeconds int             `json:"paymentTokenValiditySeconds"`
}

func (ActivatedData) EventCode() EventCode { return EventActivated }

type AuthorizationRequestedData struct {
	Amount                 int64          `json:"amount"`
	Fee                    int64          `json:"fee"`
	PaymentInstrumentID    string         `json:"paymentInstrumentId"`
	PspID                  string         `json:"pspId"`
	PaymentTypeCode        string         `json:"paymentTypeCode"`
	BrokerName             string         `json:"brokerName"`
	PspChannelCode         string         `json:"pspChannelCode"`
	PspBusinessName        string         `json:"pspBusinessName"`
	PaymentMethodName      string         `json:"paymentMethodName"`
	AuthorizationRequestID string         `json:"authorizationRequestId"`
	Gateway                PaymentGateway `json:"gateway"`
}

func (AuthorizationRequestedData) EventCode() EventCode { return EventAuthorizationRequested }

type AuthorizationCompletedData struct {
	Result            Outcome   `json:"result"`
	AuthorizationCode string    `json:"authorizationCode,omitempty"`
	ErrorCode         string    `json:"errorCode,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

func (AuthorizationCompletedData) EventCode() EventCode { return EventAuthorizationCompleted }

// ClosureRequestedData records the outcome reported to the node.
type ClosureRequestedData struct {
	Outcome Outcome `json:"outcome"`
}

func (ClosureRequestedData) EventCode() EventCode { return EventClosureRequested }

type ClosedData struct {
	NodeOutcome Outcome `json:"nodeOutcome"`
}

func (ClosedData) EventCode() EventCode { return EventClosed }

type ClosureFailedData struct {
	NodeOutcome Outcome `json:"nodeOutcome"`
}

func (ClosureFailedData) EventCode() EventCode { return EventClosureFailed }

type ClosureErrorData struct {
	StatusCode  int    `json:"statusCode,omitempty"`
	ErrorCode   string `json:"errorCode,omitempty"`
	Description string `json:"description"`
}

func (ClosureErrorData) EventCode() EventCode { return EventClosureError }

type UserReceiptRequestedData struct {
	Outcome     Outcome   `json:"outcome"`
	PaymentDate time.Time `json:"paymentDate"`
	Language    string    `json:"language,omitempty"`
}

func (UserReceiptRequestedData) EventCode() EventCode { return EventUserReceiptRequested }

type RefundRequestedData struct {
	StatusBeforeRefund Status `json:"statusBeforeRefund"`
	Reason             string `json:"reason"`
}

func (RefundRequestedData) EventCode() EventCode { return EventRefundRequested }

type RefundErrorData struct {
	Description string `json:"description"`
}

func (RefundErrorData) EventCode() EventCode { return EventRefundError }

type RefundedData struct {
	RefundID string `json:"refundId,omitempty"`
}

func (RefundedData) EventCode() EventCode { return EventRefunded }

type UserCanceledData struct{}

func (UserCanceledData) EventCode() EventCode { return EventUserCanceled }

type ExpiredData struct {
	StatusBeforeExpiry Status `json:"statusBeforeExpiry"`
}

func (ExpiredData) EventCode() EventCode { return EventExpired }
