package httpdto

import "ecommerce-transactions/internal/domain/transaction"

// TransactionStatus is the status enum exposed by the REST API.
type TransactionStatus string

const (
	StatusActivated              TransactionStatus = "ACTIVATED"
	StatusAuthorizationRequested TransactionStatus = "AUTHORIZATION_REQUESTED"
	StatusAuthorizationCompleted TransactionStatus = "AUTHORIZATION_COMPLETED"
	StatusClosureRequested       TransactionStatus = "CLOSURE_REQUESTED"
	StatusClosed                 TransactionStatus = "CLOSED"
	StatusClosureFailed          TransactionStatus = "CLOSURE_FAILED"
	StatusClosureError           TransactionStatus = "CLOSURE_ERROR"
	StatusNotifiedOk             TransactionStatus = "NOTIFIED_OK"
	StatusNotifiedKo             TransactionStatus = "NOTIFIED_KO"
	StatusRefundRequested        TransactionStatus = "REFUND_REQUESTED"
	StatusRefundError            TransactionStatus = "REFUND_ERROR"
	StatusRefunded               TransactionStatus = "REFUNDED"
	StatusCanceled               TransactionStatus = "CANCELED"
	StatusExpired                TransactionStatus = "EXPIRED"
	StatusExpiredNotAuthorized   TransactionStatus = "EXPIRED_NOT_AUTHORIZED"
	StatusCancellationExpired    TransactionStatus = "CANCELLATION_EXPIRED"
)

func TransactionStatuses() []TransactionStatus {
	return []TransactionStatus{
		StatusActivated,
		StatusAuthorizationRequested,
		StatusAuthorizationCompleted,
		StatusClosureRequested,
		StatusClosed,
		StatusClosureFailed,
		StatusClosureError,
		StatusNotifiedOk,
		StatusNotifiedKo,
		StatusRefundRequested,
		StatusRefundError,
		StatusRefunded,
		StatusCanceled,
		StatusExpired,
		StatusExpiredNotAuthorized,
		StatusCancellationExpired,
	}
}

// ValidateStatuses checks the API enum against the domain one. The server
// refuses to start when they drift apart.
func ValidateStatuses() error {
	statuses := TransactionStatuses()
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return transaction.ValidateStatusMapping(names)
}
