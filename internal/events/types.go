package events

// Queue names
const (
	QueueTransactionActivated = "transaction-activated"
	QueueClosureRetry         = "transaction-closure-retry"
	QueueRefund               = "transaction-refund"
	QueueCancellation         = "transaction-cancellation"
	QueueUserReceipt          = "transaction-user-receipt"
)

const AggregateTypeTransaction = "transaction"

// Queues lists every queue a worker consumes.
func Queues() []string {
	return []string{
		QueueTransactionActivated,
		QueueClosureRetry,
		QueueRefund,
		QueueCancellation,
		QueueUserReceipt,
	}
}
