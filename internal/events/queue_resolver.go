package events

import "ecommerce-transactions/internal/domain/transaction"

// QueueResolver determines which queue carries the follow-up work for an event.
// Closure retries are scheduled separately since their delay depends on the
// token validity window.
type QueueResolver interface {
	ResolveQueue(e transaction.Event) (string, bool)
}

type EventQueueResolver struct{}

func NewEventQueueResolver() *EventQueueResolver {
	return &EventQueueResolver{}
}

func (r *EventQueueResolver) ResolveQueue(e transaction.Event) (string, bool) {
	switch e.Data.(type) {
	case transaction.ActivatedData:
		return QueueTransactionActivated, true
	case transaction.RefundRequestedData:
		return QueueRefund, true
	case transaction.UserCanceledData:
		return QueueCancellation, true
	case transaction.UserReceiptRequestedData:
		return QueueUserReceipt, true
	}
	return "", false
}
