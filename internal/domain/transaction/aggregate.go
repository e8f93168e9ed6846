package transaction

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	ecommerce_errors "ecommerce-transactions/pkg/errors"
)

// Transaction is the state derived by folding a transaction's events.
// It is never stored; the event log is the source of truth.
type Transaction struct {
	ID                   uuid.UUID
	Status               Status
	CreatedAt            time.Time
	UpdatedAt            time.Time
	Email                string
	ClientID             ClientID
	PaymentNotices       []PaymentNotice
	PaymentTokenValidity time.Duration

	Authorization       *AuthorizationRequestedData
	AuthorizationResult *AuthorizationCompletedData
	ClosureOutcome      Outcome
	NodeOutcome         Outcome
	ClosureError        *ClosureErrorData
	Receipt             *UserReceiptRequestedData
	Refund              *RefundRequestedData
	RefundError         *RefundErrorData
	Refunded            *RefundedData
	StatusBeforeExpiry  Status

	// Version counts the events folded so far.
	Version int
}

// Empty is the starting point of every fold.
func Empty() Transaction {
	return Transaction{Status: StatusNew}
}

// InvalidTransitionError reports an event that cannot follow the current status.
type InvalidTransitionError struct {
	TransactionID uuid.UUID
	Status        Status
	Event         EventCode
	Reason        string
}

func (e *InvalidTransitionError) Error() string {
	status := string(e.Status)
	if e.Status == StatusNew {
		status = "<empty>"
	}
	msg := fmt.Sprintf("transaction %s: cannot apply %s in status %s", e.TransactionID, e.Event, status)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ecommerce_errors.ErrInvalidTransition
}

type transition struct {
	from  []Status
	apply func(t *Transaction, e Event)
}

var transitions = map[EventCode]transition{
	EventActivated: {
		from: []Status{StatusNew},
		apply: func(t *Transaction, e Event) {
			d := e.Data.(ActivatedData)
			t.ID = e.TransactionID
			t.CreatedAt = e.CreatedAt
			t.Email = d.Email
			t.ClientID = d.ClientID
			t.PaymentNotices = slices.Clone(d.PaymentNotices)
			t.PaymentTokenValidity = time.Duration(d.PaymentTokenValiditySeconds) * time.Second
			t.Status = StatusActivated
		},
	},
	EventAuthorizationRequested: {
		from: []Status{StatusActivated},
		apply: func(t *Transaction, e Event) {
			d := e.Data.(AuthorizationRequestedData)
			t.Authorization = &d
			t.Status = StatusAuthorizationRequested
		},
	},
	EventAuthorizationCompleted: {
		from: []Status{StatusAuthorizationRequested},
		apply: func(t *Transaction, e Event) {
			d := e.Data.(AuthorizationCompletedData)
			t.AuthorizationResult = &d
			t.Status = StatusAuthorizationCompleted
		},
	},
	EventClosureRequested: {
		from: []Status{StatusAuthorizationCompleted, StatusClosureError},
		apply: func(t *Transaction, e Event) {
			t.ClosureOutcome = e.Data.(ClosureRequestedData).Outcome
			t.Status = StatusClosureRequested
		},
	},
	EventClosed: {
		from: []Status{StatusClosureRequested},
		apply: func(t *Transaction, e Event) {
			t.NodeOutcome = e.Data.(ClosedData).NodeOutcome
			t.Status = StatusClosed
		},
	},
	EventClosureFailed: {
		from: []Status{StatusClosureRequested},
		apply: func(t *Transaction, e Event) {
			t.NodeOutcome = e.Data.(ClosureFailedData).NodeOutcome
			t.Status = StatusClosureFailed
		},
	},
	EventClosureError: {
		from: []Status{StatusAuthorizationCompleted, StatusClosureRequested},
		apply: func(t *Transaction, e Event) {
			d := e.Data.(ClosureErrorData)
			t.ClosureError = &d
			t.Status = StatusClosureError
		},
	},
	EventUserReceiptRequested: {
		from: []Status{StatusClosed},
		apply: func(t *Transaction, e Event) {
			d := e.Data.(UserReceiptRequestedData)
			t.Receipt = &d
			if d.Outcome == OutcomeOK {
				t.Status = StatusNotifiedOk
			} else {
				t.Status = StatusNotifiedKo
			}
		},
	},
	EventRefundRequested: {
		from: []Status{
			StatusAuthorizationCompleted,
			StatusClosureError,
			StatusClosed,
			StatusClosureFailed,
			StatusNotifiedKo,
			StatusExpired,
		},
		apply: func(t *Transaction, e Event) {
			d := e.Data.(RefundRequestedData)
			t.Refund = &d
			t.Status = StatusRefundRequested
		},
	},
	EventRefundError: {
		from: []Status{StatusRefundRequested},
		apply: func(t *Transaction, e Event) {
			d := e.Data.(RefundErrorData)
			t.RefundError = &d
			t.Status = StatusRefundError
		},
	},
	EventRefunded: {
		from: []Status{StatusRefundRequested, StatusRefundError},
		apply: func(t *Transaction, e Event) {
			d := e.Data.(RefundedData)
			t.Refunded = &d
			t.Status = StatusRefunded
		},
	},
	EventUserCanceled: {
		from: []Status{StatusActivated},
		apply: func(t *Transaction, e Event) {
			t.Status = StatusCanceled
		},
	},
	EventExpired: {
		from: []Status{
			StatusActivated,
			StatusAuthorizationRequested,
			StatusAuthorizationCompleted,
			StatusClosureRequested,
			StatusClosureError,
			StatusCanceled,
		},
		apply: func(t *Transaction, e Event) {
			t.StatusBeforeExpiry = t.Status
			switch t.Status {
			case StatusActivated:
				t.Status = StatusExpiredNotAuthorized
			case StatusCanceled:
				t.Status = StatusCancellationExpired
			default:
				t.Status = StatusExpired
			}
		},
	},
}

// Apply returns the state reached by applying e to t. t is not modified.
func Apply(t Transaction, e Event) (Transaction, error) {
	invalid := func(reason string) error {
		return &InvalidTransitionError{TransactionID: e.TransactionID, Status: t.Status, Event: e.Code, Reason: reason}
	}

	tr, ok := transitions[e.Code]
	if !ok {
		return t, invalid("unknown event code")
	}
	if e.Data == nil || e.Data.EventCode() != e.Code {
		return t, invalid("payload does not match event code")
	}
	if !slices.Contains(tr.from, t.Status) {
		return t, invalid("")
	}
	if t.Status != StatusNew && e.TransactionID != t.ID {
		return t, invalid("event belongs to another transaction")
	}

	next := t
	tr.apply(&next, e)
	next.UpdatedAt = e.CreatedAt
	next.Version++
	return next, nil
}

// Fold replays events in order starting from Empty.
func Fold(events []Event) (Transaction, error) {
	return FoldFrom(Empty(), events)
}

// FoldFrom applies events on top of t and stops at the first rejected one.
func FoldFrom(t Transaction, events []Event) (Transaction, error) {
	for _, e := range events {
		var err error
		if t, err = Apply(t, e); err != nil {
			return Transaction{}, err
		}
	}
	return t, nil
}

// CanApply reports whether an event with the given code may follow status s.
func CanApply(s Status, code EventCode) bool {
	tr, ok := transitions[code]
	return ok && slices.Contains(tr.from, s)
}

func (t Transaction) Amount() int64 {
	var total int64
	for _, n := range t.PaymentNotices {
		total += n.Amount
	}
	return total
}

func (t Transaction) PaymentTokens() []PaymentToken {
	tokens := make([]PaymentToken, 0, len(t.PaymentNotices))
	for _, n := range t.PaymentNotices {
		tokens = append(tokens, n.PaymentToken)
	}
	return tokens
}

func (t Transaction) RptIDs() []RptID {
	ids := make([]RptID, 0, len(t.PaymentNotices))
	for _, n := range t.PaymentNotices {
		ids = append(ids, n.RptID)
	}
	return ids
}

// AuthorizationOK reports a completed authorization with outcome OK.
func (t Transaction) AuthorizationOK() bool {
	return t.AuthorizationResult != nil && t.AuthorizationResult.Result == OutcomeOK
}

// ValidityEnd is the instant the payment tokens stop being usable.
func (t Transaction) ValidityEnd(fallback time.Duration) time.Time {
	validity := t.PaymentTokenValidity
	if validity <= 0 {
		validity = fallback
	}
	return t.CreatedAt.Add(validity)
}

// RefundReason explains why t needs a compensating refund.
// It returns "" when no refund is due or one was already requested.
func (t Transaction) RefundReason() string {
	if t.Refund != nil {
		return ""
	}
	switch t.Status {
	case StatusClosed:
		if t.AuthorizationResult != nil && !t.AuthorizationOK() {
			return "authorization KO with node closure OK"
		}
	case StatusClosureFailed:
		if t.AuthorizationOK() {
			return "node closure KO with authorization OK"
		}
	case StatusNotifiedKo:
		return "user receipt KO"
	case StatusExpired:
		switch t.StatusBeforeExpiry {
		case StatusAuthorizationRequested:
			return "expired awaiting authorization outcome"
		case StatusAuthorizationCompleted, StatusClosureRequested, StatusClosureError:
			if t.AuthorizationOK() {
				return "expired before closure completed"
			}
		}
	}
	return ""
}
