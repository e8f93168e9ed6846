package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"ecommerce-transactions/internal/domain/transaction"
)

// Fixture notices used by NewEventLog.
var (
	RptID1 = transaction.RptID("77777777777302016723749670001")
	RptID2 = transaction.RptID("77777777777302016723749670002")
)

// EventLog builds valid event sequences for a single transaction. Each event
// is stamped one second after the previous one.
type EventLog struct {
	id     uuid.UUID
	at     time.Time
	auth   transaction.Outcome
	events []transaction.Event
}

// NewEventLog starts a log with an Activated event at start carrying two
// notices worth 1000 and 250 cents and a 900s token validity.
func NewEventLog(start time.Time) *EventLog {
	l := &EventLog{id: uuid.New(), at: start.UTC().Truncate(time.Millisecond)}
	l.events = append(l.events, transaction.NewEvent(l.id, transaction.ActivatedData{
		PaymentNotices: []transaction.PaymentNotice{
			{RptID: RptID1, PaymentToken: "token-1", IdempotencyKey: "00000000000_abcdefghij", Amount: 1000, Description: "TARI"},
			{RptID: RptID2, PaymentToken: "token-2", IdempotencyKey: "00000000000_bcdefghijk", Amount: 250, Description: "Bollo"},
		},
		Email:                       "user@example.com",
		ClientID:                    transaction.ClientCheckout,
		PaymentTokenValiditySeconds: 900,
	}, l.at))
	return l
}

// WithTokenValidity rewrites the activation's token validity.
func (l *EventLog) WithTokenValidity(d time.Duration) *EventLog {
	data := l.events[0].Data.(transaction.ActivatedData)
	data.PaymentTokenValiditySeconds = int(d / time.Second)
	l.events[0].Data = data
	return l
}

func (l *EventLog) ID() uuid.UUID {
	return l.id
}

func (l *EventLog) Add(data transaction.EventData) *EventLog {
	l.at = l.at.Add(time.Second)
	l.events = append(l.events, transaction.NewEvent(l.id, data, l.at))
	return l
}

func (l *EventLog) AuthorizationRequested() *EventLog {
	return l.Add(transaction.AuthorizationRequestedData{
		Amount:                 1250,
		Fee:                    100,
		PaymentInstrumentID:    "instrument-1",
		PspID:                  "psp-1",
		PaymentTypeCode:        "CP",
		BrokerName:             "broker-1",
		PspChannelCode:         "channel-1",
		PspBusinessName:        "Test PSP",
		PaymentMethodName:      "CARDS",
		AuthorizationRequestID: "auth-req-1",
		Gateway:                transaction.GatewayXPay,
	})
}

// Authorized appends AuthorizationRequested and AuthorizationCompleted.
func (l *EventLog) Authorized(result transaction.Outcome) *EventLog {
	l.auth = result
	data := transaction.AuthorizationCompletedData{Result: result, Timestamp: l.at}
	if result == transaction.OutcomeOK {
		data.AuthorizationCode = "AUTH01"
	} else {
		data.ErrorCode = "DECLINED"
	}
	return l.AuthorizationRequested().Add(data)
}

func (l *EventLog) ClosureRequested() *EventLog {
	outcome := transaction.OutcomeKO
	if l.auth == transaction.OutcomeOK {
		outcome = transaction.OutcomeOK
	}
	return l.Add(transaction.ClosureRequestedData{Outcome: outcome})
}

func (l *EventLog) ClosedOK() *EventLog {
	return l.ClosureRequested().Add(transaction.ClosedData{NodeOutcome: transaction.OutcomeOK})
}

func (l *EventLog) ClosureFailed() *EventLog {
	return l.ClosureRequested().Add(transaction.ClosureFailedData{NodeOutcome: transaction.OutcomeKO})
}

func (l *EventLog) ClosureError() *EventLog {
	return l.Add(transaction.ClosureErrorData{StatusCode: 503, Description: "node unavailable"})
}

func (l *EventLog) Canceled() *EventLog {
	return l.Add(transaction.UserCanceledData{})
}

func (l *EventLog) Events() []transaction.Event {
	out := make([]transaction.Event, len(l.events))
	copy(out, l.events)
	return out
}

func (l *EventLog) Transaction(t testing.TB) transaction.Transaction {
	t.Helper()
	tx, err := transaction.Fold(l.events)
	require.NoError(t, err)
	return tx
}
