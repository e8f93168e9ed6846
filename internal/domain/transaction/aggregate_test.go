package transaction

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ecommerce_errors "ecommerce-transactions/pkg/errors"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type logBuilder struct {
	id     uuid.UUID
	at     time.Time
	events []Event
}

func newLog() *logBuilder {
	b := &logBuilder{id: uuid.New(), at: t0}
	return b.add(ActivatedData{
		PaymentNotices: []PaymentNotice{
			{RptID: "777777777773020167237496016", PaymentToken: "tok-1", IdempotencyKey: "77777777777_abcdefghij", Amount: 1000},
			{RptID: "777777777773020167237496017", PaymentToken: "tok-2", IdempotencyKey: "77777777777_bcdefghijk", Amount: 250},
		},
		Email:                       "user@example.com",
		ClientID:                    ClientCheckout,
		PaymentTokenValiditySeconds: 900,
	})
}

func (b *logBuilder) add(data EventData) *logBuilder {
	b.events = append(b.events, NewEvent(b.id, data, b.at))
	b.at = b.at.Add(time.Second)
	return b
}

func (b *logBuilder) authorized(result Outcome) *logBuilder {
	return b.add(AuthorizationRequestedData{Amount: 1250, Fee: 100, PspID: "psp-1", AuthorizationRequestID: "auth-1", Gateway: GatewayXPay}).
		add(AuthorizationCompletedData{Result: result, Timestamp: b.at})
}

func TestFoldHappyPath(t *testing.T) {
	b := newLog().authorized(OutcomeOK).
		add(ClosureRequestedData{Outcome: OutcomeOK}).
		add(ClosedData{NodeOutcome: OutcomeOK})

	tx, err := Fold(b.events)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, tx.Status)
	assert.Equal(t, b.id, tx.ID)
	assert.Equal(t, int64(1250), tx.Amount())
	assert.Equal(t, 15*time.Minute, tx.PaymentTokenValidity)
	assert.Equal(t, t0, tx.CreatedAt)
	assert.Equal(t, 5, tx.Version)
	assert.Empty(t, tx.RefundReason())

	tx, err = FoldFrom(tx, []Event{NewEvent(b.id, UserReceiptRequestedData{Outcome: OutcomeOK, PaymentDate: t0}, t0.Add(time.Minute))})
	require.NoError(t, err)
	assert.Equal(t, StatusNotifiedOk, tx.Status)
	assert.True(t, tx.Status.Final())
}

func TestFoldIsDeterministic(t *testing.T) {
	b := newLog().authorized(OutcomeKO).
		add(ClosureRequestedData{Outcome: OutcomeKO}).
		add(ClosedData{NodeOutcome: OutcomeOK}).
		add(RefundRequestedData{StatusBeforeRefund: StatusClosed, Reason: "authorization KO with node closure OK"})

	first, err := Fold(b.events)
	require.NoError(t, err)
	second, err := Fold(b.events)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, StatusRefundRequested, first.Status)
}

func TestFoldDoesNotAliasEventPayload(t *testing.T) {
	b := newLog()
	tx, err := Fold(b.events)
	require.NoError(t, err)

	tx.PaymentNotices[0].Amount = 1
	again, err := Fold(b.events)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), again.PaymentNotices[0].Amount)
}

func TestFoldScenarios(t *testing.T) {
	tests := []struct {
		name         string
		build        func() *logBuilder
		wantStatus   Status
		wantRefund   bool
		closureError int
	}{
		{
			name:  "authorization KO with node OK requires refund",
			build: func() *logBuilder {
				return newLog().authorized(OutcomeKO).
					add(ClosureRequestedData{Outcome: OutcomeKO}).
					add(ClosedData{NodeOutcome: OutcomeOK})
			},
			wantStatus: StatusClosed,
			wantRefund: true,
		},
		{
			name:  "node KO with authorization OK requires refund",
			build: func() *logBuilder {
				return newLog().authorized(OutcomeOK).
					add(ClosureRequestedData{Outcome: OutcomeOK}).
					add(ClosureFailedData{NodeOutcome: OutcomeKO})
			},
			wantStatus: StatusClosureFailed,
			wantRefund: true,
		},
		{
			name:  "node timeout then retry succeeds",
			build: func() *logBuilder {
				return newLog().authorized(OutcomeOK).
					add(ClosureErrorData{StatusCode: 504, Description: "timeout"}).
					add(ClosureRequestedData{Outcome: OutcomeOK}).
					add(ClosedData{NodeOutcome: OutcomeOK})
			},
			wantStatus:   StatusClosed,
			closureError: 1,
		},
		{
			name:  "receipt KO requires refund",
			build: func() *logBuilder {
				return newLog().authorized(OutcomeOK).
					add(ClosureRequestedData{Outcome: OutcomeOK}).
					add(ClosedData{NodeOutcome: OutcomeOK}).
					add(UserReceiptRequestedData{Outcome: OutcomeKO})
			},
			wantStatus: StatusNotifiedKo,
			wantRefund: true,
		},
		{
			name:  "expiry before authorization",
			build: func() *logBuilder {
				return newLog().add(ExpiredData{StatusBeforeExpiry: StatusActivated})
			},
			wantStatus: StatusExpiredNotAuthorized,
		},
		{
			name:  "expiry after closure error with authorization OK",
			build: func() *logBuilder {
				return newLog().authorized(OutcomeOK).
					add(ClosureErrorData{StatusCode: 500}).
					add(ExpiredData{StatusBeforeExpiry: StatusClosureError})
			},
			wantStatus: StatusExpired,
			wantRefund: true,
		},
		{
			name:  "cancellation then expiry",
			build: func() *logBuilder {
				return newLog().add(UserCanceledData{}).add(ExpiredData{StatusBeforeExpiry: StatusCanceled})
			},
			wantStatus: StatusCancellationExpired,
		},
		{
			name:  "refund after error",
			build: func() *logBuilder {
				return newLog().authorized(OutcomeOK).
					add(ClosureRequestedData{Outcome: OutcomeOK}).
					add(ClosureFailedData{NodeOutcome: OutcomeKO}).
					add(RefundRequestedData{StatusBeforeRefund: StatusClosureFailed}).
					add(RefundErrorData{Description: "gateway down"}).
					add(RefundedData{RefundID: "r-1"})
			},
			wantStatus: StatusRefunded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.build()
			tx, err := Fold(b.events)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, tx.Status)
			assert.Equal(t, tt.wantRefund, tx.RefundReason() != "")

			var closureErrors int
			for _, e := range b.events {
				if e.Code == EventClosureError {
					closureErrors++
				}
			}
			assert.Equal(t, tt.closureError, closureErrors)
		})
	}
}

func TestApplyRejectsInvalidTransitions(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name   string
		events []Event
	}{
		{
			name:   "authorization before activation",
			events: []Event{NewEvent(id, AuthorizationRequestedData{}, t0)},
		},
		{
			name:   "double activation",
			events: []Event{
				NewEvent(id, ActivatedData{ClientID: ClientIO}, t0),
				NewEvent(id, ActivatedData{ClientID: ClientIO}, t0),
			},
		},
		{
			name:   "closure from activated",
			events: []Event{
				NewEvent(id, ActivatedData{}, t0),
				NewEvent(id, ClosureRequestedData{Outcome: OutcomeOK}, t0),
			},
		},
		{
			name:   "closure error after closure error",
			events: append(newLog().authorized(OutcomeOK).add(ClosureErrorData{}).events,
				Event{ID: uuid.New(), Code: EventClosureError, Data: ClosureErrorData{}}),
		},
		{
			name:   "payload mismatch",
			events: []Event{
				{ID: uuid.New(), TransactionID: id, Code: EventActivated, Data: UserCanceledData{}},
			},
		},
		{
			name:   "unknown code",
			events: []Event{
				{ID: uuid.New(), TransactionID: id, Code: "SOMETHING", Data: UserCanceledData{}},
			},
		},
		{
			name:   "foreign transaction",
			events: []Event{
				NewEvent(id, ActivatedData{}, t0),
				NewEvent(uuid.New(), UserCanceledData{}, t0),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fold(tt.events)
			require.Error(t, err)
			assert.ErrorIs(t, err, ecommerce_errors.ErrInvalidTransition)

			var ite *InvalidTransitionError
			assert.ErrorAs(t, err, &ite)
		})
	}
}

func TestCanApply(t *testing.T) {
	assert.True(t, CanApply(StatusActivated, EventUserCanceled))
	assert.True(t, CanApply(StatusClosureError, EventClosureRequested))
	assert.False(t, CanApply(StatusClosureError, EventClosureError))
	assert.False(t, CanApply(StatusRefunded, EventRefundRequested))
}

func TestRefundReasonSkipsWhenAlreadyRequested(t *testing.T) {
	tx, err := Fold(newLog().authorized(OutcomeOK).
		add(ClosureRequestedData{Outcome: OutcomeOK}).
		add(ClosureFailedData{NodeOutcome: OutcomeKO}).events)
	require.NoError(t, err)
	assert.NotEmpty(t, tx.RefundReason())

	tx.Refund = &RefundRequestedData{}
	assert.Empty(t, tx.RefundReason())
}

func TestValidityEnd(t *testing.T) {
	tx, err := Fold(newLog().events)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(15*time.Minute), tx.ValidityEnd(time.Hour))

	tx.PaymentTokenValidity = 0
	assert.Equal(t, t0.Add(time.Hour), tx.ValidityEnd(time.Hour))
}
