package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ecommerce-transactions/internal/domain/transaction"
)

// schemaVersion is written with every new event row.
const schemaVersion = 2

type eventDecoder func(raw []byte) (transaction.EventData, error)

func decodeAs[T transaction.EventData](raw []byte) (transaction.EventData, error) {
	var d T
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return d, nil
}

var decoders = map[transaction.EventCode]eventDecoder{
	transaction.EventActivated:              decodeAs[transaction.ActivatedData],
	transaction.EventAuthorizationRequested: decodeAs[transaction.AuthorizationRequestedData],
	transaction.EventAuthorizationCompleted: decodeAs[transaction.AuthorizationCompletedData],
	transaction.EventClosureRequested:       decodeAs[transaction.ClosureRequestedData],
	transaction.EventClosed:                 decodeAs[transaction.ClosedData],
	transaction.EventClosureFailed:          decodeAs[transaction.ClosureFailedData],
	transaction.EventClosureError:           decodeAs[transaction.ClosureErrorData],
	transaction.EventUserReceiptRequested:   decodeAs[transaction.UserReceiptRequestedData],
	transaction.EventRefundRequested:        decodeAs[transaction.RefundRequestedData],
	transaction.EventRefundError:            decodeAs[transaction.RefundErrorData],
	transaction.EventRefunded:               decodeAs[transaction.RefundedData],
	transaction.EventUserCanceled:           decodeAs[transaction.UserCanceledData],
	transaction.EventExpired:                decodeAs[transaction.ExpiredData],
}

// legacyActivated is the v1 activation payload, which carried a single notice.
type legacyActivated struct {
	RptID                       string `json:"rptId"`
	PaymentToken                string `json:"paymentToken"`
	IdempotencyKey              string `json:"idempotencyKey"`
	Amount                      int64  `json:"amount"`
	Description                 string `json:"description"`
	Email                       string `json:"email"`
	ClientID                    string `json:"clientId"`
	PaymentTokenValiditySeconds int    `json:"paymentTokenValiditySeconds"`
}

var legacyDecoders = map[int]map[transaction.EventCode]eventDecoder{
	1: {
		transaction.EventActivated: func(raw []byte) (transaction.EventData, error) {
			var v1 legacyActivated
			if err := json.Unmarshal(raw, &v1); err != nil {
				return nil, err
			}
			clientID := transaction.ClientID(v1.ClientID)
			if clientID == "" {
				clientID = transaction.ClientCheckout
			}
			return transaction.ActivatedData{
				PaymentNotices: []transaction.PaymentNotice{{
					RptID:          transaction.RptID(v1.RptID),
					PaymentToken:   transaction.PaymentToken(v1.PaymentToken),
					IdempotencyKey: transaction.IdempotencyKey(v1.IdempotencyKey),
					Amount:         v1.Amount,
					Description:    v1.Description,
				}},
				Email:                       v1.Email,
				ClientID:                    clientID,
				PaymentTokenValiditySeconds: v1.PaymentTokenValiditySeconds,
			}, nil
		},
	},
}

func encodeEventData(data transaction.EventData) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", data.EventCode(), err)
	}
	return raw, nil
}

// decodeEventData picks the decoder for the stored schema version.
// Versions other than the current one fall back to the current decoder
// when no dedicated legacy decoder exists.
func decodeEventData(code transaction.EventCode, version int, raw []byte) (transaction.EventData, error) {
	dec, ok := legacyDecoders[version][code]
	if !ok {
		dec, ok = decoders[code]
	}
	if !ok {
		return nil, fmt.Errorf("decode event: unknown code %s", code)
	}
	data, err := dec(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s v%d: %w", code, version, err)
	}
	return data, nil
}

type eventRow struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	Code          string
	Version       int
	Data          []byte
	CreatedAt     time.Time
}

func (r eventRow) toEvent() (transaction.Event, error) {
	code := transaction.EventCode(r.Code)
	data, err := decodeEventData(code, r.Version, r.Data)
	if err != nil {
		return transaction.Event{}, err
	}
	return transaction.Event{
		ID:            r.ID,
		TransactionID: r.TransactionID,
		Code:          code,
		CreatedAt:     r.CreatedAt.UTC(),
		Data:          data,
	}, nil
}
