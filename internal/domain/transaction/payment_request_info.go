package transaction

import "time"

// PaymentRequestInfo tracks activation progress of a notice in the idempotency cache.
type PaymentRequestInfo struct {
	RptID          RptID          `json:"rptId"`
	Amount         int64          `json:"amount"`
	Description    string         `json:"description,omitempty"`
	DueDate        string         `json:"dueDate,omitempty"`
	CreditorName   string         `json:"creditorName,omitempty"`
	IdempotencyKey IdempotencyKey `json:"idempotencyKey"`
	PaymentToken   PaymentToken   `json:"paymentToken,omitempty"`
	ActivationDate time.Time      `json:"activationDate,omitzero"`
}

// Activated reports whether the node already issued a token for this notice.
func (p PaymentRequestInfo) Activated() bool {
	return p.PaymentToken.Valid()
}

// RemainingValidity is how long the cached token stays usable.
func (p PaymentRequestInfo) RemainingValidity(tokenTTL time.Duration, now time.Time) time.Duration {
	return p.ActivationDate.Add(tokenTTL).Sub(now)
}

func (p PaymentRequestInfo) Notice() PaymentNotice {
	return PaymentNotice{
		RptID:          p.RptID,
		PaymentToken:   p.PaymentToken,
		IdempotencyKey: p.IdempotencyKey,
		Amount:         p.Amount,
		Description:    p.Description,
		CreditorName:   p.CreditorName,
	}
}
