package httpdto

import (
	"time"

	"ecommerce-transactions/internal/domain/transaction"
)

type PaymentNoticeRequest struct {
	RptID  string `json:"rptId" binding:"required"`
	Amount int64  `json:"amount" binding:"required,gt=0"`
}

type NewTransactionRequest struct {
	PaymentNotices []PaymentNoticeRequest `json:"paymentNotices" binding:"required,min=1,dive"`
	Email          string                 `json:"email" binding:"required"`
}

type PaymentNoticeInfo struct {
	RptID        string `json:"rptId"`
	PaymentToken string `json:"paymentToken"`
	Amount       int64  `json:"amount"`
	Description  string `json:"description,omitempty"`
	CreditorName string `json:"creditorName,omitempty"`
}

type NewTransactionResponse struct {
	TransactionID  string              `json:"transactionId"`
	Status         TransactionStatus   `json:"status"`
	AuthToken      string              `json:"authToken"`
	Amount         int64               `json:"amount"`
	ClientID       string              `json:"clientId"`
	PaymentNotices []PaymentNoticeInfo `json:"paymentNotices"`
}

type TransactionInfo struct {
	TransactionID     string              `json:"transactionId"`
	Status            TransactionStatus   `json:"status"`
	Amount            int64               `json:"amount"`
	Fee               int64               `json:"fee,omitempty"`
	ClientID          string              `json:"clientId"`
	PaymentNotices    []PaymentNoticeInfo `json:"paymentNotices"`
	AuthorizationCode string              `json:"authorizationCode,omitempty"`
	ErrorCode         string              `json:"errorCode,omitempty"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
	Version           int                 `json:"version"`
}

type RequestAuthorizationRequest struct {
	Amount              int64             `json:"amount" binding:"required,gt=0"`
	Fee                 int64             `json:"fee" binding:"gte=0"`
	PaymentInstrumentID string            `json:"paymentInstrumentId" binding:"required"`
	PaymentMethodID     string            `json:"paymentMethodId"`
	PaymentMethodName   string            `json:"paymentMethodName"`
	PspID               string            `json:"pspId" binding:"required"`
	Gateway             string            `json:"gateway" binding:"required"`
	Language            string            `json:"language"`
	Details             map[string]string `json:"details"`
}

type RequestAuthorizationResponse struct {
	AuthorizationRequestID string `json:"authorizationRequestId"`
	AuthorizationURL       string `json:"authorizationUrl"`
}

type UpdateAuthorizationRequest struct {
	AuthorizationResult string    `json:"authorizationResult" binding:"required"`
	AuthorizationCode   string    `json:"authorizationCode"`
	ErrorCode           string    `json:"errorCode"`
	Timestamp           time.Time `json:"timestampOperation"`
}

type AddUserReceiptRequest struct {
	Outcome     string    `json:"outcome" binding:"required"`
	PaymentDate time.Time `json:"paymentDate"`
	Language    string    `json:"language"`
}

func noticeInfos(tx transaction.Transaction) []PaymentNoticeInfo {
	out := make([]PaymentNoticeInfo, 0, len(tx.PaymentNotices))
	for _, n := range tx.PaymentNotices {
		out = append(out, PaymentNoticeInfo{
			RptID:        n.RptID.String(),
			PaymentToken: string(n.PaymentToken),
			Amount:       n.Amount,
			Description:  n.Description,
			CreditorName: n.CreditorName,
		})
	}
	return out
}

func NewTransactionResponseFrom(tx transaction.Transaction, authToken string) NewTransactionResponse {
	return NewTransactionResponse{
		TransactionID:  tx.ID.String(),
		Status:         TransactionStatus(tx.Status),
		AuthToken:      authToken,
		Amount:         tx.Amount(),
		ClientID:       string(tx.ClientID),
		PaymentNotices: noticeInfos(tx),
	}
}

func TransactionInfoFrom(tx transaction.Transaction) TransactionInfo {
	info := TransactionInfo{
		TransactionID:  tx.ID.String(),
		Status:         TransactionStatus(tx.Status),
		Amount:         tx.Amount(),
		ClientID:       string(tx.ClientID),
		PaymentNotices: noticeInfos(tx),
		CreatedAt:      tx.CreatedAt,
		UpdatedAt:      tx.UpdatedAt,
		Version:        tx.Version,
	}
	if tx.Authorization != nil {
		info.Fee = tx.Authorization.Fee
	}
	if r := tx.AuthorizationResult; r != nil {
		info.AuthorizationCode = r.AuthorizationCode
		info.ErrorCode = r.ErrorCode
	}
	return info
}
