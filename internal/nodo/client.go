// Package nodo talks to the national payment node.
package nodo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ecommerce-transactions/config"
	"ecommerce-transactions/internal/domain/transaction"
	"ecommerce-transactions/internal/platform/httpjson"
	ecommerce_errors "ecommerce-transactions/pkg/errors"
)

type ActivateRequest struct {
	RptID          transaction.RptID
	IdempotencyKey transaction.IdempotencyKey
	Amount         int64
	TokenValidity  time.Duration
}

type ActivateResponse struct {
	PaymentToken transaction.PaymentToken
	Amount       int64
	Description  string
	CreditorName string
	DueDate      string
}

type ClosePaymentRequest struct {
	TransactionID     uuid.UUID
	PaymentTokens     []transaction.PaymentToken
	Outcome           transaction.Outcome
	TotalAmount       int64
	Fee               int64
	PspID             string
	BrokerName        string
	ChannelCode       string
	PaymentTypeCode   string
	AuthorizationCode string
	Timestamp         time.Time
}

type ClosePaymentResponse struct {
	Outcome transaction.Outcome
}

type Client struct {
	http *httpjson.Client
}

func NewClient(cfg config.NodoConfig) *Client {
	headers := http.Header{}
	if cfg.SubscriptionKey != "" {
		headers.Set("Ocp-Apim-Subscription-Key", cfg.SubscriptionKey)
	}
	return &Client{http: httpjson.New(cfg.BaseURL, cfg.Timeout, headers)}
}

type activateBody struct {
	FiscalCode     string `json:"fiscalCode"`
	NoticeNumber   string `json:"noticeNumber"`
	IdempotencyKey string `json:"idempotencyKey"`
	Amount         string `json:"amount"`
	ExpirationTime int64  `json:"expirationTime"`
}

type fault struct {
	FaultCode   string `json:"faultCode"`
	Description string `json:"description"`
}

type activateResult struct {
	Outcome            string `json:"outcome"`
	PaymentToken       string `json:"paymentToken"`
	TotalAmount        string `json:"totalAmount"`
	PaymentDescription string `json:"paymentDescription"`
	CompanyName        string `json:"companyName"`
	DueDate            string `json:"dueDate"`
	Fault              *fault `json:"fault"`
}

// Activate reserves the notice at the node. Business rejections come back as *NodoError.
func (c *Client) Activate(ctx context.Context, req ActivateRequest) (ActivateResponse, error) {
	body := activateBody{
		FiscalCode:     req.RptID.FiscalCode(),
		NoticeNumber:   req.RptID.NoticeNumber(),
		IdempotencyKey: string(req.IdempotencyKey),
		Amount:         Euros(req.Amount),
		ExpirationTime: req.TokenValidity.Milliseconds(),
	}

	var res activateResult
	if err := c.http.Do(ctx, "activatePaymentNotice", http.MethodPost, "/nodo/activatePaymentNotice", body, &res); err != nil {
		return ActivateResponse{}, activationFault(err)
	}
	if res.Outcome != string(transaction.OutcomeOK) {
		nodoErr := &ecommerce_errors.NodoError{FaultCode: "PPT_SYSTEM_ERROR"}
		if res.Fault != nil {
			nodoErr.FaultCode = res.Fault.FaultCode
			nodoErr.Description = res.Fault.Description
		}
		return ActivateResponse{}, nodoErr
	}
	if !transaction.PaymentToken(res.PaymentToken).Valid() {
		return ActivateResponse{}, &ecommerce_errors.GatewayError{Op: "activatePaymentNotice", StatusCode: http.StatusOK, Detail: "blank payment token"}
	}

	amount := req.Amount
	if res.TotalAmount != "" {
		cents, err := Cents(res.TotalAmount)
		if err != nil {
			return ActivateResponse{}, &ecommerce_errors.GatewayError{Op: "activatePaymentNotice", StatusCode: http.StatusOK, Detail: "malformed totalAmount", Err: err}
		}
		amount = cents
	}

	return ActivateResponse{
		PaymentToken: transaction.PaymentToken(res.PaymentToken),
		Amount:       amount,
		Description:  res.PaymentDescription,
		CreditorName: res.CompanyName,
		DueDate:      res.DueDate,
	}, nil
}

// activationFault turns a 4xx rejection carrying a fault code into *NodoError.
func activationFault(err error) error {
	var gwErr *ecommerce_errors.GatewayError
	if !errors.As(err, &gwErr) || !gwErr.ClientError() || gwErr.Code == "" {
		return err
	}
	return &ecommerce_errors.NodoError{FaultCode: gwErr.Code, Description: gwErr.Detail}
}

type closePaymentBody struct {
	PaymentTokens         []string          `json:"paymentTokens"`
	Outcome               string            `json:"outcome"`
	IdPSP                 string            `json:"idPSP,omitempty"`
	IdBrokerPSP           string            `json:"idBrokerPSP,omitempty"`
	IdChannel             string            `json:"idChannel,omitempty"`
	PaymentMethod         string            `json:"paymentMethod,omitempty"`
	TransactionID         string            `json:"transactionId"`
	TotalAmount           string            `json:"totalAmount,omitempty"`
	Fee                   string            `json:"fee,omitempty"`
	TimestampOperation    string            `json:"timestampOperation"`
	AdditionalPaymentInfo map[string]string `json:"additionalPaymentInformations,omitempty"`
}

type closePaymentResult struct {
	Outcome string `json:"outcome"`
}

// ClosePayment reports the authorization outcome for the transaction's tokens.
func (c *Client) ClosePayment(ctx context.Context, req ClosePaymentRequest) (ClosePaymentResponse, error) {
	tokens := make([]string, 0, len(req.PaymentTokens))
	for _, t := range req.PaymentTokens {
		tokens = append(tokens, string(t))
	}
	body := closePaymentBody{
		PaymentTokens:      tokens,
		Outcome:            string(req.Outcome),
		TransactionID:      req.TransactionID.String(),
		TimestampOperation: req.Timestamp.UTC().Format(time.RFC3339),
	}
	if req.Outcome == transaction.OutcomeOK {
		body.IdPSP = req.PspID
		body.IdBrokerPSP = req.BrokerName
		body.IdChannel = req.ChannelCode
		body.PaymentMethod = req.PaymentTypeCode
		body.TotalAmount = Euros(req.TotalAmount + req.Fee)
		body.Fee = Euros(req.Fee)
		if req.AuthorizationCode != "" {
			body.AdditionalPaymentInfo = map[string]string{"authorizationCode": req.AuthorizationCode}
		}
	}

	var res closePaymentResult
	if err := c.http.Do(ctx, "closePayment", http.MethodPost, "/nodo/closepayment", body, &res); err != nil {
		return ClosePaymentResponse{}, err
	}
	outcome := transaction.Outcome(res.Outcome)
	if !outcome.Valid() {
		return ClosePaymentResponse{}, &ecommerce_errors.GatewayError{Op: "closePayment", StatusCode: http.StatusOK, Detail: fmt.Sprintf("unknown outcome %q", res.Outcome)}
	}
	return ClosePaymentResponse{Outcome: outcome}, nil
}

// Euros formats euro cents the way the node expects them.
func Euros(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// Cents parses a node euro amount.
func Cents(euros string) (int64, error) {
	d, err := decimal.NewFromString(euros)
	if err != nil {
		return 0, err
	}
	return d.Shift(2).Round(0).IntPart(), nil
}
