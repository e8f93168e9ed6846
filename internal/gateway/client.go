// Package gateway calls the payment gateways that authorize and refund card
// and redirect payments.
package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"ecommerce-transactions/config"
	"ecommerce-transactions/internal/domain/transaction"
	"ecommerce-transactions/internal/platform/httpjson"
	ecommerce_errors "ecommerce-transactions/pkg/errors"
)

type AuthorizationRequest struct {
	TransactionID       uuid.UUID
	Gateway             transaction.PaymentGateway
	Amount              int64
	Fee                 int64
	PaymentInstrumentID string
	PspID               string
	Language            string
	Details             map[string]string
}

type AuthorizationResponse struct {
	AuthorizationRequestID string
	RedirectURL            string
}

type RefundRequest struct {
	TransactionID          uuid.UUID
	Gateway                transaction.PaymentGateway
	AuthorizationRequestID string
	Amount                 int64
}

type RefundResponse struct {
	RefundID string
}

type Client struct {
	http *httpjson.Client
}

func NewClient(cfg config.GatewayConfig) *Client {
	headers := http.Header{}
	if cfg.APIKey != "" {
		headers.Set("X-Api-Key", cfg.APIKey)
	}
	return &Client{http: httpjson.New(cfg.BaseURL, cfg.Timeout, headers)}
}

type authorizationBody struct {
	TransactionID       string            `json:"transactionId"`
	Amount              int64             `json:"amount"`
	Fee                 int64             `json:"fee"`
	PaymentInstrumentID string            `json:"paymentInstrumentId"`
	PspID               string            `json:"pspId"`
	Language            string            `json:"language,omitempty"`
	Details             map[string]string `json:"details,omitempty"`
}

type authorizationResult struct {
	AuthorizationRequestID string `json:"authorizationRequestId"`
	RedirectURL            string `json:"redirectUrl"`
}

func (c *Client) RequestAuthorization(ctx context.Context, req AuthorizationRequest) (AuthorizationResponse, error) {
	if !req.Gateway.Valid() {
		return AuthorizationResponse{}, ecommerce_errors.Invalid("unknown payment gateway %q", req.Gateway)
	}
	body := authorizationBody{
		TransactionID:       req.TransactionID.String(),
		Amount:              req.Amount,
		Fee:                 req.Fee,
		PaymentInstrumentID: req.PaymentInstrumentID,
		PspID:               req.PspID,
		Language:            req.Language,
		Details:             req.Details,
	}

	var res authorizationResult
	path := fmt.Sprintf("/gateways/%s/authorizations", gatewayPath(req.Gateway))
	if err := c.http.Do(ctx, "requestAuthorization", http.MethodPost, path, body, &res); err != nil {
		return AuthorizationResponse{}, err
	}
	if res.AuthorizationRequestID == "" {
		return AuthorizationResponse{}, &ecommerce_errors.GatewayError{Op: "requestAuthorization", StatusCode: http.StatusOK, Detail: "missing authorizationRequestId"}
	}
	return AuthorizationResponse{AuthorizationRequestID: res.AuthorizationRequestID, RedirectURL: res.RedirectURL}, nil
}

type refundBody struct {
	TransactionID          string `json:"transactionId"`
	AuthorizationRequestID string `json:"authorizationRequestId"`
	Amount                 int64  `json:"amount"`
}

type refundResult struct {
	RefundID string `json:"refundId"`
}

func (c *Client) Refund(ctx context.Context, req RefundRequest) (RefundResponse, error) {
	if !req.Gateway.Valid() {
		return RefundResponse{}, ecommerce_errors.Invalid("unknown payment gateway %q", req.Gateway)
	}
	body := refundBody{
		TransactionID:          req.TransactionID.String(),
		AuthorizationRequestID: req.AuthorizationRequestID,
		Amount:                 req.Amount,
	}

	var res refundResult
	path := fmt.Sprintf("/gateways/%s/refunds", gatewayPath(req.Gateway))
	if err := c.http.Do(ctx, "refund", http.MethodPost, path, body, &res); err != nil {
		return RefundResponse{}, err
	}
	return RefundResponse{RefundID: res.RefundID}, nil
}

func gatewayPath(g transaction.PaymentGateway) string {
	switch g {
	case transaction.GatewayXPay:
		return "xpay"
	case transaction.GatewayVPOS:
		return "vpos"
	default:
		return "redirect"
	}
}
