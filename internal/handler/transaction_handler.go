package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ecommerce-transactions/internal/commands"
	"ecommerce-transactions/internal/domain/transaction"
	"ecommerce-transactions/internal/services"
	"ecommerce-transactions/internal/transport/httpdto"
	ecommerce_errors "ecommerce-transactions/pkg/errors"
)

const ClientIDHeader = "X-Client-Id"

type TransactionService interface {
	Activate(ctx context.Context, cmd *commands.ActivateTransaction) (services.Activation, error)
	Get(ctx context.Context, id uuid.UUID) (transaction.Transaction, error)
	RequestAuthorization(ctx context.Context, cmd *commands.RequestAuthorization) (transaction.Transaction, commands.AuthorizationResult, error)
	UpdateAuthorization(ctx context.Context, cmd *commands.UpdateAuthorization) (transaction.Transaction, error)
	AddUserReceipt(ctx context.Context, cmd *commands.AddUserReceipt) (transaction.Transaction, error)
	Cancel(ctx context.Context, id uuid.UUID) (transaction.Transaction, error)
}

type TransactionHandler struct {
	service TransactionService
	clock   func() time.Time
}

func NewTransactionHandler(service TransactionService) *TransactionHandler {
	return &TransactionHandler{service: service, clock: time.Now}
}

func (h *TransactionHandler) Create(c *gin.Context) {
	var req httpdto.NewTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(ecommerce_errors.Invalid("%v", err))
		return
	}

	clientID := transaction.ClientID(strings.ToUpper(c.GetHeader(ClientIDHeader)))
	if clientID == "" {
		clientID = transaction.ClientCheckout
	}
	cmd := &commands.ActivateTransaction{Email: req.Email, ClientID: clientID}
	for _, n := range req.PaymentNotices {
		cmd.Notices = append(cmd.Notices, commands.NoticeRequest{RptID: transaction.RptID(n.RptID), Amount: n.Amount})
	}

	act, err := h.service.Activate(c.Request.Context(), cmd)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewTransactionResponseFrom(act.Transaction, act.AuthToken)))
}

func (h *TransactionHandler) Get(c *gin.Context) {
	id, ok := transactionID(c)
	if !ok {
		return
	}
	tx, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.TransactionInfoFrom(tx)))
}

func (h *TransactionHandler) RequestAuthorization(c *gin.Context) {
	id, ok := transactionID(c)
	if !ok {
		return
	}
	var req httpdto.RequestAuthorizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(ecommerce_errors.Invalid("%v", err))
		return
	}

	_, auth, err := h.service.RequestAuthorization(c.Request.Context(), &commands.RequestAuthorization{
		TransactionID:       id,
		Amount:              req.Amount,
		Fee:                 req.Fee,
		PaymentInstrumentID: req.PaymentInstrumentID,
		PaymentMethodID:     req.PaymentMethodID,
		PaymentMethodName:   req.PaymentMethodName,
		PspID:               req.PspID,
		Gateway:             transaction.PaymentGateway(strings.ToUpper(req.Gateway)),
		Language:            req.Language,
		Details:             req.Details,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.RequestAuthorizationResponse{
		AuthorizationRequestID: auth.AuthorizationRequestID,
		AuthorizationURL:       auth.RedirectURL,
	}))
}

// UpdateAuthorization receives the gateway outcome. The closure to the node
// runs before the response is written.
func (h *TransactionHandler) UpdateAuthorization(c *gin.Context) {
	id, ok := transactionID(c)
	if !ok {
		return
	}
	var req httpdto.UpdateAuthorizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(ecommerce_errors.Invalid("%v", err))
		return
	}
	timestamp := req.Timestamp
	if timestamp.IsZero() {
		timestamp = h.clock()
	}

	tx, err := h.service.UpdateAuthorization(c.Request.Context(), &commands.UpdateAuthorization{
		TransactionID:     id,
		Outcome:           transaction.Outcome(strings.ToUpper(req.AuthorizationResult)),
		AuthorizationCode: req.AuthorizationCode,
		ErrorCode:         req.ErrorCode,
		Timestamp:         timestamp,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.TransactionInfoFrom(tx)))
}

func (h *TransactionHandler) AddUserReceipt(c *gin.Context) {
	id, ok := transactionID(c)
	if !ok {
		return
	}
	var req httpdto.AddUserReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(ecommerce_errors.Invalid("%v", err))
		return
	}
	paymentDate := req.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = h.clock()
	}

	tx, err := h.service.AddUserReceipt(c.Request.Context(), &commands.AddUserReceipt{
		TransactionID: id,
		Outcome:       transaction.Outcome(strings.ToUpper(req.Outcome)),
		PaymentDate:   paymentDate,
		Language:      req.Language,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.TransactionInfoFrom(tx)))
}

func (h *TransactionHandler) Cancel(c *gin.Context) {
	id, ok := transactionID(c)
	if !ok {
		return
	}
	if _, err := h.service.Cancel(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusAccepted)
}

func transactionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(ecommerce_errors.Invalid("invalid transaction id %q", c.Param("id")))
		return uuid.Nil, false
	}
	return id, true
}
