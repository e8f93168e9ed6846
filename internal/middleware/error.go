package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ecommerce-transactions/internal/transport/httpdto"
	ecommerce_errors "ecommerce-transactions/pkg/errors"
	"ecommerce-transactions/pkg/logger"
)

// StatusFor maps a domain error to its HTTP status and response code.
func StatusFor(err error) (int, string) {
	var nodoErr *ecommerce_errors.NodoError
	var gwErr *ecommerce_errors.GatewayError
	switch {
	case errors.Is(err, ecommerce_errors.ErrInvalidRequest):
		return http.StatusBadRequest, httpdto.CodeInvalidRequest
	case errors.Is(err, ecommerce_errors.ErrUnauthorized):
		return http.StatusUnauthorized, httpdto.CodeUnauthorized
	case errors.Is(err, ecommerce_errors.ErrForbidden):
		return http.StatusForbidden, httpdto.CodeForbidden
	case errors.Is(err, ecommerce_errors.ErrTransactionNotFound), errors.Is(err, ecommerce_errors.ErrNotFound):
		return http.StatusNotFound, httpdto.CodeNotFound
	case errors.Is(err, ecommerce_errors.ErrAlreadyProcessed):
		return http.StatusConflict, httpdto.CodeAlreadyProcessed
	case errors.Is(err, ecommerce_errors.ErrConflict):
		return http.StatusConflict, httpdto.CodeConflict
	case errors.Is(err, ecommerce_errors.ErrUnsatisfiablePspRequest):
		return http.StatusConflict, httpdto.CodeUnsatisfiablePsp
	case errors.As(err, &nodoErr):
		if nodoErr.Duplicate() {
			return http.StatusConflict, httpdto.CodePaymentInProgress
		}
		return http.StatusBadGateway, httpdto.CodeNodoFault
	case errors.As(err, &gwErr):
		if gwErr.Timeout() {
			return http.StatusGatewayTimeout, httpdto.CodeGatewayTimeout
		}
		return http.StatusBadGateway, httpdto.CodeGatewayError
	case errors.Is(err, ecommerce_errors.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, httpdto.CodeServiceUnavailable
	}
	return http.StatusInternalServerError, httpdto.CodeInternal
}

// ErrorHandler renders the last error a handler attached with c.Error.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status, code := StatusFor(err)
		message := err.Error()
		if status >= http.StatusInternalServerError {
			l.Error(c.Request.Context(), "request failed", zap.String("code", code), zap.Error(err))
			if status == http.StatusInternalServerError {
				message = "internal error"
			}
		} else {
			l.Warn(c.Request.Context(), "request rejected", zap.String("code", code), zap.Error(err))
		}
		c.JSON(status, httpdto.NewErrorResponse(message, code))
	}
}
