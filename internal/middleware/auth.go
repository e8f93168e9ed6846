package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ecommerce-transactions/internal/auth"
	"ecommerce-transactions/internal/transport/httpdto"
)

type TokenParser interface {
	Parse(token string) (auth.TransactionClaims, error)
}

// TransactionAuth requires a bearer token issued for the transaction named
// by the :id path parameter.
func TransactionAuth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := parser.Parse(extractBearer(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", httpdto.CodeUnauthorized))
			return
		}
		if id := c.Param("id"); id != "" && !strings.EqualFold(id, claims.TransactionID) {
			c.AbortWithStatusJSON(http.StatusForbidden, httpdto.NewErrorResponse("token issued for another transaction", httpdto.CodeForbidden))
			return
		}

		c.Request = c.Request.WithContext(auth.WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
