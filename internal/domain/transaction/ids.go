package transaction

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	ecommerce_errors "ecommerce-transactions/pkg/errors"
)

var (
	rptIDPattern          = regexp.MustCompile(`^\d{29}$`)
	idempotencyKeyPattern = regexp.MustCompile(`^\d{11}_[a-zA-Z\d]{10}$`)
	fiscalCodePattern     = regexp.MustCompile(`^\d{11}$`)
)

// RptID identifies a payment notice: creditor fiscal code followed by the notice number.
type RptID string

func ParseRptID(s string) (RptID, error) {
	if !rptIDPattern.MatchString(s) {
		return "", ecommerce_errors.Invalid("malformed rpt id %q", s)
	}
	return RptID(s), nil
}

func (r RptID) FiscalCode() string {
	return string(r)[:11]
}

func (r RptID) NoticeNumber() string {
	return string(r)[11:]
}

func (r RptID) String() string {
	return string(r)
}

// IdempotencyKey deduplicates node activations of the same notice.
type IdempotencyKey string

const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewIdempotencyKey builds a fresh key prefixed by the issuer fiscal code.
func NewIdempotencyKey(issuerFiscalCode string) (IdempotencyKey, error) {
	if !fiscalCodePattern.MatchString(issuerFiscalCode) {
		return "", ecommerce_errors.Invalid("malformed issuer fiscal code %q", issuerFiscalCode)
	}
	var sb strings.Builder
	sb.WriteString(issuerFiscalCode)
	sb.WriteByte('_')
	limit := big.NewInt(int64(len(keyAlphabet)))
	for i := 0; i < 10; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate idempotency key: %w", err)
		}
		sb.WriteByte(keyAlphabet[n.Int64()])
	}
	return IdempotencyKey(sb.String()), nil
}

func (k IdempotencyKey) Valid() bool {
	return idempotencyKeyPattern.MatchString(string(k))
}

// PaymentToken is issued by the node on activation.
type PaymentToken string

func (t PaymentToken) Valid() bool {
	return strings.TrimSpace(string(t)) != ""
}
