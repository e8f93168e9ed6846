package transaction

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ecommerce_errors "ecommerce-transactions/pkg/errors"
)

func TestParseRptID(t *testing.T) {
	id, err := ParseRptID("77777777777302016723749670035")
	require.NoError(t, err)
	assert.Equal(t, "77777777777", id.FiscalCode())
	assert.Equal(t, "302016723749670035", id.NoticeNumber())

	for _, bad := range []string{"", "7777777777730201672374967003", "7777777777730201672374967003X"} {
		_, err := ParseRptID(bad)
		assert.ErrorIs(t, err, ecommerce_errors.ErrInvalidRequest, bad)
	}
}

func TestNewIdempotencyKey(t *testing.T) {
	key, err := NewIdempotencyKey("77777777777")
	require.NoError(t, err)
	assert.True(t, key.Valid())
	assert.True(t, strings.HasPrefix(string(key), "77777777777_"))

	other, err := NewIdempotencyKey("77777777777")
	require.NoError(t, err)
	assert.NotEqual(t, key, other)

	_, err = NewIdempotencyKey("abc")
	assert.ErrorIs(t, err, ecommerce_errors.ErrInvalidRequest)
}

func TestIdempotencyKeyValid(t *testing.T) {
	tests := []struct {
		key  IdempotencyKey
		want bool
	}{
		{"77777777777_abcDEF1234", true},
		{"", false},
		{"77777777777_abc", false},
		{"7777777777_abcDEF1234", false},
		{"77777777777-abcDEF1234", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.key.Valid(), string(tt.key))
	}
}

func TestPaymentToken(t *testing.T) {
	assert.True(t, PaymentToken("abc").Valid())
	assert.False(t, PaymentToken("   ").Valid())
	assert.False(t, PaymentToken("").Valid())
}

func TestPaymentRequestInfo(t *testing.T) {
	info := PaymentRequestInfo{RptID: "777777777773020167237496016", Amount: 1200, ActivationDate: t0, PaymentToken: "tok"}
	assert.True(t, info.Activated())
	assert.Equal(t, 5*time.Minute, info.RemainingValidity(15*time.Minute, t0.Add(10*time.Minute)))
	assert.Equal(t, int64(1200), info.Notice().Amount)

	info.PaymentToken = " "
	assert.False(t, info.Activated())
}

func TestValidateStatusMapping(t *testing.T) {
	var names []string
	for _, s := range Statuses() {
		names = append(names, string(s))
	}
	assert.NoError(t, ValidateStatusMapping(names))

	err := ValidateStatusMapping(append(names[1:], "UNKNOWN"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACTIVATED")
	assert.Contains(t, err.Error(), "UNKNOWN")
}
