package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecommerce-transactions/internal/domain/transaction"
)

func TestActivatedRoundTrip(t *testing.T) {
	data := transaction.ActivatedData{
		Email:    "a@b.c",
		ClientID: transaction.ClientIO,
		PaymentNotices: []transaction.PaymentNotice{
			{RptID: "77777777777302016723749670035", PaymentToken: "tok", Amount: 10},
		},
		PaymentTokenValiditySeconds: 900,
	}
	raw, err := encodeEventData(data)
	require.NoError(t, err)

	got, err := decodeEventData(transaction.EventActivated, schemaVersion, raw)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestUnknownVersionFallsBackToCurrentDecoder(t *testing.T) {
	got, err := decodeEventData(transaction.EventClosureError, 7, []byte(`{"statusCode":502,"description":"bad gateway"}`))
	require.NoError(t, err)
	assert.Equal(t, transaction.ClosureErrorData{StatusCode: 502, Description: "bad gateway"}, got)
}

func TestDecodeUnknownCode(t *testing.T) {
	_, err := decodeEventData("NOPE", schemaVersion, []byte(`{}`))
	assert.ErrorContains(t, err, "unknown code")
}

func TestDecodeLegacyActivated(t *testing.T) {
	raw := []byte(`{"rptId":"77777777777302016723749670035","paymentToken":"tok","amount":300,"clientId":"IO"}`)
	data, err := decodeEventData(transaction.EventActivated, 1, raw)
	require.NoError(t, err)

	activated, ok := data.(transaction.ActivatedData)
	require.True(t, ok)
	require.Len(t, activated.PaymentNotices, 1)
	assert.Equal(t, transaction.RptID("77777777777302016723749670035"), activated.PaymentNotices[0].RptID)
	assert.Equal(t, transaction.ClientIO, activated.ClientID)
}
