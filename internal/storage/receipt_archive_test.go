package storage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecommerce-transactions/config"
	"ecommerce-transactions/internal/domain/transaction"
	"ecommerce-transactions/internal/testutil"
)

type fakePutter struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func notifiedTransaction(t *testing.T) transaction.Transaction {
	paid := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	return testutil.NewEventLog(paid).
		Authorized(transaction.OutcomeOK).
		ClosedOK().
		Add(transaction.UserReceiptRequestedData{Outcome: transaction.OutcomeOK, PaymentDate: paid, Language: "it"}).
		Transaction(t)
}

func TestArchiveReceipt(t *testing.T) {
	putter := &fakePutter{}
	archive := &ReceiptArchive{bucket: "receipts-bucket", s3: putter}
	tx := notifiedTransaction(t)

	r, err := NewReceipt(tx)
	require.NoError(t, err)
	assert.Len(t, r.Notices, 2)
	assert.Equal(t, int64(100), r.Fee)

	key, err := archive.Archive(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "receipts/2026/07/"+tx.ID.String()+".json", key)

	require.Len(t, putter.inputs, 1)
	in := putter.inputs[0]
	assert.Equal(t, "receipts-bucket", aws.ToString(in.Bucket))
	assert.Equal(t, "application/json", aws.ToString(in.ContentType))
	assert.Equal(t, int64(len(putter.bodies[0])), aws.ToInt64(in.ContentLength))
	assert.Contains(t, string(putter.bodies[0]), tx.ID.String())
}

func TestArchiveReceiptFailure(t *testing.T) {
	archive := &ReceiptArchive{bucket: "b", s3: &fakePutter{err: errors.New("access denied")}}
	r, err := NewReceipt(notifiedTransaction(t))
	require.NoError(t, err)

	_, err = archive.Archive(context.Background(), r)
	assert.ErrorContains(t, err, "access denied")
}

func TestNewReceiptRequiresUserReceipt(t *testing.T) {
	_, err := NewReceipt(testutil.NewEventLog(time.Now()).Transaction(t))
	assert.Error(t, err)
}

func TestNewReceiptArchiveRequiresBucket(t *testing.T) {
	_, err := NewReceiptArchive(context.Background(), config.S3Config{Region: "eu-south-1"})
	assert.Error(t, err)
}
