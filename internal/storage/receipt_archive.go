package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"ecommerce-transactions/config"
	"ecommerce-transactions/internal/domain/transaction"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type ReceiptNotice struct {
	RptID        string `json:"rptId"`
	Description  string `json:"description"`
	CreditorName string `json:"creditorName,omitempty"`
	Amount       int64  `json:"amount"`
}

// Receipt is the archived proof of a notified payment.
type Receipt struct {
	TransactionID string          `json:"transactionId"`
	Outcome       string          `json:"outcome"`
	PaymentDate   time.Time       `json:"paymentDate"`
	Language      string          `json:"language,omitempty"`
	Email         string          `json:"email"`
	Amount        int64           `json:"amount"`
	Fee           int64           `json:"fee"`
	PspBusiness   string          `json:"pspBusinessName,omitempty"`
	Notices       []ReceiptNotice `json:"notices"`
}

func NewReceipt(tx transaction.Transaction) (Receipt, error) {
	if tx.Receipt == nil {
		return Receipt{}, fmt.Errorf("transaction %s has no user receipt", tx.ID)
	}
	r := Receipt{
		TransactionID: tx.ID.String(),
		Outcome:       string(tx.Receipt.Outcome),
		PaymentDate:   tx.Receipt.PaymentDate,
		Language:      tx.Receipt.Language,
		Email:         tx.Email,
		Amount:        tx.Amount(),
	}
	if a := tx.Authorization; a != nil {
		r.Fee = a.Fee
		r.PspBusiness = a.PspBusinessName
	}
	for _, n := range tx.PaymentNotices {
		r.Notices = append(r.Notices, ReceiptNotice{
			RptID:        n.RptID.String(),
			Description:  n.Description,
			CreditorName: n.CreditorName,
			Amount:       n.Amount,
		})
	}
	return r, nil
}

// ReceiptKey lays receipts out by payment month.
func ReceiptKey(r Receipt) string {
	return fmt.Sprintf("receipts/%s/%s.json", r.PaymentDate.UTC().Format("2006/01"), r.TransactionID)
}

type ReceiptArchive struct {
	bucket string
	s3     objectPutter
}

func NewReceiptArchive(ctx context.Context, cfg config.S3Config) (*ReceiptArchive, error) {
	if cfg.Region == "" || cfg.Bucket == "" {
		return nil, errors.New("s3 region and bucket are required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &ReceiptArchive{bucket: cfg.Bucket, s3: client}, nil
}

// Archive stores r as JSON and returns its object key. Rewriting the same
// receipt overwrites the object, so redelivered messages are harmless.
func (a *ReceiptArchive) Archive(ctx context.Context, r Receipt) (string, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	key := ReceiptKey(r)
	_, err = a.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(a.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(body),
		ContentType:          aws.String("application/json"),
		ContentLength:        aws.Int64(int64(len(body))),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
		Metadata:             map[string]string{"outcome": r.Outcome},
	})
	if err != nil {
		return "", fmt.Errorf("archive receipt %s: %w", r.TransactionID, err)
	}
	return key, nil
}
