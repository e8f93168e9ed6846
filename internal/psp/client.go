// Package psp queries the fee bundles PSPs offer for a payment method.
package psp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"ecommerce-transactions/config"
	"ecommerce-transactions/internal/platform/httpjson"
)

type Bundle struct {
	PspID           string `json:"idPsp"`
	PspBusinessName string `json:"pspBusinessName"`
	BrokerName      string `json:"idBrokerPsp"`
	ChannelCode     string `json:"idChannel"`
	PaymentTypeCode string `json:"paymentMethod"`
	Fee             int64  `json:"taxPayerFee"`
}

type FeeRequest struct {
	PaymentMethodID string
	Amount          int64
}

type Client struct {
	http *httpjson.Client
}

func NewClient(cfg config.PspConfig) *Client {
	return &Client{http: httpjson.New(cfg.BaseURL, cfg.Timeout, nil)}
}

type bundlesResult struct {
	Bundles []Bundle `json:"bundleOptions"`
}

func (c *Client) CalculateFees(ctx context.Context, req FeeRequest) ([]Bundle, error) {
	q := url.Values{}
	q.Set("paymentMethodId", req.PaymentMethodID)
	q.Set("amount", fmt.Sprintf("%d", req.Amount))

	var res bundlesResult
	if err := c.http.Do(ctx, "calculateFees", http.MethodGet, "/psps/bundles?"+q.Encode(), nil, &res); err != nil {
		return nil, err
	}
	return res.Bundles, nil
}

// Match returns the bundle offered by pspID at exactly fee.
func Match(bundles []Bundle, pspID string, fee int64) (Bundle, bool) {
	for _, b := range bundles {
		if b.PspID == pspID && b.Fee == fee {
			return b, true
		}
	}
	return Bundle{}, false
}
