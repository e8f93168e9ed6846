// Package httpjson is the JSON request/response plumbing shared by the
// downstream service clients.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	ecommerce_errors "ecommerce-transactions/pkg/errors"
)

type Client struct {
	baseURL    string
	headers    http.Header
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration, headers http.Header) *Client {
	if headers == nil {
		headers = http.Header{}
	}
	return &Client{
		baseURL: baseURL,
		headers: headers,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// errorBody covers the error shapes returned by the node, gateways and PSP registry.
type errorBody struct {
	FaultCode   string `json:"faultCode"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Detail      string `json:"detail"`
	Title       string `json:"title"`
}

func (b errorBody) code() string {
	if b.FaultCode != "" {
		return b.FaultCode
	}
	return b.Code
}

func (b errorBody) detail() string {
	for _, s := range []string{b.Description, b.Detail, b.Title} {
		if s != "" {
			return s
		}
	}
	return ""
}

// Do sends in as JSON (when non-nil) and decodes a 2xx body into out (when non-nil).
// Every failure is returned as *GatewayError tagged with op.
func (c *Client) Do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ecommerce_errors.GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		gwErr := &ecommerce_errors.GatewayError{Op: op, StatusCode: resp.StatusCode, Code: eb.code(), Detail: eb.detail()}
		if gwErr.Detail == "" && gwErr.Code == "" {
			gwErr.Detail = string(bytes.TrimSpace(raw))
		}
		return gwErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return &ecommerce_errors.GatewayError{Op: op, StatusCode: resp.StatusCode, Detail: "empty response body"}
		}
		return &ecommerce_errors.GatewayError{Op: op, StatusCode: resp.StatusCode, Detail: "malformed response body", Err: err}
	}
	return nil
}
