package btcpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultRequestTimeout = 15 * time.Second

// APIError is a non-2xx answer from the BTCPay Server API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("btcpay api request failed: status=%d body=%s", e.StatusCode, e.Body)
}

// Client talks to the BTCPay Server Greenfield API.
type Client struct {
	HostURL string
	APIKey  string

	HTTPClient *http.Client
}

// NewClient creates a Greenfield API client with a bounded request timeout.
func NewClient(hostURL, apiKey string) *Client {
	return &Client{
		HostURL: strings.TrimRight(strings.TrimSpace(hostURL), "/"),
		APIKey:  strings.TrimSpace(apiKey),
		HTTPClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
	}
}

// CreateInvoice creates a remote invoice with buyer metadata and checkout
// options and returns the hosted checkout session.
func (c *Client) CreateInvoice(ctx context.Context, storeID string, in *InvoiceRequest) (*Invoice, error) {
	if in == nil {
		return nil, errors.New("invoice request is required")
	}
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}

	endpoint, err := c.storeURL(storeID, "invoices")
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doInvoice(req)
}

// GetInvoice fetches the current remote state of an invoice.
func (c *Client) GetInvoice(ctx context.Context, storeID, invoiceID string) (*Invoice, error) {
	id := strings.TrimSpace(invoiceID)
	if id == "" {
		return nil, errors.New("invoice id is required")
	}

	endpoint, err := c.storeURL(storeID, "invoices/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	return c.doInvoice(req)
}

func (c *Client) storeURL(storeID, suffix string) (string, error) {
	if c.HostURL == "" {
		return "", errors.New("btcpay host url is not configured")
	}
	id := strings.TrimSpace(storeID)
	if id == "" {
		return "", errors.New("store id is required")
	}
	return fmt.Sprintf("%s/api/v1/stores/%s/%s", c.HostURL, url.PathEscape(id), suffix), nil
}

func (c *Client) doInvoice(req *http.Request) (*Invoice, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, errors.New("btcpay api key is not configured")
	}
	req.Header.Set("Authorization", "token "+c.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out Invoice
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("btcpay invoice response missing id")
	}
	return &out, nil
}
