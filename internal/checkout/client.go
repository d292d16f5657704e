// Package checkout is a client for the host checkout order form API.
package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kitco/pricer/internal/domain"
)

const orderFormPath = "/api/checkout/pub/orderForm/"

// DefaultSeller is the seller id used when adding items.
const DefaultSeller = "1"

// APIError is returned for non-2xx responses.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("checkout: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Config configures a Client.
type Config struct {
	BaseURL  string
	AppKey   string
	AppToken string
	Timeout  time.Duration
}

type Client struct {
	baseURL  string
	appKey   string
	appToken string
	timeout  time.Duration
	http     *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		appKey:   cfg.AppKey,
		appToken: cfg.AppToken,
		timeout:  cfg.Timeout,
		http:     &http.Client{},
	}
}

// AddItem is one entry of an add-to-cart request.
type AddItem struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
	Seller   string `json:"seller"`
}

type addItemsRequest struct {
	OrderItems []AddItem `json:"orderItems"`
}

type setPriceRequest struct {
	Price int64 `json:"price"`
}

// GetOrderForm fetches the current order form.
func (c *Client) GetOrderForm(ctx context.Context, orderFormID string) (*domain.OrderForm, error) {
	var of domain.OrderForm
	if err := c.do(ctx, http.MethodGet, orderFormPath+url.PathEscape(orderFormID), nil, &of); err != nil {
		return nil, err
	}
	return &of, nil
}

// AddItems adds line items without a price; the host prices them from the catalog.
func (c *Client) AddItems(ctx context.Context, orderFormID string, items []AddItem) (*domain.OrderForm, error) {
	for i := range items {
		if items[i].Seller == "" {
			items[i].Seller = DefaultSeller
		}
	}
	var of domain.OrderForm
	path := orderFormPath + url.PathEscape(orderFormID) + "/items"
	if err := c.do(ctx, http.MethodPost, path, addItemsRequest{OrderItems: items}, &of); err != nil {
		return nil, err
	}
	return &of, nil
}

// SetItemPrice overrides the price of the line item at index. The call is
// idempotent: repeating it with the same price leaves the cart unchanged.
func (c *Client) SetItemPrice(ctx context.Context, orderFormID string, index int, priceCents int64) (*domain.OrderForm, error) {
	var of domain.OrderForm
	path := orderFormPath + url.PathEscape(orderFormID) + "/items/" + strconv.Itoa(index) + "/price"
	if err := c.do(ctx, http.MethodPut, path, setPriceRequest{Price: priceCents}, &of); err != nil {
		return nil, err
	}
	return &of, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("checkout: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("checkout: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.appKey != "" {
		req.Header.Set("X-VTEX-API-AppKey", c.appKey)
		req.Header.Set("X-VTEX-API-AppToken", c.appToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("checkout: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("checkout: decode %s %s: %w", method, path, err)
	}
	return nil
}
