package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quanthawk/arbot/internal/domain"
)

// RESTClient talks to an order gateway that fronts one exchange behind a
// normalized REST dialect: the gateway owns all venue-specific order-flag
// translation, this client owns request building and HMAC signing.
type RESTClient struct {
	exchange   domain.Exchange
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	now        func() time.Time
}

// RESTClientConfig holds the connection parameters for one venue's gateway.
type RESTClientConfig struct {
	Exchange  domain.Exchange
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
}

// NewRESTClient creates a client for one exchange gateway.
func NewRESTClient(cfg RESTClientConfig) *RESTClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RESTClient{
		exchange:  cfg.Exchange,
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

// SetNow replaces the timestamp clock used for request signing. Test hook.
func (c *RESTClient) SetNow(now func() time.Time) { c.now = now }

// Exchange implements domain.ExchangeClient.
func (c *RESTClient) Exchange() domain.Exchange { return c.exchange }

type orderRequest struct {
	Pair   string `json:"pair"`
	Side   string `json:"side"`
	Kind   string `json:"kind"`
	Price  string `json:"price"`
	Amount string `json:"amount"`
}

type orderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SubmitOrder posts one leg and returns the gateway's order ID.
func (c *RESTClient) SubmitOrder(ctx context.Context, trade domain.Trade) (string, error) {
	req := orderRequest{
		Pair:   trade.Pair.String(),
		Side:   string(trade.Side),
		Kind:   string(trade.Kind),
		Price:  trade.Price.String(),
		Amount: trade.Amount.String(),
	}
	body, err := c.doSigned(ctx, http.MethodPost, "/orders", req)
	if err != nil {
		return "", fmt.Errorf("%s: submit order: %w", c.exchange, err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%s: decode order response: %w", c.exchange, err)
	}
	if resp.Status == "rejected" {
		return "", fmt.Errorf("%s: %s: %w", c.exchange, resp.Message, domain.ErrOrderRejected)
	}
	return resp.OrderID, nil
}

// FetchFees returns the maker/taker schedule for a pair.
func (c *RESTClient) FetchFees(ctx context.Context, pair domain.Pair) (domain.Fees, error) {
	path := "/fees?pair=" + url.QueryEscape(pair.String())
	body, err := c.doSigned(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.Fees{}, fmt.Errorf("%s: fetch fees %s: %w", c.exchange, pair, err)
	}

	var resp struct {
		Maker string `json:"maker"`
		Taker string `json:"taker"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Fees{}, fmt.Errorf("%s: decode fees: %w", c.exchange, err)
	}
	maker, err := decimal.NewFromString(resp.Maker)
	if err != nil {
		return domain.Fees{}, fmt.Errorf("%s: parse maker fee: %w", c.exchange, err)
	}
	taker, err := decimal.NewFromString(resp.Taker)
	if err != nil {
		return domain.Fees{}, fmt.Errorf("%s: parse taker fee: %w", c.exchange, err)
	}
	return domain.Fees{Maker: maker, Taker: taker}, nil
}

// FetchPairMetadata returns the pair's order constraints.
func (c *RESTClient) FetchPairMetadata(ctx context.Context, pair domain.Pair) (domain.PairMetadata, error) {
	path := "/pairs?pair=" + url.QueryEscape(pair.String())
	body, err := c.doSigned(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.PairMetadata{}, fmt.Errorf("%s: fetch pair metadata %s: %w", c.exchange, pair, err)
	}

	var resp struct {
		MinOrderAmount string `json:"min_order_amount"`
		PriceScale     int32  `json:"price_scale"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.PairMetadata{}, fmt.Errorf("%s: decode pair metadata: %w", c.exchange, err)
	}
	minAmount, err := decimal.NewFromString(resp.MinOrderAmount)
	if err != nil {
		return domain.PairMetadata{}, fmt.Errorf("%s: parse min order amount: %w", c.exchange, err)
	}
	return domain.PairMetadata{MinOrderAmount: minAmount, PriceScale: resp.PriceScale}, nil
}

// FetchBalances returns every non-zero available balance on the account.
func (c *RESTClient) FetchBalances(ctx context.Context) ([]domain.Balance, error) {
	body, err := c.doSigned(ctx, http.MethodGet, "/balances", nil)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch balances: %w", c.exchange, err)
	}

	var resp struct {
		Balances []struct {
			Currency  string `json:"currency"`
			Available string `json:"available"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%s: decode balances: %w", c.exchange, err)
	}

	out := make([]domain.Balance, 0, len(resp.Balances))
	for _, b := range resp.Balances {
		available, err := decimal.NewFromString(b.Available)
		if err != nil {
			return nil, fmt.Errorf("%s: parse balance %s: %w", c.exchange, b.Currency, err)
		}
		out = append(out, domain.Balance{Currency: b.Currency, Available: available})
	}
	return out, nil
}

// doSigned performs one signed request and returns the response body.
// The signature is HMAC-SHA256(secret, timestamp+method+path+body), base64.
func (c *RESTClient) doSigned(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var bodyBytes []byte
	if payload != nil {
		var err error
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	ts := strconv.FormatInt(c.now().Unix(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-ARB-API-KEY", c.apiKey)
	req.Header.Set("X-ARB-TIMESTAMP", ts)
	req.Header.Set("X-ARB-SIGNATURE", c.sign(ts+method+path+string(bodyBytes)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func (c *RESTClient) sign(message string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

var _ domain.ExchangeClient = (*RESTClient)(nil)
