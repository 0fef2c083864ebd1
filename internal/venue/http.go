package venue

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"hotpath/internal/execution"
	"hotpath/internal/schema"
	"hotpath/pkg/exception"
)

const (
	headerAPIKey         = "X-API-KEY"
	headerSignature      = "X-API-SIGNATURE"
	headerTimestamp      = "X-API-TIMESTAMP"
	headerRecvWindow     = "X-API-RECV-WINDOW"
	headerIdempotencyKey = "Idempotency-Key"

	defaultOrderPath = "/v1/orders"
	defaultTimeout   = 15 * time.Second
	maxResponseBody  = 1 << 20
)

// Config holds the venue endpoint and credentials.
type Config struct {
	BaseURL    string        `json:"baseURL"`
	OrderPath  string        `json:"orderPath"`
	APIKey     string        `json:"apiKey"`
	APISecret  string        `json:"apiSecret"`
	Timeout    time.Duration `json:"timeout"`
	RecvWindow time.Duration `json:"recvWindow"`
}

type orderRequest struct {
	ClientOrderID string           `json:"client_order_id"`
	Symbol        string           `json:"symbol"`
	Side          string           `json:"side"`
	Type          string           `json:"type"`
	Quantity      decimal.Decimal  `json:"quantity"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	StopPrice     *decimal.Decimal `json:"stop_price,omitempty"`
}

type orderResponse struct {
	OrderID        string          `json:"order_id"`
	Status         string          `json:"status"`
	FilledQuantity decimal.Decimal `json:"filled_quantity"`
	AvgFillPrice   decimal.Decimal `json:"avg_fill_price"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTPClient submits orders to a REST venue. Requests are signed with
// HMAC-SHA256 over timestamp, key, receive window and body.
type HTTPClient struct {
	cfg    Config
	client *http.Client
	now    func() time.Time
}

// NewHTTPClient creates a venue client. client may be nil.
func NewHTTPClient(cfg Config, client *http.Client) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "venue baseURL is empty")
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "venue credentials are empty")
	}
	if cfg.OrderPath == "" {
		cfg.OrderPath = defaultOrderPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HTTPClient{cfg: cfg, client: client, now: time.Now}, nil
}

// Submit places one order. The idempotency key travels in a header so a
// resubmitted order is not duplicated by the venue.
func (c *HTTPClient) Submit(ctx context.Context, req execution.SubmitRequest) (execution.SubmitResponse, error) {
	var response execution.SubmitResponse

	body, err := newOrderRequest(req.Order)
	if err != nil {
		return response, err
	}
	payload, err := sonic.ConfigFastest.Marshal(body)
	if err != nil {
		return response, errors.Wrap(exception.ErrInternal, "marshal order request").With("order_id", req.Order.OrderID)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+c.cfg.OrderPath, bytes.NewReader(payload))
	if err != nil {
		return response, errors.Wrap(exception.ErrInvalidArgument, err.Error())
	}
	c.sign(r, payload)
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set(headerIdempotencyKey, req.IdempotencyKey)

	resp, err := c.client.Do(r)
	if err != nil {
		return response, errors.Wrap(exception.ErrVenueTransient, err.Error())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return response, errors.Wrap(exception.ErrVenueTransient, "read response: "+err.Error())
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return response, classifyStatus(resp.StatusCode, data)
	}

	var out orderResponse
	if err := sonic.ConfigFastest.Unmarshal(data, &out); err != nil {
		return response, errors.Wrap(exception.ErrVenueDecodeResponseBody, err.Error())
	}
	return out.toSubmitResponse()
}

func (c *HTTPClient) sign(r *http.Request, payload []byte) {
	ts := strconv.FormatInt(c.now().UnixMilli(), 10)
	recvWindow := strconv.FormatInt(c.cfg.RecvWindow.Milliseconds(), 10)
	if c.cfg.RecvWindow <= 0 {
		recvWindow = "5000"
	}
	r.Header.Set(headerAPIKey, c.cfg.APIKey)
	r.Header.Set(headerTimestamp, ts)
	r.Header.Set(headerRecvWindow, recvWindow)
	r.Header.Set(headerSignature, Sign(c.cfg.APISecret, ts+c.cfg.APIKey+recvWindow+string(payload)))
}

// Sign returns the hex HMAC-SHA256 of payload.
func Sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func newOrderRequest(o schema.Order) (orderRequest, error) {
	req := orderRequest{
		ClientOrderID: strconv.FormatUint(o.OrderID, 10),
		Symbol:        o.Symbol,
		Side:          o.Side.String(),
		Type:          o.Type.String(),
		Quantity:      o.Qty.Decimal(),
	}
	if !o.Side.IsAvailable() || !o.Type.IsAvailable() {
		return req, errors.Wrapf(exception.ErrOrderInvalid, "order %d side %s type %s", o.OrderID, o.Side, o.Type)
	}
	if o.LimitPrice > 0 {
		p := o.LimitPrice.Decimal()
		req.Price = &p
	}
	if o.StopPrice > 0 {
		p := o.StopPrice.Decimal()
		req.StopPrice = &p
	}
	return req, nil
}

func (r orderResponse) toSubmitResponse() (execution.SubmitResponse, error) {
	var out execution.SubmitResponse
	if r.OrderID == "" {
		return out, exception.ErrVenueEmptyOrderID
	}
	status, ok := parseStatus(r.Status)
	if !ok {
		return out, errors.Wrapf(exception.ErrVenueDecodeResponseBody, "unknown status %q", r.Status)
	}
	filled, err := schema.FromDecimal(r.FilledQuantity)
	if err != nil {
		return out, errors.Wrap(exception.ErrVenueDecodeResponseBody, err.Error())
	}
	avg, err := schema.FromDecimal(r.AvgFillPrice)
	if err != nil {
		return out, errors.Wrap(exception.ErrVenueDecodeResponseBody, err.Error())
	}
	out.VenueOrderID = r.OrderID
	out.Status = status
	out.FilledQty = schema.Quantity(filled)
	out.AvgFillPrice = schema.Price(avg)
	return out, nil
}

func parseStatus(s string) (schema.ExecutionStatus, bool) {
	switch strings.ToLower(s) {
	case "filled":
		return schema.ExecutionStatusFilled, true
	case "partially_filled", "partial":
		return schema.ExecutionStatusPartiallyFilled, true
	case "new", "open", "accepted", "submitted":
		return schema.ExecutionStatusSubmitted, true
	case "rejected":
		return schema.ExecutionStatusRejected, true
	default:
		return 0, false
	}
}

// classifyStatus maps an HTTP error response to a venue sentinel: 429 and
// 5xx are transient, everything else is permanent.
func classifyStatus(code int, body []byte) error {
	var e errorResponse
	_ = sonic.ConfigFastest.Unmarshal(body, &e)
	detail := "status " + strconv.Itoa(code)
	if e.Code != "" || e.Message != "" {
		detail += ": " + e.Code + " " + e.Message
	}

	switch {
	case code == http.StatusTooManyRequests:
		return errors.Wrap(exception.ErrVenueRateLimited, detail)
	case code >= http.StatusInternalServerError:
		return errors.Wrap(exception.ErrVenueTransient, detail)
	}

	switch strings.ToLower(e.Code) {
	case "insufficient_funds", "insufficient_balance":
		return errors.Wrap(exception.ErrVenueInsufficientFunds, detail)
	case "invalid_symbol", "unknown_symbol":
		return errors.Wrap(exception.ErrVenueInvalidSymbol, detail)
	case "market_closed":
		return errors.Wrap(exception.ErrVenueMarketClosed, detail)
	default:
		return errors.Wrap(exception.ErrVenueRejected, detail)
	}
}
