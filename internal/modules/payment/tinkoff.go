package payment

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"meetuply/internal/config"
)

const (
	initAttempts     = 3
	retryBackoffBase = 500 * time.Millisecond
)

// TinkoffClient talks to the acquiring API (/v2) and the card-to-card
// payout API (/e2c/v2). Requests are signed with the Token scheme:
// sha256 over the values of all top-level scalar fields plus Password,
// ordered by field name.
type TinkoffClient struct {
	http *http.Client
	cfg  config.Tinkoff
	log  *zap.Logger
}

func NewTinkoffClient(cfg config.Tinkoff, log *zap.Logger) *TinkoffClient {
	return &TinkoffClient{
		http: &http.Client{Timeout: cfg.Timeout},
		cfg:  cfg,
		log:  log,
	}
}

type gatewayResponse struct {
	Success    bool        `json:"Success"`
	ErrorCode  string      `json:"ErrorCode"`
	Message    string      `json:"Message"`
	Details    string      `json:"Details"`
	PaymentID  json.Number `json:"PaymentId"`
	PaymentURL string      `json:"PaymentURL"`
	CardID     json.Number `json:"CardId"`
}

func (c *TinkoffClient) Init(ctx context.Context, req InitRequest) (*InitResponse, error) {
	params := map[string]string{
		"TerminalKey":     c.cfg.TerminalKey,
		"Amount":          strconv.FormatInt(req.Amount, 10),
		"OrderId":         req.OrderID,
		"CustomerKey":     req.CustomerKey,
		"Description":     req.Description,
		"NotificationURL": c.cfg.NotificationURL,
		"SuccessURL":      c.cfg.SuccessURL,
		"FailURL":         c.cfg.FailURL,
	}

	var resp gatewayResponse
	if err := c.post(ctx, "/v2/Init", params, c.cfg.Password, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: code=%s message=%s", ErrGatewayRejected, resp.ErrorCode, resp.Message)
	}
	return &InitResponse{PaymentID: resp.PaymentID.String(), PaymentURL: resp.PaymentURL}, nil
}

func (c *TinkoffClient) Cancel(ctx context.Context, paymentID string, amount int64) error {
	params := map[string]string{
		"TerminalKey": c.cfg.TerminalKey,
		"PaymentId":   paymentID,
		"Amount":      strconv.FormatInt(amount, 10),
	}

	var resp gatewayResponse
	if err := c.post(ctx, "/v2/Cancel", params, c.cfg.Password, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: code=%s message=%s", ErrGatewayRejected, resp.ErrorCode, resp.Message)
	}
	return nil
}

func (c *TinkoffClient) PayoutInit(ctx context.Context, req PayoutRequest) (*PayoutResponse, error) {
	params := map[string]string{
		"TerminalKey": c.cfg.E2CTerminalKey,
		"Amount":      strconv.FormatInt(req.Amount, 10),
		"OrderId":     req.OrderID,
		"CardId":      req.CardID,
	}
	if req.DealID != "" {
		params["DealId"] = req.DealID
	}

	var resp gatewayResponse
	if err := c.post(ctx, "/e2c/v2/Init", params, c.cfg.E2CPassword, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: code=%s message=%s", ErrGatewayRejected, resp.ErrorCode, resp.Message)
	}
	return &PayoutResponse{PaymentID: resp.PaymentID.String()}, nil
}

func (c *TinkoffClient) Payout(ctx context.Context, paymentID string) error {
	params := map[string]string{
		"TerminalKey": c.cfg.E2CTerminalKey,
		"PaymentId":   paymentID,
	}

	var resp gatewayResponse
	if err := c.post(ctx, "/e2c/v2/Payment", params, c.cfg.E2CPassword, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: code=%s message=%s", ErrGatewayRejected, resp.ErrorCode, resp.Message)
	}
	return nil
}

func (c *TinkoffClient) AddCard(ctx context.Context, customerKey, pan, expDate string) (string, error) {
	params := map[string]string{
		"TerminalKey": c.cfg.E2CTerminalKey,
		"CustomerKey": customerKey,
		"Pan":         pan,
		"ExpDate":     expDate,
	}

	var resp gatewayResponse
	if err := c.post(ctx, "/e2c/v2/AddCard", params, c.cfg.E2CPassword, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("%w: code=%s message=%s", ErrGatewayRejected, resp.ErrorCode, resp.Message)
	}
	return resp.CardID.String(), nil
}

// post signs params, sends them as JSON and decodes the envelope.
// Transport failures are retried with doubling backoff; a decoded
// rejection is final and never retried.
func (c *TinkoffClient) post(ctx context.Context, path string, params map[string]string, password string, out *gatewayResponse) error {
	payload := make(map[string]string, len(params)+1)
	for k, v := range params {
		if v != "" {
			payload[k] = v
		}
	}
	payload["Token"] = SignToken(payload, password)

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	var lastErr error
	backoff := retryBackoffBase
	for attempt := 1; attempt <= initAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrGatewayUnavailable, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		lastErr = c.doOnce(ctx, path, body, out)
		if lastErr == nil {
			return nil
		}
		c.log.Warn("gateway call failed",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
	}
	return lastErr
}

func (c *TinkoffClient) doOnce(ctx context.Context, path string, body []byte, out *gatewayResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status=%d", ErrGatewayUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrGatewayUnavailable, err)
	}
	return nil
}

// SignToken computes the request signature: the Password is added as a
// field, pairs are sorted by key, values are concatenated and hashed
// with sha256. Nested fields and the Token itself never participate.
func SignToken(params map[string]string, password string) string {
	pairs := make(map[string]string, len(params)+1)
	for k, v := range params {
		if k == "Token" {
			continue
		}
		pairs[k] = v
	}
	pairs["Password"] = password

	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var concat bytes.Buffer
	for _, k := range keys {
		concat.WriteString(pairs[k])
	}

	sum := sha256.Sum256(concat.Bytes())
	return hex.EncodeToString(sum[:])
}

// WebhookToken reproduces the signature the gateway attaches to
// notification callbacks. Success is rendered lowercase, as sent.
func WebhookToken(p WebhookPayload, password string) string {
	params := map[string]string{
		"TerminalKey": p.TerminalKey,
		"Amount":      strconv.FormatInt(p.Amount, 10),
		"OrderId":     p.OrderID,
		"Success":     strconv.FormatBool(p.Success),
		"Status":      p.Status,
		"PaymentId":   p.PaymentID.String(),
		"ErrorCode":   p.ErrorCode,
	}
	if p.CardID != "" {
		params["CardId"] = p.CardID
	}
	if p.Pan != "" {
		params["Pan"] = p.Pan
	}
	if p.ExpDate != "" {
		params["ExpDate"] = p.ExpDate
	}
	return SignToken(params, password)
}
