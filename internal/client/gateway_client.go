package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/LeventeLantos/result-messaging/internal/metrics"
)

const (
	DryRunInfo = "dry-run or no api key"

	codeSuccess        = 1001
	codeNotWhitelisted = 1032
)

var ErrBalanceUnavailable = errors.New("sms balance unavailable")

type GatewayConfig struct {
	URL        string
	BalanceURL string
	APIKey     string
	SenderID   string
	DryRun     bool
	Timeout    time.Duration
}

// Outcome is the classified result of one gateway call. Transport errors end
// up here too; Send never returns an error.
type Outcome struct {
	Sent       bool
	Info       string
	StatusCode int
	DryRun     bool
	// Whitelist is set when the gateway rejected our IP address.
	Whitelist bool
}

type GatewayClient struct {
	url        string
	balanceURL string
	apiKey     string
	senderID   string
	dryRun     bool

	client  *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewGatewayClient(cfg GatewayConfig, logger *slog.Logger, m *metrics.Metrics) *GatewayClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GatewayClient{
		url:        cfg.URL,
		balanceURL: cfg.BalanceURL,
		apiKey:     cfg.APIKey,
		senderID:   cfg.SenderID,
		dryRun:     cfg.DryRun,
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With("component", "gateway"),
		metrics:    m,
	}
}

// DryRun reports whether sends are simulated.
func (c *GatewayClient) DryRun() bool {
	return c.dryRun || c.apiKey == ""
}

func (c *GatewayClient) Send(ctx context.Context, number, message string) Outcome {
	if c.DryRun() {
		c.logger.DebugContext(ctx, "dry run send", "number", number, "message_len", len(message))
		return Outcome{Sent: true, DryRun: true, Info: DryRunInfo}
	}

	form := url.Values{}
	form.Set("api_key", c.apiKey)
	form.Set("senderid", c.senderID)
	form.Set("number", number)
	form.Set("message", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return Outcome{Info: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.client.Do(req)
	c.metrics.ObserveGatewayLatency(time.Since(start))
	if err != nil {
		c.logger.WarnContext(ctx, "gateway request failed", "number", number, "error", err)
		return Outcome{Info: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.WarnContext(ctx, "gateway body read failed", "number", number, "status_code", resp.StatusCode, "error", err)
		return Outcome{StatusCode: resp.StatusCode, Info: err.Error()}
	}

	out := Classify(resp.StatusCode, body)
	c.logger.InfoContext(ctx, "gateway response",
		"number", number,
		"status_code", resp.StatusCode,
		"sent", out.Sent,
		"whitelist", out.Whitelist,
	)
	return out
}

// Classify applies the gateway response heuristics. The order of the checks
// matters: the gateway has no stable contract and each rule encodes a response
// shape that has been observed in production.
func Classify(status int, body []byte) Outcome {
	text := strings.TrimSpace(string(body))

	if status < 200 || status > 299 {
		return Outcome{StatusCode: status, Info: fmt.Sprintf("HTTP %d: %s", status, text)}
	}

	out := Outcome{StatusCode: status, Info: text}

	var obj map[string]any
	if strings.HasPrefix(text, "{") && json.Unmarshal([]byte(text), &obj) == nil {
		code, hasCode := responseCode(obj)
		if (hasCode && code == codeNotWhitelisted) || strings.Contains(errorText(obj), "not Whitelisted") {
			out.Whitelist = true
			return out
		}
		if (hasCode && code == codeSuccess) || strings.Contains(strings.ToLower(text), "success") {
			out.Sent = true
		}
		return out
	}

	if strings.Contains(strings.ToLower(text), "success") {
		out.Sent = true
		return out
	}
	for _, token := range []string{"1001", "200", "201"} {
		if strings.Contains(text, token) {
			out.Sent = true
			break
		}
	}
	return out
}

func responseCode(obj map[string]any) (int, bool) {
	switch v := obj["response_code"].(type) {
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func errorText(obj map[string]any) string {
	var parts []string
	for _, key := range []string{"error_message", "error", "message", "msg"} {
		if s, ok := obj[key].(string); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

type balanceResponse struct {
	Error any    `json:"error"`
	Msg   string `json:"msg"`
	Data  struct {
		Balance any `json:"balance"`
	} `json:"data"`
}

// Balance queries the account balance endpoint.
func (c *GatewayClient) Balance(ctx context.Context) (string, error) {
	if c.DryRun() || c.balanceURL == "" {
		return "", ErrBalanceUnavailable
	}

	u, err := url.Parse(c.balanceURL)
	if err != nil {
		return "", fmt.Errorf("parse balance url: %w", err)
	}
	q := u.Query()
	q.Set("api_key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	var br balanceResponse
	if err := json.Unmarshal(body, &br); err != nil {
		return "", fmt.Errorf("failed to decode json: %w body=%q", err, string(body))
	}
	if fmt.Sprint(br.Error) != "0" {
		msg := br.Msg
		if msg == "" {
			msg = "failed to get balance"
		}
		return "", fmt.Errorf("%w: %s", ErrBalanceUnavailable, msg)
	}
	if br.Data.Balance == nil {
		return "", fmt.Errorf("%w: missing balance in response body=%q", ErrBalanceUnavailable, string(body))
	}

	switch v := br.Data.Balance.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return fmt.Sprint(v), nil
	}
}
