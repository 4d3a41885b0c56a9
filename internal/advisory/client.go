package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ent0n29/aerocopilot/internal/observability"
	"github.com/ent0n29/aerocopilot/internal/policy"
	"github.com/ent0n29/aerocopilot/internal/reliability"
)

// ErrEmptyResponse means the backend answered without any advice text.
var ErrEmptyResponse = errors.New("advisory backend returned no text")

// StatusError is a non-2xx answer from the advisory backend.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("advisory %s http status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Retryable reports whether the same request may succeed later.
func (e *StatusError) Retryable() bool {
	return reliability.IsRetryableHTTPStatus(e.StatusCode)
}

type Config struct {
	BaseURL     string
	Timeout     time.Duration
	PingTimeout time.Duration
	MaxRetries  int
	RetryBase   time.Duration
	RetryCap    time.Duration
	Logger      *log.Logger
	Metrics     *observability.Metrics
}

// Client talks to the external copilot advisory backend. It only moves text
// around; it never interprets flight data itself.
type Client struct {
	base    string
	client  *http.Client
	pingTTL time.Duration
	retries int
	backoff [2]time.Duration
	log     *log.Logger
	metrics *observability.Metrics
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 3 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 250 * time.Millisecond
	}
	if cfg.RetryCap <= 0 {
		cfg.RetryCap = 2 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		base:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		pingTTL: cfg.PingTimeout,
		retries: cfg.MaxRetries,
		backoff: [2]time.Duration{cfg.RetryBase, cfg.RetryCap},
		log:     logger.WithPrefix("advisory"),
		metrics: cfg.Metrics,
	}
}

func (c *Client) BaseURL() string { return c.base }

// Ping reports whether the backend root answers within the ping timeout.
func (c *Client) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.pingTTL)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/", nil)
	if err != nil {
		return false
	}
	res, err := c.client.Do(req)
	if err != nil {
		c.log.Debug("backend ping failed", "err", err)
		return false
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4<<10))
	return res.StatusCode >= 200 && res.StatusCode < 300
}

type chatRequest struct {
	FlightID string `json:"flight_id"`
	Message  string `json:"message"`
}

// reply is the union of the text fields the backend answers with.
type reply struct {
	Advice      string          `json:"advice"`
	Explanation string          `json:"explanation"`
	Answer      string          `json:"answer"`
	Results     []SimilarResult `json:"results"`
}

func (r reply) text() string {
	for _, s := range []string{r.Advice, r.Explanation, r.Answer} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// StatusUpdate asks for advice about a flight given a pilot message.
func (c *Client) StatusUpdate(ctx context.Context, flightID, message string) (string, error) {
	var out reply
	if err := c.do(ctx, "status_update", http.MethodPost, "/chat/status_update/", nil, chatRequest{FlightID: flightID, Message: message}, &out); err != nil {
		return "", err
	}
	return textOrErr(out.Advice)
}

// SystemStatus asks for an aircraft systems check.
func (c *Client) SystemStatus(ctx context.Context, flightID, message string) (string, error) {
	var out reply
	if err := c.do(ctx, "system_status", http.MethodPost, "/chat/system_status/", nil, chatRequest{FlightID: flightID, Message: message}, &out); err != nil {
		return "", err
	}
	return textOrErr(out.text())
}

// CopilotChat asks a free-form procedural question.
func (c *Client) CopilotChat(ctx context.Context, question string) (string, error) {
	q := url.Values{"question": {question}}
	var out reply
	if err := c.do(ctx, "copilot_chat", http.MethodPost, "/copilot_chat/", q, nil, &out); err != nil {
		return "", err
	}
	return textOrErr(out.Answer)
}

// AdvisePilot sends a full flight data snapshot for emergency advice.
func (c *Client) AdvisePilot(ctx context.Context, data FlightData) (string, error) {
	body := struct {
		FlightData FlightData `json:"flight_data"`
	}{FlightData: data}
	var out reply
	if err := c.do(ctx, "advise_pilot", http.MethodPost, "/advise_pilot/", nil, body, &out); err != nil {
		return "", err
	}
	return textOrErr(out.text())
}

// SimilarCrashes searches historical incidents similar to query.
func (c *Client) SimilarCrashes(ctx context.Context, query string, topK int) ([]SimilarResult, error) {
	if topK <= 0 {
		topK = 2
	}
	q := url.Values{"query": {query}, "top_k": {strconv.Itoa(topK)}}
	var out reply
	if err := c.do(ctx, "similar_crashes", http.MethodGet, "/similar_crashes/", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func textOrErr(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", ErrEmptyResponse
	}
	return s, nil
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	start := time.Now()
	err := reliability.Retry(ctx, c.retries+1, c.backoff[0], c.backoff[1], func(attempt int) (bool, error) {
		err := c.once(ctx, endpoint, method, target, payload, out)
		if err == nil {
			return false, nil
		}
		var statusErr *StatusError
		retry := (errors.As(err, &statusErr) && statusErr.Retryable()) || reliability.IsTransientError(err)
		if retry && attempt < c.retries {
			c.log.Warn("advisory request failed, retrying", "endpoint", endpoint, "attempt", attempt+1, "err", err)
		}
		return retry, err
	})
	if err != nil {
		c.metrics.CountBackend(endpoint, "error")
		c.log.Error("advisory request failed", "endpoint", endpoint, "elapsed", time.Since(start), "err", err)
		return err
	}
	c.metrics.CountBackend(endpoint, "ok")
	c.metrics.ObserveStage("backend_"+endpoint, time.Since(start))
	c.log.Debug("advisory request done", "endpoint", endpoint, "elapsed", time.Since(start))
	return nil
}

func (c *Client) once(ctx context.Context, endpoint, method, target string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return &StatusError{Endpoint: endpoint, StatusCode: res.StatusCode, Body: policy.RedactString(strings.TrimSpace(string(raw)))}
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 8<<20)).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}
