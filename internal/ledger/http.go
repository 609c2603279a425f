package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aatumaykin/ledgercron/internal/identity"
	"github.com/aatumaykin/ledgercron/internal/logger"
	"github.com/aatumaykin/ledgercron/internal/signer"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default timeout for ledger requests
	DefaultTimeout = 30 * time.Second
	// maxResponseSize bounds the size of a response body
	maxResponseSize = 4 << 20
)

// HTTPConfig contains configuration for the HTTP client.
type HTTPConfig struct {
	URL               string            // Server URL
	ServerID          identity.Identity // Identity of the server, zero means "any"
	Timeout           time.Duration     // Per request timeout
	RequestsPerSecond float64           // Client side rate limit, 0 disables it
}

// HTTPClient talks to the ledger over signed JSON envelopes.
type HTTPClient struct {
	client  *http.Client
	config  HTTPConfig
	signer  signer.Signer
	limiter *rate.Limiter
	logger  *logger.Logger
	now     func() time.Time
}

// envelopeContent is the signed part of a request.
type envelopeContent struct {
	Method    string `json:"method"`
	From      string `json:"from"`
	To        string `json:"to,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Data      []byte `json:"data"`
}

// envelope is a request as sent over the wire.
type envelope struct {
	Content   []byte `json:"content"`
	PublicKey []byte `json:"public_key,omitempty"`
	Signature []byte `json:"signature,omitempty"`
}

// responseEnvelope is a response as received over the wire.
type responseEnvelope struct {
	Response
	Error *RPCError `json:"error,omitempty"`
}

// sendParams is the wire form of SendArgs.
type sendParams struct {
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Symbol string `json:"symbol"`
}

// NewHTTPClient creates a new HTTPClient instance.
func NewHTTPClient(cfg HTTPConfig, s signer.Signer, log *logger.Logger) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Nop()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &HTTPClient{
		client:  &http.Client{Timeout: cfg.Timeout},
		config:  cfg,
		signer:  s,
		limiter: limiter,
		logger:  log,
		now:     time.Now,
	}
}

// Identity returns the signer's identity.
func (c *HTTPClient) Identity() identity.Identity {
	return c.signer.Identity()
}

// Send issues a ledger.send call.
func (c *HTTPClient) Send(ctx context.Context, args SendArgs) (*Response, error) {
	params := sendParams{
		To:     args.To.String(),
		Symbol: args.Symbol.String(),
	}
	if args.From != nil {
		params.From = args.From.String()
	}
	if args.Amount != nil {
		params.Amount = args.Amount.String()
	} else {
		params.Amount = "0"
	}

	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send arguments: %w", err)
	}
	return c.call(ctx, EndpointSend, data)
}

// Info issues a ledger.info call.
func (c *HTTPClient) Info(ctx context.Context) (*InfoReturns, error) {
	resp, err := c.call(ctx, EndpointInfo, []byte("{}"))
	if err != nil {
		return nil, err
	}

	var info InfoReturns
	if err := json.Unmarshal(resp.Data, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal info response: %w", err)
	}
	return &info, nil
}

// call signs and executes a single request.
func (c *HTTPClient) call(ctx context.Context, method string, data []byte) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	body, err := c.encode(method, data)
	if err != nil {
		return nil, err
	}

	c.logger.Trace("Ledger request",
		logger.Field{Key: "method", Value: method},
		logger.Field{Key: "data", Value: string(data)})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.config.URL, "/")+"/", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.Trace("Ledger response",
		logger.Field{Key: "method", Value: method},
		logger.Field{Key: "status_code", Value: httpResp.StatusCode},
		logger.Field{Key: "body", Value: string(respBody)})

	var env responseEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
			return nil, &HTTPError{StatusCode: httpResp.StatusCode, Body: string(respBody)}
		}
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if env.Error != nil {
		return nil, env.Error
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: httpResp.StatusCode, Body: string(respBody)}
	}

	resp := env.Response
	return &resp, nil
}

func (c *HTTPClient) encode(method string, data []byte) ([]byte, error) {
	content := envelopeContent{
		Method:    method,
		From:      c.signer.Identity().String(),
		To:        c.config.ServerID.String(),
		Timestamp: c.now().Unix(),
		Data:      data,
	}
	contentBytes, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}

	sig, err := c.signer.Sign(contentBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to sign envelope: %w", err)
	}

	body, err := json.Marshal(envelope{
		Content:   contentBytes,
		PublicKey: c.signer.PublicKey(),
		Signature: sig,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return body, nil
}

// HTTPError is returned when the server answers with a non-2xx status and no ledger error.
type HTTPError struct {
	StatusCode int    // HTTP status code
	Body       string // Response body
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error: status=%d, body=%s", e.StatusCode, e.Body)
}
