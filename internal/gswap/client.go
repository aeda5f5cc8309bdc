package gswap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shoeman22/billionaire-bot-sub000/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRetries   = 3
	DefaultRetryDelay   = 500 * time.Millisecond
	DefaultMaxDelay     = 5 * time.Second
	DefaultBackoffMult  = 2.0
	DefaultPollInterval = 2 * time.Second
)

// HTTPClient implements Client against the venue's HTTP API.
type HTTPClient struct {
	endpoint     string
	client       *http.Client
	signer       Signer
	maxRetries   int
	retryDelay   time.Duration
	maxDelay     time.Duration
	backoffMult  float64
	pollInterval time.Duration
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts for transient transport errors.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithPollInterval sets the status polling interval for AwaitConfirmation.
func WithPollInterval(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.pollInterval = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a venue client. The signer signs every swap payload
// before submission.
func NewHTTPClient(endpoint string, signer Signer, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:     strings.TrimRight(endpoint, "/"),
		client:       &http.Client{Timeout: DefaultTimeout},
		signer:       signer,
		maxRetries:   DefaultMaxRetries,
		retryDelay:   DefaultRetryDelay,
		maxDelay:     DefaultMaxDelay,
		backoffMult:  DefaultBackoffMult,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Client = (*HTTPClient)(nil)

// Wire types. Amounts travel as strings so no precision is lost in transit.

type quoteRequest struct {
	TokenIn  string `json:"tokenIn"`
	TokenOut string `json:"tokenOut"`
	AmountIn string `json:"amountIn"`
	Fee      int    `json:"fee,omitempty"`
}

type quoteResponse struct {
	AmountOut string `json:"amountOut"`
	Fee       int    `json:"fee"`
	Error     string `json:"error,omitempty"`
}

type swapRequest struct {
	TokenIn      string `json:"tokenIn"`
	TokenOut     string `json:"tokenOut"`
	Fee          int    `json:"fee"`
	AmountIn     string `json:"amountIn"`
	MinAmountOut string `json:"amountOutMinimum"`
	GasBid       string `json:"gasBid,omitempty"`
	Signature    string `json:"signature"`
	PublicKey    string `json:"publicKey"`
}

type swapResponse struct {
	TransactionID string `json:"transactionId"`
	Error         string `json:"error,omitempty"`
}

type statusResponse struct {
	Status    string `json:"status"`
	BlockInfo string `json:"blockInfo,omitempty"`
	Error     string `json:"error,omitempty"`
}

type balanceResponse struct {
	Available string `json:"available"`
}

// noPoolMarkers are the venue error strings that mean "pair not listed on
// this tier" rather than "dependency failed".
var noPoolMarkers = []string{"NO_POOL", "POOL_NOT_FOUND", "CONFLICT"}

func isNoPoolMessage(msg string) bool {
	upper := strings.ToUpper(msg)
	for _, m := range noPoolMarkers {
		if strings.Contains(upper, m) {
			return true
		}
	}
	return false
}

// QuoteExactInput implements Quoter.
func (c *HTTPClient) QuoteExactInput(ctx context.Context, tokenIn, tokenOut domain.Token, amountIn decimal.Decimal, tier domain.FeeTier) (*domain.Quote, error) {
	if err := validatePair(tokenIn, tokenOut, amountIn); err != nil {
		return nil, err
	}

	req := quoteRequest{
		TokenIn:  tokenIn.Key,
		TokenOut: tokenOut.Key,
		AmountIn: amountIn.String(),
		Fee:      int(tier),
	}
	var resp quoteResponse
	if err := c.post(ctx, "/v1/quote", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		if isNoPoolMessage(resp.Error) {
			return nil, fmt.Errorf("%s/%s tier %d: %w", tokenIn.Symbol, tokenOut.Symbol, tier, ErrNoPool)
		}
		return nil, fmt.Errorf("quote %s/%s: %s", tokenIn.Symbol, tokenOut.Symbol, resp.Error)
	}

	out, err := decimal.NewFromString(resp.AmountOut)
	if err != nil {
		return nil, fmt.Errorf("parse quote amountOut %q: %w", resp.AmountOut, err)
	}
	if out.Sign() <= 0 {
		return nil, fmt.Errorf("%s/%s tier %d returned zero output: %w", tokenIn.Symbol, tokenOut.Symbol, tier, ErrNoPool)
	}
	return &domain.Quote{OutputAmount: out, FeeTier: domain.FeeTier(resp.Fee)}, nil
}

// SubmitSwap implements Swapper. The payload is signed before submission.
func (c *HTTPClient) SubmitSwap(ctx context.Context, req SwapRequest) (*TxHandle, error) {
	if err := validatePair(req.TokenIn, req.TokenOut, req.AmountIn); err != nil {
		return nil, err
	}
	if req.MinAmountOut.Sign() <= 0 {
		return nil, fmt.Errorf("swap %s/%s: non-positive minAmountOut", req.TokenIn.Symbol, req.TokenOut.Symbol)
	}
	if c.signer == nil {
		return nil, fmt.Errorf("swap %s/%s: no signer configured", req.TokenIn.Symbol, req.TokenOut.Symbol)
	}

	payload := swapRequest{
		TokenIn:      req.TokenIn.Key,
		TokenOut:     req.TokenOut.Key,
		Fee:          int(req.FeeTier),
		AmountIn:     req.AmountIn.String(),
		MinAmountOut: req.MinAmountOut.String(),
		GasBid:       req.GasBid.String(),
	}
	unsigned, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal swap payload: %w", err)
	}
	sig, err := c.signer.Sign(unsigned)
	if err != nil {
		return nil, fmt.Errorf("sign swap payload: %w", err)
	}
	payload.Signature = sig
	payload.PublicKey = c.signer.PublicKey()

	var resp swapResponse
	if err := c.post(ctx, "/v1/swap", payload, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("swap %s/%s rejected: %s", req.TokenIn.Symbol, req.TokenOut.Symbol, resp.Error)
	}
	if resp.TransactionID == "" {
		return nil, fmt.Errorf("swap %s/%s: venue returned no transaction id", req.TokenIn.Symbol, req.TokenOut.Symbol)
	}
	return &TxHandle{ID: resp.TransactionID, SubmittedAt: time.Now()}, nil
}

// AwaitConfirmation implements Confirmer by polling the status endpoint.
// A timeout is reported as a TIMEOUT confirmation, not an error: finality
// may simply be slow.
func (c *HTTPClient) AwaitConfirmation(ctx context.Context, handle *TxHandle, timeout time.Duration) (*domain.Confirmation, error) {
	if handle == nil || handle.ID == "" {
		return nil, fmt.Errorf("await confirmation: empty transaction handle")
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		conf, err := c.transactionStatus(ctx, handle.ID)
		if err == nil && conf.Status != domain.ConfirmationUnknown {
			return conf, nil
		}
		// Transport errors during polling are retried until the deadline;
		// the caller's breaker sees only the final outcome.

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return &domain.Confirmation{Status: domain.ConfirmationTimeout}, nil
		case <-ticker.C:
		}
	}
}

// transactionStatus fetches and classifies one status snapshot.
func (c *HTTPClient) transactionStatus(ctx context.Context, txID string) (*domain.Confirmation, error) {
	var resp statusResponse
	if err := c.get(ctx, "/v1/transaction-status/"+txID, &resp); err != nil {
		return nil, err
	}
	return parseConfirmation(resp.Status, resp.BlockInfo, resp.Error), nil
}

// parseConfirmation maps the venue's status string onto the typed set.
// Unrecognized statuses become UNKNOWN, which executors treat as abort.
func parseConfirmation(status, blockInfo, errMsg string) *domain.Confirmation {
	conf := &domain.Confirmation{BlockInfo: blockInfo, ErrorMessage: errMsg}
	switch strings.ToUpper(status) {
	case "CONFIRMED", "PROCESSED", "VALID":
		conf.Status = domain.ConfirmationConfirmed
	case "FAILED", "INVALID", "REJECTED":
		conf.Status = domain.ConfirmationFailed
	case "PENDING", "SUBMITTED", "":
		// Still in flight; callers keep polling until their deadline.
		conf.Status = domain.ConfirmationUnknown
	default:
		conf.Status = domain.ConfirmationUnknown
	}
	return conf
}

// GetBalance implements BalanceReader.
func (c *HTTPClient) GetBalance(ctx context.Context, token domain.Token) (decimal.Decimal, error) {
	if c.signer == nil {
		return decimal.Zero, fmt.Errorf("balance %s: no signer configured", token.Symbol)
	}
	var resp balanceResponse
	path := "/v1/balances/" + c.signer.Address() + "/" + token.Key
	if err := c.get(ctx, path, &resp); err != nil {
		return decimal.Zero, err
	}
	bal, err := decimal.NewFromString(resp.Available)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse balance %q: %w", resp.Available, err)
	}
	return bal, nil
}

// validatePair rejects invalid requests before any I/O.
func validatePair(in, out domain.Token, amount decimal.Decimal) error {
	if err := in.Validate(); err != nil {
		return err
	}
	if err := out.Validate(); err != nil {
		return err
	}
	if in.Key == out.Key {
		return fmt.Errorf("identical input and output asset %s", in.Symbol)
	}
	if amount.Sign() <= 0 {
		return fmt.Errorf("non-positive amount %s for %s/%s", amount, in.Symbol, out.Symbol)
	}
	return nil
}

// post performs a JSON POST with retries and exponential backoff on
// transport errors and 5xx responses.
func (c *HTTPClient) post(ctx context.Context, path string, body, result interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, data, result)
}

// get performs a JSON GET with the same retry policy as post.
func (c *HTTPClient) get(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, result interface{}) error {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		err := c.doOnce(ctx, method, path, body, result)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("%s %s after %d attempts: %w", method, path, c.maxRetries+1, lastErr)
}

// httpStatusError marks responses that failed with a status code.
type httpStatusError struct {
	code int
	body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("venue returned HTTP %d: %s", e.code, e.body)
}

func isRetryable(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.code >= 500
	}
	// Transport-level failures are retryable; context cancellation is not.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (c *HTTPClient) doOnce(ctx context.Context, method, path string, body []byte, result interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &httpStatusError{code: resp.StatusCode, body: strings.TrimSpace(string(data))}
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
