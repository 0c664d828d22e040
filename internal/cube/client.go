// Package cube is the HTTP client for the Cube REST API. It mints short
// lived HS256 tokens from the API secret and executes structured queries
// against /cubejs-api/v1/load.
package cube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/ziadkadry99/cube-pilot/internal/queryval"
)

const (
	loadPath = "/cubejs-api/v1/load"

	// Cube answers "Continue wait" while a query is still building its
	// pre-aggregations; the client polls a bounded number of times.
	continueWaitRetries = 10
	continueWaitDelay   = 2 * time.Second

	tokenTTL = 30 * time.Minute
)

// Client talks to a Cube deployment.
type Client struct {
	baseURL   string
	apiSecret string
	http      *http.Client
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	APISecret string
	Timeout   time.Duration
}

// NewClient creates a Cube API client.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		apiSecret: opts.APISecret,
		http:      &http.Client{Timeout: timeout},
	}
}

// ResultSet is the tabular result of an executed query.
type ResultSet struct {
	Rows       []map[string]any `json:"rows"`
	RowCount   int              `json:"row_count"`
	Query      *queryval.Query  `json:"query,omitempty"`
	ExecutedAt time.Time        `json:"executed_at"`
}

// Columns returns the column names present in the first row, which Cube
// emits in a stable order per query.
func (r *ResultSet) Columns() []string {
	if len(r.Rows) == 0 {
		return nil
	}
	cols := make([]string, 0, len(r.Rows[0]))
	for k := range r.Rows[0] {
		cols = append(cols, k)
	}
	return cols
}

// APIError is a non-transport error returned by the Cube API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cube api error (status %d): %s", e.StatusCode, e.Message)
}

// IsSchemaError reports whether err looks like the query referenced a
// member the deployed schema does not have. Such errors are worth one trip
// through validation and correction rather than being surfaced directly.
func IsSchemaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"not found", "does not exist", "cannot find"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// SignToken mints an HS256 JWT accepted by the Cube API gateway.
func SignToken(apiSecret string, ttl time.Duration) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: []byte(apiSecret)},
		(&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return "", fmt.Errorf("creating token signer: %w", err)
	}

	now := time.Now()
	claims := jwt.Claims{
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return token, nil
}

func (c *Client) token() (string, error) {
	return SignToken(c.apiSecret, tokenTTL)
}

type loadResponse struct {
	Data  []map[string]any `json:"data"`
	Error string           `json:"error"`
}

// Execute runs a query and returns its result set. "Continue wait"
// responses are polled until data arrives or the retry budget runs out.
func (c *Client) Execute(ctx context.Context, q *queryval.Query) (*ResultSet, error) {
	body, err := json.Marshal(map[string]any{"query": q})
	if err != nil {
		return nil, fmt.Errorf("marshalling query: %w", err)
	}

	token, err := c.token()
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		result, retry, err := c.load(ctx, token, body)
		if err != nil {
			return nil, err
		}
		if !retry {
			result.Query = q
			return result, nil
		}
		if attempt >= continueWaitRetries {
			return nil, &APIError{StatusCode: http.StatusOK, Message: "query still building after continue-wait retries"}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(continueWaitDelay):
		}
	}
}

func (c *Client) load(ctx context.Context, token string, body []byte) (*ResultSet, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loadPath, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("calling cube api: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("reading cube response: %w", err)
	}

	var parsed loadResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, false, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return nil, false, fmt.Errorf("parsing cube response: %w", err)
	}

	if parsed.Error != "" {
		if strings.Contains(parsed.Error, "Continue wait") {
			return nil, true, nil
		}
		return nil, false, &APIError{StatusCode: resp.StatusCode, Message: parsed.Error}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	return &ResultSet{
		Rows:       parsed.Data,
		RowCount:   len(parsed.Data),
		ExecutedAt: time.Now(),
	}, false, nil
}
