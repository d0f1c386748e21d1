package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// DefaultPath is the search_read endpoint of the host web client.
const DefaultPath = "/web/dataset/call_kw/account.move/search_read"

// DefaultLimit bounds the number of rows requested per refresh.
const DefaultLimit = 400

// Fields lists the columns requested for every row.
var Fields = []string{"state", "amount_total", "amount_residual", "invoice_date_due", "payment_state"}

// Fetcher returns the current invoice rows of the host.
type Fetcher interface {
	FetchRecords(ctx context.Context) ([]Row, error)
}

// CookieSource yields the host session cookies forwarded with every call.
type CookieSource func(ctx context.Context) ([]*http.Cookie, error)

// Options configures a Client.
type Options struct {
	BaseURL    string
	Path       string
	Limit      int
	Timeout    time.Duration
	Cookies    CookieSource
	HTTPClient *http.Client
}

// Client wraps the JSON-RPC search_read call against the host.
type Client struct {
	baseURL    string
	path       string
	limit      int
	cookies    CookieSource
	httpClient *http.Client
	seq        atomic.Int64
}

// NewClient constructs a new client.
func NewClient(opts Options) *Client {
	path := opts.Path
	if path == "" {
		path = DefaultPath
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		path:       path,
		limit:      limit,
		cookies:    opts.Cookies,
		httpClient: httpClient,
	}
	c.seq.Store(time.Now().UnixMilli())
	return c
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Model  string         `json:"model"`
	Method string         `json:"method"`
	Args   []any          `json:"args"`
	Kwargs map[string]any `json:"kwargs"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

func (c *Client) buildRequest() rpcRequest {
	domain := []any{
		[]any{"move_type", "=", "out_invoice"},
		[]any{"state", "in", []string{string(StateDraft), string(StatePosted)}},
	}
	return rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params: rpcParams{
			Model:  "account.move",
			Method: "search_read",
			Args:   []any{domain},
			Kwargs: map[string]any{
				"fields": Fields,
				"limit":  c.limit,
				"order":  "invoice_date desc",
			},
		},
		ID: c.seq.Add(1),
	}
}

// FetchRecords performs one search_read call and decodes the rows.
func (c *Client) FetchRecords(ctx context.Context) ([]Row, error) {
	payload, err := json.Marshal(c.buildRequest())
	if err != nil {
		return nil, &RemoteCallError{Op: "encode", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.path, bytes.NewReader(payload))
	if err != nil {
		return nil, &RemoteCallError{Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cookies != nil {
		cookies, err := c.cookies(ctx)
		if err != nil {
			return nil, &RemoteCallError{Op: "cookies", Err: err}
		}
		for _, cookie := range cookies {
			req.AddCookie(cookie)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RemoteCallError{Op: "transport", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return nil, &RemoteCallError{Op: "transport", Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteCallError{Op: "read", Err: err}
	}

	var decoded rpcResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &RemoteCallError{Op: "decode", Err: err}
	}
	if decoded.Error != nil {
		msg := decoded.Error.Data.Message
		if msg == "" {
			msg = decoded.Error.Message
		}
		if msg == "" {
			msg = "RPC error"
		}
		return nil, &RemoteCallError{Op: "rpc", Code: decoded.Error.Code, Message: msg}
	}

	trimmed := bytes.TrimSpace(decoded.Result)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return []Row{}, nil
	}
	var rows []Row
	if err := json.Unmarshal(trimmed, &rows); err != nil {
		return nil, &RemoteCallError{Op: "decode", Err: err}
	}
	return rows, nil
}

// RemoteCallError reports a failed search_read call. Callers treat it as
// "no update this cycle".
type RemoteCallError struct {
	Op      string
	Code    int
	Message string
	Err     error
}

func (e *RemoteCallError) Error() string {
	var b strings.Builder
	b.WriteString("records: ")
	b.WriteString(e.Op)
	if e.Code != 0 {
		fmt.Fprintf(&b, " (%d)", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *RemoteCallError) Unwrap() error { return e.Err }

// IsRemoteCallError reports whether err carries a RemoteCallError.
func IsRemoteCallError(err error) bool {
	var target *RemoteCallError
	return errors.As(err, &target)
}
