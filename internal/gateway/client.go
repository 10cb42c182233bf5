// Package gateway talks to the remote REST collection that owns the expenses.
//
// The collection exposes a single base URL:
//
//	GET    {base}        list
//	POST   {base}        create
//	PUT    {base}{id}/   update
//	DELETE {base}{id}/   delete
//
// Every call is a single round trip: no retries and no idempotency handling.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"expenses/internal/core"
	"expenses/internal/log"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

var ErrEmptyID = errors.New("empty expense id")

// StatusError reports a non-2xx answer from the collection.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
}

type Client struct {
	base   string
	http   *http.Client
	logger *log.Logger
}

type Option func(*Client)

// WithTimeout bounds each round trip. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.http
			hc.Timeout = d
			c.http = &hc
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.WithComponent(log.ComponentGateway)
		}
	}
}

// New returns a client for the collection at baseURL. A missing trailing
// slash is added so item URLs become {base}{id}/.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse base url: unsupported scheme %q", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	c := &Client{
		base:   u.String(),
		http:   &http.Client{},
		logger: log.New(log.DefaultConfig()).WithComponent(log.ComponentGateway),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized collection URL.
func (c *Client) BaseURL() string {
	return c.base
}

// payload is the body sent on create and update. The id stays in the URL.
type payload struct {
	Title    string          `json:"title"`
	Amount   decimal.Decimal `json:"amount"`
	Category string          `json:"category"`
}

func toPayload(e core.Expense) payload {
	return payload{Title: e.Title, Amount: e.Amount, Category: e.Category}
}

// List fetches the authoritative list. Each call is its own round trip so a
// list taken after a write always reflects it.
func (c *Client) List(ctx context.Context) ([]core.Expense, error) {
	var items []core.Expense
	if err := c.do(ctx, log.OpList, http.MethodGet, c.base, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Create posts a new expense. The returned record is whatever the server
// echoed back; an empty body yields the input without an id.
func (c *Client) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	created := core.Expense{}
	if err := c.do(ctx, log.OpCreate, http.MethodPost, c.base, toPayload(e), &created); err != nil {
		return core.Expense{}, err
	}
	if created.ID == "" && created.Title == "" {
		created = e
	}
	return created, nil
}

func (c *Client) Update(ctx context.Context, id core.ExpenseID, e core.Expense) (core.Expense, error) {
	if id == "" {
		return core.Expense{}, ErrEmptyID
	}
	updated := core.Expense{}
	if err := c.do(ctx, log.OpUpdate, http.MethodPut, c.itemURL(id), toPayload(e), &updated); err != nil {
		return core.Expense{}, err
	}
	if updated.ID == "" {
		updated = e
		updated.ID = id
	}
	return updated, nil
}

func (c *Client) Delete(ctx context.Context, id core.ExpenseID) error {
	if id == "" {
		return ErrEmptyID
	}
	return c.do(ctx, log.OpDelete, http.MethodDelete, c.itemURL(id), nil, nil)
}

func (c *Client) itemURL(id core.ExpenseID) string {
	return c.base + url.PathEscape(string(id)) + "/"
}

func (c *Client) do(ctx context.Context, op, method, target string, body any, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		requestsTotal.WithLabelValues(op, outcome).Inc()
		requestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		if err != nil {
			c.logger.ErrorContext(ctx, "Gateway request failed",
				log.NewFields().WithOperation(op).WithError(err).ToSlice()...)
			return
		}
		c.logger.DebugContext(ctx, "Gateway request completed",
			log.FieldOperation, op,
			log.FieldURL, target,
			log.FieldDuration, time.Since(start).Milliseconds())
	}()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return &StatusError{Op: op, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", op, err)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode body: %w", op, err)
	}
	return nil
}
