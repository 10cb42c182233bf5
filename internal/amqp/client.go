// Package amqp publishes expense change events to a RabbitMQ exchange.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rabbitmq/amqp091-go"

	"expenses/internal/core"
	"expenses/internal/log"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	dialTimeout    = 5 * time.Second
	heartbeat      = 10 * time.Second
	maxBackoff     = 30 * time.Second
	connectRetries = 5
	queueSize      = 256
)

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
	ErrQueueFull   = errors.New("publish queue is full")
)

var publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "expenses_amqp_published_total",
	Help: "Expense change events handed to the broker, by outcome.",
}, []string{"op", "outcome"})

// event is one queued change waiting for the publisher loop.
type event struct {
	op   string
	id   string
	body []byte
}

type Client struct {
	url          string
	exchangeName string
	routingKey   string
	dialTimeout  time.Duration
	logger       *log.Logger
	events       chan event

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	failMu       sync.Mutex
	lastFailure  time.Time
}

// NewClient does not dial. Events are queued by ExpenseChanged and sent by Run.
func NewClient(url, exchangeName, routingKey string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Client{
		url:          url,
		exchangeName: exchangeName,
		routingKey:   routingKey,
		dialTimeout:  dialTimeout,
		logger:       logger.WithComponent(log.ComponentAMQP),
		events:       make(chan event, queueSize),
	}
}

// Run connects and then publishes queued events until ctx is done. Events
// still queued at that point get one last attempt bounded by publishTimeout.
func (c *Client) Run(ctx context.Context) {
	if err := c.Connect(ctx); err != nil && ctx.Err() == nil {
		c.logger.WarnContext(ctx, "Change feed unavailable, publishing will reconnect on demand", log.FieldError, err)
	}
	for {
		select {
		case ev := <-c.events:
			c.send(ctx, ev)
		case <-ctx.Done():
			c.drain(context.WithoutCancel(ctx))
			return
		}
	}
}

func (c *Client) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	for {
		select {
		case ev := <-c.events:
			if ctx.Err() != nil {
				publishedTotal.WithLabelValues(ev.op, "dropped").Inc()
				continue
			}
			c.send(ctx, ev)
		default:
			return
		}
	}
}

// Connect dials the broker, retrying with exponential backoff.
func (c *Client) Connect(ctx context.Context) error {
	var err error
	for attempt := 0; attempt < connectRetries; attempt++ {
		if err = c.ensureChannel(ctx); err == nil {
			c.logger.InfoContext(ctx, "Connected to broker", "exchange", c.exchangeName)
			return nil
		}
		wait := exponentialBackoff(attempt)
		c.logger.WarnContext(ctx, "Broker connection failed, retrying",
			log.FieldError, err, "attempt", attempt+1, "backoff", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("connect to broker after %d attempts: %w", connectRetries, err)
}

// dialer bounds both the TCP connect and the AMQP handshake by the dial
// timeout or the ctx deadline, whichever comes first. amqp091 clears the
// deadline once the connection is open.
func dialer(ctx context.Context, timeout time.Duration) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		deadline := time.Now().Add(timeout)
		if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
			deadline = dl
		}
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

func (c *Client) ensureChannel(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && !c.conn.IsClosed() && c.channel != nil {
		return nil
	}
	c.closeLocked()

	conn, err := amqp091.DialConfig(c.url, amqp091.Config{
		Heartbeat: heartbeat,
		Locale:    "en_US",
		Dial:      dialer(ctx, c.dialTimeout),
	})
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	err = channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	c.conn, c.channel = conn, channel
	return nil
}

// ExpenseChanged queues one change event and returns without touching the
// network. It satisfies the tracker's notifier; callers only log the error.
func (c *Client) ExpenseChanged(ctx context.Context, op string, e core.Expense, user string) error {
	if c.isCircuitOpen() {
		publishedTotal.WithLabelValues(op, "circuit_open").Inc()
		return fmt.Errorf("publish %s: %w", op, ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := NewExpenseChangedMessage(op, e, user).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	select {
	case c.events <- event{op: op, id: string(e.ID), body: body}:
		return nil
	default:
		publishedTotal.WithLabelValues(op, "dropped").Inc()
		return fmt.Errorf("publish %s: %w", op, ErrQueueFull)
	}
}

func (c *Client) send(ctx context.Context, ev event) {
	if c.isCircuitOpen() {
		publishedTotal.WithLabelValues(ev.op, "circuit_open").Inc()
		return
	}
	if err := c.publish(ctx, ev.body); err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.reset()
		}
		publishedTotal.WithLabelValues(ev.op, "error").Inc()
		c.logger.WarnContext(ctx, "Failed to publish expense change",
			log.NewFields().WithOperation(ev.op).WithError(err).ToSlice()...)
		return
	}

	c.recordSuccess()
	publishedTotal.WithLabelValues(ev.op, "ok").Inc()
	c.logger.DebugContext(ctx, "Published expense change",
		log.FieldOperation, ev.op, log.FieldExpenseID, ev.id, "exchange", c.exchangeName)
}

func (c *Client) publish(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := c.ensureChannel(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()
	if channel == nil {
		return fmt.Errorf("publish message: %w", amqp091.ErrClosed)
	}

	err := channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.routingKey,   // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.failMu.Lock()
	last := c.lastFailure
	c.failMu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.failMu.Lock()
	c.lastFailure = time.Now()
	c.failMu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func (c *Client) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

// exponentialBackoff returns 1s, 2s, 4s... capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
