package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bnema/pttsync/internal/adapters/auth"
	"github.com/bnema/pttsync/internal/adapters/sse"
	"github.com/bnema/pttsync/internal/domain"
	"github.com/bnema/pttsync/internal/ports"
)

const (
	DefaultRequestTimeout = 10 * time.Minute
	readChunkSize         = 4096
)

var ErrStreamClosed = errors.New("stream closed by server")

// StatusError reports a non-2xx response to the stream request.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("stream request: status %d", e.StatusCode)
}

// nonRetryableError marks failures that retrying cannot fix.
type nonRetryableError struct {
	err error
}

func (e *nonRetryableError) Error() string { return "non-retryable: " + e.err.Error() }
func (e *nonRetryableError) Unwrap() error { return e.err }

func isNonRetryable(err error) bool {
	var target *nonRetryableError
	return errors.As(err, &target)
}

type ConnectionConfig struct {
	BaseURL        string
	Topic          Topic
	Credentials    auth.Credentials
	Router         *Router
	HTTPClient     *http.Client
	Clock          ports.Clock
	Metrics        ports.StreamMetrics
	Logger         *slog.Logger
	RequestTimeout time.Duration
	MaxBufferBytes int
}

// Connection keeps one streaming request open for a topic and reopens it
// after failures, up to the topic's retry bound.
type Connection struct {
	topic          Topic
	endpoint       string
	creds          auth.Credentials
	router         *Router
	httpClient     *http.Client
	clock          ports.Clock
	metrics        ports.StreamMetrics
	logger         *slog.Logger
	requestTimeout time.Duration
	maxBuffer      int

	mu      sync.Mutex
	state   domain.ConnectionState
	running bool
	// generation invalidates in-flight attempts and pending timers whenever
	// Start or Stop runs or the connection gives up.
	generation uint64
	retries    int
	cancel     context.CancelFunc
	timer      ports.Timer
}

func NewConnection(cfg ConnectionConfig) (*Connection, error) {
	if err := cfg.Topic.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Credentials.Validate(); err != nil {
		return nil, err
	}
	if cfg.Router == nil {
		return nil, errors.New("router is required")
	}
	endpoint, err := auth.BuildAPIURL(cfg.BaseURL, cfg.Topic.Path)
	if err != nil {
		return nil, err
	}

	c := &Connection{
		topic:          cfg.Topic,
		endpoint:       endpoint,
		creds:          cfg.Credentials,
		router:         cfg.Router,
		httpClient:     cfg.HTTPClient,
		clock:          cfg.Clock,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
		requestTimeout: cfg.RequestTimeout,
		maxBuffer:      cfg.MaxBufferBytes,
		state:          domain.ConnectionIdle,
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.clock == nil {
		c.clock = ports.SystemClock{}
	}
	if c.metrics == nil {
		c.metrics = ports.NopStreamMetrics{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("topic", cfg.Topic.Name)
	if c.requestTimeout <= 0 {
		c.requestTimeout = DefaultRequestTimeout
	}
	if c.maxBuffer <= 0 {
		c.maxBuffer = sse.DefaultMaxBuffer
	}

	return c, nil
}

func (c *Connection) Topic() string {
	return c.topic.Name
}

func (c *Connection) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) Retries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retries
}

// Start opens the stream unless it is already running.
func (c *Connection) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.generation++
	gen := c.generation
	c.retries = 0
	c.setStateLocked(domain.ConnectionConnecting)
	c.mu.Unlock()

	c.logger.Info("starting stream", "endpoint", c.endpoint)
	go c.attempt(gen)
}

// Stop cancels the current request and any scheduled reconnect. The
// connection stays stopped until Start is called again.
func (c *Connection) Stop() {
	c.mu.Lock()
	wasRunning := c.running
	c.running = false
	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if wasRunning {
		c.setStateLocked(domain.ConnectionStopped)
	}
	c.mu.Unlock()

	if wasRunning {
		c.logger.Info("stream stopped")
		c.router.ConnectionChanged(false)
	}
}

func (c *Connection) attempt(gen uint64) {
	c.mu.Lock()
	if !c.running || gen != c.generation {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.requestTimeout)
	c.cancel = cancel
	c.timer = nil
	c.setStateLocked(domain.ConnectionConnecting)
	c.mu.Unlock()
	defer cancel()

	err := c.stream(ctx, gen)
	c.fail(gen, err)
}

func (c *Connection) stream(ctx context.Context, gen uint64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return &nonRetryableError{err: fmt.Errorf("create stream request: %w", err)}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	auth.SignRequest(req, c.creds, c.clock.Now())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return &nonRetryableError{err: statusErr}
		}
		return statusErr
	}

	if !c.transition(gen, domain.ConnectionConnected) {
		return nil
	}

	parser := sse.NewParser(c.maxBuffer)
	chunk := make([]byte, readChunkSize)
	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			frames, feedErr := parser.Feed(chunk[:n])
			for _, frame := range frames {
				if !c.live(gen) {
					return nil
				}
				c.handleFrame(ctx, gen, frame)
			}
			if feedErr != nil {
				return feedErr
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return ErrStreamClosed
			}
			return fmt.Errorf("read stream: %w", readErr)
		}
	}
}

func (c *Connection) handleFrame(ctx context.Context, gen uint64, frame sse.Frame) {
	c.metrics.FrameReceived(c.topic.Name, frame.Kind.String())

	switch {
	case frame.IsConnected():
		c.mu.Lock()
		current := gen == c.generation
		if current {
			c.retries = 0
		}
		c.mu.Unlock()
		if current {
			c.logger.Info("stream connected")
			c.router.ConnectionChanged(true)
		}
	case frame.IsHeartbeat():
		c.logger.Debug("heartbeat")
	case frame.Kind == sse.FrameData:
		c.router.Route(ctx, frame.Data, func() bool { return c.live(gen) })
	}
}

// live reports whether gen is still the running attempt.
func (c *Connection) live(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running && gen == c.generation
}

// fail decides between a scheduled reconnect and giving up. Attempts from an
// older generation are ignored.
func (c *Connection) fail(gen uint64, cause error) {
	c.mu.Lock()
	if !c.running || gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.cancel = nil

	if isNonRetryable(cause) {
		c.giveUpLocked()
		c.mu.Unlock()
		c.logger.Error("stream rejected, not retrying", "error", cause)
		c.router.ConnectionChanged(false)
		return
	}

	c.retries++
	retries := c.retries
	if retries > c.topic.MaxRetries {
		c.giveUpLocked()
		c.mu.Unlock()
		c.logger.Error("stream retries exhausted", "error", cause, "attempts", retries)
		c.router.ConnectionChanged(false)
		return
	}

	c.setStateLocked(domain.ConnectionReconnecting)
	c.timer = c.clock.AfterFunc(c.topic.RetryDelay, func() {
		go c.attempt(gen)
	})
	c.mu.Unlock()

	c.metrics.ReconnectScheduled(c.topic.Name)
	c.logger.Warn("stream failed, reconnecting", "error", cause, "attempt", retries, "max_retries", c.topic.MaxRetries, "delay", c.topic.RetryDelay)
	c.router.ConnectionChanged(false)
}

func (c *Connection) giveUpLocked() {
	c.running = false
	c.generation++
	c.timer = nil
	c.setStateLocked(domain.ConnectionStopped)
}

func (c *Connection) transition(gen uint64, state domain.ConnectionState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || gen != c.generation {
		return false
	}
	c.setStateLocked(state)
	return true
}

func (c *Connection) setStateLocked(state domain.ConnectionState) {
	if c.state == state {
		return
	}
	c.state = state
	c.metrics.StateChanged(c.topic.Name, state)
}
