package observability

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis pub/sub channel for failures.
const DefaultChannel = "overlay.diagnostics"

// DefaultPublishTimeout bounds one Redis publish.
const DefaultPublishTimeout = 2 * time.Second

// maxInflightPublishes caps background publishes; further failures are
// kept locally only.
const maxInflightPublishes = 8

// Failure kinds.
const (
	KindRemoteCall = "remote_call"
	KindDom        = "dom_unavailable"
	KindRuntime    = "runtime_unavailable"
)

// Failure is one operator-visible problem the page user never sees.
type Failure struct {
	Kind    string    `json:"kind"`
	Op      string    `json:"op"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// DiagnosticsOptions configures NewDiagnostics.
type DiagnosticsOptions struct {
	Logger  *slog.Logger
	Metrics *Metrics
	// Redis is optional; nil keeps failures local.
	Redis          *redis.Client
	Channel        string
	Size           int
	PublishTimeout time.Duration
	Clock          func() time.Time
}

// Diagnostics keeps the most recent failures and fans them out to the
// log, the metrics registry and Redis.
type Diagnostics struct {
	logger  *slog.Logger
	metrics *Metrics
	client  *redis.Client
	channel string
	clock   func() time.Time
	timeout time.Duration
	// inflight bounds background publishes so Report never waits on Redis.
	inflight chan struct{}

	mu    sync.Mutex
	ring  []Failure
	next  int
	count int
}

// NewDiagnostics builds the channel.
func NewDiagnostics(opts DiagnosticsOptions) *Diagnostics {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Channel == "" {
		opts.Channel = DefaultChannel
	}
	if opts.Size <= 0 {
		opts.Size = 50
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = DefaultPublishTimeout
	}
	return &Diagnostics{
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		client:   opts.Redis,
		channel:  opts.Channel,
		clock:    opts.Clock,
		timeout:  opts.PublishTimeout,
		inflight: make(chan struct{}, maxInflightPublishes),
		ring:     make([]Failure, opts.Size),
	}
}

// Report records a failure. It never returns an error and never blocks on
// Redis: the publish runs in the background with its own timeout, and
// publish problems are logged.
func (d *Diagnostics) Report(ctx context.Context, kind, op string, err error) {
	if d == nil || err == nil {
		return
	}
	f := Failure{Kind: kind, Op: op, Message: err.Error(), At: d.clock()}

	d.mu.Lock()
	d.ring[d.next] = f
	d.next = (d.next + 1) % len(d.ring)
	if d.count < len(d.ring) {
		d.count++
	}
	d.mu.Unlock()

	d.logger.Warn("overlay failure", slog.String("kind", kind), slog.String("op", op), slog.Any("error", err))
	d.metrics.countDiagnostic(kind)

	if d.client == nil {
		return
	}
	payload, mErr := json.Marshal(f)
	if mErr != nil {
		return
	}
	select {
	case d.inflight <- struct{}{}:
	default:
		d.logger.Debug("diagnostic publish dropped", slog.String("op", op))
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	go func() {
		defer func() { <-d.inflight }()
		defer cancel()
		if pErr := d.client.Publish(pubCtx, d.channel, payload).Err(); pErr != nil {
			d.logger.Debug("publish diagnostic", slog.Any("error", pErr))
		}
	}()
}

// Recent returns the retained failures, newest first.
func (d *Diagnostics) Recent() []Failure {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Failure, 0, d.count)
	for i := 1; i <= d.count; i++ {
		idx := (d.next - i + len(d.ring)) % len(d.ring)
		out = append(out, d.ring[idx])
	}
	return out
}

// Follow subscribes to channel and calls fn for every decoded failure
// until ctx is done.
func Follow(ctx context.Context, client *redis.Client, channel string, fn func(Failure)) error {
	if channel == "" {
		channel = DefaultChannel
	}
	pubsub := client.Subscribe(ctx, channel)
	defer func() { _ = pubsub.Close() }()
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var f Failure
			if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
				continue
			}
			fn(f)
		}
	}
}
