// Package sender runs outbound Telegram calls on a worker pool so handlers
// never wait on the network.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/refbot/core/logger"
	"github.com/m3rciful/refbot/core/metrics"
	"github.com/m3rciful/refbot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

const component = "tg.sender"

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	// QueueSize bounds each worker's queue.
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
}

type job struct {
	ctx    context.Context
	action string
	run    func() error
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
// Jobs sharing a key run on the same worker in enqueue order.
type Dispatcher struct {
	opts   Options
	shards []chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	errs   atomic.Uint64
}

// NewDispatcher starts a dispatcher, filling zero options with defaults.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	d := &Dispatcher{opts: opts, shards: make([]chan job, opts.Workers)}
	d.wg.Add(opts.Workers)
	for i := range d.shards {
		d.shards[i] = make(chan job, opts.QueueSize)
		go d.worker(d.shards[i])
	}
	return d
}

// Enqueue schedules run on the worker owning key, usually a chat id.
// run must be safe to repeat when retries are enabled.
func (d *Dispatcher) Enqueue(ctx context.Context, key int64, action string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	shard := d.shards[shardIndex(key, len(d.shards))]
	select {
	case shard <- job{ctx: ctx, action: action, run: run}:
		return nil
	default:
		metrics.RecordOutbound(action, ErrQueueFull)
		return ErrQueueFull
	}
}

// ErrorCount returns the number of jobs that failed after all attempts.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops accepting jobs and waits until queued ones are done.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, shard := range d.shards {
		close(shard)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func shardIndex(key int64, n int) int {
	if key < 0 {
		key = -key
	}
	return int(key % int64(n))
}

func (d *Dispatcher) worker(jobs <-chan job) {
	defer d.wg.Done()
	for j := range jobs {
		d.handle(j)
	}
}

func (d *Dispatcher) handle(j job) {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	// The update that queued the job may already be finished; keep its values only.
	deadline, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var err error
	attempt := 1
	for ; attempt <= attempts; attempt++ {
		if err = j.run(); err == nil || !netutil.ShouldRetry(err) || attempt == attempts {
			break
		}
		delay := d.opts.RetryBackoff * time.Duration(attempt)
		logger.Debug(ctx, component, "send.retry.backoff",
			slog.String("op", j.action),
			slog.Int("attempts", attempt),
			slog.Duration("backoff", delay),
		)
		timer := time.NewTimer(delay)
		select {
		case <-deadline.Done():
			timer.Stop()
			err = deadline.Err()
		case <-timer.C:
			continue
		}
		break
	}
	attempt = min(attempt, attempts)
	metrics.RecordOutbound(j.action, err)

	if err == nil {
		logger.Debug(ctx, component, "send.success",
			slog.String("op", j.action),
			slog.Int("attempts", attempt),
			slog.Duration("duration", logger.Took(start)),
		)
		return
	}
	d.errs.Add(1)
	logger.Error(ctx, component, "send.fail",
		slog.String("op", j.action),
		slog.String("err", redact(err)),
		slog.String("error_kind", classifyError(err)),
		slog.Int("attempts", attempt),
		slog.Duration("duration", logger.Took(start)),
	)
}

// redact prevents bot tokens embedded in request URLs from reaching the logs.
func redact(err error) string {
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}

func classifyError(err error) string {
	var (
		netErr   net.Error
		dnsErr   *net.DNSError
		opErr    *net.OpError
		apiErr   *tele.Error
		floodErr tele.FloodError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &dnsErr):
		return "dns"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return "dial"
	case errors.As(err, &floodErr):
		return "http_4xx"
	case errors.As(err, &apiErr):
		if apiErr.Code >= http.StatusInternalServerError {
			return "http_5xx"
		}
		return "http_4xx"
	}
	return "unknown"
}
