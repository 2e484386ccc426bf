// Package dispatcher maps host commands to handlers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrQueueFull      = errors.New("queue full")
	ErrClosed         = errors.New("dispatcher closed")
)

// Queued is the result of a command accepted by a buffered handler.
const Queued = "queued"

// Event is one host command.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Runner executes functions on a single goroutine and waits for them.
type Runner interface {
	Do(fn func()) error
}

// Option configures handler registration.
type Option func(*route)

type route struct {
	queueSize int
	logged    bool
	runner    Runner
}

// OnLoop runs the handler through r, so it never overlaps other work on r.
func OnLoop(r Runner) Option {
	return func(rt *route) { rt.runner = r }
}

// Buffered hands events to a worker through a queue of the given size and
// returns Queued immediately. Events arriving while the queue is full are
// rejected with ErrQueueFull.
func Buffered(size int) Option {
	return func(rt *route) { rt.queueSize = size }
}

// Logged adds debug logging around the handler.
func Logged() Option {
	return func(rt *route) { rt.logged = true }
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger
	inst     instruments

	mu      sync.RWMutex
	queues  map[string]chan Event
	closed  bool
	workers sync.WaitGroup
}

// New creates a Dispatcher. Metrics go to the global OTel meter provider.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		queues:   make(map[string]chan Event),
		logger:   logger,
	}

	inst, err := newInstruments(d.pending)
	if err != nil {
		return nil, err
	}
	d.inst = inst
	return d, nil
}

// Register adds a handler for command. Registering a command twice replaces
// the earlier handler.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	var rt route
	for _, opt := range opts {
		opt(&rt)
	}

	if rt.runner != nil {
		h = onRunner(rt.runner, h)
	}
	if rt.queueSize > 0 {
		h = d.queued(command, rt.queueSize, h)
	}
	if rt.logged {
		h = d.logged(command, h)
	}
	d.handlers[command] = h
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	h, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	result, err := h(e)

	d.inst.latency.Record(context.Background(),
		float64(time.Since(e.Timestamp).Microseconds())/1000,
		metric.WithAttributes(commandAttr(e.Command), attribute.Bool("error", err != nil)))
	return result, err
}

// HasHandler reports whether command is registered.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

// Commands returns the registered commands in sorted order.
func (d *Dispatcher) Commands() []string {
	return slices.Sorted(maps.Keys(d.handlers))
}

// Close stops accepting queued events and waits for the workers to drain
// what was already queued.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	d.workers.Wait()
}

func (d *Dispatcher) pending() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]int, len(d.queues))
	for cmd, q := range d.queues {
		out[cmd] = len(q)
	}
	return out
}

func onRunner(r Runner, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		var (
			result any
			err    error
		)
		if rerr := r.Do(func() { result, err = h(e) }); rerr != nil {
			return nil, rerr
		}
		return result, err
	}
}

func (d *Dispatcher) queued(command string, size int, h HandlerFunc) HandlerFunc {
	q := make(chan Event, size)
	attrs := metric.WithAttributes(commandAttr(command))

	d.mu.Lock()
	d.queues[command] = q
	d.mu.Unlock()

	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		for e := range q {
			if _, err := h(e); err != nil {
				d.logger.Error("queued command failed", "command", command, "error", err)
			}
			d.inst.handled.Add(context.Background(), 1, attrs)
		}
	}()

	return func(e Event) (any, error) {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return nil, ErrClosed
		}
		select {
		case q <- e:
			return Queued, nil
		default:
			d.inst.dropped.Add(context.Background(), 1, attrs)
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, command)
		}
	}
}

func (d *Dispatcher) logged(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling command", "command", command, "args", len(e.Args))

		result, err := h(e)
		if err != nil {
			d.logger.Error("command failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("command done", "command", command, "duration", time.Since(start))
		}
		return result, err
	}
}
