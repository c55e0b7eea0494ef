package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/statecraft/internal/domain/event"
)

var (
	// ErrClosed is returned when dispatching on a closed dispatcher
	ErrClosed = errors.New("dispatcher is closed")

	// ErrUnknownEventType is returned for events outside the run lifecycle
	ErrUnknownEventType = errors.New("unknown event type")
)

// Dispatcher routes generation run events to registered handlers
type Dispatcher interface {
	// Subscribe registers a handler for an event type
	Subscribe(eventType event.Type, handler Handler)

	// SubscribeNamed registers a handler with a name for debugging
	SubscribeNamed(eventType event.Type, name string, handler Handler)

	// SubscribeAll registers a handler for every event type. Catch-all
	// handlers run after the handlers of the specific type.
	SubscribeAll(name string, handler Handler)

	// Unsubscribe removes the named handler for eventType, or the named
	// catch-all handler when eventType is empty
	Unsubscribe(eventType event.Type, name string)

	// Dispatch sends event to the registered handlers in order and returns
	// the first error encountered
	Dispatch(ctx context.Context, evt *event.Event) error

	// ListHandlers returns the handlers that would receive eventType
	ListHandlers(eventType event.Type) []HandlerInfo

	// Close rejects further dispatches
	Close() error
}

type eventDispatcher struct {
	mu       sync.RWMutex
	handlers map[event.Type][]HandlerInfo
	catchAll []HandlerInfo
	closed   bool
	logger   *zap.Logger
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger *zap.Logger) Option {
	return func(d *eventDispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		handlers: make(map[event.Type][]HandlerInfo),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe registers a handler for an event type with an auto-generated name
func (d *eventDispatcher) Subscribe(eventType event.Type, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.add(HandlerInfo{
		Name:      fmt.Sprintf("%s#%d", eventType, len(d.handlers[eventType])),
		EventType: eventType,
		Handler:   handler,
	})
}

// SubscribeNamed registers a handler with a specific name
func (d *eventDispatcher) SubscribeNamed(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.add(HandlerInfo{Name: name, EventType: eventType, Handler: handler})
}

// SubscribeAll registers a catch-all handler
func (d *eventDispatcher) SubscribeAll(name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.add(HandlerInfo{Name: name, CatchAll: true, Handler: handler})
}

// add expects d.mu to be held
func (d *eventDispatcher) add(info HandlerInfo) {
	if info.CatchAll {
		d.catchAll = append(d.catchAll, info)
	} else {
		d.handlers[info.EventType] = append(d.handlers[info.EventType], info)
	}
	d.logger.Debug("Handler registered",
		zap.String("event_type", info.EventType.String()),
		zap.String("handler_name", info.Name),
		zap.Bool("catch_all", info.CatchAll))
}

// Unsubscribe removes a handler by name
func (d *eventDispatcher) Unsubscribe(eventType event.Type, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if eventType == "" {
		d.catchAll = without(d.catchAll, name)
		return
	}
	d.handlers[eventType] = without(d.handlers[eventType], name)
}

func without(handlers []HandlerInfo, name string) []HandlerInfo {
	filtered := make([]HandlerInfo, 0, len(handlers))
	for _, h := range handlers {
		if h.Name != name {
			filtered = append(filtered, h)
		}
	}
	return filtered
}

// Dispatch sends event to all registered handlers synchronously
func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	if !evt.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownEventType, evt.Type)
	}

	handlers, err := d.subscribers(evt.Type)
	if err != nil {
		return err
	}

	for _, info := range handlers {
		if err := d.safeExecute(ctx, evt, info); err != nil {
			d.logger.Error("Handler error",
				zap.String("event_type", evt.Type.String()),
				zap.String("run_id", evt.RunID),
				zap.String("machine", evt.Machine),
				zap.String("handler_name", info.Name),
				zap.Error(err))
			return fmt.Errorf("handler %s failed: %w", info.Name, err)
		}
	}
	return nil
}

// subscribers snapshots the handlers for eventType followed by the catch-all handlers
func (d *eventDispatcher) subscribers(eventType event.Type) ([]HandlerInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, ErrClosed
	}
	specific := d.handlers[eventType]
	out := make([]HandlerInfo, 0, len(specific)+len(d.catchAll))
	out = append(out, specific...)
	return append(out, d.catchAll...), nil
}

// ListHandlers returns registered handlers for an event type, without the functions
func (d *eventDispatcher) ListHandlers(eventType event.Type) []HandlerInfo {
	handlers, err := d.subscribers(eventType)
	if err != nil {
		return nil
	}
	for i := range handlers {
		handlers[i].Handler = nil
	}
	return handlers
}

// Close marks the dispatcher closed
func (d *eventDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fmt.Errorf("dispatcher already closed")
	}
	d.closed = true
	d.logger.Debug("Dispatcher closed")
	return nil
}

// safeExecute runs a handler with panic recovery
func (d *eventDispatcher) safeExecute(ctx context.Context, evt *event.Event, info HandlerInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			d.logger.Error("Handler panic recovered",
				zap.String("event_type", evt.Type.String()),
				zap.String("handler_name", info.Name),
				zap.Any("panic", r))
		}
	}()
	return info.Handler(ctx, evt)
}
