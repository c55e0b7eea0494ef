package dispatcher

import (
	"context"

	"github.com/garyjia/statecraft/internal/domain/event"
)

// Handler processes generation run events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes a subscription. Handler is nil in ListHandlers results.
type HandlerInfo struct {
	Name      string
	EventType event.Type
	// CatchAll marks handlers registered with SubscribeAll
	CatchAll bool
	Handler  Handler
}
