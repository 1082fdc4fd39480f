package dispatcher

import (
	"context"

	"github.com/garyjia/access-portal/internal/domain/event"
)

// Handler processes application events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo is a subscribed handler with the name used in logs
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}
