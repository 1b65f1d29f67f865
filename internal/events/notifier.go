package events

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// Notifier turns user-facing notifications into bus events. Delivery failures
// are logged and never reach the caller.
type Notifier struct {
	bus    *EventBus
	logger *zerolog.Logger
}

func NewNotifier(bus *EventBus, logger *zerolog.Logger) *Notifier {
	return &Notifier{bus: bus, logger: logger}
}

func (n *Notifier) Notify(kind, title, message string) {
	payload := NotificationPayload{Kind: kind, Title: title, Message: message}
	if err := n.bus.PublishJSON(EventNotification, payload); err != nil {
		n.logger.Error().Err(err).Str("kind", kind).Str("title", title).Msg("failed to publish notification")
		return
	}
	n.logger.Debug().Str("kind", kind).Str("title", title).Msg(message)
}

// Inbox keeps the most recent notifications for clients that poll.
type Inbox struct {
	mu    sync.Mutex
	items []NotificationPayload
	limit int
}

func NewInbox(limit int) *Inbox {
	if limit <= 0 {
		limit = 50
	}
	return &Inbox{limit: limit}
}

// Attach subscribes the inbox to notification events on bus.
func (i *Inbox) Attach(bus *EventBus) {
	bus.Subscribe(EventNotification, func(event *Event) error {
		var payload NotificationPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}
		i.mu.Lock()
		defer i.mu.Unlock()
		i.items = append(i.items, payload)
		if len(i.items) > i.limit {
			i.items = i.items[len(i.items)-i.limit:]
		}
		return nil
	})
}

// Recent returns notifications oldest first.
func (i *Inbox) Recent() []NotificationPayload {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]NotificationPayload(nil), i.items...)
}
