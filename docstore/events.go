package docstore

import (
	"context"
	"fmt"

	"github.com/holmberd/go-vpack/eventemitter"
)

type Event int

const (
	DocumentsInserted Event = iota
	DocumentsRemoved
	NamespaceFlushed
)

func (e Event) String() string {
	switch e {
	case DocumentsInserted:
		return "DocumentsInserted"
	case DocumentsRemoved:
		return "DocumentsRemoved"
	case NamespaceFlushed:
		return "NamespaceFlushed"
	default:
		return fmt.Sprintf("event(%d)", e)
	}
}

// Listener receives the document keys affected by an event. Listeners run
// synchronously on the goroutine that changed the collection.
type Listener func(ctx context.Context, keys []string)

type notification struct {
	ctx  context.Context
	keys []string
}

// EventTarget registers listeners for one collection event.
type EventTarget struct {
	t *eventemitter.EventTarget[notification]
}

func newEventTarget(e *eventemitter.EventEmitter[notification], ev Event) *EventTarget {
	return &EventTarget{t: e.Target(ev.String())}
}

func (e *EventTarget) AddListener(listener Listener) eventemitter.ListenerToken {
	return e.t.AddListener(func(n notification) {
		listener(n.ctx, n.keys)
	})
}

func (e *EventTarget) RemoveListener(token eventemitter.ListenerToken) bool {
	return e.t.RemoveListener(token)
}

func (e *EventTarget) emit(ctx context.Context, keys []string) bool {
	return e.t.Emit(notification{ctx: ctx, keys: keys})
}
