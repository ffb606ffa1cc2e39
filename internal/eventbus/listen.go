package eventbus

import "context"

// Listener hands events of one concrete type to a handler. Other events
// are skipped.
type Listener[T Event] struct {
	bus EventBus
	sub <-chan Event
	fn  func(T)
}

// Listen subscribes to b right away, so nothing published after it returns
// is missed, even if Run starts later.
func Listen[T Event](b EventBus, fn func(T)) *Listener[T] {
	return &Listener[T]{bus: b, sub: b.Subscribe(), fn: fn}
}

// Run calls the handler for each matching event until ctx is canceled or
// the bus is closed. Handlers run on the Run goroutine.
func (l *Listener[T]) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.bus.Unsubscribe(l.sub)
			return
		case ev, ok := <-l.sub:
			if !ok {
				return
			}
			if e, ok := ev.(T); ok {
				l.fn(e)
			}
		}
	}
}
