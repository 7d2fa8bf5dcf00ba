package event

// Emitter is a typed signal with ordered handlers. It is loop-confined:
// Connect, Disconnect and Emit must all happen on the control goroutine,
// so no locking is needed.
type Emitter[T any] struct {
	nextID   int
	handlers []handler[T]
}

type handler[T any] struct {
	id int
	fn func(T)
}

// Subscription identifies a connected handler so it can be disconnected.
type Subscription struct {
	disconnect func()
}

// Disconnect removes the handler. Disconnecting twice is a no-op.
func (s Subscription) Disconnect() {
	if s.disconnect != nil {
		s.disconnect()
	}
}

// Connect registers fn to run on every Emit, after previously connected
// handlers.
func (e *Emitter[T]) Connect(fn func(T)) Subscription {
	e.nextID++
	id := e.nextID
	e.handlers = append(e.handlers, handler[T]{id: id, fn: fn})
	return Subscription{disconnect: func() { e.remove(id) }}
}

// ConnectNow registers fn and immediately invokes it once with initial.
// This mirrors bind-and-sync semantics: the observer sees the current value
// at subscribe time, then every change.
func (e *Emitter[T]) ConnectNow(fn func(T), initial T) Subscription {
	sub := e.Connect(fn)
	fn(initial)
	return sub
}

// Emit invokes every connected handler in connection order. Handlers may
// disconnect themselves or others during emission: a handler disconnected
// mid-emit is skipped, and handlers connected mid-emit only see later emits.
func (e *Emitter[T]) Emit(v T) {
	snapshot := make([]handler[T], len(e.handlers))
	copy(snapshot, e.handlers)
	for _, h := range snapshot {
		if e.connected(h.id) {
			h.fn(v)
		}
	}
}

// DisconnectAll removes every handler. Used when an entity is destroyed so
// no stale callback can reference it afterwards.
func (e *Emitter[T]) DisconnectAll() {
	e.handlers = nil
}

func (e *Emitter[T]) remove(id int) {
	for i, h := range e.handlers {
		if h.id == id {
			e.handlers = append(e.handlers[:i], e.handlers[i+1:]...)
			return
		}
	}
}

func (e *Emitter[T]) connected(id int) bool {
	for _, h := range e.handlers {
		if h.id == id {
			return true
		}
	}
	return false
}
