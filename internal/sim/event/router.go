package event

type Handler func(ev Event)

// Router dispatches events synchronously to the handlers registered for their
// kind, in registration order. It is not safe for concurrent use; the world
// goroutine owns it.
type Router struct {
	handlers map[Kind][]Handler
}

func NewRouter() *Router {
	return &Router{handlers: map[Kind][]Handler{}}
}

func (r *Router) Subscribe(k Kind, h Handler) {
	if h == nil {
		return
	}
	r.handlers[k] = append(r.handlers[k], h)
}

// Dispatch runs every handler for ev and reports whether the event survived
// (was not cancelled). A cancelled event is still shown to later handlers.
func (r *Router) Dispatch(ev Event) bool {
	for _, h := range r.handlers[ev.Kind()] {
		h(ev)
	}
	return !ev.Cancelled()
}

func (r *Router) HandlerCount(k Kind) int { return len(r.handlers[k]) }

// On registers a typed handler. E must be one of the pointer event types of
// this package.
func On[E Event](r *Router, fn func(E)) {
	var zero E
	r.Subscribe(zero.Kind(), func(ev Event) {
		if e, ok := ev.(E); ok {
			fn(e)
		}
	})
}
