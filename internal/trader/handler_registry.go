package trader

import "optdesk/internal/logger"

// HandlerRegistry maps event types to their handlers.
type HandlerRegistry struct {
	handlers map[EventType]EventHandler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[EventType]EventHandler),
	}
}

// Register adds h, replacing any handler of the same type.
func (r *HandlerRegistry) Register(h EventHandler) {
	if h == nil {
		return
	}
	r.handlers[h.Type()] = h
}

func (r *HandlerRegistry) Get(t EventType) (EventHandler, bool) {
	h, ok := r.handlers[t]
	return h, ok
}

// RegisterDefaultHandlers registers all built-in event handlers.
func (r *HandlerRegistry) RegisterDefaultHandlers() {
	r.Register(&TickHandler{})
	r.Register(&TickFailedHandler{})
	r.Register(&PollingHandler{})
	r.Register(&LoginHandler{})
	r.Register(&SetModeHandler{})
	r.Register(&SetTradeHandler{})
	r.Register(&SetQtyHandler{})
	r.Register(&SetDirectionHandler{})
	r.Register(&SetArmHandler{})
	r.Register(&SetExitHandler{})
	r.Register(&SetTuningHandler{})
	r.Register(&PaperEnterHandler{})
	r.Register(&PaperExitHandler{})
	r.Register(&LiveEnterHandler{})
	r.Register(&LiveExitHandler{})
	r.Register(&ResyncHandler{})
	logger.Debugf("Trader: Registered %d event handlers", len(r.handlers))
}
