package trader

// EventHandler processes one event type inside the actor loop.
type EventHandler interface {
	Type() EventType

	// Handle applies the event. A returned error means the state was left
	// as it was before the event.
	Handle(ctx *HandlerContext, payload []byte, traceID string) error
}

// HandlerContext gives handlers access to the Trader without exposing it to
// the rest of the program.
type HandlerContext struct {
	trader *Trader
}

func NewHandlerContext(t *Trader) *HandlerContext {
	return &HandlerContext{trader: t}
}

func (c *HandlerContext) Trader() *Trader {
	return c.trader
}
