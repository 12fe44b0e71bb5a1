package trader

type TickHandler struct{}

func (h *TickHandler) Type() EventType { return EvtTick }

func (h *TickHandler) Handle(ctx *HandlerContext, payload []byte, traceID string) error {
	return ctx.Trader().handleTick(payload)
}

type TickFailedHandler struct{}

func (h *TickFailedHandler) Type() EventType { return EvtTickFailed }

func (h *TickFailedHandler) Handle(ctx *HandlerContext, payload []byte, traceID string) error {
	return ctx.Trader().handleTickFailed(payload)
}

type PollingHandler struct{}

func (h *PollingHandler) Type() EventType { return EvtPolling }

func (h *PollingHandler) Handle(ctx *HandlerContext, payload []byte, traceID string) error {
	return ctx.Trader().handlePolling(payload)
}

type LoginHandler struct{}

func (h *LoginHandler) Type() EventType { return EvtLogin }

func (h *LoginHandler) Handle(ctx *HandlerContext, payload []byte, traceID string) error {
	return ctx.Trader().handleLogin(payload)
}

type SetModeHandler struct{}

func (h *SetModeHandler) Type() EventType { return EvtSetMode }

func (h *SetModeHandler) Handle(ctx *HandlerContext, payload []byte, traceID string) error {
	return ctx.Trader().handleSetMode(payload)
}

type SetTradeHandler struct{}

func (h *SetTradeHandler) Type() EventType { return EvtSetTrade }

func (h *SetTradeHandler) Handle(ctx *HandlerContext, payload []byte, traceID string) error {
	return ctx.Trader().handleSetTrade(payload)
}

type SetQtyHandler struct{}

func (h *SetQtyHandler) Type() EventType { return EvtSetQty }

func (h *SetQtyHandler) Handle(ctx *HandlerContext, payload []byte, traceID string) error {
	return ctx.Trader().handleSetQty(payload)
}

type SetDirectionHandler struct{}

func (h *SetDirectionHandler) Type() EventType { return EvtSetDirection }

func (h *SetDirectionHandler) Handle(ctx *HandlerContext, payload []byte, traceID string) error {
	return ctx.Trader().handleSetDirection(payload)
}

type SetArmHandler struct{}

func (h *SetArmHandler) Type() EventType { return EvtSetArm }

func (h *SetArmHandler) Handle(ctx *HandlerContext, payload []byte, traceID string) error {
	return ctx.Trader().handleSetArm(payload)
}

type SetExitHandler struct{}

func (h *SetExitHandler) Type() EventType { return EvtSetExit }

func (h *SetExitHandler) Handle(ctx *HandlerContext, payload []byte, traceID string) error {
	return ctx.Trader().handleSetExit(payload)
}

type SetTuningHandler struct{}

func (h *SetTuningHandler) Type() EventType { return EvtSetTuning }

func (h *SetTuningHandler) Handle(ctx *HandlerContext, payload []byte, traceID string) error {
	return ctx.Trader().handleSetTuning(payload)
}

type PaperEnterHandler struct{}

func (h *PaperEnterHandler) Type() EventType { return EvtPaperEnter }

func (h *PaperEnterHandler) Handle(ctx *HandlerContext, payload []byte, traceID string) error {
	return ctx.Trader().handlePaperEnter(payload)
}

type PaperExitHandler struct{}

func (h *PaperExitHandler) Type() EventType { return EvtPaperExit }

func (h *PaperExitHandler) Handle(ctx *HandlerContext, payload []byte, traceID string) error {
	return ctx.Trader().handlePaperExit()
}

type LiveEnterHandler struct{}

func (h *LiveEnterHandler) Type() EventType { return EvtLiveEnter }

func (h *LiveEnterHandler) Handle(ctx *HandlerContext, payload []byte, traceID string) error {
	return ctx.Trader().handleLiveEnter(payload, traceID)
}

type LiveExitHandler struct{}

func (h *LiveExitHandler) Type() EventType { return EvtLiveExit }

func (h *LiveExitHandler) Handle(ctx *HandlerContext, payload []byte, traceID string) error {
	return ctx.Trader().handleLiveExit(traceID)
}

type ResyncHandler struct{}

func (h *ResyncHandler) Type() EventType { return EvtResync }

func (h *ResyncHandler) Handle(ctx *HandlerContext, payload []byte, traceID string) error {
	return ctx.Trader().handleResync(traceID)
}
