package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"optdesk/internal/config"
	"optdesk/internal/domain"
	"optdesk/internal/logger"
	"optdesk/internal/pkg/circuit"
	"optdesk/internal/pkg/retry"

	"golang.org/x/time/rate"
)

// Resilient wraps a Broker with a rate limiter, a circuit breaker, per-call
// timeouts and bounded retries for reads. PlaceOrder and Login are attempted
// exactly once: a retried order could fill twice.
type Resilient struct {
	inner       Broker
	limiter     *rate.Limiter
	breaker     *circuit.CircuitBreaker
	policy      retry.Policy
	callTimeout time.Duration
}

// NewResilient builds the wrapper from the broker section of the config.
func NewResilient(inner Broker, cfg config.BrokerConfig) *Resilient {
	rps := cfg.RateLimitPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Resilient{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		breaker: circuit.NewCircuitBreaker("broker", cfg.BreakerThreshold, time.Duration(cfg.BreakerCooldownSeconds)*time.Second),
		policy: retry.Policy{
			MaxAttempts: cfg.RetryAttempts,
			BaseDelay:   time.Duration(cfg.RetryBaseMillis) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.RetryMaxMillis) * time.Millisecond,
		},
		callTimeout: timeout,
	}
}

// Breaker exposes the circuit breaker for status reporting and tests.
func (r *Resilient) Breaker() *circuit.CircuitBreaker { return r.breaker }

// LoggedIn forwards the session state of the wrapped broker.
func (r *Resilient) LoggedIn() bool { return SessionReady(r.inner) }

func (r *Resilient) Login(ctx context.Context, secondFactor string) error {
	return r.once(ctx, "login", func(ctx context.Context) error {
		return r.inner.Login(ctx, secondFactor)
	})
}

func (r *Resilient) OrderBook(ctx context.Context) ([]Order, error) {
	var out []Order
	err := r.read(ctx, "orderbook", func(ctx context.Context) error {
		var err error
		out, err = r.inner.OrderBook(ctx)
		return err
	})
	return out, err
}

func (r *Resilient) TradeBook(ctx context.Context) ([]Fill, error) {
	var out []Fill
	err := r.read(ctx, "tradebook", func(ctx context.Context) error {
		var err error
		out, err = r.inner.TradeBook(ctx)
		return err
	})
	return out, err
}

func (r *Resilient) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	var orderNo string
	err := r.once(ctx, "place order", func(ctx context.Context) error {
		var err error
		orderNo, err = r.inner.PlaceOrder(ctx, req)
		return err
	})
	return orderNo, err
}

func (r *Resilient) TimePriceSeries(ctx context.Context, exchange, token string, from, to time.Time, intervalMinutes int) ([]Candle, error) {
	var out []Candle
	err := r.read(ctx, "tpseries", func(ctx context.Context) error {
		var err error
		out, err = r.inner.TimePriceSeries(ctx, exchange, token, from, to, intervalMinutes)
		return err
	})
	return out, err
}

func (r *Resilient) read(ctx context.Context, op string, fn func(context.Context) error) error {
	attempt := 0
	err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		attempt++
		err := r.call(ctx, fn)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return retry.Permanent(err)
		}
		logger.Warnf("broker %s attempt %d failed: %v", op, attempt, err)
		return err
	})
	return classify(op, err)
}

func (r *Resilient) once(ctx context.Context, op string, fn func(context.Context) error) error {
	return classify(op, r.call(ctx, fn))
}

func (r *Resilient) call(ctx context.Context, fn func(context.Context) error) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	return r.breaker.Do(func() error {
		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		defer cancel()
		return fn(callCtx)
	}, healthNeutral)
}

// healthNeutral errors say nothing about the broker's availability.
func healthNeutral(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) ||
		errors.Is(err, ErrNotLoggedIn) ||
		errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, context.Canceled)
}

func retryable(err error) bool {
	return !healthNeutral(err) && !errors.Is(err, circuit.ErrOpen)
}

// classify tags transport-level failures with ErrBrokerUnavailable and
// passes broker rejections and caller errors through unchanged.
func classify(op string, err error) error {
	if err == nil || healthNeutral(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrBrokerUnavailable, op, err)
}
