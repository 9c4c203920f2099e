package dispatch

import (
	"context"
	"sync"
	"time"

	"NetSage/internal/metrics"
	"NetSage/internal/model"
	"NetSage/internal/provider"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Dispatcher fans one query's work units out to the selected providers.
// It is stateless across queries apart from the shared selector and the
// per-provider rate limiters, so one instance serves concurrent queries.
type Dispatcher struct {
	selector       model.Selector
	retry          *RetryPolicy
	perUnitTimeout time.Duration
	limiters       map[string]*rate.Limiter
	logger         *zap.Logger
}

// NewDispatcher creates a dispatcher. rateLimits maps provider names to
// requests per second; providers absent from the map are not throttled.
func NewDispatcher(selector model.Selector, retry *RetryPolicy, perUnitTimeout time.Duration, rateLimits map[string]float64, logger *zap.Logger) *Dispatcher {
	limiters := make(map[string]*rate.Limiter, len(rateLimits))
	for name, rps := range rateLimits {
		if rps <= 0 {
			continue
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		limiters[name] = rate.NewLimiter(rate.Limit(rps), burst)
	}

	return &Dispatcher{
		selector:       selector,
		retry:          retry,
		perUnitTimeout: perUnitTimeout,
		limiters:       limiters,
		logger:         logger,
	}
}

// Dispatch runs every unit concurrently and blocks until all have
// produced a result. Results arrive in completion order; the combiner
// re-imposes chunk order. The context bounds the whole fan-out: when it
// expires, in-flight calls are cancelled and their units come back as
// timeout failures while finished units keep their results.
func (d *Dispatcher) Dispatch(ctx context.Context, units []*model.WorkUnit, prompt string) []model.UnitResult {
	results := make(chan model.UnitResult, len(units))

	var wg sync.WaitGroup
	wg.Add(len(units))
	for _, unit := range units {
		go func(unit *model.WorkUnit) {
			defer wg.Done()
			results <- d.dispatchUnit(ctx, unit, prompt)
		}(unit)
	}
	wg.Wait()
	close(results)

	out := make([]model.UnitResult, 0, len(units))
	for r := range results {
		out = append(out, r)
	}
	return out
}

// dispatchUnit selects a provider and drives the attempt loop for one
// unit. Retries stay on the provider the selector assigned; a unit never
// hops backends mid-flight.
func (d *Dispatcher) dispatchUnit(ctx context.Context, unit *model.WorkUnit, prompt string) model.UnitResult {
	start := time.Now()

	p, err := d.selector.Pick()
	if err != nil {
		return model.UnitResult{
			ChunkIndex: unit.Index,
			Err:        err.Error(),
			ErrKind:    "no_provider",
			Latency:    time.Since(start),
		}
	}

	evidence := unit.EvidenceText()
	var text string
	attempts, err := d.retry.Execute(ctx, func(ctx context.Context) error {
		if err := d.throttle(ctx, p.Name()); err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(ctx, d.perUnitTimeout)
		defer cancel()

		out, qerr := p.Query(callCtx, prompt, evidence)
		if qerr != nil {
			return qerr
		}
		text = out
		return nil
	}, func(retryErr error) {
		metrics.RetriesTotal.WithLabelValues(p.Name(), string(provider.KindOf(retryErr))).Inc()
	})

	latency := time.Since(start)
	metrics.UnitLatency.WithLabelValues(p.Name()).Observe(latency.Seconds())

	if err != nil {
		kind := provider.KindOf(err)
		metrics.UnitResults.WithLabelValues(p.Name(), "failure").Inc()
		d.logger.Warn("work unit failed",
			zap.Int("chunk", unit.Index),
			zap.String("provider", p.Name()),
			zap.String("kind", string(kind)),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return model.UnitResult{
			Provider:   p.Name(),
			ChunkIndex: unit.Index,
			Err:        err.Error(),
			ErrKind:    string(kind),
			Attempts:   attempts,
			Latency:    latency,
		}
	}

	metrics.UnitResults.WithLabelValues(p.Name(), "success").Inc()
	d.logger.Debug("work unit completed",
		zap.Int("chunk", unit.Index),
		zap.String("provider", p.Name()),
		zap.Int("attempts", attempts),
		zap.Duration("latency", latency))
	return model.UnitResult{
		Provider:   p.Name(),
		ChunkIndex: unit.Index,
		Success:    true,
		Text:       text,
		Attempts:   attempts,
		Latency:    latency,
	}
}

// throttle blocks until the provider's limiter admits one request. A
// context that ends during the wait surfaces as a timeout so the unit is
// marked failed-by-timeout rather than with an opaque limiter error.
func (d *Dispatcher) throttle(ctx context.Context, name string) error {
	lim, ok := d.limiters[name]
	if !ok {
		return nil
	}
	if err := lim.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return &provider.TimeoutError{Provider: name, Detail: "query deadline reached while rate limited"}
		}
		return err
	}
	return nil
}
