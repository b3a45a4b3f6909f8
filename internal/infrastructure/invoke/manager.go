package invoke

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sort"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/lexrag/internal/core/domain"
	"github.com/kirillkom/lexrag/internal/core/ports"
)

// Backend is the uniform invocation contract every generation model
// implements.
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt string) (*domain.ModelInvocationResult, error)
}

type Config struct {
	CallTimeout         time.Duration
	RacingMaxParallel   int
	BreakerFailureRatio float64
	BreakerMinRequests  uint32
	BreakerCooldown     time.Duration
}

func (c Config) normalize() Config {
	out := c
	if out.CallTimeout <= 0 {
		out.CallTimeout = 60 * time.Second
	}
	if out.RacingMaxParallel <= 0 {
		out.RacingMaxParallel = 2
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = 0.05
	}
	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = 10
	}
	if out.BreakerCooldown <= 0 {
		out.BreakerCooldown = 30 * time.Second
	}
	return out
}

type registeredBackend struct {
	backend  Backend
	priority int
	timeout  time.Duration
	breaker  *gobreaker.CircuitBreaker[*domain.ModelInvocationResult]
	health   *healthStats
}

// Manager holds the priority-ordered backend registry with per-backend
// circuit breakers and health counters. One instance is shared by all
// pipelines; per-call state stays on the stack.
type Manager struct {
	cfg      Config
	backends []*registeredBackend
	logger   *slog.Logger
}

func NewManager(cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{cfg: cfg.normalize(), logger: logger}
}

// Register adds a backend at the given priority rank (lower rank is tried
// first). A zero timeout inherits the manager's call timeout.
func (m *Manager) Register(backend Backend, priority int, timeout time.Duration) {
	if timeout <= 0 {
		timeout = m.cfg.CallTimeout
	}

	settings := gobreaker.Settings{
		Name:        backend.Name(),
		MaxRequests: 1,
		Timeout:     m.cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < m.cfg.BreakerMinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= m.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			// Cancellation of the parent call is not a backend fault.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			m.logger.Warn("backend_breaker_state_change", "backend", name, "from", from.String(), "to", to.String())
		},
	}

	m.backends = append(m.backends, &registeredBackend{
		backend:  backend,
		priority: priority,
		timeout:  timeout,
		breaker:  gobreaker.NewCircuitBreaker[*domain.ModelInvocationResult](settings),
		health:   newHealthStats(),
	})
	sort.SliceStable(m.backends, func(i, j int) bool {
		return m.backends[i].priority < m.backends[j].priority
	})
}

// Invoke runs the prompt with ordered fallback, optionally racing the top
// backends first. Attempts lists every failed backend call in order.
func (m *Manager) Invoke(ctx context.Context, prompt string, opts ports.InvocationOptions) (*domain.ModelInvocationResult, []domain.BackendAttempt, error) {
	if len(m.backends) == 0 {
		return nil, nil, domain.WrapError(domain.ErrAllModelsExhausted, "invoke", domain.Errorf("no backends registered"))
	}

	var attempts []domain.BackendAttempt
	remaining := m.backends

	if opts.Racing && m.cfg.RacingMaxParallel > 1 {
		racers, rest := m.splitRacers(remaining)
		if len(racers) > 1 {
			result, raceAttempts := m.race(ctx, racers, prompt)
			attempts = append(attempts, raceAttempts...)
			if result != nil {
				return result, attempts, nil
			}
			if ctx.Err() != nil {
				return nil, attempts, ctx.Err()
			}
			remaining = rest
		}
	}

	for _, rb := range remaining {
		if ctx.Err() != nil {
			return nil, attempts, ctx.Err()
		}
		result, err := m.callThroughBreaker(ctx, rb, prompt)
		if err == nil {
			return result, attempts, nil
		}
		attempts = append(attempts, domain.BackendAttempt{
			Backend: rb.backend.Name(),
			Reason:  attemptReason(err),
		})
	}

	if ctx.Err() != nil {
		return nil, attempts, ctx.Err()
	}
	return nil, attempts, domain.WrapError(domain.ErrAllModelsExhausted, "invoke", domain.Errorf("%d backends failed", len(attempts)))
}

// splitRacers selects up to RacingMaxParallel backends whose breakers will
// accept a call, preserving priority order for the rest.
func (m *Manager) splitRacers(backends []*registeredBackend) (racers, rest []*registeredBackend) {
	for _, rb := range backends {
		if len(racers) < m.cfg.RacingMaxParallel && rb.breaker.State() != gobreaker.StateOpen {
			racers = append(racers, rb)
			continue
		}
		rest = append(rest, rb)
	}
	return racers, rest
}

type raceOutcome struct {
	backend string
	result  *domain.ModelInvocationResult
	err     error
}

// race fans out to the given backends, returns the first success and
// cancels the losers. All-fail returns nil with the collected attempts.
func (m *Manager) race(ctx context.Context, racers []*registeredBackend, prompt string) (*domain.ModelInvocationResult, []domain.BackendAttempt) {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(chan raceOutcome, len(racers))
	for _, rb := range racers {
		go func(rb *registeredBackend) {
			result, err := m.callThroughBreaker(raceCtx, rb, prompt)
			outcomes <- raceOutcome{backend: rb.backend.Name(), result: result, err: err}
		}(rb)
	}

	var attempts []domain.BackendAttempt
	for range racers {
		outcome := <-outcomes
		if outcome.err == nil {
			cancel()
			return outcome.result, attempts
		}
		if errors.Is(outcome.err, context.Canceled) && ctx.Err() == nil {
			continue
		}
		attempts = append(attempts, domain.BackendAttempt{
			Backend: outcome.backend,
			Reason:  attemptReason(outcome.err),
		})
	}
	return nil, attempts
}

func (m *Manager) callThroughBreaker(ctx context.Context, rb *registeredBackend, prompt string) (*domain.ModelInvocationResult, error) {
	return rb.breaker.Execute(func() (*domain.ModelInvocationResult, error) {
		return m.callWithRetry(ctx, rb, prompt)
	})
}

// callWithRetry performs the timed backend call with at most one retry on
// a transient failure. The retry budget is scoped to this one call.
func (m *Manager) callWithRetry(ctx context.Context, rb *registeredBackend, prompt string) (*domain.ModelInvocationResult, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if ctx.Err() != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, ctx.Err()
		}

		callCtx, cancel := context.WithTimeout(ctx, rb.timeout)
		start := time.Now()
		result, err := rb.backend.Generate(callCtx, prompt)
		latency := time.Since(start)
		cancel()

		// A racer losing to a faster backend is not a backend fault.
		if !errors.Is(err, context.Canceled) {
			rb.health.record(err == nil, latency)
		}
		if err == nil {
			result.Latency = latency
			return result, nil
		}

		lastErr = err
		if !isTransient(err) || ctx.Err() != nil {
			return nil, err
		}
		m.logger.Warn("backend_retry", "backend", rb.backend.Name(), "error", err)
	}
	return nil, lastErr
}

// BackendHealth is a point-in-time view of one backend's rolling stats.
type BackendHealth struct {
	Name        string
	State       string
	ErrorRate   float64
	MeanLatency time.Duration
}

func (m *Manager) Health() []BackendHealth {
	out := make([]BackendHealth, 0, len(m.backends))
	for _, rb := range m.backends {
		errorRate, meanLatency := rb.health.snapshot()
		out = append(out, BackendHealth{
			Name:        rb.backend.Name(),
			State:       rb.breaker.State().String(),
			ErrorRate:   errorRate,
			MeanLatency: meanLatency,
		})
	}
	return out
}

func attemptReason(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return err.Error()
	}
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
