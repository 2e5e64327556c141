package orchestrator

import (
	"math/rand"
	"time"
)

// Defaults applied when the corresponding option is not given.
const (
	defaultTickInterval = time.Second
	defaultRetryLimit   = 3
)

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	clock          Clock
	rng            *rand.Rand
	dispatcher     Dispatcher
	logger         *DebugLogger
	tickInterval   time.Duration
	maxPoolSize    int
	retryLimit     int
	scaleThreshold float64
	historyLimit   int
}

// WithClock sets the clock. Tests inject a fake clock for determinism.
func WithClock(c Clock) Option {
	return func(o *orchestratorOptions) { o.clock = c }
}

// WithRand sets the random source used for resource drift, spawn
// proficiency, and (unless a dispatcher is injected) simulated outcomes.
func WithRand(r *rand.Rand) Option {
	return func(o *orchestratorOptions) { o.rng = r }
}

// WithDispatcher sets the execution seam. Defaults to the simulator.
func WithDispatcher(d Dispatcher) Option {
	return func(o *orchestratorOptions) { o.dispatcher = d }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithTickInterval sets the metrics/scaling tick period.
func WithTickInterval(d time.Duration) Option {
	return func(o *orchestratorOptions) { o.tickInterval = d }
}

// WithMaxPoolSize caps how far the scaling controller may grow the pool.
func WithMaxPoolSize(n int) Option {
	return func(o *orchestratorOptions) { o.maxPoolSize = n }
}

// WithRetryLimit bounds how many times a failed critical task is requeued.
func WithRetryLimit(n int) Option {
	return func(o *orchestratorOptions) { o.retryLimit = n }
}

// WithScaleThreshold sets the system load above which a scheduling miss
// spawns a new agent.
func WithScaleThreshold(f float64) Option {
	return func(o *orchestratorOptions) { o.scaleThreshold = f }
}

// WithHistoryLimit bounds each agent's task history log.
func WithHistoryLimit(n int) Option {
	return func(o *orchestratorOptions) { o.historyLimit = n }
}

// defaultOptions returns the baseline configuration.
func defaultOptions() *orchestratorOptions {
	return &orchestratorOptions{
		tickInterval:   defaultTickInterval,
		maxPoolSize:    defaultMaxPoolSize,
		retryLimit:     defaultRetryLimit,
		scaleThreshold: defaultScaleThreshold,
		historyLimit:   defaultHistoryLimit,
	}
}
