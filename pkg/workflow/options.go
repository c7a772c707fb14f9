package workflow

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/finflow/pkg/workflow/checkpoint"
	"github.com/randalmurphal/finflow/pkg/workflow/observability"
)

// runConfig holds configuration for graph execution.
type runConfig struct {
	maxIterations int
	nodeTimeout   time.Duration

	checkpointStore        checkpoint.Store
	checkpointKey          string
	checkpointFailureFatal bool
	sequence               int

	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
}

// defaultRunConfig returns the default execution configuration.
func defaultRunConfig() runConfig {
	return runConfig{
		maxIterations: 1000,
		metrics:       observability.NoopMetrics{},
		spans:         observability.NoopSpanManager{},
	}
}

func newRunConfig(opts []RunOption) runConfig {
	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithMaxIterations sets the maximum number of node executions.
// Default: 1000
//
// This prevents infinite loops from hanging forever. If a graph
// exceeds this limit, Run returns ErrMaxIterations.
func WithMaxIterations(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// WithNodeTimeout bounds every node execution. A node that fails after its
// deadline passed fails with a *errors.TimeoutError.
func WithNodeTimeout(d time.Duration) RunOption {
	return func(c *runConfig) {
		if d > 0 {
			c.nodeTimeout = d
		}
	}
}

// WithCheckpointing saves a checkpoint under key after every node of the
// outermost graph, and when the run suspends.
//
// Example:
//
//	res, err := compiled.Run(ctx, state,
//	    workflow.WithCheckpointing(store, "u1:r1"))
func WithCheckpointing(store checkpoint.Store, key string) RunOption {
	return func(c *runConfig) {
		c.checkpointStore = store
		c.checkpointKey = key
	}
}

// WithCheckpointFailureFatal makes a failed checkpoint save end the run
// with a *CheckpointError. By default failures are logged and ignored.
func WithCheckpointFailureFatal() RunOption {
	return func(c *runConfig) {
		c.checkpointFailureFatal = true
	}
}

// WithObservabilityLogger logs run and node lifecycle events to logger.
func WithObservabilityLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics records OpenTelemetry metrics for the run.
func WithMetrics(recorder observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if recorder != nil {
			c.metrics = recorder
		}
	}
}

// WithTracing creates a span per run and per node.
func WithTracing(spans observability.SpanManager) RunOption {
	return func(c *runConfig) {
		if spans != nil {
			c.spans = spans
			c.tracingEnabled = true
		}
	}
}
