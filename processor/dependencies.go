package processor

import (
	"log/slog"

	"github.com/c360/vizflow/metric"
	"github.com/c360/vizflow/pkg/worker"
)

// Dispatcher runs functions on the evaluation goroutine. Asynchronous work
// started by a processor hands its results back through a Dispatcher before
// touching ports or properties.
type Dispatcher interface {
	Dispatch(fn func()) error
}

// Dependencies provides the collaborators a processor may need. It is passed
// to factories instead of reaching for package level state.
type Dependencies struct {
	Logger          *slog.Logger              // Structured logger (can be nil, defaults to slog.Default())
	MetricsRegistry *metric.MetricsRegistry   // Metrics registry for Prometheus (can be nil)
	Workers         *worker.Pool[worker.Task] // Pool for background computation (can be nil)
	Dispatcher      Dispatcher                // Evaluation goroutine mailbox (can be nil)
}

// GetLogger returns the configured logger or a default logger if none is provided
func (d Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// GetLoggerWithComponent returns a logger configured with component context
func (d Dependencies) GetLoggerWithComponent(componentName string) *slog.Logger {
	return d.GetLogger().With("component", componentName)
}
