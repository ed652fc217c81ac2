// Package evaluator drives evaluation passes over a network: it orders the
// processors topologically, runs every invalid and ready processor once,
// and records per-processor outcomes. Run hosts the evaluation goroutine:
// it serves coalesced evaluation requests from the network and functions
// dispatched from other goroutines.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/vizflow/errors"
	"github.com/c360/vizflow/health"
	"github.com/c360/vizflow/metric"
	"github.com/c360/vizflow/network"
	"github.com/c360/vizflow/observer"
	"github.com/c360/vizflow/processor"
	"github.com/c360/vizflow/types"
)

// Config holds evaluator settings.
type Config struct {
	MaxPassRate float64 `json:"max_pass_rate" yaml:"max_pass_rate"` // passes per second, 0 disables limiting
	Burst       int     `json:"burst" yaml:"burst"`
	MailboxSize int     `json:"mailbox_size" yaml:"mailbox_size"`
}

// DefaultConfig returns the default evaluator configuration.
func DefaultConfig() Config {
	return Config{MaxPassRate: 60, Burst: 1, MailboxSize: 256}
}

// Dependencies bundles the collaborators of an evaluator.
type Dependencies struct {
	Logger          *slog.Logger            // Structured logger (can be nil, defaults to slog.Default())
	MetricsRegistry *metric.MetricsRegistry // Metrics registry for Prometheus (can be nil)
	Health          *health.Monitor         // Per-processor health (can be nil, a private monitor is created)
	Mailbox         *Mailbox                // Dispatch target of processors (can be nil, a private mailbox is created)
}

// Report summarizes one evaluation pass.
type Report struct {
	Pass      uint64
	Processed []string
	Failed    map[string]error
	Skipped   []string
	Duration  time.Duration
}

// OK reports whether every visited processor succeeded.
func (r Report) OK() bool { return len(r.Failed) == 0 }

// Evaluator runs evaluation passes over one network.
type Evaluator struct {
	net     *network.Network
	cfg     Config
	logger  *slog.Logger
	health  *health.Monitor
	metrics *evalMetrics
	limiter *rate.Limiter

	requests chan struct{}
	mailbox  *Mailbox
	running  atomic.Bool
	passes   atomic.Uint64

	sub     *observer.Subscription
	reports observer.Subject[Report]

	mu   sync.Mutex
	last Report
}

var _ processor.Dispatcher = (*Evaluator)(nil)

// New creates an evaluator for net. It subscribes to the network's
// evaluation requests.
func New(net *network.Network, cfg Config, deps Dependencies) *Evaluator {
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = DefaultConfig().MailboxSize
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	monitor := deps.Health
	if monitor == nil {
		monitor = health.NewMonitor()
	}
	mailbox := deps.Mailbox
	if mailbox == nil {
		mailbox = NewMailbox(cfg.MailboxSize)
	}

	e := &Evaluator{
		net:      net,
		cfg:      cfg,
		logger:   logger.With("component", "evaluator"),
		health:   monitor,
		requests: make(chan struct{}, 1),
		mailbox:  mailbox,
	}
	if cfg.MaxPassRate > 0 {
		burst := max(cfg.Burst, 1)
		e.limiter = rate.NewLimiter(rate.Limit(cfg.MaxPassRate), burst)
	}
	if deps.MetricsRegistry != nil {
		m, err := newEvalMetrics(deps.MetricsRegistry)
		if err != nil {
			e.logger.Warn("Evaluator metrics disabled", "error", err)
		} else {
			e.metrics = m
		}
	}

	e.sub = net.Observe(e.onNetworkEvent)
	return e
}

func (e *Evaluator) onNetworkEvent(ev network.Event) {
	switch ev.Kind {
	case network.EventEvaluateRequest:
		e.Signal()
	case network.EventProcessorRemoved:
		e.health.Remove(ev.Processor.Identifier())
	case network.EventProcessorRenamed:
		e.health.Rename(ev.OldIdentifier, ev.Processor.Identifier())
	}
}

// Signal requests a pass from Run. Requests made before Run picks up the
// previous one are coalesced.
func (e *Evaluator) Signal() {
	select {
	case e.requests <- struct{}{}:
	default:
	}
}

// Health returns the per-processor health monitor.
func (e *Evaluator) Health() *health.Monitor { return e.health }

// LastReport returns the report of the latest pass.
func (e *Evaluator) LastReport() Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// OnReport registers fn to run after each pass made by Run.
func (e *Evaluator) OnReport(fn func(Report)) *observer.Subscription {
	return e.reports.Subscribe(fn)
}

// Close detaches the evaluator from its network.
func (e *Evaluator) Close() {
	e.sub.Unsubscribe()
	e.reports.Close()
}

// Evaluate runs one pass on the calling goroutine, which must be the
// goroutine that owns the network. A connection cycle aborts the pass
// before any processor runs. Recoverable processor failures are recorded in
// the report and the pass continues; consumers of a failed processor are
// skipped because its outports stay invalid. A fatal failure aborts the
// pass and is returned together with the partial report.
func (e *Evaluator) Evaluate(ctx context.Context) (report Report, err error) {
	start := time.Now()
	report = Report{Pass: e.passes.Add(1), Failed: make(map[string]error)}
	if e.metrics != nil {
		e.metrics.passes.Inc()
	}

	defer func() {
		report.Duration = time.Since(start)
		if e.metrics != nil {
			e.metrics.passDuration.Observe(report.Duration.Seconds())
		}
		e.mu.Lock()
		e.last = report
		e.mu.Unlock()
	}()

	order, err := Order(e.net)
	if err != nil {
		if e.metrics != nil {
			e.metrics.cycleErrors.Inc()
		}
		e.logger.Error("Evaluation refused", "pass", report.Pass, "error", err)
		return report, err
	}

	for _, p := range order {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report, errors.WrapTransient(ctxErr, "Evaluator", "Evaluate", "pass cancelled")
		}
		if p.InvalidationLevel() == types.Valid {
			continue
		}
		id := p.Identifier()

		if !p.IsReady() {
			report.Skipped = append(report.Skipped, id)
			e.health.RecordSkip(id, "inputs not ready")
			e.countRun("skipped")
			if h, ok := p.(processor.NotReadyHandler); ok {
				h.NotReady()
			}
			continue
		}

		runStart := time.Now()
		runErr := processor.Run(ctx, p)
		elapsed := time.Since(runStart)
		if e.metrics != nil {
			e.metrics.processDuration.WithLabelValues(p.Info().ClassIdentifier).Observe(elapsed.Seconds())
		}
		e.health.RecordRun(id, runErr, elapsed)

		if runErr == nil {
			report.Processed = append(report.Processed, id)
			e.countRun("processed")
			continue
		}

		report.Failed[id] = runErr
		e.countRun("failed")
		if _, recoverable := errors.AsProcessorError(runErr); !recoverable && errors.IsFatal(runErr) {
			e.logger.Error("Processor failed fatally, aborting pass",
				"pass", report.Pass, "processor", id, "error", runErr)
			return report, errors.Wrap(runErr, "Evaluator", "Evaluate", fmt.Sprintf("process %s", id))
		}
		e.logger.Warn("Processor failed", "pass", report.Pass, "processor", id, "error", runErr)
	}

	e.logger.Debug("Evaluation pass complete", "pass", report.Pass,
		"processed", len(report.Processed), "failed", len(report.Failed), "skipped", len(report.Skipped))
	return report, nil
}

func (e *Evaluator) countRun(status string) {
	if e.metrics != nil {
		e.metrics.runs.WithLabelValues(status).Inc()
	}
}

// Run owns the network until ctx is cancelled. It evaluates once at start,
// then on every coalesced request, and runs dispatched functions between
// passes. Connection cycles and processor failures are logged; the loop
// keeps serving so that later edits can repair the network.
func (e *Evaluator) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.WrapInvalid(fmt.Errorf("evaluator already running"), "Evaluator", "Run", "start check")
	}
	defer e.mailbox.Close()

	e.Signal()
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-e.mailbox.ch:
			fn()
		case <-e.requests:
			if e.limiter != nil {
				if err := e.limiter.Wait(ctx); err != nil {
					return nil
				}
			}
			report, err := e.Evaluate(ctx)
			if err != nil && ctx.Err() != nil {
				return nil
			}
			e.reports.Notify(report)
		}
	}
}

// Mailbox returns the mailbox drained by Run.
func (e *Evaluator) Mailbox() *Mailbox { return e.mailbox }

// Dispatch queues fn for the evaluation goroutine.
func (e *Evaluator) Dispatch(fn func()) error {
	return e.mailbox.Dispatch(fn)
}

// Do runs fn on the evaluation goroutine and waits for its result.
func (e *Evaluator) Do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if err := e.Dispatch(func() { done <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.mailbox.closed:
		return errors.WrapTransient(errors.ErrShuttingDown, "Evaluator", "Do", "mailbox closed")
	}
}
