package engine

import (
	"context"
	"errors"
	"fmt"

	"attest/internal/alerting"
	"attest/internal/platform/scheduler"
	dErrors "attest/pkg/domain-errors"
	"attest/pkg/platform/sentinel"
	"attest/pkg/requestcontext"
)

func (e *Engine) registerTasks(sch Schedule, m *alerting.Metrics) error {
	tasks := []scheduler.Task{
		{
			Name:     "retention-cleanup",
			Interval: sch.Cleanup,
			Run: func(ctx context.Context) error {
				_, err := e.retention.RunCleanup(ctx)
				return err
			},
		},
	}
	tasks = append(tasks, e.monitor.Tasks(sch.Monitor, sch.Summary)...)
	if e.mirror != nil {
		tasks = append(tasks, scheduler.Task{Name: "records-mirror", Run: e.records.RunMirror})
	}
	for _, sink := range e.sinks {
		fwd := alerting.NewForwarder(e.bus, sink,
			alerting.WithForwarderLogger(e.logger),
			alerting.WithForwarderMetrics(m),
		)
		tasks = append(tasks, scheduler.Task{Name: "forward-" + sink.Name(), Run: fwd.Run})
	}
	for _, t := range tasks {
		if err := e.scheduler.Add(t); err != nil {
			return fmt.Errorf("register task %s: %w", t.Name, err)
		}
	}
	return nil
}

// Start restores mirrored records, then launches background tasks.
// A restore failure is logged; the engine starts empty.
// Start after Stop returns sentinel.ErrInvalidState.
func (e *Engine) Start(ctx context.Context) error {
	if e.stopped.Load() {
		return dErrors.Wrap(sentinel.ErrInvalidState, dErrors.CodeInvalidState, "engine has been stopped")
	}
	if e.mirror != nil {
		e.restore(ctx)
	}
	return e.scheduler.Start(ctx)
}

func (e *Engine) restore(ctx context.Context) {
	since := requestcontext.Now(ctx).Add(-e.restoreWindow)
	recs, err := e.mirror.Recent(ctx, since, 0)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to read mirrored records", "error", err)
		return
	}
	restored, skipped, err := e.records.Restore(ctx, recs)
	if err != nil {
		e.logger.ErrorContext(ctx, "record restore interrupted", "restored", restored, "error", err)
		return
	}
	e.logger.InfoContext(ctx, "records restored from mirror",
		"restored", restored,
		"skipped", skipped,
		"since", since,
	)
}

// Stop halts background tasks, then closes sinks and the bus. The engine
// cannot be restarted after Stop.
func (e *Engine) Stop() error {
	e.stopped.Store(true)
	e.scheduler.Stop()
	var errs []error
	e.closeOnce.Do(func() {
		for _, sink := range e.sinks {
			if err := sink.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close sink %s: %w", sink.Name(), err))
			}
		}
		e.bus.Close()
	})
	return errors.Join(errs...)
}
