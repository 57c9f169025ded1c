package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/pkg/events"
	"github.com/noah-isme/course-enrollment-api/pkg/jobs"
)

type eventPublisher interface {
	Publish(ctx context.Context, msg events.Message) error
}

// EventDispatcher hands lifecycle events to a background queue that
// publishes them. Dispatch never fails the caller.
type EventDispatcher struct {
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewEventDispatcher wires a publishing queue. Call Start before dispatching.
func NewEventDispatcher(publisher eventPublisher, metrics *MetricsService, cfg jobs.QueueConfig) *EventDispatcher {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	d := &EventDispatcher{metrics: metrics, logger: cfg.Logger}
	d.queue = jobs.NewQueue("enrollment-events", func(ctx context.Context, job jobs.Job) error {
		evt, ok := job.Payload.(models.EnrollmentEvent)
		if !ok {
			d.logger.Error("unexpected event payload", zap.String("job_id", job.ID))
			return nil
		}
		err := publisher.Publish(ctx, events.Message{
			ID:         evt.ID,
			Type:       string(evt.Type),
			OccurredAt: evt.OccurredAt,
			Payload:    evt,
		})
		if err != nil {
			d.metrics.RecordEvent("failed")
			return err
		}
		d.metrics.RecordEvent("published")
		return nil
	}, cfg)
	return d
}

// Start launches the publishing workers.
func (d *EventDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop flushes buffered events and stops the workers.
func (d *EventDispatcher) Stop() {
	d.queue.Stop()
}

// Dispatch queues evt for publishing.
func (d *EventDispatcher) Dispatch(_ context.Context, evt models.EnrollmentEvent) {
	if d == nil {
		return
	}
	if err := d.queue.Enqueue(jobs.Job{ID: evt.ID, Type: string(evt.Type), Payload: evt}); err != nil {
		d.metrics.RecordEvent("dropped")
		d.logger.Warn("lifecycle event dropped", zap.String("event_id", evt.ID), zap.String("type", string(evt.Type)), zap.Error(err))
		return
	}
	d.metrics.RecordEvent("queued")
}
