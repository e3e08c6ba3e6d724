// Package worker runs the background loops of a fintrack instance.
package worker

import (
	"context"
	"errors"

	"fintrack/internal/amqp"
	"fintrack/internal/log"
)

// Applier evicts cached collections. *store.Store implements it.
type Applier interface {
	Apply(scope string, targets []string)
	InstanceID() string
}

type Consumer interface {
	ConsumeInvalidations(ctx context.Context, handler func(context.Context, *amqp.InvalidationMessage) error) error
}

// InvalidationWorker applies invalidations published by other instances to
// the local store.
type InvalidationWorker struct {
	store    Applier
	consumer Consumer
	logger   *log.Logger
}

func NewInvalidationWorker(store Applier, consumer Consumer, logger *log.Logger) *InvalidationWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &InvalidationWorker{
		store:    store,
		consumer: consumer,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleInvalidation applies msg unless this instance published it, in
// which case the eviction already happened.
func (w *InvalidationWorker) HandleInvalidation(ctx context.Context, msg *amqp.InvalidationMessage) error {
	if msg.Origin != "" && msg.Origin == w.store.InstanceID() {
		return nil
	}
	w.store.Apply(msg.Scope, msg.Targets)
	w.logger.DebugContext(ctx, "Applied remote invalidation",
		log.FieldOperation, log.OpInvalidate,
		"origin", msg.Origin,
		"targets", msg.Targets)
	return nil
}

// Run consumes until ctx is cancelled. Cancellation is not an error.
func (w *InvalidationWorker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Invalidation worker started")
	err := w.consumer.ConsumeInvalidations(ctx, w.HandleInvalidation)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
