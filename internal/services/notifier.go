package services

import (
	"context"

	"adminpanel/pkg/rabbitmq"
)

// Notifier publishes product events and image cleanup jobs.
// *rabbitmq.Client satisfies it.
type Notifier interface {
	PublishProductEvent(ctx context.Context, event any) error
	PublishImageCleanup(ctx context.Context, job rabbitmq.ImageCleanupJob) error
}

// NopNotifier drops everything. Used when no broker is configured.
type NopNotifier struct{}

func (NopNotifier) PublishProductEvent(context.Context, any) error { return nil }

func (NopNotifier) PublishImageCleanup(context.Context, rabbitmq.ImageCleanupJob) error { return nil }
