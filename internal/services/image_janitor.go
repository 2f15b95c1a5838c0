package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"adminpanel/internal/apperr"
	"adminpanel/internal/storage"
	"adminpanel/pkg/rabbitmq"
)

// CleanupScheduler reschedules a cleanup job after a delay.
// *rabbitmq.Client satisfies it.
type CleanupScheduler interface {
	RetryImageCleanup(ctx context.Context, job rabbitmq.ImageCleanupJob, delay time.Duration) error
}

// CleanupRetry bounds how often and how soon a failed cleanup is retried.
type CleanupRetry struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultCleanupRetry spreads five attempts over roughly seven minutes.
var DefaultCleanupRetry = CleanupRetry{
	MaxAttempts: 5,
	BaseDelay:   30 * time.Second,
	MaxDelay:    10 * time.Minute,
}

// Delay returns the wait before the given attempt: BaseDelay doubled per
// earlier attempt, capped at MaxDelay.
func (r CleanupRetry) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(r.BaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(r.MaxDelay) {
		return r.MaxDelay
	}
	return time.Duration(delay)
}

func (r CleanupRetry) withDefaults() CleanupRetry {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = DefaultCleanupRetry.MaxAttempts
	}
	if r.BaseDelay <= 0 {
		r.BaseDelay = DefaultCleanupRetry.BaseDelay
	}
	if r.MaxDelay < r.BaseDelay {
		r.MaxDelay = max(DefaultCleanupRetry.MaxDelay, r.BaseDelay)
	}
	return r
}

// ImageJanitor deletes images whose best-effort removal failed during a
// product write.
type ImageJanitor struct {
	images    storage.ImageStore
	scheduler CleanupScheduler
	logger    *slog.Logger
	retry     CleanupRetry
}

// NewImageJanitor creates an ImageJanitor. Failed jobs are handed back to
// scheduler with an incremented attempt count and a growing delay. Zero
// fields of retry take their DefaultCleanupRetry values.
func NewImageJanitor(images storage.ImageStore, scheduler CleanupScheduler, logger *slog.Logger, retry CleanupRetry) *ImageJanitor {
	return &ImageJanitor{
		images:    images,
		scheduler: scheduler,
		logger:    logger,
		retry:     retry.withDefaults(),
	}
}

// Handle processes one job. It returns an error only when the job could be
// neither completed nor rescheduled.
func (j *ImageJanitor) Handle(ctx context.Context, job rabbitmq.ImageCleanupJob) error {
	err := j.images.Delete(ctx, job.Image)
	if err == nil || errors.Is(err, apperr.ErrNotFound) {
		j.logger.InfoContext(ctx, "orphaned image removed", slog.String("image", job.Image), slog.Int("attempt", job.Attempt))
		return nil
	}

	next := job
	next.Attempt++
	if next.Attempt >= j.retry.MaxAttempts {
		j.logger.ErrorContext(ctx, "giving up on orphaned image",
			slog.String("image", job.Image), slog.Int("attempts", next.Attempt), slog.Any("error", err))
		return nil
	}

	delay := j.retry.Delay(next.Attempt)
	if qErr := j.scheduler.RetryImageCleanup(ctx, next, delay); qErr != nil {
		return fmt.Errorf("reschedule cleanup of %s: %w", job.Image, errors.Join(err, qErr))
	}
	j.logger.WarnContext(ctx, "image cleanup rescheduled",
		slog.String("image", job.Image), slog.Int("attempt", next.Attempt), slog.Duration("delay", delay), slog.Any("error", err))
	return nil
}
