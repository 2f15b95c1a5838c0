package services_test

import (
	"context"
	"testing"
	"time"

	"adminpanel/internal/logger"
	"adminpanel/internal/services"
	"adminpanel/internal/storage"
	"adminpanel/pkg/rabbitmq"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRetry = services.CleanupRetry{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: time.Minute}

func TestImageJanitor_RemovesImage(t *testing.T) {
	images := &flakyImageStore{MemoryImageStore: storage.NewMemoryImageStore(storage.Policy{MaxBytes: 1 << 20})}
	ref, err := images.Save(context.Background(), *pngUpload(t))
	require.NoError(t, err)
	scheduler := &recordingNotifier{}
	janitor := services.NewImageJanitor(images, scheduler, logger.Discard(), testRetry)

	require.NoError(t, janitor.Handle(context.Background(), rabbitmq.ImageCleanupJob{Image: ref}))
	assert.Zero(t, images.Len())

	// Already gone is success.
	assert.NoError(t, janitor.Handle(context.Background(), rabbitmq.ImageCleanupJob{Image: ref}))
	assert.Empty(t, scheduler.retried)
}

func TestImageJanitor_BacksOffThenGivesUp(t *testing.T) {
	images := &flakyImageStore{MemoryImageStore: storage.NewMemoryImageStore(storage.Policy{MaxBytes: 1 << 20}), failDelete: true}
	scheduler := &recordingNotifier{}
	janitor := services.NewImageJanitor(images, scheduler, logger.Discard(), testRetry)

	require.NoError(t, janitor.Handle(context.Background(), rabbitmq.ImageCleanupJob{Image: "a.png"}))
	require.Len(t, scheduler.retried, 1)
	assert.Equal(t, 1, scheduler.retried[0].Attempt)

	require.NoError(t, janitor.Handle(context.Background(), scheduler.retried[0]))
	require.Len(t, scheduler.retried, 2)
	assert.Equal(t, 2, scheduler.retried[1].Attempt)

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, scheduler.delays, "each retry waits longer")

	require.NoError(t, janitor.Handle(context.Background(), scheduler.retried[1]))
	assert.Len(t, scheduler.retried, 2, "dropped after the last attempt")
}

func TestImageJanitor_FailsWhenRescheduleFails(t *testing.T) {
	images := &flakyImageStore{MemoryImageStore: storage.NewMemoryImageStore(storage.Policy{MaxBytes: 1 << 20}), failDelete: true}
	janitor := services.NewImageJanitor(images, &recordingNotifier{failJobs: true}, logger.Discard(), testRetry)

	err := janitor.Handle(context.Background(), rabbitmq.ImageCleanupJob{Image: "a.png"})

	assert.Error(t, err)
}

func TestCleanupRetry_Delay(t *testing.T) {
	retry := services.CleanupRetry{MaxAttempts: 10, BaseDelay: 30 * time.Second, MaxDelay: 5 * time.Minute}

	assert.Equal(t, 30*time.Second, retry.Delay(0))
	assert.Equal(t, 30*time.Second, retry.Delay(1))
	assert.Equal(t, time.Minute, retry.Delay(2))
	assert.Equal(t, 4*time.Minute, retry.Delay(4))
	assert.Equal(t, 5*time.Minute, retry.Delay(5), "capped")
	assert.Equal(t, 5*time.Minute, retry.Delay(60))
}

func TestDefaultCleanupRetryOutlastsShortOutages(t *testing.T) {
	var total time.Duration
	for attempt := 1; attempt < services.DefaultCleanupRetry.MaxAttempts; attempt++ {
		total += services.DefaultCleanupRetry.Delay(attempt)
	}
	assert.GreaterOrEqual(t, total, 5*time.Minute)
}

func TestNewImageJanitor_FillsZeroRetryFields(t *testing.T) {
	images := &flakyImageStore{MemoryImageStore: storage.NewMemoryImageStore(storage.Policy{MaxBytes: 1 << 20}), failDelete: true}
	scheduler := &recordingNotifier{}
	janitor := services.NewImageJanitor(images, scheduler, logger.Discard(), services.CleanupRetry{})

	require.NoError(t, janitor.Handle(context.Background(), rabbitmq.ImageCleanupJob{Image: "a.png"}))

	require.Len(t, scheduler.delays, 1)
	assert.Equal(t, services.DefaultCleanupRetry.BaseDelay, scheduler.delays[0])
}
