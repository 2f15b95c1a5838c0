package services_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"adminpanel/internal/models"
	"adminpanel/internal/storage"
	"adminpanel/pkg/rabbitmq"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	admin    = &models.Principal{UserID: "admin-1", Email: "admin@example.com", Role: models.RoleAdmin}
	customer = &models.Principal{UserID: "user-1", Email: "user@example.com", Role: models.RoleUser}
)

func pngUpload(t *testing.T) *storage.Upload {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{B: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &storage.Upload{Filename: "mouse.png", ContentType: "image/png", Reader: &buf}
}

func ptr[T any](v T) *T { return &v }

// flakyImageStore wraps a MemoryImageStore and can fail deletes.
type flakyImageStore struct {
	*storage.MemoryImageStore
	failDelete bool
}

func (s *flakyImageStore) Delete(ctx context.Context, ref string) error {
	if s.failDelete {
		return errors.New("disk unavailable")
	}
	return s.MemoryImageStore.Delete(ctx, ref)
}

// recordingNotifier keeps everything published to it.
type recordingNotifier struct {
	mu        sync.Mutex
	events    []models.ProductEvent
	jobs      []rabbitmq.ImageCleanupJob
	retried   []rabbitmq.ImageCleanupJob
	delays    []time.Duration
	failJobs  bool
	failEvent bool
}

func (n *recordingNotifier) PublishProductEvent(_ context.Context, event any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failEvent {
		return errors.New("broker down")
	}
	n.events = append(n.events, event.(models.ProductEvent))
	return nil
}

func (n *recordingNotifier) PublishImageCleanup(_ context.Context, job rabbitmq.ImageCleanupJob) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failJobs {
		return errors.New("broker down")
	}
	n.jobs = append(n.jobs, job)
	return nil
}

func (n *recordingNotifier) RetryImageCleanup(_ context.Context, job rabbitmq.ImageCleanupJob, delay time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failJobs {
		return errors.New("broker down")
	}
	n.retried = append(n.retried, job)
	n.delays = append(n.delays, delay)
	return nil
}

func (n *recordingNotifier) eventTypes() []models.ProductEventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	types := make([]models.ProductEventType, 0, len(n.events))
	for _, e := range n.events {
		types = append(types, e.Type)
	}
	return types
}

// MockProductRepository is a mock implementation of repositories.ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) Create(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) Update(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func bytesReader(s string) *bytes.Reader {
	return bytes.NewReader([]byte(s))
}
