package repositories_test

import (
	"context"
	"testing"
	"time"

	"adminpanel/internal/models"
	"adminpanel/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.User{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func newProduct(name string, createdAt time.Time) *models.Product {
	id, _ := uuid.NewV7()
	return &models.Product{
		ID:          id.String(),
		Name:        name,
		Description: name + " description",
		Price:       decimal.RequireFromString("19.99"),
		Category:    models.CategoryElectronics,
		Stock:       5,
		Image:       uuid.NewString() + ".png",
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

// Both implementations must behave the same way.
func repositoryImplementations(t *testing.T) map[string]repositories.ProductRepository {
	return map[string]repositories.ProductRepository{
		"gorm":   repositories.NewGORMProductRepository(setupTestDB(t)),
		"memory": repositories.NewMemoryProductRepository(),
	}
}

func TestProductRepository_CRUD(t *testing.T) {
	for name, repo := range repositoryImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

			p := newProduct("Mouse", base)
			require.NoError(t, repo.Create(ctx, p))

			got, err := repo.GetByID(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, "Mouse", got.Name)
			assert.True(t, p.Price.Equal(got.Price))

			got.Stock = 0
			got.Featured = true
			got.UpdatedAt = base.Add(time.Minute)
			require.NoError(t, repo.Update(ctx, got))

			got, err = repo.GetByID(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, 0, got.Stock, "zero values are written")
			assert.True(t, got.Featured)
			assert.True(t, got.CreatedAt.Equal(base))

			require.NoError(t, repo.Delete(ctx, p.ID))
			_, err = repo.GetByID(ctx, p.ID)
			assert.ErrorIs(t, err, repositories.ErrProductNotFound)
		})
	}
}

func TestProductRepository_UpdateMissingDoesNotInsert(t *testing.T) {
	for name, repo := range repositoryImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := newProduct("Ghost", time.Now().UTC())

			err := repo.Update(ctx, p)
			assert.ErrorIs(t, err, repositories.ErrProductNotFound)

			all, err := repo.GetAll(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)

			assert.ErrorIs(t, repo.Delete(ctx, p.ID), repositories.ErrProductNotFound)
		})
	}
}

func TestProductRepository_GetAllNewestFirst(t *testing.T) {
	for name, repo := range repositoryImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

			older := newProduct("Older", base)
			newer := newProduct("Newer", base.Add(time.Hour))
			require.NoError(t, repo.Create(ctx, older))
			require.NoError(t, repo.Create(ctx, newer))

			all, err := repo.GetAll(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, "Newer", all[0].Name)
			assert.Equal(t, "Older", all[1].Name)
		})
	}
}

func TestProductRepository_GetAllEmpty(t *testing.T) {
	for name, repo := range repositoryImplementations(t) {
		t.Run(name, func(t *testing.T) {
			all, err := repo.GetAll(context.Background())
			require.NoError(t, err)
			assert.NotNil(t, all)
			assert.Empty(t, all)
		})
	}
}

func TestGORMProductRepository_PreloadsCreator(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	users := repositories.NewGORMUserRepository(db)
	repo := repositories.NewGORMProductRepository(db)

	admin := &models.User{ID: uuid.NewString(), Name: "Ada Admin", Email: "ada@example.com", Password: "hash", Role: models.RoleAdmin}
	require.NoError(t, users.Create(ctx, admin))

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	owned := newProduct("Mouse", base.Add(time.Hour))
	owned.CreatedBy = &admin.ID
	orphan := newProduct("Cable", base)
	gone := "deleted-user"
	orphan.CreatedBy = &gone
	require.NoError(t, repo.Create(ctx, owned))
	require.NoError(t, repo.Create(ctx, orphan))

	got, err := repo.GetByID(ctx, owned.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Creator)
	assert.Equal(t, models.Creator{ID: admin.ID, Name: "Ada Admin", Email: "ada@example.com"}, *got.Creator)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.NotNil(t, all[0].Creator)
	assert.Equal(t, "ada@example.com", all[0].Creator.Email)
	assert.Nil(t, all[1].Creator, "creator account no longer exists")
	assert.Equal(t, "deleted-user", *all[1].CreatedBy)

	// Writing a product never touches its creator's account.
	got.Creator.Name = "Renamed"
	got.Stock = 1
	require.NoError(t, repo.Update(ctx, got))
	stored, err := users.GetByID(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Admin", stored.Name)
}
