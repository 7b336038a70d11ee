package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"product-catalog/internal/database"
	"product-catalog/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL testcontainer with the schema migrated.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, database.Migrate(connStr, zerolog.Nop()))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// repoFactory returns an empty repository for one subtest.
type repoFactory func(t *testing.T) ProductRepository

func TestMemoryProductRepository(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T) ProductRepository {
		return NewMemoryProductRepository(zerolog.Nop())
	})
}

func TestPostgresProductRepository(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	runRepositoryContract(t, func(t *testing.T) ProductRepository {
		_, err := pool.Exec(context.Background(), `TRUNCATE products RESTART IDENTITY`)
		require.NoError(t, err)
		return NewProductRepository(pool, zerolog.Nop())
	})
}

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newProduct(title string, price int64, updatedOffset time.Duration) *model.Product {
	return &model.Product{
		Title:       title,
		Description: title + " description",
		Price:       price,
		CreatedAt:   baseTime,
		UpdatedAt:   baseTime.Add(updatedOffset),
	}
}

func mustSave(t *testing.T, repo ProductRepository, p *model.Product) *model.Product {
	t.Helper()
	saved, err := repo.Save(context.Background(), p)
	require.NoError(t, err)
	return saved
}

func titles(products []model.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.Title
	}
	return out
}

func runRepositoryContract(t *testing.T, newRepo repoFactory) {
	ctx := context.Background()

	t.Run("Save assigns id and keeps fields", func(t *testing.T) {
		repo := newRepo(t)

		saved := mustSave(t, repo, newProduct("shoes", 3000, 0))

		assert.Equal(t, int64(1), saved.ID)
		assert.Equal(t, "shoes", saved.Title)
		assert.Equal(t, int64(3000), saved.Price)
		assert.Nil(t, saved.ImagePath)
		assert.True(t, baseTime.Equal(saved.CreatedAt))

		found, err := repo.FindByID(ctx, saved.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, saved.Title, found.Title)
		assert.Equal(t, saved.Description, found.Description)
	})

	t.Run("FindByID returns nil for unknown id", func(t *testing.T) {
		repo := newRepo(t)

		found, err := repo.FindByID(ctx, 42)
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("Save rejects duplicate title on insert", func(t *testing.T) {
		repo := newRepo(t)
		mustSave(t, repo, newProduct("shoes", 3000, 0))

		_, err := repo.Save(ctx, newProduct("shoes", 1, 0))

		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrConflict))
	})

	t.Run("Title uniqueness is case-sensitive", func(t *testing.T) {
		repo := newRepo(t)
		mustSave(t, repo, newProduct("shoes", 3000, 0))

		_, err := repo.Save(ctx, newProduct("Shoes", 1, 0))
		require.NoError(t, err)
	})

	t.Run("Save updates existing record", func(t *testing.T) {
		repo := newRepo(t)
		saved := mustSave(t, repo, newProduct("shoes", 3000, 0))

		image := "abc.png"
		saved.Title = "boots"
		saved.Price = 3500
		saved.ImagePath = &image
		saved.UpdatedAt = baseTime.Add(time.Hour)

		updated := mustSave(t, repo, saved)

		assert.Equal(t, saved.ID, updated.ID)
		assert.Equal(t, "boots", updated.Title)
		assert.Equal(t, int64(3500), updated.Price)
		require.NotNil(t, updated.ImagePath)
		assert.Equal(t, "abc.png", *updated.ImagePath)
		assert.True(t, baseTime.Equal(updated.CreatedAt))
		assert.True(t, baseTime.Add(time.Hour).Equal(updated.UpdatedAt))
	})

	t.Run("Save rejects update to another product's title", func(t *testing.T) {
		repo := newRepo(t)
		mustSave(t, repo, newProduct("shoes", 3000, 0))
		boots := mustSave(t, repo, newProduct("boots", 3500, 0))

		boots.Title = "shoes"
		_, err := repo.Save(ctx, boots)

		assert.True(t, errors.Is(err, model.ErrConflict))
	})

	t.Run("Save of unknown id is not found", func(t *testing.T) {
		repo := newRepo(t)
		ghost := newProduct("ghost", 1, 0)
		ghost.ID = 99

		_, err := repo.Save(ctx, ghost)

		assert.True(t, errors.Is(err, model.ErrNotFound))
	})

	t.Run("FindByTitle and FindByTitleExcludingID", func(t *testing.T) {
		repo := newRepo(t)
		shoes := mustSave(t, repo, newProduct("shoes", 3000, 0))

		found, err := repo.FindByTitle(ctx, "shoes")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, shoes.ID, found.ID)

		found, err = repo.FindByTitle(ctx, "sho")
		require.NoError(t, err)
		assert.Nil(t, found, "title lookup is exact")

		found, err = repo.FindByTitleExcludingID(ctx, "shoes", shoes.ID)
		require.NoError(t, err)
		assert.Nil(t, found, "own title is excluded")

		found, err = repo.FindByTitleExcludingID(ctx, "shoes", shoes.ID+1)
		require.NoError(t, err)
		assert.NotNil(t, found)
	})

	t.Run("FindAll orders by updated desc", func(t *testing.T) {
		repo := newRepo(t)

		all, err := repo.FindAllOrderByUpdatedDesc(ctx)
		require.NoError(t, err)
		assert.NotNil(t, all)
		assert.Empty(t, all)

		mustSave(t, repo, newProduct("old", 1, time.Minute))
		mustSave(t, repo, newProduct("newest", 1, 3*time.Minute))
		mustSave(t, repo, newProduct("middle", 1, 2*time.Minute))

		all, err = repo.FindAllOrderByUpdatedDesc(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"newest", "middle", "old"}, titles(all))
	})

	t.Run("Search is case-insensitive substring match", func(t *testing.T) {
		repo := newRepo(t)
		mustSave(t, repo, newProduct("Running Shoes", 1, time.Minute))
		mustSave(t, repo, newProduct("shoe horn", 1, 2*time.Minute))
		mustSave(t, repo, newProduct("boots", 1, 3*time.Minute))
		mustSave(t, repo, newProduct("100% wool", 1, 4*time.Minute))

		found, err := repo.SearchByTitleOrderByUpdatedDesc(ctx, "SHOE")
		require.NoError(t, err)
		assert.Equal(t, []string{"shoe horn", "Running Shoes"}, titles(found))

		found, err = repo.SearchByTitleOrderByUpdatedDesc(ctx, "%")
		require.NoError(t, err)
		assert.Equal(t, []string{"100% wool"}, titles(found), "wildcards match literally")

		found, err = repo.SearchByTitleOrderByUpdatedDesc(ctx, "sandals")
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("Delete removes record", func(t *testing.T) {
		repo := newRepo(t)
		saved := mustSave(t, repo, newProduct("shoes", 3000, 0))

		require.NoError(t, repo.Delete(ctx, saved.ID))

		found, err := repo.FindByID(ctx, saved.ID)
		require.NoError(t, err)
		assert.Nil(t, found)

		err = repo.Delete(ctx, saved.ID)
		assert.True(t, errors.Is(err, model.ErrNotFound))
	})

	t.Run("Concurrent inserts of one title yield a single winner", func(t *testing.T) {
		repo := newRepo(t)

		const writers = 8
		var wg sync.WaitGroup
		errs := make([]error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = repo.Save(ctx, newProduct("limited", 1, 0))
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.True(t, errors.Is(err, model.ErrConflict))
		}
		assert.Equal(t, 1, succeeded)
	})
}

func TestProductRepository_ErrorPaths(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewProductRepository(pool, zerolog.Nop())
	ctx := context.Background()

	// Close the pool to simulate database errors
	pool.Close()

	t.Run("FindByID with closed pool", func(t *testing.T) {
		product, err := repo.FindByID(ctx, 1)
		require.Error(t, err)
		assert.Nil(t, product)
	})

	t.Run("FindAll with closed pool", func(t *testing.T) {
		products, err := repo.FindAllOrderByUpdatedDesc(ctx)
		require.Error(t, err)
		assert.Nil(t, products)
	})

	t.Run("Save with closed pool is unexpected", func(t *testing.T) {
		_, err := repo.Save(ctx, newProduct("shoes", 1, 0))
		require.Error(t, err)
		assert.Equal(t, model.KindUnexpected, model.KindOf(err))
	})

	t.Run("Delete with closed pool", func(t *testing.T) {
		err := repo.Delete(ctx, 1)
		require.Error(t, err)
		assert.False(t, errors.Is(err, model.ErrNotFound))
	})
}
