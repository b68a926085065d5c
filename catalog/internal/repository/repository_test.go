package repository_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Astemirdum/bookshelf-service/catalog/internal/errs"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/model"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/query"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/repository"
	"github.com/Astemirdum/bookshelf-service/catalog/migrations"
	"github.com/Astemirdum/bookshelf-service/pkg/database"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }

// forEachBackend runs fn against a fresh SQLite file and, when TEST_PG_DSN is set, against Postgres.
func forEachBackend(t *testing.T, fn func(t *testing.T, repo repository.Repository)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) {
		cfg := &database.DB{Driver: database.DriverSQLite, Path: filepath.Join(t.TempDir(), "books.db")}
		db, err := database.NewDB(context.Background(), cfg, migrations.MigrationFiles)
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		fn(t, newRepository(t, db, database.DriverSQLite))
	})

	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		return
	}
	t.Run("postgres", func(t *testing.T) {
		db, err := sqlx.Open("pgx", dsn)
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		require.NoError(t, database.Migrate(db, database.DriverPostgres, migrations.MigrationFiles))
		_, err = db.Exec("TRUNCATE books RESTART IDENTITY")
		require.NoError(t, err)
		fn(t, newRepository(t, db, database.DriverPostgres))
	})
}

func newRepository(t *testing.T, db *sqlx.DB, driver database.Driver) repository.Repository {
	t.Helper()
	repo, err := repository.NewRepository(db, driver, zap.NewNop())
	require.NoError(t, err)
	return repo
}

func TestNewRepository_UnknownDriver(t *testing.T) {
	_, err := repository.NewRepository(nil, "mysql", zap.NewNop())
	require.Error(t, err)
}

func TestRepository_CRUD(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo repository.Repository) {
		ctx := context.Background()

		created, err := repo.Insert(ctx, model.BookFields{
			Title:   "Dune",
			Author:  strPtr("Frank Herbert"),
			Rating:  intPtr(5),
			IsOwned: boolPtr(true),
			Status:  model.StatusNotStarted,
		})
		require.NoError(t, err)
		require.Positive(t, created.ID)
		require.Equal(t, "Dune", created.Title)
		require.Equal(t, "Frank Herbert", *created.Author)
		require.Equal(t, 5, *created.Rating)
		require.True(t, *created.IsOwned)
		require.Nil(t, created.IsNonfiction)
		require.Nil(t, created.Pages)
		require.Equal(t, model.StatusNotStarted, created.Status)
		require.False(t, created.UpdatedAt.Before(created.CreatedAt))

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, created.BookFields, got.BookFields)
		require.True(t, created.CreatedAt.Equal(got.CreatedAt))

		updated, err := repo.Update(ctx, created.ID, model.BookFields{
			Title:  "Dune Messiah",
			Status: model.StatusFinished,
			Pages:  intPtr(256),
		})
		require.NoError(t, err)
		require.Equal(t, created.ID, updated.ID)
		require.Equal(t, "Dune Messiah", updated.Title)
		require.Equal(t, model.StatusFinished, updated.Status)
		require.Equal(t, 256, *updated.Pages)
		// every field is overwritten, absent ones included
		require.Nil(t, updated.Author)
		require.Nil(t, updated.Rating)
		require.Nil(t, updated.IsOwned)
		require.True(t, updated.CreatedAt.Equal(created.CreatedAt))
		require.False(t, updated.UpdatedAt.Before(updated.CreatedAt))

		require.NoError(t, repo.Delete(ctx, created.ID))
		_, err = repo.Get(ctx, created.ID)
		require.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestRepository_NotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo repository.Repository) {
		ctx := context.Background()

		_, err := repo.Get(ctx, 999)
		require.ErrorIs(t, err, errs.ErrNotFound)

		_, err = repo.Update(ctx, 999, model.BookFields{Title: "Ghost", Status: model.StatusNotStarted})
		require.ErrorIs(t, err, errs.ErrNotFound)

		require.ErrorIs(t, repo.Delete(ctx, 999), errs.ErrNotFound)
	})
}

func TestRepository_ConstraintViolation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo repository.Repository) {
		ctx := context.Background()

		_, err := repo.Insert(ctx, model.BookFields{Title: "   ", Status: model.StatusNotStarted})
		require.ErrorIs(t, err, errs.ErrValidation)

		_, err = repo.Insert(ctx, model.BookFields{Title: "Bad status", Status: "Lost"})
		require.ErrorIs(t, err, errs.ErrValidation)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		require.Zero(t, count)
	})
}

func TestRepository_IDsNotReused(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo repository.Repository) {
		ctx := context.Background()

		first, err := repo.Insert(ctx, model.BookFields{Title: "One", Status: model.StatusNotStarted})
		require.NoError(t, err)
		second, err := repo.Insert(ctx, model.BookFields{Title: "Two", Status: model.StatusNotStarted})
		require.NoError(t, err)
		require.Greater(t, second.ID, first.ID)

		require.NoError(t, repo.Delete(ctx, second.ID))
		third, err := repo.Insert(ctx, model.BookFields{Title: "Three", Status: model.StatusNotStarted})
		require.NoError(t, err)
		require.Greater(t, third.ID, second.ID)
	})
}

func TestRepository_QueryPagination(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo repository.Repository) {
		ctx := context.Background()

		var want []int64
		for i := 0; i < 5; i++ {
			b, err := repo.Insert(ctx, model.BookFields{Title: "Same", Status: model.StatusNotStarted})
			require.NoError(t, err)
			want = append(want, b.ID)
		}

		var got []int64
		for page := 1; page <= 3; page++ {
			items, total, err := repo.Query(ctx, query.Build(query.Criteria{Page: intPtr(page), PageSize: intPtr(2)}))
			require.NoError(t, err)
			require.Equal(t, 5, total)
			for _, b := range items {
				got = append(got, b.ID)
			}
		}
		require.Equal(t, want, got)

		items, total, err := repo.Query(ctx, query.Build(query.Criteria{Page: intPtr(4), PageSize: intPtr(2)}))
		require.NoError(t, err)
		require.Equal(t, 5, total)
		require.Empty(t, items)

		for _, page := range []int{1<<58 + 1, math.MaxInt} {
			items, total, err = repo.Query(ctx, query.Build(query.Criteria{Page: intPtr(page), PageSize: intPtr(64)}))
			require.NoError(t, err)
			require.Equal(t, 5, total)
			require.Empty(t, items)
		}
	})
}

func TestRepository_QueryFilters(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo repository.Repository) {
		ctx := context.Background()

		_, err := repo.ReplaceAll(ctx, []model.BookFields{
			{Title: "dune", Author: strPtr("Frank Herbert"), Genre: strPtr("Sci-Fi"), Status: model.StatusFinished, PurchaseYear: intPtr(2020)},
			{Title: "Emma", Author: strPtr("Jane Austen"), Genre: strPtr("Classic"), Status: model.StatusReading, PurchaseYear: intPtr(2021)},
			{Title: "Dracula", Author: strPtr("Bram Stoker"), Genre: strPtr("Classic"), Status: model.StatusNotStarted},
			{Title: "1984", Author: strPtr("George Orwell"), Status: model.StatusFinished, PurchaseYear: intPtr(2020)},
			{Title: "100% Wolf", Status: model.StatusDNF},
			{Title: "Éclat", Author: strPtr("Émile Zola"), Status: model.StatusNotStarted},
		})
		require.NoError(t, err)

		titles := func(t *testing.T, c query.Criteria) []string {
			t.Helper()
			items, total, err := repo.Query(ctx, query.Build(c))
			require.NoError(t, err)
			require.Len(t, items, total)
			out := make([]string, 0, len(items))
			for _, b := range items {
				out = append(out, b.Title)
			}
			return out
		}

		tests := []struct {
			name     string
			criteria query.Criteria
			want     []string
		}{
			{name: "search title case-insensitive", criteria: query.Criteria{Search: "DUNE"}, want: []string{"dune"}},
			{name: "search author", criteria: query.Criteria{Search: "austen"}, want: []string{"Emma"}},
			{name: "search non-ascii title", criteria: query.Criteria{Search: "Éclat"}, want: []string{"Éclat"}},
			{name: "search non-ascii author", criteria: query.Criteria{Search: "Émile"}, want: []string{"Éclat"}},
			{name: "search escapes wildcards", criteria: query.Criteria{Search: "100%"}, want: []string{"100% Wolf"}},
			{name: "status", criteria: query.Criteria{Status: "Finished"}, want: []string{"1984", "dune"}},
			{name: "genre", criteria: query.Criteria{Genre: "Classic", Sort: "author"}, want: []string{"Dracula", "Emma"}},
			{name: "purchase year", criteria: query.Criteria{PurchaseYear: intPtr(2020), Sort: "title", Order: "desc"}, want: []string{"dune", "1984"}},
			{name: "initial letter", criteria: query.Criteria{StartsWith: "d"}, want: []string{"Dracula", "dune"}},
			{name: "initial other", criteria: query.Criteria{StartsWith: "#"}, want: []string{"100% Wolf", "1984", "Éclat"}},
			{name: "no match", criteria: query.Criteria{Search: "zzz"}, want: []string{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				require.Equal(t, tt.want, titles(t, tt.criteria))
			})
		}
	})
}

func TestRepository_QuerySortNullsFirst(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo repository.Repository) {
		ctx := context.Background()

		_, err := repo.ReplaceAll(ctx, []model.BookFields{
			{Title: "B", PurchaseYear: intPtr(2019), Status: model.StatusNotStarted},
			{Title: "A", Status: model.StatusNotStarted},
			{Title: "C", PurchaseYear: intPtr(2018), Status: model.StatusNotStarted},
		})
		require.NoError(t, err)

		items, _, err := repo.Query(ctx, query.Build(query.Criteria{Sort: "purchase_year"}))
		require.NoError(t, err)
		require.Equal(t, []string{"A", "C", "B"}, []string{items[0].Title, items[1].Title, items[2].Title})

		items, _, err = repo.Query(ctx, query.Build(query.Criteria{Sort: "purchase_year", Order: "desc"}))
		require.NoError(t, err)
		require.Equal(t, []string{"B", "C", "A"}, []string{items[0].Title, items[1].Title, items[2].Title})
	})
}

func TestRepository_ReplaceAll(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo repository.Repository) {
		ctx := context.Background()

		old, err := repo.Insert(ctx, model.BookFields{Title: "Old", Status: model.StatusNotStarted})
		require.NoError(t, err)

		books := make([]model.BookFields, 450)
		for i := range books {
			books[i] = model.BookFields{Title: "Imported", Status: model.StatusReading}
		}
		n, err := repo.ReplaceAll(ctx, books)
		require.NoError(t, err)
		require.Equal(t, 450, n)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		require.Equal(t, 450, count)

		_, err = repo.Get(ctx, old.ID)
		require.ErrorIs(t, err, errs.ErrNotFound)

		// a failing batch leaves the previous contents in place
		_, err = repo.ReplaceAll(ctx, []model.BookFields{{Title: "ok", Status: model.StatusNotStarted}, {Title: "", Status: model.StatusNotStarted}})
		require.ErrorIs(t, err, errs.ErrValidation)
		count, err = repo.Count(ctx)
		require.NoError(t, err)
		require.Equal(t, 450, count)

		n, err = repo.ReplaceAll(ctx, nil)
		require.NoError(t, err)
		require.Zero(t, n)
		count, err = repo.Count(ctx)
		require.NoError(t, err)
		require.Zero(t, count)
	})
}

func TestRepository_ReplaceAllIfEmpty(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo repository.Repository) {
		ctx := context.Background()
		seed := []model.BookFields{
			{Title: "Dune", Status: model.StatusNotStarted},
			{Title: "Emma", Status: model.StatusNotStarted},
		}

		n, err := repo.ReplaceAllIfEmpty(ctx, seed)
		require.NoError(t, err)
		require.Equal(t, 2, n)

		n, err = repo.ReplaceAllIfEmpty(ctx, seed)
		require.NoError(t, err)
		require.Zero(t, n)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, count)
	})
}

func TestRepository_ReadsDuringReplace(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo repository.Repository) {
		ctx := context.Background()

		before := make([]model.BookFields, 3)
		after := make([]model.BookFields, 500)
		for i := range before {
			before[i] = model.BookFields{Title: "Before", Status: model.StatusNotStarted}
		}
		for i := range after {
			after[i] = model.BookFields{Title: "After", Status: model.StatusFinished}
		}
		_, err := repo.ReplaceAll(ctx, before)
		require.NoError(t, err)

		done := make(chan struct{})
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			defer close(done)
			_, err := repo.ReplaceAll(gctx, after)
			return err
		})
		for i := 0; i < 4; i++ {
			g.Go(func() error {
				for {
					_, total, err := repo.Query(gctx, query.Build(query.Criteria{}))
					if err != nil {
						return err
					}
					if total != len(before) && total != len(after) {
						t.Errorf("observed partial catalog of %d books", total)
					}
					select {
					case <-done:
						return nil
					default:
						time.Sleep(time.Millisecond)
					}
				}
			})
		}
		require.NoError(t, g.Wait())

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		require.Equal(t, len(after), count)
	})
}

func TestRepository_FilterOptions(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo repository.Repository) {
		ctx := context.Background()

		opts, err := repo.FilterOptions(ctx)
		require.NoError(t, err)
		require.Equal(t, model.FilterOptions{
			Statuses: []string{}, Genres: []string{}, Languages: []string{}, PurchaseYears: []int{},
		}, opts)

		_, err = repo.ReplaceAll(ctx, []model.BookFields{
			{Title: "A", Genre: strPtr("Sci-Fi"), Language: strPtr("English"), Status: model.StatusReading, PurchaseYear: intPtr(2021)},
			{Title: "B", Genre: strPtr("Fantasy"), Language: strPtr("English"), Status: model.StatusFinished, PurchaseYear: intPtr(2019)},
			{Title: "C", Genre: strPtr("Sci-Fi"), Status: model.StatusFinished},
		})
		require.NoError(t, err)

		opts, err = repo.FilterOptions(ctx)
		require.NoError(t, err)
		require.Equal(t, model.FilterOptions{
			Statuses:      []string{"Finished", "Reading"},
			Genres:        []string{"Fantasy", "Sci-Fi"},
			Languages:     []string{"English"},
			PurchaseYears: []int{2019, 2021},
		}, opts)
	})
}

func TestRepository_Stats(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo repository.Repository) {
		ctx := context.Background()

		stats, err := repo.Stats(ctx)
		require.NoError(t, err)
		require.Zero(t, stats.Total)
		require.Zero(t, stats.PagesCount)
		require.Equal(t, model.TriTally{}, stats.Owned)

		_, err = repo.ReplaceAll(ctx, []model.BookFields{
			{Title: "A", Genre: strPtr("Sci-Fi"), Status: model.StatusFinished, Pages: intPtr(100), PurchaseYear: intPtr(2020), IsOwned: boolPtr(true)},
			{Title: "B", Genre: strPtr("Sci-Fi"), Status: model.StatusFinished, Pages: intPtr(300), PurchaseYear: intPtr(2020), IsOwned: boolPtr(false)},
			{Title: "C", Genre: strPtr("Drama"), Status: model.StatusReading, PurchaseYear: intPtr(2021), IsNonfiction: boolPtr(true)},
			{Title: "D", Status: model.StatusNotStarted, Pages: intPtr(50)},
		})
		require.NoError(t, err)

		stats, err = repo.Stats(ctx)
		require.NoError(t, err)
		require.Equal(t, 4, stats.Total)
		require.EqualValues(t, 450, stats.PagesSum)
		require.Equal(t, 3, stats.PagesCount)
		require.ElementsMatch(t, []model.Group{
			{Label: "Finished", Value: 2}, {Label: "Reading", Value: 1}, {Label: "Not Started", Value: 1},
		}, stats.ByStatus)
		require.ElementsMatch(t, []model.Group{{Label: "Sci-Fi", Value: 2}, {Label: "Drama", Value: 1}}, stats.ByGenre)
		require.Empty(t, stats.ByAuthor)
		require.ElementsMatch(t, []model.YearTally{
			{Year: 2020, Total: 2, Finished: 2}, {Year: 2021, Total: 1, Finished: 0},
		}, stats.ByYear)
		require.ElementsMatch(t, []model.PagesTally{
			{Status: model.StatusFinished, PagesSum: 400, Count: 2},
			{Status: model.StatusNotStarted, PagesSum: 50, Count: 1},
		}, stats.PagesByStatus)
		require.Equal(t, model.TriTally{True: 1, False: 1, Unknown: 2}, stats.Owned)
		require.Equal(t, model.TriTally{True: 1, False: 0, Unknown: 3}, stats.Nonfiction)
	})
}
