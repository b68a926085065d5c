package repository

import (
	"context"
	"database/sql"
	"slices"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Astemirdum/bookshelf-service/catalog/internal/errs"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/model"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/query"
	"github.com/Astemirdum/bookshelf-service/pkg/database"
)

type Repository interface {
	Insert(ctx context.Context, fields model.BookFields) (model.Book, error)
	Update(ctx context.Context, id int64, fields model.BookFields) (model.Book, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (model.Book, error)
	Query(ctx context.Context, q query.Query) ([]model.Book, int, error)
	ReplaceAll(ctx context.Context, books []model.BookFields) (int, error)
	ReplaceAllIfEmpty(ctx context.Context, books []model.BookFields) (int, error)
	Count(ctx context.Context) (int, error)
	FilterOptions(ctx context.Context) (model.FilterOptions, error)
	Stats(ctx context.Context) (model.CatalogStats, error)
}

type dialect struct {
	placeholder sq.PlaceholderFormat
	readTx      *sql.TxOptions
	lockTable   string
	greatest    string
	like        string
}

var dialects = map[database.Driver]dialect{
	database.DriverPostgres: {
		placeholder: sq.Dollar,
		readTx:      &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true},
		lockTable:   "LOCK TABLE " + booksTableName + " IN EXCLUSIVE MODE",
		greatest:    "GREATEST",
		like:        query.ILike,
	},
	database.DriverSQLite: {
		placeholder: sq.Question,
		greatest:    "MAX",
		like:        query.Like,
	},
}

type repository struct {
	db      *sqlx.DB
	qb      sq.StatementBuilderType
	dialect dialect
	// mu serialises writers of this process so that a replace never interleaves with an insert or update.
	mu  sync.Mutex
	now func() time.Time
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, driver database.Driver, log *zap.Logger) (*repository, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, errors.Errorf("unsupported driver %q", driver)
	}
	return &repository{
		db:      db,
		qb:      sq.StatementBuilder.PlaceholderFormat(d.placeholder),
		dialect: d,
		now:     time.Now,
		log:     log.Named("repo"),
	}, nil
}

const (
	booksTableName = `books`
	insertBatch    = 200
)

var fieldColumns = []string{
	"title", "author", "series_name", "series_number", "is_series", "pages",
	"language", "genre", "subgenre", "status", "is_owned", "is_nonfiction",
	"purchase_year", "purchase_location", "publisher", "format", "source",
	"rating", "notes", "date_added", "date_started", "date_finished",
}

var (
	insertColumns = append(slices.Clone(fieldColumns), "created_at", "updated_at")
	bookColumns   = append([]string{"id"}, insertColumns...)
)

func fieldValues(f model.BookFields) []interface{} {
	return []interface{}{
		f.Title, f.Author, f.SeriesName, f.SeriesNumber, f.IsSeries, f.Pages,
		f.Language, f.Genre, f.Subgenre, string(f.Status), f.IsOwned, f.IsNonfiction,
		f.PurchaseYear, f.PurchaseLocation, f.Publisher, f.Format, f.Source,
		f.Rating, f.Notes, f.DateAdded, f.DateStarted, f.DateFinished,
	}
}

func (r *repository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

// write runs fn in a transaction while holding the writer lock.
func (r *repository) write(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.Error("rollback", zap.Error(rbErr))
		}
		return mapConstraintErr(err)
	}
	return mapConstraintErr(errors.Wrap(tx.Commit(), "commit"))
}

// read runs fn in one snapshot.
func (r *repository) read(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, r.dialect.readTx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback() //nolint:errcheck
	if err := fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}

func mapConstraintErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation {
		return errors.Wrap(errs.ErrValidation, pgErr.ConstraintName)
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && isCheckViolation(liteErr) {
		return errors.Wrap(errs.ErrValidation, liteErr.Error())
	}
	return err
}

func isCheckViolation(e *sqlite.Error) bool {
	code := e.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_CHECK ||
		(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(e.Error(), "CHECK constraint"))
}

func (r *repository) Insert(ctx context.Context, fields model.BookFields) (model.Book, error) {
	now := r.timestamp()
	q, args, err := r.qb.Insert(booksTableName).
		Columns(insertColumns...).
		Values(append(fieldValues(fields), now, now)...).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	var book model.Book
	err = r.write(ctx, func(tx *sqlx.Tx) error {
		var id int64
		if err := tx.QueryRowxContext(ctx, q, args...).Scan(&id); err != nil {
			r.log.Error("Insert", zap.String("q", q), zap.Error(err))
			return err
		}
		book, err = r.get(ctx, tx, id)
		return err
	})
	return book, err
}

// Update overwrites every field column; absent values become NULL.
func (r *repository) Update(ctx context.Context, id int64, fields model.BookFields) (model.Book, error) {
	set := make(map[string]interface{}, len(fieldColumns)+1)
	for i, v := range fieldValues(fields) {
		set[fieldColumns[i]] = v
	}
	set["updated_at"] = sq.Expr(r.dialect.greatest+"(created_at, ?)", r.timestamp())

	q, args, err := r.qb.Update(booksTableName).
		SetMap(set).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	var book model.Book
	err = r.write(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			r.log.Error("Update", zap.String("q", q), zap.Int64("id", id), zap.Error(err))
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return errs.ErrNotFound
		}
		book, err = r.get(ctx, tx, id)
		return err
	})
	return book, err
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	q, args, err := r.qb.Delete(booksTableName).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	return r.write(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errs.ErrNotFound
		}
		return nil
	})
}

func (r *repository) Get(ctx context.Context, id int64) (model.Book, error) {
	return r.get(ctx, r.db, id)
}

func (r *repository) get(ctx context.Context, db sqlx.QueryerContext, id int64) (model.Book, error) {
	q, args, err := r.qb.Select(bookColumns...).
		From(booksTableName).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	var book model.Book
	if err := sqlx.GetContext(ctx, db, &book, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.ErrNotFound
		}
		r.log.Error("Get", zap.String("q", q), zap.Any("args", args), zap.Error(err))
		return model.Book{}, err
	}
	return book, nil
}

// Query returns one page of matching books and the number of books matching the filter.
// Both come from the same snapshot.
func (r *repository) Query(ctx context.Context, q query.Query) ([]model.Book, int, error) {
	countQ := r.qb.Select("COUNT(*)").From(booksTableName)
	itemsQ := r.qb.Select(bookColumns...).
		From(booksTableName).
		OrderBy(q.OrderBy()...).
		Limit(q.Limit()).
		Offset(q.Offset())
	if where := q.Filter.Where(r.dialect.like); len(where) > 0 {
		countQ = countQ.Where(where)
		itemsQ = itemsQ.Where(where)
	}

	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return nil, 0, err
	}
	itemsSQL, itemsArgs, err := itemsQ.ToSql()
	if err != nil {
		return nil, 0, err
	}
	r.log.Debug("Query", zap.String("query", itemsSQL), zap.Any("args", itemsArgs))

	var (
		total int
		books = make([]model.Book, 0, q.PageSize)
	)
	err = r.read(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
			return errors.Wrap(err, "count")
		}
		if total == 0 {
			return nil
		}
		return errors.Wrap(tx.SelectContext(ctx, &books, itemsSQL, itemsArgs...), "select")
	})
	if err != nil {
		r.log.Error("Query", zap.String("query", itemsSQL), zap.Any("args", itemsArgs), zap.Error(err))
		return nil, 0, err
	}
	return books, total, nil
}

// ReplaceAll deletes every book and inserts books in one transaction.
func (r *repository) ReplaceAll(ctx context.Context, books []model.BookFields) (int, error) {
	return r.replace(ctx, books, false)
}

// ReplaceAllIfEmpty behaves like ReplaceAll but inserts nothing when the catalog already has books.
func (r *repository) ReplaceAllIfEmpty(ctx context.Context, books []model.BookFields) (int, error) {
	return r.replace(ctx, books, true)
}

func (r *repository) replace(ctx context.Context, books []model.BookFields, onlyIfEmpty bool) (int, error) {
	inserted := 0
	err := r.write(ctx, func(tx *sqlx.Tx) error {
		if r.dialect.lockTable != "" {
			if _, err := tx.ExecContext(ctx, r.dialect.lockTable); err != nil {
				return errors.Wrap(err, "lock table")
			}
		}
		if onlyIfEmpty {
			var count int
			if err := tx.GetContext(ctx, &count, "SELECT COUNT(*) FROM "+booksTableName); err != nil {
				return errors.Wrap(err, "count")
			}
			if count > 0 {
				return nil
			}
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+booksTableName); err != nil {
			return errors.Wrap(err, "delete")
		}

		now := r.timestamp()
		for chunk := range slices.Chunk(books, insertBatch) {
			ins := r.qb.Insert(booksTableName).Columns(insertColumns...)
			for _, b := range chunk {
				ins = ins.Values(append(fieldValues(b), now, now)...)
			}
			q, args, err := ins.ToSql()
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return errors.Wrap(err, "insert batch")
			}
			inserted += len(chunk)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *repository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM "+booksTableName); err != nil {
		return 0, err
	}
	return count, nil
}

func presentText(column string) sq.And {
	return sq.And{sq.NotEq{column: nil}, sq.NotEq{column: ""}}
}

// FilterOptions lists the distinct present values of the filterable columns, ascending.
func (r *repository) FilterOptions(ctx context.Context) (model.FilterOptions, error) {
	opts := model.FilterOptions{
		Statuses:      []string{},
		Genres:        []string{},
		Languages:     []string{},
		PurchaseYears: []int{},
	}
	err := r.read(ctx, func(tx *sqlx.Tx) error {
		for column, dst := range map[string]*[]string{
			"status":   &opts.Statuses,
			"genre":    &opts.Genres,
			"language": &opts.Languages,
		} {
			q, args, err := r.qb.Select(column).Distinct().
				From(booksTableName).
				Where(presentText(column)).
				ToSql()
			if err != nil {
				return err
			}
			if err := tx.SelectContext(ctx, dst, q, args...); err != nil {
				return errors.Wrapf(err, "distinct %s", column)
			}
		}
		q, args, err := r.qb.Select("purchase_year").Distinct().
			From(booksTableName).
			Where(sq.NotEq{"purchase_year": nil}).
			ToSql()
		if err != nil {
			return err
		}
		return errors.Wrap(tx.SelectContext(ctx, &opts.PurchaseYears, q, args...), "distinct purchase_year")
	})
	if err != nil {
		return model.FilterOptions{}, err
	}
	slices.Sort(opts.Statuses)
	slices.Sort(opts.Genres)
	slices.Sort(opts.Languages)
	slices.Sort(opts.PurchaseYears)
	return opts, nil
}
