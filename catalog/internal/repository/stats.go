package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/bookshelf-service/catalog/internal/model"
)

// Stats reads the raw aggregates of the whole catalog from one snapshot.
// Ordering, truncation and ratios are left to the caller.
func (r *repository) Stats(ctx context.Context) (model.CatalogStats, error) {
	var stats model.CatalogStats
	err := r.read(ctx, func(tx *sqlx.Tx) error {
		var totals struct {
			Total      int   `db:"total"`
			PagesSum   int64 `db:"pages_sum"`
			PagesCount int   `db:"pages_count"`
		}
		q, args, err := r.qb.Select("COUNT(*) AS total", "COALESCE(SUM(pages), 0) AS pages_sum", "COUNT(pages) AS pages_count").
			From(booksTableName).
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &totals, q, args...); err != nil {
			return errors.Wrap(err, "totals")
		}
		stats.Total, stats.PagesSum, stats.PagesCount = totals.Total, totals.PagesSum, totals.PagesCount

		for column, dst := range map[string]*[]model.Group{
			"status":    &stats.ByStatus,
			"genre":     &stats.ByGenre,
			"subgenre":  &stats.BySubgenre,
			"language":  &stats.ByLanguage,
			"author":    &stats.ByAuthor,
			"publisher": &stats.ByPublisher,
		} {
			if *dst, err = r.groupCount(ctx, tx, column); err != nil {
				return err
			}
		}

		q, args, err = r.qb.Select("purchase_year AS year", "COUNT(*) AS total").
			Column(sq.Expr("COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS finished", string(model.StatusFinished))).
			From(booksTableName).
			Where(sq.NotEq{"purchase_year": nil}).
			GroupBy("purchase_year").
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.SelectContext(ctx, &stats.ByYear, q, args...); err != nil {
			return errors.Wrap(err, "by year")
		}

		q, args, err = r.qb.Select("status", "COALESCE(SUM(pages), 0) AS pages_sum", "COUNT(*) AS cnt").
			From(booksTableName).
			Where(sq.And{sq.NotEq{"pages": nil}, presentText("status")}).
			GroupBy("status").
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.SelectContext(ctx, &stats.PagesByStatus, q, args...); err != nil {
			return errors.Wrap(err, "pages by status")
		}

		if stats.Owned, err = r.triTally(ctx, tx, "is_owned"); err != nil {
			return err
		}
		stats.Nonfiction, err = r.triTally(ctx, tx, "is_nonfiction")
		return err
	})
	if err != nil {
		r.log.Error("Stats", zap.Error(err))
		return model.CatalogStats{}, err
	}
	return stats, nil
}

func (r *repository) groupCount(ctx context.Context, tx *sqlx.Tx, column string) ([]model.Group, error) {
	q, args, err := r.qb.Select(column+" AS label", "COUNT(*) AS value").
		From(booksTableName).
		Where(presentText(column)).
		GroupBy(column).
		ToSql()
	if err != nil {
		return nil, err
	}
	groups := make([]model.Group, 0)
	if err := tx.SelectContext(ctx, &groups, q, args...); err != nil {
		return nil, errors.Wrapf(err, "group by %s", column)
	}
	return groups, nil
}

// triTally counts true, false and NULL values of a boolean column.
func (r *repository) triTally(ctx context.Context, tx *sqlx.Tx, column string) (model.TriTally, error) {
	q, args, err := r.qb.Select(
		fmt.Sprintf("COALESCE(SUM(CASE WHEN %s THEN 1 ELSE 0 END), 0) AS tri_true", column),
		fmt.Sprintf("COALESCE(SUM(CASE WHEN NOT %s THEN 1 ELSE 0 END), 0) AS tri_false", column),
		fmt.Sprintf("COALESCE(SUM(CASE WHEN %s IS NULL THEN 1 ELSE 0 END), 0) AS tri_unknown", column),
	).From(booksTableName).ToSql()
	if err != nil {
		return model.TriTally{}, err
	}
	var tally model.TriTally
	if err := tx.GetContext(ctx, &tally, q, args...); err != nil {
		return model.TriTally{}, errors.Wrapf(err, "tally %s", column)
	}
	return tally, nil
}
