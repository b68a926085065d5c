// Package importer loads a spreadsheet export into the catalog, replacing its contents.
package importer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/bookshelf-service/catalog/internal/errs"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/model"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/normalize"
)

type Store interface {
	ReplaceAll(ctx context.Context, books []model.BookFields) (int, error)
	ReplaceAllIfEmpty(ctx context.Context, books []model.BookFields) (int, error)
	Count(ctx context.Context) (int, error)
}

type Importer struct {
	store Store
	norm  *normalize.Normalizer
	log   *zap.Logger
}

func New(store Store, norm *normalize.Normalizer, log *zap.Logger) *Importer {
	if norm == nil {
		norm = normalize.New(nil)
	}
	return &Importer{
		store: store,
		norm:  norm,
		log:   log.Named("importer"),
	}
}

// Import replaces the whole catalog with the rows of the CSV file at source.
// When the source cannot be read the catalog is left untouched.
func (im *Importer) Import(ctx context.Context, source string) (model.ImportResult, error) {
	return im.run(ctx, source, im.store.ReplaceAll)
}

// Bootstrap imports source only while the catalog is empty; otherwise it imports nothing.
func (im *Importer) Bootstrap(ctx context.Context, source string) (model.ImportResult, error) {
	count, err := im.store.Count(ctx)
	if err != nil {
		return model.ImportResult{}, err
	}
	if count > 0 {
		im.log.Debug("bootstrap skipped", zap.Int("books", count))
		return model.ImportResult{Source: source}, nil
	}
	return im.run(ctx, source, im.store.ReplaceAllIfEmpty)
}

type replaceFunc func(ctx context.Context, books []model.BookFields) (int, error)

func (im *Importer) run(ctx context.Context, source string, replace replaceFunc) (model.ImportResult, error) {
	res := model.ImportResult{
		RunID:  uuid.NewString(),
		Source: source,
	}
	log := im.log.With(zap.String("run_id", res.RunID), zap.String("source", source))
	start := time.Now()
	log.Info("import started")

	rows, err := ReadFile(source)
	if err != nil {
		log.Warn("import source", zap.Error(err))
		return res, err
	}

	books := make([]model.BookFields, 0, len(rows))
	for _, row := range rows {
		book, err := im.norm.Normalize(row)
		if errors.Is(err, errs.ErrDropped) {
			res.Dropped++
			continue
		}
		if err != nil {
			return res, err
		}
		books = append(books, book)
	}

	if res.Imported, err = replace(ctx, books); err != nil {
		log.Error("import replace", zap.Error(err))
		return res, err
	}
	log.Info("import finished",
		zap.Int("imported", res.Imported),
		zap.Int("dropped", res.Dropped),
		zap.Duration("took", time.Since(start)))
	return res, nil
}
