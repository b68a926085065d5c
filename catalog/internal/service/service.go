package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/Astemirdum/bookshelf-service/catalog/internal/dashboard"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/events"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/importer"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/model"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/normalize"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/query"
	catalogRepo "github.com/Astemirdum/bookshelf-service/catalog/internal/repository"
)

type Service struct {
	log       *zap.Logger
	repo      catalogRepo.Repository
	norm      *normalize.Normalizer
	importer  *importer.Importer
	publisher events.Publisher
}

func NewService(repo catalogRepo.Repository, norm *normalize.Normalizer, publisher events.Publisher, log *zap.Logger) *Service {
	if norm == nil {
		norm = normalize.New(nil)
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		log:       log.Named("service"),
		repo:      repo,
		norm:      norm,
		importer:  importer.New(repo, norm, log),
		publisher: publisher,
	}
}

func (s *Service) ListBooks(ctx context.Context, c query.Criteria) (model.ListBooks, error) {
	q := query.Build(c)
	items, total, err := s.repo.Query(ctx, q)
	if err != nil {
		return model.ListBooks{}, err
	}
	return model.ListBooks{
		Items: items,
		Paging: model.Paging{
			Page:     q.Page,
			PageSize: q.PageSize,
			Total:    total,
		},
	}, nil
}

func (s *Service) GetBook(ctx context.Context, id int64) (model.Book, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) CreateBook(ctx context.Context, payload map[string]any) (model.Book, error) {
	fields, err := s.norm.APIPayload(payload)
	if err != nil {
		return model.Book{}, err
	}
	book, err := s.repo.Insert(ctx, fields)
	if err != nil {
		return model.Book{}, err
	}
	s.publish(ctx, events.Event{Type: events.BookCreated, BookID: book.ID, Book: &book})
	return book, nil
}

// UpdateBook overwrites every field of the book from payload.
func (s *Service) UpdateBook(ctx context.Context, id int64, payload map[string]any) (model.Book, error) {
	fields, err := s.norm.APIPayload(payload)
	if err != nil {
		return model.Book{}, err
	}
	book, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		return model.Book{}, err
	}
	s.publish(ctx, events.Event{Type: events.BookUpdated, BookID: book.ID, Book: &book})
	return book, nil
}

func (s *Service) DeleteBook(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, events.Event{Type: events.BookDeleted, BookID: id})
	return nil
}

func (s *Service) FilterOptions(ctx context.Context) (model.FilterOptions, error) {
	return s.repo.FilterOptions(ctx)
}

// Dashboard computes the analytics summary from a snapshot taken for this call,
// so it reflects every write committed before the call.
func (s *Service) Dashboard(ctx context.Context) (model.Dashboard, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return model.Dashboard{}, err
	}
	return dashboard.Build(stats), nil
}

func (s *Service) Import(ctx context.Context, source string) (model.ImportResult, error) {
	res, err := s.importer.Import(ctx, source)
	if err != nil {
		return res, err
	}
	s.publish(ctx, events.Event{Type: events.CatalogImported, Import: &res})
	return res, nil
}

// Bootstrap imports source when the catalog is empty and does nothing otherwise.
func (s *Service) Bootstrap(ctx context.Context, source string) (model.ImportResult, error) {
	res, err := s.importer.Bootstrap(ctx, source)
	if err != nil {
		return res, err
	}
	if res.Imported > 0 {
		s.publish(ctx, events.Event{Type: events.CatalogImported, Import: &res})
	}
	return res, nil
}

// publish never fails the caller: the change is already committed.
func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.log.Warn("publish event", zap.String("type", string(e.Type)), zap.Error(err))
	}
}
