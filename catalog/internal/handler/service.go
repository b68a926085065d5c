package handler

import (
	"context"

	"github.com/Astemirdum/bookshelf-service/catalog/internal/model"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/query"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type CatalogService interface {
	ListBooks(ctx context.Context, c query.Criteria) (model.ListBooks, error)
	GetBook(ctx context.Context, id int64) (model.Book, error)
	CreateBook(ctx context.Context, payload map[string]any) (model.Book, error)
	UpdateBook(ctx context.Context, id int64, payload map[string]any) (model.Book, error)
	DeleteBook(ctx context.Context, id int64) error
	FilterOptions(ctx context.Context) (model.FilterOptions, error)
	Dashboard(ctx context.Context) (model.Dashboard, error)
	Import(ctx context.Context, source string) (model.ImportResult, error)
}

var _ CatalogService = (*service.Service)(nil)
