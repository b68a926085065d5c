package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/bookshelf-service/catalog/internal/coerce"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/errs"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/query"
	md "github.com/Astemirdum/bookshelf-service/pkg/middleware"
	"github.com/Astemirdum/bookshelf-service/pkg/validate"
)

type Handler struct {
	catalogSvc CatalogService
	log        *zap.Logger
}

func New(catalogSvc CatalogService, log *zap.Logger) *Handler {
	return &Handler{
		catalogSvc: catalogSvc,
		log:        log.Named("handler"),
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPost, http.MethodDelete},
	}))

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig(h.log)),
		middleware.RequestID(),
		md.NewRateLimiter(apiRPS),
	)

	api.GET("/books", h.ListBooks)
	api.POST("/books", h.CreateBook)
	api.GET("/books/:id", h.GetBook)
	api.PUT("/books/:id", h.UpdateBook)
	api.DELETE("/books/:id", h.DeleteBook)

	api.GET("/filters", h.FilterOptions)
	api.GET("/dashboard", h.Dashboard)
	api.POST("/import", h.Import)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// ListBooks never rejects malformed filter or paging values; they fall back to defaults.
func (h *Handler) ListBooks(c echo.Context) error {
	criteria := query.Criteria{
		Search:       c.QueryParam("search"),
		Status:       c.QueryParam("status"),
		Genre:        c.QueryParam("genre"),
		Language:     c.QueryParam("language"),
		PurchaseYear: intParam(c, "purchase_year"),
		StartsWith:   c.QueryParam("starts_with"),
		Sort:         c.QueryParam("sort"),
		Order:        c.QueryParam("order"),
		Page:         intParam(c, "page"),
		PageSize:     intParam(c, "page_size"),
	}
	books, err := h.catalogSvc.ListBooks(c.Request().Context(), criteria)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, books)
}

func (h *Handler) GetBook(c echo.Context) error {
	id, err := bookID(c)
	if err != nil {
		return h.httpError(err)
	}
	book, err := h.catalogSvc.GetBook(c.Request().Context(), id)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) CreateBook(c echo.Context) error {
	payload, err := readPayload(c)
	if err != nil {
		return err
	}
	book, err := h.catalogSvc.CreateBook(c.Request().Context(), payload)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, book)
}

func (h *Handler) UpdateBook(c echo.Context) error {
	id, err := bookID(c)
	if err != nil {
		return h.httpError(err)
	}
	payload, err := readPayload(c)
	if err != nil {
		return err
	}
	book, err := h.catalogSvc.UpdateBook(c.Request().Context(), id, payload)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) DeleteBook(c echo.Context) error {
	id, err := bookID(c)
	if err != nil {
		return h.httpError(err)
	}
	if err := h.catalogSvc.DeleteBook(c.Request().Context(), id); err != nil {
		return h.httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) FilterOptions(c echo.Context) error {
	opts, err := h.catalogSvc.FilterOptions(c.Request().Context())
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, opts)
}

func (h *Handler) Dashboard(c echo.Context) error {
	d, err := h.catalogSvc.Dashboard(c.Request().Context())
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Import(c echo.Context) error {
	type Req struct {
		CSVPath string `json:"csv_path" validate:"required"`
	}
	var req Req
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json body")
	}
	req.CSVPath = strings.TrimSpace(req.CSVPath)
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "csv_path is required")
	}
	res, err := h.catalogSvc.Import(c.Request().Context(), req.CSVPath)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) httpError(err error) error {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrValidation),
		errors.Is(err, errs.ErrInvalidID),
		errors.Is(err, errs.ErrSourceNotFound):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		h.log.Error("internal", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func bookID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.ErrInvalidID
	}
	return id, nil
}

// intParam follows the payload coercion rules ("10.0" is 10, garbage is absent)
// and saturates out-of-range numbers so a huge page stays past the end.
func intParam(c echo.Context, name string) *int {
	return coerce.SaturatingInt(c.QueryParam(name))
}

// readPayload decodes a JSON object body, keeping numbers as json.Number.
func readPayload(c echo.Context) (map[string]any, error) {
	dec := json.NewDecoder(c.Request().Body)
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil || payload == nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid json body")
	}
	return payload, nil
}
