// Package query turns untrusted list criteria into a closed, deterministic
// query: filters are bound parameters, sort columns come from an allow-list,
// and id ascending always breaks ties.
package query

import (
	"fmt"
	"math"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 50
	MaxPageSize     = 200
	// MaxPage keeps (page-1)*page_size within int; any page this far out is past the end anyway.
	MaxPage         = math.MaxInt / MaxPageSize
)

type SortKey string

const (
	SortTitle        SortKey = "title"
	SortAuthor       SortKey = "author"
	SortStatus       SortKey = "status"
	SortGenre        SortKey = "genre"
	SortLanguage     SortKey = "language"
	SortPurchaseYear SortKey = "purchase_year"
	SortCreatedAt    SortKey = "created_at"
)

var sortKeys = map[string]SortKey{
	"title":         SortTitle,
	"author":        SortAuthor,
	"status":        SortStatus,
	"genre":         SortGenre,
	"language":      SortLanguage,
	"purchase_year": SortPurchaseYear,
	"created_at":    SortCreatedAt,
}

// InitialOther selects titles that do not start with a Latin letter.
const InitialOther = "#"

// Criteria is the list request as received from the transport layer.
type Criteria struct {
	Search       string
	Status       string
	Genre        string
	Language     string
	PurchaseYear *int
	StartsWith   string
	Sort         string
	Order        string
	Page         *int
	PageSize     *int
}

type Filter struct {
	Search       string
	Status       string
	Genre        string
	Language     string
	PurchaseYear *int
	// Initial is "A".."Z", InitialOther or empty.
	Initial string
}

type Query struct {
	Filter   Filter
	Sort     SortKey
	Desc     bool
	Page     int
	PageSize int
}

// Build never fails: unknown sort keys fall back to title and page values are clamped.
func Build(c Criteria) Query {
	q := Query{
		Filter: Filter{
			Search:       strings.TrimSpace(c.Search),
			Status:       strings.TrimSpace(c.Status),
			Genre:        strings.TrimSpace(c.Genre),
			Language:     strings.TrimSpace(c.Language),
			PurchaseYear: c.PurchaseYear,
			Initial:      parseInitial(c.StartsWith),
		},
		Sort:     SortTitle,
		Desc:     strings.EqualFold(strings.TrimSpace(c.Order), "desc"),
		Page:     DefaultPage,
		PageSize: DefaultPageSize,
	}
	if key, ok := sortKeys[strings.TrimSpace(c.Sort)]; ok {
		q.Sort = key
	}
	if c.Page != nil {
		q.Page = min(max(*c.Page, 1), MaxPage)
	}
	if c.PageSize != nil {
		q.PageSize = min(max(*c.PageSize, 1), MaxPageSize)
	}
	return q
}

func parseInitial(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == InitialOther {
		return s
	}
	if len(s) == 1 && s[0] >= 'A' && s[0] <= 'Z' {
		return s
	}
	return ""
}

func (q Query) Limit() uint64 {
	return uint64(q.PageSize)
}

func (q Query) Offset() uint64 {
	return uint64((q.Page - 1) * q.PageSize)
}

// OrderBy keeps absent values first in ascending order and last in descending order.
func (q Query) OrderBy() []string {
	dir := "ASC NULLS FIRST"
	if q.Desc {
		dir = "DESC NULLS LAST"
	}
	return []string{fmt.Sprintf("%s %s", q.Sort, dir), "id ASC"}
}

const initialExpr = "upper(substr(title, 1, 1))"

var latinLetters = func() []string {
	letters := make([]string, 0, 26)
	for c := 'A'; c <= 'Z'; c++ {
		letters = append(letters, string(c))
	}
	return letters
}()

// Case-insensitive pattern operators: SQLite LIKE folds ASCII only, Postgres ILIKE follows the locale.
const (
	Like  = "LIKE"
	ILike = "ILIKE"
)

// Where returns the filter predicate; an empty filter matches every book.
// likeOp is Like or ILike, depending on the store.
func (f Filter) Where(likeOp string) sq.And {
	where := sq.And{}
	if f.Search != "" {
		like := "%" + escapeLike(f.Search) + "%"
		where = append(where, sq.Or{
			sq.Expr(`title `+likeOp+` ? ESCAPE '\'`, like),
			sq.Expr(`author `+likeOp+` ? ESCAPE '\'`, like),
		})
	}
	if f.Status != "" {
		where = append(where, sq.Eq{"status": f.Status})
	}
	if f.Genre != "" {
		where = append(where, sq.Eq{"genre": f.Genre})
	}
	if f.Language != "" {
		where = append(where, sq.Eq{"language": f.Language})
	}
	if f.PurchaseYear != nil {
		where = append(where, sq.Eq{"purchase_year": *f.PurchaseYear})
	}
	switch f.Initial {
	case "":
	case InitialOther:
		where = append(where, sq.NotEq{initialExpr: latinLetters})
	default:
		where = append(where, sq.Eq{initialExpr: f.Initial})
	}
	return where
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
