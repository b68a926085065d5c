// Package normalize maps the two external record shapes, API payloads and
// spreadsheet rows, onto the canonical book fields.
package normalize

import (
	"github.com/Astemirdum/bookshelf-service/catalog/internal/coerce"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/errs"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/model"
)

// Input is implemented by APIPayload and SpreadsheetRow only.
type Input interface {
	input()
}

// APIPayload is a decoded request body keyed by canonical field names.
type APIPayload map[string]any

// SpreadsheetRow is one tabular record keyed by the source's column headers.
type SpreadsheetRow map[string]string

func (APIPayload) input()     {}
func (SpreadsheetRow) input() {}

type Normalizer struct {
	vocab Vocabulary
}

func New(vocab Vocabulary) *Normalizer {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Normalizer{vocab: vocab}
}

// Normalize returns errs.ErrValidation for an API payload without a title
// and errs.ErrDropped for a spreadsheet row without one.
func (n *Normalizer) Normalize(in Input) (model.BookFields, error) {
	switch v := in.(type) {
	case APIPayload:
		return n.APIPayload(v)
	case SpreadsheetRow:
		return n.SpreadsheetRow(v)
	default:
		return model.BookFields{}, errs.ErrValidation
	}
}

func (n *Normalizer) APIPayload(p APIPayload) (model.BookFields, error) {
	title := coerce.TrimmedString(p["title"])
	if title == nil {
		return model.BookFields{}, errs.ErrValidation
	}
	status := model.StatusNotStarted
	if s := coerce.TrimmedString(p["status"]); s != nil {
		status = model.ParseStatus(*s)
	}
	return model.BookFields{
		Title:            *title,
		Author:           coerce.TrimmedString(p["author"]),
		SeriesName:       coerce.TrimmedString(p["series_name"]),
		SeriesNumber:     coerce.Int(p["series_number"]),
		IsSeries:         coerce.TriBool(p["is_series"]),
		Pages:            coerce.Int(p["pages"]),
		Language:         coerce.TrimmedString(p["language"]),
		Genre:            coerce.TrimmedString(p["genre"]),
		Subgenre:         coerce.TrimmedString(p["subgenre"]),
		Status:           status,
		IsOwned:          coerce.TriBool(p["is_owned"]),
		IsNonfiction:     coerce.TriBool(p["is_nonfiction"]),
		PurchaseYear:     coerce.Int(p["purchase_year"]),
		PurchaseLocation: coerce.TrimmedString(p["purchase_location"]),
		Publisher:        coerce.TrimmedString(p["publisher"]),
		Format:           coerce.TrimmedString(p["format"]),
		Source:           coerce.TrimmedString(p["source"]),
		Rating:           coerce.Int(p["rating"]),
		Notes:            coerce.TrimmedString(p["notes"]),
		DateAdded:        coerce.TrimmedString(p["date_added"]),
		DateStarted:      coerce.TrimmedString(p["date_started"]),
		DateFinished:     coerce.TrimmedString(p["date_finished"]),
	}, nil
}

// SpreadsheetRow normalizes a row. Columns the spreadsheet does not carry
// (format, source, rating, notes, dates, series name and number) stay absent,
// and the Read column can only yield Finished or Not Started.
func (n *Normalizer) SpreadsheetRow(r SpreadsheetRow) (model.BookFields, error) {
	cells := make(map[string]string, len(r))
	for h, v := range r {
		cells[headerKey(h)] = v
	}
	cell := func(field string) any {
		for _, h := range n.vocab[field] {
			if v, ok := cells[headerKey(h)]; ok {
				return v
			}
		}
		return nil
	}

	title := coerce.TrimmedString(cell(ColTitle))
	if title == nil {
		return model.BookFields{}, errs.ErrDropped
	}
	status := model.StatusNotStarted
	if read := coerce.TriBool(cell(ColRead)); read != nil && *read {
		status = model.StatusFinished
	}
	return model.BookFields{
		Title:            *title,
		Author:           coerce.TrimmedString(cell(ColAuthor)),
		IsSeries:         coerce.TriBool(cell(ColIsSeries)),
		Pages:            coerce.Int(cell(ColPages)),
		Language:         coerce.TrimmedString(cell(ColLanguage)),
		Genre:            coerce.TrimmedString(cell(ColGenre)),
		Subgenre:         coerce.TrimmedString(cell(ColSubgenre)),
		Status:           status,
		IsOwned:          coerce.TriBool(cell(ColIsOwned)),
		IsNonfiction:     coerce.TriBool(cell(ColIsNonfiction)),
		PurchaseYear:     coerce.Int(cell(ColPurchaseYear)),
		PurchaseLocation: coerce.TrimmedString(cell(ColPurchaseLocation)),
		Publisher:        coerce.TrimmedString(cell(ColPublisher)),
	}, nil
}
