package model

import "time"

type Status string

const (
	StatusNotStarted Status = "Not Started"
	StatusReading    Status = "Reading"
	StatusPaused     Status = "Paused"
	StatusFinished   Status = "Finished"
	StatusDNF        Status = "DNF"
)

var Statuses = []Status{StatusNotStarted, StatusReading, StatusPaused, StatusFinished, StatusDNF}

// ParseStatus matches the trimmed input exactly and falls back to Not Started.
func ParseStatus(s string) Status {
	for _, st := range Statuses {
		if string(st) == s {
			return st
		}
	}
	return StatusNotStarted
}

// BookFields is the canonical, client-controlled part of a book.
// A nil pointer is an absent value.
type BookFields struct {
	Title            string  `json:"title" db:"title"`
	Author           *string `json:"author" db:"author"`
	SeriesName       *string `json:"series_name" db:"series_name"`
	SeriesNumber     *int    `json:"series_number" db:"series_number"`
	IsSeries         *bool   `json:"is_series" db:"is_series"`
	Pages            *int    `json:"pages" db:"pages"`
	Language         *string `json:"language" db:"language"`
	Genre            *string `json:"genre" db:"genre"`
	Subgenre         *string `json:"subgenre" db:"subgenre"`
	Status           Status  `json:"status" db:"status"`
	IsOwned          *bool   `json:"is_owned" db:"is_owned"`
	IsNonfiction     *bool   `json:"is_nonfiction" db:"is_nonfiction"`
	PurchaseYear     *int    `json:"purchase_year" db:"purchase_year"`
	PurchaseLocation *string `json:"purchase_location" db:"purchase_location"`
	Publisher        *string `json:"publisher" db:"publisher"`
	Format           *string `json:"format" db:"format"`
	Source           *string `json:"source" db:"source"`
	Rating           *int    `json:"rating" db:"rating"`
	Notes            *string `json:"notes" db:"notes"`
	DateAdded        *string `json:"date_added" db:"date_added"`
	DateStarted      *string `json:"date_started" db:"date_started"`
	DateFinished     *string `json:"date_finished" db:"date_finished"`
}

type Book struct {
	ID int64 `json:"id" db:"id"`
	BookFields
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Paging struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}

type ListBooks struct {
	Items  []Book `json:"items"`
	Paging `json:",inline"`
}

type FilterOptions struct {
	Statuses      []string `json:"statuses"`
	Genres        []string `json:"genres"`
	Languages     []string `json:"languages"`
	PurchaseYears []int    `json:"purchase_years"`
}

type ImportResult struct {
	RunID    string `json:"run_id"`
	Source   string `json:"source"`
	Imported int    `json:"imported"`
	Dropped  int    `json:"dropped"`
}
