package model

type Group struct {
	Label string `json:"label" db:"label"`
	Value int    `json:"value" db:"value"`
}

type YearGroup struct {
	Label int `json:"label"`
	Value int `json:"value"`
}

type Ratio struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

type YearRatio struct {
	Label int     `json:"label"`
	Value float64 `json:"value"`
}

type KPIs struct {
	TotalBooks      int     `json:"total_books"`
	FinishedBooks   int     `json:"finished_books"`
	ReadingBooks    int     `json:"reading_books"`
	PausedBooks     int     `json:"paused_books"`
	NotStartedBooks int     `json:"not_started_books"`
	DNFBooks        int     `json:"dnf_books"`
	ReadRatio       float64 `json:"read_ratio"`
	AvgPages        float64 `json:"avg_pages"`
}

type Dashboard struct {
	KPIs            KPIs        `json:"kpis"`
	ByStatus        []Group     `json:"by_status"`
	ByGenre         []Group     `json:"by_genre"`
	TopSubgenres    []Group     `json:"top_subgenres"`
	ByYear          []YearGroup `json:"by_year"`
	CompletedByYear []YearRatio `json:"completed_by_year"`
	OwnershipSplit  []Group     `json:"ownership_split"`
	NonfictionSplit []Group     `json:"nonfiction_split"`
	PagesByStatus   []Ratio     `json:"pages_by_status"`
	ByLanguage      []Group     `json:"by_language"`
	TopAuthors      []Group     `json:"top_authors"`
	TopPublishers   []Group     `json:"top_publishers"`
}

// CatalogStats is the raw aggregate of the whole catalog, read from one snapshot.
type CatalogStats struct {
	Total      int   `db:"total"`
	PagesSum   int64 `db:"pages_sum"`
	PagesCount int   `db:"pages_count"`

	ByStatus    []Group
	ByGenre     []Group
	BySubgenre  []Group
	ByLanguage  []Group
	ByAuthor    []Group
	ByPublisher []Group

	ByYear        []YearTally
	PagesByStatus []PagesTally
	Owned         TriTally
	Nonfiction    TriTally
}

type YearTally struct {
	Year     int `db:"year"`
	Total    int `db:"total"`
	Finished int `db:"finished"`
}

type PagesTally struct {
	Status   Status `db:"status"`
	PagesSum int64  `db:"pages_sum"`
	Count    int    `db:"cnt"`
}

type TriTally struct {
	True    int `db:"tri_true"`
	False   int `db:"tri_false"`
	Unknown int `db:"tri_unknown"`
}
