// Package dashboard turns the raw catalog aggregates into the analytics summary.
package dashboard

import (
	"cmp"
	"math"
	"slices"

	"github.com/Astemirdum/bookshelf-service/catalog/internal/model"
)

const (
	TopGenres     = 12
	TopSubgenres  = 12
	TopAuthors    = 10
	TopPublishers = 10
)

const (
	LabelOwned      = "Owned"
	LabelNotOwned   = "Not Owned"
	LabelNonfiction = "Nonfiction"
	LabelFiction    = "Fiction"
	LabelUnknown    = "Unknown"
)

func Build(s model.CatalogStats) model.Dashboard {
	byStatus := make(map[model.Status]int, len(s.ByStatus))
	for _, g := range s.ByStatus {
		byStatus[model.Status(g.Label)] = g.Value
	}
	avgPages := 0.0
	if s.PagesCount > 0 {
		avgPages = Round(float64(s.PagesSum)/float64(s.PagesCount), 1)
	}

	return model.Dashboard{
		KPIs: model.KPIs{
			TotalBooks:      s.Total,
			FinishedBooks:   byStatus[model.StatusFinished],
			ReadingBooks:    byStatus[model.StatusReading],
			PausedBooks:     byStatus[model.StatusPaused],
			NotStartedBooks: byStatus[model.StatusNotStarted],
			DNFBooks:        byStatus[model.StatusDNF],
			ReadRatio:       Percent(byStatus[model.StatusFinished], s.Total),
			AvgPages:        avgPages,
		},
		ByStatus:        Ranked(s.ByStatus, 0),
		ByGenre:         Ranked(s.ByGenre, TopGenres),
		TopSubgenres:    Ranked(s.BySubgenre, TopSubgenres),
		ByYear:          byYear(s.ByYear),
		CompletedByYear: completedByYear(s.ByYear),
		OwnershipSplit:  split(s.Owned, LabelOwned, LabelNotOwned),
		NonfictionSplit: split(s.Nonfiction, LabelNonfiction, LabelFiction),
		PagesByStatus:   pagesByStatus(s.PagesByStatus),
		ByLanguage:      Ranked(s.ByLanguage, 0),
		TopAuthors:      Ranked(s.ByAuthor, TopAuthors),
		TopPublishers:   Ranked(s.ByPublisher, TopPublishers),
	}
}

// Round rounds to the given number of decimal places, ties to even.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.RoundToEven(v*p) / p
}

// Percent is part/total as a percentage with two decimals, 0 for an empty total.
func Percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return Round(float64(part)/float64(total)*100, 2)
}

// Ranked orders groups by value descending then label ascending and keeps the first n (all when n <= 0).
func Ranked(groups []model.Group, n int) []model.Group {
	out := slices.Clone(groups)
	if out == nil {
		out = []model.Group{}
	}
	slices.SortFunc(out, func(a, b model.Group) int {
		return cmp.Or(cmp.Compare(b.Value, a.Value), cmp.Compare(a.Label, b.Label))
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func byYear(tallies []model.YearTally) []model.YearGroup {
	out := make([]model.YearGroup, 0, len(tallies))
	for _, t := range tallies {
		out = append(out, model.YearGroup{Label: t.Year, Value: t.Total})
	}
	slices.SortFunc(out, func(a, b model.YearGroup) int {
		return cmp.Or(cmp.Compare(b.Value, a.Value), cmp.Compare(a.Label, b.Label))
	})
	return out
}

func completedByYear(tallies []model.YearTally) []model.YearRatio {
	out := make([]model.YearRatio, 0, len(tallies))
	for _, t := range tallies {
		if t.Total == 0 {
			continue
		}
		out = append(out, model.YearRatio{Label: t.Year, Value: Percent(t.Finished, t.Total)})
	}
	slices.SortFunc(out, func(a, b model.YearRatio) int {
		return cmp.Compare(a.Label, b.Label)
	})
	return out
}

// split always yields the three buckets, zero counts included.
func split(t model.TriTally, yes, no string) []model.Group {
	return Ranked([]model.Group{
		{Label: yes, Value: t.True},
		{Label: no, Value: t.False},
		{Label: LabelUnknown, Value: t.Unknown},
	}, 0)
}

func pagesByStatus(tallies []model.PagesTally) []model.Ratio {
	out := make([]model.Ratio, 0, len(tallies))
	for _, t := range tallies {
		if t.Count == 0 || t.Status == "" {
			continue
		}
		out = append(out, model.Ratio{
			Label: string(t.Status),
			Value: Round(float64(t.PagesSum)/float64(t.Count), 1),
		})
	}
	slices.SortFunc(out, func(a, b model.Ratio) int {
		return cmp.Or(cmp.Compare(b.Value, a.Value), cmp.Compare(a.Label, b.Label))
	})
	return out
}
