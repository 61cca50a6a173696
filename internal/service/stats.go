package service

import (
	"context"
	"sort"
	"time"

	"github.com/sakif/snippet-vault/internal/clock"
	"github.com/sakif/snippet-vault/internal/repository"
	"github.com/sakif/snippet-vault/internal/visibility"
)

// ActivityDays is the length of the activity heatmap window.
const ActivityDays = 160

// LanguageCount is one row of the per-language breakdown.
type LanguageCount struct {
	Language string `json:"language"`
	Count    int    `json:"count"`
}

// Stats summarises one user's library.
type Stats struct {
	Total       int             `json:"total"`
	Favorites   int             `json:"favorites"`
	TotalUsage  int64           `json:"totalUsage"`
	Community   int             `json:"community"`
	ActiveLinks int             `json:"activeLinks"`
	TopLanguage string          `json:"topLanguage"`
	TopCount    int             `json:"topLanguageCount"`
	Languages   []LanguageCount `json:"languages"`
}

// ActivityDay is one heatmap cell.
type ActivityDay struct {
	Date  string `json:"date"` // YYYY-MM-DD, UTC
	Count int    `json:"count"`
}

type StatsService struct {
	repo  repository.SnippetRepository
	clock clock.Clock
}

func NewStatsService(repo repository.SnippetRepository, clk clock.Clock) *StatsService {
	return &StatsService{repo: repo, clock: clk}
}

// Summary counts the owner's snippets. Languages are sorted by count, then
// name, and TopLanguage is the first of them.
func (s *StatsService) Summary(ctx context.Context, ownerID string) (*Stats, error) {
	snippets, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, storeErr("loading stats", err)
	}

	now := s.clock.Now()
	st := &Stats{Total: len(snippets), Languages: []LanguageCount{}}
	perLang := make(map[string]int)
	for i := range snippets {
		sn := &snippets[i]
		if sn.IsFavorite {
			st.Favorites++
		}
		if sn.InCommunity {
			st.Community++
		}
		if visibility.ComputeLinkState(now, sn.PublicExpiresAt) == visibility.LinkActive {
			st.ActiveLinks++
		}
		st.TotalUsage += sn.UsageCount
		perLang[sn.Language]++
	}

	for lang, n := range perLang {
		st.Languages = append(st.Languages, LanguageCount{Language: lang, Count: n})
	}
	sort.Slice(st.Languages, func(i, j int) bool {
		a, b := st.Languages[i], st.Languages[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Language < b.Language
	})
	if len(st.Languages) > 0 {
		st.TopLanguage = st.Languages[0].Language
		st.TopCount = st.Languages[0].Count
	}
	return st, nil
}

// Activity returns ActivityDays cells, oldest first, ending today (UTC),
// counting snippets created on each day.
func (s *StatsService) Activity(ctx context.Context, ownerID string) ([]ActivityDay, error) {
	snippets, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, storeErr("loading activity", err)
	}

	today := truncateDay(s.clock.Now())
	first := today.AddDate(0, 0, -(ActivityDays - 1))

	days := make([]ActivityDay, ActivityDays)
	index := make(map[string]int, ActivityDays)
	for i := range days {
		d := first.AddDate(0, 0, i).Format(time.DateOnly)
		days[i].Date = d
		index[d] = i
	}

	for i := range snippets {
		d := truncateDay(snippets[i].CreatedAt).Format(time.DateOnly)
		if j, ok := index[d]; ok {
			days[j].Count++
		}
	}
	return days, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
