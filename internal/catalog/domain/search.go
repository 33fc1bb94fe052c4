package domain

import (
	"strconv"
	"strings"
)

// SearchFilter selects catalog records by title substring or release year,
// optionally restricted to a category.
type SearchFilter struct {
	Query    string
	Year     int
	HasYear  bool
	Category string
}

// NewSearchFilter trims the query and, when it is an integer, also matches
// it against the release year.
func NewSearchFilter(query, category string) (SearchFilter, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchFilter{}, ErrSearchQueryRequired
	}
	filter := SearchFilter{Query: query, Category: strings.TrimSpace(category)}
	if year, err := strconv.Atoi(query); err == nil {
		filter.Year = year
		filter.HasYear = true
	}
	return filter, nil
}

// Matches reports whether item satisfies the filter.
func (f SearchFilter) Matches(item ContentItem) bool {
	if f.Category != "" && item.Category != f.Category {
		return false
	}
	if strings.Contains(strings.ToLower(item.Title), strings.ToLower(f.Query)) {
		return true
	}
	return f.HasYear && item.ReleaseYear == f.Year
}
