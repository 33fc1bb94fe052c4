package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() ContentInput {
	return ContentInput{
		Title:       "Spirited Away",
		ReleaseYear: 2001,
		Category:    CategoryAnime,
		Thumbnail:   "https://img.example.com/spirited.jpg",
		DriveLink:   "https://drive.google.com/file/d/abc/view",
	}
}

func TestValidateAcceptsValidInput(t *testing.T) {
	assert.NoError(t, validInput().Validate())

	in := validInput()
	in.DriveLink = ""
	in.Seasons = []Season{{SeasonNumber: 1, Episodes: []Episode{{EpisodeNumber: 1, Link: "https://example.com/e1.mp4"}}}}
	assert.NoError(t, in.Validate())
}

func TestValidateReportsEveryIssue(t *testing.T) {
	in := ContentInput{
		ReleaseYear: 1800,
		Thumbnail:   "not a url",
		DriveLink:   "/relative",
		Seasons: []Season{{SeasonNumber: 1, Episodes: []Episode{
			{EpisodeNumber: 1, Link: "https://example.com/ok"},
			{EpisodeNumber: 2, Link: "nope"},
		}}},
	}
	err := in.Validate()
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	paths := make([]string, 0, len(verr.Issues))
	for _, issue := range verr.Issues {
		paths = append(paths, issue.Path)
	}
	assert.Equal(t, []string{"title", "releaseYear", "category", "thumbnail", "driveLink", "seasons[0].episodes[1].link"}, paths)
	assert.Contains(t, err.Error(), `Validation error: String must contain at least 1 character(s) at "title"`)
	assert.Contains(t, err.Error(), `Number must be greater than or equal to 1900 at "releaseYear"`)
}

func TestValidateYearUpperBound(t *testing.T) {
	in := validInput()
	in.ReleaseYear = 2101
	err := in.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `Number must be less than or equal to 2100 at "releaseYear"`)

	in.ReleaseYear = 2100
	assert.NoError(t, in.Validate())
}

func TestIsValidURL(t *testing.T) {
	cases := map[string]bool{
		"https://example.com/a.jpg":  true,
		"http://localhost:5000":      true,
		"mailto:someone@example.com": true,
		"":                           false,
		"example.com/a.jpg":          false,
		"/path/only":                 false,
		" https://example.com":       false,
		"http://":                    false,
	}
	for raw, want := range cases {
		assert.Equal(t, want, IsValidURL(raw), raw)
	}
}

func TestSearchFilter(t *testing.T) {
	_, err := NewSearchFilter("   ", "")
	assert.ErrorIs(t, err, ErrSearchQueryRequired)

	item := ContentItem{Title: "The Matrix", ReleaseYear: 1999, Category: CategoryMovie}

	f, err := NewSearchFilter("matrix", "")
	require.NoError(t, err)
	assert.False(t, f.HasYear)
	assert.True(t, f.Matches(item))

	f, err = NewSearchFilter("1999", "")
	require.NoError(t, err)
	assert.True(t, f.HasYear)
	assert.True(t, f.Matches(item))

	f, _ = NewSearchFilter("199", "")
	assert.False(t, f.Matches(item), "year matches are exact")

	f, _ = NewSearchFilter("MATRIX", CategoryAnime)
	assert.False(t, f.Matches(item), "category filter is exact")

	f, _ = NewSearchFilter("MATRIX", CategoryMovie)
	assert.True(t, f.Matches(item))
}

func TestContentItemJSON(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	item := ContentItem{ID: "abc", Title: "Film", ReleaseYear: 2020, Category: CategoryMovie, Thumbnail: "https://t", CreatedAt: created}

	raw, err := json.Marshal(item)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "abc", fields["_id"])
	assert.Equal(t, "abc", fields["id"])
	assert.Equal(t, float64(2020), fields["releaseYear"])
	assert.NotContains(t, fields, "driveLink")
	assert.NotContains(t, fields, "seasons")

	var back ContentItem
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, item, back)
}

func TestApplyKeepsIdentity(t *testing.T) {
	created := time.Now()
	item := validInput().Apply(ContentItem{ID: "x", CreatedAt: created})
	assert.Equal(t, "x", item.ID)
	assert.Equal(t, created, item.CreatedAt)
	assert.Equal(t, "Spirited Away", item.Title)
}
