package domain

import (
	"encoding/json"
	"time"
)

// Categories offered by the upload form. Any non-empty category is accepted.
const (
	CategoryMovie     = "Movie"
	CategoryAnime     = "Anime"
	CategoryWebSeries = "Web Series"
)

// Episode points at a single downloadable file.
type Episode struct {
	EpisodeNumber int    `json:"episodeNumber" yaml:"episodeNumber"`
	Link          string `json:"link" yaml:"link"`
}

// Season groups episodes of a series.
type Season struct {
	SeasonNumber int       `json:"seasonNumber" yaml:"seasonNumber"`
	Episodes     []Episode `json:"episodes" yaml:"episodes"`
}

// ContentItem is a catalog record.
type ContentItem struct {
	ID          string
	Title       string
	ReleaseYear int
	Category    string
	Thumbnail   string
	DriveLink   string
	Seasons     []Season
	CreatedAt   time.Time
}

type contentItemJSON struct {
	MongoID     string    `json:"_id"`
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	ReleaseYear int       `json:"releaseYear"`
	Category    string    `json:"category"`
	Thumbnail   string    `json:"thumbnail"`
	DriveLink   string    `json:"driveLink,omitempty"`
	Seasons     []Season  `json:"seasons,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// MarshalJSON emits the record with both `_id` and `id` so existing clients
// keep working.
func (c ContentItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(contentItemJSON{
		MongoID:     c.ID,
		ID:          c.ID,
		Title:       c.Title,
		ReleaseYear: c.ReleaseYear,
		Category:    c.Category,
		Thumbnail:   c.Thumbnail,
		DriveLink:   c.DriveLink,
		Seasons:     c.Seasons,
		CreatedAt:   c.CreatedAt,
	})
}

// UnmarshalJSON accepts either `_id` or `id`.
func (c *ContentItem) UnmarshalJSON(data []byte) error {
	var raw contentItemJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id := raw.MongoID
	if id == "" {
		id = raw.ID
	}
	*c = ContentItem{
		ID:          id,
		Title:       raw.Title,
		ReleaseYear: raw.ReleaseYear,
		Category:    raw.Category,
		Thumbnail:   raw.Thumbnail,
		DriveLink:   raw.DriveLink,
		Seasons:     raw.Seasons,
		CreatedAt:   raw.CreatedAt,
	}
	return nil
}

// ContentInput is the create/update payload.
type ContentInput struct {
	Title       string   `json:"title" yaml:"title"`
	ReleaseYear int      `json:"releaseYear" yaml:"releaseYear"`
	Category    string   `json:"category" yaml:"category"`
	Thumbnail   string   `json:"thumbnail" yaml:"thumbnail"`
	DriveLink   string   `json:"driveLink,omitempty" yaml:"driveLink,omitempty"`
	Seasons     []Season `json:"seasons,omitempty" yaml:"seasons,omitempty"`
}

// Apply copies the input onto item, leaving ID and CreatedAt alone.
func (in ContentInput) Apply(item ContentItem) ContentItem {
	item.Title = in.Title
	item.ReleaseYear = in.ReleaseYear
	item.Category = in.Category
	item.Thumbnail = in.Thumbnail
	item.DriveLink = in.DriveLink
	item.Seasons = in.Seasons
	return item
}

// UploadLog records that a title was added to the catalog.
type UploadLog struct {
	ID           string
	ContentTitle string
	UploadedAt   time.Time
}

type uploadLogJSON struct {
	MongoID      string    `json:"_id"`
	ContentTitle string    `json:"contentTitle"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

func (l UploadLog) MarshalJSON() ([]byte, error) {
	return json.Marshal(uploadLogJSON{MongoID: l.ID, ContentTitle: l.ContentTitle, UploadedAt: l.UploadedAt})
}
