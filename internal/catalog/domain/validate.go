package domain

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	MinReleaseYear = 1900
	MaxReleaseYear = 2100
)

// Validate checks the payload and returns a *ValidationError describing every
// failed field, or nil.
func (in ContentInput) Validate() error {
	var issues []Issue
	add := func(path, message string) {
		issues = append(issues, Issue{Path: path, Message: message})
	}

	if in.Title == "" {
		add("title", "String must contain at least 1 character(s)")
	}
	if in.ReleaseYear < MinReleaseYear {
		add("releaseYear", fmt.Sprintf("Number must be greater than or equal to %d", MinReleaseYear))
	} else if in.ReleaseYear > MaxReleaseYear {
		add("releaseYear", fmt.Sprintf("Number must be less than or equal to %d", MaxReleaseYear))
	}
	if in.Category == "" {
		add("category", "String must contain at least 1 character(s)")
	}
	if !IsValidURL(in.Thumbnail) {
		add("thumbnail", "Invalid url")
	}
	if in.DriveLink != "" && !IsValidURL(in.DriveLink) {
		add("driveLink", "Invalid url")
	}
	for si, season := range in.Seasons {
		for ei, episode := range season.Episodes {
			if !IsValidURL(episode.Link) {
				add(fmt.Sprintf("seasons[%d].episodes[%d].link", si, ei), "Invalid url")
			}
		}
	}

	if len(issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: issues}
}

// IsValidURL accepts absolute URLs with a scheme and either a host or an
// opaque part.
func IsValidURL(raw string) bool {
	if strings.TrimSpace(raw) != raw || raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return false
	}
	return u.Host != "" || u.Opaque != ""
}
