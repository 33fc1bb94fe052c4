package relay

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

const (
	// DefaultFilename is used when no usable display title is supplied.
	DefaultFilename = "video.mp4"
	mediaExtension  = ".mp4"

	driveHost          = "drive.google.com"
	driveExportPattern = "https://drive.google.com/uc?export=download&id=%s&confirm=t"
)

// DownloadRequest is the validated input of one relay run.
type DownloadRequest struct {
	SourceURL    string
	DisplayTitle string
}

// ResolvedTarget is derived from a DownloadRequest by Normalize.
type ResolvedTarget struct {
	FetchURL           string
	AttachmentFilename string
}

// ParseDownloadRequest validates the raw query values. The source URL must be
// an absolute http or https URL with a host.
func ParseDownloadRequest(rawURL, title string) (DownloadRequest, error) {
	source := strings.TrimSpace(rawURL)
	if source == "" {
		return DownloadRequest{}, newError(KindMissingParameter, "parse", nil)
	}
	parsed, err := url.Parse(source)
	if err != nil {
		return DownloadRequest{}, newError(KindMissingParameter, "parse", err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if (scheme != "http" && scheme != "https") || parsed.Host == "" {
		return DownloadRequest{}, newError(KindMissingParameter, "parse", nil)
	}
	return DownloadRequest{SourceURL: source, DisplayTitle: title}, nil
}

// Normalize derives the fetch URL and attachment filename. It performs no I/O
// and is idempotent.
func Normalize(req DownloadRequest) ResolvedTarget {
	return ResolvedTarget{
		FetchURL:           rewriteFetchURL(req.SourceURL),
		AttachmentFilename: SanitizeFilename(req.DisplayTitle),
	}
}

// SanitizeFilename keeps ASCII letters, digits and whitespace, collapses each
// whitespace run into one underscore and appends the media extension.
func SanitizeFilename(title string) string {
	var b strings.Builder
	b.Grow(len(title) + len(mediaExtension))
	pendingSpace := false
	for _, r := range title {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSpace = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}
	if b.Len() == 0 {
		return DefaultFilename
	}
	b.WriteString(mediaExtension)
	return b.String()
}

// rewriteFetchURL turns a Drive "view" link into its direct export URL and
// returns every other input unchanged.
func rewriteFetchURL(source string) string {
	id, ok := driveFileID(source)
	if !ok {
		return source
	}
	return fmt.Sprintf(driveExportPattern, url.QueryEscape(id))
}

func driveFileID(source string) (string, bool) {
	parsed, err := url.Parse(source)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(parsed.Hostname())
	if host != driveHost && !strings.HasSuffix(host, "."+driveHost) {
		return "", false
	}
	segments := strings.Split(parsed.Path, "/")
	for i := 0; i+1 < len(segments); i++ {
		if segments[i] == "d" && segments[i+1] != "" {
			return segments[i+1], true
		}
	}
	return "", false
}
