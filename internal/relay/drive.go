package relay

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// driveExportEndpoint serves the file once the confirm token is supplied.
const driveExportEndpoint = "https://drive.usercontent.google.com/download"

// DriveScanners returns the Google Drive virus-scan page scanners in priority
// order: download form, hidden confirm fields, legacy confirm anchor.
func DriveScanners() []PageScanner {
	return []PageScanner{
		PageScannerFunc(scanDownloadForm),
		PageScannerFunc(scanHiddenFields),
		PageScannerFunc(scanConfirmLink),
	}
}

// scanDownloadForm resolves the first form whose action targets a download
// endpoint and appends the form's hidden inputs to its query.
func scanDownloadForm(page *Page) (string, bool) {
	var found string
	page.Document.Find("form[action]").EachWithBreak(func(_ int, form *goquery.Selection) bool {
		action, ok := resolveAgainst(page.URL, form.AttrOr("action", ""))
		if !ok || !isDownloadEndpoint(action) {
			return true
		}
		query := action.Query()
		form.Find("input[type=hidden][name]").Each(func(_ int, input *goquery.Selection) {
			name := strings.TrimSpace(input.AttrOr("name", ""))
			if name != "" {
				query.Set(name, input.AttrOr("value", ""))
			}
		})
		action.RawQuery = query.Encode()
		found = action.String()
		return false
	})
	return found, found != ""
}

// scanHiddenFields builds the export URL from loose confirm/id/uuid inputs.
func scanHiddenFields(page *Page) (string, bool) {
	field := func(name string) string {
		value, _ := page.Document.Find(`input[name="` + name + `"]`).First().Attr("value")
		return strings.TrimSpace(value)
	}
	confirm, id := field("confirm"), field("id")
	if confirm == "" || id == "" {
		return "", false
	}
	query := url.Values{}
	query.Set("id", id)
	query.Set("export", "download")
	query.Set("confirm", confirm)
	if uuid := field("uuid"); uuid != "" {
		query.Set("uuid", uuid)
	}
	return driveExportEndpoint + "?" + query.Encode(), true
}

// scanConfirmLink follows the older page layout that linked the confirmed
// download directly.
func scanConfirmLink(page *Page) (string, bool) {
	var found string
	page.Document.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href := link.AttrOr("href", "")
		if !strings.Contains(unescapeAmp(href), "uc?export=download") {
			return true
		}
		if target, ok := resolveAgainst(page.URL, href); ok {
			found = target.String()
			return false
		}
		return true
	})
	return found, found != ""
}

func isDownloadEndpoint(u *url.URL) bool {
	path := strings.ToLower(u.Path)
	return strings.Contains(path, "download") || path == "/uc" || strings.HasSuffix(path, "/uc")
}

// resolveAgainst parses raw (after undoing a stray &amp; escape) and resolves
// it relative to base. Only http and https results are accepted.
func resolveAgainst(base *url.URL, raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(unescapeAmp(raw))
	if raw == "" {
		return nil, false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return nil, false
	}
	if ref.Host == "" {
		return nil, false
	}
	return ref, true
}

func unescapeAmp(raw string) string {
	return strings.ReplaceAll(raw, "&amp;", "&")
}
