package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// DefaultUserAgent is a desktop browser string; many sites refuse bare clients
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// DefaultMaxBytes caps the decoded body read from a page
	DefaultMaxBytes = 5 << 20
)

// FetchConfig configures the page fetcher
type FetchConfig struct {
	UserAgent string
	MaxBytes  int64
}

// FetchedPage is the readable text of a web page. For 403 and 404 responses
// only URL and StatusCode are set.
type FetchedPage struct {
	URL        string
	StatusCode int
	Title      string
	Text       string
}

// Fetcher downloads pages and extracts their text
type Fetcher struct {
	cfg  FetchConfig
	http *HTTPClient
}

// NewFetcher creates a page fetcher
func NewFetcher(cfg FetchConfig, httpClient *HTTPClient) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	return &Fetcher{cfg: cfg, http: httpClient}
}

// Fetch downloads rawURL. 403 and 404 are reported through StatusCode;
// other non-200 responses are *StatusError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchedPage, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid url %q: scheme must be http or https", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	page := &FetchedPage{URL: rawURL}
	err = f.http.Do(ctx, req, func(resp *http.Response) error {
		page.StatusCode = resp.StatusCode
		switch resp.StatusCode {
		case http.StatusOK:
		case http.StatusForbidden, http.StatusNotFound:
			return nil
		default:
			return newStatusError("", rawURL, resp)
		}

		body, err := decodeBody(resp)
		if err != nil {
			return err
		}
		defer body.Close()

		page.Title, page.Text, err = extractText(io.LimitReader(body, f.cfg.MaxBytes))
		return err
	})
	if err != nil {
		return nil, err
	}

	return page, nil
}

// decodeBody undoes the Content-Encoding we asked for. Setting
// Accept-Encoding ourselves disables net/http's transparent gzip.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
		return io.NopCloser(resp.Body), nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		return zr, nil
	case "deflate":
		return flate.NewReader(resp.Body), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}
}

// extractText returns the document title and its visible text with
// whitespace collapsed. Script, style and similar elements are skipped.
func extractText(r io.Reader) (string, string, error) {
	z := html.NewTokenizer(r)

	var (
		title   strings.Builder
		text    strings.Builder
		skip    int
		inTitle bool
	)

	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return collapseSpace(title.String()), collapseSpace(text.String()), nil
			}
			return "", "", z.Err()

		case html.StartTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Svg:
				skip++
			case atom.Title:
				inTitle = true
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Svg:
				if skip > 0 {
					skip--
				}
			case atom.Title:
				inTitle = false
			}

		case html.TextToken:
			switch {
			case inTitle:
				title.Write(z.Text())
			case skip == 0:
				text.Write(z.Text())
				text.WriteByte(' ')
			}
		}
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
