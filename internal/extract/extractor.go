// Package extract parses listing and detail pages of the origin site into
// candidate entries.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

// ErrNoContentRegion marks a listing document without the expected content
// region. The caller treats it as a structural failure worth a bounded retry.
var ErrNoContentRegion = errors.New("content region not found in document")

// ErrAmbiguousMedia marks a detail page with more than one qualifying media
// link for a single entry. Exactly one is expected.
var ErrAmbiguousMedia = errors.New("more than one qualifying media link")

// Candidate is one entry extracted from the listing page, before language
// filtering and storage.
type Candidate struct {
	Title       string
	Body        string
	SourcePath  string
	MediaURL    string // empty when no media could be resolved
	PublishDate time.Time
}

// DocumentFetcher retrieves a raw document body by URL.
type DocumentFetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Config carries the origin-site layout the extractor depends on.
type Config struct {
	// RootURL is the origin root; relative entry paths resolve against it.
	RootURL string
	// MediaURLPrefix qualifies detail-page images as entry media.
	MediaURLPrefix string
	// VideoEmbedPrefix qualifies detail-page iframes as entry videos.
	VideoEmbedPrefix string
}

// Extractor turns one listing document into candidate entries, resolving the
// canonical media link of each from its detail page.
type Extractor struct {
	fetcher    DocumentFetcher
	cfg        Config
	originHost string
}

// New creates an extractor using the given fetcher for detail pages.
func New(fetcher DocumentFetcher, cfg Config) *Extractor {
	host := ""
	if u, err := url.Parse(cfg.RootURL); err == nil {
		host = u.Host
	}
	return &Extractor{fetcher: fetcher, cfg: cfg, originHost: host}
}

// ExtractListing parses a fetched listing document and returns the candidates
// that parsed cleanly, in document order. A block that fails to parse is
// logged and skipped; the rest of the batch continues. A document without a
// content region returns ErrNoContentRegion.
func (e *Extractor) ExtractListing(ctx context.Context, body []byte) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	content := doc.Find("#content")
	if content.Length() == 0 {
		return nil, ErrNoContentRegion
	}

	var candidates []Candidate
	content.Find("p.title").Each(func(i int, block *goquery.Selection) {
		candidate, err := e.extractBlock(ctx, block)
		if err != nil {
			log.Warn().Err(err).Int("index", i).Msg("Skipping listing block")
			return
		}
		candidates = append(candidates, *candidate)
	})

	return candidates, nil
}

// extractBlock parses one title block and enriches it from the detail page.
func (e *Extractor) extractBlock(ctx context.Context, block *goquery.Selection) (*Candidate, error) {
	href, ok := block.Find("a").First().Attr("href")
	if !ok || href == "" {
		return nil, errors.New("title block has no link")
	}
	sourcePath := e.relativePath(href)

	publishDate, err := parseListingDate(block.Find("small b").First().Text())
	if err != nil {
		return nil, fmt.Errorf("block %s: %w", sourcePath, err)
	}

	title := strings.TrimSpace(block.Find("b").First().Text())
	if title == "" {
		return nil, fmt.Errorf("block %s: empty title", sourcePath)
	}

	previewURL, _ := block.Find("a img").First().Attr("src")

	mediaURL, err := e.resolveMedia(ctx, sourcePath)
	if err != nil {
		return nil, err
	}
	if mediaURL == "" {
		mediaURL = previewURL
	}

	abstract := block.NextAllFiltered("p.abstract").First()
	if abstract.Length() == 0 {
		return nil, fmt.Errorf("block %s: no abstract block", sourcePath)
	}
	body := collapseWhitespace(abstract.Find("small").First().Text())
	if body == "" {
		return nil, fmt.Errorf("block %s: empty body", sourcePath)
	}

	return &Candidate{
		Title:       title,
		Body:        body,
		SourcePath:  sourcePath,
		MediaURL:    mediaURL,
		PublishDate: publishDate,
	}, nil
}

// resolveMedia fetches the entry's detail page and scans its content region
// for the canonical media link: a qualifying image first, a qualifying video
// embed second. Exactly one match is expected in either class; more than one
// is ErrAmbiguousMedia. A failed detail fetch is logged and yields no media
// rather than failing the entry.
func (e *Extractor) resolveMedia(ctx context.Context, sourcePath string) (string, error) {
	detailURL := e.cfg.RootURL + sourcePath

	body, err := e.fetcher.Get(ctx, detailURL)
	if err != nil {
		log.Warn().Err(err).Str("source_path", sourcePath).Msg("Failed to fetch detail page, entry keeps no media")
		return "", nil
	}
	if len(body) == 0 {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse detail page %s: %w", sourcePath, err)
	}
	content := doc.Find("#content")

	urls := matchingSources(content.Find("img"), e.cfg.MediaURLPrefix)
	if len(urls) == 0 {
		urls = matchingSources(content.Find("iframe"), e.cfg.VideoEmbedPrefix)
	}

	switch len(urls) {
	case 0:
		return "", nil
	case 1:
		return urls[0], nil
	default:
		return "", fmt.Errorf("%w in %s", ErrAmbiguousMedia, sourcePath)
	}
}

// matchingSources collects src attributes under the given prefix, in document order.
func matchingSources(sel *goquery.Selection, prefix string) []string {
	var urls []string
	sel.Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if ok && strings.HasPrefix(src, prefix) {
			urls = append(urls, src)
		}
	})
	return urls
}

// relativePath strips the origin root from absolute entry links so the stored
// source_path stays relative regardless of how the listing writes it.
func (e *Extractor) relativePath(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.Host != "" && u.Host == e.originHost {
		path := u.Path
		if u.RawQuery != "" {
			path += "?" + u.RawQuery
		}
		return path
	}
	return href
}

// parseListingDate parses the day.month.year token preceding the separator in
// the listing's date field, e.g. "7.3.2024 | Astronomy news".
func parseListingDate(raw string) (time.Time, error) {
	token := strings.TrimSpace(strings.SplitN(raw, " | ", 2)[0])
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("unparseable date %q", raw)
	}

	day, errD := strconv.Atoi(strings.TrimSpace(parts[0]))
	month, errM := strconv.Atoi(strings.TrimSpace(parts[1]))
	year, errY := strconv.Atoi(strings.TrimSpace(parts[2]))
	if errD != nil || errM != nil || errY != nil {
		return time.Time{}, fmt.Errorf("unparseable date %q", raw)
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("date %q out of range", raw)
	}

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

// collapseWhitespace trims the text and squeezes internal whitespace runs
// into single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
