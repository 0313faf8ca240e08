// Package rss provides feed fetching and parsing.
package rss

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// Item is a single entry from a podcast feed. Only the fields the
// ingestion pipeline consumes are extracted; audio enclosures and
// durations are presentation concerns and left to the UI layer.
type Item struct {
	Title       string
	Description string
	GUID        string
	Link        string
	PublishedAt *time.Time
}

// Feed is a parsed podcast feed.
type Feed struct {
	Title string
	Items []Item
}

// Parser fetches and parses RSS/Atom feeds.
type Parser struct {
	parser *gofeed.Parser
}

// NewParser creates a feed parser.
func NewParser() *Parser {
	return &Parser{parser: gofeed.NewParser()}
}

// Parse fetches and parses the feed at the given URL.
func (p *Parser) Parse(ctx context.Context, feedURL string) (*Feed, error) {
	parsed, err := p.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	feed := &Feed{Title: parsed.Title}
	if feed.Title == "" {
		feed.Title = "Untitled Feed"
	}
	for _, item := range parsed.Items {
		title := item.Title
		if title == "" {
			title = "Untitled Episode"
		}
		guid := item.GUID
		if guid == "" {
			guid = item.Link
		}
		feed.Items = append(feed.Items, Item{
			Title:       title,
			Description: CleanDescription(pickDescription(item)),
			GUID:        guid,
			Link:        item.Link,
			PublishedAt: item.PublishedParsed,
		})
	}
	return feed, nil
}

// pickDescription prefers the short description over the full content
// body, mirroring what podcast feeds put in each field.
func pickDescription(item *gofeed.Item) string {
	if item.Description != "" {
		return item.Description
	}
	return item.Content
}

// CleanDescription reduces an HTML feed description to plain text so
// the enrichment prompt and stored transcript are not littered with
// markup. Non-HTML input passes through with whitespace collapsed.
func CleanDescription(s string) string {
	if s == "" {
		return ""
	}
	if strings.Contains(s, "<") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
		if err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

// ValidateURL reports whether the URL looks like a fetchable feed
// address (absolute http or https).
func ValidateURL(feedURL string) bool {
	u, err := url.Parse(feedURL)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
