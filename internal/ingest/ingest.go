// Package ingest pulls RSS and Atom feeds into the news collections.
//
// FLOW:
//
//	Run(feeds) ──► one goroutine per feed (at most Limit at a time)
//	                 fetch + parse with gofeed
//	                 for each entry, oldest first:
//	                   clean description (goquery), pick an image
//	                   skip if the collection already links to it
//	                   content.Store.Add  (newest entry ends at the head)
//
// One broken feed never stops the others: its error is logged and listed
// in the Report.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/nexusmena/internal/apperror"
	"github.com/sakif/nexusmena/internal/config"
	"github.com/sakif/nexusmena/internal/content"
	"github.com/sakif/nexusmena/internal/model"
)

const (
	DefaultLimit    = 4
	DefaultMaxItems = 20
	DefaultTimeout  = 20 * time.Second

	maxDescriptionRunes = 500
	maxTags             = 3
)

// Feed is one configured source.
type Feed struct {
	URL    string
	Kind   model.Kind // KindNews or KindStartup
	Source string     // shown on cards; the feed's own title when empty
	Region model.Region
}

// FromConfig converts configured feeds. Unknown kinds fall back to news;
// config.Validate has already rejected anything else.
func FromConfig(cfgs []config.FeedConfig) []Feed {
	feeds := make([]Feed, 0, len(cfgs))
	for _, c := range cfgs {
		kind, ok := model.ParseKind(c.Kind)
		if !ok || kind != model.KindStartup {
			kind = model.KindNews
		}
		feeds = append(feeds, Feed{URL: c.URL, Kind: kind, Source: c.Source, Region: model.Region(c.Region)})
	}
	return feeds
}

// Report summarises one Run.
type Report struct {
	Feeds   int      `json:"feeds"`
	Added   int      `json:"added"`
	Skipped int      `json:"skipped"` // already present or unusable
	Failed  []string `json:"failed,omitempty"`
}

type Ingester struct {
	store    *content.Store
	client   *http.Client
	limit    int
	maxItems int
	timeout  time.Duration
	logger   *slog.Logger

	// serialises the ContainsURL check with the Add that follows it
	mu sync.Mutex
}

type Option func(*Ingester)

func WithHTTPClient(c *http.Client) Option { return func(i *Ingester) { i.client = c } }

// WithLimit bounds how many feeds are fetched at once.
func WithLimit(n int) Option { return func(i *Ingester) { i.limit = n } }

// WithMaxItems bounds how many entries of each feed are considered.
func WithMaxItems(n int) Option { return func(i *Ingester) { i.maxItems = n } }

// WithTimeout bounds each feed fetch.
func WithTimeout(d time.Duration) Option { return func(i *Ingester) { i.timeout = d } }

func New(store *content.Store, logger *slog.Logger, opts ...Option) *Ingester {
	i := &Ingester{
		store:    store,
		client:   http.DefaultClient,
		limit:    DefaultLimit,
		maxItems: DefaultMaxItems,
		timeout:  DefaultTimeout,
		logger:   logger,
	}
	for _, o := range opts {
		o(i)
	}
	if i.timeout <= 0 {
		i.timeout = DefaultTimeout
	}
	if i.limit <= 0 {
		i.limit = DefaultLimit
	}
	return i
}

// Run ingests every feed. The only error is a cancelled ctx; per-feed
// failures are reported, not returned.
func (i *Ingester) Run(ctx context.Context, feeds []Feed) (Report, error) {
	var (
		mu     sync.Mutex
		report = Report{Feeds: len(feeds)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.limit)
	for _, f := range feeds {
		g.Go(func() error {
			added, skipped, err := i.ingestFeed(gctx, f)
			mu.Lock()
			defer mu.Unlock()
			report.Added += added
			report.Skipped += skipped
			if err != nil {
				i.logger.Warn("feed ingest failed", slog.String("feed", f.URL), slog.String("error", err.Error()))
				report.Failed = append(report.Failed, f.URL)
			}
			return nil // non-fatal
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("ingest: %w", err)
	}
	i.logger.Info("feeds ingested",
		slog.Int("feeds", report.Feeds),
		slog.Int("added", report.Added),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", len(report.Failed)),
	)
	return report, nil
}

func (i *Ingester) ingestFeed(ctx context.Context, f Feed) (added, skipped int, err error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	parser := gofeed.NewParser()
	parser.Client = i.client
	parser.UserAgent = "NexusMena-Ingest/1.0"

	feed, err := parser.ParseURLWithContext(f.URL, ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing %s: %w", f.URL, err)
	}

	entries := feed.Items
	if len(entries) > i.maxItems {
		entries = entries[:i.maxItems]
	}
	source := f.Source
	if source == "" {
		source = strings.TrimSpace(feed.Title)
	}

	// Feeds list newest first; Add prepends, so walk backwards.
	for j := len(entries) - 1; j >= 0; j-- {
		d, ok := draftFrom(entries[j], f, source)
		if !ok {
			skipped++
			continue
		}
		ok, err := i.add(f.Kind, d)
		if err != nil {
			if errors.Is(err, apperror.ErrValidation) {
				skipped++
				continue
			}
			return added, skipped, err
		}
		if ok {
			added++
		} else {
			skipped++
		}
	}
	return added, skipped, nil
}

func (i *Ingester) add(kind model.Kind, d content.Draft) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.store.ContainsURL(kind, d.URL) {
		return false, nil
	}
	if _, err := i.store.Add(kind, d); err != nil {
		return false, err
	}
	return true, nil
}

func draftFrom(it *gofeed.Item, f Feed, source string) (content.Draft, bool) {
	title := strings.TrimSpace(it.Title)
	link := strings.TrimSpace(it.Link)
	if title == "" || link == "" {
		return content.Draft{}, false
	}

	body := it.Description
	if body == "" {
		body = it.Content
	}
	desc := truncate(cleanHTML(body), maxDescriptionRunes)
	if desc == "" {
		desc = title
	}

	d := content.Draft{
		Title:       title,
		Description: desc,
		Source:      source,
		URL:         link,
		Region:      f.Region,
		ImageURL:    imageOf(it),
	}
	if it.PublishedParsed != nil {
		d.Date = model.NewDate(*it.PublishedParsed)
	}
	if len(it.Categories) > 0 {
		tags := it.Categories
		if len(tags) > maxTags {
			tags = tags[:maxTags]
		}
		d.News = &model.News{Tags: tags}
	}
	return d, true
}

// imageOf prefers the entry's declared image, then an image enclosure,
// then the first <img> in its HTML.
func imageOf(it *gofeed.Item) string {
	if it.Image != nil && it.Image.URL != "" {
		return it.Image.URL
	}
	for _, enc := range it.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	for _, html := range []string{it.Content, it.Description} {
		if src := firstImage(html); src != "" {
			return src
		}
	}
	return ""
}

// cleanHTML strips tags and collapses whitespace.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func firstImage(s string) string {
	if !strings.Contains(s, "<img") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img[src]").First().Attr("src")
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return ""
	}
	return src
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-3])) + "..."
}
