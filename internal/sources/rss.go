package sources

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/newspulse/newspulse/internal/ingest"
	"github.com/newspulse/newspulse/internal/news"
)

// RSS fetches one feed. The feed-declared categories travel with each item
// as classification hints.
type RSS struct {
	name    string
	feedURL string
	parser  *gofeed.Parser
}

// NewRSS creates an adapter for a single feed. name becomes the article
// source label.
func NewRSS(name, feedURL, userAgent string, client *http.Client) *RSS {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	if client != nil {
		parser.Client = client
	}
	return &RSS{name: name, feedURL: feedURL, parser: parser}
}

func (r *RSS) Name() string { return r.name }

// Fetch parses the feed and converts its items. Items without a link are
// skipped; the link hash is the stable per-source identity because many
// feeds omit or recycle GUIDs.
func (r *RSS) Fetch(ctx context.Context) ([]ingest.RawArticle, error) {
	feed, err := r.parser.ParseURLWithContext(r.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", r.feedURL, err)
	}

	now := time.Now().UTC()
	items := make([]ingest.RawArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}

		published := now
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC()
		}

		author := ""
		if len(item.Authors) > 0 {
			author = item.Authors[0].Name
		}

		items = append(items, ingest.RawArticle{
			Title:       item.Title,
			Content:     content,
			URL:         item.Link,
			Source:      r.name,
			SourceID:    hashLink(item.Link),
			Author:      author,
			PublishedAt: published,
			Metadata: news.Metadata{
				Type:          news.SourceTypeRSS,
				Source:        r.name,
				Author:        author,
				FetchedAt:     now,
				FeedURL:       r.feedURL,
				RSSCategories: item.Categories,
				GUID:          item.GUID,
			},
		})
	}
	return items, nil
}

func hashLink(link string) string {
	sum := md5.Sum([]byte(link))
	return hex.EncodeToString(sum[:])
}
