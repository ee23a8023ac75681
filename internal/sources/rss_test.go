package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/newspulse/newspulse/internal/news"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Security Blog</title>
    <item>
      <title>Critical patch released</title>
      <link>https://example.com/posts/patch</link>
      <guid>tag:example.com,2026:patch</guid>
      <description>&lt;p&gt;A fix for the &lt;b&gt;auth bypass&lt;/b&gt;.&lt;/p&gt;</description>
      <category>Security</category>
      <category>Releases</category>
      <pubDate>Mon, 02 Mar 2026 10:00:00 GMT</pubDate>
      <author>jane@example.com (Jane Doe)</author>
    </item>
    <item>
      <title>Item without a link</title>
      <description>should be skipped</description>
    </item>
  </channel>
</rss>`

func TestRSSFetch(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testFeed))
	}))
	defer srv.Close()

	rss := NewRSS("example-blog", srv.URL, "newspulse-test/1.0", srv.Client())
	items, err := rss.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotAgent != "newspulse-test/1.0" {
		t.Errorf("user agent = %q", gotAgent)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want linkless item skipped", len(items))
	}

	item := items[0]
	if item.Title != "Critical patch released" {
		t.Errorf("title = %q", item.Title)
	}
	if item.Source != "example-blog" {
		t.Errorf("source = %q", item.Source)
	}
	if item.URL != "https://example.com/posts/patch" {
		t.Errorf("url = %q", item.URL)
	}
	if item.SourceID != hashLink(item.URL) {
		t.Errorf("source id = %q, want link hash", item.SourceID)
	}
	if item.Content == "" {
		t.Error("description not used as content fallback")
	}
	if item.PublishedAt.IsZero() || item.PublishedAt.Year() != 2026 {
		t.Errorf("published = %v", item.PublishedAt)
	}

	meta := item.Metadata
	if meta.Type != news.SourceTypeRSS {
		t.Errorf("metadata type = %q", meta.Type)
	}
	if meta.FeedURL != srv.URL {
		t.Errorf("feed url = %q", meta.FeedURL)
	}
	if len(meta.RSSCategories) != 2 || meta.RSSCategories[0] != "Security" {
		t.Errorf("categories = %v", meta.RSSCategories)
	}
	if meta.GUID != "tag:example.com,2026:patch" {
		t.Errorf("guid = %q", meta.GUID)
	}
}

func TestRSSFetchBadFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not xml at all"))
	}))
	defer srv.Close()

	rss := NewRSS("broken", srv.URL, "newspulse-test/1.0", srv.Client())
	if _, err := rss.Fetch(context.Background()); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestHashLinkIsStable(t *testing.T) {
	a := hashLink("https://example.com/x")
	b := hashLink("https://example.com/x")
	c := hashLink("https://example.com/y")
	if a != b {
		t.Error("hash not deterministic")
	}
	if a == c {
		t.Error("distinct links collided")
	}
	if len(a) != 32 {
		t.Errorf("hash length = %d, want 32 hex chars", len(a))
	}
}
