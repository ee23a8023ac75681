package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/newspulse/newspulse/internal/ingest"
	"github.com/newspulse/newspulse/internal/news"
)

// redditPostLimit is how many posts one fetch pulls from a subreddit.
const redditPostLimit = 20

// Reddit fetches hot posts from one subreddit through the public JSON
// listing endpoint. No OAuth; reddit throttles by user agent, so the agent
// string must identify this service.
type Reddit struct {
	subreddit string
	userAgent string
	client    *http.Client
}

// NewReddit creates an adapter for a single subreddit.
func NewReddit(subreddit, userAgent string, client *http.Client) *Reddit {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Reddit{subreddit: subreddit, userAgent: userAgent, client: client}
}

func (r *Reddit) Name() string { return "reddit/" + r.subreddit }

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	SelfText    string  `json:"selftext"`
	Author      string  `json:"author"`
	Permalink   string  `json:"permalink"`
	URL         string  `json:"url"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	Stickied    bool    `json:"stickied"`
}

// Fetch pulls the hot listing and converts its posts. The canonical URL is
// the reddit permalink; link posts keep their external target in metadata.
func (r *Reddit) Fetch(ctx context.Context) ([]ingest.RawArticle, error) {
	endpoint := fmt.Sprintf("https://www.reddit.com/r/%s/hot.json?limit=%d", r.subreddit, redditPostLimit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building reddit request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching r/%s: %w", r.subreddit, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitedError{Source: r.Name(), RetryAfter: retryAfterHeader(resp)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching r/%s: unexpected status %d", r.subreddit, resp.StatusCode)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decoding r/%s listing: %w", r.subreddit, err)
	}

	now := time.Now().UTC()
	items := make([]ingest.RawArticle, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Stickied || post.ID == "" {
			continue
		}

		permalink := "https://www.reddit.com" + post.Permalink
		externalURL := ""
		if post.URL != permalink && post.URL != "" {
			externalURL = post.URL
		}

		items = append(items, ingest.RawArticle{
			Title:       post.Title,
			Content:     post.SelfText,
			URL:         permalink,
			Source:      "reddit",
			SourceID:    post.ID,
			Author:      post.Author,
			PublishedAt: time.Unix(int64(post.CreatedUTC), 0).UTC(),
			Metadata: news.Metadata{
				Type:        news.SourceTypeReddit,
				Source:      "reddit",
				Author:      post.Author,
				FetchedAt:   now,
				Subreddit:   r.subreddit,
				Score:       post.Score,
				NumComments: post.NumComments,
				Permalink:   permalink,
				ExternalURL: externalURL,
			},
		})
	}
	return items, nil
}

// retryAfterHeader reads the Retry-After seconds hint, defaulting to one
// minute when the header is absent or malformed.
func retryAfterHeader(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Minute
}
