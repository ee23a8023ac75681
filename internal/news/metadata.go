package news

import "time"

// SourceType discriminates the metadata variant attached to an article.
type SourceType string

const (
	SourceTypeRSS     SourceType = "rss"
	SourceTypeReddit  SourceType = "reddit"
	SourceTypeUnknown SourceType = "unknown"
)

// Metadata is a tagged union over the source-specific payloads, plus the
// enrichment fields merged in after classification. Only the fields of the
// variant named by Type are meaningful; everything else stays zero.
type Metadata struct {
	Type SourceType `json:"type"`

	// Shared fields.
	Source    string    `json:"source,omitempty"`
	Author    string    `json:"author,omitempty"`
	FetchedAt time.Time `json:"fetchedAt,omitzero"`

	// RSS variant.
	FeedURL       string   `json:"feedUrl,omitempty"`
	RSSCategories []string `json:"rssCategories,omitempty"`
	GUID          string   `json:"guid,omitempty"`

	// Reddit variant.
	Subreddit   string `json:"subreddit,omitempty"`
	Score       int    `json:"score,omitempty"`
	NumComments int    `json:"numComments,omitempty"`
	Permalink   string `json:"permalink,omitempty"`
	ExternalURL string `json:"externalUrl,omitempty"`

	// Classification enrichment, set once the article is classified.
	Enrichment *Enrichment `json:"enrichment,omitempty"`
}

// Enrichment holds the classification details beyond the primary category.
type Enrichment struct {
	SecondaryCategories []SecondaryCategory `json:"secondaryCategories,omitempty"`
	Reasoning           string              `json:"reasoning,omitempty"`
	ClassifiedAt        time.Time           `json:"classifiedAt,omitzero"`
}

// SecondaryCategory is a non-primary category that cleared the confidence
// threshold during classification.
type SecondaryCategory struct {
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
}

// Hints returns the source-side category hints to pass to the classifier.
// Only RSS feeds carry them.
func (m Metadata) Hints() []string {
	if m.Type != SourceTypeRSS {
		return nil
	}
	return m.RSSCategories
}

// IsEnriched reports whether classification enrichment has been merged in.
func (m Metadata) IsEnriched() bool {
	return m.Enrichment != nil && !m.Enrichment.ClassifiedAt.IsZero()
}
