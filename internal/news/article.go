package news

import "time"

// Category is the topical classification assigned to an article.
type Category string

const (
	CategoryCybersecurity   Category = "CYBERSECURITY"
	CategoryAIEmergingTech  Category = "AI_EMERGING_TECH"
	CategorySoftwareDev     Category = "SOFTWARE_DEVELOPMENT"
	CategoryHardwareDevices Category = "HARDWARE_DEVICES"
	CategoryTechBusiness    Category = "TECH_INDUSTRY_BUSINESS"
	CategoryOther           Category = "OTHER"
)

// AllCategories lists every known category in presentation order.
// Category stats must include each of these, zero-filled when absent.
var AllCategories = []Category{
	CategoryCybersecurity,
	CategoryAIEmergingTech,
	CategorySoftwareDev,
	CategoryHardwareDevices,
	CategoryTechBusiness,
	CategoryOther,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ClassificationStatus tracks the lifecycle of an article's classification.
type ClassificationStatus string

const (
	StatusPending   ClassificationStatus = "PENDING"
	StatusCompleted ClassificationStatus = "COMPLETED"
	StatusFailed    ClassificationStatus = "FAILED"
)

// Article is the persisted unit of content. An article is created PENDING
// with no category; a successful classification sets category, score, status,
// and metadata enrichment in one atomic update.
type Article struct {
	ID            string               `json:"id"`
	Title         string               `json:"title"`
	Content       string               `json:"content"`
	Summary       string               `json:"summary,omitempty"`
	URL           string               `json:"url"`
	Source        string               `json:"source"`
	SourceID      string               `json:"sourceId"`
	Author        string               `json:"author,omitempty"`
	PublishedAt   time.Time            `json:"publishedAt"`
	FetchedAt     time.Time            `json:"fetchedAt"`
	Category      *Category            `json:"category,omitempty"`
	CategoryScore *float64             `json:"categoryScore,omitempty"`
	Status        ClassificationStatus `json:"status"`
	Metadata      Metadata             `json:"metadata"`
}

// CategoryCount is one entry of the per-category article stats.
type CategoryCount struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}
