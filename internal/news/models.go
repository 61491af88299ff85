package news

import (
	"time"
)

type Category string

const (
	CategoryBusiness      Category = "business"
	CategoryEntertainment Category = "entertainment"
	CategoryGeneral       Category = "general"
	CategoryHealth        Category = "health"
	CategoryScience       Category = "science"
	CategorySports        Category = "sports"
	CategoryTechnology    Category = "technology"
)

var categories = []Category{
	CategoryBusiness,
	CategoryEntertainment,
	CategoryGeneral,
	CategoryHealth,
	CategoryScience,
	CategorySports,
	CategoryTechnology,
}

// Categories returns the supported categories in their canonical order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// Article is the provider-independent shape every adapter maps into.
// URL is the identity used for deduplication.
type Article struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"imageUrl"`
	PublishedAt time.Time `json:"publishedAt"`
	SourceName  string    `json:"sourceName"`
	SourceID    string    `json:"sourceId"`
	Author      string    `json:"author"`
}

type ProviderResult struct {
	Articles     []Article `json:"articles"`
	TotalResults int       `json:"totalResults"`
	ProviderName string    `json:"provider"`
}

// Clone returns a copy whose article slice does not alias the receiver's.
func (r *ProviderResult) Clone() *ProviderResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Articles = append([]Article(nil), r.Articles...)
	return &out
}

// AggregatedResult is the merged view over every provider that answered.
// TotalResults is the sum of the upstream totals, not len(Articles).
type AggregatedResult struct {
	Articles      []Article `json:"articles"`
	TotalResults  int       `json:"totalResults"`
	Providers     []string  `json:"sources"`
	PartialErrors []string  `json:"errors,omitempty"`
}

type UserPreferences struct {
	Categories []Category `json:"categories" param:"categories" validate:"max=7,dive,oneof=business entertainment general health science sports technology"`
	Sources    []string   `json:"sources" param:"sources" validate:"max=20,dive,required,max=100"`
	Keywords   []string   `json:"keywords" param:"keywords" validate:"max=20,dive,required,max=100"`
	Language   string     `json:"language" param:"language" validate:"omitempty,len=2,lowercase"`
	Country    string     `json:"country" param:"country" validate:"omitempty,len=2,lowercase"`
}
