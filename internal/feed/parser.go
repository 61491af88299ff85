// Package feed fetches RSS/Atom documents and maps their items to articles.
package feed

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/pders01/headlines/internal/news"
)

var (
	imgRegex   = regexp.MustCompile(`<img[^>]+src=["']([^"']+)["']`)
	videoRegex = regexp.MustCompile(`<video[^>]+src=["']([^"']+)["']`)
	tagRegex   = regexp.MustCompile(`<[^>]*>`)
)

type Parser struct {
	parser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		parser: gofeed.NewParser(),
	}
}

// Parse reads a feed and returns its items as articles. Items without a
// link are skipped since the link is the article identity.
func (p *Parser) Parse(reader io.Reader) ([]news.Article, error) {
	feed, err := p.parser.Parse(reader)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	articles := make([]news.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}

		article := news.Article{
			Title:       strings.TrimSpace(item.Title),
			Description: stripTags(item.Description),
			Content:     getContent(item),
			URL:         item.Link,
			SourceName:  feed.Title,
			Author:      authorName(item),
		}

		if media := extractMediaURLs(item); len(media) > 0 {
			article.ImageURL = media[0]
		}

		if item.PublishedParsed != nil {
			article.PublishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			article.PublishedAt = *item.UpdatedParsed
		}

		articles = append(articles, article)
	}

	return articles, nil
}

func getContent(item *gofeed.Item) string {
	if item.Content != "" {
		return item.Content
	}
	return item.Description
}

func authorName(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			return a.Name
		}
	}
	return ""
}

func stripTags(html string) string {
	return strings.TrimSpace(tagRegex.ReplaceAllString(html, ""))
}

func extractMediaURLs(item *gofeed.Item) []string {
	var urls []string

	if item.Image != nil && item.Image.URL != "" {
		urls = append(urls, item.Image.URL)
	}

	for _, enclosure := range item.Enclosures {
		if enclosure.URL != "" {
			urls = append(urls, enclosure.URL)
		}
	}

	content := item.Content + " " + item.Description
	urls = append(urls, findMediaInHTML(content)...)

	return uniqueStrings(urls)
}

func findMediaInHTML(html string) []string {
	var urls []string

	for _, match := range imgRegex.FindAllStringSubmatch(html, -1) {
		if len(match) > 1 {
			urls = append(urls, match[1])
		}
	}

	for _, match := range videoRegex.FindAllStringSubmatch(html, -1) {
		if len(match) > 1 {
			urls = append(urls, match[1])
		}
	}

	return urls
}

func uniqueStrings(strs []string) []string {
	seen := make(map[string]bool)
	result := []string{}
	for _, s := range strs {
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	return result
}
