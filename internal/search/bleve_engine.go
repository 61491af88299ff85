package search

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/pders01/headlines/internal/debuglog"
	"github.com/pders01/headlines/internal/storage"
)

const DefaultLimit = 20

type field struct {
	name        string
	boost       float64
	prefixBoost float64
}

var searchFields = []field{
	{"title", 4.0, 3.5},
	{"description", 2.0, 1.8},
	{"content", 1.0, 0.8},
	{"source", 1.5, 1.2},
	{"url", 0.5, 0.3},
}

type BleveEngine struct {
	source Source
	idx    bleve.Index
}

var _ Searcher = (*BleveEngine)(nil)
var _ storage.UpdateListener = (*BleveEngine)(nil)

// NewBleveEngine opens or creates the index at indexPath and indexes the
// current catalog. An empty indexPath keeps the index in memory.
func NewBleveEngine(source Source, indexPath string) (*BleveEngine, error) {
	idx, err := openIndex(indexPath)
	if err != nil {
		return nil, err
	}

	be := &BleveEngine{source: source, idx: idx}
	if err := be.reindexAll(); err != nil {
		idx.Close()
		return nil, fmt.Errorf("indexing catalog: %w", err)
	}
	return be, nil
}

func openIndex(indexPath string) (bleve.Index, error) {
	if indexPath == "" {
		return bleve.NewMemOnly(buildIndexMapping())
	}

	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	idx, err := bleve.Open(indexPath)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(indexPath, buildIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("opening search index: %w", err)
	}
	return idx, nil
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	dm := bleve.NewDocumentMapping()

	title := bleve.NewTextFieldMapping()
	title.Analyzer = standard.Name
	title.Store = true
	title.IncludeTermVectors = true

	desc := bleve.NewTextFieldMapping()
	desc.Analyzer = standard.Name
	desc.Store = true

	content := bleve.NewTextFieldMapping()
	content.Analyzer = standard.Name
	content.Store = false

	source := bleve.NewTextFieldMapping()
	source.Analyzer = standard.Name
	source.Store = true

	url := bleve.NewTextFieldMapping()
	url.Analyzer = standard.Name
	url.Store = true

	category := bleve.NewTextFieldMapping()
	category.Analyzer = keyword.Name
	category.Store = true

	dm.AddFieldMappingsAt("title", title)
	dm.AddFieldMappingsAt("description", desc)
	dm.AddFieldMappingsAt("content", content)
	dm.AddFieldMappingsAt("source", source)
	dm.AddFieldMappingsAt("url", url)
	dm.AddFieldMappingsAt("category", category)

	im.DefaultMapping = dm
	return im
}

func document(a *storage.Article) map[string]any {
	return map[string]any{
		"title":       a.Title,
		"description": a.Description,
		"content":     a.Content,
		"source":      a.SourceName,
		"url":         a.URL,
		"category":    string(a.Category),
	}
}

func (b *BleveEngine) reindexAll() error {
	articles, err := b.source.GetAllArticles()
	if err != nil {
		return err
	}

	batch := b.idx.NewBatch()
	for _, a := range articles {
		if err := batch.Index(a.ID, document(a)); err != nil {
			return err
		}
	}
	if err := b.idx.Batch(batch); err != nil {
		return err
	}
	debuglog.Debugf("search index loaded %d articles", len(articles))
	return nil
}

// Search runs a boosted OR over every term in query, matching whole terms
// and prefixes. Queries shorter than two characters return nothing.
func (b *BleveEngine) Search(query string, limit int) ([]*Result, error) {
	if len(strings.TrimSpace(query)) < 2 {
		return []*Result{}, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	var qs []bleveQuery.Query
	for _, tok := range tokenize(query) {
		for _, f := range searchFields {
			m := bleve.NewMatchQuery(tok)
			m.SetField(f.name)
			m.SetBoost(f.boost)
			qs = append(qs, m)

			p := bleve.NewPrefixQuery(tok)
			p.SetField(f.name)
			p.SetBoost(f.prefixBoost)
			qs = append(qs, p)
		}
	}
	if len(qs) == 0 {
		return []*Result{}, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(qs...), limit, 0, false)
	req.Fields = []string{"title", "description", "source", "url", "category"}
	res, err := b.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	out := make([]*Result, 0, len(res.Hits))
	for _, h := range res.Hits {
		article, err := b.source.GetArticle(h.ID)
		if err != nil {
			// Fall back to the stored fields when the catalog entry is gone.
			article = &storage.Article{ID: h.ID}
			if t, ok := h.Fields["title"].(string); ok {
				article.Title = t
			}
			if d, ok := h.Fields["description"].(string); ok {
				article.Description = d
			}
			if s, ok := h.Fields["source"].(string); ok {
				article.SourceName = s
			}
			if u, ok := h.Fields["url"].(string); ok {
				article.URL = u
			}
		}
		out = append(out, &Result{Article: article, Score: h.Score})
	}
	return out, nil
}

// OnArticleSaved indexes (or re-indexes) one catalog article.
func (b *BleveEngine) OnArticleSaved(article *storage.Article) {
	if article == nil {
		return
	}
	if err := b.idx.Index(article.ID, document(article)); err != nil {
		debuglog.Warnf("indexing article %s: %v", article.ID, err)
	}
}

// DocCount reports total documents in the index.
func (b *BleveEngine) DocCount() (int, error) {
	n, err := b.idx.DocCount()
	return int(n), err
}

func (b *BleveEngine) Close() error {
	return b.idx.Close()
}
