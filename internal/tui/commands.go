package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pders01/headlines/internal/news"
	"github.com/pders01/headlines/internal/storage"
)

const searchDebounce = 200 * time.Millisecond

func errCmd(err error) tea.Cmd {
	return func() tea.Msg { return errorMsg{err: err} }
}

// fetchHeadlines starts a fetch for the current query with the spinner
// running.
func (a *App) fetchHeadlines() tea.Cmd {
	a.loading = true
	a.setStatus(MsgFetching, StatusInfo)
	return tea.Batch(a.spinner.Tick, a.loadHeadlines())
}

func (a *App) loadHeadlines() tea.Cmd {
	src, userID, q, timeout := a.deps.Headlines, a.userID, a.query, a.fetchTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		result, err := src.Headlines(ctx, userID, q)
		if err != nil {
			return errorMsg{err: wrapErr("fetching headlines", err)}
		}
		return headlinesLoadedMsg{result: result}
	}
}

func (a *App) loadSaved() tea.Cmd {
	if a.userID == "" || a.deps.Library == nil {
		return nil
	}
	lib, userID := a.deps.Library, a.userID
	return func() tea.Msg {
		items, total, err := lib.ListUserArticles(userID, storage.ArticleFilter{
			PageSize: storage.MaxPageSize,
			SortBy:   storage.SortByUpdated,
		})
		if err != nil {
			return errorMsg{err: wrapErr("loading library", err)}
		}
		return savedLoadedMsg{items: items, total: total}
	}
}

func (a *App) saveArticle(sel *selection) tea.Cmd {
	lib, userID := a.deps.Library, a.userID
	in := storage.SaveInput{
		Article:  sel.article,
		Category: a.query.Category,
		Language: a.query.Language,
		Country:  a.query.Country,
	}
	return func() tea.Msg {
		saved, err := lib.SaveArticle(userID, in)
		if err != nil {
			return errorMsg{err: wrapErr("saving article", err)}
		}
		return articleSavedMsg{saved: saved}
	}
}

func (a *App) toggleBookmark(articleID string) tea.Cmd {
	lib, userID := a.deps.Library, a.userID
	return func() tea.Msg {
		ua, err := lib.ToggleBookmark(userID, articleID)
		if err != nil {
			return errorMsg{err: wrapErr("bookmarking", err)}
		}
		return interactionMsg{interaction: ua, status: MsgBookmarked(ua.Bookmarked)}
	}
}

func (a *App) markRead(articleID string) tea.Cmd {
	lib, userID := a.deps.Library, a.userID
	return func() tea.Msg {
		ua, err := lib.MarkRead(userID, articleID)
		if err != nil {
			return errorMsg{err: wrapErr("marking read", err)}
		}
		return interactionMsg{interaction: ua, status: MsgMarkedRead}
	}
}

func (a *App) rate(articleID string, rating int) tea.Cmd {
	lib, userID := a.deps.Library, a.userID
	return func() tea.Msg {
		ua, err := lib.Rate(userID, articleID, rating)
		if err != nil {
			return errorMsg{err: wrapErr("rating", err)}
		}
		return interactionMsg{interaction: ua, status: MsgRated(ua.Rating)}
	}
}

func (a *App) removeArticle(articleID string) tea.Cmd {
	lib, userID := a.deps.Library, a.userID
	return func() tea.Msg {
		if err := lib.RemoveArticle(userID, articleID); err != nil {
			return errorMsg{err: wrapErr("removing article", err)}
		}
		return articleRemovedMsg{articleID: articleID}
	}
}

func (a *App) openURL(url string) tea.Cmd {
	opener := a.deps.Opener
	return func() tea.Msg {
		if err := opener.Open(url); err != nil {
			return errorMsg{err: wrapErr("opening browser", err)}
		}
		return openedMsg{url: url}
	}
}

func (a *App) renderArticle(sel *selection) tea.Cmd {
	md := articleMarkdown(sel)
	return func() tea.Msg {
		r, err := a.getRenderer()
		if err != nil {
			return articleRenderedMsg{content: MsgRenderFailed + ": " + err.Error()}
		}
		out, err := r.Render(md)
		if err != nil {
			return articleRenderedMsg{content: MsgRenderFailed + ": " + err.Error()}
		}
		return articleRenderedMsg{content: out}
	}
}

// scheduleSearch debounces typing in the search box: only the newest
// keystroke's timer runs the query.
func (a *App) scheduleSearch(query string) tea.Cmd {
	a.searchSeq++
	seq := a.searchSeq
	query = strings.TrimSpace(query)
	if len([]rune(query)) < 2 {
		a.searchList.SetItems(nil)
		return nil
	}
	return tea.Tick(searchDebounce, func(time.Time) tea.Msg {
		return searchDebounceMsg{seq: seq, query: query}
	})
}

func (a *App) performSearch(query string) tea.Cmd {
	s := a.deps.Search
	return func() tea.Msg {
		results, err := s.Search(query, searchLimit)
		if err != nil {
			return errorMsg{err: wrapErr("searching", err)}
		}
		return searchResultsMsg{query: query, results: results}
	}
}

// articleMarkdown lays out one article for the reader.
func articleMarkdown(sel *selection) string {
	a := sel.article
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", a.Title)

	var meta []string
	if a.SourceName != "" {
		meta = append(meta, a.SourceName)
	}
	if a.Author != "" {
		meta = append(meta, a.Author)
	}
	if !a.PublishedAt.IsZero() {
		meta = append(meta, a.PublishedAt.Format(time.RFC1123))
	}
	if len(meta) > 0 {
		fmt.Fprintf(&b, "*%s*\n\n", strings.Join(meta, " · "))
	}

	if ua := sel.interaction; ua != nil {
		state := []string{"in your library"}
		if ua.Bookmarked {
			state = append(state, "bookmarked")
		}
		if ua.Read {
			state = append(state, "read")
		}
		if ua.Rating > 0 {
			state = append(state, ratingStars(ua.Rating))
		}
		fmt.Fprintf(&b, "**%s**\n\n", strings.Join(state, " · "))
	}

	if a.URL != "" {
		fmt.Fprintf(&b, "[Read online](%s)\n\n", a.URL)
	}
	b.WriteString("---\n\n")

	switch {
	case a.Content != "":
		b.WriteString(a.Content)
	case a.Description != "":
		b.WriteString(a.Description)
	default:
		b.WriteString("*No summary available.*")
	}
	b.WriteString("\n")
	return b.String()
}

// nextCategory cycles through "all categories" and then each known one.
func nextCategory(c news.Category) news.Category {
	all := news.Categories()
	if c == "" {
		return all[0]
	}
	for i, known := range all {
		if known == c && i+1 < len(all) {
			return all[i+1]
		}
	}
	return ""
}
