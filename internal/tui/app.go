// Package tui is the interactive terminal browser over aggregated headlines
// and a user's saved-article library.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/pders01/headlines/internal/news"
	"github.com/pders01/headlines/internal/search"
	"github.com/pders01/headlines/internal/storage"
)

// HeadlineSource serves personalized, aggregated headlines.
type HeadlineSource interface {
	Headlines(ctx context.Context, userID string, q news.NewsQuery) (*news.AggregatedResult, error)
}

// Library is the per-user saved-article store.
type Library interface {
	SaveArticle(userID string, in storage.SaveInput) (*storage.SavedArticle, error)
	ToggleBookmark(userID, articleID string) (*storage.UserArticle, error)
	MarkRead(userID, articleID string) (*storage.UserArticle, error)
	Rate(userID, articleID string, rating int) (*storage.UserArticle, error)
	RemoveArticle(userID, articleID string) error
	ListUserArticles(userID string, filter storage.ArticleFilter) ([]storage.SavedArticle, int, error)
}

type Searcher interface {
	Search(query string, limit int) ([]*search.Result, error)
}

type URLOpener interface {
	Open(rawURL string) error
}

type Deps struct {
	Headlines HeadlineSource
	Library   Library
	Search    Searcher
	Opener    URLOpener
}

type Options struct {
	// UserID personalizes headlines and owns the library. Empty browses
	// anonymously with library actions disabled.
	UserID string
	// Query is the initial headline query.
	Query news.NewsQuery
	// Modifier is the key prefix for commands, "ctrl" or "alt".
	Modifier string
	// FetchTimeout bounds one headline fetch.
	FetchTimeout time.Duration
}

const (
	defaultFetchTimeout = 30 * time.Second
	searchLimit         = 50
)

// selection is the article an action applies to. id is empty until the
// article is in the catalog.
type selection struct {
	article     news.Article
	id          string
	interaction *storage.UserArticle
}

type App struct {
	deps         Deps
	userID       string
	query        news.NewsQuery
	fetchTimeout time.Duration

	keyHandler   *KeyHandler
	headlineList list.Model
	savedList    list.Model
	searchList   list.Model
	queryInput   textinput.Model
	searchInput  textinput.Model
	viewport     viewport.Model
	spinner      spinner.Model

	view         View
	previousView View
	loading      bool
	status       string
	statusKind   StatusKind
	err          error

	result     *news.AggregatedResult
	saved      []storage.SavedArticle
	savedByURL map[string]storage.SavedArticle
	current    *selection
	searchSeq  int

	width           int
	height          int
	glamourRenderer *glamour.TermRenderer
	rendererWidth   int
	rendering       bool
}

func newList(title string, filtering bool) list.Model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(filtering)
	l.SetShowHelp(false)
	return l
}

func NewApp(deps Deps, opts Options) *App {
	query := opts.Query.WithDefaults()
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	qi := textinput.New()
	qi.Placeholder = "Search terms, e.g. climate AND policy"
	qi.CharLimit = 500

	si := textinput.New()
	si.Placeholder = "Search saved articles..."

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(AccentColor)

	app := &App{
		deps:         deps,
		userID:       opts.UserID,
		query:        query,
		fetchTimeout: timeout,
		headlineList: newList("› headlines", true),
		savedList:    newList("› saved", true),
		searchList:   newList("› search results", false),
		queryInput:   qi,
		searchInput:  si,
		viewport:     viewport.New(0, 0),
		spinner:      sp,
		view:         ViewHeadlines,
		previousView: ViewHeadlines,
		savedByURL:   map[string]storage.SavedArticle{},
	}
	app.keyHandler = NewKeyHandler(app, opts.Modifier)
	return app
}

func (a *App) getRenderer() (*glamour.TermRenderer, error) {
	wrap := (a.width * 9) / 10
	if wrap > 120 {
		wrap = 120
	}
	if wrap < 40 {
		wrap = 40
	}

	if a.glamourRenderer == nil || abs(a.rendererWidth-wrap) > 10 {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wrap),
		)
		if err != nil {
			return nil, err
		}
		a.glamourRenderer = r
		a.rendererWidth = wrap
	}
	return a.glamourRenderer, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (a *App) setStatus(text string, kind StatusKind) {
	a.status = text
	a.statusKind = kind
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.fetchHeadlines(), a.loadSaved())
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		listHeight := msg.Height - 4
		a.headlineList.SetSize(msg.Width, listHeight)
		a.savedList.SetSize(msg.Width, listHeight)
		searchHeight := msg.Height - 10
		if searchHeight < 5 {
			searchHeight = 5
		}
		a.searchList.SetSize(msg.Width, searchHeight)
		a.viewport.Width = msg.Width
		a.viewport.Height = listHeight

		inputWidth := msg.Width - 8
		if inputWidth < 20 {
			inputWidth = msg.Width
		}
		a.queryInput.Width = inputWidth
		a.searchInput.Width = inputWidth

	case tea.KeyMsg:
		return a.keyHandler.HandleKey(msg)

	case spinner.TickMsg:
		if !a.loading {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case headlinesLoadedMsg:
		a.loading = false
		a.result = msg.result
		a.refreshHeadlineItems()
		a.headlineList.Select(0)
		switch {
		case len(msg.result.Articles) == 0:
			a.setStatus(MsgNoHeadlines, StatusWarn)
		case len(msg.result.PartialErrors) > 0:
			a.setStatus(MsgHeadlinesSummary(len(msg.result.Articles), msg.result.TotalResults,
				msg.result.Providers, len(msg.result.PartialErrors)), StatusWarn)
		default:
			a.setStatus(MsgHeadlinesSummary(len(msg.result.Articles), msg.result.TotalResults,
				msg.result.Providers, 0), StatusInfo)
		}

	case savedLoadedMsg:
		a.saved = msg.items
		a.savedByURL = make(map[string]storage.SavedArticle, len(msg.items))
		items := make([]list.Item, len(msg.items))
		for i, sa := range msg.items {
			a.savedByURL[sa.Article.URL] = sa
			items[i] = savedItem{saved: sa}
		}
		a.savedList.SetItems(items)
		a.savedList.Title = fmt.Sprintf("› saved (%d)", msg.total)
		a.refreshHeadlineItems()
		if a.current != nil && a.current.id == "" {
			if sa, ok := a.savedByURL[a.current.article.URL]; ok {
				a.current.id = sa.Article.ID
				a.current.interaction = sa.Interaction
			}
		}

	case articleRenderedMsg:
		if a.view == ViewReader {
			a.viewport.SetContent(msg.content)
			a.viewport.GotoTop()
			a.rendering = false
		}

	case articleSavedMsg:
		a.setStatus(MsgSaved, StatusSuccess)
		if a.current != nil && a.current.article.URL == msg.saved.Article.URL {
			a.current.id = msg.saved.Article.ID
			a.current.interaction = msg.saved.Interaction
		}
		return a, a.loadSaved()

	case interactionMsg:
		a.setStatus(msg.status, StatusSuccess)
		if a.current != nil && a.current.id == msg.interaction.ArticleID {
			a.current.interaction = msg.interaction
		}
		return a, a.loadSaved()

	case articleRemovedMsg:
		a.setStatus(MsgRemoved, StatusSuccess)
		if a.current != nil && a.current.id == msg.articleID {
			a.current.id = ""
			a.current.interaction = nil
		}
		return a, a.loadSaved()

	case openedMsg:
		a.setStatus(MsgOpened(msg.url), StatusInfo)

	case searchDebounceMsg:
		if msg.seq == a.searchSeq && a.view == ViewSearch {
			return a, a.performSearch(msg.query)
		}
		return a, nil

	case searchResultsMsg:
		if a.view == ViewSearch && msg.query == strings.TrimSpace(a.searchInput.Value()) {
			items := make([]list.Item, len(msg.results))
			for i, r := range msg.results {
				items[i] = searchItem{result: r}
			}
			a.searchList.SetItems(items)
			if len(items) == 0 {
				a.setStatus(MsgNoResults, StatusInfo)
			} else {
				a.setStatus(MsgResultsCount(len(items)), StatusInfo)
			}
		}

	case errorMsg:
		a.loading = false
		a.rendering = false
		a.err = msg.err
	}

	switch a.view {
	case ViewHeadlines:
		var cmd tea.Cmd
		a.headlineList, cmd = a.headlineList.Update(msg)
		cmds = append(cmds, cmd)
	case ViewSaved:
		var cmd tea.Cmd
		a.savedList, cmd = a.savedList.Update(msg)
		cmds = append(cmds, cmd)
	case ViewReader:
		if _, ok := msg.(tea.MouseMsg); ok {
			var cmd tea.Cmd
			a.viewport, cmd = a.viewport.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return a, tea.Batch(cmds...)
}

// refreshHeadlineItems rebuilds the headline list so saved markers follow
// the library.
func (a *App) refreshHeadlineItems() {
	if a.result == nil {
		return
	}
	items := make([]list.Item, len(a.result.Articles))
	for i, art := range a.result.Articles {
		_, saved := a.savedByURL[art.URL]
		items[i] = headlineItem{article: art, saved: saved}
	}
	a.headlineList.SetItems(items)
	a.headlineList.Title = "› " + a.queryTitle()
}

func (a *App) queryTitle() string {
	parts := []string{"headlines"}
	if a.query.Category != "" {
		parts = append(parts, string(a.query.Category))
	}
	if a.query.Q != "" {
		parts = append(parts, fmt.Sprintf("%q", a.query.Q))
	}
	parts = append(parts, fmt.Sprintf("%s/%s", a.query.Country, a.query.Language))
	if a.query.Page > 1 {
		parts = append(parts, fmt.Sprintf("page %d", a.query.Page))
	}
	return strings.Join(parts, " · ")
}

// selected returns the article under the cursor in the current view.
func (a *App) selected() (*selection, bool) {
	var item list.Item
	switch a.view {
	case ViewReader:
		return a.current, a.current != nil
	case ViewHeadlines:
		item = a.headlineList.SelectedItem()
	case ViewSaved:
		item = a.savedList.SelectedItem()
	case ViewSearch:
		if a.searchInput.Focused() {
			return nil, false
		}
		item = a.searchList.SelectedItem()
	}

	switch it := item.(type) {
	case headlineItem:
		return a.lookup(it.article), true
	case savedItem:
		return &selection{
			article:     it.saved.Article.Article,
			id:          it.saved.Article.ID,
			interaction: it.saved.Interaction,
		}, true
	case searchItem:
		sel := a.lookup(it.result.Article.Article)
		sel.id = it.result.Article.ID
		return sel, true
	}
	return nil, false
}

func (a *App) lookup(article news.Article) *selection {
	sel := &selection{article: article}
	if sa, ok := a.savedByURL[article.URL]; ok {
		sel.id = sa.Article.ID
		sel.interaction = sa.Interaction
	}
	return sel
}

func (a *App) View() string {
	contentHeight := a.height - 4
	var content string

	switch a.view {
	case ViewHeadlines:
		if a.result == nil || len(a.result.Articles) == 0 {
			message := "Fetching headlines…"
			if a.result != nil {
				message = "No headlines. " + a.keyHandler.label("e") + " edits the query"
			}
			content = renderCentered(a.width, contentHeight, GetWelcomeMessage(message))
		} else {
			content = a.headlineList.View()
		}
	case ViewSaved:
		if len(a.saved) == 0 {
			message := "Your library is empty. " + a.keyHandler.label("a") + " saves a headline"
			if a.userID == "" {
				message = ErrNoUser.Error()
			}
			content = renderCentered(a.width, contentHeight, GetWelcomeMessage(message))
		} else {
			content = a.savedList.View()
		}
	case ViewReader:
		if a.rendering {
			content = renderCentered(a.width, contentHeight, renderMuted("Loading article…"))
		} else {
			content = a.viewport.View()
		}
	case ViewQuery:
		content = renderCentered(a.width, contentHeight, lipgloss.JoinVertical(
			lipgloss.Center,
			renderHeader("› headline query", a.queryTitle(), a.width),
			"",
			renderInputFrame(a.queryInput.View(), a.queryInput.Focused(), a.queryInput.Width),
			"",
			renderHelp("Enter: fetch • Esc: cancel"),
		))
	case ViewSearch:
		helpText := "Type to search • Tab/↓: results • Esc: back"
		if !a.searchInput.Focused() {
			helpText = "↑↓: navigate • Enter: open • Tab: search box • Esc: back"
		}
		content = lipgloss.NewStyle().
			Width(a.width).
			Height(contentHeight).
			MaxHeight(contentHeight).
			Render(lipgloss.JoinVertical(
				lipgloss.Top,
				renderHeader("› search saved articles", "", a.width),
				"",
				renderInputFrame(a.searchInput.View(), a.searchInput.Focused(), a.searchInput.Width),
				renderMuted(helpText),
				"",
				a.searchList.View(),
			))
	}

	separatorWidth := a.width
	if separatorWidth < 1 {
		separatorWidth = 1
	}
	separator := SeparatorStyle.Render(strings.Repeat("─", separatorWidth))
	return lipgloss.JoinVertical(lipgloss.Top, content, separator, a.statusLine(), a.helpLine())
}

func (a *App) statusLine() string {
	style := lipgloss.NewStyle().Width(a.width).Padding(0, 1)
	switch {
	case a.err != nil:
		return style.Render(StatusErrorStyle.Render(fmt.Sprintf("✗ %v", a.err)))
	case a.loading:
		return style.Render(a.spinner.View() + " " + renderStatus(a.status, StatusInfo))
	default:
		return style.Render(renderStatus(a.status, a.statusKind))
	}
}

func (a *App) helpLine() string {
	commands := a.keyHandler.GetHelpForCurrentView()
	return lipgloss.NewStyle().
		Width(a.width).
		Padding(0, 1).
		Foreground(MutedColor).
		Render(truncateEnd(strings.Join(commands, " • "), a.width-2))
}

type headlineItem struct {
	article news.Article
	saved   bool
}

func (i headlineItem) Title() string {
	if i.saved {
		return SavedMarkStyle.Render("✓ ") + i.article.Title
	}
	return i.article.Title
}

func (i headlineItem) Description() string {
	return describe(i.article, "")
}

func (i headlineItem) FilterValue() string {
	return i.article.Title + " " + i.article.SourceName
}

type savedItem struct {
	saved storage.SavedArticle
}

func (i savedItem) Title() string {
	title := i.saved.Article.Title
	ua := i.saved.Interaction
	if ua != nil && ua.Bookmarked {
		title = "★ " + title
	}
	if ua != nil && ua.Read {
		return ReadItemStyle.Render(title)
	}
	return UnreadItemStyle.Render("● " + title)
}

func (i savedItem) Description() string {
	extra := ""
	if ua := i.saved.Interaction; ua != nil && ua.Rating > 0 {
		extra = ratingStars(ua.Rating)
	}
	return describe(i.saved.Article.Article, extra)
}

func (i savedItem) FilterValue() string {
	return i.saved.Article.Title + " " + i.saved.Article.SourceName
}

type searchItem struct {
	result *search.Result
}

func (i searchItem) Title() string       { return i.result.Article.Title }
func (i searchItem) Description() string { return describe(i.result.Article.Article, "") }
func (i searchItem) FilterValue() string { return i.result.Article.Title }

// describe renders the muted second line of a list entry.
func describe(article news.Article, extra string) string {
	parts := []string{}
	if article.SourceName != "" {
		parts = append(parts, article.SourceName)
	}
	if extra != "" {
		parts = append(parts, extra)
	}
	if desc := strings.TrimSpace(article.Description); desc != "" {
		parts = append(parts, truncateEnd(desc, 80))
	}
	line := renderMuted(strings.Join(parts, " • "))
	if !article.PublishedAt.IsZero() {
		line += TimeStyle.Render(" • " + article.PublishedAt.Format("Jan 2, 15:04"))
	}
	return line
}

type headlinesLoadedMsg struct {
	result *news.AggregatedResult
}

type savedLoadedMsg struct {
	items []storage.SavedArticle
	total int
}

type articleRenderedMsg struct {
	content string
}

type articleSavedMsg struct {
	saved *storage.SavedArticle
}

type interactionMsg struct {
	interaction *storage.UserArticle
	status      string
}

type articleRemovedMsg struct {
	articleID string
}

type openedMsg struct {
	url string
}

type searchDebounceMsg struct {
	seq   int
	query string
}

type searchResultsMsg struct {
	query   string
	results []*search.Result
}

type errorMsg struct {
	err error
}
