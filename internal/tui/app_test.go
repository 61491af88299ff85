package tui

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/headlines/internal/news"
	"github.com/pders01/headlines/internal/search"
	"github.com/pders01/headlines/internal/storage"
)

type fakeHeadlines struct {
	mu      sync.Mutex
	result  *news.AggregatedResult
	err     error
	queries []news.NewsQuery
	users   []string
}

func (f *fakeHeadlines) Headlines(_ context.Context, userID string, q news.NewsQuery) (*news.AggregatedResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	f.users = append(f.users, userID)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeHeadlines) lastQuery() news.NewsQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

type recordingOpener struct {
	mu     sync.Mutex
	opened []string
}

func (r *recordingOpener) Open(url string) error {
	r.mu.Lock()
	r.opened = append(r.opened, url)
	r.mu.Unlock()
	return nil
}

type fakeSearcher struct {
	results []*search.Result
	queries []string
}

func (f *fakeSearcher) Search(query string, _ int) ([]*search.Result, error) {
	f.queries = append(f.queries, query)
	return f.results, nil
}

func sampleResult() *news.AggregatedResult {
	return &news.AggregatedResult{
		Articles: []news.Article{
			{
				Title:       "Rover finds water on Mars",
				Description: "Ice under the crater floor",
				URL:         "https://news.example.com/mars-water",
				SourceName:  "Space Daily",
				PublishedAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
			},
			{
				Title:      "Markets rally",
				URL:        "https://news.example.com/markets",
				SourceName: "Finance Wire",
			},
		},
		TotalResults: 12,
		Providers:    []string{"newsapi", "gnews"},
	}
}

type testEnv struct {
	app       *App
	headlines *fakeHeadlines
	store     *storage.Store
	opener    *recordingOpener
	searcher  *fakeSearcher
	userID    string
}

// newTestEnv builds an App over a real store. withUser creates a user and
// browses as them.
func newTestEnv(t *testing.T, withUser bool) *testEnv {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "tui.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	env := &testEnv{
		headlines: &fakeHeadlines{result: sampleResult()},
		store:     store,
		opener:    &recordingOpener{},
		searcher:  &fakeSearcher{},
	}
	if withUser {
		u, err := store.CreateUser("reader", "", news.UserPreferences{})
		require.NoError(t, err)
		env.userID = u.ID
	}
	env.app = NewApp(Deps{
		Headlines: env.headlines,
		Library:   store,
		Search:    env.searcher,
		Opener:    env.opener,
	}, Options{UserID: env.userID})
	return env
}

// settle runs cmd and feeds every resulting message back into the app,
// following the commands those updates return.
func settle(t *testing.T, a *App, cmd tea.Cmd) {
	t.Helper()
	pending := []tea.Cmd{cmd}
	for depth := 0; len(pending) > 0; depth++ {
		require.Less(t, depth, 20, "commands did not settle")
		var next []tea.Cmd
		for _, c := range pending {
			for _, msg := range collect(c) {
				if _, ok := msg.(spinner.TickMsg); ok {
					continue
				}
				_, follow := a.Update(msg)
				next = append(next, follow)
			}
		}
		pending = next
	}
}

// collect executes cmd and flattens batches.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func press(a *App, msg tea.KeyMsg) tea.Cmd {
	_, cmd := a.Update(msg)
	return cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestViewStateTransitions(t *testing.T) {
	tests := []struct {
		name         string
		initialView  View
		msg          tea.KeyMsg
		expectedView View
		setupFunc    func(*App)
	}{
		{
			name:         "ViewHeadlines to ViewSaved on ctrl+l",
			initialView:  ViewHeadlines,
			msg:          tea.KeyMsg{Type: tea.KeyCtrlL},
			expectedView: ViewSaved,
		},
		{
			name:         "ViewSaved to ViewHeadlines on Escape",
			initialView:  ViewSaved,
			msg:          tea.KeyMsg{Type: tea.KeyEsc},
			expectedView: ViewHeadlines,
		},
		{
			name:         "ViewHeadlines to ViewSearch on ctrl+s",
			initialView:  ViewHeadlines,
			msg:          tea.KeyMsg{Type: tea.KeyCtrlS},
			expectedView: ViewSearch,
		},
		{
			name:         "ViewSearch to ViewHeadlines on Escape",
			initialView:  ViewSearch,
			msg:          tea.KeyMsg{Type: tea.KeyEsc},
			expectedView: ViewHeadlines,
		},
		{
			name:         "ViewHeadlines to ViewQuery on ctrl+e",
			initialView:  ViewHeadlines,
			msg:          tea.KeyMsg{Type: tea.KeyCtrlE},
			expectedView: ViewQuery,
		},
		{
			name:         "ViewQuery to ViewHeadlines on Escape",
			initialView:  ViewQuery,
			msg:          tea.KeyMsg{Type: tea.KeyEsc},
			expectedView: ViewHeadlines,
		},
		{
			name:         "ViewHeadlines to ViewReader on ctrl+v",
			initialView:  ViewHeadlines,
			msg:          tea.KeyMsg{Type: tea.KeyCtrlV},
			expectedView: ViewReader,
			setupFunc: func(a *App) {
				a.Update(headlinesLoadedMsg{result: sampleResult()})
			},
		},
		{
			name:         "ctrl+v without a selection stays put",
			initialView:  ViewHeadlines,
			msg:          tea.KeyMsg{Type: tea.KeyCtrlV},
			expectedView: ViewHeadlines,
		},
		{
			name:         "ViewReader back to ViewSaved on Escape",
			initialView:  ViewReader,
			msg:          tea.KeyMsg{Type: tea.KeyEsc},
			expectedView: ViewSaved,
			setupFunc: func(a *App) {
				a.previousView = ViewSaved
			},
		},
		{
			name:         "q in ViewReader goes back",
			initialView:  ViewReader,
			msg:          runes("q"),
			expectedView: ViewHeadlines,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false)
			app := env.app
			app.view = tt.initialView
			if tt.setupFunc != nil {
				tt.setupFunc(app)
			}

			updatedModel, _ := app.Update(tt.msg)
			updatedApp, ok := updatedModel.(*App)
			require.True(t, ok)
			assert.Equal(t, tt.expectedView, updatedApp.view)
		})
	}
}

func TestInit_FetchesPersonalizedHeadlines(t *testing.T) {
	env := newTestEnv(t, true)
	app := env.app

	cmd := app.Init()
	require.NotNil(t, cmd)
	assert.True(t, app.loading)
	assert.Equal(t, MsgFetching, app.status)

	msg := app.loadHeadlines()()
	loaded, ok := msg.(headlinesLoadedMsg)
	require.True(t, ok, "got %T", msg)
	assert.Len(t, loaded.result.Articles, 2)

	q := env.headlines.lastQuery()
	assert.Equal(t, news.DefaultCountry, q.Country)
	assert.Equal(t, news.DefaultLanguage, q.Language)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, env.userID, env.headlines.users[0])
}

func TestHeadlinesLoaded(t *testing.T) {
	t.Run("populates the list", func(t *testing.T) {
		app := newTestEnv(t, false).app
		app.loading = true

		app.Update(headlinesLoadedMsg{result: sampleResult()})

		assert.False(t, app.loading)
		assert.Len(t, app.headlineList.Items(), 2)
		assert.Equal(t, "2 of 12 headlines • newsapi, gnews", app.status)
		assert.Equal(t, StatusInfo, app.statusKind)
	})

	t.Run("partial failures warn", func(t *testing.T) {
		app := newTestEnv(t, false).app
		result := sampleResult()
		result.PartialErrors = []string{"newscatcher: unexpected status 500"}

		app.Update(headlinesLoadedMsg{result: result})

		assert.Contains(t, app.status, "1 providers failed")
		assert.Equal(t, StatusWarn, app.statusKind)
	})

	t.Run("empty result", func(t *testing.T) {
		app := newTestEnv(t, false).app
		app.Update(headlinesLoadedMsg{result: &news.AggregatedResult{}})

		assert.Equal(t, MsgNoHeadlines, app.status)
		assert.Contains(t, app.View(), "edits the query")
	})
}

func TestFetchError(t *testing.T) {
	env := newTestEnv(t, false)
	env.headlines.err = errors.New("all providers failed")
	app := env.app
	app.loading = true

	app.Update(app.loadHeadlines()())

	assert.False(t, app.loading)
	require.Error(t, app.err)
	assert.Contains(t, app.err.Error(), "fetching headlines")

	// The next key press clears the error.
	app.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.NoError(t, app.err)
}

func TestQueryEdit_Refetches(t *testing.T) {
	env := newTestEnv(t, false)
	app := env.app

	press(app, tea.KeyMsg{Type: tea.KeyCtrlE})
	require.Equal(t, ViewQuery, app.view)
	require.True(t, app.queryInput.Focused())

	press(app, runes("mars rover"))
	cmd := press(app, tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, cmd)
	assert.Equal(t, ViewHeadlines, app.view)
	assert.Equal(t, "mars rover", app.query.Q)
	assert.Equal(t, 1, app.query.Page)
	assert.True(t, app.loading)

	app.loadHeadlines()()
	assert.Equal(t, "mars rover", env.headlines.lastQuery().Q)
}

func TestCategoryAndPaging(t *testing.T) {
	app := newTestEnv(t, false).app

	press(app, tea.KeyMsg{Type: tea.KeyCtrlG})
	assert.Equal(t, news.CategoryBusiness, app.query.Category)

	press(app, tea.KeyMsg{Type: tea.KeyCtrlN})
	assert.Equal(t, 2, app.query.Page)

	press(app, tea.KeyMsg{Type: tea.KeyCtrlB})
	assert.Equal(t, 1, app.query.Page)

	cmd := press(app, tea.KeyMsg{Type: tea.KeyCtrlB})
	assert.Nil(t, cmd)
	assert.Equal(t, 1, app.query.Page)
	assert.Equal(t, MsgFirstPage, app.status)

	// Changing category restarts paging.
	app.query.Page = 3
	press(app, tea.KeyMsg{Type: tea.KeyCtrlG})
	assert.Equal(t, news.CategoryEntertainment, app.query.Category)
	assert.Equal(t, 1, app.query.Page)
}

func TestLibraryActions(t *testing.T) {
	env := newTestEnv(t, true)
	app := env.app
	app.Update(headlinesLoadedMsg{result: sampleResult()})

	settle(t, app, press(app, tea.KeyMsg{Type: tea.KeyCtrlA}))
	require.NoError(t, app.err)
	assert.Equal(t, MsgSaved, app.status)

	saved, total, err := env.store.ListUserArticles(env.userID, storage.ArticleFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	articleID := saved[0].Article.ID
	assert.Equal(t, "Rover finds water on Mars", saved[0].Article.Title)
	assert.Len(t, app.saved, 1)

	item, ok := app.headlineList.Items()[0].(headlineItem)
	require.True(t, ok)
	assert.True(t, item.saved, "saved headlines carry a marker")

	settle(t, app, press(app, tea.KeyMsg{Type: tea.KeyCtrlT}))
	assert.Equal(t, MsgBookmarked(true), app.status)

	settle(t, app, press(app, runes("4")))
	assert.Equal(t, MsgRated(4), app.status)

	settle(t, app, press(app, tea.KeyMsg{Type: tea.KeyCtrlD}))
	assert.Equal(t, MsgMarkedRead, app.status)

	ua, err := env.store.GetUserArticle(env.userID, articleID)
	require.NoError(t, err)
	assert.True(t, ua.Bookmarked)
	assert.Equal(t, 4, ua.Rating)
	assert.True(t, ua.Read)

	// Saving again is a no-op.
	assert.Nil(t, press(app, tea.KeyMsg{Type: tea.KeyCtrlA}))
}

func TestLibraryActions_RequireUser(t *testing.T) {
	app := newTestEnv(t, false).app
	app.Update(headlinesLoadedMsg{result: sampleResult()})

	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyCtrlA},
		{Type: tea.KeyCtrlT},
		{Type: tea.KeyCtrlD},
		runes("5"),
	} {
		cmd := press(app, key)
		require.NotNil(t, cmd, key.String())
		msg, ok := cmd().(errorMsg)
		require.True(t, ok, key.String())
		assert.ErrorIs(t, msg.err, ErrNoUser)
	}
}

func TestInteractions_RequireSavedArticle(t *testing.T) {
	app := newTestEnv(t, true).app
	app.Update(headlinesLoadedMsg{result: sampleResult()})

	cmd := press(app, runes("3"))
	require.NotNil(t, cmd)
	msg, ok := cmd().(errorMsg)
	require.True(t, ok)
	assert.ErrorIs(t, msg.err, ErrNotSaved)

	app.Update(msg)
	assert.Contains(t, app.View(), ErrNotSaved.Error())
}

func TestEnter_OpensInBrowser(t *testing.T) {
	env := newTestEnv(t, true)
	app := env.app
	app.Update(headlinesLoadedMsg{result: sampleResult()})

	settle(t, app, press(app, tea.KeyMsg{Type: tea.KeyEnter}))

	assert.Equal(t, []string{"https://news.example.com/mars-water"}, env.opener.opened)
	assert.Equal(t, MsgOpened("https://news.example.com/mars-water"), app.status)
}

func TestEnter_MarksSavedArticleRead(t *testing.T) {
	env := newTestEnv(t, true)
	app := env.app
	app.Update(headlinesLoadedMsg{result: sampleResult()})
	settle(t, app, press(app, tea.KeyMsg{Type: tea.KeyCtrlA}))

	settle(t, app, press(app, tea.KeyMsg{Type: tea.KeyCtrlL}))
	require.Equal(t, ViewSaved, app.view)
	settle(t, app, press(app, tea.KeyMsg{Type: tea.KeyEnter}))

	require.Len(t, env.opener.opened, 1)
	saved, _, err := env.store.ListUserArticles(env.userID, storage.ArticleFilter{})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.True(t, saved[0].Interaction.Read)
}

func TestSavedView_Remove(t *testing.T) {
	env := newTestEnv(t, true)
	app := env.app
	app.Update(headlinesLoadedMsg{result: sampleResult()})
	settle(t, app, press(app, tea.KeyMsg{Type: tea.KeyCtrlA}))

	settle(t, app, press(app, tea.KeyMsg{Type: tea.KeyCtrlL}))
	require.Len(t, app.savedList.Items(), 1)

	settle(t, app, press(app, tea.KeyMsg{Type: tea.KeyCtrlX}))

	assert.Equal(t, MsgRemoved, app.status)
	assert.Empty(t, app.savedList.Items())
	_, total, err := env.store.ListUserArticles(env.userID, storage.ArticleFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestReader(t *testing.T) {
	env := newTestEnv(t, true)
	app := env.app
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	app.Update(headlinesLoadedMsg{result: sampleResult()})

	cmd := press(app, tea.KeyMsg{Type: tea.KeyCtrlV})
	require.Equal(t, ViewReader, app.view)
	require.NotNil(t, app.current)
	assert.True(t, app.rendering)

	settle(t, app, cmd)
	assert.False(t, app.rendering)
	assert.Contains(t, app.viewport.View(), "Rover")

	// Saving from the reader attaches the catalog ID to the open article.
	settle(t, app, press(app, tea.KeyMsg{Type: tea.KeyCtrlA}))
	assert.NotEmpty(t, app.current.id)

	settle(t, app, press(app, runes("5")))
	require.NotNil(t, app.current.interaction)
	assert.Equal(t, 5, app.current.interaction.Rating)

	press(app, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewHeadlines, app.view)
	assert.Nil(t, app.current)
}

func TestSearch_Debounced(t *testing.T) {
	env := newTestEnv(t, true)
	app := env.app
	env.searcher.results = []*search.Result{{
		Article: &storage.Article{
			ID:      "a1",
			Article: news.Article{Title: "Mars sample return", URL: "https://news.example.com/msr"},
		},
		Score: 1.2,
	}}

	press(app, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.Equal(t, ViewSearch, app.view)
	require.True(t, app.searchInput.Focused())

	press(app, runes("m"))
	press(app, runes("a"))
	seq := app.searchSeq

	// A stale timer does nothing.
	_, cmd := app.Update(searchDebounceMsg{seq: seq - 1, query: "m"})
	assert.Nil(t, cmd)
	assert.Empty(t, env.searcher.queries)

	settle(t, app, func() tea.Msg { return searchDebounceMsg{seq: seq, query: "ma"} })
	assert.Equal(t, []string{"ma"}, env.searcher.queries)
	assert.Len(t, app.searchList.Items(), 1)
	assert.Equal(t, MsgResultsCount(1), app.status)

	press(app, tea.KeyMsg{Type: tea.KeyTab})
	assert.False(t, app.searchInput.Focused())

	settle(t, app, press(app, tea.KeyMsg{Type: tea.KeyEnter}))
	assert.Equal(t, []string{"https://news.example.com/msr"}, env.opener.opened)
}

func TestView_DoesNotPanic(t *testing.T) {
	app := newTestEnv(t, true).app
	app.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	for _, v := range []View{ViewHeadlines, ViewSaved, ViewReader, ViewQuery, ViewSearch} {
		app.view = v
		assert.NotEmpty(t, app.View())
	}

	app.Update(headlinesLoadedMsg{result: sampleResult()})
	app.view = ViewHeadlines
	assert.Contains(t, app.View(), "Markets rally")
}
