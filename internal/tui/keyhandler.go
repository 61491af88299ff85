package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

type KeyHandler struct {
	app         *App
	modifierKey string
}

func NewKeyHandler(app *App, modifier string) *KeyHandler {
	if modifier == "" {
		modifier = "ctrl"
	}
	return &KeyHandler{app: app, modifierKey: modifier + "+"}
}

// label renders a modified key the way it appears in help text.
func (kh *KeyHandler) label(key string) string {
	return kh.modifierKey + key
}

func (kh *KeyHandler) HandleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	kh.app.err = nil

	if kh.isInTextInputMode() {
		return kh.handleTextInputMode(msg)
	}
	if kh.isFiltering() {
		return kh.delegateToCharm(msg)
	}
	if model, cmd, handled := kh.handleCustomKeys(key); handled {
		return model, cmd
	}
	return kh.delegateToCharm(msg)
}

func (kh *KeyHandler) isInTextInputMode() bool {
	switch kh.app.view {
	case ViewQuery:
		return kh.app.queryInput.Focused()
	case ViewSearch:
		return kh.app.searchInput.Focused()
	default:
		return false
	}
}

func (kh *KeyHandler) isFiltering() bool {
	switch kh.app.view {
	case ViewHeadlines:
		return kh.app.headlineList.FilterState() == list.Filtering
	case ViewSaved:
		return kh.app.savedList.FilterState() == list.Filtering
	default:
		return false
	}
}

func (kh *KeyHandler) handleTextInputMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return kh.navigateBack()
	case "ctrl+c":
		return kh.app, tea.Quit
	case "enter":
		return kh.handleTextInputEnter()
	case "tab", "down":
		if kh.app.view == ViewSearch && len(kh.app.searchList.Items()) > 0 {
			kh.app.searchInput.Blur()
			kh.app.searchList.Select(0)
			return kh.app, nil
		}
	}
	return kh.delegateToTextInput(msg)
}

func (kh *KeyHandler) handleTextInputEnter() (tea.Model, tea.Cmd) {
	a := kh.app
	switch a.view {
	case ViewQuery:
		a.queryInput.Blur()
		a.query.Q = strings.TrimSpace(a.queryInput.Value())
		a.query.Page = 1
		a.view = ViewHeadlines
		return a, a.fetchHeadlines()

	case ViewSearch:
		if items := a.searchList.Items(); len(items) > 0 {
			a.searchInput.Blur()
			a.searchList.Select(0)
			return kh.openSelected()
		}
	}
	return a, nil
}

func (kh *KeyHandler) delegateToTextInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := kh.app
	switch a.view {
	case ViewQuery:
		var cmd tea.Cmd
		a.queryInput, cmd = a.queryInput.Update(msg)
		return a, cmd

	case ViewSearch:
		prev := a.searchInput.Value()
		var cmd tea.Cmd
		a.searchInput, cmd = a.searchInput.Update(msg)
		if a.searchInput.Value() == prev {
			return a, cmd
		}
		return a, tea.Batch(cmd, a.scheduleSearch(a.searchInput.Value()))
	}
	return a, nil
}

func (kh *KeyHandler) handleCustomKeys(key string) (tea.Model, tea.Cmd, bool) {
	a := kh.app

	switch key {
	case "ctrl+c":
		return a, tea.Quit, true
	case "q":
		if a.view == ViewHeadlines {
			return a, tea.Quit, true
		}
		model, cmd := kh.navigateBack()
		return model, cmd, true
	case "esc":
		model, cmd := kh.navigateBack()
		return model, cmd, true
	}

	if a.view == ViewSearch {
		if key == "tab" || key == "shift+tab" {
			a.searchList.ResetSelected()
			return a, a.searchInput.Focus(), true
		}
	}

	switch a.view {
	case ViewHeadlines:
		if model, cmd, handled := kh.handleHeadlineKeys(key); handled {
			return model, cmd, true
		}
	case ViewSaved:
		if model, cmd, handled := kh.handleSavedKeys(key); handled {
			return model, cmd, true
		}
	}

	switch a.view {
	case ViewHeadlines, ViewSaved, ViewReader, ViewSearch:
		return kh.handleArticleKeys(key)
	}
	return a, nil, false
}

func (kh *KeyHandler) handleHeadlineKeys(key string) (tea.Model, tea.Cmd, bool) {
	a := kh.app
	m := kh.modifierKey

	switch key {
	case m + "r":
		return a, a.fetchHeadlines(), true
	case m + "e":
		a.view = ViewQuery
		a.queryInput.SetValue(a.query.Q)
		a.queryInput.CursorEnd()
		return a, a.queryInput.Focus(), true
	case m + "g":
		a.query.Category = nextCategory(a.query.Category)
		a.query.Page = 1
		return a, a.fetchHeadlines(), true
	case m + "n":
		a.query.Page++
		return a, a.fetchHeadlines(), true
	case m + "b":
		if a.query.Page <= 1 {
			a.setStatus(MsgFirstPage, StatusInfo)
			return a, nil, true
		}
		a.query.Page--
		return a, a.fetchHeadlines(), true
	case m + "l":
		a.previousView = ViewHeadlines
		a.view = ViewSaved
		return a, a.loadSaved(), true
	case m + "s":
		return a, kh.enterSearchMode(), true
	}
	return a, nil, false
}

func (kh *KeyHandler) handleSavedKeys(key string) (tea.Model, tea.Cmd, bool) {
	a := kh.app
	m := kh.modifierKey

	switch key {
	case m + "r":
		return a, a.loadSaved(), true
	case m + "s":
		return a, kh.enterSearchMode(), true
	case m + "x":
		sel, ok := a.selected()
		if !ok {
			return a, nil, true
		}
		return a, a.removeArticle(sel.id), true
	}
	return a, nil, false
}

// handleArticleKeys covers the actions that apply to whichever article is
// selected or being read.
func (kh *KeyHandler) handleArticleKeys(key string) (tea.Model, tea.Cmd, bool) {
	a := kh.app
	m := kh.modifierKey

	switch key {
	case "enter", m + "o":
		model, cmd := kh.openSelected()
		return model, cmd, true
	case m + "v":
		model, cmd := kh.openReader()
		return model, cmd, true
	case m + "a":
		sel, ok := a.selected()
		if !ok {
			return a, nil, true
		}
		if a.userID == "" {
			return a, errCmd(ErrNoUser), true
		}
		if sel.id != "" && sel.interaction != nil {
			a.setStatus(MsgSaved, StatusInfo)
			return a, nil, true
		}
		return a, a.saveArticle(sel), true
	case m + "t":
		return kh.withSaved(func(sel *selection) tea.Cmd {
			return a.toggleBookmark(sel.id)
		})
	case m + "d":
		return kh.withSaved(func(sel *selection) tea.Cmd {
			return a.markRead(sel.id)
		})
	case "1", "2", "3", "4", "5":
		rating := int(key[0] - '0')
		return kh.withSaved(func(sel *selection) tea.Cmd {
			return a.rate(sel.id, rating)
		})
	}
	return a, nil, false
}

// withSaved runs fn on the selection when it is in the user's library.
func (kh *KeyHandler) withSaved(fn func(sel *selection) tea.Cmd) (tea.Model, tea.Cmd, bool) {
	a := kh.app
	sel, ok := a.selected()
	if !ok {
		return a, nil, true
	}
	if a.userID == "" {
		return a, errCmd(ErrNoUser), true
	}
	if sel.id == "" {
		return a, errCmd(ErrNotSaved), true
	}
	return a, fn(sel), true
}

// openSelected hands the article to the browser and marks it read when it
// is in the library.
func (kh *KeyHandler) openSelected() (tea.Model, tea.Cmd) {
	a := kh.app
	sel, ok := a.selected()
	if !ok || sel.article.URL == "" {
		return a, nil
	}
	cmds := []tea.Cmd{a.openURL(sel.article.URL)}
	if a.userID != "" && sel.id != "" && (sel.interaction == nil || !sel.interaction.Read) {
		cmds = append(cmds, a.markRead(sel.id))
	}
	return a, tea.Batch(cmds...)
}

func (kh *KeyHandler) openReader() (tea.Model, tea.Cmd) {
	a := kh.app
	if a.view == ViewReader {
		return a, nil
	}
	sel, ok := a.selected()
	if !ok {
		return a, nil
	}
	a.current = sel
	a.previousView = a.view
	a.view = ViewReader
	a.rendering = true
	if a.userID != "" && sel.id != "" && (sel.interaction == nil || !sel.interaction.Read) {
		return a, tea.Batch(a.renderArticle(sel), a.markRead(sel.id))
	}
	return a, a.renderArticle(sel)
}

func (kh *KeyHandler) enterSearchMode() tea.Cmd {
	a := kh.app
	a.previousView = a.view
	a.view = ViewSearch
	a.searchInput.SetValue("")
	a.searchList.SetItems(nil)
	return a.searchInput.Focus()
}

func (kh *KeyHandler) navigateBack() (tea.Model, tea.Cmd) {
	a := kh.app
	switch a.view {
	case ViewReader:
		a.view = a.previousView
		a.current = nil
	case ViewSaved:
		a.view = ViewHeadlines
	case ViewQuery:
		a.queryInput.Blur()
		a.queryInput.Reset()
		a.view = ViewHeadlines
	case ViewSearch:
		a.searchInput.Blur()
		a.searchInput.Reset()
		a.view = a.previousView
		if a.view == ViewSearch || a.view == ViewReader {
			a.view = ViewHeadlines
		}
	}
	return a, nil
}

func (kh *KeyHandler) delegateToCharm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := kh.app
	var cmd tea.Cmd
	switch a.view {
	case ViewHeadlines:
		a.headlineList, cmd = a.headlineList.Update(msg)
	case ViewSaved:
		a.savedList, cmd = a.savedList.Update(msg)
	case ViewSearch:
		a.searchList, cmd = a.searchList.Update(msg)
	case ViewReader:
		a.viewport, cmd = a.viewport.Update(msg)
	}
	return a, cmd
}

// GetHelpForCurrentView lists the commands shown in the status bar.
func (kh *KeyHandler) GetHelpForCurrentView() []string {
	m := kh.modifierKey
	article := []string{"enter: open", m + "v: read", m + "a: save", m + "t: bookmark", m + "d: read", "1-5: rate"}

	switch kh.app.view {
	case ViewHeadlines:
		return append(article,
			m+"e: query", m+"g: category", m+"n/"+m+"b: page", m+"r: refresh",
			m+"l: library", m+"s: search", "q: quit")
	case ViewSaved:
		return append(article, m+"x: remove", m+"s: search", "esc: back")
	case ViewReader:
		return []string{"enter: open", m + "a: save", m + "t: bookmark", m + "d: read", "1-5: rate", "↑↓: scroll", "esc: back"}
	case ViewQuery:
		return []string{"enter: fetch", "esc: cancel"}
	case ViewSearch:
		return []string{"enter: open", m + "v: read", "tab: switch focus", "esc: back"}
	}
	return nil
}
