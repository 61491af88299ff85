package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pders01/headlines/internal/news"
	"github.com/pders01/headlines/internal/storage"
	"github.com/pders01/headlines/internal/tui"
)

// run executes the root command with args and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}

	// Version is "dev" by default in tests
	for _, want := range []string{"headlines dev", "News aggregator", "github.com/pders01/headlines"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected version output to contain %q, got: %s", want, out)
		}
	}
}

func TestGenerateConfigCommand(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, err := run(t, "config", "generate", configFile)
	if err != nil {
		t.Fatalf("config generate failed: %v", err)
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		t.Errorf("Config file was not created at %s", configFile)
	}
	if !strings.Contains(out, "Generated default config") {
		t.Errorf("Expected success message, got: %s", out)
	}

	content, err := os.ReadFile(configFile)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}
	for _, section := range []string{"[server]", "[database]", "[cache]", "[providers"} {
		if !strings.Contains(string(content), section) {
			t.Errorf("Config file missing %s section", section)
		}
	}
}

func TestFetchRejectsInvalidCategory(t *testing.T) {
	_, err := run(t, "fetch", "--category", "weather", "--db", filepath.Join(t.TempDir(), "h.db"))
	if err == nil {
		t.Fatal("expected an error for an unknown category")
	}
	if !strings.Contains(err.Error(), "category") {
		t.Errorf("error should name the category parameter, got: %v", err)
	}
}

func TestUserCreateCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "users.db")

	out, err := run(t, "user", "create", "--db", db,
		"--username", "alice", "--email", "alice@example.com",
		"--category", "technology", "--keyword", "golang", "--country", "de")
	if err != nil {
		t.Fatalf("user create failed: %v", err)
	}
	if id := strings.TrimSpace(out); len(id) != 36 {
		t.Errorf("expected a UUID, got %q", id)
	}

	_, err = run(t, "user", "create", "--db", db, "--username", "alice")
	if err == nil {
		t.Error("expected duplicate username to fail")
	}
}

func TestUserCreateRequiresUsername(t *testing.T) {
	_, err := run(t, "user", "create", "--db", filepath.Join(t.TempDir(), "u.db"))
	if err == nil || !strings.Contains(err.Error(), "username") {
		t.Errorf("expected missing username error, got %v", err)
	}
}

func TestRenderMarkdown(t *testing.T) {
	q, err := news.Normalize(news.RawParams{Category: "technology", Q: "go"})
	if err != nil {
		t.Fatal(err)
	}
	result := &news.AggregatedResult{
		Articles: []news.Article{
			{
				Title:       "Go 1.24 [released]",
				Description: "Faster maps_and more",
				URL:         "https://example.com/go",
				SourceName:  "Go Blog",
				Author:      "gopher",
				PublishedAt: time.Date(2025, 2, 11, 9, 30, 0, 0, time.UTC),
			},
		},
		TotalResults:  7,
		Providers:     []string{"newsapi", "gnews"},
		PartialErrors: []string{"newscatcher: upstream returned 500"},
	}

	md := renderMarkdown(result, q)

	for _, want := range []string{
		"# Top headlines · technology · \"go\"",
		"7 results from newsapi, gnews",
		`## 1. [Go 1.24 \[released\]](https://example.com/go)`,
		"*Go Blog · gopher · 2025-02-11 09:30*",
		`Faster maps\_and more`,
		"- newscatcher: upstream returned 500",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestRenderMarkdownEmpty(t *testing.T) {
	q, _ := news.Normalize(news.RawParams{})
	md := renderMarkdown(&news.AggregatedResult{}, q)

	if !strings.Contains(md, "No articles found.") {
		t.Errorf("expected empty notice, got:\n%s", md)
	}
	if strings.Contains(md, "Some providers failed") {
		t.Error("no failure section expected without partial errors")
	}
}

func TestBrowseCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "browse.db")
	if _, err := run(t, "user", "create", "--db", db, "--username", "bob"); err != nil {
		t.Fatalf("user create failed: %v", err)
	}

	var got tea.Model
	orig := runProgram
	runProgram = func(m tea.Model) error {
		got = m
		return nil
	}
	defer func() { runProgram = orig }()

	if _, err := run(t, "browse", "--db", db, "--user", "bob", "--category", "science"); err != nil {
		t.Fatalf("browse failed: %v", err)
	}
	if _, ok := got.(*tui.App); !ok {
		t.Errorf("browse should run the terminal app, got %T", got)
	}

	got = nil
	_, err := run(t, "browse", "--db", db, "--user", "nobody")
	if err == nil || !strings.Contains(err.Error(), "unknown user") {
		t.Errorf("expected unknown user error, got %v", err)
	}
	if got != nil {
		t.Error("program should not start for an unknown user")
	}

	_, err = run(t, "browse", "--db", db, "--category", "weather")
	if err == nil || !strings.Contains(err.Error(), "category") {
		t.Errorf("expected category error, got %v", err)
	}
}

type recordingLauncher struct {
	opened []string
}

func (r *recordingLauncher) Open(url string) error {
	r.opened = append(r.opened, url)
	return nil
}

func TestOpenCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "open.db")

	store, err := storage.NewStore(db, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	saved, err := store.SaveArticle("u1", storage.SaveInput{Article: news.Article{
		Title:      "Comet visible tonight",
		URL:        "https://example.com/comet",
		SourceName: "Sky News",
	}})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	rec := &recordingLauncher{}
	orig := newLauncher
	newLauncher = func(string) articleLauncher { return rec }
	defer func() { newLauncher = orig }()

	out, err := run(t, "open", saved.Article.ID, "--db", db, "--mark-read", "u1")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if len(rec.opened) != 1 || rec.opened[0] != "https://example.com/comet" {
		t.Errorf("opened = %v", rec.opened)
	}
	if !strings.Contains(out, "Opening Comet visible tonight") {
		t.Errorf("unexpected output: %s", out)
	}

	store, err = storage.NewStore(db, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ua, err := store.GetUserArticle("u1", saved.Article.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !ua.Read {
		t.Error("article should be marked read")
	}

	if _, err := run(t, "open", "missing-id", "--db", db); err == nil {
		t.Error("expected an error for an unknown article")
	}
}
