package main

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/pders01/headlines/internal/app"
	"github.com/pders01/headlines/internal/news"
	"github.com/pders01/headlines/internal/storage"
	"github.com/pders01/headlines/internal/tui"
)

var runProgram = func(m tea.Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func newBrowseCmd(g *globalFlags) *cobra.Command {
	var (
		raw      news.RawParams
		pageSize int
		user     string
		command  string
	)

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse headlines and your library in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("page-size") {
				raw.PageSize = strconv.Itoa(pageSize)
			}
			q, err := news.Normalize(raw)
			if err != nil {
				return err
			}

			cfg, err := g.load()
			if err != nil {
				return err
			}
			a, err := app.New(cfg, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			userID, err := resolveUser(a.Store, user)
			if err != nil {
				return err
			}

			model := tui.NewApp(tui.Deps{
				Headlines: a.Headlines,
				Library:   a.Store,
				Search:    a.Search,
				Opener:    newLauncher(command),
			}, tui.Options{
				UserID:       userID,
				Query:        q,
				Modifier:     cfg.Keys.Modifier,
				FetchTimeout: fetchTimeout,
			})
			return runProgram(model)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&raw.Q, "q", "q", "", "initial search terms")
	f.StringVarP(&raw.Category, "category", "c", "", "initial news category")
	f.StringVar(&raw.Country, "country", "", "two-letter country code")
	f.StringVar(&raw.Language, "language", "", "two-letter language code")
	f.IntVar(&pageSize, "page-size", news.DefaultPageSize, "results per page")
	f.StringVarP(&user, "user", "u", "", "browse as this user ID or username")
	f.StringVar(&command, "with", "", "browser command (defaults to the platform opener)")
	return cmd
}

// resolveUser accepts a username or a user ID. Empty browses anonymously.
func resolveUser(store *storage.Store, user string) (string, error) {
	if user == "" {
		return "", nil
	}
	if u, err := store.GetUserByUsername(user); err == nil {
		return u.ID, nil
	}
	u, err := store.GetUser(user)
	if err != nil {
		return "", fmt.Errorf("unknown user %q", user)
	}
	return u.ID, nil
}
