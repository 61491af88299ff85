package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pders01/headlines/internal/browser"
	"github.com/pders01/headlines/internal/storage"
)

// articleLauncher opens a URL; satisfied by *browser.Launcher.
type articleLauncher interface {
	Open(url string) error
}

var newLauncher = func(command string) articleLauncher {
	return browser.NewLauncher(command)
}

func newOpenCmd(g *globalFlags) *cobra.Command {
	var (
		command  string
		markRead string
	)

	cmd := &cobra.Command{
		Use:   "open <article-id>",
		Short: "Open a saved article in the browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			store, err := storage.NewStore(cfg.Database.Path, cfg.Database.Timeout)
			if err != nil {
				return fmt.Errorf("opening storage: %w", err)
			}
			defer store.Close()

			article, err := store.GetArticle(args[0])
			if err != nil {
				return err
			}
			if err := newLauncher(command).Open(article.URL); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Opening %s\n", article.Title)

			if markRead != "" {
				if _, err := store.MarkRead(markRead, article.ID); err != nil {
					return fmt.Errorf("marking read: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&command, "with", "", "command used to open the URL")
	cmd.Flags().StringVar(&markRead, "mark-read", "", "mark the article read for this user ID")
	return cmd
}
