package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pders01/headlines/internal/news"
	"github.com/pders01/headlines/internal/storage"
)

func newUserCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(newUserCreateCmd(g))
	return cmd
}

func newUserCreateCmd(g *globalFlags) *cobra.Command {
	var (
		username   string
		email      string
		categories []string
		prefs      news.UserPreferences
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user and print its ID",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, c := range categories {
				prefs.Categories = append(prefs.Categories, news.Category(c))
			}

			cfg, err := g.load()
			if err != nil {
				return err
			}
			store, err := storage.NewStore(cfg.Database.Path, cfg.Database.Timeout)
			if err != nil {
				return fmt.Errorf("opening storage: %w", err)
			}
			defer store.Close()

			u, err := store.CreateUser(username, email, prefs)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u.ID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&username, "username", "", "unique username")
	f.StringVar(&email, "email", "", "optional email address")
	f.StringSliceVar(&categories, "category", nil, "preferred category (repeatable)")
	f.StringSliceVar(&prefs.Keywords, "keyword", nil, "keyword to favor (repeatable)")
	f.StringSliceVar(&prefs.Sources, "source", nil, "preferred source name (repeatable)")
	f.StringVar(&prefs.Country, "country", "", "preferred two-letter country code")
	f.StringVar(&prefs.Language, "language", "", "preferred two-letter language code")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}
