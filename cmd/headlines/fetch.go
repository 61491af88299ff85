package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/pders01/headlines/internal/app"
	"github.com/pders01/headlines/internal/news"
)

const fetchTimeout = 30 * time.Second

func newFetchCmd(g *globalFlags) *cobra.Command {
	var (
		raw      news.RawParams
		page     int
		pageSize int
		user     string
		plain    bool
		width    int
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch aggregated headlines once and print them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("page") {
				raw.Page = strconv.Itoa(page)
			}
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

			userID := user
			if user != "" {
				if u, err := a.Store.GetUserByUsername(user); err == nil {
					userID = u.ID
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), fetchTimeout)
			defer cancel()

			result, err := a.Headlines.Headlines(ctx, userID, q)
			if err != nil {
				return err
			}

			md := renderMarkdown(result, q)
			if plain {
				_, err = fmt.Fprint(cmd.OutOrStdout(), md)
				return err
			}

			r, err := glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(width),
			)
			if err != nil {
				return fmt.Errorf("creating renderer: %w", err)
			}
			out, err := r.Render(md)
			if err != nil {
				return fmt.Errorf("rendering headlines: %w", err)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&raw.Q, "q", "q", "", "search terms")
	f.StringVarP(&raw.Category, "category", "c", "", "news category")
	f.StringVar(&raw.Country, "country", "", "two-letter country code")
	f.StringVar(&raw.Language, "language", "", "two-letter language code")
	f.IntVar(&page, "page", news.DefaultPage, "result page")
	f.IntVar(&pageSize, "page-size", news.DefaultPageSize, "results per page")
	f.StringVarP(&user, "user", "u", "", "personalize for this user ID or username")
	f.BoolVar(&plain, "plain", false, "print markdown without terminal styling")
	f.IntVar(&width, "width", 100, "word wrap width")
	return cmd
}

// renderMarkdown lays out an aggregated result as a markdown document.
func renderMarkdown(result *news.AggregatedResult, q news.NewsQuery) string {
	var b strings.Builder

	title := "Top headlines"
	if q.Category != "" {
		title += " · " + string(q.Category)
	}
	if q.Q != "" {
		title += fmt.Sprintf(" · %q", q.Q)
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "*%s/%s · page %d · %d results from %s*\n\n",
		q.Country, q.Language, q.Page, result.TotalResults, strings.Join(result.Providers, ", "))

	if len(result.Articles) == 0 {
		b.WriteString("No articles found.\n")
	}

	for i, a := range result.Articles {
		fmt.Fprintf(&b, "## %d. [%s](%s)\n\n", i+1, escapeMarkdown(a.Title), a.URL)

		var meta []string
		if a.SourceName != "" {
			meta = append(meta, a.SourceName)
		}
		if a.Author != "" {
			meta = append(meta, a.Author)
		}
		if !a.PublishedAt.IsZero() {
			meta = append(meta, a.PublishedAt.Format("2006-01-02 15:04"))
		}
		if len(meta) > 0 {
			fmt.Fprintf(&b, "*%s*\n\n", strings.Join(meta, " · "))
		}
		if a.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", escapeMarkdown(a.Description))
		}
	}

	if len(result.PartialErrors) > 0 {
		b.WriteString("---\n\n**Some providers failed:**\n\n")
		for _, e := range result.PartialErrors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	"[", `\[`,
	"]", `\]`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
