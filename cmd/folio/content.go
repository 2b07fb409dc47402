package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/portfolio-site/backend/internal/catalog"
	"github.com/portfolio-site/backend/internal/daily"
	"github.com/portfolio-site/backend/internal/engine"
	"github.com/portfolio-site/backend/internal/search"
)

var (
	flagDate     string
	flagSend     bool
	flagTo       string
	flagTest     bool
	flagCategory string
	flagQuery    string
	flagLimit    int
)

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Show (or email) the article of the day",
	Long: `Print the resource picked for a UTC day. The pick is the same for everyone on
the same day, so the output matches what the site and the digest show.

With --send the digest is emailed; a day that was already sent is skipped unless --test is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		day := eng.Today()
		if flagDate != "" {
			day, err = daily.ParseSeed(flagDate)
			if err != nil {
				return fmt.Errorf("invalid --date %q, want YYYY-MM-DD", flagDate)
			}
		}

		article, err := eng.DailyArticle(day)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, dimStyle.Render("Article of the day · "+daily.Seed(day)))
		fmt.Fprintln(out, renderResource(article))

		if !flagSend {
			return nil
		}
		res, err := eng.SendDaily(cmd.Context(), engine.SendRequest{Date: day, Recipient: flagTo, Test: flagTest})
		if err != nil {
			return err
		}
		if res.Skipped {
			fmt.Fprintf(out, "%s already sent to %s (%s)\n", dimStyle.Render("skipped"), res.Recipient, res.MessageID)
			return nil
		}
		fmt.Fprintf(out, "%s sent to %s (%s)\n", okStyle.Render("✓"), res.Recipient, res.MessageID)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search pages, articles and notes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		results := eng.Search(strings.Join(args, " "), flagLimit)
		fmt.Fprint(cmd.OutOrStdout(), renderResults(results))
		return nil
	},
}

var resourcesCmd = &cobra.Command{
	Use:   "resources",
	Short: "List curated resources",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		resources := eng.Resources(flagCategory, flagQuery)
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("Showing %d of %d resources · categories: %s",
			len(resources), len(eng.Catalog.Resources()), strings.Join(eng.Catalog.Categories(), ", "))))
		for _, r := range resources {
			fmt.Fprintln(out, renderResource(r))
		}
		return nil
	},
}

func init() {
	dailyCmd.Flags().StringVar(&flagDate, "date", "", "UTC day to pick for (YYYY-MM-DD, default today)")
	dailyCmd.Flags().BoolVar(&flagSend, "send", false, "email the digest")
	dailyCmd.Flags().StringVar(&flagTo, "to", "", "recipient (overrides DAILY_EMAIL_RECIPIENT)")
	dailyCmd.Flags().BoolVar(&flagTest, "test", false, "send as a test email")

	searchCmd.Flags().IntVarP(&flagLimit, "limit", "n", 0, "maximum results (0 for all)")

	resourcesCmd.Flags().StringVarP(&flagCategory, "category", "c", catalog.AllCategory, "category filter")
	resourcesCmd.Flags().StringVarP(&flagQuery, "query", "q", "", "text filter over title, description and tags")
}

func renderResource(r catalog.Resource) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(r.Title))
	b.WriteString("\n")
	meta := []string{r.Category, r.Format}
	if r.Author != "" {
		meta = append(meta, r.Author)
	}
	b.WriteString(dimStyle.Render(strings.Join(meta, " · ")))
	if r.Description != "" {
		b.WriteString("\n")
		b.WriteString(r.Description)
	}
	if len(r.Tags) > 0 {
		b.WriteString("\n")
		b.WriteString(tagStyle.Render("#" + strings.Join(r.Tags, " #")))
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(r.URL))
	return cardStyle.Render(b.String())
}

func renderResults(results []search.SearchResult) string {
	if len(results) == 0 {
		return dimStyle.Render("No results found.") + "\n"
	}
	var b strings.Builder
	for _, r := range results {
		b.WriteString(badgeStyle.Render(r.Entry.Type))
		b.WriteString(titleStyle.Render(r.Entry.Title))
		b.WriteString("  ")
		b.WriteString(dimStyle.Render(r.Entry.Path))
		b.WriteString("\n")
	}
	return b.String()
}
