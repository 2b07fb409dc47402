package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/portfolio-site/backend/internal/feedimport"
	"github.com/portfolio-site/backend/internal/storage"
)

var (
	flagBookmarkTitle    string
	flagBookmarkCategory string
	flagBookmarkFormat   string
	flagBookmarkTags     []string
	flagFeedLimit        int
)

var bookmarksCmd = &cobra.Command{
	Use:   "bookmarks",
	Short: "Manage saved bookmarks (requires DATABASE_URL)",
}

var bookmarksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bookmarks, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		bookmarks, err := eng.ListBookmarks(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), renderBookmarks(bookmarks))
		return nil
	},
}

var bookmarksAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Save a bookmark, filling title and description from the page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		saved, err := eng.SaveBookmark(cmd.Context(), storage.Bookmark{
			URL:      args[0],
			Title:    flagBookmarkTitle,
			Category: flagBookmarkCategory,
			Format:   flagBookmarkFormat,
			Tags:     flagBookmarkTags,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s saved %s\n", okStyle.Render("✓"), titleStyle.Render(saved.Title))
		return nil
	},
}

var bookmarksImportCmd = &cobra.Command{
	Use:   "import-feed <feed-url>",
	Short: "Save every item of an RSS or Atom feed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		n, err := eng.ImportFeed(cmd.Context(), args[0], feedimport.Options{
			Category: flagBookmarkCategory,
			Format:   flagBookmarkFormat,
			Limit:    flagFeedLimit,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s imported %d bookmark(s)\n", okStyle.Render("✓"), n)
		return nil
	},
}

func init() {
	bookmarksAddCmd.Flags().StringVar(&flagBookmarkTitle, "title", "", "title (default: page title)")
	for _, c := range []*cobra.Command{bookmarksAddCmd, bookmarksImportCmd} {
		c.Flags().StringVarP(&flagBookmarkCategory, "category", "c", "", "category")
		c.Flags().StringVarP(&flagBookmarkFormat, "format", "f", "", "format (article, video, paper, ...)")
	}
	bookmarksAddCmd.Flags().StringSliceVarP(&flagBookmarkTags, "tag", "t", nil, "tag (repeatable)")
	bookmarksImportCmd.Flags().IntVarP(&flagFeedLimit, "limit", "n", 0, "maximum items to import (0 for all)")

	bookmarksCmd.AddCommand(bookmarksListCmd)
	bookmarksCmd.AddCommand(bookmarksAddCmd)
	bookmarksCmd.AddCommand(bookmarksImportCmd)
}

func renderBookmarks(bookmarks []storage.Bookmark) string {
	if len(bookmarks) == 0 {
		return dimStyle.Render("No bookmarks yet.") + "\n"
	}
	var b strings.Builder
	for _, bm := range bookmarks {
		b.WriteString(badgeStyle.Render(bm.Format))
		b.WriteString(titleStyle.Render(bm.Title))
		b.WriteString("  ")
		b.WriteString(dimStyle.Render(bm.Category))
		b.WriteString("\n")
		b.WriteString(strings.Repeat(" ", 9))
		b.WriteString(dimStyle.Render(bm.URL))
		b.WriteString("\n")
	}
	return b.String()
}
