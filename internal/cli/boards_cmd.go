package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OhSeongHyeon/mocktalkfront/internal/forum"
)

var (
	pageNumber int
	pageSize   int
)

var boardsCmd = &cobra.Command{
	Use:   "boards",
	Short: "Browse boards",
}

var boardsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List boards",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.loginIfConfigured(cmd); err != nil {
			return err
		}
		page, err := rt.api().ListBoards(cmd.Context(), pageNumber, pageSize)
		if err != nil {
			return err
		}
		if handled, err := writeOutput(cmd, page); handled {
			return err
		}
		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintf(tw, "ID\tSLUG\tNAME\tVISIBILITY\n")
		for _, b := range page.Items {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", b.ID, b.Slug, b.BoardName, b.Visibility)
		}
		flushTable(tw)
		if page.HasNext {
			fmt.Fprintf(cmd.OutOrStdout(), "(page %d of %d)\n", page.Page, page.TotalPages)
		}
		return nil
	},
}

var boardsShowCmd = &cobra.Command{
	Use:   "show <slug>",
	Short: "Show a board and its latest articles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.loginIfConfigured(cmd); err != nil {
			return err
		}
		board, err := rt.api().BoardBySlug(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		articles, err := rt.api().BoardArticles(cmd.Context(), board.ID, pageNumber, pageSize)
		if err != nil {
			return err
		}
		if handled, err := writeOutput(cmd, map[string]interface{}{"board": board, "articles": articles}); handled {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (/%s, id %d)\n", board.BoardName, board.Slug, board.ID)
		if board.Description != nil && *board.Description != "" {
			fmt.Fprintf(out, "%s\n", *board.Description)
		}
		fmt.Fprintln(out)
		tw := newTable(out)
		fmt.Fprintf(tw, "ID\tTITLE\tAUTHOR\tCOMMENTS\tHITS\tCREATED\n")
		for _, a := range articles.Pinned {
			fmt.Fprintf(tw, "%d\t[notice] %s\t%s\t%d\t%d\t%s\n", a.ID, truncate(a.Title, 50), a.AuthorName, a.CommentCount, a.Hit, a.CreatedAt)
		}
		for _, a := range articles.Page.Items {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\n", a.ID, truncate(a.Title, 60), a.AuthorName, a.CommentCount, a.Hit, a.CreatedAt)
		}
		flushTable(tw)
		return nil
	},
}

var articlesCmd = &cobra.Command{
	Use:   "articles",
	Short: "Read articles",
}

var articlesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		articleID, err := parseID(args[0])
		if err != nil {
			return err
		}
		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.loginIfConfigured(cmd); err != nil {
			return err
		}
		article, err := rt.api().Article(cmd.Context(), articleID)
		if err != nil {
			return err
		}
		if handled, err := writeOutput(cmd, article); handled {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n", article.Title)
		fmt.Fprintf(out, "%s in %s, %s | hits %d | +%d -%d | comments %d\n\n",
			article.AuthorName, article.Board.BoardName, article.CreatedAt,
			article.Hit, article.LikeCount, article.DislikeCount, article.CommentCount)
		fmt.Fprintln(out, article.Content)
		for _, f := range article.Attachments {
			fmt.Fprintf(out, "  attachment: %s %s\n", f.FileName, rt.api().FileURL(f.StorageKey))
		}
		return nil
	},
}

var commentsCmd = &cobra.Command{
	Use:   "comments",
	Short: "Read comments",
}

var commentsListCmd = &cobra.Command{
	Use:   "list <article-id>",
	Short: "List the comments of an article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		articleID, err := parseID(args[0])
		if err != nil {
			return err
		}
		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.loginIfConfigured(cmd); err != nil {
			return err
		}
		page, err := rt.api().ArticleComments(cmd.Context(), articleID, pageNumber, pageSize)
		if err != nil {
			return err
		}
		if handled, err := writeOutput(cmd, page); handled {
			return err
		}
		out := cmd.OutOrStdout()
		var walk func(depth int, items []forum.CommentTree)
		walk = func(depth int, items []forum.CommentTree) {
			for _, c := range items {
				indent := strings.Repeat("  ", depth)
				content := c.Content
				if c.DeletedAt != nil {
					content = "(deleted)"
				}
				fmt.Fprintf(out, "%s#%d %s: %s\n", indent, c.ID, c.AuthorName, truncate(content, 100))
				walk(depth+1, c.Children)
			}
		}
		walk(0, page.Items)
		return nil
	},
}

func parseID(raw string) (int64, error) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return v, nil
}

func init() {
	for _, c := range []*cobra.Command{boardsListCmd, boardsShowCmd, commentsListCmd} {
		c.Flags().IntVar(&pageNumber, "page", 1, "Page number")
		c.Flags().IntVar(&pageSize, "size", 20, "Page size")
	}
	boardsCmd.AddCommand(boardsListCmd)
	boardsCmd.AddCommand(boardsShowCmd)
	articlesCmd.AddCommand(articlesShowCmd)
	commentsCmd.AddCommand(commentsListCmd)
}
