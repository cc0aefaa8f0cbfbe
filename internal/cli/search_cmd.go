package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OhSeongHyeon/mocktalkfront/internal/forum"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search boards, articles, comments and users",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawType, _ := cmd.Flags().GetString("type")
		kind, err := forum.ParseSearchType(rawType)
		if err != nil {
			return err
		}
		oldest, _ := cmd.Flags().GetBool("oldest")
		board, _ := cmd.Flags().GetString("board")
		query := forum.SearchQuery{Q: strings.Join(args, " "), Type: kind, Oldest: oldest, BoardSlug: board}
		if cmd.Flags().Changed("page") {
			query.Page = &pageNumber
		}
		if cmd.Flags().Changed("size") {
			query.Size = &pageSize
		}

		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.loginIfConfigured(cmd); err != nil {
			return err
		}
		res, err := rt.api().Search(cmd.Context(), query)
		if err != nil {
			return err
		}
		if handled, err := writeOutput(cmd, res); handled {
			return err
		}
		printSearchResults(cmd, res)
		return nil
	},
}

func printSearchResults(cmd *cobra.Command, res forum.SearchResults) {
	out := cmd.OutOrStdout()
	total := len(res.Boards.Items) + len(res.Articles.Items) + len(res.Comments.Items) + len(res.Users.Items)
	if total == 0 {
		fmt.Fprintln(out, "No results.")
		return
	}
	tw := newTable(out)
	fmt.Fprintf(tw, "KIND\tID\tWHERE\tTEXT\n")
	for _, b := range res.Boards.Items {
		fmt.Fprintf(tw, "board\t%d\t/%s\t%s\n", b.ID, b.Slug, b.BoardName)
	}
	for _, a := range res.Articles.Items {
		fmt.Fprintf(tw, "article\t%d\t/%s\t%s (%s)\n", a.ID, a.BoardSlug, truncate(a.Title, 60), a.AuthorName)
	}
	for _, c := range res.Comments.Items {
		fmt.Fprintf(tw, "comment\t%d\t/%s #%d\t%s: %s\n", c.ID, c.BoardSlug, c.ArticleID, c.AuthorName, truncate(c.Content, 60))
	}
	for _, u := range res.Users.Items {
		fmt.Fprintf(tw, "user\t%d\t@%s\t%s\n", u.ID, u.Handle, u.DisplayName)
	}
	flushTable(tw)
	if res.Boards.HasNext || res.Articles.HasNext || res.Comments.HasNext || res.Users.HasNext {
		fmt.Fprintln(out, "(more results on the next page)")
	}
}

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "List your own articles and comments",
}

var meArticlesCmd = &cobra.Command{
	Use:   "articles",
	Short: "List articles you wrote",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.login(cmd); err != nil {
			return err
		}
		page, err := rt.api().MyArticles(cmd.Context(), pageNumber, pageSize)
		if err != nil {
			return err
		}
		if handled, err := writeOutput(cmd, page); handled {
			return err
		}
		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintf(tw, "ID\tBOARD\tTITLE\tHITS\tCREATED\n")
		for _, a := range page.Items {
			title := a.Title
			if a.DeletedAt != nil {
				title = "(deleted) " + title
			}
			fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%s\n", a.ID, a.BoardID, truncate(title, 60), a.Hit, a.CreatedAt)
		}
		flushTable(tw)
		return nil
	},
}

var meCommentsCmd = &cobra.Command{
	Use:   "comments",
	Short: "List comments you wrote",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.login(cmd); err != nil {
			return err
		}
		page, err := rt.api().MyComments(cmd.Context(), pageNumber, pageSize)
		if err != nil {
			return err
		}
		if handled, err := writeOutput(cmd, page); handled {
			return err
		}
		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintf(tw, "ID\tARTICLE\tCONTENT\tCREATED\n")
		for _, c := range page.Items {
			content := c.Content
			if c.DeletedAt != nil {
				content = "(deleted)"
			}
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", c.ID, c.ArticleID, truncate(content, 80), c.CreatedAt)
		}
		flushTable(tw)
		return nil
	},
}

func init() {
	searchCmd.Flags().String("type", "", "Restrict to board, article, comment or user")
	searchCmd.Flags().Bool("oldest", false, "Oldest results first")
	searchCmd.Flags().String("board", "", "Restrict to one board slug")
	for _, c := range []*cobra.Command{searchCmd, meArticlesCmd, meCommentsCmd} {
		c.Flags().IntVar(&pageNumber, "page", 1, "Page number")
		c.Flags().IntVar(&pageSize, "size", 20, "Page size")
	}
	meCmd.AddCommand(meArticlesCmd)
	meCmd.AddCommand(meCommentsCmd)
}
