package forum

import (
	"context"
	"net/http"
	"net/url"

	"github.com/OhSeongHyeon/mocktalkfront/internal/gateway"
)

// Board is a board summary.
type Board struct {
	ID          int64   `json:"id"`
	BoardName   string  `json:"boardName"`
	Slug        string  `json:"slug"`
	Description *string `json:"description"`
	Visibility  string  `json:"visibility"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
	DeletedAt   *string `json:"deletedAt"`
	BoardImage  *File   `json:"boardImage"`
}

// BoardDetail adds the caller's membership to a board.
type BoardDetail struct {
	Board
	OwnerDisplayName *string `json:"ownerDisplayName"`
	MemberStatus     *string `json:"memberStatus"`
	Subscribed       bool    `json:"subscribed"`
}

// ArticleSummary is one row of a board listing.
type ArticleSummary struct {
	ID           int64  `json:"id"`
	BoardID      int64  `json:"boardId"`
	UserID       int64  `json:"userId"`
	AuthorName   string `json:"authorName"`
	Title        string `json:"title"`
	Hit          int64  `json:"hit"`
	CommentCount int64  `json:"commentCount"`
	Notice       bool   `json:"notice"`
	CreatedAt    string `json:"createdAt"`
}

// BoardArticles is a board listing with its pinned notices.
type BoardArticles struct {
	Pinned []ArticleSummary     `json:"pinned"`
	Page   Page[ArticleSummary] `json:"page"`
}

// BoardCreateRequest creates a board.
type BoardCreateRequest struct {
	BoardName   string  `json:"boardName"`
	Slug        string  `json:"slug"`
	Description *string `json:"description,omitempty"`
	Visibility  string  `json:"visibility"`
}

// ListBoards returns one page of boards.
func (c *Client) ListBoards(ctx context.Context, page, size int) (Page[Board], error) {
	return call[Page[Board]](ctx, c.exec, "/boards?"+pageQuery(page, size).Encode(), get())
}

// BoardBySlug resolves a board by its slug.
func (c *Client) BoardBySlug(ctx context.Context, slug string) (BoardDetail, error) {
	return call[BoardDetail](ctx, c.exec, "/boards/slug/"+url.PathEscape(slug), get())
}

// BoardArticles lists articles of a board.
func (c *Client) BoardArticles(ctx context.Context, boardID int64, page, size int) (BoardArticles, error) {
	path := "/boards/" + id(boardID) + "/articles?" + pageQuery(page, size).Encode()
	return call[BoardArticles](ctx, c.exec, path, get())
}

// CreateBoard creates a board owned by the caller.
func (c *Client) CreateBoard(ctx context.Context, in BoardCreateRequest) (Board, error) {
	req, err := gateway.JSON(http.MethodPost, in)
	if err != nil {
		return Board{}, err
	}
	return call[Board](ctx, c.exec, "/boards", req)
}
