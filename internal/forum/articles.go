package forum

import (
	"context"
	"net/http"

	"github.com/OhSeongHyeon/mocktalkfront/internal/gateway"
)

// Reaction types accepted by the reaction endpoints.
const (
	ReactionLike    = 1
	ReactionDislike = -1
)

// ArticleBoard is the board block embedded in an article.
type ArticleBoard struct {
	ID          int64   `json:"id"`
	BoardName   string  `json:"boardName"`
	Slug        string  `json:"slug"`
	Description *string `json:"description"`
	Visibility  string  `json:"visibility"`
	BoardImage  *File   `json:"boardImage"`
}

// ArticleDetail is the full article view.
type ArticleDetail struct {
	ID           int64        `json:"id"`
	Board        ArticleBoard `json:"board"`
	UserID       int64        `json:"userId"`
	AuthorName   string       `json:"authorName"`
	Visibility   string       `json:"visibility"`
	Title        string       `json:"title"`
	Content      string       `json:"content"`
	Hit          int64        `json:"hit"`
	CommentCount int64        `json:"commentCount"`
	LikeCount    int64        `json:"likeCount"`
	DislikeCount int64        `json:"dislikeCount"`
	MyReaction   int          `json:"myReaction"`
	Notice       bool         `json:"notice"`
	CreatedAt    string       `json:"createdAt"`
	UpdatedAt    string       `json:"updatedAt"`
	Attachments  []File       `json:"attachments"`
}

// Article is the write-side article representation.
type Article struct {
	ID         int64   `json:"id"`
	BoardID    int64   `json:"boardId"`
	UserID     int64   `json:"userId"`
	CategoryID *int64  `json:"categoryId"`
	Visibility string  `json:"visibility"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Hit        int64   `json:"hit"`
	Notice     bool    `json:"notice"`
	CreatedAt  string  `json:"createdAt"`
	UpdatedAt  string  `json:"updatedAt"`
	DeletedAt  *string `json:"deletedAt"`
}

// ArticleCreateRequest creates an article.
type ArticleCreateRequest struct {
	BoardID    int64  `json:"boardId"`
	UserID     int64  `json:"userId"`
	CategoryID *int64 `json:"categoryId,omitempty"`
	Visibility string `json:"visibility"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	Notice     bool   `json:"notice"`
}

// ArticleUpdateRequest edits an article.
type ArticleUpdateRequest struct {
	CategoryID *int64 `json:"categoryId,omitempty"`
	Visibility string `json:"visibility"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	Notice     bool   `json:"notice"`
}

// ReactionSummary is returned after toggling a reaction on an article.
type ReactionSummary struct {
	ArticleID    int64 `json:"articleId"`
	LikeCount    int64 `json:"likeCount"`
	DislikeCount int64 `json:"dislikeCount"`
	MyReaction   int   `json:"myReaction"`
}

// Article fetches one article.
func (c *Client) Article(ctx context.Context, articleID int64) (ArticleDetail, error) {
	return call[ArticleDetail](ctx, c.exec, "/articles/"+id(articleID), get())
}

// CreateArticle posts a new article.
func (c *Client) CreateArticle(ctx context.Context, in ArticleCreateRequest) (Article, error) {
	req, err := gateway.JSON(http.MethodPost, in)
	if err != nil {
		return Article{}, err
	}
	return call[Article](ctx, c.exec, "/articles", req)
}

// UpdateArticle replaces an article's editable fields.
func (c *Client) UpdateArticle(ctx context.Context, articleID int64, in ArticleUpdateRequest) (Article, error) {
	req, err := gateway.JSON(http.MethodPut, in)
	if err != nil {
		return Article{}, err
	}
	return call[Article](ctx, c.exec, "/articles/"+id(articleID), req)
}

// DeleteArticle removes an article.
func (c *Client) DeleteArticle(ctx context.Context, articleID int64) error {
	_, err := call[interface{}](ctx, c.exec, "/articles/"+id(articleID), withMethod(http.MethodDelete))
	return err
}

// ToggleArticleReaction sets or clears the caller's reaction.
func (c *Client) ToggleArticleReaction(ctx context.Context, articleID int64, reactionType int) (ReactionSummary, error) {
	req, err := gateway.JSON(http.MethodPost, map[string]int{"reactionType": reactionType})
	if err != nil {
		return ReactionSummary{}, err
	}
	return call[ReactionSummary](ctx, c.exec, "/articles/"+id(articleID)+"/reactions", req)
}
