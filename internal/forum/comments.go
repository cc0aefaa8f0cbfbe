package forum

import (
	"context"
	"net/http"

	"github.com/OhSeongHyeon/mocktalkfront/internal/gateway"
)

// CommentTree is a comment with its nested replies.
type CommentTree struct {
	ID              int64         `json:"id"`
	UserID          int64         `json:"userId"`
	AuthorName      string        `json:"authorName"`
	Content         string        `json:"content"`
	Depth           int           `json:"depth"`
	ParentCommentID *int64        `json:"parentCommentId"`
	RootCommentID   *int64        `json:"rootCommentId"`
	CreatedAt       string        `json:"createdAt"`
	UpdatedAt       string        `json:"updatedAt"`
	DeletedAt       *string       `json:"deletedAt"`
	LikeCount       int64         `json:"likeCount"`
	DislikeCount    int64         `json:"dislikeCount"`
	MyReaction      int           `json:"myReaction"`
	Children        []CommentTree `json:"children"`
}

// Comment is the flat comment representation used by listings outside an
// article.
type Comment struct {
	ID              int64   `json:"id"`
	UserID          int64   `json:"userId"`
	ArticleID       int64   `json:"articleId"`
	ParentCommentID *int64  `json:"parentCommentId"`
	RootCommentID   *int64  `json:"rootCommentId"`
	Depth           int     `json:"depth"`
	Content         string  `json:"content"`
	CreatedAt       string  `json:"createdAt"`
	UpdatedAt       string  `json:"updatedAt"`
	DeletedAt       *string `json:"deletedAt"`
}

// CommentSnapshot is a comment page tagged with the article's sync version,
// used to reconcile after a comment_changed event.
type CommentSnapshot struct {
	ArticleID   int64             `json:"articleId"`
	SyncVersion int64             `json:"syncVersion"`
	Page        Page[CommentTree] `json:"page"`
}

// CommentReactionSummary is returned after toggling a comment reaction.
type CommentReactionSummary struct {
	CommentID    int64 `json:"commentId"`
	LikeCount    int64 `json:"likeCount"`
	DislikeCount int64 `json:"dislikeCount"`
	MyReaction   int   `json:"myReaction"`
}

type commentBody struct {
	Content string `json:"content"`
}

// ArticleComments lists root comments of an article with their replies.
func (c *Client) ArticleComments(ctx context.Context, articleID int64, page, size int) (Page[CommentTree], error) {
	path := "/articles/" + id(articleID) + "/comments?" + pageQuery(page, size).Encode()
	return call[Page[CommentTree]](ctx, c.exec, path, get())
}

// CommentSnapshot fetches a comment page with its sync version.
func (c *Client) CommentSnapshot(ctx context.Context, articleID int64, page, size int) (CommentSnapshot, error) {
	path := "/articles/" + id(articleID) + "/comments/snapshot?" + pageQuery(page, size).Encode()
	return call[CommentSnapshot](ctx, c.exec, path, get())
}

// CreateComment adds a root comment.
func (c *Client) CreateComment(ctx context.Context, articleID int64, content string) (CommentTree, error) {
	return c.postComment(ctx, "/articles/"+id(articleID)+"/comments", http.MethodPost, content)
}

// CreateReply answers an existing comment.
func (c *Client) CreateReply(ctx context.Context, articleID, parentID int64, content string) (CommentTree, error) {
	return c.postComment(ctx, "/articles/"+id(articleID)+"/comments/"+id(parentID), http.MethodPost, content)
}

// UpdateComment edits a comment.
func (c *Client) UpdateComment(ctx context.Context, commentID int64, content string) (CommentTree, error) {
	return c.postComment(ctx, "/comments/"+id(commentID), http.MethodPut, content)
}

// DeleteComment removes a comment.
func (c *Client) DeleteComment(ctx context.Context, commentID int64) error {
	_, err := call[interface{}](ctx, c.exec, "/comments/"+id(commentID), withMethod(http.MethodDelete))
	return err
}

// ToggleCommentReaction sets or clears the caller's reaction on a comment.
func (c *Client) ToggleCommentReaction(ctx context.Context, commentID int64, reactionType int) (CommentReactionSummary, error) {
	req, err := gateway.JSON(http.MethodPost, map[string]int{"reactionType": reactionType})
	if err != nil {
		return CommentReactionSummary{}, err
	}
	return call[CommentReactionSummary](ctx, c.exec, "/comments/"+id(commentID)+"/reactions", req)
}

func (c *Client) postComment(ctx context.Context, path, method, content string) (CommentTree, error) {
	req, err := gateway.JSON(method, commentBody{Content: content})
	if err != nil {
		return CommentTree{}, err
	}
	return call[CommentTree](ctx, c.exec, path, req)
}
