package forum

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// SearchType narrows a search to one kind of result.
type SearchType string

const (
	SearchAll     SearchType = "ALL"
	SearchBoard   SearchType = "BOARD"
	SearchArticle SearchType = "ARTICLE"
	SearchComment SearchType = "COMMENT"
	SearchUser    SearchType = "USER"
)

// ParseSearchType accepts a search type in any case. Empty means all.
func ParseSearchType(raw string) (SearchType, error) {
	switch t := SearchType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case "":
		return SearchAll, nil
	case SearchAll, SearchBoard, SearchArticle, SearchComment, SearchUser:
		return t, nil
	}
	return "", fmt.Errorf("unknown search type %q", raw)
}

// Slice is a page without totals.
type Slice[T any] struct {
	Items   []T  `json:"items"`
	Page    int  `json:"page"`
	Size    int  `json:"size"`
	HasNext bool `json:"hasNext"`
}

type BoardHit struct {
	ID          int64   `json:"id"`
	BoardName   string  `json:"boardName"`
	Slug        string  `json:"slug"`
	Description *string `json:"description"`
	Visibility  string  `json:"visibility"`
	BoardImage  *File   `json:"boardImage"`
	CreatedAt   string  `json:"createdAt"`
}

type ArticleHit struct {
	ID           int64  `json:"id"`
	BoardID      int64  `json:"boardId"`
	BoardSlug    string `json:"boardSlug"`
	BoardName    string `json:"boardName"`
	UserID       int64  `json:"userId"`
	AuthorName   string `json:"authorName"`
	Title        string `json:"title"`
	Hit          int64  `json:"hit"`
	CommentCount int64  `json:"commentCount"`
	LikeCount    int64  `json:"likeCount"`
	DislikeCount int64  `json:"dislikeCount"`
	Notice       bool   `json:"notice"`
	CreatedAt    string `json:"createdAt"`
}

type CommentHit struct {
	ID           int64  `json:"id"`
	ArticleID    int64  `json:"articleId"`
	ArticleTitle string `json:"articleTitle"`
	BoardID      int64  `json:"boardId"`
	BoardSlug    string `json:"boardSlug"`
	BoardName    string `json:"boardName"`
	UserID       int64  `json:"userId"`
	AuthorName   string `json:"authorName"`
	Content      string `json:"content"`
	CreatedAt    string `json:"createdAt"`
}

type UserHit struct {
	ID          int64  `json:"id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	CreatedAt   string `json:"createdAt"`
}

// SearchResults groups hits by kind. Kinds excluded by the search type come
// back empty.
type SearchResults struct {
	Boards   Slice[BoardHit]   `json:"boards"`
	Articles Slice[ArticleHit] `json:"articles"`
	Comments Slice[CommentHit] `json:"comments"`
	Users    Slice[UserHit]    `json:"users"`
}

// SearchQuery is one search request. Zero values are left off the query.
type SearchQuery struct {
	Q         string
	Type      SearchType
	Oldest    bool
	Page      *int
	Size      *int
	BoardSlug string
}

// Search runs a full-text search across boards, articles, comments and users.
func (c *Client) Search(ctx context.Context, in SearchQuery) (SearchResults, error) {
	q := strings.TrimSpace(in.Q)
	if q == "" {
		return SearchResults{}, fmt.Errorf("search: empty query")
	}
	values := url.Values{}
	values.Set("q", q)
	if in.Type != "" {
		values.Set("type", string(in.Type))
	}
	if in.Oldest {
		values.Set("order", "OLDEST")
	}
	if in.Page != nil {
		values.Set("page", strconv.Itoa(*in.Page))
	}
	if in.Size != nil {
		values.Set("size", strconv.Itoa(*in.Size))
	}
	if in.BoardSlug != "" {
		values.Set("boardSlug", in.BoardSlug)
	}
	return call[SearchResults](ctx, c.exec, "/search?"+values.Encode(), get())
}
