package forum

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/OhSeongHyeon/mocktalkfront/internal/gateway"
)

// UserProfile is the signed-in user's profile.
type UserProfile struct {
	UserID       int64  `json:"userId"`
	LoginID      string `json:"loginId"`
	Email        string `json:"email"`
	UserName     string `json:"userName"`
	DisplayName  string `json:"displayName"`
	Handle       string `json:"handle"`
	UserPoint    int64  `json:"userPoint"`
	ProfileImage *File  `json:"profileImage"`
}

// Mention is a user suggestion for @-mentions.
type Mention struct {
	UserID       int64  `json:"userId"`
	Handle       string `json:"handle"`
	DisplayName  string `json:"displayName"`
	ProfileImage *File  `json:"profileImage"`
}

// PresenceView says what the user is looking at, which lets the server
// suppress notifications for the article already on screen.
type PresenceView string

const (
	ViewHome          PresenceView = "HOME"
	ViewArticleDetail PresenceView = "ARTICLE_DETAIL"
	ViewOther         PresenceView = "OTHER"
)

// Presence is the notification presence heartbeat.
type Presence struct {
	SessionID             string       `json:"sessionId"`
	ViewType              PresenceView `json:"viewType"`
	ArticleID             *int64       `json:"articleId"`
	NotificationPanelOpen bool         `json:"notificationPanelOpen"`
}

// NewPresenceSessionID returns an id for one presence session.
func NewPresenceSessionID() string {
	return uuid.NewString()
}

// MyProfile fetches the profile and copies the display fields into the
// session store.
func (c *Client) MyProfile(ctx context.Context) (UserProfile, error) {
	profile, err := call[UserProfile](ctx, c.exec, "/users/me", get())
	if err != nil {
		return UserProfile{}, err
	}
	if c.store != nil {
		display := strings.TrimSpace(profile.DisplayName)
		if display == "" {
			display = profile.UserName
		}
		c.store.SetProfileSummary(display, profile.UserPoint)
		key := ""
		if profile.ProfileImage != nil {
			key = profile.ProfileImage.StorageKey
		}
		c.store.SetProfileImageURL(c.FileURL(key))
	}
	return profile, nil
}

// MyArticles lists the articles written by the signed-in user.
func (c *Client) MyArticles(ctx context.Context, page, size int) (Page[Article], error) {
	return call[Page[Article]](ctx, c.exec, "/users/me/articles?"+pageQuery(page, size).Encode(), get())
}

// MyComments lists the comments written by the signed-in user.
func (c *Client) MyComments(ctx context.Context, page, size int) (Page[Comment], error) {
	return call[Page[Comment]](ctx, c.exec, "/users/me/comments?"+pageQuery(page, size).Encode(), get())
}

// DeleteMyAccount withdraws the signed-in account. The server checks
// confirmText against its own confirmation phrase. Once the server accepts,
// the session ends the same way as a logout.
func (c *Client) DeleteMyAccount(ctx context.Context, confirmText string) error {
	req, err := gateway.JSON(http.MethodDelete, map[string]string{"confirmText": confirmText})
	if err != nil {
		return err
	}
	if _, err := call[interface{}](ctx, c.exec, "/users/me", req); err != nil {
		return err
	}
	if c.store != nil {
		c.store.Clear()
	}
	if c.terminator != nil {
		c.terminator.Raise(ctx)
	}
	return nil
}

// SearchMentions suggests users whose handle or name matches keyword.
func (c *Client) SearchMentions(ctx context.Context, keyword string, size int) ([]Mention, error) {
	if size <= 0 {
		size = 10
	}
	q := url.Values{}
	q.Set("keyword", keyword)
	q.Set("size", strconv.Itoa(size))
	return call[[]Mention](ctx, c.exec, "/users/mentions?"+q.Encode(), get())
}

// UpdatePresence reports the current view for a presence session.
func (c *Client) UpdatePresence(ctx context.Context, p Presence) error {
	if p.SessionID == "" {
		p.SessionID = NewPresenceSessionID()
	}
	req, err := gateway.JSON(http.MethodPut, p)
	if err != nil {
		return err
	}
	_, err = c.exec.Execute(ctx, "/realtime/notifications/presence", req)
	return err
}

// RemovePresence ends a presence session.
func (c *Client) RemovePresence(ctx context.Context, sessionID string) error {
	_, err := c.exec.Execute(ctx, "/realtime/notifications/presence/"+url.PathEscape(sessionID), withMethod(http.MethodDelete))
	return err
}

// FileURL resolves a storage key against the file base URL. Absolute keys
// pass through; an empty key yields "".
func (c *Client) FileURL(storageKey string) string {
	if storageKey == "" {
		return ""
	}
	if strings.HasPrefix(storageKey, "http://") || strings.HasPrefix(storageKey, "https://") {
		return storageKey
	}
	key := strings.TrimLeft(storageKey, "/")
	if strings.HasSuffix(c.fileBaseURL, "/uploads") {
		key = strings.TrimPrefix(key, "uploads/")
	}
	if c.fileBaseURL == "" {
		return "/" + key
	}
	return c.fileBaseURL + "/" + key
}
