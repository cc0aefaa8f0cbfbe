package forum

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

// Notification types.
const (
	NotificationArticleComment = "ARTICLE_COMMENT"
	NotificationCommentReply   = "COMMENT_REPLY"
	NotificationBoardNotice    = "BOARD_NOTICE"
	NotificationSystem         = "SYSTEM"
	NotificationReaction       = "REACTION"
	NotificationMention        = "MENTION"
)

// Notification is one inbox entry.
type Notification struct {
	ID            int64   `json:"id"`
	UserID        int64   `json:"userId"`
	SenderID      *int64  `json:"senderId"`
	SenderName    *string `json:"senderName"`
	SenderHandle  *string `json:"senderHandle"`
	NotiType      string  `json:"notiType"`
	RedirectURL   *string `json:"redirectUrl"`
	ReferenceType string  `json:"referenceType"`
	ReferenceID   int64   `json:"referenceId"`
	ArticleTitle  *string `json:"articleTitle"`
	Read          bool    `json:"read"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

// Notifications lists the inbox. A nil read returns both read and unread.
func (c *Client) Notifications(ctx context.Context, page, size int, read *bool) (Page[Notification], error) {
	q := pageQuery(page, size)
	if read != nil {
		q.Set("read", strconv.FormatBool(*read))
	}
	return call[Page[Notification]](ctx, c.exec, "/notifications?"+q.Encode(), get())
}

// MarkNotificationRead marks one notification read.
func (c *Client) MarkNotificationRead(ctx context.Context, notificationID int64) (Notification, error) {
	return call[Notification](ctx, c.exec, "/notifications/"+id(notificationID)+"/read", withMethod(http.MethodPatch))
}

// MarkAllNotificationsRead marks the whole inbox read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	_, err := call[interface{}](ctx, c.exec, "/notifications/read-all", withMethod(http.MethodPatch))
	return err
}

// DeleteNotification removes one notification.
func (c *Client) DeleteNotification(ctx context.Context, notificationID int64) error {
	_, err := call[interface{}](ctx, c.exec, "/notifications/"+id(notificationID), withMethod(http.MethodDelete))
	return err
}

// DeleteAllNotifications empties the inbox.
func (c *Client) DeleteAllNotifications(ctx context.Context) error {
	_, err := call[interface{}](ctx, c.exec, "/notifications", withMethod(http.MethodDelete))
	return err
}

// FormatNotification renders a one-line description of n.
func FormatNotification(n Notification) string {
	prefix := ""
	if sender := senderLabel(n); sender != "" {
		prefix = sender + " "
	}
	suffix := ""
	if n.ArticleTitle != nil && *n.ArticleTitle != "" {
		suffix = ": " + *n.ArticleTitle
	}

	switch n.NotiType {
	case NotificationArticleComment:
		return prefix + "commented on your article" + suffix
	case NotificationCommentReply:
		return prefix + "replied to your comment" + suffix
	case NotificationMention:
		return prefix + "mentioned you" + suffix
	case NotificationReaction:
		return prefix + "reacted to your post" + suffix
	case NotificationBoardNotice:
		return "A board notice was posted" + suffix
	case NotificationSystem:
		return "You have a system notification."
	default:
		return "You have a new notification."
	}
}

func senderLabel(n Notification) string {
	var name, handle string
	if n.SenderName != nil {
		name = strings.TrimSpace(*n.SenderName)
	}
	if n.SenderHandle != nil {
		handle = strings.TrimSpace(*n.SenderHandle)
	}
	switch {
	case name != "" && handle != "":
		return name + "(@" + handle + ")"
	case name != "":
		return name
	case handle != "":
		return "@" + handle
	default:
		return ""
	}
}
