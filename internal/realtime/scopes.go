package realtime

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/OhSeongHyeon/mocktalkfront/internal/clock"
	"github.com/OhSeongHyeon/mocktalkfront/internal/session"
)

const (
	KindBoard         = "board"
	KindNotifications = "notifications"
)

// Options carry the dependencies shared by every channel of a client.
type Options struct {
	BaseURL    string
	Store      *session.State
	Renewer    Renewer
	Terminator Terminator
	Dialer     Dialer
	Clock      clock.Clock
	// Jitter overrides the random reconnect jitter; tests pin it to zero.
	Jitter func() time.Duration
}

func (o Options) base() string {
	return strings.TrimRight(o.BaseURL, "/")
}

// NewBoardChannel subscribes to comment and reaction changes on one board.
// The stream is anonymous-readable and never triggers renewal.
func NewBoardChannel(opts Options, boardID int64, sub Subscription) *Channel {
	target := fmt.Sprintf("%s/realtime/boards/%d/stream", opts.base(), boardID)
	return newChannel(channelConfig{
		kind:  KindBoard,
		scope: fmt.Sprintf("board:%d", boardID),
		url:   func(string) string { return target },
		events: []EventType{
			EventConnected,
			EventHeartbeat,
			EventCommentChanged,
			EventReactionChanged,
		},
		store:  opts.Store,
		dialer: opts.Dialer,
		clock:  opts.Clock,
		jitter: opts.Jitter,
		sub:    sub,
	})
}

// NewNotificationChannel subscribes to the signed-in user's unread count.
// The access token travels as a query parameter; a stream error triggers
// one renewal before falling back to backoff.
func NewNotificationChannel(opts Options, sub Subscription) *Channel {
	base := opts.base() + "/realtime/notifications/stream"
	return newChannel(channelConfig{
		kind:  KindNotifications,
		scope: "notifications",
		url: func(token string) string {
			return base + "?accessToken=" + url.QueryEscape(token)
		},
		events: []EventType{
			EventConnected,
			EventHeartbeat,
			EventUnreadCountChanged,
		},
		requireCredential: true,
		renewOnError:      true,
		store:             opts.Store,
		renewer:           opts.Renewer,
		terminator:        opts.Terminator,
		dialer:            opts.Dialer,
		clock:             opts.Clock,
		jitter:            opts.Jitter,
		sub:               sub,
	})
}
