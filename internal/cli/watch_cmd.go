package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/OhSeongHyeon/mocktalkfront/internal/api"
	"github.com/OhSeongHyeon/mocktalkfront/internal/forum"
	"github.com/OhSeongHyeon/mocktalkfront/internal/logutil"
	"github.com/OhSeongHyeon/mocktalkfront/internal/realtime"
	"github.com/OhSeongHyeon/mocktalkfront/internal/store"
)

const presenceInterval = 30 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream board and notification events until interrupted",
	Long: `watch opens one realtime channel per board and, when signed in, the
notification channel. It stops on Ctrl-C or when the session ends.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		boards, _ := cmd.Flags().GetInt64Slice("board")
		noNotifications, _ := cmd.Flags().GetBool("no-notifications")
		statusAddr, _ := cmd.Flags().GetString("status-addr")

		rt, err := openRuntime(cmd, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		if !cmd.Flags().Changed("board") {
			boards = rt.cur.Boards
		}
		watchNotifications := !noNotifications && rt.cur.LoginID != ""
		if len(boards) == 0 && !watchNotifications {
			return fmt.Errorf("nothing to watch: pass --board or configure a login id")
		}
		if err := rt.loginIfConfigured(cmd); err != nil {
			return err
		}
		if statusAddr == "" {
			statusAddr = envConfig.StatusAddr
		}
		return runWatch(cmd, rt, boards, watchNotifications, statusAddr)
	},
}

func runWatch(cmd *cobra.Command, rt *runtime, boards []int64, notifications bool, statusAddr string) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := &watcher{rt: rt, out: &lockedWriter{w: cmd.OutOrStdout()}}
	unsubscribe := rt.client.OnSessionEnded(w.sessionEnded(cancel))
	defer unsubscribe()

	for _, boardID := range boards {
		ch, err := rt.client.BoardChannel(boardID, w.boardSubscription(fmt.Sprintf("board:%d", boardID)))
		if err != nil {
			return err
		}
		w.resume(ch.Scope())
		ch.Connect()
	}
	if notifications {
		ch, err := rt.client.NotificationChannel(w.notificationSubscription())
		if err != nil {
			return err
		}
		w.resume(ch.Scope())
		ch.Connect()
		go w.keepPresence(ctx)
	}

	if statusAddr != "" {
		srv := api.NewServer(rt.client, api.Options{Token: envConfig.StatusToken, History: rt.history}).Start(statusAddr)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
		w.out.Printf("Status endpoint on %s\n", statusAddr)
	}

	what := fmt.Sprintf("%d board(s)", len(boards))
	if notifications {
		what += " and notifications"
	}
	w.out.Printf("Watching %s. Press Ctrl-C to stop.\n", what)
	<-ctx.Done()
	if w.ended() {
		return errors.New("session ended")
	}
	return nil
}

type watcher struct {
	rt  *runtime
	out *lockedWriter

	once    sync.Once
	mu      sync.Mutex
	isEnded bool
}

// sessionEnded stops the watch on the first session-ended signal.
func (w *watcher) sessionEnded(cancel context.CancelFunc) func() {
	return func() {
		w.once.Do(func() {
			w.mu.Lock()
			w.isEnded = true
			w.mu.Unlock()
			w.rt.record(store.EventSessionEnded, "", nil)
			w.out.Printf("Session ended, stopping.\n")
			cancel()
		})
	}
}

func (w *watcher) ended() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isEnded
}

func (w *watcher) resume(scope string) {
	if w.rt.history == nil {
		return
	}
	cur, err := w.rt.history.GetCursor(scope)
	if err != nil {
		return
	}
	logutil.Info("resuming watch", map[string]interface{}{"scope": scope, "last_event_id": cur.EventID, "last_occurred_at": cur.OccurredAt})
}

func (w *watcher) boardSubscription(scope string) realtime.Subscription {
	show := func(env realtime.Envelope) {
		w.out.Printf("%s\n", eventLine(scope, env))
		w.remember(scope, env)
	}
	return realtime.Subscription{
		Handlers: realtime.Handlers{
			realtime.EventConnected:       show,
			realtime.EventCommentChanged:  show,
			realtime.EventReactionChanged: show,
		},
		OnError: w.channelError(scope),
	}
}

func (w *watcher) notificationSubscription() realtime.Subscription {
	const scope = "notifications"
	show := func(env realtime.Envelope) {
		w.out.Printf("%s\n", eventLine(scope, env))
		w.remember(scope, env)
	}
	return realtime.Subscription{
		Handlers: realtime.Handlers{
			realtime.EventConnected:          show,
			realtime.EventUnreadCountChanged: show,
		},
		OnError: w.channelError(scope),
	}
}

func (w *watcher) channelError(scope string) func(error) {
	return func(err error) {
		w.out.Printf("[%s] stream interrupted: %v\n", scope, err)
		w.rt.record(store.EventChannelFailed, scope, map[string]interface{}{"error": err.Error()})
	}
}

func (w *watcher) remember(scope string, env realtime.Envelope) {
	if w.rt.history == nil || env.Type == string(realtime.EventConnected) {
		return
	}
	if err := w.rt.history.SaveCursor(store.Cursor{Scope: scope, EventID: env.EventID, OccurredAt: env.OccurredAt}); err != nil {
		logutil.Warn("save cursor failed", err, map[string]interface{}{"scope": scope})
	}
	w.rt.record(store.EventRealtime, scope, map[string]interface{}{"type": env.Type, "event_id": env.EventID})
}

// keepPresence reports the home view until ctx ends, then withdraws it.
func (w *watcher) keepPresence(ctx context.Context) {
	forumAPI := w.rt.api()
	p := forum.Presence{SessionID: forum.NewPresenceSessionID(), ViewType: forum.ViewHome}

	ticker := time.NewTicker(presenceInterval)
	defer ticker.Stop()
	for {
		if err := forumAPI.UpdatePresence(ctx, p); err != nil && ctx.Err() == nil {
			logutil.Warn("presence update failed", err, nil)
		}
		select {
		case <-ctx.Done():
			if !w.ended() {
				rmCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
				if err := forumAPI.RemovePresence(rmCtx, p.SessionID); err != nil {
					logutil.Debug("presence removal failed", map[string]interface{}{"error": err.Error()})
				}
				done()
			}
			return
		case <-ticker.C:
		}
	}
}

// eventLine renders one envelope for the terminal.
func eventLine(scope string, env realtime.Envelope) string {
	when := env.OccurredAt
	if t, ok := env.Time(); ok {
		when = t.Local().Format("15:04:05")
	}
	switch realtime.EventType(env.Type) {
	case realtime.EventConnected:
		return fmt.Sprintf("%s [%s] connected", when, scope)
	case realtime.EventUnreadCountChanged:
		var payload realtime.UnreadCount
		if err := env.Decode(&payload); err == nil && payload.UnreadCount != nil {
			return fmt.Sprintf("%s [%s] unread notifications: %d", when, scope, *payload.UnreadCount)
		}
		return fmt.Sprintf("%s [%s] unread count changed", when, scope)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Sprintf("%s [%s] %s", when, scope, env.Type)
	}
	return fmt.Sprintf("%s [%s] %s %s", when, scope, env.Type, truncate(string(env.Data), 120))
}

func init() {
	watchCmd.Flags().Int64Slice("board", nil, "Board ids to watch (default from context)")
	watchCmd.Flags().Bool("no-notifications", false, "Do not open the notification channel")
	watchCmd.Flags().String("status-addr", "", "Serve session status on this address (default STATUS_ADDR)")
}
