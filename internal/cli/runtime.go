package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/OhSeongHyeon/mocktalkfront/internal/client"
	"github.com/OhSeongHyeon/mocktalkfront/internal/forum"
	"github.com/OhSeongHyeon/mocktalkfront/internal/logutil"
	"github.com/OhSeongHyeon/mocktalkfront/internal/redisx"
	"github.com/OhSeongHyeon/mocktalkfront/internal/store"
)

// runtime is the per-command wiring: one client, plus optional Redis and
// history store.
type runtime struct {
	cur     *Context
	client  *client.Client
	redis   redis.UniversalClient
	history *store.Store
}

func openRuntime(cmd *cobra.Command, withHistory bool) (*runtime, error) {
	cur, err := resolvedContext()
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt := &runtime{cur: cur}
	channel := envConfig.Redis().SessionChannel(cur.Server, cur.LoginID)
	if channel != "" {
		rt.redis, err = redisx.NewClient(ctx, envConfig.Redis())
		if err != nil {
			// Cross-process logout is optional; the local session still works.
			logutil.Warn("redis unavailable, session signal stays local", err, nil)
			rt.redis = nil
		}
	}

	rt.client, err = client.New(client.Options{
		BaseURL:        cur.Server,
		FileBaseURL:    cur.FileBaseURL,
		RenewalLead:    envConfig.RenewalLead,
		RequestTimeout: envConfig.RequestTimeout,
		Redis:          rt.redis,
		RedisChannel:   channel,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}

	if withHistory {
		rt.history, err = store.Open(envConfig.HistoryPath)
		if err != nil {
			logutil.Warn("history disabled", err, map[string]interface{}{"path": envConfig.HistoryPath})
			rt.history = nil
		}
	}
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.client != nil {
		rt.client.Close()
	}
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
	if rt.history != nil {
		_ = rt.history.Close()
	}
}

func (rt *runtime) api() *forum.Client {
	return rt.client.API
}

// login signs in with the context's login id. The password comes from
// MOCKTALK_PASSWORD or a prompt.
func (rt *runtime) login(cmd *cobra.Command) error {
	if rt.cur.LoginID == "" {
		return fmt.Errorf("no login id; set one with 'mocktalk config set-context --login' or pass --login-id")
	}
	password := os.Getenv("MOCKTALK_PASSWORD")
	if password == "" {
		var err error
		password, err = readLine(cmd.InOrStdin(), cmd.ErrOrStderr(), fmt.Sprintf("Password for %s: ", rt.cur.LoginID))
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}
	if _, err := rt.api().Login(cmd.Context(), forum.LoginRequest{LoginID: rt.cur.LoginID, Password: password}); err != nil {
		return fmt.Errorf("login as %s: %w", rt.cur.LoginID, err)
	}
	rt.record(store.EventLogin, "", map[string]interface{}{"login_id": rt.cur.LoginID, "server": rt.cur.Server})
	return nil
}

// loginIfConfigured signs in only when a login id is known.
func (rt *runtime) loginIfConfigured(cmd *cobra.Command) error {
	if rt.cur.LoginID == "" {
		return nil
	}
	return rt.login(cmd)
}

func (rt *runtime) record(event, scope string, metadata map[string]interface{}) {
	if rt.history == nil {
		return
	}
	if err := rt.history.AppendHistory(&store.HistoryEntry{Event: event, Scope: scope, Metadata: metadata}); err != nil {
		logutil.Warn("history append failed", err, map[string]interface{}{"event": event})
	}
}
