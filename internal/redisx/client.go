package redisx

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPingTimeout = 5 * time.Second

// Config configures the Redis client used to share the logout signal
// between processes signed in to the same account.
type Config struct {
	Addr        string
	Username    string
	Password    string
	DB          int
	TLSEnabled  bool
	TLSInsecure bool
	// Prefix namespaces channel names; defaults to "mocktalk".
	Prefix string
}

// NewClient returns a configured Redis client or nil when no address is provided.
func NewClient(ctx context.Context, cfg Config) (redis.UniversalClient, error) {
	if cfg.Addr == "" {
		return nil, nil
	}

	opts := &redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			InsecureSkipVerify: cfg.TLSInsecure, // #nosec G402 – intentional opt-in
		}
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// SessionChannel names the pub/sub channel for session signals of one
// account on one API server, e.g. "mocktalk:api.example.com:kim:session".
// It returns "" without a login id: an anonymous process has no session to
// share.
func (c Config) SessionChannel(apiBaseURL, loginID string) string {
	loginID = strings.TrimSpace(loginID)
	if loginID == "" {
		return ""
	}
	prefix := strings.TrimSpace(c.Prefix)
	if prefix == "" {
		prefix = "mocktalk"
	}
	host := apiBaseURL
	if u, err := url.Parse(apiBaseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return prefix + ":" + host + ":" + loginID + ":session"
}
