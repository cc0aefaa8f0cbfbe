package forum

import (
	"context"
	"fmt"
	"net/http"

	"github.com/OhSeongHyeon/mocktalkfront/internal/gateway"
	"github.com/OhSeongHyeon/mocktalkfront/internal/logutil"
	"github.com/OhSeongHyeon/mocktalkfront/internal/renewal"
)

// LoginRequest is the password login payload.
type LoginRequest struct {
	LoginID    string `json:"loginId"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

// RegisterRequest is the account sign-up payload.
type RegisterRequest struct {
	LoginID         string `json:"loginId"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	UserName        string `json:"userName,omitempty"`
	DisplayName     string `json:"displayName,omitempty"`
	Handle          string `json:"handle,omitempty"`
}

// Login exchanges credentials for an access token and stores it. The
// response also sets the refresh-session cookie on the shared jar.
func (c *Client) Login(ctx context.Context, in LoginRequest) (renewal.TokenResponse, error) {
	req, err := gateway.JSON(http.MethodPost, in)
	if err != nil {
		return renewal.TokenResponse{}, err
	}
	return c.acceptToken(ctx, "/auth/login", req)
}

// ExchangeOAuth2Code completes a social login.
func (c *Client) ExchangeOAuth2Code(ctx context.Context, code string) (renewal.TokenResponse, error) {
	req, err := gateway.JSON(http.MethodPost, map[string]string{"code": code})
	if err != nil {
		return renewal.TokenResponse{}, err
	}
	return c.acceptToken(ctx, "/auth/oauth2/callback", req)
}

// Register creates an account. It does not sign in.
func (c *Client) Register(ctx context.Context, in RegisterRequest) error {
	if in.Password != in.ConfirmPassword {
		return fmt.Errorf("register: passwords do not match")
	}
	req, err := gateway.JSON(http.MethodPost, in)
	if err != nil {
		return err
	}
	_, err = c.exec.Execute(ctx, "/auth/join", req)
	return err
}

// Logout ends the server session, then clears local state and raises the
// session-ended signal. Local state is cleared even if the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.exec.Execute(ctx, "/auth/logout", withMethod(http.MethodPost))
	if err != nil {
		logutil.Warn("server logout failed", err, nil)
	}
	if c.store != nil {
		c.store.Clear()
	}
	if c.terminator != nil {
		c.terminator.Raise(ctx)
	}
	return err
}

func (c *Client) acceptToken(ctx context.Context, path string, req gateway.Request) (renewal.TokenResponse, error) {
	token, err := gateway.Do[renewal.TokenResponse](ctx, c.exec, path, req)
	if err != nil {
		return renewal.TokenResponse{}, err
	}
	if err := token.Validate(); err != nil {
		return renewal.TokenResponse{}, fmt.Errorf("%s: %w", path, err)
	}
	if c.store != nil {
		if err := c.store.SetTyped(token.AccessToken, token.TokenType, *token.ExpiresInSec); err != nil {
			return renewal.TokenResponse{}, err
		}
	}
	logutil.Info("signed in", map[string]interface{}{"via": path, "expires_in_sec": *token.ExpiresInSec})
	return token, nil
}
