package security

import (
	"context"
	"errors"
	"fmt"

	"github.com/vango-dev/authgate/pkg/auth"
	"github.com/vango-dev/authgate/pkg/authclient"
	"github.com/vango-dev/authgate/pkg/expiry"
)

// Login authenticates with the Auth Service. On success the session is
// persisted and the user is sent to the pending redirect target, or to
// the default for their role. On failure nothing stored changes.
func (c *Context) Login(ctx context.Context, email, password string) LoginResult {
	resp, err := c.service.Login(ctx, email, password)
	if err != nil {
		c.metrics.RecordLogin(false)
		msg := authclient.MessageOf(err)
		if msg == "" {
			msg = err.Error()
		}
		c.logger.Info("login failed", "error", err)
		return LoginResult{Success: false, Err: err, Message: msg}
	}

	sess := auth.Session{
		SessionToken:  resp.SessionToken,
		RefreshToken:  resp.RefreshToken,
		User:          resp.User,
		Authenticated: true,
	}
	if err := c.store.Set(ctx, sess); err != nil {
		c.metrics.RecordLogin(false)
		return LoginResult{Success: false, Err: fmt.Errorf("security: persist session: %w", err), Message: "could not save session"}
	}

	c.mu.Lock()
	c.gen++
	c.authenticated = true
	c.verified = true
	c.user = resp.User.Clone()
	c.view = ViewRedirecting
	host := c.location.Host
	c.mu.Unlock()

	c.metrics.RecordLogin(true)
	c.prompt.Dismiss()

	dest, ok := c.pending.Take()
	if !ok {
		dest = c.roleDefault(resp.User)
	}
	c.goTo(host, dest)
	c.logger.Info("login succeeded", "destination", dest, "pending", ok)
	return LoginResult{Success: true, User: resp.User.Clone(), Destination: dest}
}

func (c *Context) roleDefault(u *auth.User) string {
	if u.HasRole(c.cfg.AdminRole) {
		return c.cfg.AdminHome
	}
	return c.cfg.PublicRoot
}

// Logout notifies the Auth Service best-effort, then clears the session
// and sends the user to the public root. Only a failure to clear local
// storage is returned.
func (c *Context) Logout(ctx context.Context) error {
	token, err := c.store.Token(ctx)
	if err != nil {
		c.logger.Warn("token store read failed during logout", "error", err)
	}

	notified := false
	if token != "" {
		if err := c.service.Logout(ctx, token); err != nil {
			c.logger.Debug("auth service logout failed, clearing locally", "error", err)
		} else {
			notified = true
		}
	}
	c.metrics.RecordLogout(notified)

	c.mu.Lock()
	c.gen++
	c.resetLocked()
	c.view = ViewRedirecting
	host := c.location.Host
	clearErr := c.clearStore(ctx)
	c.pending.Take()
	c.mu.Unlock()

	c.prompt.Dismiss()
	c.goTo(host, c.cfg.PublicRoot)
	if clearErr != nil {
		return fmt.Errorf("security: logout: %w", clearErr)
	}
	return nil
}

// UpdateUser merges patch into the cached user and persists it. Without
// a loaded user it does nothing.
func (c *Context) UpdateUser(ctx context.Context, patch auth.UserPatch) error {
	c.mu.Lock()
	if c.user == nil {
		c.mu.Unlock()
		return nil
	}
	updated := c.user.Apply(patch)
	c.user = updated
	c.mu.Unlock()

	if err := c.store.SetUser(ctx, updated); err != nil {
		return fmt.Errorf("security: update user: %w", err)
	}
	return nil
}

// Refresh is the prompt's "refresh" choice: it exchanges the stored
// refresh token for a new session token, dismisses the prompt and reloads
// in place. If the exchange fails it falls through to Relogin and returns
// an error wrapping auth.ErrRefreshFailed.
func (c *Context) Refresh(ctx context.Context) error {
	sess, err := c.store.Get(ctx)
	if err != nil {
		c.Relogin(ctx)
		return fmt.Errorf("%w: %w", auth.ErrRefreshFailed, err)
	}

	tokens, err := c.service.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		c.logger.Info("session refresh failed, relogin required", "error", err)
		c.Relogin(ctx)
		if !errors.Is(err, auth.ErrRefreshFailed) {
			err = errors.Join(auth.ErrRefreshFailed, err)
		}
		return err
	}
	if err := c.store.SetTokens(ctx, tokens); err != nil {
		c.Relogin(ctx)
		return fmt.Errorf("%w: %w", auth.ErrRefreshFailed, err)
	}

	c.mu.Lock()
	c.authenticated = true
	c.mu.Unlock()

	c.prompt.Dismiss()
	c.nav.Reload()
	c.logger.Info("session refreshed")
	return nil
}

// Relogin is the prompt's "relogin" choice: it remembers the current
// path, clears the session and sends the user to login.
func (c *Context) Relogin(ctx context.Context) {
	c.mu.Lock()
	loc := c.location
	c.mu.Unlock()

	if loc.Path != "" && !c.table.IsLogin(loc.Path) {
		c.pending.Remember(loc.Target())
	}
	_ = c.clearStore(ctx)

	c.mu.Lock()
	c.gen++
	c.resetLocked()
	c.view = ViewRedirecting
	c.mu.Unlock()

	c.prompt.Dismiss()
	c.goTo(loc.Host, c.cfg.LoginPath)
}

// HandleChoice dispatches a prompt choice. It matches
// expiry.ChoiceHandler so a Hub can forward UI answers directly.
func (c *Context) HandleChoice(ctx context.Context, choice expiry.Choice) {
	switch choice {
	case expiry.ChoiceRefresh:
		_ = c.Refresh(ctx)
	case expiry.ChoiceRelogin:
		c.Relogin(ctx)
	}
}
