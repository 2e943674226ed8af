package security

import (
	"context"
	"errors"

	"github.com/vango-dev/authgate/pkg/auth"
	"github.com/vango-dev/authgate/pkg/routes"
)

// Navigate runs the access state machine for loc. It blocks for the
// duration of a verify round-trip; concurrent callers observe
// ViewLoading meanwhile.
func (c *Context) Navigate(ctx context.Context, loc Location) Outcome {
	class := c.table.Classify(loc.Path)

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.location = loc
	c.mu.Unlock()

	switch class {
	case routes.Login:
		return c.enterLogin(ctx, gen)
	case routes.Gated:
		return c.enterGated(ctx, gen, loc)
	default:
		c.mu.Lock()
		if !c.isStale(gen) {
			c.view = ViewReady
		}
		c.mu.Unlock()
		return Outcome{Kind: OutcomeRender, Class: routes.Public}
	}
}

// NavigateURL parses raw and navigates to it.
func (c *Context) NavigateURL(ctx context.Context, raw string) (Outcome, error) {
	loc, err := ParseLocation(raw)
	if err != nil {
		return Outcome{}, err
	}
	return c.Navigate(ctx, loc), nil
}

func (c *Context) enterLogin(ctx context.Context, gen uint64) Outcome {
	err := c.clearStore(ctx)

	c.mu.Lock()
	c.resetLocked()
	if !c.isStale(gen) {
		c.view = ViewReady
	}
	c.mu.Unlock()

	c.logger.Debug("login route entered, session cleared")
	return Outcome{Kind: OutcomeLoginReset, Class: routes.Login, Err: err}
}

func (c *Context) enterGated(ctx context.Context, gen uint64, loc Location) Outcome {
	token, err := c.store.Token(ctx)
	if err != nil {
		c.logger.Warn("token store read failed, treating as signed out", "error", err)
		token = ""
	}

	if token == "" {
		c.mu.Lock()
		if c.isStale(gen) {
			c.mu.Unlock()
			return Outcome{Kind: OutcomeStale, Class: routes.Gated, Err: auth.ErrNoToken}
		}
		c.resetLocked()
		c.view = ViewRedirecting
		c.pending.Remember(loc.Target())
		_ = c.clearStore(ctx)
		c.mu.Unlock()

		target := c.goTo(loc.Host, c.cfg.LoginPath)
		c.logger.Info("gated route without session, redirecting to login", "path", loc.Path)
		return Outcome{Kind: OutcomeRedirect, Class: routes.Gated, Target: target, Err: auth.ErrNoToken}
	}

	c.mu.Lock()
	if !c.isStale(gen) {
		c.view = ViewLoading
	}
	c.mu.Unlock()

	user, err := c.service.Verify(ctx, token)

	c.mu.Lock()
	if c.isStale(gen) {
		c.mu.Unlock()
		c.logger.Debug("discarding stale verify result", "path", loc.Path)
		return Outcome{Kind: OutcomeStale, Class: routes.Gated}
	}

	switch {
	case err == nil:
		c.authenticated = true
		c.verified = true
		if user != nil {
			c.user = user.Clone()
		}
		c.view = ViewReady
		// Persist under c.mu: any later clear follows a gen bump.
		if user != nil {
			if err := c.store.SetUser(ctx, user); err != nil {
				c.logger.Warn("failed to cache verified user", "error", err)
			}
		}
		c.mu.Unlock()

		c.metrics.RecordVerify("ok")
		return Outcome{Kind: OutcomeRender, Class: routes.Gated}

	case errors.Is(err, auth.ErrExpiredToken):
		c.verified = false
		c.view = ViewExpired
		c.mu.Unlock()

		c.metrics.RecordVerify("expired")
		c.prompt.Raise()
		return Outcome{Kind: OutcomeExpired, Class: routes.Gated, Err: err}

	default:
		c.resetLocked()
		c.view = ViewRedirecting
		c.mu.Unlock()

		c.metrics.RecordVerify("invalid")
		c.logger.Info("session verification failed, redirecting to login", "error", err)
		_ = c.clearStore(ctx)
		target := c.goTo(loc.Host, c.cfg.LoginPath)
		return Outcome{Kind: OutcomeRedirect, Class: routes.Gated, Target: target, Err: ensureInvalid(err)}
	}
}

// ensureInvalid makes sure a verify failure carries auth.ErrInvalidToken.
func ensureInvalid(err error) error {
	if errors.Is(err, auth.ErrInvalidToken) {
		return err
	}
	return errors.Join(auth.ErrInvalidToken, err)
}
