package client

import (
	"context"
)

// SessionState is the client session lifecycle state
type SessionState int

const (
	// StateUnauthenticated means no stored session exists
	StateUnauthenticated SessionState = iota
	// StateVerifying means a stored token is being checked against /auth/me
	StateVerifying
	// StateRefreshing means the access token was rejected and a refresh is in flight
	StateRefreshing
	// StateAuthenticated means the session was verified against the server
	StateAuthenticated
	// StateFailed means recovery failed and the stored session was purged
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateVerifying:
		return "verifying"
	case StateRefreshing:
		return "refreshing"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Restore recovers a persisted session at startup. The flow fails closed: any
// outcome other than a verified session purges the store, so a half-valid
// token pair can never linger.
//
//	no stored tokens            -> Unauthenticated
//	/auth/me succeeds           -> Authenticated
//	401 -> refresh -> retry me  -> Authenticated
//	anything else               -> Failed (store purged)
func (c *Client) Restore(ctx context.Context) (SessionState, error) {
	session, err := c.store.Load()
	if err != nil {
		c.logger.Error("session load failed", "error", err)
		return c.fail(err)
	}

	if !session.HasTokens() {
		c.setState(StateUnauthenticated)
		return StateUnauthenticated, nil
	}

	c.setState(StateVerifying)

	user, err := c.fetchMe(ctx, session.Token)
	if err == nil {
		session.User = user
		if err := c.store.Save(session); err != nil {
			c.logger.Warn("session save failed", "error", err)
		}
		c.setUser(user)
		c.setState(StateAuthenticated)
		return StateAuthenticated, nil
	}

	if !isUnauthorized(err) {
		c.logger.Error("session verification failed", "error", err)
		return c.fail(err)
	}

	if session.RefreshToken == "" {
		return c.fail(err)
	}

	c.setState(StateRefreshing)

	token, err := c.refreshToken(ctx)
	if err != nil {
		c.logger.Error("session refresh failed", "error", err)
		return c.fail(err)
	}

	user, err = c.fetchMe(ctx, token)
	if err != nil {
		c.logger.Error("session retry failed after refresh", "error", err)
		return c.fail(err)
	}

	session, err = c.store.Load()
	if err != nil {
		return c.fail(err)
	}
	session.User = user
	if err := c.store.Save(session); err != nil {
		c.logger.Warn("session save failed", "error", err)
	}

	c.setUser(user)
	c.setState(StateAuthenticated)
	return StateAuthenticated, nil
}

// fail purges the stored session and reports the Failed state. Callers treat
// Failed the same as Unauthenticated, the distinction only matters for
// logging and tests.
func (c *Client) fail(err error) (SessionState, error) {
	if clearErr := c.store.Clear(); clearErr != nil {
		c.logger.Error("session purge failed", "error", clearErr)
	}
	c.setUser(nil)
	c.setState(StateFailed)
	return StateFailed, err
}

func (c *Client) setState(state SessionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

// State returns the current session state
func (c *Client) State() SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}
