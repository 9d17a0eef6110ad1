// Package scanclient is the door-side half of check-in: it keeps the
// operator's access token, talks to the validation API and debounces
// scans so each physical scan reaches the server once.
package scanclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoCredential is returned when no unexpired token is cached.
var ErrNoCredential = errors.New("no valid operator credential")

// expirySkew treats a token as expired slightly early so it never lapses
// in flight.
const expirySkew = 10 * time.Second

// LoginFunc exchanges the operator's credentials for an access token.
type LoginFunc func(ctx context.Context) (string, error)

// Credentials caches one access token with its expiry.  It is safe for
// concurrent use.
type Credentials struct {
	login LoginFunc
	now   func() time.Time

	mu    sync.Mutex
	token string
	exp   time.Time
}

func NewCredentials(login LoginFunc) *Credentials {
	return &Credentials{login: login, now: time.Now}
}

// Acquire logs in and caches the new token.  The expiry comes from the
// token's exp claim; the signature is the server's business.
func (c *Credentials) Acquire(ctx context.Context) (string, error) {
	token, err := c.login(ctx)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	exp, err := expiryOf(token)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.token, c.exp = token, exp
	c.mu.Unlock()
	return token, nil
}

// Token returns the cached token, or ErrNoCredential when it is missing or
// expired.  An expired token is dropped.
func (c *Credentials) Token() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" {
		return "", ErrNoCredential
	}
	if !c.now().Add(expirySkew).Before(c.exp) {
		c.token, c.exp = "", time.Time{}
		return "", ErrNoCredential
	}
	return c.token, nil
}

// Ensure returns a valid token, logging in when needed.
func (c *Credentials) Ensure(ctx context.Context) (string, error) {
	if t, err := c.Token(); err == nil {
		return t, nil
	}
	return c.Acquire(ctx)
}

// Expire drops the cached token, e.g. after the server answered 401.
func (c *Credentials) Expire() {
	c.mu.Lock()
	c.token, c.exp = "", time.Time{}
	c.mu.Unlock()
}

func expiryOf(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parse access token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, errors.New("access token has no exp claim")
	}
	return exp.Time, nil
}
