package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"github.com/glimmerchat/engine/internal/secrets"
	"github.com/glimmerchat/engine/internal/store"
)

// ErrUnauthorized is the single failure shape for the whole chain: callers
// cannot tell which tier rejected them.
var ErrUnauthorized = errors.New("unauthorized")

const (
	internalSecretHeader = "X-Internal-Secret"
	sessionCookieName    = "glimmer_session"
)

// Request carries the credentials one HTTP request presented, pre-extracted
// so resolvers never touch the raw *http.Request.
type Request struct {
	InternalSecret string
	CookieToken    string
	UserID         string
	SessionID      string
}

// Resolver is one tier of the chain. It returns the authenticated user id,
// or "" when this tier has nothing to say about the request.
type Resolver func(ctx context.Context, req Request) (string, error)

// Chain resolves a request's identity by trying each tier in order. The
// first tier that yields a user id wins and later tiers never run.
type Chain struct {
	resolvers []Resolver
	logger    *slog.Logger
}

func NewChain(secret *secrets.ServiceSecret, signingKey []byte, st store.Store, logger *slog.Logger) *Chain {
	return &Chain{
		resolvers: []Resolver{
			internalSecretResolver(secret),
			cookieResolver(signingKey),
			ownershipResolver(st),
		},
		logger: logger,
	}
}

// Resolve returns the authenticated user id or ErrUnauthorized. Resolver
// errors are logged and treated as a miss for that tier.
func (c *Chain) Resolve(ctx context.Context, req Request) (string, error) {
	for _, resolve := range c.resolvers {
		userID, err := resolve(ctx, req)
		if err != nil {
			if c.logger != nil {
				c.logger.Debug("auth tier error", "error", err)
			}
			continue
		}
		if userID != "" {
			return userID, nil
		}
	}
	return "", ErrUnauthorized
}

// FromHTTP extracts the credential surface of an incoming request.
func FromHTTP(r *http.Request, userID string, sessionID string) Request {
	req := Request{
		InternalSecret: r.Header.Get(internalSecretHeader),
		UserID:         userID,
		SessionID:      sessionID,
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		req.CookieToken = cookie.Value
	}
	return req
}

// internalSecretResolver trusts the caller-supplied user id when the request
// presents the shared internal secret. Comparison is constant time.
func internalSecretResolver(secret *secrets.ServiceSecret) Resolver {
	return func(ctx context.Context, req Request) (string, error) {
		if req.InternalSecret == "" || !secret.Matches(req.InternalSecret) {
			return "", nil
		}
		return req.UserID, nil
	}
}

// cookieResolver validates the session cookie JWT. A subject that does not
// match the supplied user id is treated exactly like a missing cookie.
func cookieResolver(signingKey []byte) Resolver {
	return func(ctx context.Context, req Request) (string, error) {
		if req.CookieToken == "" || len(signingKey) == 0 {
			return "", nil
		}
		token, err := jwt.Parse(req.CookieToken, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
			}
			return signingKey, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			return "", nil
		}
		subject, err := token.Claims.GetSubject()
		if err != nil || subject == "" || subject != req.UserID {
			return "", nil
		}
		return subject, nil
	}
}

// ownershipResolver accepts the supplied user id when the store shows that
// user owning the session in question.
func ownershipResolver(st store.Store) Resolver {
	return func(ctx context.Context, req Request) (string, error) {
		if req.UserID == "" || req.SessionID == "" || st == nil {
			return "", nil
		}
		session, err := st.GetSession(ctx, req.SessionID)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				return "", nil
			}
			return "", fmt.Errorf("ownership lookup: %w", err)
		}
		if session.UserID != req.UserID {
			return "", nil
		}
		return req.UserID, nil
	}
}
