// Package identity provisions agent accounts and issues bearer sessions.
//
// The provider is an explicitly constructed, injected client: registration
// calls CreateAccount, login calls SignIn, and the auth middleware calls
// Verify with the bearer token from each request. There is no ambient
// current-user state.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/helpmh2023/sekretos-hunt-quest/internal/models"
)

var (
	// ErrInvalidCredentials is returned when the handle/secret pair does not
	// match a provisioned account.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionExpired is returned when a token is malformed, expired, or
	// revoked.
	ErrSessionExpired = errors.New("session expired or revoked")
)

// Session is the result of a successful sign-in.
type Session struct {
	Token     string    `json:"token"`
	Identity  uuid.UUID `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Claims is the verified content of a session token.
type Claims struct {
	Identity uuid.UUID
	TokenID  string
}

// AccountStore is the subset of the data store the provider needs. A handle
// collision surfaces as store.ErrHandleTaken.
type AccountStore interface {
	CreateAccount(ctx context.Context, handle, secret string) (*models.Account, error)
	GetAccountByHandle(ctx context.Context, handle string) (*models.Account, error)
}

// SessionStore records issued tokens so revocation takes effect before the
// token's own expiry.
type SessionStore interface {
	PutSession(ctx context.Context, tokenID, identity string, ttl time.Duration) error
	SessionLive(ctx context.Context, tokenID string) (bool, error)
	RevokeSession(ctx context.Context, tokenID string) error
}

// Provider creates accounts and manages sessions backed by signed tokens.
type Provider struct {
	accounts AccountStore
	sessions SessionStore
	secret   []byte
	ttl      time.Duration
}

// NewProvider creates an identity provider. secret signs session tokens, ttl
// bounds their lifetime.
func NewProvider(accounts AccountStore, sessions SessionStore, secret string, ttl time.Duration) *Provider {
	return &Provider{
		accounts: accounts,
		sessions: sessions,
		secret:   []byte(secret),
		ttl:      ttl,
	}
}

// CreateAccount provisions a new identity for the given handle and secret,
// returning the identity key. Propagates store.ErrHandleTaken on collision.
func (p *Provider) CreateAccount(ctx context.Context, handle, secret string) (uuid.UUID, error) {
	account, err := p.accounts.CreateAccount(ctx, handle, secret)
	if err != nil {
		return uuid.Nil, err
	}
	return account.ID, nil
}

// SignIn authenticates a handle/secret pair and issues a session token.
func (p *Provider) SignIn(ctx context.Context, handle, secret string) (*Session, error) {
	account, err := p.accounts.GetAccountByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	if account == nil || account.Secret != secret {
		return nil, ErrInvalidCredentials
	}

	tokenID := uuid.New().String()
	expiresAt := time.Now().Add(p.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   account.ID.String(),
		ID:        tokenID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return nil, err
	}

	if err := p.sessions.PutSession(ctx, tokenID, account.ID.String(), p.ttl); err != nil {
		return nil, err
	}

	return &Session{Token: signed, Identity: account.ID, ExpiresAt: expiresAt}, nil
}

// Verify checks a bearer token and returns its claims. Fails if the token is
// invalid, expired, or its session has been revoked.
func (p *Provider) Verify(ctx context.Context, bearer string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(bearer, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrSessionExpired
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" || claims.ID == "" {
		return nil, ErrSessionExpired
	}

	live, err := p.sessions.SessionLive(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, ErrSessionExpired
	}

	identity, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrSessionExpired
	}

	return &Claims{Identity: identity, TokenID: claims.ID}, nil
}

// SignOut revokes the session behind a token ID.
func (p *Provider) SignOut(ctx context.Context, tokenID string) error {
	return p.sessions.RevokeSession(ctx, tokenID)
}
