// Package auth keeps the customer's bearer token for the session.
package auth

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/hcbookstore/storefront/internal/storage"
)

// TokenKey is the fixed key the token is stored under.
const TokenKey = "hc_bookstore_auth"

// ErrInvalidCredentials is returned when the upstream rejects a login.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Credentials are the login form fields.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User is the profile returned with a token.
type User struct {
	ID        int64    `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Roles     []string `json:"roles"`
	UserType  string   `json:"userType,omitempty"`
}

// Token is an issued bearer token with its owner.
type Token struct {
	Value string `json:"token"`
	Type  string `json:"type"`
	User  User   `json:"user"`
}

// Header returns the Authorization header value.
func (t Token) Header() string {
	typ := t.Type
	if typ == "" {
		typ = "Bearer"
	}
	return typ + " " + t.Value
}

type tokenKey struct{}

// WithToken returns a context carrying t for outgoing upstream calls.
func WithToken(ctx context.Context, t Token) context.Context {
	return context.WithValue(ctx, tokenKey{}, t)
}

// TokenFrom returns the token carried by ctx.
func TokenFrom(ctx context.Context) (Token, bool) {
	t, ok := ctx.Value(tokenKey{}).(Token)
	return t, ok && t.Value != ""
}

// Authenticator logs customers in and out of the upstream API.
type Authenticator interface {
	Login(ctx context.Context, c Credentials) (*Token, error)
	Logout(ctx context.Context, t Token) error
}

// TokenStore keeps the session's token in a session-scoped KV.
type TokenStore struct {
	kv storage.KV
}

// NewTokenStore returns a TokenStore writing to kv.
func NewTokenStore(kv storage.KV) *TokenStore {
	return &TokenStore{kv: kv}
}

// Save stores t. Failures are logged.
func (s *TokenStore) Save(ctx context.Context, t Token) {
	data, err := json.Marshal(t)
	if err != nil {
		zctx.From(ctx).Error("Encode auth token", zap.Error(err))
		return
	}
	if err := s.kv.Set(ctx, TokenKey, data); err != nil {
		zctx.From(ctx).Warn("Save auth token", zap.Error(err))
	}
}

// Load returns the stored token, if any.
func (s *TokenStore) Load(ctx context.Context) (Token, bool) {
	data, err := s.kv.Get(ctx, TokenKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			zctx.From(ctx).Warn("Load auth token", zap.Error(err))
		}
		return Token{}, false
	}

	var t Token
	if err := json.Unmarshal(data, &t); err != nil || t.Value == "" {
		return Token{}, false
	}
	return t, true
}

// Clear forgets the token.
func (s *TokenStore) Clear(ctx context.Context) {
	if err := s.kv.Delete(ctx, TokenKey); err != nil {
		zctx.From(ctx).Warn("Clear auth token", zap.Error(err))
	}
}
