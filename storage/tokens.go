package storage

import (
	"encoding/json"
	"log/slog"

	"github.com/MrEthical07/authclient/dto"
)

// Keys names the three persisted session entries.
type Keys struct {
	AccessToken  string
	RefreshToken string
	User         string
}

// DefaultKeys returns the standard entry names.
func DefaultKeys() Keys {
	return Keys{
		AccessToken:  "access_token",
		RefreshToken: "refresh_token",
		User:         "auth_user",
	}
}

// Tokens reads and writes the session entries of a Store.
type Tokens struct {
	store  Store
	keys   Keys
	logger *slog.Logger
}

// NewTokens binds keys to store. Blank key names take their defaults.
func NewTokens(store Store, keys Keys, logger *slog.Logger) *Tokens {
	def := DefaultKeys()
	if keys.AccessToken == "" {
		keys.AccessToken = def.AccessToken
	}
	if keys.RefreshToken == "" {
		keys.RefreshToken = def.RefreshToken
	}
	if keys.User == "" {
		keys.User = def.User
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tokens{store: store, keys: keys, logger: logger}
}

func (t *Tokens) SetAccessToken(token string) { t.store.Set(t.keys.AccessToken, token) }

// AccessToken returns the stored access token. Empty values count as absent.
func (t *Tokens) AccessToken() (string, bool) {
	v, ok := t.store.Get(t.keys.AccessToken)
	return v, ok && v != ""
}

func (t *Tokens) RemoveAccessToken() { t.store.Remove(t.keys.AccessToken) }

func (t *Tokens) SetRefreshToken(token string) { t.store.Set(t.keys.RefreshToken, token) }

func (t *Tokens) RefreshToken() (string, bool) {
	v, ok := t.store.Get(t.keys.RefreshToken)
	return v, ok && v != ""
}

func (t *Tokens) RemoveRefreshToken() { t.store.Remove(t.keys.RefreshToken) }

// SetUser stores u as JSON. A nil user removes the entry.
func (t *Tokens) SetUser(u *dto.User) {
	if u == nil {
		t.RemoveUser()
		return
	}
	data, err := json.Marshal(u)
	if err != nil {
		t.logger.Warn("storage: encode user failed", "error", err)
		return
	}
	t.store.Set(t.keys.User, string(data))
}

// User returns the stored user. A corrupt entry is reported as absent.
func (t *Tokens) User() (*dto.User, bool) {
	raw, ok := t.store.Get(t.keys.User)
	if !ok || raw == "" {
		return nil, false
	}
	u, err := dto.DecodeUser(json.RawMessage(raw))
	if err != nil || u == nil {
		t.logger.Warn("storage: discarding unreadable user entry", "error", err)
		return nil, false
	}
	return u, true
}

func (t *Tokens) RemoveUser() { t.store.Remove(t.keys.User) }

// HasTokens reports whether an access token is stored.
func (t *Tokens) HasTokens() bool {
	_, ok := t.AccessToken()
	return ok
}

// Clear removes the three session entries.
func (t *Tokens) Clear() {
	t.RemoveAccessToken()
	t.RemoveRefreshToken()
	t.RemoveUser()
}
