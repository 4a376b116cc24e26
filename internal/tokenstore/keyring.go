package tokenstore

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// Keyring stores the token triple in the OS keychain under a single
// service name, one entry per field.
type Keyring struct {
	service string
}

// NewKeyring creates a keychain-backed store
func NewKeyring(service string) (*Keyring, error) {
	if service == "" {
		return nil, fmt.Errorf("keyring service name is required")
	}
	return &Keyring{service: service}, nil
}

// Save writes all three entries. On a partial failure the entries
// already written are rolled back so the store never holds a torn
// triple.
func (k *Keyring) Save(t Tokens) error {
	written := make([]string, 0, 3)
	for _, entry := range []struct {
		key, value string
	}{
		{KeyAccessToken, t.AccessToken},
		{KeyRefreshToken, t.RefreshToken},
		{KeyTokenType, t.TokenType},
	} {
		if err := keyring.Set(k.service, entry.key, entry.value); err != nil {
			for _, key := range written {
				_ = keyring.Delete(k.service, key)
			}
			return fmt.Errorf("failed to write %s to keyring: %w", entry.key, err)
		}
		written = append(written, entry.key)
	}
	return nil
}

// Load reads the stored triple; missing entries yield zero Tokens
func (k *Keyring) Load() (Tokens, error) {
	access, err := keyring.Get(k.service, KeyAccessToken)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return Tokens{}, nil
		}
		return Tokens{}, fmt.Errorf("failed to read keyring: %w", err)
	}

	refresh, err := keyring.Get(k.service, KeyRefreshToken)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return Tokens{}, fmt.Errorf("failed to read keyring: %w", err)
	}
	tokenType, err := keyring.Get(k.service, KeyTokenType)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return Tokens{}, fmt.Errorf("failed to read keyring: %w", err)
	}

	return Tokens{AccessToken: access, RefreshToken: refresh, TokenType: tokenType}, nil
}

// Clear removes all three entries
func (k *Keyring) Clear() error {
	for _, key := range []string{KeyAccessToken, KeyRefreshToken, KeyTokenType} {
		if err := keyring.Delete(k.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to remove %s from keyring: %w", key, err)
		}
	}
	return nil
}
