/*
 *     Copyright 2024 The DLHub Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package auth manages the bearer credential the publication client
// attaches to service calls: an on-disk token cache plus the native-app
// OAuth login flow that fills it.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/oauth2"
)

// expirySkew keeps a token that is about to expire from being handed out.
const expirySkew = 30 * time.Second

// Tokens is the persisted shape of the cache.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry"`
}

// Store is the on-disk token cache. Access is guarded with a file lock so
// concurrent CLI invocations do not corrupt it.
type Store struct {
	path string
	lock *flock.Flock
}

// NewStore opens the token cache under dir, defaulting to ~/.dlhub.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate home directory: %w", err)
		}
		dir = filepath.Join(home, ".dlhub")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create token directory: %w", err)
	}

	path := filepath.Join(dir, "tokens.json")
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Load reads the cached tokens, returning nil when none are stored.
func (s *Store) Load() (*Tokens, error) {
	if err := s.lock.Lock(); err != nil {
		return nil, fmt.Errorf("failed to lock token cache: %w", err)
	}
	defer s.lock.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token cache: %w", err)
	}

	tokens := &Tokens{}
	if err := json.Unmarshal(raw, tokens); err != nil {
		return nil, fmt.Errorf("failed to parse token cache: %w", err)
	}

	return tokens, nil
}

// Save writes tokens to the cache, readable by the owner only.
func (s *Store) Save(tokens *Tokens) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock token cache: %w", err)
	}
	defer s.lock.Unlock()

	raw, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tokens: %w", err)
	}

	if err := os.WriteFile(s.path, raw, 0600); err != nil {
		return fmt.Errorf("failed to write token cache: %w", err)
	}

	return nil
}

// Clear removes the cache. Clearing an empty cache is not an error.
func (s *Store) Clear() error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock token cache: %w", err)
	}
	defer s.lock.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token cache: %w", err)
	}

	return nil
}

// IsLoggedIn reports whether a usable credential is cached: either an
// unexpired access token or a refresh token to mint one from.
func (s *Store) IsLoggedIn() bool {
	tokens, err := s.Load()
	if err != nil || tokens == nil {
		return false
	}

	if tokens.RefreshToken != "" {
		return true
	}

	return tokens.AccessToken != "" && time.Now().Add(expirySkew).Before(tokens.Expiry)
}

// BearerToken returns the current access token, refreshing it through the
// token endpoint when expired.
func (s *Store) BearerToken(ctx context.Context) (string, error) {
	tokens, err := s.Load()
	if err != nil {
		return "", err
	}
	if tokens == nil {
		return "", errors.New("not logged in, run login first")
	}

	if tokens.AccessToken != "" && time.Now().Add(expirySkew).Before(tokens.Expiry) {
		return tokens.AccessToken, nil
	}

	if tokens.RefreshToken == "" {
		return "", errors.New("access token expired and no refresh token is cached, run login again")
	}

	refreshed, err := oauthConfig().TokenSource(ctx, &oauth2.Token{
		RefreshToken: tokens.RefreshToken,
	}).Token()
	if err != nil {
		return "", fmt.Errorf("failed to refresh access token: %w", err)
	}

	tokens.AccessToken = refreshed.AccessToken
	tokens.Expiry = refreshed.Expiry
	if refreshed.RefreshToken != "" {
		tokens.RefreshToken = refreshed.RefreshToken
	}

	if err := s.Save(tokens); err != nil {
		return "", err
	}

	return tokens.AccessToken, nil
}
