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

package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	authURL   = "https://auth.dlhub.org/v2/oauth2/authorize"
	tokenURL  = "https://auth.dlhub.org/v2/oauth2/token"
	revokeURL = "https://auth.dlhub.org/v2/oauth2/revoke"

	clientID     = "dlhub-sdk-native"
	publishScope = "urn:dlhub:auth:scope:publish"

	// Out-of-band redirect: the user pastes the authorization code back
	// into the terminal.
	redirectOOB = "urn:ietf:wg:oauth:2.0:oob"
)

func oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:    clientID,
		RedirectURL: redirectOOB,
		Scopes:      []string{publishScope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}
}

// Flow drives the native-app authorization-code login against the DLHub
// auth service.
type Flow struct {
	store  *Store
	config *oauth2.Config
	in     io.Reader
	out    io.Writer
}

// NewFlow creates a login flow reading the authorization code from in and
// printing prompts to out.
func NewFlow(store *Store, in io.Reader, out io.Writer) *Flow {
	return &Flow{
		store:  store,
		config: oauthConfig(),
		in:     in,
		out:    out,
	}
}

// Login walks the user through the authorization-code exchange and caches
// the resulting tokens. A second login is a no-op unless force is set.
func (f *Flow) Login(ctx context.Context, force bool) error {
	if !force && f.store.IsLoggedIn() {
		fmt.Fprintln(f.out, "You are already logged in!")
		return nil
	}

	state := uuid.NewString()
	authorizeURL := f.config.AuthCodeURL(state, oauth2.AccessTypeOffline)

	prompt := "Please log into DLHub here"
	fmt.Fprintf(f.out, "%s:\n%s\n%s\n%s\n\n", prompt, strings.Repeat("-", len(prompt)),
		authorizeURL, strings.Repeat("-", len(prompt)))
	fmt.Fprint(f.out, "Enter the resulting authorization code here:\n")

	code, err := bufio.NewReader(f.in).ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read authorization code: %w", err)
	}

	token, err := f.config.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	logrus.Infof("login: exchanged authorization code, token expires %s", token.Expiry)

	return f.store.Save(&Tokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	})
}

// Logout revokes the cached tokens and clears the cache. When revocation
// cannot reach the auth service the cache is kept so the tokens can still
// be revoked later.
func (f *Flow) Logout(ctx context.Context) error {
	tokens, err := f.store.Load()
	if err != nil {
		return err
	}
	if tokens == nil {
		fmt.Fprintln(f.out, "No cached tokens found.")
		return nil
	}

	for _, token := range []string{tokens.RefreshToken, tokens.AccessToken} {
		if token == "" {
			continue
		}
		if err := revokeToken(ctx, token); err != nil {
			return fmt.Errorf("failed to reach the auth service to revoke tokens, cancelling logout: %w", err)
		}
	}

	if err := f.store.Clear(); err != nil {
		return err
	}

	fmt.Fprintln(f.out, "Logged out")
	return nil
}

func revokeToken(ctx context.Context, token string) error {
	form := url.Values{
		"token":     {token},
		"client_id": {clientID},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, revokeURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("revocation returned status %s", resp.Status)
	}

	return nil
}
