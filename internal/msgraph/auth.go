package msgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var requiredScopes = []string{
	"https://graph.microsoft.com/Calendars.Read",
	"offline_access",
}

func msEndpoint(tenantID, path string) string {
	return "https://login.microsoftonline.com/" + tenantID + "/oauth2/v2.0/" + path
}

// DefaultTokenPath returns ~/.hamster-panel/auth/msgraph_tokens.json.
func DefaultTokenPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".hamster-panel", "auth", "msgraph_tokens.json"), nil
}

// Auth obtains Microsoft Graph tokens through the OAuth2 device code flow
// and caches them in a file.
type Auth struct {
	config    *oauth2.Config
	tokenPath string
	prompt    io.Writer
	log       *zap.SugaredLogger
}

// NewAuth returns an Auth for the tenant and public client. Device code
// instructions are written to prompt.
func NewAuth(tenantID, clientID, tokenPath string, prompt io.Writer, log *zap.SugaredLogger) *Auth {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Auth{
		config: &oauth2.Config{
			ClientID: clientID,
			Scopes:   requiredScopes,
			Endpoint: oauth2.Endpoint{
				DeviceAuthURL: msEndpoint(tenantID, "devicecode"),
				TokenURL:      msEndpoint(tenantID, "token"),
				AuthStyle:     oauth2.AuthStyleInParams,
			},
		},
		tokenPath: tokenPath,
		prompt:    prompt,
		log:       log,
	}
}

// loadToken loads a previously saved token. A missing file yields nil, nil.
func (a *Auth) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(a.tokenPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("corrupt token file (delete %s to re-authenticate): %w", a.tokenPath, err)
	}
	return &tok, nil
}

// saveToken persists tok with an atomic rename.
func (a *Auth) saveToken(tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(a.tokenPath), 0o700); err != nil {
		return fmt.Errorf("creating auth directory: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling token: %w", err)
	}
	tmpPath := a.tokenPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(tmpPath, a.tokenPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("saving token file: %w", err)
	}
	return nil
}

// Token returns a usable token: the cached one, a refreshed one, or a new
// one from the device code flow.
func (a *Auth) Token(ctx context.Context) (*oauth2.Token, error) {
	tok, err := a.loadToken()
	if err != nil {
		a.log.Warnw("ignoring cached token", "error", err)
		tok = nil
	}
	if tok != nil && tok.Valid() {
		return tok, nil
	}

	if tok != nil && tok.RefreshToken != "" {
		refreshed, err := a.config.TokenSource(ctx, tok).Token()
		if err == nil {
			if err := a.saveToken(refreshed); err != nil {
				a.log.Warnw("could not save refreshed token", "error", err)
			}
			return refreshed, nil
		}
		a.log.Infow("token refresh failed, re-authenticating", "error", err)
	}

	resp, err := a.config.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("device auth request failed: %w", err)
	}
	fmt.Fprintln(a.prompt)
	fmt.Fprintln(a.prompt, "To sign in, use a web browser to open the page:")
	fmt.Fprintf(a.prompt, "  %s\n", resp.VerificationURI)
	fmt.Fprintf(a.prompt, "Enter the code: %s\n", resp.UserCode)
	fmt.Fprintln(a.prompt)

	newTok, err := a.config.DeviceAccessToken(ctx, resp)
	if err != nil {
		return nil, fmt.Errorf("device authentication failed: %w", err)
	}
	if err := a.saveToken(newTok); err != nil {
		a.log.Warnw("could not save token", "error", err)
	}
	return newTok, nil
}

// HTTPClient returns a client that authorizes requests and keeps the token
// file current as tokens are refreshed.
func (a *Auth) HTTPClient(ctx context.Context) (*http.Client, error) {
	tok, err := a.Token(ctx)
	if err != nil {
		return nil, err
	}
	ts := &savingTokenSource{auth: a, ts: a.config.TokenSource(ctx, tok), last: tok.AccessToken}
	return oauth2.NewClient(ctx, ts), nil
}

// savingTokenSource persists a token whenever the wrapped source hands out
// a new one.
type savingTokenSource struct {
	auth *Auth
	ts   oauth2.TokenSource

	mu   sync.Mutex
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.ts.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.auth.saveToken(tok); err != nil {
			s.auth.log.Warnw("could not save refreshed token", "error", err)
		}
	}
	return tok, nil
}
