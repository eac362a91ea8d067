// Package auth provides the OAuth user credentials shared by the Gmail,
// Sheets and spreadsheet export clients.
//
// The first run performs the installed-app flow: the consent URL is printed,
// the browser redirects to a loopback listener and the resulting token is
// saved to the token file. Later runs reuse and refresh that token.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/sheets/v4"

	"invoicer/internal/logger"
)

// driveScope is required to export a spreadsheet tab as PDF.
const driveScope = "https://www.googleapis.com/auth/drive"

// DefaultScopes covers reading timesheets, writing drafts, editing the
// invoice spreadsheet and exporting it.
var DefaultScopes = []string{
	gmail.GmailModifyScope,
	driveScope,
	sheets.SpreadsheetsScope,
}

// ErrTokenExpired is returned when the saved token has expired and cannot be
// refreshed.
var ErrTokenExpired = errors.New("oauth token expired and has no refresh token")

// Config locates the OAuth client secrets and the saved user token.
type Config struct {
	CredentialsFile string
	TokenFile       string
	Scopes          []string

	// Prompt receives the consent URL during the first authorization.
	Prompt io.Writer
}

// NewHTTPClient returns an HTTP client authorized as the operator. When no
// token is saved yet, it runs the installed-app flow and saves the result.
func NewHTTPClient(ctx context.Context, cfg Config) (*http.Client, error) {
	const op = "NewHTTPClient"

	log := logger.WithComponent("auth")

	oauthConfig, err := loadClientConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tok, err := LoadToken(cfg.TokenFile)
	switch {
	case err == nil:
		log.Debug().Str("token_file", cfg.TokenFile).Msg("Loaded saved OAuth token")
	case errors.Is(err, os.ErrNotExist):
		log.Info().Str("token_file", cfg.TokenFile).Msg("No saved OAuth token, starting authorization")
		tok, err = authorize(ctx, oauthConfig, cfg.Prompt)
		if err != nil {
			return nil, fmt.Errorf("%s: authorization failed: %w", op, err)
		}
		if err := SaveToken(cfg.TokenFile, tok); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	default:
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !tok.Expiry.IsZero() && tok.Expiry.Before(time.Now()) && strings.TrimSpace(tok.RefreshToken) == "" {
		return nil, fmt.Errorf("%s: %w; delete %s to authorize again", op, ErrTokenExpired, cfg.TokenFile)
	}

	source := &savingTokenSource{
		base: oauthConfig.TokenSource(ctx, tok),
		path: cfg.TokenFile,
		last: tok.AccessToken,
		log:  log,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, source)), nil
}

func loadClientConfig(cfg Config) (*oauth2.Config, error) {
	secrets, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client file: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	oauthConfig, err := google.ConfigFromJSON(secrets, scopes...)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return oauthConfig, nil
}

// LoadToken reads a token saved by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read oauth token file: %w", err)
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(data, tok); err != nil {
		return nil, fmt.Errorf("oauth token file %s: %w", path, err)
	}
	return tok, nil
}

// SaveToken writes tok to path, readable by the owner only.
func SaveToken(path string, tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("encode oauth token: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write oauth token file: %w", err)
	}
	return nil
}

// savingTokenSource persists every newly refreshed token.
type savingTokenSource struct {
	base oauth2.TokenSource
	path string
	log  zerolog.Logger

	mu   sync.Mutex
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := SaveToken(s.path, tok); err != nil {
			s.log.Warn().Err(err).Msg("Failed to save refreshed OAuth token")
		} else {
			s.log.Debug().Time("expiry", tok.Expiry).Msg("Saved refreshed OAuth token")
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}

// authorize runs the installed-app flow with a loopback redirect.
func authorize(ctx context.Context, oauthConfig *oauth2.Config, prompt io.Writer) (*oauth2.Token, error) {
	if prompt == nil {
		prompt = os.Stderr
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen for oauth redirect: %w", err)
	}

	state, err := randomState()
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	flowConfig := *oauthConfig
	flowConfig.RedirectURL = "http://" + listener.Addr().String() + "/"

	receiver := newCodeReceiver(state)
	server := &http.Server{Handler: receiver, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = server.Serve(listener) }()
	defer func() { _ = server.Close() }()

	authURL := flowConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(prompt, "Open the following URL in your browser to authorize access:\n\n%s\n\n", authURL)

	var code string
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-receiver.results:
		if result.err != nil {
			return nil, result.err
		}
		code = result.code
	}

	tok, err := flowConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

type codeResult struct {
	code string
	err  error
}

// codeReceiver handles the OAuth redirect and delivers the first result.
type codeReceiver struct {
	state   string
	results chan codeResult
	once    sync.Once
}

func newCodeReceiver(state string) *codeReceiver {
	return &codeReceiver{state: state, results: make(chan codeResult, 1)}
}

func (c *codeReceiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var result codeResult
	switch {
	case q.Get("error") != "":
		result.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
	case q.Get("state") != c.state:
		http.Error(w, "state mismatch", http.StatusBadRequest)
		return
	case q.Get("code") == "":
		result.err = errors.New("authorization redirect carried no code")
	default:
		result.code = q.Get("code")
	}

	c.once.Do(func() { c.results <- result })

	if result.err != nil {
		http.Error(w, result.err.Error(), http.StatusBadRequest)
		return
	}
	_, _ = io.WriteString(w, "Authorization complete. You can close this window.\n")
}
