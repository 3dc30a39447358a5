package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

// Credentials holds the process-wide bearer token shared by every session
type Credentials struct {
	mu    sync.RWMutex
	token string
}

// Set replaces the current token. An empty token clears it.
func (c *Credentials) Set(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current token and whether one is set
func (c *Credentials) Token() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.token != ""
}

// Provider obtains an access token interactively or from cache
type Provider interface {
	Token(ctx context.Context) (string, error)
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(ctx context.Context) (string, error)

func (f ProviderFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// PromptFunc shows authURL to the user and returns the authorization code
type PromptFunc func(authURL string) (string, error)

// OAuthProvider runs the installed-app consent flow against Google and caches
// the resulting token on disk
type OAuthProvider struct {
	config    *oauth2.Config
	tokenFile string
	prompt    PromptFunc
	logger    *zap.Logger

	mu sync.Mutex
}

// NewOAuthProvider loads client credentials from credentialsFile
func NewOAuthProvider(credentialsFile, tokenFile string, logger *zap.Logger) (*OAuthProvider, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}
	config, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	return NewOAuthProviderFromConfig(config, tokenFile, logger), nil
}

// NewOAuthProviderFromConfig wraps an existing oauth2 config
func NewOAuthProviderFromConfig(config *oauth2.Config, tokenFile string, logger *zap.Logger) *OAuthProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OAuthProvider{
		config:    config,
		tokenFile: tokenFile,
		prompt:    ConsolePrompt(os.Stdin, os.Stderr),
		logger:    logger,
	}
}

// SetPrompt replaces the consent prompt
func (p *OAuthProvider) SetPrompt(prompt PromptFunc) {
	p.prompt = prompt
}

// Token returns a valid access token, refreshing or running consent as needed
func (p *OAuthProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tok, err := tokenFromFile(p.tokenFile)
	if err != nil {
		p.logger.Info("No cached token, starting consent flow", zap.String("token_file", p.tokenFile))
		tok, err = p.tokenFromWeb(ctx)
		if err != nil {
			return "", err
		}
		p.save(tok)
	}

	fresh, err := p.config.TokenSource(ctx, tok).Token()
	if err != nil {
		return "", fmt.Errorf("unable to refresh token: %w", err)
	}
	if fresh.AccessToken != tok.AccessToken {
		p.save(fresh)
	}
	return fresh.AccessToken, nil
}

func (p *OAuthProvider) tokenFromWeb(ctx context.Context) (*oauth2.Token, error) {
	authURL := p.config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	code, err := p.prompt(authURL)
	if err != nil {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return tok, nil
}

func (p *OAuthProvider) save(tok *oauth2.Token) {
	if p.tokenFile == "" {
		return
	}
	if err := saveToken(p.tokenFile, tok); err != nil {
		p.logger.Warn("Unable to save oauth token", zap.Error(err))
		return
	}
	p.logger.Info("Saved credential file", zap.String("path", p.tokenFile))
}

// ConsolePrompt prints the consent URL to out and reads the code from in
func ConsolePrompt(in io.Reader, out io.Writer) PromptFunc {
	return func(authURL string) (string, error) {
		fmt.Fprintf(out, "Go to the following link in your browser then type the "+
			"authorization code: \n%v\n", authURL)
		var code string
		if _, err := fmt.Fscan(in, &code); err != nil {
			return "", err
		}
		return code, nil
	}
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	if file == "" {
		return nil, os.ErrNotExist
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}
