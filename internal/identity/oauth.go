package identity

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vaultguard/vaultguard/internal/errors"
	"github.com/vaultguard/vaultguard/internal/models"
)

// OAuthConfig describes an upstream OAuth2 provider for the redirect flow.
type OAuthConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	AuthURL      string `yaml:"auth_url"`
	TokenURL     string `yaml:"token_url"`
	UserInfoURL  string `yaml:"userinfo_url"`
	RedirectURL  string `yaml:"redirect_url"`
	Scopes       string `yaml:"scopes"`
}

// Enabled reports whether the config is complete enough to use.
func (c OAuthConfig) Enabled() bool {
	return c.ClientID != "" && c.AuthURL != "" && c.TokenURL != "" && c.UserInfoURL != ""
}

const oauthStateTTL = 10 * time.Minute

// OAuthFlow runs the redirect leg of OAuth2 sign-in on top of a
// LocalProvider: it provisions accounts from the upstream profile and
// hands out the provider's own session tokens.
type OAuthFlow struct {
	config   OAuthConfig
	provider *LocalProvider
	client   *http.Client

	mu     sync.Mutex
	states map[string]time.Time
}

// NewOAuthFlow creates a flow for the given upstream
func NewOAuthFlow(config OAuthConfig, provider *LocalProvider) *OAuthFlow {
	return &OAuthFlow{
		config:   config,
		provider: provider,
		client:   &http.Client{Timeout: 15 * time.Second},
		states:   make(map[string]time.Time),
	}
}

// Begin returns the upstream redirect URL with a fresh state nonce.
func (f *OAuthFlow) Begin() (string, error) {
	if !f.config.Enabled() {
		return "", &errors.ErrInvalidConfiguration{Reason: "oauth is not configured"}
	}

	state := uuid.New().String()
	f.mu.Lock()
	f.states[state] = time.Now().Add(oauthStateTTL)
	f.mu.Unlock()

	query := url.Values{}
	query.Set("response_type", "code")
	query.Set("client_id", f.config.ClientID)
	query.Set("redirect_uri", f.config.RedirectURL)
	query.Set("state", state)
	if f.config.Scopes != "" {
		query.Set("scope", f.config.Scopes)
	}
	return f.config.AuthURL + "?" + query.Encode(), nil
}

// Complete exchanges the authorization code, fetches the upstream profile
// and signs the user in. Profiles whose email is not verified upstream are
// treated like unverified password sign-ins.
func (f *OAuthFlow) Complete(ctx context.Context, state, code string) (Authenticated, error) {
	if !f.consumeState(state) {
		return Authenticated{}, &errors.ErrInvalidCredentials{}
	}

	accessToken, err := f.exchangeCode(ctx, code)
	if err != nil {
		return Authenticated{}, err
	}

	profile, err := f.fetchProfile(ctx, accessToken)
	if err != nil {
		return Authenticated{}, err
	}
	if profile.Email == "" {
		return Authenticated{}, &errors.ErrProvider{Op: "fetch profile", Err: fmt.Errorf("upstream profile has no email")}
	}

	account, err := f.provisionAccount(ctx, profile)
	if err != nil {
		return Authenticated{}, err
	}

	token := uuid.New().String()
	session := sessionFor(account)

	f.provider.mu.Lock()
	f.provider.sessions[token] = tokenEntry{userID: account.ID, expiresAt: time.Now().Add(f.provider.sessionTTL)}
	f.provider.mu.Unlock()

	if !account.EmailVerified {
		f.provider.notify(SessionNotice{Kind: NoticeUnverified, Token: token, Session: session})
		return Authenticated{}, &errors.ErrEmailNotVerified{Email: account.Email}
	}

	f.provider.notify(SessionNotice{Kind: NoticeSignedIn, Token: token, Session: session})
	return Authenticated{Token: token, Session: session}, nil
}

// consumeState redeems a state nonce exactly once and drops expired ones.
func (f *OAuthFlow) consumeState(state string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	for s, expiry := range f.states {
		if now.After(expiry) {
			delete(f.states, s)
		}
	}

	expiry, ok := f.states[state]
	if !ok {
		return false
	}
	delete(f.states, state)
	return now.Before(expiry)
}

func (f *OAuthFlow) exchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", f.config.ClientID)
	form.Set("client_secret", f.config.ClientSecret)
	form.Set("redirect_uri", f.config.RedirectURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &errors.ErrProvider{Op: "exchange code", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &errors.ErrProvider{Op: "exchange code", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &errors.ErrProvider{Op: "exchange code", Err: fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, body)}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", &errors.ErrProvider{Op: "exchange code", Err: err}
	}
	if payload.AccessToken == "" {
		return "", &errors.ErrProvider{Op: "exchange code", Err: fmt.Errorf("token endpoint returned no access token")}
	}
	return payload.AccessToken, nil
}

type oauthProfile struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	EmailVerified bool   `json:"email_verified"`
}

func (f *OAuthFlow) fetchProfile(ctx context.Context, accessToken string) (oauthProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.config.UserInfoURL, nil)
	if err != nil {
		return oauthProfile{}, &errors.ErrProvider{Op: "fetch profile", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := f.client.Do(req)
	if err != nil {
		return oauthProfile{}, &errors.ErrProvider{Op: "fetch profile", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return oauthProfile{}, &errors.ErrProvider{Op: "fetch profile", Err: fmt.Errorf("userinfo endpoint returned %d", resp.StatusCode)}
	}

	var profile oauthProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return oauthProfile{}, &errors.ErrProvider{Op: "fetch profile", Err: err}
	}
	return profile, nil
}

// provisionAccount finds or creates the account for an upstream profile.
// Verification follows the upstream email_verified claim; it can only
// upgrade an existing account, never downgrade it.
func (f *OAuthFlow) provisionAccount(ctx context.Context, profile oauthProfile) (models.UserAccount, error) {
	account, err := f.provider.users.UserByEmail(ctx, profile.Email)
	if err == nil {
		changed := false
		if profile.EmailVerified && !account.EmailVerified {
			account.EmailVerified = true
			changed = true
		}
		if account.DisplayName == "" && profile.Name != "" {
			account.DisplayName = profile.Name
			changed = true
		}
		if changed {
			account.UpdatedAt = time.Now().UTC()
			if err := f.provider.users.UpdateUser(ctx, account); err != nil {
				return models.UserAccount{}, err
			}
		}
		return account, nil
	}

	var notFound *errors.ErrNotFound
	if !stderrors.As(err, &notFound) {
		return models.UserAccount{}, err
	}

	now := time.Now().UTC()
	account = models.UserAccount{
		ID:            uuid.New().String(),
		Email:         NormalizeEmail(profile.Email),
		DisplayName:   profile.Name,
		EmailVerified: profile.EmailVerified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := f.provider.users.CreateUser(ctx, account); err != nil {
		return models.UserAccount{}, err
	}
	return account, nil
}
