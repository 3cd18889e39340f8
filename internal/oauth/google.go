package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes requested at consent: full mail access for IMAP plus the profile
// email used to identify the mailbox.
var scopes = []string{
	"https://mail.google.com/",
	"https://www.googleapis.com/auth/userinfo.email",
}

const defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// RefreshError reports a token endpoint that rejected a refresh call
type RefreshError struct {
	StatusCode int
	Body       string
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh rejected: status %d: %s", e.StatusCode, e.Body)
}

// Options configure the OAuth client. Endpoint and UserInfoURL default to
// Google's and only need to be set when talking to a stand-in server.
type Options struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Timeout      time.Duration
	Endpoint     oauth2.Endpoint
	UserInfoURL  string
}

// Client drives the Google OAuth flows: consent URL, authorization-code
// exchange, profile email lookup and access-token refresh.
type Client struct {
	config      *oauth2.Config
	httpClient  *http.Client
	userInfoURL string
}

// NewClient creates an OAuth client
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	endpoint := opts.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	userInfoURL := opts.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = defaultUserInfoURL
	}

	return &Client{
		config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		httpClient:  &http.Client{Timeout: timeout},
		userInfoURL: userInfoURL,
	}
}

// AuthURL returns the consent page URL. The state parameter carries the
// account's link state so the callback can be matched back to it.
// access_type=offline and prompt=consent make Google issue a refresh token.
func (c *Client) AuthURL(state string) string {
	return c.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}
	return token, nil
}

// FetchEmail returns the profile email address for an access token
func (c *Client) FetchEmail(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read userinfo response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("userinfo request rejected: status %d: %s", resp.StatusCode, string(body))
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return "", fmt.Errorf("failed to parse userinfo response: %w", err)
	}
	if info.Email == "" {
		return "", errors.New("userinfo response has no email")
	}
	return info.Email, nil
}

// ExchangeAndIdentify runs the full callback flow: authorization-code
// exchange followed by a profile lookup to learn which mailbox was linked.
// Fails when the token response is missing the access or refresh token.
func (c *Client) ExchangeAndIdentify(ctx context.Context, code string) (accessToken, refreshToken string, expiry time.Time, email string, err error) {
	token, err := c.Exchange(ctx, code)
	if err != nil {
		return "", "", time.Time{}, "", err
	}
	if token.AccessToken == "" || token.RefreshToken == "" {
		return "", "", time.Time{}, "", errors.New("token response missing access or refresh token")
	}

	email, err = c.FetchEmail(ctx, token.AccessToken)
	if err != nil {
		return "", "", time.Time{}, "", err
	}
	return token.AccessToken, token.RefreshToken, token.Expiry, email, nil
}

// Refresh mints a new access token from a refresh token. Google does not
// rotate the refresh token on this grant, so only the access token comes
// back. A non-200 response is returned as *RefreshError.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	form := url.Values{
		"client_id":     {c.config.ClientID},
		"client_secret": {c.config.ClientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read refresh response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &RefreshError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("failed to parse refresh response: %w", err)
	}
	if token.AccessToken == "" {
		return "", errors.New("token response has no access_token")
	}
	return token.AccessToken, nil
}
