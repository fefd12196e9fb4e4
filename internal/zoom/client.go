// Package zoom creates instant meetings through the Zoom REST API using
// server-to-server OAuth credentials.
package zoom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	DefaultAuthURL = "https://zoom.us/oauth/token"
	DefaultAPIURL  = "https://api.zoom.us/v2"

	// instant meeting
	meetingTypeInstant = 1
)

// Meeting holds the URLs returned for a newly created meeting
type Meeting struct {
	ID       int64  `json:"id"`
	JoinURL  string `json:"join_url"`
	StartURL string `json:"start_url"`
}

// Credentials identify a server-to-server OAuth app
type Credentials struct {
	AccountID    string
	ClientID     string
	ClientSecret string
}

// Client talks to the Zoom API
type Client struct {
	creds      Credentials
	userIndex  int
	authURL    string
	apiURL     string
	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
	now         func() time.Time
}

// Option customizes a Client
type Option func(*Client)

// WithBaseURLs points the client at alternative endpoints
func WithBaseURLs(authURL, apiURL string) Option {
	return func(c *Client) {
		c.authURL = authURL
		c.apiURL = strings.TrimRight(apiURL, "/")
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Zoom client. userIndex selects which account user
// hosts created meetings.
func NewClient(creds Credentials, userIndex int, opts ...Option) *Client {
	c := &Client{
		creds:      creds,
		userIndex:  userIndex,
		authURL:    DefaultAuthURL,
		apiURL:     DefaultAPIURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateMeeting creates an instant meeting hosted by the configured user
func (c *Client) CreateMeeting(ctx context.Context) (Meeting, error) {
	userID, err := c.hostUserID(ctx)
	if err != nil {
		return Meeting{}, err
	}

	body := strings.NewReader(fmt.Sprintf(`{"type":%d}`, meetingTypeInstant))
	var meeting Meeting
	if err := c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(userID)+"/meetings", body, &meeting); err != nil {
		return Meeting{}, fmt.Errorf("failed to create meeting: %w", err)
	}
	if meeting.JoinURL == "" || meeting.StartURL == "" {
		return Meeting{}, fmt.Errorf("meeting response missing join or start url")
	}
	return meeting, nil
}

func (c *Client) hostUserID(ctx context.Context) (string, error) {
	var list struct {
		Users []struct {
			ID string `json:"id"`
		} `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/users", nil, &list); err != nil {
		return "", fmt.Errorf("failed to list users: %w", err)
	}
	if c.userIndex < 0 || c.userIndex >= len(list.Users) {
		return "", fmt.Errorf("user index %d out of range (%d users)", c.userIndex, len(list.Users))
	}
	return list.Users[c.userIndex].ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("zoom returned status %d: %s", resp.StatusCode, string(data))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// token returns a cached access token, refreshing it a minute before expiry
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Before(c.expiresAt) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "account_credentials")
	form.Set("account_id", c.creds.AccountID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(c.creds.ClientID, c.creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(data))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("failed to decode token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	c.accessToken = tok.AccessToken
	c.expiresAt = c.now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}
