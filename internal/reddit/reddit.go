// Package reddit shares roasters to a subreddit through a Reddit script app.
package reddit

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
)

// Config holds script-app credentials and endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	UserAgent    string
	APIURL       string
	TokenURL     string
	Timeout      time.Duration
}

// Submission is a link post.
type Submission struct {
	Subreddit string
	Title     string
	URL       string
}

// Post is a created submission.
type Post struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ErrorDetail is one entry of Reddit's json.errors array.
type ErrorDetail struct {
	Code    string
	Message string
	Field   string
}

// APIError is returned when Reddit accepts the request but rejects the
// submission.
type APIError struct {
	Errors []ErrorDetail
}

func (e *APIError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, d := range e.Errors {
		parts[i] = d.Code + ": " + d.Message
		if d.Field != "" {
			parts[i] += " (" + d.Field + ")"
		}
	}
	return "reddit rejected submission: " + strings.Join(parts, "; ")
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("reddit responded %d: %s", e.StatusCode, e.Body)
}

// Client posts to Reddit with an OAuth2 password-grant token that is fetched
// on first use and reused until it expires.
type Client struct {
	apiURL string
	http   *http.Client
}

// userAgentTransport sets the User-Agent Reddit requires on every request,
// token exchanges included.
type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t userAgentTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(r)
}

// passwordSource exchanges the account credentials for a token each time the
// cached one expires.
type passwordSource struct {
	ctx      context.Context
	cfg      *oauth2.Config
	username string
	password string
}

func (s passwordSource) Token() (*oauth2.Token, error) {
	tok, err := s.cfg.PasswordCredentialsToken(s.ctx, s.username, s.password)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain reddit token: %w", err)
	}
	return tok, nil
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	base := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: userAgentTransport{agent: cfg.UserAgent, base: http.DefaultTransport},
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	ts := oauth2.ReuseTokenSource(nil, passwordSource{
		ctx:      ctx,
		cfg:      oauthCfg,
		username: cfg.Username,
		password: cfg.Password,
	})

	return &Client{
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		http:   oauth2.NewClient(ctx, ts),
	}
}

type submitResponse struct {
	JSON struct {
		Errors [][]string `json:"errors"`
		Data   Post       `json:"data"`
	} `json:"json"`
}

// SubmitLink posts s as a link submission.
func (c *Client) SubmitLink(ctx context.Context, s Submission) (*Post, error) {
	form := url.Values{
		"sr":       {s.Subreddit},
		"kind":     {"link"},
		"title":    {s.Title},
		"url":      {s.URL},
		"api_type": {"json"},
		"resubmit": {"true"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/api/submit", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to submit to reddit: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read reddit response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var decoded submitResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode reddit response: %w", err)
	}
	if len(decoded.JSON.Errors) > 0 {
		apiErr := &APIError{}
		for _, e := range decoded.JSON.Errors {
			var d ErrorDetail
			if len(e) > 0 {
				d.Code = e[0]
			}
			if len(e) > 1 {
				d.Message = e[1]
			}
			if len(e) > 2 {
				d.Field = e[2]
			}
			apiErr.Errors = append(apiErr.Errors, d)
		}
		return nil, apiErr
	}
	if decoded.JSON.Data.ID == "" {
		return nil, errors.New("reddit response has no post id")
	}
	return &decoded.JSON.Data, nil
}
