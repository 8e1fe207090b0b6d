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
	"sync"
	"time"

	"golang.org/x/time/rate"

	logx "promobot/pkg/logx"
)

const (
	defaultAuthURL = "https://www.reddit.com"
	defaultAPIURL  = "https://oauth.reddit.com"
)

type Config struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	UserAgent    string

	// MinInterval paces outbound API calls. Zero disables pacing.
	MinInterval time.Duration

	// Endpoint overrides for tests. Empty means the public API.
	AuthURL string
	APIURL  string
}

// HTTPClient is the production Client implementation (OAuth2 script app).
//
// The token from the last successful Authenticate is cached and reused by the
// lookup endpoints until it expires; oauth.reddit.com rejects calls without
// a bearer token.
type HTTPClient struct {
	cfg     Config
	log     logx.Logger
	http    *http.Client
	limiter *rate.Limiter

	credMu sync.Mutex
	cred   Credential
}

func New(cfg Config, log logx.Logger) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errors.New("reddit client_id/client_secret are required")
	}
	if strings.TrimSpace(cfg.Username) == "" || strings.TrimSpace(cfg.Password) == "" {
		return nil, errors.New("reddit username/password are required")
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "promobot (by /u/" + cfg.Username + ")"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	var lim *rate.Limiter
	if cfg.MinInterval > 0 {
		lim = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return &HTTPClient{
		cfg:     cfg,
		log:     log,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: lim,
	}, nil
}

func (c *HTTPClient) pace(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *HTTPClient) Authenticate(ctx context.Context) (Credential, error) {
	if err := c.pace(ctx); err != nil {
		return Credential{}, err
	}
	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.cfg.Username},
		"password":   {c.cfg.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.AuthURL+"/api/v1/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, err
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("token request: %w", err)
	}
	defer drain(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Credential{}, fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return Credential{}, fmt.Errorf("token request: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		Error       string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Credential{}, fmt.Errorf("token response: %w", err)
	}
	if body.AccessToken == "" {
		return Credential{}, fmt.Errorf("%w: %s", ErrAuth, body.Error)
	}
	cred := Credential{
		AccessToken: body.AccessToken,
		ExpiresAt:   time.Now().Add(time.Duration(body.ExpiresIn) * time.Second),
	}
	c.credMu.Lock()
	c.cred = cred
	c.credMu.Unlock()
	return cred, nil
}

// credential returns the cached token, refreshing it when missing or expired.
func (c *HTTPClient) credential(ctx context.Context) (Credential, error) {
	c.credMu.Lock()
	cred := c.cred
	c.credMu.Unlock()
	if cred.Valid(time.Now()) {
		return cred, nil
	}
	return c.Authenticate(ctx)
}

func (c *HTTPClient) Publish(ctx context.Context, cred Credential, post Post) (Submission, error) {
	if err := c.pace(ctx); err != nil {
		return Submission{}, err
	}
	form := url.Values{
		"api_type": {"json"},
		"sr":       {post.Subreddit},
		"title":    {post.Title},
		"resubmit": {"true"},
	}
	switch post.Kind {
	case "link":
		form.Set("kind", "link")
		form.Set("url", post.URL)
	default:
		form.Set("kind", "self")
		form.Set("text", post.Body)
	}
	if post.FlairID != "" {
		form.Set("flair_id", post.FlairID)
	}
	if post.FlairText != "" {
		form.Set("flair_text", post.FlairText)
	}

	resp, err := c.do(ctx, cred, http.MethodPost, "/api/submit", strings.NewReader(form.Encode()))
	if err != nil {
		return Submission{}, err
	}
	defer drain(resp.Body)

	if err := classifyStatus(resp.StatusCode); err != nil {
		return Submission{}, err
	}
	if d := RateLimitDelay(resp.Header); d > 0 {
		c.log.Debug("rate limit budget low, pausing", logx.Duration("delay", d))
		sleepCtx(ctx, d)
	}

	var body struct {
		JSON struct {
			Errors [][]any `json:"errors"`
			Data   struct {
				ID   string `json:"id"`
				Name string `json:"name"`
				URL  string `json:"url"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Submission{}, fmt.Errorf("submit response: %w", err)
	}
	if len(body.JSON.Errors) > 0 {
		return Submission{}, submitError(body.JSON.Errors)
	}
	id := body.JSON.Data.ID
	if id == "" {
		id = strings.TrimPrefix(body.JSON.Data.Name, "t3_")
	}
	return Submission{ID: id, Permalink: body.JSON.Data.URL}, nil
}

func (c *HTTPClient) LookupByID(ctx context.Context, id string) (*Item, error) {
	if err := c.pace(ctx); err != nil {
		return nil, err
	}
	cred, err := c.credential(ctx)
	if err != nil {
		return nil, err
	}
	fullname := id
	if !strings.HasPrefix(fullname, "t3_") {
		fullname = "t3_" + fullname
	}
	resp, err := c.do(ctx, cred, http.MethodGet, "/api/info?id="+url.QueryEscape(fullname), nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var body listing
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("info response: %w", err)
	}
	if len(body.Data.Children) == 0 {
		return nil, nil
	}
	d := body.Data.Children[0].Data
	return &Item{
		ID:                d.ID,
		Author:            d.Author,
		RemovedByCategory: d.RemovedByCategory,
		CreatedUTC:        int64(d.CreatedUTC),
	}, nil
}

func (c *HTTPClient) LookupRecent(ctx context.Context, subreddit, title string, sinceMs int64) (*Submission, error) {
	if err := c.pace(ctx); err != nil {
		return nil, err
	}
	cred, err := c.credential(ctx)
	if err != nil {
		return nil, err
	}
	path := "/user/" + url.PathEscape(c.cfg.Username) + "/submitted?sort=new&limit=25"
	resp, err := c.do(ctx, cred, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp.Body)

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}
	var body listing
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("submitted response: %w", err)
	}
	for _, ch := range body.Data.Children {
		d := ch.Data
		if !strings.EqualFold(d.Subreddit, subreddit) || d.Title != title {
			continue
		}
		if int64(d.CreatedUTC)*1000 < sinceMs {
			continue
		}
		return &Submission{ID: d.ID, Permalink: d.Permalink}, nil
	}
	return nil, nil
}

// do sends an authenticated API request.
func (c *HTTPClient) do(ctx context.Context, cred Credential, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIURL+path, body)
	if err != nil {
		return nil, err
	}
	if cred.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reddit %s %s: %w", method, path, err)
	}
	return resp, nil
}

type listing struct {
	Data struct {
		Children []struct {
			Data struct {
				ID                string  `json:"id"`
				Title             string  `json:"title"`
				Author            string  `json:"author"`
				Subreddit         string  `json:"subreddit"`
				Permalink         string  `json:"permalink"`
				RemovedByCategory string  `json:"removed_by_category"`
				CreatedUTC        float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func classifyStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrAuth, code)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, code)
	case code >= 500:
		return fmt.Errorf("reddit: server error: status %d", code)
	case code >= 400:
		return fmt.Errorf("%w: status %d", ErrRejected, code)
	}
	return nil
}

func submitError(errs [][]any) error {
	parts := make([]string, 0, len(errs))
	rateLimited := false
	for _, e := range errs {
		var fields []string
		for _, v := range e {
			fields = append(fields, fmt.Sprint(v))
		}
		if len(fields) > 0 && strings.EqualFold(fields[0], "RATELIMIT") {
			rateLimited = true
		}
		parts = append(parts, strings.Join(fields, " "))
	}
	msg := strings.Join(parts, "; ")
	if rateLimited {
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	}
	return fmt.Errorf("%w: %s", ErrRejected, msg)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func drain(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 1<<20))
	_ = rc.Close()
}
