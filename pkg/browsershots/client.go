package browsershots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/autoshots/core/pkg/extract"
	"github.com/autoshots/core/pkg/logger"
)

const (
	SignInPath = "/accounts/signin"
	ExtendPath = "/ajax/requests/extend"

	DefaultBaseURL = "http://browsershots.org"
	DefaultTimeout = 60 * time.Second

	maxBodySize = 4 << 20
)

// Credentials of the browsershots account used for extending.
type Credentials struct {
	Username string
	Password string
}

// Config is everything a Client needs. Header tables are copied into each
// request; a Client never mutates them.
type Config struct {
	BaseURL           string
	Credentials       Credentials
	UserAgentHeaders  map[string]string
	SameOriginHeaders map[string]string
	AjaxHeaders       map[string]string
	Timeout           time.Duration
}

// DefaultConfig fills the header tables the way a desktop Firefox talking to
// baseURL would.
func DefaultConfig(baseURL string, creds Credentials) Config {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	return Config{
		BaseURL:     baseURL,
		Credentials: creds,
		UserAgentHeaders: map[string]string{
			"User-Agent":      "Mozilla/5.0 (Windows; U; Windows NT 5.0; en-GB; rv:1.8.1.12) Gecko/20080201 Firefox/2.0.0.12",
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-gb,en;q=0.5",
			"Accept-Charset":  "utf-8,ISO-8859-1;q=0.7,*;q=0.7",
		},
		SameOriginHeaders: map[string]string{
			"Origin":  baseURL,
			"Referer": baseURL + "/",
		},
		AjaxHeaders: map[string]string{
			"Accept":           "application/json,text/javascript",
			"X-Requested-With": "XMLHttpRequest",
		},
		Timeout: DefaultTimeout,
	}
}

// Client holds one authenticated conversation with browsershots. It owns its
// cookie jar, so every run must build its own Client.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *logger.Logger
}

// NewClient builds a Client with a fresh cookie jar. Redirects are followed
// by the default policy.
func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("browsershots base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid browsershots base URL: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	if log == nil {
		log = logger.Nop()
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Jar:     jar,
			Timeout: cfg.Timeout,
		},
		logger: log,
	}, nil
}

// FetchLandingPage anonymously loads the site root.
func (c *Client) FetchLandingPage(ctx context.Context) (string, error) {
	target := c.cfg.BaseURL + "/"
	status, body, err := c.do(ctx, http.MethodGet, target, nil, c.cfg.UserAgentHeaders)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", &UnexpectedStatusError{Method: http.MethodGet, URL: target, StatusCode: status, Body: body}
	}
	return body, nil
}

// Login signs in with the account credentials and the anti-forgery token
// taken from the landing page. The session cookie lands in the jar.
func (c *Client) Login(ctx context.Context, csrf string) error {
	target := c.cfg.BaseURL + SignInPath
	form := url.Values{
		"csrfmiddlewaretoken": {csrf},
		"username":            {c.cfg.Credentials.Username},
		"password":            {c.cfg.Credentials.Password},
		"remember":            {"on"},
		"fromurl":             {"/"},
	}

	status, body, err := c.do(ctx, http.MethodPost, target, form,
		c.cfg.UserAgentHeaders, c.cfg.SameOriginHeaders)
	if err != nil {
		return err
	}

	if err := extract.Contains(extract.LoggedInPattern, body); err != nil {
		return &RejectionError{Err: ErrAuthentication, URL: target, StatusCode: status, Body: body}
	}
	return nil
}

// FetchStatusPage loads a job page with the authenticated session.
func (c *Client) FetchStatusPage(ctx context.Context, jobURL string) (string, error) {
	status, body, err := c.do(ctx, http.MethodGet, jobURL, nil, c.cfg.UserAgentHeaders)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", &UnexpectedStatusError{Method: http.MethodGet, URL: jobURL, StatusCode: status, Body: body}
	}
	return body, nil
}

// SubmitRenewal asks browsershots to extend the request group.
func (c *Client) SubmitRenewal(ctx context.Context, requestID string) error {
	target := c.cfg.BaseURL + ExtendPath
	form := url.Values{"request_group_id": {requestID}}

	status, body, err := c.do(ctx, http.MethodPost, target, form,
		c.cfg.UserAgentHeaders, c.cfg.SameOriginHeaders, c.cfg.AjaxHeaders)
	if err != nil {
		return err
	}

	if err := extract.Contains(extract.SuccessPattern, body); err != nil {
		return &RejectionError{Err: ErrRenewal, URL: target, StatusCode: status, Body: body}
	}
	return nil
}

// do sends one request. Later header tables override earlier ones.
func (c *Client) do(ctx context.Context, method, target string, form url.Values, headers ...map[string]string) (int, string, error) {
	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return 0, "", fmt.Errorf("failed to build request: %w", err)
	}
	for _, table := range headers {
		for k, v := range table {
			req.Header.Set(k, v)
		}
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.LogAPICall(method, target, 0, time.Since(start), err)
		return 0, "", fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		c.logger.LogAPICall(method, target, resp.StatusCode, time.Since(start), err)
		return resp.StatusCode, "", fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.LogAPICall(method, target, resp.StatusCode, time.Since(start), nil)
	return resp.StatusCode, string(body), nil
}
